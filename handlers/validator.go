package handlers

import "bestoffer.kz/travel/request"

// Validator plugs the request package's validation into echo's
// Context.Validate.
type Validator struct{}

func (Validator) Validate(i any) error {
	return request.ValidateStruct(i)
}
