package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"bestoffer.kz/travel/models/enum"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNoProviders   = errors.New("no provider endpoints configured")
	ErrOrderInFlight = errors.New("order submission already in progress")

	ErrOrderNotPayable = errors.New("order cannot be paid")
	ErrPaymentInFlight = errors.New("payment for this order is already being created")
	ErrInvalidWebhook  = errors.New("invalid webhook signature")
)

// ValidationError reports user input rejected before any network call.
// Fields maps each offending field to why it was rejected.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Add(field, msg string) {
	e.Fields[field] = msg
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// FieldNames returns the offending fields in a stable order.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *ValidationError) Error() string {
	names := e.FieldNames()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ProviderError carries the classification of one failed provider call.
type ProviderError struct {
	Provider   string
	Kind       enum.ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Kind == enum.ErrorKindProtocolError:
		return fmt.Sprintf("provider %s responded with status %d", e.Provider, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, strings.ToLower(string(e.Kind)), e.Err)
	default:
		return fmt.Sprintf("provider %s: %s", e.Provider, strings.ToLower(string(e.Kind)))
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Failure converts the error into its result-set representation.
func (e *ProviderError) Failure() QuoteFailure {
	return QuoteFailure{
		Provider:   e.Provider,
		Kind:       e.Kind,
		Message:    e.Error(),
		StatusCode: e.StatusCode,
		Body:       e.Body,
	}
}

// AllProvidersFailedError is returned when an aggregation has no successes.
type AllProvidersFailedError struct {
	Failures []QuoteFailure
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all %d providers failed", len(e.Failures))
}

// OrderValidationError is the provider's field-level rejection of an order.
type OrderValidationError struct {
	StatusCode int
	Message    string
	Fields     map[string][]string
}

func (e *OrderValidationError) Error() string {
	if e.Message != "" {
		return "order rejected: " + e.Message
	}
	return fmt.Sprintf("order rejected with %d invalid fields", len(e.Fields))
}

// OrderTransportError is any order submission failure other than a
// validation rejection.
type OrderTransportError struct {
	Kind       enum.ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *OrderTransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("order submission failed with status %d", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("order submission failed: %v", e.Err)
	}
	return "order submission failed"
}

func (e *OrderTransportError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsAllProvidersFailed(err error) bool {
	var target *AllProvidersFailedError
	return errors.As(err, &target)
}

func IsOrderValidation(err error) bool {
	var target *OrderValidationError
	return errors.As(err, &target)
}

func IsOrderTransport(err error) bool {
	var target *OrderTransportError
	return errors.As(err, &target)
}
