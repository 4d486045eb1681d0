// Package request turns raw user input into the immutable payloads sent to
// insurance providers.
package request

import (
	"strconv"
	"strings"

	"bestoffer.kz/travel/models"
)

const (
	FieldAge       = "age"
	FieldCountry   = "country"
	FieldStartDate = "start_date"
	FieldEndDate   = "end_date"
	FieldDateRange = "start_date,end_date"
)

// Build validates every field of form and returns the canonical request.
// All problems are reported together in one *models.ValidationError.
func Build(form models.QuoteForm) (models.QuoteRequest, error) {
	verr := models.NewValidationError()

	country := strings.TrimSpace(form.Country)
	if country == "" {
		verr.Add(FieldCountry, "is required")
	}

	age, ageMsg := parseAge(form.Age)
	if ageMsg != "" {
		verr.Add(FieldAge, ageMsg)
	}

	start, startMsg := parseDate(form.StartDate)
	if startMsg != "" {
		verr.Add(FieldStartDate, startMsg)
	}

	end, endMsg := parseDate(form.EndDate)
	if endMsg != "" {
		verr.Add(FieldEndDate, endMsg)
	}

	if startMsg == "" && endMsg == "" && end.Before(start) {
		verr.Add(FieldDateRange, "end date is earlier than start date")
	}

	if verr.HasErrors() {
		return models.QuoteRequest{}, verr
	}

	return models.QuoteRequest{
		Age:       age,
		Country:   country,
		StartDate: start,
		EndDate:   end,
	}, nil
}

func parseAge(raw string) (int, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "is required"
	}

	age, err := strconv.Atoi(raw)
	if err != nil {
		return 0, "must be a whole number"
	}
	if age <= 0 {
		return 0, "must be greater than zero"
	}

	return age, ""
}

func parseDate(raw string) (models.Date, string) {
	if strings.TrimSpace(raw) == "" {
		return models.Date{}, "is required"
	}

	d, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, "must be a date in YYYY-MM-DD format"
	}

	return d, ""
}
