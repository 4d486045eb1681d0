package request

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"bestoffer.kz/travel/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator, configured to report fields by
// their JSON names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateStruct checks v's validate tags. Failures are returned as a
// *models.ValidationError keyed by JSON field path.
func ValidateStruct(v any) error {
	verr := models.NewValidationError()
	if err := collect(v, verr); err != nil {
		return err
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func collect(v any, verr *models.ValidationError) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	for _, fe := range fieldErrs {
		verr.Add(fieldPath(fe.Namespace()), describe(fe))
	}
	return nil
}

// BuildOrder checks an order payload before it is sent anywhere. Nested
// fields are reported with dotted paths, e.g. "passport.issue_date".
func BuildOrder(payload models.OrderPayload) (models.OrderPayload, error) {
	verr := models.NewValidationError()

	if err := collect(payload, verr); err != nil {
		return models.OrderPayload{}, err
	}

	if _, ok := verr.Fields[FieldStartDate]; !ok {
		if _, ok := verr.Fields[FieldEndDate]; !ok {
			start, _ := models.ParseDate(payload.StartDate)
			end, _ := models.ParseDate(payload.EndDate)
			if end.Before(start) {
				verr.Add(FieldDateRange, "end date is earlier than start date")
			}
		}
	}

	if verr.HasErrors() {
		return models.OrderPayload{}, verr
	}

	return payload, nil
}

// fieldPath strips the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "numeric":
		return "must contain digits only"
	case "email":
		return "must be a valid email address"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "printascii":
		return "must use latin characters"
	case "alphanum":
		return "must contain letters and digits only"
	case "alpha":
		return "must contain letters only"
	default:
		return "is invalid"
	}
}
