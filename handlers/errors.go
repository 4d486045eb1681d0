package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"bestoffer.kz/travel/models"
)

const retryAdvice = "No insurer answered. Check the trip details and try again in a minute."

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// respondError writes the JSON body for a known error. Anything else is
// handed to echo as a 500 so ErrorHandler logs it.
func respondError(c echo.Context, err error) error {
	var (
		validationErr      *models.ValidationError
		allFailedErr       *models.AllProvidersFailedError
		orderValidationErr *models.OrderValidationError
		orderTransportErr  *models.OrderTransportError
	)

	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid input",
			Code:    "validation_error",
			Details: map[string]any{"fields": validationErr.Fields},
		})

	case errors.As(err, &allFailedErr):
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: retryAdvice,
			Code:  "all_providers_failed",
			Details: map[string]any{
				"failures": allFailedErr.Failures,
			},
		})

	case errors.As(err, &orderValidationErr):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: "the insurer rejected the order",
			Code:  "order_rejected",
			Details: map[string]any{
				"message": orderValidationErr.Message,
				"fields":  orderValidationErr.Fields,
			},
		})

	case errors.As(err, &orderTransportErr):
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: "the insurer could not be reached, the order was not placed",
			Code:  "order_submission_failed",
			Details: map[string]any{
				"kind":        orderTransportErr.Kind,
				"status_code": orderTransportErr.StatusCode,
			},
		})

	case errors.Is(err, models.ErrOrderInFlight):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "order_in_flight"})

	case errors.Is(err, models.ErrPaymentInFlight):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "payment_in_flight"})

	case errors.Is(err, models.ErrOrderNotPayable):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "order_not_payable"})

	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: "not_found"})

	case errors.Is(err, models.ErrNoProviders):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "no_providers"})

	case errors.Is(err, models.ErrInvalidWebhook):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid signature", Code: "invalid_signature"})
	}

	return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}

// ErrorHandler renders echo errors in the API's error format and logs
// server-side failures.
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := http.StatusText(code)

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			code = httpErr.Code
			if m, ok := httpErr.Message.(string); ok {
				msg = m
			}
			if httpErr.Internal != nil {
				err = httpErr.Internal
			}
		}

		if code >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err))
			msg = http.StatusText(code)
		}

		body := ErrorResponse{Error: msg, Code: codeFor(code)}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Error("failed to write error response", zap.Error(err))
		}
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	}
	if status >= http.StatusInternalServerError {
		return "internal_error"
	}
	return "error"
}
