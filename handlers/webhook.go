package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	travel "bestoffer.kz/travel"
)

const maxWebhookBody = 64 << 10

type WebhookHandler interface {
	HandleStripeWebhook(c echo.Context) error
}

type webhookHandler struct {
	Travel travel.Travel
}

func NewWebhookHandler(Travel travel.Travel) WebhookHandler {
	return &webhookHandler{
		Travel: Travel,
	}
}

// HandleStripeWebhook handles POST /webhook/stripe
func (wh *webhookHandler) HandleStripeWebhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "Failed to read request body")
	}

	signature := c.Request().Header.Get("Stripe-Signature")

	if err = wh.Travel.HandleStripeWebhook(c.Request().Context(), payload, signature); err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusOK)
}
