package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	travel "bestoffer.kz/travel"
	"bestoffer.kz/travel/models"
)

const idempotencyKeyHeader = "Idempotency-Key"

type OrderHandler interface {
	SubmitOrder(c echo.Context) error
	GetOrder(c echo.Context) error
	PayOrder(c echo.Context) error
}

type orderHandler struct {
	Travel travel.Travel
}

func NewOrderHandler(Travel travel.Travel) OrderHandler {
	return &orderHandler{
		Travel: Travel,
	}
}

// SubmitOrder handles POST /orders
func (oh *orderHandler) SubmitOrder(c echo.Context) error {
	var req models.OrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	key := c.Request().Header.Get(idempotencyKeyHeader)

	order, err := oh.Travel.SubmitOrder(c.Request().Context(), key, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, order)
}

// GetOrder handles GET /orders/:id
func (oh *orderHandler) GetOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "Invalid order id")
	}

	order, err := oh.Travel.GetOrder(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, order)
}

// PayOrder handles POST /orders/:id/payment
func (oh *orderHandler) PayOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "Invalid order id")
	}

	paymentIntent, err := oh.Travel.PayOrder(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"payment_intent_id": paymentIntent.StripeID,
		"client_secret":     paymentIntent.ClientSecret,
		"amount":            paymentIntent.Amount,
		"currency":          paymentIntent.Currency,
		"status":            paymentIntent.Status,
	})
}
