package models

import (
	"time"

	"github.com/google/uuid"

	"bestoffer.kz/travel/models/enum"
)

// PaymentIntent tracks the Stripe payment for one order's premium.
type PaymentIntent struct {
	ID           uuid.UUID                `json:"id"`
	OrderID      uuid.UUID                `json:"order_id"`
	StripeID     string                   `json:"stripe_id"`
	Amount       int64                    `json:"amount"`
	Currency     string                   `json:"currency"`
	Status       enum.PaymentIntentStatus `json:"status"`
	ClientSecret string                   `json:"client_secret"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}
