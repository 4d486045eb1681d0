package models

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"bestoffer.kz/travel/models/enum"
)

// OrderPayload is the purchase form sent to the order provider as-is.
type OrderPayload struct {
	CountryID      int64         `json:"country_id" validate:"required,gt=0"`
	InsuranceSumID int64         `json:"insurance_sum_id" validate:"required,gt=0"`
	StartDate      string        `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate        string        `json:"end_date" validate:"required,datetime=2006-01-02"`
	NomadCustomer  NomadCustomer `json:"nomad_customer" validate:"required"`
	Passport       Passport      `json:"passport" validate:"required"`
}

type NomadCustomer struct {
	IIN         string `json:"iin" validate:"required,len=12,numeric"`
	PhoneNumber string `json:"phone_number" validate:"required,min=10,max=20"`
	Email       string `json:"email" validate:"required,email"`
	Address     string `json:"address" validate:"required"`
}

type Passport struct {
	FullNameInLatin string `json:"full_name_in_latin" validate:"required,printascii"`
	DocumentNumber  string `json:"document_number" validate:"required,alphanum"`
	IssueDate       string `json:"issue_date" validate:"required,datetime=2006-01-02"`
	IssuedBy        string `json:"issued_by" validate:"required"`
}

// Order is a submitted purchase as recorded locally.
type Order struct {
	ID             uuid.UUID        `json:"id"`
	IdempotencyKey string           `json:"-"`
	Provider       string           `json:"provider"`
	CustomerID     uint64           `json:"customer_id,omitempty"`
	Customer       *Customer        `json:"customer,omitempty"`
	Status         enum.OrderStatus `json:"status"`
	Payload        OrderPayload     `json:"payload"`
	Premium        float64          `json:"premium"`
	Currency       string           `json:"currency"`
	Confirmation   json.RawMessage  `json:"confirmation,omitempty"`
	FailureReason  string           `json:"failure_reason,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// OrderRequest is a purchase as confirmed by the user: the form plus the
// offer they picked from a stored quote run. The charged premium is read
// from that run, never from the request.
type OrderRequest struct {
	Order    OrderPayload `json:"order" validate:"-"`
	RunID    uuid.UUID    `json:"run_id" validate:"required"`
	Provider string       `json:"provider" validate:"required"`
	OfferID  int64        `json:"offer_id" validate:"required,gt=0"`
}
