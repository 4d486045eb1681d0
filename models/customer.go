package models

import "time"

// Customer is the policy holder identity, keyed by IIN.
type Customer struct {
	ID          uint64    `json:"id"`
	IIN         string    `json:"iin"`
	PhoneNumber string    `json:"phone_number"`
	Email       string    `json:"email"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewCustomer() *Customer {
	return &Customer{}
}

func (c *Customer) FromNomadCustomer(nc NomadCustomer) *Customer {
	c.IIN = nc.IIN
	c.PhoneNumber = nc.PhoneNumber
	c.Email = nc.Email
	c.Address = nc.Address
	return c
}
