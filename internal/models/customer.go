package models

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone *string   `json:"phone,omitempty"`

	// Stored payment instrument used for recurring charges.
	GatewayCustomerID *string `json:"gateway_customer_id,omitempty"`
	PaymentMethodID   *string `json:"payment_method_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Phone = cloneString(c.Phone)
	cp.GatewayCustomerID = cloneString(c.GatewayCustomerID)
	cp.PaymentMethodID = cloneString(c.PaymentMethodID)
	return &cp
}
