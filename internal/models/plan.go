package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const CurrencyARS = "ARS"

type Plan struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	IntervalMonths int             `json:"interval_months"`
	// ServiceCategory, when set, makes every posted charge spawn a
	// recurring work order of this category.
	ServiceCategory *string   `json:"service_category,omitempty"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	cp := *p
	cp.ServiceCategory = cloneString(p.ServiceCategory)
	return &cp
}
