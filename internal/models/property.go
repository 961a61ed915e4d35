package models

import (
	"time"

	"github.com/google/uuid"
)

type Property struct {
	ID         uuid.UUID `json:"id"`
	CustomerID uuid.UUID `json:"customer_id"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	TimeZone   string    `json:"time_zone"`
	CreatedAt  time.Time `json:"created_at"`
}

func (p *Property) Clone() *Property {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
