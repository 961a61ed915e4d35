package models

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionPastDue   SubscriptionStatus = "PAST_DUE"
	SubscriptionSuspended SubscriptionStatus = "SUSPENDED"
	SubscriptionCanceled  SubscriptionStatus = "CANCELED"
	SubscriptionGrace     SubscriptionStatus = "GRACE"
	SubscriptionPaused    SubscriptionStatus = "PAUSED"
)

func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionActive, SubscriptionPastDue, SubscriptionSuspended,
		SubscriptionCanceled, SubscriptionGrace, SubscriptionPaused:
		return true
	}
	return false
}

type Subscription struct {
	Versioned
	ID                  uuid.UUID          `json:"id"`
	CustomerID          uuid.UUID          `json:"customer_id"`
	PlanID              uuid.UUID          `json:"plan_id"`
	PropertyID          *uuid.UUID         `json:"property_id,omitempty"`
	Status              SubscriptionStatus `json:"status"`
	BillingDay          int                `json:"billing_day"`
	CurrentPeriodStart  time.Time          `json:"current_period_start"`
	CurrentPeriodEnd    time.Time          `json:"current_period_end"`
	NextChargeAt        time.Time          `json:"next_charge_at"`
	ConsecutiveFailures int                `json:"consecutive_failures"`
	CanceledAt          *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

func (s *Subscription) GetID() string {
	return s.ID.String()
}

// IsDue reports whether the current billing period has closed at now.
func (s *Subscription) IsDue(now time.Time) bool {
	return !s.CurrentPeriodEnd.After(now)
}

func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	cp := *s
	cp.PropertyID = cloneUUID(s.PropertyID)
	cp.CanceledAt = cloneTime(s.CanceledAt)
	return &cp
}
