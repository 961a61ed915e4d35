package dtos

import (
	"github.com/google/uuid"

	"github.com/poofware/backoffice-service/internal/models"
)

type CreateSubscriptionRequest struct {
	UserID     uuid.UUID  `json:"user_id" validate:"required"`
	PlanID     uuid.UUID  `json:"plan_id" validate:"required"`
	PropertyID *uuid.UUID `json:"property_id,omitempty"`
}

type UpgradeSubscriptionRequest struct {
	PlanID uuid.UUID `json:"plan_id" validate:"required"`
}

// ChargeResponse is the outcome of one processCharge call. A FAILED payment
// is a successful call: inspect Payment.Status.
type ChargeResponse struct {
	Charged      bool                 `json:"charged"`
	Payment      *models.Payment      `json:"payment,omitempty"`
	Subscription *models.Subscription `json:"subscription"`
	WorkOrder    *models.WorkOrder    `json:"work_order,omitempty"`
}

type BillingCycleSummary struct {
	Due     int `json:"due"`
	Posted  int `json:"posted"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}
