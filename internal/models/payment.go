package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPosted  PaymentStatus = "POSTED"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Payment is one charge attempt for one billing period. Only PENDING
// payments may be updated.
type Payment struct {
	ID                uuid.UUID       `json:"id"`
	SubscriptionID    uuid.UUID       `json:"subscription_id"`
	PlanID            uuid.UUID       `json:"plan_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            PaymentStatus   `json:"status"`
	PeriodStart       time.Time       `json:"period_start"`
	PeriodEnd         time.Time       `json:"period_end"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	Note              *string         `json:"note,omitempty"`
	Provider          string          `json:"provider"`
	ProviderPaymentID *string         `json:"provider_payment_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IdempotencyKey identifies one charge attempt for this payment's billing
// period towards the gateway. attempt is the number of answered failures the
// period already had, so a retry after a decline gets a fresh key while a
// replay of an unanswered attempt reuses the old one.
func (p *Payment) IdempotencyKey(attempt int) string {
	return fmt.Sprintf("%s:%s:%d", p.SubscriptionID, p.PeriodStart.UTC().Format(time.RFC3339), attempt)
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	cp := *p
	cp.PaidAt = cloneTime(p.PaidAt)
	cp.Note = cloneString(p.Note)
	cp.ProviderPaymentID = cloneString(p.ProviderPaymentID)
	return &cp
}

// PaymentReceipt is the raw gateway answer archived for audit.
type PaymentReceipt struct {
	PaymentID         uuid.UUID
	SubscriptionID    uuid.UUID
	Provider          string
	ProviderPaymentID string
	ProviderStatus    string
	RawResponse       []byte
	RecordedAt        time.Time
}
