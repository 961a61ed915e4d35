package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"

	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/utils"
)

type PaymentRepository interface {
	// Create fails with utils.ErrChargeInProgress when the period already
	// has a PENDING or POSTED payment.
	Create(ctx context.Context, p *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	// FindOpenForPeriod returns the PENDING or POSTED payment of a period, if any.
	FindOpenForPeriod(ctx context.Context, subscriptionID uuid.UUID, periodStart time.Time) (*models.Payment, error)
	LatestPosted(ctx context.Context, subscriptionID uuid.UUID) (*models.Payment, error)
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*models.Payment, error)
	// Settle updates a payment that is still PENDING. POSTED and FAILED rows
	// never match.
	Settle(ctx context.Context, p *models.Payment) (pgconn.CommandTag, error)
}

type paymentRepo struct {
	db DB
}

func NewPaymentRepository(db DB) PaymentRepository {
	return &paymentRepo{db: db}
}

func baseSelectPayment() string {
	return `
        SELECT
            id, subscription_id, plan_id, amount::text, currency, status,
            period_start, period_end, paid_at, note,
            provider, provider_payment_id, created_at, updated_at
        FROM payments
    `
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var (
		p      models.Payment
		amount string
	)
	err := row.Scan(
		&p.ID, &p.SubscriptionID, &p.PlanID, &amount, &p.Currency, &p.Status,
		&p.PeriodStart, &p.PeriodEnd, &p.PaidAt, &p.Note,
		&p.Provider, &p.ProviderPaymentID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("payment %s amount %q: %w", p.ID, amount, err)
	}
	return &p, nil
}

func (r *paymentRepo) Create(ctx context.Context, p *models.Payment) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO payments (
            id, subscription_id, plan_id, amount, currency, status,
            period_start, period_end, paid_at, note,
            provider, provider_payment_id, created_at, updated_at
        ) VALUES ($1,$2,$3,$4::numeric,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
    `,
		p.ID, p.SubscriptionID, p.PlanID, p.Amount.String(), p.Currency, p.Status,
		p.PeriodStart, p.PeriodEnd, p.PaidAt, p.Note,
		p.Provider, p.ProviderPaymentID, p.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("payment for period %s: %w", p.PeriodStart.Format(time.RFC3339), utils.ErrChargeInProgress)
	}
	if err == nil {
		p.UpdatedAt = p.CreatedAt
	}
	return err
}

func (r *paymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return scanPayment(r.db.QueryRow(ctx, baseSelectPayment()+" WHERE id = $1", id))
}

func (r *paymentRepo) FindOpenForPeriod(ctx context.Context, subscriptionID uuid.UUID, periodStart time.Time) (*models.Payment, error) {
	row := r.db.QueryRow(ctx, baseSelectPayment()+`
        WHERE subscription_id = $1
          AND period_start = $2
          AND status IN ('PENDING','POSTED')
        FOR UPDATE
    `, subscriptionID, periodStart)
	return scanPayment(row)
}

func (r *paymentRepo) LatestPosted(ctx context.Context, subscriptionID uuid.UUID) (*models.Payment, error) {
	row := r.db.QueryRow(ctx, baseSelectPayment()+`
        WHERE subscription_id = $1 AND status = 'POSTED'
        ORDER BY period_start DESC
        LIMIT 1
    `, subscriptionID)
	return scanPayment(row)
}

func (r *paymentRepo) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*models.Payment, error) {
	rows, err := r.db.Query(ctx, baseSelectPayment()+`
        WHERE subscription_id = $1
        ORDER BY created_at, id
    `, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *paymentRepo) Settle(ctx context.Context, p *models.Payment) (pgconn.CommandTag, error) {
	return r.db.Exec(ctx, `
        UPDATE payments SET
            status = $1,
            paid_at = $2,
            note = $3,
            provider_payment_id = $4,
            updated_at = $5
        WHERE id = $6 AND status = 'PENDING'
    `, p.Status, p.PaidAt, p.Note, p.ProviderPaymentID, p.UpdatedAt, p.ID)
}
