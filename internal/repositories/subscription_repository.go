package repositories

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/poofware/backoffice-service/internal/models"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, s *models.Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, customerID *uuid.UUID, status *models.SubscriptionStatus) ([]*models.Subscription, error)
	// ListDue returns chargeable subscriptions whose period closed at or before now.
	ListDue(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	UpdateIfVersion(ctx context.Context, s *models.Subscription, expectedVersion int64) (pgconn.CommandTag, error)
}

type subscriptionRepo struct {
	*BaseVersionedRepo[*models.Subscription]
	db DB
}

func NewSubscriptionRepository(db DB) SubscriptionRepository {
	r := &subscriptionRepo{db: db}
	r.BaseVersionedRepo = NewBaseRepo(db, baseSelectSubscription()+" WHERE id = $1", scanSubscription)
	return r
}

func baseSelectSubscription() string {
	return `
        SELECT
            id, customer_id, plan_id, property_id, status, billing_day,
            current_period_start, current_period_end, next_charge_at,
            consecutive_failures, canceled_at,
            row_version, created_at, updated_at
        FROM subscriptions
    `
}

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var s models.Subscription
	err := row.Scan(
		&s.ID, &s.CustomerID, &s.PlanID, &s.PropertyID, &s.Status, &s.BillingDay,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.NextChargeAt,
		&s.ConsecutiveFailures, &s.CanceledAt,
		&s.RowVersion, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *subscriptionRepo) Create(ctx context.Context, s *models.Subscription) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO subscriptions (
            id, customer_id, plan_id, property_id, status, billing_day,
            current_period_start, current_period_end, next_charge_at,
            consecutive_failures, canceled_at,
            row_version, created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,1,$12,$12)
    `,
		s.ID, s.CustomerID, s.PlanID, s.PropertyID, s.Status, s.BillingDay,
		s.CurrentPeriodStart, s.CurrentPeriodEnd, s.NextChargeAt,
		s.ConsecutiveFailures, s.CanceledAt, s.CreatedAt,
	)
	if err == nil {
		s.RowVersion = 1
		s.UpdatedAt = s.CreatedAt
	}
	return err
}

func (r *subscriptionRepo) List(ctx context.Context, customerID *uuid.UUID, status *models.SubscriptionStatus) ([]*models.Subscription, error) {
	var (
		where []string
		args  []any
	)
	if customerID != nil {
		args = append(args, *customerID)
		where = append(where, "customer_id = $"+strconv.Itoa(len(args)))
	}
	if status != nil {
		args = append(args, *status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	q := baseSelectSubscription()
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	return r.query(ctx, q+" ORDER BY created_at DESC, id", args...)
}

func (r *subscriptionRepo) ListDue(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	q := baseSelectSubscription() + `
        WHERE current_period_end <= $1
          AND status <> ALL($2)
        ORDER BY current_period_end, id
    `
	skip := []string{string(models.SubscriptionCanceled), string(models.SubscriptionPaused)}
	return r.query(ctx, q, now, skip)
}

func (r *subscriptionRepo) query(ctx context.Context, q string, args ...any) ([]*models.Subscription, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *subscriptionRepo) UpdateIfVersion(ctx context.Context, s *models.Subscription, expectedVersion int64) (pgconn.CommandTag, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE subscriptions SET
            plan_id = $1,
            status = $2,
            current_period_start = $3,
            current_period_end = $4,
            next_charge_at = $5,
            consecutive_failures = $6,
            canceled_at = $7,
            updated_at = $8,
            row_version = row_version + 1
        WHERE id = $9 AND row_version = $10
    `,
		s.PlanID, s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd, s.NextChargeAt,
		s.ConsecutiveFailures, s.CanceledAt, s.UpdatedAt,
		s.ID, expectedVersion,
	)
	if err == nil && tag.RowsAffected() == 1 {
		s.SetRowVersion(expectedVersion + 1)
	}
	return tag, err
}
