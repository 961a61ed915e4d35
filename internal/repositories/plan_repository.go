package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"

	"github.com/poofware/backoffice-service/internal/models"
)

type PlanRepository interface {
	Create(ctx context.Context, p *models.Plan) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Plan, error)
}

type planRepo struct {
	db DB
}

func NewPlanRepository(db DB) PlanRepository {
	return &planRepo{db: db}
}

func baseSelectPlan() string {
	return `
        SELECT id, name, price::text, currency, interval_months,
               service_category, active, created_at
        FROM plans
    `
}

func scanPlan(row pgx.Row) (*models.Plan, error) {
	var (
		p     models.Plan
		price string
	)
	err := row.Scan(&p.ID, &p.Name, &price, &p.Currency, &p.IntervalMonths,
		&p.ServiceCategory, &p.Active, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("plan %s price %q: %w", p.ID, price, err)
	}
	return &p, nil
}

func (r *planRepo) Create(ctx context.Context, p *models.Plan) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO plans (
            id, name, price, currency, interval_months, service_category, active, created_at
        ) VALUES ($1,$2,$3::numeric,$4,$5,$6,$7,$8)
    `, p.ID, p.Name, p.Price.String(), p.Currency, p.IntervalMonths, p.ServiceCategory, p.Active, p.CreatedAt)
	return err
}

func (r *planRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	return scanPlan(r.db.QueryRow(ctx, baseSelectPlan()+" WHERE id = $1", id))
}

func (r *planRepo) List(ctx context.Context, activeOnly bool) ([]*models.Plan, error) {
	q := baseSelectPlan()
	if activeOnly {
		q += " WHERE active"
	}
	rows, err := r.db.Query(ctx, q+" ORDER BY price, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
