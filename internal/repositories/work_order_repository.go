package repositories

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/poofware/backoffice-service/internal/models"
)

// WorkOrderFilter narrows List. Nil fields do not filter.
type WorkOrderFilter struct {
	CustomerID      *uuid.UUID
	CrewID          *uuid.UUID
	State           *models.WorkOrderState
	ServiceCategory *string
}

type WorkOrderRepository interface {
	Create(ctx context.Context, w *models.WorkOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error)
	UpdateIfVersion(ctx context.Context, w *models.WorkOrder, expectedVersion int64) (pgconn.CommandTag, error)
	List(ctx context.Context, f WorkOrderFilter, skip, take int) ([]*models.WorkOrder, int, error)
	ListActiveByCrew(ctx context.Context, crewID uuid.UUID) ([]*models.WorkOrder, error)
}

type workOrderRepo struct {
	*BaseVersionedRepo[*models.WorkOrder]
	db DB
}

func NewWorkOrderRepository(db DB) WorkOrderRepository {
	r := &workOrderRepo{db: db}
	r.BaseVersionedRepo = NewBaseRepo(db, baseSelectWorkOrder()+" WHERE id = $1", scanWorkOrder)
	return r
}

func baseSelectWorkOrder() string {
	return `
        SELECT
            id, customer_id, property_id, subscription_id, crew_id,
            service_category, situation, priority, channel, hazard_flag,
            state, address, latitude, longitude, time_zone, progress,
            scheduled_for, completed_at, canceled_at,
            row_version, created_at, updated_at
        FROM work_orders
    `
}

func scanWorkOrder(row pgx.Row) (*models.WorkOrder, error) {
	var w models.WorkOrder
	err := row.Scan(
		&w.ID, &w.CustomerID, &w.PropertyID, &w.SubscriptionID, &w.CrewID,
		&w.ServiceCategory, &w.Situation, &w.Priority, &w.Channel, &w.HazardFlag,
		&w.State, &w.Address, &w.Latitude, &w.Longitude, &w.TimeZone, &w.Progress,
		&w.ScheduledFor, &w.CompletedAt, &w.CanceledAt,
		&w.RowVersion, &w.CreatedAt, &w.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *workOrderRepo) Create(ctx context.Context, w *models.WorkOrder) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO work_orders (
            id, customer_id, property_id, subscription_id, crew_id,
            service_category, situation, priority, channel, hazard_flag,
            state, address, latitude, longitude, time_zone, progress,
            scheduled_for, completed_at, canceled_at,
            row_version, created_at, updated_at
        ) VALUES (
            $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,1,$20,$20
        )
    `,
		w.ID, w.CustomerID, w.PropertyID, w.SubscriptionID, w.CrewID,
		w.ServiceCategory, w.Situation, w.Priority, w.Channel, w.HazardFlag,
		w.State, w.Address, w.Latitude, w.Longitude, w.TimeZone, w.Progress,
		w.ScheduledFor, w.CompletedAt, w.CanceledAt,
		w.CreatedAt,
	)
	if err == nil {
		w.RowVersion = 1
		w.UpdatedAt = w.CreatedAt
	}
	return err
}

// UpdateIfVersion writes the mutable columns when row_version still equals
// expectedVersion and bumps the version on w when it does.
func (r *workOrderRepo) UpdateIfVersion(ctx context.Context, w *models.WorkOrder, expectedVersion int64) (pgconn.CommandTag, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE work_orders SET
            crew_id = $1,
            state = $2,
            progress = $3,
            scheduled_for = $4,
            completed_at = $5,
            canceled_at = $6,
            updated_at = $7,
            row_version = row_version + 1
        WHERE id = $8 AND row_version = $9
    `,
		w.CrewID, w.State, w.Progress, w.ScheduledFor, w.CompletedAt, w.CanceledAt, w.UpdatedAt,
		w.ID, expectedVersion,
	)
	if err == nil && tag.RowsAffected() == 1 {
		w.SetRowVersion(expectedVersion + 1)
	}
	return tag, err
}

func (r *workOrderRepo) List(ctx context.Context, f WorkOrderFilter, skip, take int) ([]*models.WorkOrder, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, clause+" $"+strconv.Itoa(len(args)))
	}
	if f.CustomerID != nil {
		add("customer_id =", *f.CustomerID)
	}
	if f.CrewID != nil {
		add("crew_id =", *f.CrewID)
	}
	if f.State != nil {
		add("state =", *f.State)
	}
	if f.ServiceCategory != nil {
		add("service_category =", *f.ServiceCategory)
	}

	var cond string
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM work_orders"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, take, skip)
	q := baseSelectWorkOrder() + cond +
		" ORDER BY created_at DESC, id LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*models.WorkOrder{}
	for rows.Next() {
		w, err := scanWorkOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, w)
	}
	return out, total, rows.Err()
}

// ListActiveByCrew returns the orders currently holding crewID busy.
func (r *workOrderRepo) ListActiveByCrew(ctx context.Context, crewID uuid.UUID) ([]*models.WorkOrder, error) {
	q := baseSelectWorkOrder() + `
        WHERE crew_id = $1
          AND state = ANY($2)
        ORDER BY created_at
    `
	states := []string{
		string(models.WorkOrderStateAsignada),
		string(models.WorkOrderStateEnCamino),
		string(models.WorkOrderStateEnProgreso),
	}
	rows, err := r.db.Query(ctx, q, crewID, states)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.WorkOrder
	for rows.Next() {
		w, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
