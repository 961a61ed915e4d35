package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/poofware/backoffice-service/internal/models"
)

// TimelineRepository is append-only: there is deliberately no update or
// delete, and the table trigger rejects both.
type TimelineRepository interface {
	Append(ctx context.Context, e *models.TimelineEvent) error
	ListByWorkOrder(ctx context.Context, workOrderID uuid.UUID) ([]*models.TimelineEvent, error)
	Last(ctx context.Context, workOrderID uuid.UUID) (*models.TimelineEvent, error)
}

type timelineRepo struct {
	db DB
}

func NewTimelineRepository(db DB) TimelineRepository {
	return &timelineRepo{db: db}
}

func baseSelectTimelineEvent() string {
	return `
        SELECT
            id, work_order_id, seq, event_type, occurred_at,
            note, actor_id, from_state, to_state, progress, crew_id
        FROM work_order_timeline_events
    `
}

func scanTimelineEvent(row pgx.Row) (*models.TimelineEvent, error) {
	var (
		e        models.TimelineEvent
		from, to *string
	)
	err := row.Scan(
		&e.ID, &e.WorkOrderID, &e.Seq, &e.Type, &e.OccurredAt,
		&e.Note, &e.ActorID, &from, &to, &e.Progress, &e.CrewID,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if from != nil {
		s := models.WorkOrderState(*from)
		e.FromState = &s
	}
	if to != nil {
		s := models.WorkOrderState(*to)
		e.ToState = &s
	}
	return &e, nil
}

func stateArg(s *models.WorkOrderState) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func (r *timelineRepo) Append(ctx context.Context, e *models.TimelineEvent) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO work_order_timeline_events (
            id, work_order_id, seq, event_type, occurred_at,
            note, actor_id, from_state, to_state, progress, crew_id
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    `,
		e.ID, e.WorkOrderID, e.Seq, e.Type, e.OccurredAt,
		e.Note, e.ActorID, stateArg(e.FromState), stateArg(e.ToState), e.Progress, e.CrewID,
	)
	return err
}

func (r *timelineRepo) ListByWorkOrder(ctx context.Context, workOrderID uuid.UUID) ([]*models.TimelineEvent, error) {
	rows, err := r.db.Query(ctx, baseSelectTimelineEvent()+`
        WHERE work_order_id = $1
        ORDER BY occurred_at, seq
    `, workOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.TimelineEvent{}
	for rows.Next() {
		e, err := scanTimelineEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *timelineRepo) Last(ctx context.Context, workOrderID uuid.UUID) (*models.TimelineEvent, error) {
	row := r.db.QueryRow(ctx, baseSelectTimelineEvent()+`
        WHERE work_order_id = $1
        ORDER BY seq DESC
        LIMIT 1
    `, workOrderID)
	return scanTimelineEvent(row)
}
