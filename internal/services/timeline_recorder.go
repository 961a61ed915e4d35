package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/repositories"
)

// TimelineRecorder appends events to a work order's history inside the
// caller's transaction. The caller must hold the work order's row lock so
// sequence numbers are assigned without gaps or duplicates.
type TimelineRecorder struct {
	now Clock
}

func NewTimelineRecorder(now Clock) *TimelineRecorder {
	if now == nil {
		now = SystemClock
	}
	return &TimelineRecorder{now: now}
}

// Record stamps e with an id, the next sequence number and a timestamp no
// earlier than the previous event's, then appends it.
func (r *TimelineRecorder) Record(ctx context.Context, tx *repositories.Repositories, e *models.TimelineEvent) error {
	last, err := tx.Timeline.Last(ctx, e.WorkOrderID)
	if err != nil {
		return fmt.Errorf("reading last timeline event: %w", err)
	}

	e.ID = uuid.New()
	e.Seq = 1
	e.OccurredAt = r.now().UTC()
	if last != nil {
		e.Seq = last.Seq + 1
		if e.OccurredAt.Before(last.OccurredAt) {
			e.OccurredAt = last.OccurredAt
		}
	}

	if err := tx.Timeline.Append(ctx, e); err != nil {
		return fmt.Errorf("appending %s event: %w", e.Type, err)
	}
	return nil
}
