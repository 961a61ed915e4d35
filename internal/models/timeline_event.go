package models

import (
	"time"

	"github.com/google/uuid"
)

type TimelineEventType string

const (
	TimelineEventCreated         TimelineEventType = "CREATED"
	TimelineEventAssigned        TimelineEventType = "ASSIGNED"
	TimelineEventStateChanged    TimelineEventType = "STATE_CHANGED"
	TimelineEventProgressUpdated TimelineEventType = "PROGRESS_UPDATED"
	TimelineEventNote            TimelineEventType = "NOTE"
)

// TimelineEvent is a write-once entry in a work order's history.
// Seq is strictly increasing per work order and breaks timestamp ties.
type TimelineEvent struct {
	ID          uuid.UUID         `json:"id"`
	WorkOrderID uuid.UUID         `json:"work_order_id"`
	Seq         int64             `json:"seq"`
	Type        TimelineEventType `json:"type"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Note        *string           `json:"note,omitempty"`
	ActorID     *uuid.UUID        `json:"actor_id,omitempty"`
	FromState   *WorkOrderState   `json:"from_state,omitempty"`
	ToState     *WorkOrderState   `json:"to_state,omitempty"`
	Progress    *int              `json:"progress,omitempty"`
	CrewID      *uuid.UUID        `json:"crew_id,omitempty"`
}

func (e *TimelineEvent) Clone() *TimelineEvent {
	if e == nil {
		return nil
	}
	c := *e
	c.Note = cloneString(e.Note)
	c.ActorID = cloneUUID(e.ActorID)
	c.CrewID = cloneUUID(e.CrewID)
	if e.FromState != nil {
		v := *e.FromState
		c.FromState = &v
	}
	if e.ToState != nil {
		v := *e.ToState
		c.ToState = &v
	}
	if e.Progress != nil {
		v := *e.Progress
		c.Progress = &v
	}
	return &c
}
