package dtos

import (
	"time"

	"github.com/google/uuid"

	"github.com/poofware/backoffice-service/internal/models"
)

// CreateWorkOrderRequest is the intake form filled by an operator.
type CreateWorkOrderRequest struct {
	CustomerID       uuid.UUID                 `json:"customer_id" validate:"required"`
	PropertyID       *uuid.UUID                `json:"property_id,omitempty"`
	ServiceCategory  string                    `json:"service_category" validate:"required,min=1,max=120"`
	Situacion        string                    `json:"situacion" validate:"required,min=1,max=2000"`
	Prioridad        *models.WorkOrderPriority `json:"prioridad,omitempty" validate:"omitempty,oneof=BAJA MEDIA ALTA EMERGENCIA"`
	Canal            *string                   `json:"canal,omitempty" validate:"omitempty,max=40"`
	PeligroAccidente bool                      `json:"peligro_accidente"`
	Address          *string                   `json:"address,omitempty" validate:"omitempty,max=300"`
	Latitude         *float64                  `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude        *float64                  `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	ScheduledFor     *time.Time                `json:"scheduled_for,omitempty"`
}

type TransitionWorkOrderRequest struct {
	State      models.WorkOrderState `json:"state" validate:"required,oneof=PENDIENTE ASIGNADA EN_CAMINO EN_PROGRESO FINALIZADA CANCELADA"`
	Note       *string               `json:"note,omitempty" validate:"omitempty,max=2000"`
	CrewID     *uuid.UUID            `json:"crew_id,omitempty"`
	RowVersion *int64                `json:"row_version,omitempty" validate:"omitempty,gt=0"`
}

type AssignCrewRequest struct {
	CrewID     uuid.UUID `json:"crew_id" validate:"required"`
	Note       *string   `json:"note,omitempty" validate:"omitempty,max=2000"`
	RowVersion *int64    `json:"row_version,omitempty" validate:"omitempty,gt=0"`
}

type UpdateProgressRequest struct {
	// Pointer so that an explicit 0 is distinguishable from a missing field.
	Percent    *int   `json:"percent" validate:"required"`
	RowVersion *int64 `json:"row_version,omitempty" validate:"omitempty,gt=0"`
}

type AddNoteRequest struct {
	Note string `json:"note" validate:"required,min=1,max=2000"`
}

type WorkOrderPage struct {
	Items []*models.WorkOrder `json:"items"`
	Total int                 `json:"total"`
	Skip  int                 `json:"skip"`
	Take  int                 `json:"take"`
}

type TimelineResponse struct {
	WorkOrderID uuid.UUID               `json:"work_order_id"`
	Events      []*models.TimelineEvent `json:"events"`
}

// Workday groups the events that share one local calendar date.
type Workday struct {
	Date              string                  `json:"date"`
	FirstEventAt      time.Time               `json:"first_event_at"`
	LastEventAt       time.Time               `json:"last_event_at"`
	ElapsedSeconds    int64                   `json:"elapsed_seconds"`
	InProgressSeconds int64                   `json:"in_progress_seconds"`
	ProductivityRatio float64                 `json:"productivity_ratio"`
	Events            []*models.TimelineEvent `json:"events"`
}

type TimelineAnalysis struct {
	WorkOrderID            uuid.UUID `json:"work_order_id"`
	TimeZone               string    `json:"time_zone"`
	Workdays               []Workday `json:"workdays"`
	TotalElapsedSeconds    int64     `json:"total_elapsed_seconds"`
	TotalInProgressSeconds int64     `json:"total_in_progress_seconds"`
	ProductivityRatio      float64   `json:"productivity_ratio"`
}

type CrewSuggestion struct {
	Crew          CrewResponse `json:"crew"`
	SameZone      bool         `json:"same_zone"`
	DistanceMiles *float64     `json:"distance_miles,omitempty"`
}
