package models

import (
	"time"

	"github.com/google/uuid"
)

// ----------------------------------------------------------------------
// Enums
// ----------------------------------------------------------------------

type WorkOrderState string

const (
	WorkOrderStatePendiente  WorkOrderState = "PENDIENTE"
	WorkOrderStateAsignada   WorkOrderState = "ASIGNADA"
	WorkOrderStateEnCamino   WorkOrderState = "EN_CAMINO"
	WorkOrderStateEnProgreso WorkOrderState = "EN_PROGRESO"
	WorkOrderStateFinalizada WorkOrderState = "FINALIZADA"
	WorkOrderStateCancelada  WorkOrderState = "CANCELADA"
)

// AllWorkOrderStates lists every state in lifecycle order.
var AllWorkOrderStates = []WorkOrderState{
	WorkOrderStatePendiente,
	WorkOrderStateAsignada,
	WorkOrderStateEnCamino,
	WorkOrderStateEnProgreso,
	WorkOrderStateFinalizada,
	WorkOrderStateCancelada,
}

func (s WorkOrderState) IsValid() bool {
	for _, st := range AllWorkOrderStates {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition may leave s.
func (s WorkOrderState) IsTerminal() bool {
	return s == WorkOrderStateFinalizada || s == WorkOrderStateCancelada
}

// HoldsCrew reports whether an order in state s keeps a crew busy.
func (s WorkOrderState) HoldsCrew() bool {
	switch s {
	case WorkOrderStateAsignada, WorkOrderStateEnCamino, WorkOrderStateEnProgreso:
		return true
	}
	return false
}

type WorkOrderPriority string

const (
	PriorityBaja       WorkOrderPriority = "BAJA"
	PriorityMedia      WorkOrderPriority = "MEDIA"
	PriorityAlta       WorkOrderPriority = "ALTA"
	PriorityEmergencia WorkOrderPriority = "EMERGENCIA"
)

func (p WorkOrderPriority) IsValid() bool {
	switch p {
	case PriorityBaja, PriorityMedia, PriorityAlta, PriorityEmergencia:
		return true
	}
	return false
}

// Intake channels. Free text is accepted; these are the ones the backoffice emits.
const (
	ChannelWeb         = "WEB"
	ChannelTelefono    = "TELEFONO"
	ChannelWhatsApp    = "WHATSAPP"
	ChannelSuscripcion = "SUSCRIPCION"
)

// ----------------------------------------------------------------------
// WorkOrder
// ----------------------------------------------------------------------

type WorkOrder struct {
	Versioned
	ID              uuid.UUID         `json:"id"`
	CustomerID      uuid.UUID         `json:"customer_id"`
	PropertyID      *uuid.UUID        `json:"property_id,omitempty"`
	SubscriptionID  *uuid.UUID        `json:"subscription_id,omitempty"`
	CrewID          *uuid.UUID        `json:"crew_id,omitempty"`
	ServiceCategory string            `json:"service_category"`
	Situation       string            `json:"situation"`
	Priority        WorkOrderPriority `json:"priority"`
	Channel         string            `json:"channel"`
	HazardFlag      bool              `json:"hazard_flag"`
	State           WorkOrderState    `json:"state"`
	Address         string            `json:"address"`
	Latitude        *float64          `json:"latitude,omitempty"`
	Longitude       *float64          `json:"longitude,omitempty"`
	TimeZone        string            `json:"time_zone"`
	Progress        int               `json:"progress"`
	ScheduledFor    *time.Time        `json:"scheduled_for,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CanceledAt      *time.Time        `json:"canceled_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (w *WorkOrder) GetID() string {
	return w.ID.String()
}

// HasCoordinates reports whether both latitude and longitude are known.
func (w *WorkOrder) HasCoordinates() bool {
	return w.Latitude != nil && w.Longitude != nil
}

// Clone returns a copy that shares no pointers with w.
func (w *WorkOrder) Clone() *WorkOrder {
	if w == nil {
		return nil
	}
	c := *w
	c.PropertyID = cloneUUID(w.PropertyID)
	c.SubscriptionID = cloneUUID(w.SubscriptionID)
	c.CrewID = cloneUUID(w.CrewID)
	c.Latitude = cloneFloat(w.Latitude)
	c.Longitude = cloneFloat(w.Longitude)
	c.ScheduledFor = cloneTime(w.ScheduledFor)
	c.CompletedAt = cloneTime(w.CompletedAt)
	c.CanceledAt = cloneTime(w.CanceledAt)
	return &c
}

func cloneUUID(p *uuid.UUID) *uuid.UUID {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
