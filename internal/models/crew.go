package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CrewStatus is the single source of truth for a crew's occupancy.
// Availability and LegacyState are derived from it.
type CrewStatus string

const (
	CrewStatusDesocupado CrewStatus = "DESOCUPADO"
	CrewStatusOcupado    CrewStatus = "OCUPADO"
	CrewStatusEnTrabajo  CrewStatus = "EN_TRABAJO"
	CrewStatusOffline    CrewStatus = "OFFLINE"
)

type CrewAvailability string

const (
	CrewAvailable CrewAvailability = "AVAILABLE"
	CrewBusy      CrewAvailability = "BUSY"
	CrewOffline   CrewAvailability = "OFFLINE"
)

func (s CrewStatus) IsValid() bool {
	switch s {
	case CrewStatusDesocupado, CrewStatusOcupado, CrewStatusEnTrabajo, CrewStatusOffline:
		return true
	}
	return false
}

// Availability maps the status onto the AVAILABLE/BUSY/OFFLINE vocabulary.
func (s CrewStatus) Availability() CrewAvailability {
	switch s {
	case CrewStatusOcupado, CrewStatusEnTrabajo:
		return CrewBusy
	case CrewStatusOffline:
		return CrewOffline
	default:
		return CrewAvailable
	}
}

// LegacyState maps the status onto the lowercase occupancy vocabulary
// (desocupado/ocupado/en_trabajo/offline) still used by the admin UI.
func (s CrewStatus) LegacyState() string {
	switch s {
	case CrewStatusOcupado:
		return "ocupado"
	case CrewStatusEnTrabajo:
		return "en_trabajo"
	case CrewStatusOffline:
		return "offline"
	default:
		return "desocupado"
	}
}

// ----------------------------------------------------------------------
// Members
// ----------------------------------------------------------------------

type CrewMemberKind string

const (
	CrewMemberLinked CrewMemberKind = "LINKED"
	CrewMemberManual CrewMemberKind = "MANUAL"
)

var ErrInvalidCrewMember = errors.New("invalid_crew_member")

// CrewMember is either a Linked member (a user account) or a Manual one
// (a name typed by an operator). Exactly one of UserID/Name is set.
type CrewMember struct {
	Kind   CrewMemberKind
	UserID uuid.UUID
	Name   string
}

func LinkedMember(userID uuid.UUID) CrewMember {
	return CrewMember{Kind: CrewMemberLinked, UserID: userID}
}

func ManualMember(name string) CrewMember {
	return CrewMember{Kind: CrewMemberManual, Name: name}
}

type crewMemberJSON struct {
	Kind   CrewMemberKind `json:"kind"`
	UserID *uuid.UUID     `json:"user_id,omitempty"`
	Name   *string        `json:"name,omitempty"`
}

func (m CrewMember) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case CrewMemberLinked:
		return json.Marshal(crewMemberJSON{Kind: m.Kind, UserID: &m.UserID})
	case CrewMemberManual:
		return json.Marshal(crewMemberJSON{Kind: m.Kind, Name: &m.Name})
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidCrewMember, m.Kind)
}

func (m *CrewMember) UnmarshalJSON(b []byte) error {
	var raw crewMemberJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case CrewMemberLinked:
		if raw.UserID == nil || *raw.UserID == uuid.Nil {
			return fmt.Errorf("%w: linked member without user_id", ErrInvalidCrewMember)
		}
		*m = LinkedMember(*raw.UserID)
	case CrewMemberManual:
		if raw.Name == nil || *raw.Name == "" {
			return fmt.Errorf("%w: manual member without name", ErrInvalidCrewMember)
		}
		*m = ManualMember(*raw.Name)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCrewMember, raw.Kind)
	}
	return nil
}

// ----------------------------------------------------------------------
// Crew
// ----------------------------------------------------------------------

type Crew struct {
	Versioned
	ID               uuid.UUID    `json:"id"`
	Name             string       `json:"name"`
	Zone             string       `json:"zone"`
	Status           CrewStatus   `json:"status"`
	ActiveOrderCount int          `json:"active_order_count"`
	Members          []CrewMember `json:"members"`
	BaseLatitude     *float64     `json:"base_latitude,omitempty"`
	BaseLongitude    *float64     `json:"base_longitude,omitempty"`
	Progress         int          `json:"progress"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (c *Crew) GetID() string {
	return c.ID.String()
}

func (c *Crew) Availability() CrewAvailability {
	return c.Status.Availability()
}

func (c *Crew) Clone() *Crew {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Members = append([]CrewMember(nil), c.Members...)
	cp.BaseLatitude = cloneFloat(c.BaseLatitude)
	cp.BaseLongitude = cloneFloat(c.BaseLongitude)
	return &cp
}
