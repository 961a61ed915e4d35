package dtos

import (
	"github.com/google/uuid"

	"github.com/poofware/backoffice-service/internal/models"
)

// CrewResponse exposes both occupancy vocabularies derived from the single
// stored status.
type CrewResponse struct {
	ID               uuid.UUID               `json:"id"`
	Name             string                  `json:"name"`
	Zone             string                  `json:"zone"`
	Availability     models.CrewAvailability `json:"availability"`
	State            string                  `json:"state"`
	ActiveOrderCount int                     `json:"active_order_count"`
	Members          []models.CrewMember     `json:"members"`
	Progress         int                     `json:"progress"`
	RowVersion       int64                   `json:"row_version"`
}

func NewCrewResponse(c *models.Crew) CrewResponse {
	members := c.Members
	if members == nil {
		members = []models.CrewMember{}
	}
	return CrewResponse{
		ID:               c.ID,
		Name:             c.Name,
		Zone:             c.Zone,
		Availability:     c.Status.Availability(),
		State:            c.Status.LegacyState(),
		ActiveOrderCount: c.ActiveOrderCount,
		Members:          members,
		Progress:         c.Progress,
		RowVersion:       c.RowVersion,
	}
}

type SetCrewAvailabilityRequest struct {
	Online *bool `json:"online" validate:"required"`
}
