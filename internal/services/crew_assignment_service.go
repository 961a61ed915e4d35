package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/umahmood/haversine"

	"github.com/poofware/backoffice-service/internal/constants"
	"github.com/poofware/backoffice-service/internal/dtos"
	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/repositories"
	"github.com/poofware/backoffice-service/internal/utils"
)

// CrewAssignmentService owns crew occupancy. Acquire and Release keep a
// reference count of active work orders per crew and must run in the same
// transaction as the work order change they accompany.
type CrewAssignmentService struct {
	store repositories.Store
	now   Clock
}

func NewCrewAssignmentService(store repositories.Store, now Clock) *CrewAssignmentService {
	if now == nil {
		now = SystemClock
	}
	return &CrewAssignmentService{store: store, now: now}
}

// Acquire validates the crew and counts one more active order against it.
// BUSY crews are accepted: double booking is allowed, only OFFLINE blocks.
func (s *CrewAssignmentService) Acquire(ctx context.Context, tx *repositories.Repositories, crewID uuid.UUID) (*models.Crew, error) {
	crew, err := s.lockCrew(ctx, tx, crewID)
	if err != nil {
		return nil, err
	}
	if crew.Status == models.CrewStatusOffline {
		return nil, fmt.Errorf("%w: crew %s is offline", utils.ErrCrewUnavailable, crew.Name)
	}

	crew.ActiveOrderCount++
	if err := s.settle(ctx, tx, crew); err != nil {
		return nil, err
	}
	return crew, nil
}

// Release drops one active order from the crew; the crew returns to
// DESOCUPADO only when no active order remains.
func (s *CrewAssignmentService) Release(ctx context.Context, tx *repositories.Repositories, crewID uuid.UUID) (*models.Crew, error) {
	crew, err := s.lockCrew(ctx, tx, crewID)
	if err != nil {
		return nil, err
	}
	if crew.ActiveOrderCount > 0 {
		crew.ActiveOrderCount--
	} else {
		utils.Logger.WithField("crewID", crewID).Warn("Releasing crew with no active orders")
	}
	if err := s.settle(ctx, tx, crew); err != nil {
		return nil, err
	}
	return crew, nil
}

// RefreshOnSite recomputes the on-site flag after one of the crew's orders moved
// in or out of EN_PROGRESO.
func (s *CrewAssignmentService) RefreshOnSite(ctx context.Context, tx *repositories.Repositories, crewID uuid.UUID) (*models.Crew, error) {
	crew, err := s.lockCrew(ctx, tx, crewID)
	if err != nil {
		return nil, err
	}
	if err := s.settle(ctx, tx, crew); err != nil {
		return nil, err
	}
	return crew, nil
}

// ReportProgress mirrors the latest progress of one of the crew's orders.
func (s *CrewAssignmentService) ReportProgress(ctx context.Context, tx *repositories.Repositories, crewID uuid.UUID, percent int) error {
	crew, err := s.lockCrew(ctx, tx, crewID)
	if err != nil {
		return err
	}
	if crew.Progress == percent {
		return nil
	}
	crew.Progress = percent
	return s.save(ctx, tx, crew)
}

func (s *CrewAssignmentService) lockCrew(ctx context.Context, tx *repositories.Repositories, crewID uuid.UUID) (*models.Crew, error) {
	crew, err := tx.Crews.GetForUpdate(ctx, crewID)
	if err != nil {
		return nil, fmt.Errorf("loading crew %s: %w", crewID, err)
	}
	if crew == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrCrewNotFound, crewID)
	}
	return crew, nil
}

// settle derives the status from the active-order count and persists it.
func (s *CrewAssignmentService) settle(ctx context.Context, tx *repositories.Repositories, crew *models.Crew) error {
	switch {
	case crew.Status == models.CrewStatusOffline:
		// an offline crew never holds orders; nothing to derive
	case crew.ActiveOrderCount == 0:
		crew.Status = models.CrewStatusDesocupado
		crew.Progress = 0
	default:
		active, err := tx.WorkOrders.ListActiveByCrew(ctx, crew.ID)
		if err != nil {
			return fmt.Errorf("listing active orders of crew %s: %w", crew.ID, err)
		}
		crew.Status = models.CrewStatusOcupado
		for _, w := range active {
			if w.State == models.WorkOrderStateEnProgreso {
				crew.Status = models.CrewStatusEnTrabajo
				break
			}
		}
	}
	return s.save(ctx, tx, crew)
}

func (s *CrewAssignmentService) save(ctx context.Context, tx *repositories.Repositories, crew *models.Crew) error {
	crew.UpdatedAt = s.now().UTC()
	tag, err := tx.Crews.UpdateIfVersion(ctx, crew, crew.RowVersion)
	if err != nil {
		return fmt.Errorf("updating crew %s: %w", crew.ID, err)
	}
	if tag.RowsAffected() != 1 {
		return utils.NewRowVersionConflictError(crew)
	}
	utils.Logger.WithFields(logrus.Fields{
		"crewID":       crew.ID,
		"status":       crew.Status,
		"activeOrders": crew.ActiveOrderCount,
	}).Debug("Crew occupancy updated")
	return nil
}

// ----------------------------------------------------------------------
// Queries and operator actions outside a work order transition
// ----------------------------------------------------------------------

func (s *CrewAssignmentService) ListCrews(ctx context.Context) ([]dtos.CrewResponse, error) {
	crews, err := s.store.Repos().Crews.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dtos.CrewResponse, 0, len(crews))
	for _, c := range crews {
		out = append(out, dtos.NewCrewResponse(c))
	}
	return out, nil
}

// SetOnline toggles a crew between OFFLINE and its derived occupancy.
// A crew still holding active orders cannot go offline.
func (s *CrewAssignmentService) SetOnline(ctx context.Context, crewID uuid.UUID, online bool) (*models.Crew, error) {
	crew, err := s.store.Repos().Crews.UpdateWithRetry(ctx, crewID, func(c *models.Crew) error {
		if online {
			if c.Status != models.CrewStatusOffline {
				return nil
			}
			c.Status = models.CrewStatusDesocupado
			if c.ActiveOrderCount > 0 {
				c.Status = models.CrewStatusOcupado
			}
		} else {
			if c.ActiveOrderCount > 0 {
				return fmt.Errorf("%w: crew %s has %d active orders", utils.ErrCrewHasActiveOrders, c.Name, c.ActiveOrderCount)
			}
			c.Status = models.CrewStatusOffline
		}
		c.UpdatedAt = s.now().UTC()
		return nil
	})
	if err == repositories.ErrEntityNotFound {
		return nil, fmt.Errorf("%w: %s", utils.ErrCrewNotFound, crewID)
	}
	if err != nil {
		return nil, err
	}
	utils.Logger.WithFields(logrus.Fields{"crewID": crewID, "online": online}).Info("Crew availability changed")
	return crew, nil
}

// SuggestCrews ranks the crews able to take the order: same zone first,
// then fewest active orders, then nearest base.
func (s *CrewAssignmentService) SuggestCrews(ctx context.Context, orderID uuid.UUID, zone string, limit int) ([]dtos.CrewSuggestion, error) {
	repos := s.store.Repos()
	order, err := repos.WorkOrders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrWorkOrderNotFound, orderID)
	}
	crews, err := repos.Crews.List(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = constants.DefaultCrewSuggestions
	}

	out := []dtos.CrewSuggestion{}
	for _, c := range crews {
		if c.Status == models.CrewStatusOffline {
			continue
		}
		sug := dtos.CrewSuggestion{Crew: dtos.NewCrewResponse(c), SameZone: zone != "" && c.Zone == zone}
		if order.HasCoordinates() && c.BaseLatitude != nil && c.BaseLongitude != nil {
			mi, _ := haversine.Distance(
				haversine.Coord{Lat: *c.BaseLatitude, Lon: *c.BaseLongitude},
				haversine.Coord{Lat: *order.Latitude, Lon: *order.Longitude},
			)
			sug.DistanceMiles = &mi
		}
		out = append(out, sug)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SameZone != b.SameZone {
			return a.SameZone
		}
		if a.Crew.ActiveOrderCount != b.Crew.ActiveOrderCount {
			return a.Crew.ActiveOrderCount < b.Crew.ActiveOrderCount
		}
		switch {
		case a.DistanceMiles != nil && b.DistanceMiles != nil:
			return *a.DistanceMiles < *b.DistanceMiles
		case a.DistanceMiles != nil:
			return true
		default:
			return false
		}
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
