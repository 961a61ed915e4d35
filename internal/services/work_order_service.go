package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/poofware/backoffice-service/internal/constants"
	"github.com/poofware/backoffice-service/internal/dtos"
	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/repositories"
	"github.com/poofware/backoffice-service/internal/utils"
)

// workOrderTransitions lists the legal targets of every state. Terminal
// states have none.
var workOrderTransitions = map[models.WorkOrderState][]models.WorkOrderState{
	models.WorkOrderStatePendiente: {
		models.WorkOrderStateAsignada,
		models.WorkOrderStateCancelada,
	},
	models.WorkOrderStateAsignada: {
		models.WorkOrderStateEnCamino,
		models.WorkOrderStateEnProgreso,
		models.WorkOrderStatePendiente,
		models.WorkOrderStateCancelada,
	},
	models.WorkOrderStateEnCamino: {
		models.WorkOrderStateEnProgreso,
		models.WorkOrderStateCancelada,
	},
	models.WorkOrderStateEnProgreso: {
		models.WorkOrderStateFinalizada,
		models.WorkOrderStateCancelada,
	},
}

// CanTransition reports whether a work order may move from one state to another.
func CanTransition(from, to models.WorkOrderState) bool {
	return slices.Contains(workOrderTransitions[from], to)
}

// WorkOrderInput is what an operator (or the billing engine) provides to
// open a work order.
type WorkOrderInput struct {
	CustomerID      uuid.UUID
	PropertyID      *uuid.UUID
	SubscriptionID  *uuid.UUID
	ServiceCategory string
	Situation       string
	Priority        models.WorkOrderPriority
	Channel         string
	HazardFlag      bool
	Address         string
	Latitude        *float64
	Longitude       *float64
	ScheduledFor    *time.Time
}

// TransitionOptions carries the optional parts of a mutating request.
// ExpectedVersion, when set, must match the stored row version.
type TransitionOptions struct {
	Note            *string
	ActorID         *uuid.UUID
	ExpectedVersion *int64
	CrewID          *uuid.UUID
}

type WorkOrderService struct {
	store     repositories.Store
	crews     *CrewAssignmentService
	timeline  *TimelineRecorder
	notifier  Notifier
	now       Clock
	defaultTZ string
}

func NewWorkOrderService(
	store repositories.Store,
	crews *CrewAssignmentService,
	timeline *TimelineRecorder,
	notifier Notifier,
	now Clock,
	defaultTZ string,
) *WorkOrderService {
	if now == nil {
		now = SystemClock
	}
	if defaultTZ == "" {
		defaultTZ = constants.DefaultTimeZone
	}
	return &WorkOrderService{
		store:     store,
		crews:     crews,
		timeline:  timeline,
		notifier:  notifier,
		now:       now,
		defaultTZ: defaultTZ,
	}
}

// ----------------------------------------------------------------------
// Creation
// ----------------------------------------------------------------------

func (s *WorkOrderService) Create(ctx context.Context, in WorkOrderInput, actor *uuid.UUID) (*models.WorkOrder, error) {
	var created *models.WorkOrder
	err := s.store.WithTx(ctx, func(tx *repositories.Repositories) error {
		w, err := s.CreateInTx(ctx, tx, in, actor)
		created = w
		return err
	})
	if err != nil {
		return nil, err
	}
	utils.Logger.WithFields(logrus.Fields{
		"workOrderID": created.ID,
		"category":    created.ServiceCategory,
		"priority":    created.Priority,
	}).Info("Work order created")
	return created, nil
}

// CreateInTx opens a PENDIENTE work order inside an existing transaction.
// The billing engine uses it to spawn recurring service.
func (s *WorkOrderService) CreateInTx(
	ctx context.Context,
	tx *repositories.Repositories,
	in WorkOrderInput,
	actor *uuid.UUID,
) (*models.WorkOrder, error) {
	category := strings.TrimSpace(in.ServiceCategory)
	if category == "" {
		return nil, utils.NewValidationError("service_category", "is required")
	}
	situation := strings.TrimSpace(in.Situation)
	if situation == "" {
		return nil, utils.NewValidationError("situacion", "is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedia
	}
	if !priority.IsValid() {
		return nil, utils.NewValidationError("prioridad", "must be one of BAJA, MEDIA, ALTA or EMERGENCIA")
	}
	channel := strings.ToUpper(strings.TrimSpace(in.Channel))
	if channel == "" {
		channel = models.ChannelWeb
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, utils.NewValidationError("latitude", "latitude and longitude go together")
	}

	customer, err := tx.Customers.GetByID(ctx, in.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("loading customer %s: %w", in.CustomerID, err)
	}
	if customer == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrCustomerNotFound, in.CustomerID)
	}

	w := &models.WorkOrder{
		ID:              uuid.New(),
		CustomerID:      customer.ID,
		PropertyID:      in.PropertyID,
		SubscriptionID:  in.SubscriptionID,
		ServiceCategory: category,
		Situation:       situation,
		Priority:        priority,
		Channel:         channel,
		HazardFlag:      in.HazardFlag,
		State:           models.WorkOrderStatePendiente,
		Address:         strings.TrimSpace(in.Address),
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
		ScheduledFor:    in.ScheduledFor,
		CreatedAt:       s.now().UTC(),
	}

	if in.PropertyID != nil {
		prop, err := tx.Properties.GetByID(ctx, *in.PropertyID)
		if err != nil {
			return nil, fmt.Errorf("loading property %s: %w", *in.PropertyID, err)
		}
		if prop == nil {
			return nil, fmt.Errorf("%w: %s", utils.ErrPropertyNotFound, *in.PropertyID)
		}
		if prop.CustomerID != customer.ID {
			return nil, utils.NewValidationError("property_id", "does not belong to the customer")
		}
		if w.Address == "" {
			w.Address = prop.Address
		}
		if !w.HasCoordinates() {
			w.Latitude, w.Longitude = utils.Ptr(prop.Latitude), utils.Ptr(prop.Longitude)
		}
		w.TimeZone = prop.TimeZone
	}
	if w.TimeZone == "" && w.HasCoordinates() {
		w.TimeZone = utils.ZoneNameFor(*w.Latitude, *w.Longitude)
	}
	if w.TimeZone == "" {
		w.TimeZone = s.defaultTZ
	}

	if err := tx.WorkOrders.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("inserting work order: %w", err)
	}
	created := &models.TimelineEvent{
		WorkOrderID: w.ID,
		Type:        models.TimelineEventCreated,
		ActorID:     actor,
		ToState:     utils.Ptr(models.WorkOrderStatePendiente),
	}
	if err := s.timeline.Record(ctx, tx, created); err != nil {
		return nil, err
	}
	return w, nil
}

// ----------------------------------------------------------------------
// State machine
// ----------------------------------------------------------------------

// Transition moves a work order to target. The row is locked for the whole
// transaction so concurrent callers serialize; the loser sees the winner's
// state and fails with a TransitionError or a row version conflict.
func (s *WorkOrderService) Transition(
	ctx context.Context,
	id uuid.UUID,
	target models.WorkOrderState,
	opts TransitionOptions,
) (*models.WorkOrder, error) {
	if !target.IsValid() {
		return nil, utils.NewValidationError("state", "is not a work order state")
	}

	var out *models.WorkOrder
	err := s.store.WithTx(ctx, func(tx *repositories.Repositories) error {
		w, err := s.lockOrder(ctx, tx, id, opts.ExpectedVersion)
		if err != nil {
			return err
		}
		out, err = s.applyTransition(ctx, tx, w, target, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(out)
	return out, nil
}

func (s *WorkOrderService) applyTransition(
	ctx context.Context,
	tx *repositories.Repositories,
	w *models.WorkOrder,
	target models.WorkOrderState,
	opts TransitionOptions,
) (*models.WorkOrder, error) {
	from := w.State
	if !CanTransition(from, target) {
		return nil, &utils.TransitionError{From: from, To: target}
	}

	now := s.now().UTC()
	eventCrew := w.CrewID
	var acquire, release *uuid.UUID
	refresh := false

	switch target {
	case models.WorkOrderStateAsignada:
		crewID := opts.CrewID
		if crewID == nil {
			crewID = w.CrewID
		}
		if crewID == nil {
			return nil, fmt.Errorf("%w: assigning requires a crew", utils.ErrCrewRequired)
		}
		w.CrewID = crewID
		acquire, eventCrew = crewID, crewID
	case models.WorkOrderStatePendiente:
		release = w.CrewID
		w.CrewID = nil
	case models.WorkOrderStateEnCamino, models.WorkOrderStateEnProgreso:
		if w.CrewID == nil {
			return nil, fmt.Errorf("%w: %s requires an assigned crew", utils.ErrCrewRequired, target)
		}
		refresh = true
	case models.WorkOrderStateFinalizada:
		if w.CrewID == nil {
			return nil, fmt.Errorf("%w: finalizing requires an assigned crew", utils.ErrCrewRequired)
		}
		w.Progress = constants.MaxProgress
		w.CompletedAt = &now
		release = w.CrewID
	case models.WorkOrderStateCancelada:
		// progress is kept as it was when canceled
		w.CanceledAt = &now
		release = w.CrewID
		w.CrewID = nil
	}

	w.State = target
	w.UpdatedAt = now
	if err := s.save(ctx, tx, w); err != nil {
		return nil, err
	}

	// crew rows are locked after the work order row
	if acquire != nil {
		if _, err := s.crews.Acquire(ctx, tx, *acquire); err != nil {
			return nil, err
		}
	}
	if release != nil {
		if _, err := s.crews.Release(ctx, tx, *release); err != nil {
			return nil, err
		}
	}
	if refresh {
		if _, err := s.crews.RefreshOnSite(ctx, tx, *w.CrewID); err != nil {
			return nil, err
		}
	}

	changed := &models.TimelineEvent{
		WorkOrderID: w.ID,
		Type:        models.TimelineEventStateChanged,
		Note:        opts.Note,
		ActorID:     opts.ActorID,
		FromState:   utils.Ptr(from),
		ToState:     utils.Ptr(target),
		CrewID:      eventCrew,
	}
	if err := s.timeline.Record(ctx, tx, changed); err != nil {
		return nil, err
	}
	if acquire != nil {
		assigned := &models.TimelineEvent{
			WorkOrderID: w.ID,
			Type:        models.TimelineEventAssigned,
			ActorID:     opts.ActorID,
			CrewID:      acquire,
		}
		if err := s.timeline.Record(ctx, tx, assigned); err != nil {
			return nil, err
		}
	}

	utils.Logger.WithFields(logrus.Fields{
		"workOrderID": w.ID,
		"from":        from,
		"to":          target,
	}).Info("Work order transitioned")
	return w, nil
}

// AssignCrew attaches crewID to the order. From PENDIENTE this is the
// ASIGNADA transition; past it the crew is swapped without a state change.
func (s *WorkOrderService) AssignCrew(
	ctx context.Context,
	id, crewID uuid.UUID,
	opts TransitionOptions,
) (*models.WorkOrder, error) {
	var out *models.WorkOrder
	err := s.store.WithTx(ctx, func(tx *repositories.Repositories) error {
		w, err := s.lockOrder(ctx, tx, id, opts.ExpectedVersion)
		if err != nil {
			return err
		}
		if w.State.IsTerminal() {
			return fmt.Errorf("%w: work order is %s", utils.ErrTerminalState, w.State)
		}
		if uuidPtrEqual(w.CrewID, crewID) {
			out = w
			return nil
		}
		if w.State == models.WorkOrderStatePendiente {
			opts.CrewID = &crewID
			out, err = s.applyTransition(ctx, tx, w, models.WorkOrderStateAsignada, opts)
			return err
		}

		prev := w.CrewID
		w.CrewID = &crewID
		w.UpdatedAt = s.now().UTC()
		if err := s.save(ctx, tx, w); err != nil {
			return err
		}
		if err := s.swapCrews(ctx, tx, prev, crewID); err != nil {
			return err
		}
		assigned := &models.TimelineEvent{
			WorkOrderID: w.ID,
			Type:        models.TimelineEventAssigned,
			Note:        opts.Note,
			ActorID:     opts.ActorID,
			CrewID:      &crewID,
		}
		if err := s.timeline.Record(ctx, tx, assigned); err != nil {
			return err
		}
		utils.Logger.WithFields(logrus.Fields{
			"workOrderID": w.ID,
			"crewID":      crewID,
		}).Info("Work order reassigned")
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// swapCrews acquires next and releases prev, locking both in id order so two
// opposite reassignments cannot deadlock.
func (s *WorkOrderService) swapCrews(ctx context.Context, tx *repositories.Repositories, prev *uuid.UUID, next uuid.UUID) error {
	if prev == nil {
		_, err := s.crews.Acquire(ctx, tx, next)
		return err
	}
	if next.String() < prev.String() {
		if _, err := s.crews.Acquire(ctx, tx, next); err != nil {
			return err
		}
		_, err := s.crews.Release(ctx, tx, *prev)
		return err
	}
	if _, err := s.crews.Release(ctx, tx, *prev); err != nil {
		return err
	}
	_, err := s.crews.Acquire(ctx, tx, next)
	return err
}

// UpdateProgress records a new completion percentage. Reaching 100 finalizes
// an order that is EN_PROGRESO; a repeated value changes nothing.
func (s *WorkOrderService) UpdateProgress(
	ctx context.Context,
	id uuid.UUID,
	percent int,
	opts TransitionOptions,
) (*models.WorkOrder, error) {
	if percent < 0 || percent > constants.MaxProgress {
		return nil, fmt.Errorf("%w: progress must be between 0 and %d, got %d", utils.ErrOutOfRange, constants.MaxProgress, percent)
	}

	var out *models.WorkOrder
	err := s.store.WithTx(ctx, func(tx *repositories.Repositories) error {
		w, err := s.lockOrder(ctx, tx, id, opts.ExpectedVersion)
		if err != nil {
			return err
		}
		if w.State.IsTerminal() {
			return fmt.Errorf("%w: work order is %s", utils.ErrTerminalState, w.State)
		}
		if w.Progress == percent {
			out = w
			return nil
		}
		if percent == constants.MaxProgress && w.State != models.WorkOrderStateEnProgreso {
			return &utils.TransitionError{From: w.State, To: models.WorkOrderStateFinalizada}
		}

		updated := &models.TimelineEvent{
			WorkOrderID: w.ID,
			Type:        models.TimelineEventProgressUpdated,
			Note:        opts.Note,
			ActorID:     opts.ActorID,
			Progress:    utils.Ptr(percent),
		}
		if percent == constants.MaxProgress {
			if err := s.timeline.Record(ctx, tx, updated); err != nil {
				return err
			}
			out, err = s.applyTransition(ctx, tx, w, models.WorkOrderStateFinalizada, TransitionOptions{ActorID: opts.ActorID})
			return err
		}

		w.Progress = percent
		w.UpdatedAt = s.now().UTC()
		if err := s.save(ctx, tx, w); err != nil {
			return err
		}
		if err := s.timeline.Record(ctx, tx, updated); err != nil {
			return err
		}
		if w.CrewID != nil {
			if err := s.crews.ReportProgress(ctx, tx, *w.CrewID, percent); err != nil {
				return err
			}
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(out)
	return out, nil
}

// AddNote annotates the history. Terminal orders accept notes too.
func (s *WorkOrderService) AddNote(ctx context.Context, id uuid.UUID, note string, actor *uuid.UUID) (*models.TimelineEvent, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, utils.NewValidationError("note", "is required")
	}
	event := &models.TimelineEvent{
		WorkOrderID: id,
		Type:        models.TimelineEventNote,
		Note:        &note,
		ActorID:     actor,
	}
	err := s.store.WithTx(ctx, func(tx *repositories.Repositories) error {
		if _, err := s.lockOrder(ctx, tx, id, nil); err != nil {
			return err
		}
		return s.timeline.Record(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *WorkOrderService) lockOrder(ctx context.Context, tx *repositories.Repositories, id uuid.UUID, expected *int64) (*models.WorkOrder, error) {
	w, err := tx.WorkOrders.GetForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading work order %s: %w", id, err)
	}
	if w == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrWorkOrderNotFound, id)
	}
	if expected != nil && *expected != w.RowVersion {
		return nil, utils.NewRowVersionConflictError(w)
	}
	return w, nil
}

func (s *WorkOrderService) save(ctx context.Context, tx *repositories.Repositories, w *models.WorkOrder) error {
	tag, err := tx.WorkOrders.UpdateIfVersion(ctx, w, w.RowVersion)
	if err != nil {
		return fmt.Errorf("updating work order %s: %w", w.ID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("work order %s: %w", w.ID, utils.ErrRowVersionConflict)
	}
	return nil
}

func (s *WorkOrderService) afterCommit(w *models.WorkOrder) {
	if w == nil || s.notifier == nil {
		return
	}
	// only a call that just finalized the order can return it FINALIZADA
	if w.State == models.WorkOrderStateFinalizada {
		s.notifier.WorkOrderCompleted(w.Clone())
	}
}

// ----------------------------------------------------------------------
// Reads
// ----------------------------------------------------------------------

func (s *WorkOrderService) Get(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	w, err := s.store.Repos().WorkOrders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrWorkOrderNotFound, id)
	}
	return w, nil
}

func (s *WorkOrderService) List(ctx context.Context, f repositories.WorkOrderFilter, skip, take int) (*dtos.WorkOrderPage, error) {
	skip, take = normalizePage(skip, take)
	items, total, err := s.store.Repos().WorkOrders.List(ctx, f, skip, take)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.WorkOrder{}
	}
	return &dtos.WorkOrderPage{Items: items, Total: total, Skip: skip, Take: take}, nil
}

func (s *WorkOrderService) GetTimeline(ctx context.Context, id uuid.UUID) (*dtos.TimelineResponse, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.store.Repos().Timeline.ListByWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*models.TimelineEvent{}
	}
	return &dtos.TimelineResponse{WorkOrderID: id, Events: events}, nil
}

// GetTimelineAnalysis groups the timeline into workdays in the order's own
// time zone.
func (s *WorkOrderService) GetTimelineAnalysis(ctx context.Context, id uuid.UUID) (*dtos.TimelineAnalysis, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := s.store.Repos().Timeline.ListByWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	loc := utils.LoadLocation(w.TimeZone, s.defaultTZ)
	workdays, elapsed, inProgress := AnalyzeTimeline(events, loc)
	return &dtos.TimelineAnalysis{
		WorkOrderID:            id,
		TimeZone:               loc.String(),
		Workdays:               workdays,
		TotalElapsedSeconds:    int64(elapsed / time.Second),
		TotalInProgressSeconds: int64(inProgress / time.Second),
		ProductivityRatio:      ratio(inProgress, elapsed),
	}, nil
}
