package testhelpers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"

	"github.com/poofware/backoffice-service/internal/constants"
	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/repositories"
	"github.com/poofware/backoffice-service/internal/utils"
)

// Operations that can be made to fail once with FailNext.
const (
	OpWorkOrderUpdate    = "work_orders.update"
	OpCrewUpdate         = "crews.update"
	OpTimelineAppend     = "timeline.append"
	OpSubscriptionUpdate = "subscriptions.update"
	OpPaymentCreate      = "payments.create"
	OpPaymentSettle      = "payments.settle"
)

var (
	tagUpdated   = pgconn.CommandTag("UPDATE 1")
	tagUnchanged = pgconn.CommandTag("UPDATE 0")
)

// ErrDuplicateKey mimics a unique constraint violation.
var ErrDuplicateKey = errors.New("duplicate key value violates unique constraint")

/*
MemoryStore is an in-memory repositories.Store with the transactional
contract of the Postgres one:

  - transactions run one at a time, which stands in for row locks;
  - a transaction whose function fails or panics leaves no trace;
  - every read returns a copy, so callers only change state through
    repository writes.
*/
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	d    *memData

	faults map[string]error
	repos  *repositories.Repositories
}

type memData struct {
	workOrders    map[uuid.UUID]*models.WorkOrder
	timeline      map[uuid.UUID][]*models.TimelineEvent
	crews         map[uuid.UUID]*models.Crew
	customers     map[uuid.UUID]*models.Customer
	properties    map[uuid.UUID]*models.Property
	plans         map[uuid.UUID]*models.Plan
	subscriptions map[uuid.UUID]*models.Subscription
	payments      map[uuid.UUID]*models.Payment
}

func newMemData() *memData {
	return &memData{
		workOrders:    map[uuid.UUID]*models.WorkOrder{},
		timeline:      map[uuid.UUID][]*models.TimelineEvent{},
		crews:         map[uuid.UUID]*models.Crew{},
		customers:     map[uuid.UUID]*models.Customer{},
		properties:    map[uuid.UUID]*models.Property{},
		plans:         map[uuid.UUID]*models.Plan{},
		subscriptions: map[uuid.UUID]*models.Subscription{},
		payments:      map[uuid.UUID]*models.Payment{},
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.workOrders {
		c.workOrders[k] = v.Clone()
	}
	for k, v := range d.timeline {
		c.timeline[k] = append([]*models.TimelineEvent(nil), v...)
	}
	for k, v := range d.crews {
		c.crews[k] = v.Clone()
	}
	for k, v := range d.customers {
		c.customers[k] = v.Clone()
	}
	for k, v := range d.properties {
		c.properties[k] = v.Clone()
	}
	for k, v := range d.plans {
		c.plans[k] = v.Clone()
	}
	for k, v := range d.subscriptions {
		c.subscriptions[k] = v.Clone()
	}
	for k, v := range d.payments {
		c.payments[k] = v.Clone()
	}
	return c
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{d: newMemData(), faults: map[string]error{}}
	s.repos = &repositories.Repositories{
		WorkOrders:    &memWorkOrders{s},
		Timeline:      &memTimeline{s},
		Crews:         &memCrews{s},
		Customers:     &memCustomers{s},
		Properties:    &memProperties{s},
		Plans:         &memPlans{s},
		Subscriptions: &memSubscriptions{s},
		Payments:      &memPayments{s},
	}
	return s
}

func (s *MemoryStore) Repos() *repositories.Repositories {
	return s.repos
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx *repositories.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()
	return fn(s.repos)
}

func (s *MemoryStore) restore(d *memData) {
	s.mu.Lock()
	s.d = d
	s.mu.Unlock()
}

// FailNext makes the next call of op return err.
func (s *MemoryStore) FailNext(op string, err error) {
	s.mu.Lock()
	s.faults[op] = err
	s.mu.Unlock()
}

// fault consumes the injected error of op. Callers hold s.mu.
func (s *MemoryStore) fault(op string) error {
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)
	return err
}

// ----------------------------------------------------------------------
// Work orders
// ----------------------------------------------------------------------

type memWorkOrders struct{ s *MemoryStore }

func (r *memWorkOrders) Create(_ context.Context, w *models.WorkOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.workOrders[w.ID]; ok {
		return ErrDuplicateKey
	}
	w.RowVersion = 1
	w.UpdatedAt = w.CreatedAt
	r.s.d.workOrders[w.ID] = w.Clone()
	return nil
}

func (r *memWorkOrders) GetByID(_ context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.d.workOrders[id].Clone(), nil
}

func (r *memWorkOrders) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.WorkOrder, error) {
	return r.GetByID(ctx, id)
}

func (r *memWorkOrders) UpdateIfVersion(_ context.Context, w *models.WorkOrder, expectedVersion int64) (pgconn.CommandTag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpWorkOrderUpdate); err != nil {
		return nil, err
	}
	cur := r.s.d.workOrders[w.ID]
	if cur == nil || cur.RowVersion != expectedVersion {
		return tagUnchanged, nil
	}
	next := cur.Clone()
	next.CrewID = w.Clone().CrewID
	next.State = w.State
	next.Progress = w.Progress
	next.ScheduledFor = w.Clone().ScheduledFor
	next.CompletedAt = w.Clone().CompletedAt
	next.CanceledAt = w.Clone().CanceledAt
	next.UpdatedAt = w.UpdatedAt
	next.RowVersion = expectedVersion + 1
	r.s.d.workOrders[w.ID] = next
	w.SetRowVersion(expectedVersion + 1)
	return tagUpdated, nil
}

func (r *memWorkOrders) List(_ context.Context, f repositories.WorkOrderFilter, skip, take int) ([]*models.WorkOrder, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*models.WorkOrder
	for _, w := range r.s.d.workOrders {
		if f.CustomerID != nil && w.CustomerID != *f.CustomerID {
			continue
		}
		if f.CrewID != nil && (w.CrewID == nil || *w.CrewID != *f.CrewID) {
			continue
		}
		if f.State != nil && w.State != *f.State {
			continue
		}
		if f.ServiceCategory != nil && w.ServiceCategory != *f.ServiceCategory {
			continue
		}
		all = append(all, w.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	total := len(all)
	out := []*models.WorkOrder{}
	if skip < total {
		end := min(skip+take, total)
		out = append(out, all[skip:end]...)
	}
	return out, total, nil
}

func (r *memWorkOrders) ListActiveByCrew(_ context.Context, crewID uuid.UUID) ([]*models.WorkOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.WorkOrder
	for _, w := range r.s.d.workOrders {
		if w.CrewID != nil && *w.CrewID == crewID && w.State.HoldsCrew() {
			out = append(out, w.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ----------------------------------------------------------------------
// Timeline
// ----------------------------------------------------------------------

type memTimeline struct{ s *MemoryStore }

func (r *memTimeline) Append(_ context.Context, e *models.TimelineEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpTimelineAppend); err != nil {
		return err
	}
	for _, existing := range r.s.d.timeline[e.WorkOrderID] {
		if existing.Seq == e.Seq || existing.ID == e.ID {
			return ErrDuplicateKey
		}
	}
	r.s.d.timeline[e.WorkOrderID] = append(r.s.d.timeline[e.WorkOrderID], e.Clone())
	return nil
}

func (r *memTimeline) ListByWorkOrder(_ context.Context, workOrderID uuid.UUID) ([]*models.TimelineEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.TimelineEvent{}
	for _, e := range r.s.d.timeline[workOrderID] {
		out = append(out, e.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (r *memTimeline) Last(_ context.Context, workOrderID uuid.UUID) (*models.TimelineEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var last *models.TimelineEvent
	for _, e := range r.s.d.timeline[workOrderID] {
		if last == nil || e.Seq > last.Seq {
			last = e
		}
	}
	return last.Clone(), nil
}

// ----------------------------------------------------------------------
// Crews
// ----------------------------------------------------------------------

type memCrews struct{ s *MemoryStore }

func (r *memCrews) Create(_ context.Context, c *models.Crew) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.crews[c.ID]; ok {
		return ErrDuplicateKey
	}
	c.RowVersion = 1
	c.UpdatedAt = c.CreatedAt
	r.s.d.crews[c.ID] = c.Clone()
	return nil
}

func (r *memCrews) GetByID(_ context.Context, id uuid.UUID) (*models.Crew, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.d.crews[id].Clone(), nil
}

func (r *memCrews) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Crew, error) {
	return r.GetByID(ctx, id)
}

func (r *memCrews) List(_ context.Context) ([]*models.Crew, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.Crew{}
	for _, c := range r.s.d.crews {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *memCrews) UpdateIfVersion(_ context.Context, c *models.Crew, expectedVersion int64) (pgconn.CommandTag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpCrewUpdate); err != nil {
		return nil, err
	}
	cur := r.s.d.crews[c.ID]
	if cur == nil || cur.RowVersion != expectedVersion {
		return tagUnchanged, nil
	}
	next := cur.Clone()
	src := c.Clone()
	next.Name = src.Name
	next.Zone = src.Zone
	next.Status = src.Status
	next.ActiveOrderCount = src.ActiveOrderCount
	next.Members = src.Members
	next.Progress = src.Progress
	next.UpdatedAt = src.UpdatedAt
	next.RowVersion = expectedVersion + 1
	r.s.d.crews[c.ID] = next
	c.SetRowVersion(expectedVersion + 1)
	return tagUpdated, nil
}

func (r *memCrews) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Crew) error) (*models.Crew, error) {
	return repositories.WithRetry(ctx, constants.MaxOptimisticRetries, id, r.GetByID, r.UpdateIfVersion, mutate)
}

// ----------------------------------------------------------------------
// Customers, properties, plans
// ----------------------------------------------------------------------

type memCustomers struct{ s *MemoryStore }

func (r *memCustomers) Create(_ context.Context, c *models.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.customers[c.ID]; ok {
		return ErrDuplicateKey
	}
	r.s.d.customers[c.ID] = c.Clone()
	return nil
}

func (r *memCustomers) GetByID(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.d.customers[id].Clone(), nil
}

type memProperties struct{ s *MemoryStore }

func (r *memProperties) Create(_ context.Context, p *models.Property) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.properties[p.ID]; ok {
		return ErrDuplicateKey
	}
	r.s.d.properties[p.ID] = p.Clone()
	return nil
}

func (r *memProperties) GetByID(_ context.Context, id uuid.UUID) (*models.Property, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.d.properties[id].Clone(), nil
}

type memPlans struct{ s *MemoryStore }

func (r *memPlans) Create(_ context.Context, p *models.Plan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.plans[p.ID]; ok {
		return ErrDuplicateKey
	}
	r.s.d.plans[p.ID] = p.Clone()
	return nil
}

func (r *memPlans) GetByID(_ context.Context, id uuid.UUID) (*models.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.d.plans[id].Clone(), nil
}

func (r *memPlans) List(_ context.Context, activeOnly bool) ([]*models.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.Plan{}
	for _, p := range r.s.d.plans {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Price.Equal(out[j].Price) {
			return out[i].Price.LessThan(out[j].Price)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ----------------------------------------------------------------------
// Subscriptions
// ----------------------------------------------------------------------

type memSubscriptions struct{ s *MemoryStore }

func (r *memSubscriptions) Create(_ context.Context, sub *models.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.d.subscriptions[sub.ID]; ok {
		return ErrDuplicateKey
	}
	sub.RowVersion = 1
	sub.UpdatedAt = sub.CreatedAt
	r.s.d.subscriptions[sub.ID] = sub.Clone()
	return nil
}

func (r *memSubscriptions) GetByID(_ context.Context, id uuid.UUID) (*models.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.d.subscriptions[id].Clone(), nil
}

func (r *memSubscriptions) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return r.GetByID(ctx, id)
}

func (r *memSubscriptions) List(_ context.Context, customerID *uuid.UUID, status *models.SubscriptionStatus) ([]*models.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Subscription
	for _, sub := range r.s.d.subscriptions {
		if customerID != nil && sub.CustomerID != *customerID {
			continue
		}
		if status != nil && sub.Status != *status {
			continue
		}
		out = append(out, sub.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *memSubscriptions) ListDue(_ context.Context, now time.Time) ([]*models.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Subscription
	for _, sub := range r.s.d.subscriptions {
		if sub.Status == models.SubscriptionCanceled || sub.Status == models.SubscriptionPaused {
			continue
		}
		if sub.CurrentPeriodEnd.After(now) {
			continue
		}
		out = append(out, sub.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CurrentPeriodEnd.Equal(out[j].CurrentPeriodEnd) {
			return out[i].CurrentPeriodEnd.Before(out[j].CurrentPeriodEnd)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *memSubscriptions) UpdateIfVersion(_ context.Context, sub *models.Subscription, expectedVersion int64) (pgconn.CommandTag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpSubscriptionUpdate); err != nil {
		return nil, err
	}
	cur := r.s.d.subscriptions[sub.ID]
	if cur == nil || cur.RowVersion != expectedVersion {
		return tagUnchanged, nil
	}
	next := cur.Clone()
	src := sub.Clone()
	next.PlanID = src.PlanID
	next.Status = src.Status
	next.CurrentPeriodStart = src.CurrentPeriodStart
	next.CurrentPeriodEnd = src.CurrentPeriodEnd
	next.NextChargeAt = src.NextChargeAt
	next.ConsecutiveFailures = src.ConsecutiveFailures
	next.CanceledAt = src.CanceledAt
	next.UpdatedAt = src.UpdatedAt
	next.RowVersion = expectedVersion + 1
	r.s.d.subscriptions[sub.ID] = next
	sub.SetRowVersion(expectedVersion + 1)
	return tagUpdated, nil
}

// ----------------------------------------------------------------------
// Payments
// ----------------------------------------------------------------------

type memPayments struct{ s *MemoryStore }

func (r *memPayments) Create(_ context.Context, p *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpPaymentCreate); err != nil {
		return err
	}
	if _, ok := r.s.d.payments[p.ID]; ok {
		return ErrDuplicateKey
	}
	if open := r.openForPeriod(p.SubscriptionID, p.PeriodStart); open != nil && isOpen(p.Status) {
		return fmt.Errorf("payment for period %s: %w", p.PeriodStart.Format(time.RFC3339), utils.ErrChargeInProgress)
	}
	p.UpdatedAt = p.CreatedAt
	r.s.d.payments[p.ID] = p.Clone()
	return nil
}

func (r *memPayments) GetByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.d.payments[id].Clone(), nil
}

func (r *memPayments) FindOpenForPeriod(_ context.Context, subscriptionID uuid.UUID, periodStart time.Time) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.openForPeriod(subscriptionID, periodStart).Clone(), nil
}

func (r *memPayments) openForPeriod(subscriptionID uuid.UUID, periodStart time.Time) *models.Payment {
	for _, p := range r.s.d.payments {
		if p.SubscriptionID == subscriptionID && p.PeriodStart.Equal(periodStart) && isOpen(p.Status) {
			return p
		}
	}
	return nil
}

func isOpen(s models.PaymentStatus) bool {
	return s == models.PaymentPending || s == models.PaymentPosted
}

func (r *memPayments) LatestPosted(_ context.Context, subscriptionID uuid.UUID) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.Payment
	for _, p := range r.s.d.payments {
		if p.SubscriptionID != subscriptionID || p.Status != models.PaymentPosted {
			continue
		}
		if latest == nil || p.PeriodStart.After(latest.PeriodStart) {
			latest = p
		}
	}
	return latest.Clone(), nil
}

func (r *memPayments) ListBySubscription(_ context.Context, subscriptionID uuid.UUID) ([]*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Payment
	for _, p := range r.s.d.payments {
		if p.SubscriptionID == subscriptionID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *memPayments) Settle(_ context.Context, p *models.Payment) (pgconn.CommandTag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpPaymentSettle); err != nil {
		return nil, err
	}
	cur := r.s.d.payments[p.ID]
	if cur == nil || cur.Status != models.PaymentPending {
		return tagUnchanged, nil
	}
	src := p.Clone()
	next := cur.Clone()
	next.Status = src.Status
	next.PaidAt = src.PaidAt
	next.Note = src.Note
	next.ProviderPaymentID = src.ProviderPaymentID
	next.UpdatedAt = src.UpdatedAt
	r.s.d.payments[p.ID] = next
	return tagUpdated, nil
}

// ----------------------------------------------------------------------
// Inspection helpers for tests
// ----------------------------------------------------------------------

// Timeline returns the stored events of a work order, oldest first.
func (s *MemoryStore) Timeline(workOrderID uuid.UUID) []*models.TimelineEvent {
	events, _ := s.repos.Timeline.ListByWorkOrder(context.Background(), workOrderID)
	return events
}

// CountEvents counts the stored events of one type for a work order.
func (s *MemoryStore) CountEvents(workOrderID uuid.UUID, t models.TimelineEventType) int {
	n := 0
	for _, e := range s.Timeline(workOrderID) {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (s *MemoryStore) Crew(id uuid.UUID) *models.Crew {
	c, _ := s.repos.Crews.GetByID(context.Background(), id)
	return c
}

func (s *MemoryStore) WorkOrder(id uuid.UUID) *models.WorkOrder {
	w, _ := s.repos.WorkOrders.GetByID(context.Background(), id)
	return w
}

func (s *MemoryStore) Subscription(id uuid.UUID) *models.Subscription {
	sub, _ := s.repos.Subscriptions.GetByID(context.Background(), id)
	return sub
}

func (s *MemoryStore) Payments(subscriptionID uuid.UUID) []*models.Payment {
	ps, _ := s.repos.Payments.ListBySubscription(context.Background(), subscriptionID)
	return ps
}

// PutPayment stores p as is, bypassing the open-payment guard. Tests use it
// to stage leftovers of an interrupted run.
func (s *MemoryStore) PutPayment(p *models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.payments[p.ID] = p.Clone()
}

// WorkOrdersBySubscription lists the orders a subscription spawned.
func (s *MemoryStore) WorkOrdersBySubscription(subscriptionID uuid.UUID) []*models.WorkOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.WorkOrder
	for _, w := range s.d.workOrders {
		if w.SubscriptionID != nil && *w.SubscriptionID == subscriptionID {
			out = append(out, w.Clone())
		}
	}
	return out
}
