package testhelpers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/poofware/backoffice-service/internal/constants"
	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/services"
	"github.com/poofware/backoffice-service/internal/utils"
)

// Env wires every service against a MemoryStore and fakes.
type Env struct {
	Store     *MemoryStore
	Clock     *FakeClock
	Gateway   *FakeGateway
	Notifier  *RecordingNotifier
	Receipts  *MemoryReceiptArchive
	Crews     *services.CrewAssignmentService
	Orders    *services.WorkOrderService
	Billing   *services.BillingService
	Scheduler *services.BillingSchedulerService
}

// DefaultNow is a Tuesday morning in Buenos Aires.
var DefaultNow = time.Date(2025, time.March, 11, 13, 0, 0, 0, time.UTC)

func NewEnv(t *testing.T) *Env {
	t.Helper()
	e := &Env{
		Store:    NewMemoryStore(),
		Clock:    NewFakeClock(DefaultNow),
		Gateway:  NewFakeGateway(),
		Notifier: NewRecordingNotifier(),
		Receipts: &MemoryReceiptArchive{},
	}
	now := e.Clock.Now
	e.Crews = services.NewCrewAssignmentService(e.Store, now)
	e.Orders = services.NewWorkOrderService(
		e.Store, e.Crews, services.NewTimelineRecorder(now), e.Notifier, now, constants.DefaultTimeZone,
	)
	e.Billing = services.NewBillingService(
		e.Store, e.Gateway, e.Orders, e.Notifier, e.Receipts, now, constants.DefaultTimeZone,
	)
	e.Scheduler = services.NewBillingSchedulerService(e.Store, e.Billing, now)
	return e
}

func (e *Env) SeedCustomer(t *testing.T, mutate ...func(*models.Customer)) *models.Customer {
	t.Helper()
	c := &models.Customer{
		ID:                uuid.New(),
		Name:              "Lucía Fernández",
		Email:             "lucia@example.com",
		Phone:             utils.Ptr("+5491155550000"),
		GatewayCustomerID: utils.Ptr("cus_123"),
		PaymentMethodID:   utils.Ptr("pm_123"),
		CreatedAt:         e.Clock.Now(),
	}
	for _, m := range mutate {
		m(c)
	}
	require.NoError(t, e.Store.Repos().Customers.Create(context.Background(), c))
	return c
}

// SeedProperty stores a property in Palermo, Buenos Aires.
func (e *Env) SeedProperty(t *testing.T, customerID uuid.UUID, mutate ...func(*models.Property)) *models.Property {
	t.Helper()
	p := &models.Property{
		ID:         uuid.New(),
		CustomerID: customerID,
		Address:    "Av. Santa Fe 3200",
		City:       "Buenos Aires",
		Latitude:   -34.5875,
		Longitude:  -58.4107,
		TimeZone:   constants.DefaultTimeZone,
		CreatedAt:  e.Clock.Now(),
	}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, e.Store.Repos().Properties.Create(context.Background(), p))
	return p
}

func (e *Env) SeedCrew(t *testing.T, name, zone string, mutate ...func(*models.Crew)) *models.Crew {
	t.Helper()
	c := &models.Crew{
		ID:        uuid.New(),
		Name:      name,
		Zone:      zone,
		Status:    models.CrewStatusDesocupado,
		Members:   []models.CrewMember{models.ManualMember(name + " lead")},
		CreatedAt: e.Clock.Now(),
	}
	for _, m := range mutate {
		m(c)
	}
	require.NoError(t, e.Store.Repos().Crews.Create(context.Background(), c))
	return c
}

// SeedPlan stores an active monthly plan priced in ARS.
func (e *Env) SeedPlan(t *testing.T, price string, mutate ...func(*models.Plan)) *models.Plan {
	t.Helper()
	p := &models.Plan{
		ID:             uuid.New(),
		Name:           "Mantenimiento Hogar",
		Price:          decimal.RequireFromString(price),
		Currency:       constants.DefaultCurrency,
		IntervalMonths: 1,
		Active:         true,
		CreatedAt:      e.Clock.Now(),
	}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, e.Store.Repos().Plans.Create(context.Background(), p))
	return p
}

// SeedDueSubscription stores a subscription whose current period closed
// one hour ago.
func (e *Env) SeedDueSubscription(t *testing.T, customerID, planID uuid.UUID, mutate ...func(*models.Subscription)) *models.Subscription {
	t.Helper()
	now := e.Clock.Now()
	end := now.Add(-time.Hour)
	sub := &models.Subscription{
		ID:                 uuid.New(),
		CustomerID:         customerID,
		PlanID:             planID,
		Status:             models.SubscriptionActive,
		BillingDay:         end.Day(),
		CurrentPeriodStart: end.AddDate(0, -1, 0),
		CurrentPeriodEnd:   end,
		NextChargeAt:       end,
		CreatedAt:          end.AddDate(0, -1, 0),
	}
	for _, m := range mutate {
		m(sub)
	}
	require.NoError(t, e.Store.Repos().Subscriptions.Create(context.Background(), sub))
	return sub
}

// NewOrderInput is a valid intake for customerID with no property.
func NewOrderInput(customerID uuid.UUID) services.WorkOrderInput {
	return services.WorkOrderInput{
		CustomerID:      customerID,
		ServiceCategory: "plomería",
		Situation:       "Pérdida de agua bajo la pileta de la cocina",
		Priority:        models.PriorityAlta,
		Channel:         models.ChannelTelefono,
		Address:         "Av. Corrientes 1234",
	}
}
