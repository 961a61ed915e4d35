//go:build (dev_test || staging_test) && integration

package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/poofware/backoffice-service/internal/app"
	"github.com/poofware/backoffice-service/internal/constants"
	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/repositories"
	"github.com/poofware/backoffice-service/internal/services"
	"github.com/poofware/backoffice-service/internal/testhelpers"
	"github.com/poofware/backoffice-service/internal/utils"
)

// helper wires the real services against Postgres. Payments go through a
// FakeGateway so no provider is contacted.
type helper struct {
	DB      *pgxpool.Pool
	Store   repositories.Store
	Gateway *testhelpers.FakeGateway
	Crews   *services.CrewAssignmentService
	Orders  *services.WorkOrderService
	Billing *services.BillingService
}

var h *helper

func TestMain(m *testing.M) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	db, err := pgxpool.Connect(ctx, dbURL)
	if err != nil {
		cancel()
		log.Fatalf("connect: %v", err)
	}
	if err := app.Migrate(ctx, db); err != nil {
		cancel()
		log.Fatalf("migrate: %v", err)
	}
	cancel()

	store := repositories.NewStore(db)
	h = &helper{DB: db, Store: store, Gateway: testhelpers.NewFakeGateway()}
	h.Crews = services.NewCrewAssignmentService(store, nil)
	h.Orders = services.NewWorkOrderService(
		store, h.Crews, services.NewTimelineRecorder(nil), testhelpers.NewRecordingNotifier(), nil, constants.DefaultTimeZone,
	)
	h.Billing = services.NewBillingService(
		store, h.Gateway, h.Orders, testhelpers.NewRecordingNotifier(), &testhelpers.MemoryReceiptArchive{}, nil, constants.DefaultTimeZone,
	)

	log.Printf("backoffice-service integration tests: DB connected, env=%s", os.Getenv("ENV"))

	code := m.Run()
	db.Close()
	os.Exit(code)
}

// ----------------------------------------------------------------------
// Fixtures
// ----------------------------------------------------------------------

func (h *helper) createCustomer(t *testing.T) *models.Customer {
	t.Helper()
	c := &models.Customer{
		ID:                uuid.New(),
		Name:              "Integración " + uuid.NewString()[:8],
		Email:             uuid.NewString()[:8] + "@example.com",
		Phone:             utils.Ptr("+5491155550000"),
		GatewayCustomerID: utils.Ptr("cus_it"),
		PaymentMethodID:   utils.Ptr("pm_it"),
		CreatedAt:         time.Now().UTC(),
	}
	require.NoError(t, h.Store.Repos().Customers.Create(context.Background(), c))
	return c
}

func (h *helper) createCrew(t *testing.T, zone string) *models.Crew {
	t.Helper()
	c := &models.Crew{
		ID:        uuid.New(),
		Name:      "Cuadrilla " + uuid.NewString()[:8],
		Zone:      zone,
		Status:    models.CrewStatusDesocupado,
		Members:   []models.CrewMember{models.ManualMember("Jefe de cuadrilla")},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, h.Store.Repos().Crews.Create(context.Background(), c))
	return c
}

func (h *helper) createPlan(t *testing.T, price string) *models.Plan {
	t.Helper()
	p := &models.Plan{
		ID:             uuid.New(),
		Name:           "Plan " + uuid.NewString()[:8],
		Price:          decimal.RequireFromString(price),
		Currency:       constants.DefaultCurrency,
		IntervalMonths: 1,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, h.Store.Repos().Plans.Create(context.Background(), p))
	return p
}

// createDueSubscription stores a subscription whose period closed an hour
// ago. The billing day is clamped so the row passes the table check.
func (h *helper) createDueSubscription(t *testing.T, customerID, planID uuid.UUID) *models.Subscription {
	t.Helper()
	end := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	day := end.Day()
	if day > constants.MaxBillingDay {
		day = constants.MaxBillingDay
	}
	sub := &models.Subscription{
		ID:                 uuid.New(),
		CustomerID:         customerID,
		PlanID:             planID,
		Status:             models.SubscriptionActive,
		BillingDay:         day,
		CurrentPeriodStart: end.AddDate(0, -1, 0),
		CurrentPeriodEnd:   end,
		NextChargeAt:       end,
		CreatedAt:          end.AddDate(0, -1, 0),
	}
	require.NoError(t, h.Store.Repos().Subscriptions.Create(context.Background(), sub))
	return sub
}
