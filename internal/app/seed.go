package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/poofware/backoffice-service/internal/constants"
	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/repositories"
	"github.com/poofware/backoffice-service/internal/services"
	"github.com/poofware/backoffice-service/internal/utils"
)

var (
	seedCustomerID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	seedPropertyID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	seedPlanID     = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

/*
SeedAllTestData loads a demo customer with a property, three crews, two
plans and a subscription. It is a no-op when the sentinel customer exists.
*/
func SeedAllTestData(ctx context.Context, store repositories.Store, billing *services.BillingService, now time.Time) error {
	existing, err := store.Repos().Customers.GetByID(ctx, seedCustomerID)
	if err != nil {
		return fmt.Errorf("check existing seed customer: %w", err)
	}
	if existing != nil {
		utils.Logger.Info("backoffice-service: seed data already present; skipping seeding")
		return nil
	}

	err = store.WithTx(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Customers.Create(ctx, &models.Customer{
			ID:                seedCustomerID,
			Name:              "Martina Gómez",
			Email:             "martina.gomez@example.com",
			Phone:             utils.Ptr("+5491160001234"),
			GatewayCustomerID: utils.Ptr("seed-customer"),
			PaymentMethodID:   utils.Ptr("seed-card"),
			CreatedAt:         now,
		}); err != nil {
			return fmt.Errorf("seed customer: %w", err)
		}
		if err := tx.Properties.Create(ctx, &models.Property{
			ID:         seedPropertyID,
			CustomerID: seedCustomerID,
			Address:    "Av. Cabildo 2040",
			City:       "Buenos Aires",
			Latitude:   -34.5601,
			Longitude:  -58.4563,
			TimeZone:   constants.DefaultTimeZone,
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("seed property: %w", err)
		}

		crews := []struct {
			name, zone string
			lat, lng   float64
		}{
			{"Cuadrilla Norte", "norte", -34.5450, -58.4490},
			{"Cuadrilla Centro", "centro", -34.6037, -58.3816},
			{"Cuadrilla Sur", "sur", -34.6550, -58.3900},
		}
		for _, c := range crews {
			if err := tx.Crews.Create(ctx, &models.Crew{
				ID:            uuid.New(),
				Name:          c.name,
				Zone:          c.zone,
				Status:        models.CrewStatusDesocupado,
				Members:       []models.CrewMember{models.ManualMember("Encargado " + c.zone)},
				BaseLatitude:  utils.Ptr(c.lat),
				BaseLongitude: utils.Ptr(c.lng),
				CreatedAt:     now,
			}); err != nil {
				return fmt.Errorf("seed crew %s: %w", c.name, err)
			}
		}

		plans := []*models.Plan{
			{
				ID:              seedPlanID,
				Name:            "Mantenimiento Mensual",
				Price:           decimal.NewFromInt(25000),
				Currency:        constants.DefaultCurrency,
				IntervalMonths:  1,
				ServiceCategory: utils.Ptr("mantenimiento"),
				Active:          true,
				CreatedAt:       now,
			},
			{
				ID:             uuid.New(),
				Name:           "Cobertura Trimestral",
				Price:          decimal.NewFromInt(65000),
				Currency:       constants.DefaultCurrency,
				IntervalMonths: 3,
				Active:         true,
				CreatedAt:      now,
			},
		}
		for _, p := range plans {
			if err := tx.Plans.Create(ctx, p); err != nil {
				return fmt.Errorf("seed plan %s: %w", p.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := billing.CreateSubscription(ctx, services.CreateSubscriptionInput{
		CustomerID: seedCustomerID,
		PlanID:     seedPlanID,
		PropertyID: utils.Ptr(seedPropertyID),
	}); err != nil {
		return fmt.Errorf("seed subscription: %w", err)
	}
	return nil
}
