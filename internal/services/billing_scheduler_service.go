package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/poofware/backoffice-service/internal/dtos"
	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/repositories"
	"github.com/poofware/backoffice-service/internal/utils"
)

// BillingSchedulerService is the external trigger of the billing engine:
// each run offers every due subscription one charge attempt.
type BillingSchedulerService struct {
	store   repositories.Store
	billing *BillingService
	now     Clock
}

func NewBillingSchedulerService(store repositories.Store, billing *BillingService, now Clock) *BillingSchedulerService {
	if now == nil {
		now = SystemClock
	}
	return &BillingSchedulerService{store: store, billing: billing, now: now}
}

// RunBillingCycle charges every subscription whose period has closed. One
// subscription failing does not stop the run.
func (s *BillingSchedulerService) RunBillingCycle(ctx context.Context) (*dtos.BillingCycleSummary, error) {
	utils.Logger.Info("Running billing cycle...")

	due, err := s.store.Repos().Subscriptions.ListDue(ctx, s.now().UTC())
	if err != nil {
		return nil, err
	}
	summary := &dtos.BillingCycleSummary{Due: len(due)}

	for _, sub := range due {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		res, err := s.billing.ProcessCharge(ctx, sub.ID)
		switch {
		case errors.Is(err, utils.ErrChargeInProgress), errors.Is(err, utils.ErrAlreadyCanceled):
			summary.Skipped++
			utils.Logger.WithField("subscriptionID", sub.ID).WithError(err).Debug("Subscription skipped")
		case err != nil:
			summary.Errors++
			utils.Logger.WithField("subscriptionID", sub.ID).WithError(err).Error("Failed to process charge")
		case !res.Charged:
			summary.Skipped++
		case res.Payment.Status == models.PaymentPosted:
			summary.Posted++
		default:
			summary.Failed++
		}
	}

	utils.Logger.WithFields(logrus.Fields{
		"due":     summary.Due,
		"posted":  summary.Posted,
		"failed":  summary.Failed,
		"skipped": summary.Skipped,
		"errors":  summary.Errors,
	}).Info("Billing cycle finished")
	return summary, nil
}
