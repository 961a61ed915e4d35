package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/poofware/backoffice-service/internal/constants"
	"github.com/poofware/backoffice-service/internal/dtos"
	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/repositories"
	"github.com/poofware/backoffice-service/internal/utils"
)

type CreateSubscriptionInput struct {
	CustomerID uuid.UUID
	PlanID     uuid.UUID
	PropertyID *uuid.UUID
}

type BillingService struct {
	store      repositories.Store
	gateway    PaymentGateway
	workOrders *WorkOrderService
	notifier   Notifier
	receipts   repositories.ReceiptArchive
	now        Clock
	defaultTZ  string
}

// NewBillingService accepts a nil receipts archive and a nil notifier.
func NewBillingService(
	store repositories.Store,
	gateway PaymentGateway,
	workOrders *WorkOrderService,
	notifier Notifier,
	receipts repositories.ReceiptArchive,
	now Clock,
	defaultTZ string,
) *BillingService {
	if now == nil {
		now = SystemClock
	}
	if defaultTZ == "" {
		defaultTZ = constants.DefaultTimeZone
	}
	return &BillingService{
		store:      store,
		gateway:    gateway,
		workOrders: workOrders,
		notifier:   notifier,
		receipts:   receipts,
		now:        now,
		defaultTZ:  defaultTZ,
	}
}

// ----------------------------------------------------------------------
// Subscriptions
// ----------------------------------------------------------------------

// ListSubscriptions never fails on an empty result.
func (s *BillingService) ListSubscriptions(
	ctx context.Context,
	customerID *uuid.UUID,
	status *models.SubscriptionStatus,
) ([]*models.Subscription, error) {
	if status != nil && !status.IsValid() {
		return nil, utils.NewValidationError("status", "is not a subscription status")
	}
	subs, err := s.store.Repos().Subscriptions.List(ctx, customerID, status)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []*models.Subscription{}
	}
	return subs, nil
}

func (s *BillingService) GetSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	sub, err := s.store.Repos().Subscriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrSubscriptionNotFound, id)
	}
	return sub, nil
}

func (s *BillingService) ListPlans(ctx context.Context, activeOnly bool) ([]*models.Plan, error) {
	plans, err := s.store.Repos().Plans.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []*models.Plan{}
	}
	return plans, nil
}

// CreateSubscription opens the first period at now. The billing day is the
// current day of month, capped so every month has it.
func (s *BillingService) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*models.Subscription, error) {
	var created *models.Subscription
	err := s.store.WithTx(ctx, func(tx *repositories.Repositories) error {
		customer, err := tx.Customers.GetByID(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return fmt.Errorf("%w: %s", utils.ErrCustomerNotFound, in.CustomerID)
		}
		plan, err := s.activePlan(ctx, tx, in.PlanID)
		if err != nil {
			return err
		}
		if in.PropertyID != nil {
			prop, err := tx.Properties.GetByID(ctx, *in.PropertyID)
			if err != nil {
				return err
			}
			if prop == nil {
				return fmt.Errorf("%w: %s", utils.ErrPropertyNotFound, *in.PropertyID)
			}
			if prop.CustomerID != customer.ID {
				return utils.NewValidationError("property_id", "does not belong to the customer")
			}
		}

		now := s.now().UTC()
		billingDay := billingDayFor(now)
		end := addBillingPeriod(now, plan.IntervalMonths, billingDay)
		sub := &models.Subscription{
			ID:                 uuid.New(),
			CustomerID:         customer.ID,
			PlanID:             plan.ID,
			PropertyID:         in.PropertyID,
			Status:             models.SubscriptionActive,
			BillingDay:         billingDay,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   end,
			NextChargeAt:       end,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.Subscriptions.Create(ctx, sub); err != nil {
			return fmt.Errorf("inserting subscription: %w", err)
		}
		created = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	utils.Logger.WithFields(logrus.Fields{
		"subscriptionID": created.ID,
		"planID":         created.PlanID,
		"periodEnd":      created.CurrentPeriodEnd,
	}).Info("Subscription created")
	return created, nil
}

// UpgradeSubscription swaps the plan without touching the current period;
// the new price applies from the next charge.
func (s *BillingService) UpgradeSubscription(ctx context.Context, id, planID uuid.UUID) (*models.Subscription, error) {
	var out *models.Subscription
	err := s.store.WithTx(ctx, func(tx *repositories.Repositories) error {
		sub, err := s.lockSubscription(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub.Status == models.SubscriptionCanceled {
			return fmt.Errorf("%w: subscription %s", utils.ErrAlreadyCanceled, id)
		}
		plan, err := s.activePlan(ctx, tx, planID)
		if err != nil {
			return err
		}
		out = sub
		if sub.PlanID == plan.ID {
			return nil
		}
		sub.PlanID = plan.ID
		sub.UpdatedAt = s.now().UTC()
		return s.saveSubscription(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelSubscription is idempotent: canceling twice succeeds and writes once.
func (s *BillingService) CancelSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var out *models.Subscription
	changed := false
	err := s.store.WithTx(ctx, func(tx *repositories.Repositories) error {
		changed = false
		sub, err := s.lockSubscription(ctx, tx, id)
		if err != nil {
			return err
		}
		out = sub
		if sub.Status == models.SubscriptionCanceled {
			return nil
		}
		now := s.now().UTC()
		sub.Status = models.SubscriptionCanceled
		sub.CanceledAt = &now
		sub.UpdatedAt = now
		changed = true
		return s.saveSubscription(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		utils.Logger.WithField("subscriptionID", id).Info("Subscription canceled")
	}
	return out, nil
}

func (s *BillingService) PauseSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return s.changeStatus(ctx, id, models.SubscriptionPaused, models.SubscriptionActive, models.SubscriptionGrace)
}

func (s *BillingService) ResumeSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return s.changeStatus(ctx, id, models.SubscriptionActive, models.SubscriptionPaused)
}

func (s *BillingService) changeStatus(
	ctx context.Context,
	id uuid.UUID,
	target models.SubscriptionStatus,
	from ...models.SubscriptionStatus,
) (*models.Subscription, error) {
	var out *models.Subscription
	err := s.store.WithTx(ctx, func(tx *repositories.Repositories) error {
		sub, err := s.lockSubscription(ctx, tx, id)
		if err != nil {
			return err
		}
		out = sub
		switch {
		case sub.Status == models.SubscriptionCanceled:
			return fmt.Errorf("%w: subscription %s", utils.ErrAlreadyCanceled, id)
		case sub.Status == target:
			return nil
		case !slices.Contains(from, sub.Status):
			return fmt.Errorf("%w: cannot move subscription from %s to %s", utils.ErrInvalidTransition, sub.Status, target)
		}
		sub.Status = target
		sub.UpdatedAt = s.now().UTC()
		return s.saveSubscription(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BillingService) ListPayments(ctx context.Context, subscriptionID uuid.UUID) ([]*models.Payment, error) {
	if _, err := s.GetSubscription(ctx, subscriptionID); err != nil {
		return nil, err
	}
	payments, err := s.store.Repos().Payments.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	return payments, nil
}

// ----------------------------------------------------------------------
// Charging
// ----------------------------------------------------------------------

// chargeAttempt is what the gateway call needs. label names the plan the
// payment was priced with.
type chargeAttempt struct {
	payment  *models.Payment
	plan     *models.Plan
	customer *models.Customer
	attempt  int
	label    string
}

// ProcessCharge makes at most one gateway attempt for the subscription's
// current period. It runs in three steps so the gateway call never happens
// inside a transaction:
//
//  1. under the subscription lock, check the period is due and reserve it
//     with a PENDING payment (a second caller gets ErrChargeInProgress);
//  2. call the gateway with a per-period idempotency key;
//  3. under the lock again, settle the payment and the subscription.
//
// A declined charge is not an error: the response carries a FAILED payment.
func (s *BillingService) ProcessCharge(ctx context.Context, id uuid.UUID) (*dtos.ChargeResponse, error) {
	attempt, early, err := s.reserveCharge(ctx, id)
	if err != nil {
		return nil, err
	}
	if early != nil {
		return early, nil
	}

	gw := s.callGateway(ctx, attempt)

	result, err := s.settleCharge(ctx, id, attempt, gw)
	if err != nil {
		utils.Logger.WithFields(logrus.Fields{
			"subscriptionID": id,
			"paymentID":      attempt.payment.ID,
			"approved":       gw.Approved,
		}).WithError(err).Error("Gateway answered but settling the charge failed; payment left PENDING")
		return nil, err
	}

	s.archiveReceipt(result.Payment, gw)
	if result.Payment.Status == models.PaymentFailed && s.notifier != nil {
		s.notifier.ChargeFailed(result.Subscription.Clone(), result.Payment.Clone())
	}
	utils.Logger.WithFields(logrus.Fields{
		"subscriptionID": id,
		"paymentID":      result.Payment.ID,
		"status":         result.Payment.Status,
		"subStatus":      result.Subscription.Status,
	}).Info("Charge processed")
	return result, nil
}

// reserveCharge returns either an attempt to run or, when nothing is due, the
// response to give right away.
func (s *BillingService) reserveCharge(ctx context.Context, id uuid.UUID) (*chargeAttempt, *dtos.ChargeResponse, error) {
	var (
		attempt *chargeAttempt
		early   *dtos.ChargeResponse
	)
	err := s.store.WithTx(ctx, func(tx *repositories.Repositories) error {
		attempt, early = nil, nil
		sub, err := s.lockSubscription(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub.Status == models.SubscriptionCanceled {
			return fmt.Errorf("%w: subscription %s", utils.ErrAlreadyCanceled, id)
		}

		now := s.now().UTC()
		if !sub.IsDue(now) {
			latest, err := tx.Payments.LatestPosted(ctx, sub.ID)
			if err != nil {
				return err
			}
			early = &dtos.ChargeResponse{Charged: false, Payment: latest, Subscription: sub}
			return nil
		}

		plan, err := tx.Plans.GetByID(ctx, sub.PlanID)
		if err != nil {
			return err
		}
		if plan == nil {
			return fmt.Errorf("%w: %s", utils.ErrInvalidPlan, sub.PlanID)
		}
		customer, err := tx.Customers.GetByID(ctx, sub.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return fmt.Errorf("%w: %s", utils.ErrCustomerNotFound, sub.CustomerID)
		}

		open, err := tx.Payments.FindOpenForPeriod(ctx, sub.ID, sub.CurrentPeriodStart)
		if err != nil {
			return err
		}
		if open != nil {
			if open.Status == models.PaymentPosted {
				early = &dtos.ChargeResponse{Charged: false, Payment: open, Subscription: sub}
				return nil
			}
			if now.Sub(open.UpdatedAt) < constants.StalePendingPaymentAfter {
				return fmt.Errorf("%w: payment %s is awaiting the gateway", utils.ErrChargeInProgress, open.ID)
			}
			// the run that reserved it died before settling and the provider
			// may hold the charge; resend the same request under the same key
			open.UpdatedAt = now
			if err := s.settlePayment(ctx, tx, open); err != nil {
				return err
			}
			label := plan.Name
			if open.PlanID != plan.ID {
				priced, err := tx.Plans.GetByID(ctx, open.PlanID)
				if err != nil {
					return err
				}
				if priced != nil {
					label = priced.Name
				}
			}
			utils.Logger.WithField("paymentID", open.ID).Warn("Replaying stale pending payment")
			attempt = &chargeAttempt{payment: open, plan: plan, customer: customer, attempt: sub.ConsecutiveFailures, label: label}
			return nil
		}

		p := &models.Payment{
			ID:             uuid.New(),
			SubscriptionID: sub.ID,
			PlanID:         plan.ID,
			Amount:         plan.Price,
			Currency:       plan.Currency,
			Status:         models.PaymentPending,
			PeriodStart:    sub.CurrentPeriodStart,
			PeriodEnd:      sub.CurrentPeriodEnd,
			Provider:       s.gateway.Name(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Payments.Create(ctx, p); err != nil {
			return err
		}
		attempt = &chargeAttempt{payment: p, plan: plan, customer: customer, attempt: sub.ConsecutiveFailures, label: plan.Name}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return attempt, early, nil
}

// callGateway turns transport failures into a declined result so they settle
// as a FAILED payment like any decline.
func (s *BillingService) callGateway(ctx context.Context, a *chargeAttempt) *GatewayResult {
	p := a.payment
	req := ChargeRequest{
		IdempotencyKey: p.IdempotencyKey(a.attempt),
		Amount:         p.Amount,
		Currency:       p.Currency,
		Description: fmt.Sprintf("%s %s - %s",
			a.label, p.PeriodStart.Format("2006-01-02"), p.PeriodEnd.Format("2006-01-02")),
		CustomerEmail:     a.customer.Email,
		GatewayCustomerID: a.customer.GatewayCustomerID,
		PaymentMethodID:   a.customer.PaymentMethodID,
		ExternalReference: p.ID.String(),
	}
	gw, err := s.gateway.Charge(ctx, req)
	if err != nil {
		utils.Logger.WithField("paymentID", p.ID).WithError(err).Warn("Payment gateway call failed")
		return &GatewayResult{ProviderStatus: "error", DeclineReason: err.Error()}
	}
	if gw == nil {
		return &GatewayResult{ProviderStatus: "error", DeclineReason: "empty gateway response"}
	}
	return gw
}

func (s *BillingService) settleCharge(
	ctx context.Context,
	id uuid.UUID,
	a *chargeAttempt,
	gw *GatewayResult,
) (*dtos.ChargeResponse, error) {
	var result *dtos.ChargeResponse
	err := s.store.WithTx(ctx, func(tx *repositories.Repositories) error {
		result = nil
		sub, err := s.lockSubscription(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		p := a.payment.Clone()
		p.UpdatedAt = now
		if gw.ProviderPaymentID != "" {
			p.ProviderPaymentID = utils.Ptr(gw.ProviderPaymentID)
		}
		if gw.Approved {
			p.Status = models.PaymentPosted
			p.PaidAt = &now
		} else {
			reason := gw.DeclineReason
			if reason == "" {
				reason = "declined"
			}
			p.Status = models.PaymentFailed
			p.Note = &reason
		}
		if err := s.settlePayment(ctx, tx, p); err != nil {
			return err
		}

		var spawned *models.WorkOrder
		// a subscription canceled while the gateway was answering keeps
		// the payment record but is not moved anymore
		if sub.Status != models.SubscriptionCanceled && sub.CurrentPeriodStart.Equal(p.PeriodStart) {
			if gw.Approved {
				applyChargeSuccess(sub, a.plan)
			} else {
				applyChargeFailure(sub)
			}
			sub.UpdatedAt = now
			if err := s.saveSubscription(ctx, tx, sub); err != nil {
				return err
			}
			if gw.Approved {
				if spawned, err = s.spawnRecurringOrder(ctx, tx, sub, a.plan, now); err != nil {
					return err
				}
			}
		}

		result = &dtos.ChargeResponse{Charged: true, Payment: p, Subscription: sub, WorkOrder: spawned}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyChargeSuccess advances the period by one plan interval and clears the
// failure streak. PAUSED stays paused.
func applyChargeSuccess(sub *models.Subscription, plan *models.Plan) {
	sub.CurrentPeriodStart = sub.CurrentPeriodEnd
	sub.CurrentPeriodEnd = addBillingPeriod(sub.CurrentPeriodStart, plan.IntervalMonths, sub.BillingDay)
	sub.NextChargeAt = sub.CurrentPeriodEnd
	sub.ConsecutiveFailures = 0
	switch sub.Status {
	case models.SubscriptionPastDue, models.SubscriptionSuspended, models.SubscriptionGrace:
		sub.Status = models.SubscriptionActive
	}
}

// applyChargeFailure leaves the period open: the first failure makes the
// subscription PAST_DUE, a further one SUSPENDED.
func applyChargeFailure(sub *models.Subscription) {
	sub.ConsecutiveFailures++
	switch sub.Status {
	case models.SubscriptionActive, models.SubscriptionGrace, models.SubscriptionPaused:
		sub.Status = models.SubscriptionPastDue
	case models.SubscriptionPastDue, models.SubscriptionSuspended:
		sub.Status = models.SubscriptionSuspended
	}
}

// spawnRecurringOrder opens the service visit a paid period includes, on the
// next Argentine workday morning at the property.
func (s *BillingService) spawnRecurringOrder(
	ctx context.Context,
	tx *repositories.Repositories,
	sub *models.Subscription,
	plan *models.Plan,
	now time.Time,
) (*models.WorkOrder, error) {
	if s.workOrders == nil || plan.ServiceCategory == nil || sub.PropertyID == nil {
		return nil, nil
	}
	prop, err := tx.Properties.GetByID(ctx, *sub.PropertyID)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrPropertyNotFound, *sub.PropertyID)
	}

	loc := utils.LoadLocation(prop.TimeZone, s.defaultTZ)
	scheduled := utils.NextWorkdayAt(now, loc, constants.RecurringWorkOrderHour)
	if scheduled.Before(now) {
		scheduled = utils.NextWorkdayAt(now.In(loc).AddDate(0, 0, 1), loc, constants.RecurringWorkOrderHour)
	}
	scheduled = scheduled.UTC()

	w, err := s.workOrders.CreateInTx(ctx, tx, WorkOrderInput{
		CustomerID:      sub.CustomerID,
		PropertyID:      sub.PropertyID,
		SubscriptionID:  &sub.ID,
		ServiceCategory: *plan.ServiceCategory,
		Situation: fmt.Sprintf("Servicio incluido en el plan %s, período %s a %s",
			plan.Name, sub.CurrentPeriodStart.In(loc).Format("02/01/2006"), sub.CurrentPeriodEnd.In(loc).Format("02/01/2006")),
		Priority:     models.PriorityMedia,
		Channel:      models.ChannelSuscripcion,
		ScheduledFor: &scheduled,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("creating recurring work order: %w", err)
	}
	utils.Logger.WithFields(logrus.Fields{
		"subscriptionID": sub.ID,
		"workOrderID":    w.ID,
		"scheduledFor":   scheduled,
	}).Info("Recurring work order created")
	return w, nil
}

func (s *BillingService) archiveReceipt(p *models.Payment, gw *GatewayResult) {
	if s.receipts == nil || len(gw.Raw) == 0 {
		return
	}
	receipt := models.PaymentReceipt{
		PaymentID:         p.ID,
		SubscriptionID:    p.SubscriptionID,
		Provider:          p.Provider,
		ProviderPaymentID: gw.ProviderPaymentID,
		ProviderStatus:    gw.ProviderStatus,
		RawResponse:       gw.Raw,
		RecordedAt:        s.now().UTC(),
	}
	detach("receipt archive", constants.NotificationTimeout, func(ctx context.Context) error {
		return s.receipts.Put(ctx, receipt)
	})
}

// ----------------------------------------------------------------------
// helpers
// ----------------------------------------------------------------------

func (s *BillingService) activePlan(ctx context.Context, tx *repositories.Repositories, id uuid.UUID) (*models.Plan, error) {
	plan, err := tx.Plans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.Active {
		return nil, fmt.Errorf("%w: %s", utils.ErrInvalidPlan, id)
	}
	return plan, nil
}

func (s *BillingService) lockSubscription(ctx context.Context, tx *repositories.Repositories, id uuid.UUID) (*models.Subscription, error) {
	sub, err := tx.Subscriptions.GetForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading subscription %s: %w", id, err)
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrSubscriptionNotFound, id)
	}
	return sub, nil
}

func (s *BillingService) saveSubscription(ctx context.Context, tx *repositories.Repositories, sub *models.Subscription) error {
	tag, err := tx.Subscriptions.UpdateIfVersion(ctx, sub, sub.RowVersion)
	if err != nil {
		return fmt.Errorf("updating subscription %s: %w", sub.ID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("subscription %s: %w", sub.ID, utils.ErrRowVersionConflict)
	}
	return nil
}

func (s *BillingService) settlePayment(ctx context.Context, tx *repositories.Repositories, p *models.Payment) error {
	tag, err := tx.Payments.Settle(ctx, p)
	if err != nil {
		return fmt.Errorf("settling payment %s: %w", p.ID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: payment %s is no longer pending", utils.ErrConflict, p.ID)
	}
	return nil
}
