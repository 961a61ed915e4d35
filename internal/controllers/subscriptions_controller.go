package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/poofware/backoffice-service/internal/dtos"
	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/services"
	"github.com/poofware/backoffice-service/internal/utils"
)

type SubscriptionsController struct {
	billing   *services.BillingService
	scheduler *services.BillingSchedulerService
	validate  *validator.Validate
}

func NewSubscriptionsController(billing *services.BillingService, scheduler *services.BillingSchedulerService) *SubscriptionsController {
	return &SubscriptionsController{
		billing:   billing,
		scheduler: scheduler,
		validate:  newValidator(),
	}
}

// GET /api/v1/plans?active=true
func (c *SubscriptionsController) ListPlansHandler(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := queryBool(r, "active", true)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	plans, err := c.billing.ListPlans(r.Context(), activeOnly)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, plans)
}

// GET /api/v1/subscriptions?user_id=&status=
func (c *SubscriptionsController) ListSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	customerID, err := queryUUID(r, "user_id")
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	var status *models.SubscriptionStatus
	if raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))); raw != "" {
		s := models.SubscriptionStatus(raw)
		status = &s
	}

	subs, err := c.billing.ListSubscriptions(r.Context(), customerID, status)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, subs)
}

// POST /api/v1/subscriptions
func (c *SubscriptionsController) CreateSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.CreateSubscriptionRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}
	sub, err := c.billing.CreateSubscription(r.Context(), services.CreateSubscriptionInput{
		CustomerID: req.UserID,
		PlanID:     req.PlanID,
		PropertyID: req.PropertyID,
	})
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, sub)
}

// GET /api/v1/subscriptions/{id}
func (c *SubscriptionsController) GetSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	c.withID(w, r, func(ctx context.Context, id uuid.UUID) (any, error) {
		return c.billing.GetSubscription(ctx, id)
	})
}

// POST /api/v1/subscriptions/{id}/upgrade
func (c *SubscriptionsController) UpgradeSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	var req dtos.UpgradeSubscriptionRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}
	sub, err := c.billing.UpgradeSubscription(r.Context(), id, req.PlanID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, sub)
}

// POST /api/v1/subscriptions/{id}/cancel
func (c *SubscriptionsController) CancelSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	c.withID(w, r, func(ctx context.Context, id uuid.UUID) (any, error) {
		return c.billing.CancelSubscription(ctx, id)
	})
}

// POST /api/v1/subscriptions/{id}/pause
func (c *SubscriptionsController) PauseSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	c.withID(w, r, func(ctx context.Context, id uuid.UUID) (any, error) {
		return c.billing.PauseSubscription(ctx, id)
	})
}

// POST /api/v1/subscriptions/{id}/resume
func (c *SubscriptionsController) ResumeSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	c.withID(w, r, func(ctx context.Context, id uuid.UUID) (any, error) {
		return c.billing.ResumeSubscription(ctx, id)
	})
}

// POST /api/v1/subscriptions/{id}/charge
func (c *SubscriptionsController) ChargeSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	c.withID(w, r, func(ctx context.Context, id uuid.UUID) (any, error) {
		return c.billing.ProcessCharge(ctx, id)
	})
}

// GET /api/v1/subscriptions/{id}/payments
func (c *SubscriptionsController) ListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	c.withID(w, r, func(ctx context.Context, id uuid.UUID) (any, error) {
		return c.billing.ListPayments(ctx, id)
	})
}

// POST /api/v1/billing/run
func (c *SubscriptionsController) RunBillingCycleHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := c.scheduler.RunBillingCycle(r.Context())
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.Logger.WithFields(logrus.Fields{
		"due":    summary.Due,
		"posted": summary.Posted,
		"failed": summary.Failed,
	}).Info("Manual billing run finished")
	utils.RespondWithJSON(w, http.StatusOK, summary)
}

func (c *SubscriptionsController) withID(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, id uuid.UUID) (any, error),
) {
	id, err := pathID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	out, err := fn(r.Context(), id)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, out)
}
