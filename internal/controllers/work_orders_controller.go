package controllers

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/poofware/backoffice-service/internal/dtos"
	"github.com/poofware/backoffice-service/internal/models"
	"github.com/poofware/backoffice-service/internal/repositories"
	"github.com/poofware/backoffice-service/internal/services"
	"github.com/poofware/backoffice-service/internal/utils"
)

type WorkOrdersController struct {
	orders   *services.WorkOrderService
	crews    *services.CrewAssignmentService
	validate *validator.Validate
}

func NewWorkOrdersController(orders *services.WorkOrderService, crews *services.CrewAssignmentService) *WorkOrdersController {
	return &WorkOrdersController{
		orders:   orders,
		crews:    crews,
		validate: newValidator(),
	}
}

// POST /api/v1/work-orders
func (c *WorkOrdersController) CreateWorkOrderHandler(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "CreateWorkOrderHandler")

	actor, err := actorID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	var req dtos.CreateWorkOrderRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}

	in := services.WorkOrderInput{
		CustomerID:      req.CustomerID,
		PropertyID:      req.PropertyID,
		ServiceCategory: req.ServiceCategory,
		Situation:       req.Situacion,
		Priority:        utils.Val(req.Prioridad),
		Channel:         utils.Val(req.Canal),
		HazardFlag:      req.PeligroAccidente,
		Address:         utils.Val(req.Address),
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		ScheduledFor:    req.ScheduledFor,
	}
	order, err := c.orders.Create(r.Context(), in, actor)
	if err != nil {
		logger.WithError(err).Warn("Service call failed")
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, order)
}

// GET /api/v1/work-orders?customer_id=&crew_id=&state=&type=&skip=&take=
func (c *WorkOrdersController) ListWorkOrdersHandler(w http.ResponseWriter, r *http.Request) {
	var (
		f   repositories.WorkOrderFilter
		err error
	)
	if f.CustomerID, err = queryUUID(r, "customer_id"); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	if f.CrewID, err = queryUUID(r, "crew_id"); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	if raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("state"))); raw != "" {
		state := models.WorkOrderState(raw)
		if !state.IsValid() {
			utils.HandleAppError(w, utils.NewValidationError("state", "is not a work order state"))
			return
		}
		f.State = &state
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		f.ServiceCategory = &raw
	}
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	take, err := queryInt(r, "take", 0)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	page, err := c.orders.List(r.Context(), f, skip, take)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, page)
}

// GET /api/v1/work-orders/{id}
func (c *WorkOrdersController) GetWorkOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	order, err := c.orders.Get(r.Context(), id)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, order)
}

// PATCH /api/v1/work-orders/{id}/state
func (c *WorkOrdersController) TransitionWorkOrderHandler(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "TransitionWorkOrderHandler")

	actor, err := actorID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	var req dtos.TransitionWorkOrderRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}

	order, err := c.orders.Transition(r.Context(), id, req.State, services.TransitionOptions{
		Note:            req.Note,
		ActorID:         actor,
		ExpectedVersion: req.RowVersion,
		CrewID:          req.CrewID,
	})
	if err != nil {
		logger.WithError(err).WithField("workOrderID", id).Warn("Transition rejected")
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, order)
}

// PATCH /api/v1/work-orders/{id}/crew
func (c *WorkOrdersController) AssignCrewHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	var req dtos.AssignCrewRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}

	order, err := c.orders.AssignCrew(r.Context(), id, req.CrewID, services.TransitionOptions{
		Note:            req.Note,
		ActorID:         actor,
		ExpectedVersion: req.RowVersion,
	})
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, order)
}

// PATCH /api/v1/work-orders/{id}/progress
func (c *WorkOrdersController) UpdateProgressHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	var req dtos.UpdateProgressRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}

	order, err := c.orders.UpdateProgress(r.Context(), id, *req.Percent, services.TransitionOptions{
		ActorID:         actor,
		ExpectedVersion: req.RowVersion,
	})
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, order)
}

// POST /api/v1/work-orders/{id}/notes
func (c *WorkOrdersController) AddNoteHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	var req dtos.AddNoteRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}

	event, err := c.orders.AddNote(r.Context(), id, req.Note, actor)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, event)
}

// GET /api/v1/work-orders/{id}/timeline?analyze=true
func (c *WorkOrdersController) GetTimelineHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	analyze, err := queryBool(r, "analyze", false)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	if analyze {
		analysis, err := c.orders.GetTimelineAnalysis(r.Context(), id)
		if err != nil {
			utils.HandleAppError(w, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, analysis)
		return
	}
	timeline, err := c.orders.GetTimeline(r.Context(), id)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, timeline)
}

// GET /api/v1/work-orders/{id}/crew-suggestions?zone=&limit=
func (c *WorkOrdersController) SuggestCrewsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	suggestions, err := c.crews.SuggestCrews(r.Context(), id, strings.TrimSpace(r.URL.Query().Get("zone")), limit)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, suggestions)
}
