package controllers

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/poofware/backoffice-service/internal/dtos"
	"github.com/poofware/backoffice-service/internal/services"
	"github.com/poofware/backoffice-service/internal/utils"
)

type CrewsController struct {
	crews    *services.CrewAssignmentService
	validate *validator.Validate
}

func NewCrewsController(crews *services.CrewAssignmentService) *CrewsController {
	return &CrewsController{crews: crews, validate: newValidator()}
}

// GET /api/v1/crews
func (c *CrewsController) ListCrewsHandler(w http.ResponseWriter, r *http.Request) {
	crews, err := c.crews.ListCrews(r.Context())
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, crews)
}

// PATCH /api/v1/crews/{id}/availability
func (c *CrewsController) SetAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	var req dtos.SetCrewAvailabilityRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}

	crew, err := c.crews.SetOnline(r.Context(), id, *req.Online)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.NewCrewResponse(crew))
}
