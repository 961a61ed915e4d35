package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/poofware/backoffice-service/internal/dtos"
	"github.com/poofware/backoffice-service/internal/middleware"
	"github.com/poofware/backoffice-service/internal/utils"
)

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// formatValidationErrors converts validator errors into a user-friendly format.
func formatValidationErrors(errs validator.ValidationErrors) []dtos.ValidationErrorDetail {
	var details []dtos.ValidationErrorDetail
	for _, err := range errs {
		var message string
		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("Field '%s' is required", err.Field())
		case "min":
			message = fmt.Sprintf("Field '%s' must be at least %s in length", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("Field '%s' must not exceed %s in length", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("Field '%s' must be one of [%s]", err.Field(), err.Param())
		case "gt", "gte", "lte":
			message = fmt.Sprintf("Field '%s' is out of range (%s %s)", err.Field(), err.Tag(), err.Param())
		default:
			message = fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", err.Field(), err.Tag())
		}
		details = append(details, dtos.ValidationErrorDetail{
			Field:   err.Field(),
			Message: message,
			Code:    "validation_" + err.Tag(),
		})
	}
	return details
}

// decodeAndValidate reads a JSON body into dst and validates it. On failure
// it has already written the 400 response.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return false
	}
	if err := v.Struct(dst); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			utils.RespondErrorWithCode(
				w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error",
				formatValidationErrors(validationErrs), err,
			)
		} else {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation error", nil, err)
		}
		return false
	}
	return true
}

// actorID is the authenticated user making the request.
func actorID(r *http.Request) (*uuid.UUID, error) {
	ctxUserID, _ := r.Context().Value(middleware.ContextKeyUserID).(string)
	if ctxUserID == "" {
		return nil, &utils.AppError{StatusCode: http.StatusUnauthorized, Code: utils.ErrCodeUnauthorized, Message: "Missing userID in context"}
	}
	id, err := uuid.Parse(ctxUserID)
	if err != nil {
		return nil, &utils.AppError{StatusCode: http.StatusUnauthorized, Code: utils.ErrCodeUnauthorized, Message: "Invalid userID format", Err: err}
	}
	return &id, nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, &utils.AppError{StatusCode: http.StatusBadRequest, Code: utils.ErrCodeInvalidPayload, Message: "Invalid id in path", Err: err}
	}
	return id, nil
}

func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &utils.AppError{StatusCode: http.StatusBadRequest, Code: utils.ErrCodeInvalidPayload, Message: fmt.Sprintf("Invalid %s query param", name), Err: err}
	}
	return &id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &utils.AppError{StatusCode: http.StatusBadRequest, Code: utils.ErrCodeInvalidPayload, Message: fmt.Sprintf("Invalid %s query param", name), Err: err}
	}
	return n, nil
}

func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &utils.AppError{StatusCode: http.StatusBadRequest, Code: utils.ErrCodeInvalidPayload, Message: fmt.Sprintf("Invalid %s query param", name), Err: err}
	}
	return b, nil
}
