package user

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mvalente-dev/identity-hub/internal/api"
	"github.com/mvalente-dev/identity-hub/internal/api/auth"
	"github.com/mvalente-dev/identity-hub/internal/types"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// GetMe godoc
// @Summary      Get current user
// @Description  Returns the sanitized record for the authenticated principal.
// @Tags         User
// @Produce      json
// @Success      200 {object} types.User
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /users/me [get]
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetMe"))

	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		l.ErrorContext(ctx, "Principal not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.service.GetUserByID(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, fmt.Sprintf("User with ID %q not found", principal.ID))
			return
		}
		l.ErrorContext(ctx, "Failed to fetch current user", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{"user": user})
}

// GetUserByID godoc
// @Summary      Get user by id
// @Tags         User
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} types.User
// @Failure      404 {object} types.Response "User Not Found"
// @Security     BearerAuth
// @Router       /users/{id} [get]
func (h *Handler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetUserByID"))
	id := chi.URLParam(r, "id")

	user, err := h.service.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, fmt.Sprintf("User with ID %q not found", id))
			return
		}
		l.ErrorContext(ctx, "Failed to fetch user", slog.Any("error", err), slog.String("userID", id))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{"user": user})
}

// CreateUser handles direct user creation (no password path).
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "CreateUser"))

	var params types.CreateUserParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.ValidateStruct(&params); fieldErrors != nil {
		api.ValidationErrorResponse(w, r, fieldErrors)
		return
	}

	user, err := h.service.CreateUser(ctx, params)
	if err != nil {
		if errors.Is(err, types.ErrConflict) {
			api.ErrorResponse(w, r, http.StatusConflict, "User with this email or username already exists")
			return
		}
		l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to create user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]interface{}{"user": user})
}

// UpdateUser handles partial profile updates.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "UpdateUser"))
	id := chi.URLParam(r, "id")

	var params types.UpdateUserParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.ValidateStruct(&params); fieldErrors != nil {
		api.ValidationErrorResponse(w, r, fieldErrors)
		return
	}

	user, err := h.service.UpdateUser(ctx, id, params)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, fmt.Sprintf("User with ID %q not found", id))
		case errors.Is(err, types.ErrConflict):
			api.ErrorResponse(w, r, http.StatusConflict, "User with this email already exists")
		default:
			l.ErrorContext(ctx, "Failed to update user", slog.Any("error", err), slog.String("userID", id))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update user")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{"user": user})
}

// DeleteUser handles explicit (physical) deletion.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "DeleteUser"))
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, fmt.Sprintf("User with ID %q not found", id))
			return
		}
		l.ErrorContext(ctx, "Failed to delete user", slog.Any("error", err), slog.String("userID", id))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
