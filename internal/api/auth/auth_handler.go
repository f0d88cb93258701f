package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mvalente-dev/identity-hub/internal/api"
	"github.com/mvalente-dev/identity-hub/internal/types"
)

// invalidCredentialsMsg is returned verbatim for both unknown-email and
// wrong-password logins. Keep it a single constant so the two paths can never
// drift apart.
const invalidCredentialsMsg = "Invalid credentials"

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

// Signup godoc
// @Summary      Sign up
// @Description  Creates a new user account with a hashed password.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.SignupRequest true "Signup Parameters"
// @Success      201 {object} types.SignupResponse
// @Failure      400 {object} types.Response "Validation Failure"
// @Failure      409 {object} types.Response "Email Already Exists"
// @Router       /auth/signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Signup"))

	var req types.SignupRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode signup request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.ValidateStruct(&req); fieldErrors != nil {
		api.ValidationErrorResponse(w, r, fieldErrors)
		return
	}

	user, err := h.service.Signup(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, types.ErrConflict) {
			api.ErrorResponse(w, r, http.StatusConflict, "Email already exists")
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Could not sign up user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]interface{}{
		"data": types.SignupResponse{
			Message: "Signup successful",
			User:    user,
		},
	})
}

// Login godoc
// @Summary      Log in
// @Description  Verifies credentials and returns a time-bound access token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.LoginRequest true "Login Parameters"
// @Success      201 {object} types.LoginResponse
// @Failure      400 {object} types.Response "Validation Failure"
// @Failure      401 {object} types.Response "Invalid Credentials"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Login"))

	var req types.LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode login request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.ValidateStruct(&req); fieldErrors != nil {
		api.ValidationErrorResponse(w, r, fieldErrors)
		return
	}

	accessToken, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, types.ErrUnauthenticated) {
			api.ErrorResponse(w, r, http.StatusUnauthorized, invalidCredentialsMsg)
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Could not log in")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]interface{}{
		"data": types.LoginResponse{
			Message:     "Login successful",
			AccessToken: accessToken,
		},
	})
}
