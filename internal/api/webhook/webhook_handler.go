package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mvalente-dev/identity-hub/internal/api"
	"github.com/mvalente-dev/identity-hub/internal/types"
)

// Signature headers required on every webhook delivery.
const (
	headerSvixID        = "svix-id"
	headerSvixTimestamp = "svix-timestamp"
	headerSvixSignature = "svix-signature"
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

// HandleClerkWebhook godoc
// @Summary      Clerk webhook
// @Description  Verifies and applies a signed identity-provider event.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200 {object} types.Response
// @Failure      400 {object} types.Response "Missing headers, invalid signature or payload"
// @Router       /users/webhooks/clerk [post]
func (h *Handler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "HandleClerkWebhook"))

	// Headers are checked before the payload is read at all.
	for _, header := range []string{headerSvixID, headerSvixTimestamp, headerSvixSignature} {
		if r.Header.Get(header) == "" {
			l.WarnContext(ctx, "Missing required webhook header", slog.String("header", header))
			api.ErrorResponse(w, r, http.StatusBadRequest, "Missing required webhook headers")
			return
		}
	}

	// The signature is defined over the raw bytes, so the body must not pass
	// through any JSON decode/encode cycle before verification.
	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1_048_576))
	if err != nil {
		l.WarnContext(ctx, "Failed to read webhook body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Could not read request body")
		return
	}

	if err := h.service.ProcessEvent(ctx, rawBody, r.Header); err != nil {
		switch {
		case errors.Is(err, types.ErrBadSignature),
			errors.Is(err, types.ErrBadRequest),
			errors.Is(err, types.ErrMissingPrimaryEmail):
			// Generic message: no oracle for why verification/processing failed.
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid webhook signature or payload")
		default:
			// Transient (store) failures return 500 so the sender redelivers.
			l.ErrorContext(ctx, "Webhook processing failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to process webhook event")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{Success: true})
}
