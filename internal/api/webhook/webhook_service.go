package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	svix "github.com/svix/svix-webhooks/go"

	"github.com/mvalente-dev/identity-hub/app/observability/metrics"
	"github.com/mvalente-dev/identity-hub/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// UserStore is the slice of the user repository the reconciler needs.
type UserStore interface {
	UpsertUser(ctx context.Context, params types.CreateUserParams) (*types.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Service verifies signed identity-provider events and applies them
// idempotently to the user store.
type Service interface {
	ProcessEvent(ctx context.Context, rawBody []byte, headers http.Header) error
}

type ServiceImpl struct {
	wh     *svix.Webhook
	store  UserStore
	logger *slog.Logger
	m      *metrics.AppMetrics
}

// NewService constructs the reconciler. A missing webhook secret is a
// misconfiguration and fails startup rather than the first request.
func NewService(webhookSecret string, store UserStore, logger *slog.Logger) (*ServiceImpl, error) {
	if webhookSecret == "" {
		return nil, errors.New("webhook secret is not configured")
	}
	wh, err := svix.NewWebhook(webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook verifier: %w", err)
	}
	metrics.InitAppMetrics()
	return &ServiceImpl{
		wh:     wh,
		store:  store,
		logger: logger,
		m:      metrics.Get(),
	}, nil
}

// ProcessEvent verifies the svix signature over the raw body bytes, then
// dispatches the event. Verification must run on the bytes as received;
// re-serializing the payload would invalidate valid signatures.
//
// Error contract: verification failures and permanently-broken payloads wrap
// types.ErrBadSignature / types.ErrMissingPrimaryEmail / types.ErrBadRequest
// (the sender should not retry); store failures pass through unwrapped so the
// handler returns 500 and the sender redelivers.
func (s *ServiceImpl) ProcessEvent(ctx context.Context, rawBody []byte, headers http.Header) error {
	l := s.logger.With(slog.String("method", "ProcessEvent"))

	if err := s.wh.Verify(rawBody, headers); err != nil {
		l.WarnContext(ctx, "Webhook signature verification failed", slog.Any("error", err))
		s.m.WebhookFailuresTotal.Add(ctx, 1)
		return fmt.Errorf("signature verification failed: %w", types.ErrBadSignature)
	}

	var event ClerkEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		l.WarnContext(ctx, "Failed to unmarshal verified payload", slog.Any("error", err))
		s.m.WebhookFailuresTotal.Add(ctx, 1)
		return fmt.Errorf("malformed event payload: %w", types.ErrBadRequest)
	}

	eventType := ParseEventType(event.Type)
	l = l.With(slog.String("event_type", event.Type))
	s.m.WebhookEventsTotal.Add(ctx, 1)

	switch eventType {
	case EventUserCreated, EventUserUpdated:
		var data ClerkUserData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			s.m.WebhookFailuresTotal.Add(ctx, 1)
			return fmt.Errorf("malformed user payload: %w", types.ErrBadRequest)
		}
		if err := s.reconcileUser(ctx, data); err != nil {
			s.m.WebhookFailuresTotal.Add(ctx, 1)
			return err
		}
		l.InfoContext(ctx, "User reconciled from webhook", slog.String("userID", data.ID))
		return nil

	case EventUserDeleted:
		var data ClerkDeletedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			s.m.WebhookFailuresTotal.Add(ctx, 1)
			return fmt.Errorf("malformed deletion payload: %w", types.ErrBadRequest)
		}
		err := s.store.DeleteUser(ctx, data.ID)
		if err != nil && !errors.Is(err, types.ErrNotFound) {
			// Absence is fine: the event is the source of truth, and a
			// redelivered deletion must succeed.
			s.m.WebhookFailuresTotal.Add(ctx, 1)
			return err
		}
		l.InfoContext(ctx, "User deleted from webhook", slog.String("userID", data.ID))
		return nil

	default:
		l.InfoContext(ctx, "Unhandled webhook event type, ignoring")
		return nil
	}
}

// reconcileUser maps the provider's user object to an internal record and
// upserts it keyed by the provider id.
func (s *ServiceImpl) reconcileUser(ctx context.Context, data ClerkUserData) error {
	primaryEmail, ok := findPrimaryEmail(data)
	if !ok {
		// A record cannot exist without a determinate primary email.
		return fmt.Errorf("user %s: %w", data.ID, types.ErrMissingPrimaryEmail)
	}

	params := types.CreateUserParams{
		ID:            data.ID,
		Email:         primaryEmail.EmailAddress,
		EmailVerified: primaryEmail.Verification.Status == "verified",
		FirstName:     data.FirstName,
		LastName:      data.LastName,
		Username:      data.Username,
		ImageURL:      data.ImageURL,
		ExternalID:    data.ExternalID,
	}

	// Primary phone is optional; its absence is not an error.
	if phone, ok := findPrimaryPhone(data); ok {
		params.PhoneNumber = &phone.PhoneNumber
	}
	if data.LastSignInAt != nil {
		t := time.UnixMilli(*data.LastSignInAt).UTC()
		params.LastSignInAt = &t
	}

	_, err := s.store.UpsertUser(ctx, params)
	return err
}

func findPrimaryEmail(data ClerkUserData) (ClerkEmailAddress, bool) {
	if data.PrimaryEmailAddressID == nil {
		return ClerkEmailAddress{}, false
	}
	for _, email := range data.EmailAddresses {
		if email.ID == *data.PrimaryEmailAddressID {
			return email, true
		}
	}
	return ClerkEmailAddress{}, false
}

func findPrimaryPhone(data ClerkUserData) (ClerkPhoneNumber, bool) {
	if data.PrimaryPhoneNumberID == nil {
		return ClerkPhoneNumber{}, false
	}
	for _, phone := range data.PhoneNumbers {
		if phone.ID == *data.PrimaryPhoneNumberID {
			return phone, true
		}
	}
	return ClerkPhoneNumber{}, false
}
