package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mvalente-dev/identity-hub/internal/types"
)

const testWebhookSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

// MockUserStore is a mock implementation of the UserStore interface
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) UpsertUser(ctx context.Context, params types.CreateUserParams) (*types.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserStore) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// signHeaders produces valid svix headers for the payload, the same scheme the
// provider uses: HMAC-SHA256 over "{id}.{timestamp}.{body}" with the
// base64-decoded secret.
func signHeaders(t *testing.T, payload []byte) http.Header {
	t.Helper()

	key, err := base64.StdEncoding.DecodeString(testWebhookSecret[len("whsec_"):])
	require.NoError(t, err)

	msgID := "msg_test123"
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msgID + "." + timestamp + "."))
	mac.Write(payload)
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	h := http.Header{}
	h.Set("svix-id", msgID)
	h.Set("svix-timestamp", timestamp)
	h.Set("svix-signature", "v1,"+signature)
	return h
}

func userEventPayload(eventType, primaryEmailID string) []byte {
	return []byte(fmt.Sprintf(`{
		"object": "event",
		"type": %q,
		"data": {
			"id": "user_2abc",
			"object": "user",
			"first_name": "Test",
			"last_name": "User",
			"primary_email_address_id": %s,
			"primary_phone_number_id": "idn_1",
			"email_addresses": [
				{"id": "idn_2", "email_address": "secondary@example.com", "verification": {"status": "unverified"}},
				{"id": "idn_3", "email_address": "primary@example.com", "verification": {"status": "verified"}}
			],
			"phone_numbers": [
				{"id": "idn_1", "phone_number": "+15551234567", "verification": {"status": "verified"}}
			],
			"last_sign_in_at": 1700000000000,
			"created_at": 1690000000000,
			"updated_at": 1700000000000
		}
	}`, eventType, primaryEmailID))
}

func TestNewService(t *testing.T) {
	t.Run("MissingSecret", func(t *testing.T) {
		service, err := NewService("", new(MockUserStore), slog.Default())
		assert.Nil(t, service)
		assert.Error(t, err)
	})
}

func TestProcessEvent(t *testing.T) {
	newService := func(t *testing.T) (*ServiceImpl, *MockUserStore) {
		t.Helper()
		store := new(MockUserStore)
		service, err := NewService(testWebhookSecret, store, slog.Default())
		require.NoError(t, err)
		return service, store
	}

	t.Run("UserCreated", func(t *testing.T) {
		service, store := newService(t)
		payload := userEventPayload("user.created", `"idn_3"`)

		var upserted types.CreateUserParams
		store.On("UpsertUser", mock.Anything, mock.MatchedBy(func(p types.CreateUserParams) bool {
			upserted = p
			return p.ID == "user_2abc"
		})).Return(&types.User{ID: "user_2abc"}, nil).Once()

		err := service.ProcessEvent(context.Background(), payload, signHeaders(t, payload))

		require.NoError(t, err)
		store.AssertExpectations(t)

		// The primary email is resolved by id, not by position.
		assert.Equal(t, "primary@example.com", upserted.Email)
		assert.True(t, upserted.EmailVerified)
		require.NotNil(t, upserted.PhoneNumber)
		assert.Equal(t, "+15551234567", *upserted.PhoneNumber)
		require.NotNil(t, upserted.LastSignInAt)
		assert.Equal(t, time.UnixMilli(1700000000000).UTC(), *upserted.LastSignInAt)
	})

	t.Run("TamperedPayload", func(t *testing.T) {
		service, store := newService(t)
		payload := userEventPayload("user.created", `"idn_3"`)
		headers := signHeaders(t, payload)

		tampered := append([]byte{}, payload...)
		tampered[len(tampered)-2] = ' '

		err := service.ProcessEvent(context.Background(), tampered, headers)

		assert.ErrorIs(t, err, types.ErrBadSignature)
		store.AssertNotCalled(t, "UpsertUser")
	})

	t.Run("WrongSecret", func(t *testing.T) {
		store := new(MockUserStore)
		service, err := NewService("whsec_c2VjcmV0LXRoYXQtaXMtbm90LXRoZS1zYW1l", store, slog.Default())
		require.NoError(t, err)

		payload := userEventPayload("user.created", `"idn_3"`)
		err = service.ProcessEvent(context.Background(), payload, signHeaders(t, payload))

		assert.ErrorIs(t, err, types.ErrBadSignature)
		store.AssertNotCalled(t, "UpsertUser")
	})

	t.Run("MissingPrimaryEmail", func(t *testing.T) {
		service, store := newService(t)
		// Primary id references an address that is not in the list.
		payload := userEventPayload("user.updated", `"idn_unknown"`)

		err := service.ProcessEvent(context.Background(), payload, signHeaders(t, payload))

		assert.ErrorIs(t, err, types.ErrMissingPrimaryEmail)
		store.AssertNotCalled(t, "UpsertUser")
	})

	t.Run("NullPrimaryEmail", func(t *testing.T) {
		service, store := newService(t)
		payload := userEventPayload("user.created", "null")

		err := service.ProcessEvent(context.Background(), payload, signHeaders(t, payload))

		assert.ErrorIs(t, err, types.ErrMissingPrimaryEmail)
		store.AssertNotCalled(t, "UpsertUser")
	})

	t.Run("UserDeleted", func(t *testing.T) {
		service, store := newService(t)
		payload := []byte(`{"object":"event","type":"user.deleted","data":{"id":"user_2abc","deleted":true,"object":"user"}}`)

		store.On("DeleteUser", mock.Anything, "user_2abc").Return(nil).Once()

		err := service.ProcessEvent(context.Background(), payload, signHeaders(t, payload))

		assert.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("UserDeletedAlreadyAbsent", func(t *testing.T) {
		service, store := newService(t)
		payload := []byte(`{"object":"event","type":"user.deleted","data":{"id":"user_gone","deleted":true,"object":"user"}}`)

		store.On("DeleteUser", mock.Anything, "user_gone").
			Return(fmt.Errorf("user user_gone: %w", types.ErrNotFound)).Once()

		// Redelivered deletions must succeed.
		err := service.ProcessEvent(context.Background(), payload, signHeaders(t, payload))

		assert.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("UnknownEventType", func(t *testing.T) {
		service, store := newService(t)
		payload := []byte(`{"object":"event","type":"session.created","data":{"id":"sess_1"}}`)

		err := service.ProcessEvent(context.Background(), payload, signHeaders(t, payload))

		assert.NoError(t, err)
		store.AssertNotCalled(t, "UpsertUser")
		store.AssertNotCalled(t, "DeleteUser")
	})

	t.Run("StoreFailurePassesThrough", func(t *testing.T) {
		service, store := newService(t)
		payload := userEventPayload("user.created", `"idn_3"`)

		storeErr := errors.New("connection refused")
		store.On("UpsertUser", mock.Anything, mock.AnythingOfType("types.CreateUserParams")).
			Return(nil, storeErr).Once()

		err := service.ProcessEvent(context.Background(), payload, signHeaders(t, payload))

		// Transient failures must stay distinguishable from permanent ones so
		// the handler can ask the sender to retry.
		assert.ErrorIs(t, err, storeErr)
		assert.NotErrorIs(t, err, types.ErrBadSignature)
		assert.NotErrorIs(t, err, types.ErrBadRequest)
		store.AssertExpectations(t)
	})
}

func TestParseEventType(t *testing.T) {
	assert.Equal(t, EventUserCreated, ParseEventType("user.created"))
	assert.Equal(t, EventUserUpdated, ParseEventType("user.updated"))
	assert.Equal(t, EventUserDeleted, ParseEventType("user.deleted"))
	assert.Equal(t, EventOther, ParseEventType("organization.created"))
	assert.Equal(t, "user.created", EventUserCreated.String())
	assert.Equal(t, "other", EventOther.String())
}
