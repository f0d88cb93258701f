package auth

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mvalente-dev/identity-hub/config"
	"github.com/mvalente-dev/identity-hub/internal/types"
)

// MockUserStore is a mock implementation of the UserStore interface
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateUser(ctx context.Context, params types.CreateUserParams) (*types.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserStore) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(config.JWTConfig{
		SecretKey: "test-access-secret",
		Issuer:    "test-issuer",
		Audience:  "test-audience",
		TokenTTL:  15 * time.Minute,
	})
	require.NoError(t, err)
	return issuer
}

func TestSignup(t *testing.T) {
	mockStore := new(MockUserStore)
	logger := slog.Default()
	service := NewService(mockStore, newTestIssuer(t), logger)

	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		email := "test@example.com"
		password := "password123"
		name := "Test User"

		var storedParams types.CreateUserParams
		mockStore.On("CreateUser", ctx, mock.MatchedBy(func(p types.CreateUserParams) bool {
			storedParams = p
			return p.Email == email
		})).Return(&types.User{ID: "user123", Email: email, Name: &name}, nil).Once()

		user, err := service.Signup(ctx, email, password, name)

		assert.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, email, user.Email)
		mockStore.AssertExpectations(t)

		// The stored hash must not be the plaintext and must verify against it.
		assert.NotEmpty(t, storedParams.ID)
		assert.NotEqual(t, password, storedParams.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(storedParams.PasswordHash), []byte(password)))
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		ctx := context.Background()

		mockStore.On("CreateUser", ctx, mock.AnythingOfType("types.CreateUserParams")).
			Return(nil, types.ErrConflict).Once()

		user, err := service.Signup(ctx, "dup@example.com", "password123", "Dup")

		assert.Nil(t, user)
		assert.ErrorIs(t, err, types.ErrConflict)
		mockStore.AssertExpectations(t)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		ctx := context.Background()

		mockStore.On("CreateUser", ctx, mock.AnythingOfType("types.CreateUserParams")).
			Return(nil, errors.New("connection refused")).Once()

		user, err := service.Signup(ctx, "test@example.com", "password123", "Test")

		assert.Nil(t, user)
		// The underlying cause must not leak past the service boundary.
		assert.ErrorIs(t, err, types.ErrInternal)
		assert.NotContains(t, err.Error(), "connection refused")
		mockStore.AssertExpectations(t)
	})
}

func TestLogin(t *testing.T) {
	mockStore := new(MockUserStore)
	logger := slog.Default()
	issuer := newTestIssuer(t)
	service := NewService(mockStore, issuer, logger)

	email := "test@example.com"
	password := "password123"
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	user := &types.User{
		ID:           "user123",
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		mockStore.On("GetUserByEmail", ctx, email).Return(user, nil).Once()

		accessToken, err := service.Login(ctx, email, password)

		assert.NoError(t, err)
		assert.NotEmpty(t, accessToken)
		mockStore.AssertExpectations(t)

		// The issued token must carry the user's identity.
		claims, err := issuer.Parse(accessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, user.Email, claims.Email)
	})

	t.Run("UnknownEmailAndWrongPasswordAreIndistinguishable", func(t *testing.T) {
		ctx := context.Background()

		mockStore.On("GetUserByEmail", ctx, "nobody@example.com").Return(nil, types.ErrNotFound).Once()
		_, errUnknown := service.Login(ctx, "nobody@example.com", password)

		mockStore.On("GetUserByEmail", ctx, email).Return(user, nil).Once()
		_, errWrongPassword := service.Login(ctx, email, "not-the-password")

		require.Error(t, errUnknown)
		require.Error(t, errWrongPassword)
		assert.ErrorIs(t, errUnknown, types.ErrUnauthenticated)
		assert.ErrorIs(t, errWrongPassword, types.ErrUnauthenticated)
		// Identical error text: callers cannot enumerate accounts.
		assert.Equal(t, errUnknown.Error(), errWrongPassword.Error())
		mockStore.AssertExpectations(t)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		ctx := context.Background()
		mockStore.On("GetUserByEmail", ctx, email).Return(nil, errors.New("connection refused")).Once()

		accessToken, err := service.Login(ctx, email, password)

		assert.Empty(t, accessToken)
		assert.ErrorIs(t, err, types.ErrInternal)
		assert.NotErrorIs(t, err, types.ErrUnauthenticated)
		mockStore.AssertExpectations(t)
	})
}
