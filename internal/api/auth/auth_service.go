package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mvalente-dev/identity-hub/app/observability/metrics"
	"github.com/mvalente-dev/identity-hub/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// UserStore is the slice of the user repository the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, params types.CreateUserParams) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
}

// Service orchestrates signup (hash-then-store) and login
// (lookup-then-compare-then-issue).
type Service interface {
	Signup(ctx context.Context, email, password, name string) (*types.User, error)
	Login(ctx context.Context, email, password string) (string, error)
}

type ServiceImpl struct {
	store  UserStore
	issuer *TokenIssuer
	logger *slog.Logger
	m      *metrics.AppMetrics
}

func NewService(store UserStore, issuer *TokenIssuer, logger *slog.Logger) *ServiceImpl {
	metrics.InitAppMetrics()
	return &ServiceImpl{
		store:  store,
		issuer: issuer,
		logger: logger,
		m:      metrics.Get(),
	}
}

// Signup hashes the password and creates exactly one user record. A duplicate
// email surfaces as types.ErrConflict; any other store failure is logged and
// downgraded to types.ErrInternal so the cause never crosses the API boundary.
func (s *ServiceImpl) Signup(ctx context.Context, email, password, name string) (*types.User, error) {
	l := s.logger.With(slog.String("method", "Signup"), slog.String("email", email))
	s.m.SignupRequestsTotal.Add(ctx, 1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		return nil, fmt.Errorf("could not sign up user: %w", types.ErrInternal)
	}

	user, err := s.store.CreateUser(ctx, types.CreateUserParams{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hashed),
		Name:         &name,
	})
	if err != nil {
		if errors.Is(err, types.ErrConflict) {
			l.WarnContext(ctx, "Signup rejected, email already exists")
			return nil, fmt.Errorf("email already exists: %w", types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		return nil, fmt.Errorf("could not sign up user: %w", types.ErrInternal)
	}

	l.InfoContext(ctx, "User signed up", slog.String("userID", user.ID))
	return user, nil
}

// Login verifies credentials and issues an access token bound to {id, email}.
// "No such user" and "wrong password" return the same error so callers cannot
// enumerate accounts.
func (s *ServiceImpl) Login(ctx context.Context, email, password string) (string, error) {
	l := s.logger.With(slog.String("method", "Login"))
	s.m.LoginRequestsTotal.Add(ctx, 1)

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			s.m.LoginFailuresTotal.Add(ctx, 1)
			return "", fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
		}
		l.ErrorContext(ctx, "Failed to look up user by email", slog.Any("error", err))
		return "", fmt.Errorf("could not log in: %w", types.ErrInternal)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.m.LoginFailuresTotal.Add(ctx, 1)
		return "", fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
	}

	accessToken, err := s.issuer.Issue(user.ID, user.Email)
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue access token", slog.Any("error", err))
		return "", fmt.Errorf("could not log in: %w", types.ErrInternal)
	}

	l.InfoContext(ctx, "User logged in", slog.String("userID", user.ID))
	return accessToken, nil
}
