package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mvalente-dev/identity-hub/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service exposes user CRUD to the HTTP layer.
type Service interface {
	CreateUser(ctx context.Context, params types.CreateUserParams) (*types.User, error)
	GetUserByID(ctx context.Context, id string) (*types.User, error)
	UpdateUser(ctx context.Context, id string, params types.UpdateUserParams) (*types.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type ServiceImpl struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		repo:   repo,
		logger: logger,
	}
}

func (s *ServiceImpl) CreateUser(ctx context.Context, params types.CreateUserParams) (*types.User, error) {
	user, err := s.repo.CreateUser(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "User created", slog.String("userID", user.ID))
	return user, nil
}

func (s *ServiceImpl) GetUserByID(ctx context.Context, id string) (*types.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *ServiceImpl) UpdateUser(ctx context.Context, id string, params types.UpdateUserParams) (*types.User, error) {
	user, err := s.repo.UpdateUser(ctx, id, params)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.logger.InfoContext(ctx, "User updated", slog.String("userID", id))
	return user, nil
}

func (s *ServiceImpl) DeleteUser(ctx context.Context, id string) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.InfoContext(ctx, "User deleted", slog.String("userID", id))
	return nil
}
