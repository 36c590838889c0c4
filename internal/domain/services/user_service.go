package services

import (
	"context"
	"fmt"

	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/domain/repositories"
)

// UserService provides read access to users and their provider links for administration
type UserService struct {
	userRepo repositories.UserRepository
	linkRepo repositories.ProviderLinkRepository
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository, linkRepo repositories.ProviderLinkRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
		linkRepo: linkRepo,
	}
}

// GetUserWithLinks retrieves a user by email along with every linked provider identity
func (s *UserService) GetUserWithLinks(ctx context.Context, email string) (*entities.User, []*entities.ProviderLink, error) {
	user, err := s.userRepo.GetByEmail(ctx, entities.NormalizeEmail(email))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	links, err := s.linkRepo.ListByUserID(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get provider links: %w", err)
	}

	return user, links, nil
}

// ListUsers lists users with pagination
func (s *UserService) ListUsers(ctx context.Context, opts repositories.ListUsersOptions) ([]*entities.User, int64, error) {
	users, total, err := s.userRepo.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}
