package repositories

import (
	"context"

	"github.com/devilmonastery/idlink/internal/domain/entities"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create a new user; returns ErrDuplicateEmail when the email is taken
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user by their ID
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// GetByEmail retrieves a user by their (normalized) email address
	GetByEmail(ctx context.Context, email string) (*entities.User, error)

	// Update an existing user's mutable profile fields
	Update(ctx context.Context, user *entities.User) error

	// List users with pagination
	List(ctx context.Context, opts ListUsersOptions) ([]*entities.User, int64, error)
}

// ListUsersOptions provides filtering and pagination options for listing users
type ListUsersOptions struct {
	// Pagination
	Limit  int
	Offset int

	// Filtering
	Search string // search in display_name or email
}
