package repositories

import (
	"context"

	"github.com/devilmonastery/idlink/internal/domain/entities"
)

// ProviderLinkRepository defines the interface for provider link data access.
// Links are immutable once created.
type ProviderLinkRepository interface {
	// Create creates a new link; returns ErrDuplicateLink when the
	// (provider, provider user id) pair is already linked
	Create(ctx context.Context, link *entities.ProviderLink) error

	// GetByProviderAndSubject retrieves a link by provider and provider user id
	// This is the primary lookup during login to find returning identities
	GetByProviderAndSubject(ctx context.Context, provider entities.Provider, providerUserID string) (*entities.ProviderLink, error)

	// ListByUserID retrieves all links for a user
	ListByUserID(ctx context.Context, userID string) ([]*entities.ProviderLink, error)
}
