package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/domain/repositories"
	"github.com/devilmonastery/idlink/internal/pkg/idgen"
	"github.com/devilmonastery/idlink/internal/pkg/metrics"
)

// ProviderLinkRepository implements the ProviderLinkRepository interface over sqlx
type ProviderLinkRepository struct {
	db  sqlx.ExtContext
	log *slog.Logger
}

// NewProviderLinkRepository creates a new provider link repository bound to a DB or Tx
func NewProviderLinkRepository(db sqlx.ExtContext) repositories.ProviderLinkRepository {
	return &ProviderLinkRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "provider_link")),
	}
}

const linkColumns = `id, user_id, provider, provider_user_id, provider_email, created_at`

// Create creates a new provider link
func (r *ProviderLinkRepository) Create(ctx context.Context, link *entities.ProviderLink) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("provider_link", "create", time.Since(start), err)
	}()

	if link.ID == "" {
		link.ID = idgen.GenerateID()
	}
	link.CreatedAt = time.Now().UTC()

	r.log.Debug("creating provider link",
		slog.String("id", link.ID),
		slog.String("user_id", link.UserID),
		slog.String("provider", link.ProviderKey()))

	query := `INSERT INTO provider_links (
			id, user_id, provider, provider_user_id, provider_email, created_at
		) VALUES (
			:id, :user_id, :provider, :provider_user_id, :provider_email, :created_at
		)`

	_, err = sqlx.NamedExecContext(ctx, r.db, query, link)
	if err != nil {
		err = translateError(err)
		if errors.Is(err, repositories.ErrDuplicateLink) {
			return err
		}
		return fmt.Errorf("failed to create provider link: %w", err)
	}

	return nil
}

// GetByProviderAndSubject retrieves a link by provider and provider user id
func (r *ProviderLinkRepository) GetByProviderAndSubject(ctx context.Context, provider entities.Provider, providerUserID string) (*entities.ProviderLink, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("provider_link", "get_by_provider_and_subject", time.Since(start), err)
	}()

	var link entities.ProviderLink
	query := r.db.Rebind(`SELECT ` + linkColumns + ` FROM provider_links
		WHERE provider = ? AND provider_user_id = ?`)

	err = sqlx.GetContext(ctx, r.db, &link, query, string(provider), providerUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = repositories.ErrLinkNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get provider link: %w", err)
	}

	return &link, nil
}

// ListByUserID retrieves all links for a user, oldest first
func (r *ProviderLinkRepository) ListByUserID(ctx context.Context, userID string) ([]*entities.ProviderLink, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("provider_link", "list_by_user_id", time.Since(start), err)
	}()

	var links []*entities.ProviderLink
	query := r.db.Rebind(`SELECT ` + linkColumns + ` FROM provider_links
		WHERE user_id = ?
		ORDER BY created_at, id`)

	err = sqlx.SelectContext(ctx, r.db, &links, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider links: %w", err)
	}

	return links, nil
}

var _ repositories.ProviderLinkRepository = (*ProviderLinkRepository)(nil)
