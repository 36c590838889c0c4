package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/pkg/metrics"
)

// AssertionNormalizer converts raw provider attributes into an assertion
type AssertionNormalizer interface {
	Normalize(provider entities.Provider, raw map[string]any) (entities.IdentityAssertion, error)
}

// EmailResolver fills in a missing email using the provider access token
type EmailResolver interface {
	Resolve(ctx context.Context, a entities.IdentityAssertion, accessToken string) (entities.IdentityAssertion, error)
}

// LoginService runs a completed provider login through normalize, resolve, reconcile and project
type LoginService struct {
	normalizer AssertionNormalizer
	resolver   EmailResolver
	reconciler *ReconcileService
	log        *slog.Logger
}

// NewLoginService creates a new login service
func NewLoginService(normalizer AssertionNormalizer, resolver EmailResolver, reconciler *ReconcileService) *LoginService {
	return &LoginService{
		normalizer: normalizer,
		resolver:   resolver,
		reconciler: reconciler,
		log:        slog.Default().With(slog.String("service", "login")),
	}
}

// Complete turns the provider's attributes into the canonical profile of a persisted user.
// Any error means no session may be established.
func (s *LoginService) Complete(ctx context.Context, provider entities.Provider, raw map[string]any, accessToken string) (entities.CanonicalProfile, error) {
	start := time.Now()
	log := s.log.With(slog.String("provider", provider.String()))

	assertion, err := s.normalizer.Normalize(provider, raw)
	if err != nil {
		metrics.ReconcileFailures.WithLabelValues(provider.String(), FailureReason(err)).Inc()
		log.Warn("failed to normalize provider attributes", slog.String("error", err.Error()))
		return entities.CanonicalProfile{}, err
	}

	if assertion.Email == nil && s.resolver != nil {
		assertion, err = s.resolver.Resolve(ctx, assertion, accessToken)
		if err != nil {
			metrics.ReconcileFailures.WithLabelValues(provider.String(), FailureReason(err)).Inc()
			log.Warn("failed to resolve email", slog.String("error", err.Error()))
			return entities.CanonicalProfile{}, err
		}
	}

	user, err := s.reconciler.Reconcile(ctx, assertion)
	if err != nil {
		return entities.CanonicalProfile{}, err
	}

	log.Info("login completed",
		slog.String("user_id", user.ID),
		slog.Duration("duration", time.Since(start)))

	return Project(user), nil
}
