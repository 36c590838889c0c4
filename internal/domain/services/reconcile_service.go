package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/devilmonastery/idlink/internal/auth"
	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/domain/repositories"
	"github.com/devilmonastery/idlink/internal/pkg/metrics"
)

// Outcome describes which path a reconciliation took
type Outcome string

const (
	OutcomeReturning Outcome = "returning" // known provider identity
	OutcomeLinked    Outcome = "linked"    // new provider identity for an existing email
	OutcomeCreated   Outcome = "created"   // new user and first link
)

// ReconcileService maps provider assertions onto exactly one local user.
// It holds no mutable state and is safe for concurrent use.
type ReconcileService struct {
	uow repositories.UnitOfWork
	log *slog.Logger
}

// NewReconcileService creates a new reconciliation service
func NewReconcileService(uow repositories.UnitOfWork) *ReconcileService {
	return &ReconcileService{
		uow: uow,
		log: slog.Default().With(slog.String("service", "reconcile")),
	}
}

// Reconcile finds or creates the user for an assertion and links the provider identity.
// A unique-constraint race against a concurrent first login is retried once.
func (s *ReconcileService) Reconcile(ctx context.Context, a entities.IdentityAssertion) (*entities.User, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if a.Email == nil || *a.Email == "" {
		metrics.ReconcileFailures.WithLabelValues(a.Provider.String(), "email_unavailable").Inc()
		return nil, auth.ErrEmailUnavailable
	}

	log := s.log.With(slog.String("provider", a.ProviderKey()))

	user, err := s.attempt(ctx, a)
	if err != nil && isUniqueViolation(err) {
		log.Info("lost race against concurrent login, retrying", slog.String("error", err.Error()))
		metrics.ReconcileRetries.WithLabelValues(a.Provider.String()).Inc()
		user, err = s.attempt(ctx, a)
	}
	if err != nil {
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			err = &PersistenceError{Op: "reconcile", Err: err}
		}
		metrics.ReconcileFailures.WithLabelValues(a.Provider.String(), FailureReason(err)).Inc()
		log.Error("reconciliation failed", slog.String("error", err.Error()))
		return nil, err
	}

	return user, nil
}

// attempt runs the whole algorithm in one transaction
func (s *ReconcileService) attempt(ctx context.Context, a entities.IdentityAssertion) (user *entities.User, err error) {
	tx, err := s.uow.Begin(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "begin", Err: err}
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Warn("rollback failed", slog.String("error", rbErr.Error()))
			}
		}
	}()

	user, outcome, err := s.reconcileInTx(ctx, tx.GetRepositories(), a)
	if err != nil {
		return nil, err
	}

	userID := user.ID
	tx.AfterCommit(func() {
		s.log.Info("reconciliation committed",
			slog.String("user_id", userID),
			slog.String("provider", a.ProviderKey()),
			slog.String("outcome", string(outcome)))
		metrics.ReconcileOutcomes.WithLabelValues(a.Provider.String(), string(outcome)).Inc()
	})

	if err = tx.Commit(); err != nil {
		return nil, &PersistenceError{Op: "commit", Err: err}
	}
	return user, nil
}

func (s *ReconcileService) reconcileInTx(ctx context.Context, repos *repositories.Repositories, a entities.IdentityAssertion) (*entities.User, Outcome, error) {
	// Known provider identity
	link, err := repos.Links.GetByProviderAndSubject(ctx, a.Provider, a.ProviderUserID)
	if err == nil {
		user, err := repos.Users.GetByID(ctx, link.UserID)
		if err != nil {
			return nil, "", &PersistenceError{Op: "get_linked_user", Err: err}
		}
		if err := s.merge(ctx, repos, user, a); err != nil {
			return nil, "", err
		}
		return user, OutcomeReturning, nil
	}
	if !errors.Is(err, repositories.ErrLinkNotFound) {
		return nil, "", &PersistenceError{Op: "get_link", Err: err}
	}

	email := *a.Email
	outcome := OutcomeLinked

	user, err := repos.Users.GetByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, repositories.ErrUserNotFound):
		displayName := entities.DefaultDisplayName
		if a.DisplayName != nil {
			displayName = *a.DisplayName
		}
		user = &entities.User{
			Email:       email,
			DisplayName: displayName,
			AvatarURL:   copyString(a.AvatarURL),
		}
		if err := repos.Users.Create(ctx, user); err != nil {
			return nil, "", &PersistenceError{Op: "create_user", Err: err}
		}
		outcome = OutcomeCreated
	default:
		return nil, "", &PersistenceError{Op: "get_user_by_email", Err: err}
	}

	link = &entities.ProviderLink{
		UserID:         user.ID,
		Provider:       a.Provider,
		ProviderUserID: a.ProviderUserID,
		ProviderEmail:  email,
	}
	if err := repos.Links.Create(ctx, link); err != nil {
		return nil, "", &PersistenceError{Op: "create_link", Err: err}
	}

	if outcome == OutcomeLinked {
		if err := s.merge(ctx, repos, user, a); err != nil {
			return nil, "", err
		}
	}

	return user, outcome, nil
}

// merge applies merge-not-clobber and writes only when something changed
func (s *ReconcileService) merge(ctx context.Context, repos *repositories.Repositories, user *entities.User, a entities.IdentityAssertion) error {
	if !user.MergeProfile(a.DisplayName, a.AvatarURL) {
		return nil
	}
	if err := repos.Users.Update(ctx, user); err != nil {
		return &PersistenceError{Op: "update_user", Err: err}
	}
	return nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
