// Package emails fills in a missing email address from a provider's
// authenticated emails API.
package emails

import (
	"context"
	"log/slog"
	"time"

	"github.com/devilmonastery/idlink/internal/auth"
	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/pkg/metrics"
)

// DefaultTimeout bounds a single emails API call
const DefaultTimeout = 3 * time.Second

// Email is one address returned by a provider's emails API
type Email struct {
	Address    string `json:"email"`
	Primary    bool   `json:"primary"`
	Verified   bool   `json:"verified"`
	Visibility string `json:"visibility,omitempty"` // "public" or "private"
}

// Source fetches the authenticated user's email addresses
type Source interface {
	Fetch(ctx context.Context, accessToken string) ([]Email, error)
}

// Resolver looks up an email for assertions that arrived without one
type Resolver struct {
	sources map[entities.Provider]Source
	timeout time.Duration
	log     *slog.Logger
}

// NewResolver creates a resolver; providers without a source can never be resolved
func NewResolver(timeout time.Duration, sources map[entities.Provider]Source) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	copied := make(map[entities.Provider]Source, len(sources))
	for p, s := range sources {
		copied[p] = s
	}
	return &Resolver{
		sources: copied,
		timeout: timeout,
		log:     slog.Default().With(slog.String("service", "email_resolver")),
	}
}

// Resolve returns a copy of the assertion with an email selected from the
// provider's emails API. An assertion that already has an email is returned as is.
func (r *Resolver) Resolve(ctx context.Context, a entities.IdentityAssertion, accessToken string) (entities.IdentityAssertion, error) {
	if a.Email != nil {
		return a, nil
	}

	provider := a.Provider.String()
	source, ok := r.sources[a.Provider]
	if !ok {
		metrics.RecordEmailLookup(provider, "unavailable")
		return entities.IdentityAssertion{}, auth.ErrEmailUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	found, err := source.Fetch(ctx, accessToken)
	if err != nil {
		// Treated as no emails retrieved
		r.log.Warn("failed to fetch provider emails",
			slog.String("provider", provider),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		metrics.RecordEmailLookup(provider, "fetch_failed")
		found = nil
	}

	email, ok := SelectEmail(found)
	if !ok {
		if err == nil {
			metrics.RecordEmailLookup(provider, "unavailable")
		}
		r.log.Info("no verified email available",
			slog.String("provider", provider),
			slog.Int("candidates", len(found)))
		return entities.IdentityAssertion{}, auth.ErrEmailUnavailable
	}

	metrics.RecordEmailLookup(provider, "resolved")
	return a.WithEmail(email), nil
}

// SelectEmail picks the primary verified address, else the first verified one.
// Unverified addresses are never selected.
func SelectEmail(emails []Email) (string, bool) {
	firstVerified := ""
	for _, e := range emails {
		if !e.Verified || e.Address == "" {
			continue
		}
		if e.Primary {
			return e.Address, true
		}
		if firstVerified == "" {
			firstVerified = e.Address
		}
	}
	return firstVerified, firstVerified != ""
}
