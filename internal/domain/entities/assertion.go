package entities

import (
	"strings"

	"github.com/devilmonastery/idlink/internal/auth"
)

// Provider identifies an external identity issuer
type Provider string

const (
	ProviderGoogle Provider = "GOOGLE"
	ProviderGitHub Provider = "GITHUB"
)

// SupportedProviders lists every provider the service can reconcile
var SupportedProviders = []Provider{ProviderGoogle, ProviderGitHub}

// ParseProvider resolves a case-insensitive provider name ("google", "GITHUB")
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToUpper(strings.TrimSpace(name)))
	if !p.Valid() {
		return "", &auth.UnsupportedProviderError{Provider: name}
	}
	return p, nil
}

// Valid reports whether p is one of SupportedProviders
func (p Provider) Valid() bool {
	for _, s := range SupportedProviders {
		if p == s {
			return true
		}
	}
	return false
}

// Slug returns the lower-case form used in URLs and configuration
func (p Provider) Slug() string {
	return strings.ToLower(string(p))
}

func (p Provider) String() string {
	return string(p)
}

// IdentityAssertion is the canonical form of what a provider says about the logged-in user.
// Values are immutable; use WithEmail to derive a copy.
type IdentityAssertion struct {
	Provider       Provider
	ProviderUserID string
	Email          *string
	DisplayName    *string
	AvatarURL      *string
}

// WithEmail returns a copy of the assertion carrying the given email
func (a IdentityAssertion) WithEmail(email string) IdentityAssertion {
	normalized := NormalizeEmail(email)
	a.Email = &normalized
	return a
}

// Validate checks the fields reconciliation depends on, other than email
func (a IdentityAssertion) Validate() error {
	if !a.Provider.Valid() {
		return &auth.UnsupportedProviderError{Provider: string(a.Provider)}
	}
	if strings.TrimSpace(a.ProviderUserID) == "" {
		return auth.ErrMissingSubject
	}
	return nil
}

// ProviderKey returns a formatted provider+subject string for logging
func (a IdentityAssertion) ProviderKey() string {
	return string(a.Provider) + ":" + a.ProviderUserID
}

// NormalizeEmail trims and lower-cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
