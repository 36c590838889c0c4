package oidc

import (
	"github.com/devilmonastery/idlink/internal/auth"
	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/pkg/urlutil"
)

// Normalizer maps one provider's attribute shape onto an IdentityAssertion
type Normalizer interface {
	// Provider returns the provider this normalizer handles
	Provider() entities.Provider

	// Normalize converts raw provider attributes; it has no side effects
	Normalize(raw map[string]any) (entities.IdentityAssertion, error)
}

// StandardClaimsNormalizer reads the standard OIDC claims (sub, email, name, picture)
type StandardClaimsNormalizer struct {
	provider entities.Provider
}

// NewStandardClaimsNormalizer creates a normalizer for an OIDC provider such as Google
func NewStandardClaimsNormalizer(provider entities.Provider) *StandardClaimsNormalizer {
	return &StandardClaimsNormalizer{provider: provider}
}

func (n *StandardClaimsNormalizer) Provider() entities.Provider {
	return n.provider
}

func (n *StandardClaimsNormalizer) Normalize(raw map[string]any) (entities.IdentityAssertion, error) {
	claims := Claims(raw)

	sub := claims.Identifier("sub")
	if sub == "" {
		return entities.IdentityAssertion{}, auth.ErrMissingSubject
	}

	return entities.IdentityAssertion{
		Provider:       n.provider,
		ProviderUserID: sub,
		Email:          claims.Email("email"),
		DisplayName:    claims.String("name"),
		AvatarURL:      urlutil.SafeAvatarURL(claims.String("picture")),
	}, nil
}

// GitHubNormalizer reads GitHub's /user REST attributes (id, email, name, login, avatar_url)
type GitHubNormalizer struct{}

// NewGitHubNormalizer creates a normalizer for GitHub
func NewGitHubNormalizer() *GitHubNormalizer {
	return &GitHubNormalizer{}
}

func (n *GitHubNormalizer) Provider() entities.Provider {
	return entities.ProviderGitHub
}

func (n *GitHubNormalizer) Normalize(raw map[string]any) (entities.IdentityAssertion, error) {
	claims := Claims(raw)

	id := claims.Identifier("id")
	if id == "" {
		return entities.IdentityAssertion{}, auth.ErrMissingSubject
	}

	// Users without a profile name still have a login
	name := claims.String("name")
	if name == nil {
		name = claims.String("login")
	}

	return entities.IdentityAssertion{
		Provider:       entities.ProviderGitHub,
		ProviderUserID: id,
		Email:          claims.Email("email"),
		DisplayName:    name,
		AvatarURL:      urlutil.SafeAvatarURL(claims.String("avatar_url")),
	}, nil
}
