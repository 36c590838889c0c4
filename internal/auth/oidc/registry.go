package oidc

import (
	"sort"

	"github.com/devilmonastery/idlink/internal/auth"
	"github.com/devilmonastery/idlink/internal/domain/entities"
)

// Registry maps each supported provider to exactly one Normalizer
type Registry struct {
	normalizers map[entities.Provider]Normalizer
}

// NewRegistry creates a registry holding the given normalizers.
// A later normalizer for the same provider replaces an earlier one.
func NewRegistry(normalizers ...Normalizer) *Registry {
	r := &Registry{normalizers: make(map[entities.Provider]Normalizer)}
	for _, n := range normalizers {
		r.normalizers[n.Provider()] = n
	}
	return r
}

// NewDefaultRegistry returns a registry with every built-in provider
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		NewStandardClaimsNormalizer(entities.ProviderGoogle),
		NewGitHubNormalizer(),
	)
}

// Get retrieves the normalizer for a provider
func (r *Registry) Get(provider entities.Provider) (Normalizer, error) {
	n, ok := r.normalizers[provider]
	if !ok {
		return nil, &auth.UnsupportedProviderError{Provider: string(provider)}
	}
	return n, nil
}

// Normalize converts raw attributes using the provider's normalizer
func (r *Registry) Normalize(provider entities.Provider, raw map[string]any) (entities.IdentityAssertion, error) {
	n, err := r.Get(provider)
	if err != nil {
		return entities.IdentityAssertion{}, err
	}
	return n.Normalize(raw)
}

// List returns all registered providers, sorted
func (r *Registry) List() []entities.Provider {
	providers := make([]entities.Provider, 0, len(r.normalizers))
	for p := range r.normalizers {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers
}
