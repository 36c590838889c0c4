package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/idlink/internal/auth"
	"github.com/devilmonastery/idlink/internal/auth/emails"
	"github.com/devilmonastery/idlink/internal/auth/oidc"
	"github.com/devilmonastery/idlink/internal/domain/entities"
)

func newLoginService(store *memStore, emailsURL string) *LoginService {
	sources := map[entities.Provider]emails.Source{}
	if emailsURL != "" {
		sources[entities.ProviderGitHub] = emails.NewGitHubSource(emailsURL, time.Second)
	}
	return NewLoginService(
		oidc.NewDefaultRegistry(),
		emails.NewResolver(time.Second, sources),
		NewReconcileService(store),
	)
}

func TestLogin_GoogleFirstLogin(t *testing.T) {
	store := newMemStore()
	svc := newLoginService(store, "")

	profile, err := svc.Complete(context.Background(), entities.ProviderGoogle, map[string]any{
		"sub":     "g-123",
		"email":   "a@x.com",
		"name":    "A",
		"picture": "https://p/a.png",
	}, "token")
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", profile.Email)
	assert.Equal(t, "A", profile.DisplayName)
	require.NotNil(t, profile.AvatarURL)
	assert.Equal(t, "https://p/a.png", *profile.AvatarURL)
	assert.Nil(t, profile.Bio)

	user := store.userByEmail("a@x.com")
	require.NotNil(t, user)
	links := store.linksFor(user.ID)
	require.Len(t, links, 1)
	assert.Equal(t, entities.ProviderGoogle, links[0].Provider)
	assert.Equal(t, "g-123", links[0].ProviderUserID)
}

func TestLogin_GitHubWithoutPublicEmailLinksExistingUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_abc", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[
			{"email":"old@x.com","primary":false,"verified":true},
			{"email":"b@x.com","primary":true,"verified":true}
		]`))
	}))
	defer server.Close()

	store := newMemStore()
	svc := newLoginService(store, server.URL)
	ctx := context.Background()

	_, err := svc.Complete(ctx, entities.ProviderGoogle, map[string]any{"sub": "g-7", "email": "b@x.com", "name": "B"}, "ya29")
	require.NoError(t, err)

	profile, err := svc.Complete(ctx, entities.ProviderGitHub, map[string]any{
		"id":         float64(9),
		"login":      "bee",
		"email":      nil,
		"name":       "B",
		"avatar_url": "https://avatars/9",
	}, "gho_abc")
	require.NoError(t, err)

	assert.Equal(t, "b@x.com", profile.Email)
	require.NotNil(t, profile.AvatarURL)
	assert.Equal(t, "https://avatars/9", *profile.AvatarURL)

	user := store.userByEmail("b@x.com")
	require.NotNil(t, user)
	assert.Equal(t, 1, store.userCount())
	links := store.linksFor(user.ID)
	assert.Len(t, links, 2)
}

func TestLogin_GitHubNoVerifiedEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"email":"p@x.com","primary":true,"verified":false}]`))
	}))
	defer server.Close()

	store := newMemStore()
	svc := newLoginService(store, server.URL)

	_, err := svc.Complete(context.Background(), entities.ProviderGitHub, map[string]any{"id": float64(9)}, "gho")
	assert.ErrorIs(t, err, auth.ErrEmailUnavailable)
	assert.Equal(t, 0, store.begins)
}

func TestLogin_GoogleWithoutEmailHasNoFallback(t *testing.T) {
	store := newMemStore()
	svc := newLoginService(store, "http://127.0.0.1:1")

	_, err := svc.Complete(context.Background(), entities.ProviderGoogle, map[string]any{"sub": "g-1"}, "token")
	assert.ErrorIs(t, err, auth.ErrEmailUnavailable)
}

func TestLogin_UnsupportedProvider(t *testing.T) {
	store := newMemStore()
	svc := newLoginService(store, "")

	_, err := svc.Complete(context.Background(), entities.Provider("OKTA"), map[string]any{"sub": "1", "email": "a@x.com"}, "token")
	var upe *auth.UnsupportedProviderError
	require.True(t, errors.As(err, &upe))
	assert.Equal(t, "unsupported_provider", FailureReason(err))
	assert.Equal(t, 0, store.begins)
}
