package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/domain/repositories"
)

func seedUser(t *testing.T, store *memStore, email string) *entities.User {
	t.Helper()
	user := &entities.User{Email: email, DisplayName: "A", AvatarURL: strPtr("https://a/1.png")}
	require.NoError(t, store.Repositories().Users.Create(context.Background(), user))
	return user
}

func TestProfileService_GetStored(t *testing.T) {
	store := newMemStore()
	seedUser(t, store, "a@x.com")
	svc := NewProfileService(store.Repositories().Users)

	view, err := svc.Get(context.Background(), "A@x.com", ProfileFallback{DisplayName: "ignored"})
	require.NoError(t, err)

	assert.True(t, view.Authenticated)
	assert.Equal(t, "a@x.com", view.Email)
	assert.Equal(t, "A", view.DisplayName)
	require.NotNil(t, view.AvatarURL)
	assert.Equal(t, "https://a/1.png", *view.AvatarURL)
	assert.Equal(t, "", view.Bio)
}

func TestProfileService_GetFallback(t *testing.T) {
	svc := NewProfileService(newMemStore().Repositories().Users)

	view, err := svc.Get(context.Background(), "new@x.com", ProfileFallback{
		DisplayName: "New",
		AvatarURL:   strPtr("https://avatars/9"),
	})
	require.NoError(t, err)

	assert.True(t, view.Authenticated)
	assert.Equal(t, "new@x.com", view.Email)
	assert.Equal(t, "New", view.DisplayName)
	assert.Equal(t, "https://avatars/9", *view.AvatarURL)
	assert.Equal(t, "", view.Bio)
}

func TestProfileService_Update(t *testing.T) {
	store := newMemStore()
	seedUser(t, store, "a@x.com")
	svc := NewProfileService(store.Repositories().Users)

	user, err := svc.Update(context.Background(), "a@x.com", ProfileUpdate{
		DisplayName: "  Alice <script>alert(1)</script> ",
		Bio:         "<b>Tom & Jerry</b> fan",
	})
	require.NoError(t, err)

	assert.Equal(t, "Alice", user.DisplayName)
	require.NotNil(t, user.Bio)
	assert.Equal(t, "Tom & Jerry fan", *user.Bio)

	stored := store.userByEmail("a@x.com")
	assert.Equal(t, "Alice", stored.DisplayName)
	require.NotNil(t, stored.AvatarURL, "avatar is not part of a profile update")

	user, err = svc.Update(context.Background(), "a@x.com", ProfileUpdate{DisplayName: "Alice", Bio: ""})
	require.NoError(t, err)
	assert.Nil(t, user.Bio)
}

func TestProfileService_UpdateValidation(t *testing.T) {
	store := newMemStore()
	seedUser(t, store, "a@x.com")
	svc := NewProfileService(store.Repositories().Users)
	ctx := context.Background()

	tests := []struct {
		name   string
		update ProfileUpdate
	}{
		{"empty display name", ProfileUpdate{DisplayName: "   "}},
		{"markup only display name", ProfileUpdate{DisplayName: "<img src=x>"}},
		{"display name too long", ProfileUpdate{DisplayName: strings.Repeat("a", MaxDisplayNameLength+1)}},
		{"bio too long", ProfileUpdate{DisplayName: "A", Bio: strings.Repeat("b", MaxBioLength+1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, "a@x.com", tt.update)
			assert.ErrorIs(t, err, ErrInvalidProfile)
		})
	}

	_, err := svc.Update(ctx, "a@x.com", ProfileUpdate{DisplayName: strings.Repeat("é", MaxDisplayNameLength)})
	assert.NoError(t, err, "limit counts characters, not bytes")
}

func TestProfileService_UpdateUnknownUser(t *testing.T) {
	svc := NewProfileService(newMemStore().Repositories().Users)

	_, err := svc.Update(context.Background(), "nobody@x.com", ProfileUpdate{DisplayName: "N"})
	assert.ErrorIs(t, err, repositories.ErrUserNotFound)
}

func TestUserService_GetUserWithLinks(t *testing.T) {
	store := newMemStore()
	svc := NewReconcileService(store)
	_, err := svc.Reconcile(context.Background(), googleAssertion("g-1", "a@x.com", "A"))
	require.NoError(t, err)
	_, err = svc.Reconcile(context.Background(), githubAssertion("9", "a@x.com", "A"))
	require.NoError(t, err)

	users := NewUserService(store.Repositories().Users, store.Repositories().Links)
	user, links, err := users.GetUserWithLinks(context.Background(), "A@X.COM")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Len(t, links, 2)

	_, _, err = users.GetUserWithLinks(context.Background(), "nobody@x.com")
	assert.True(t, IsUserNotFound(err))
}
