package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/idlink/internal/auth"
	"github.com/devilmonastery/idlink/internal/domain/entities"
	"github.com/devilmonastery/idlink/internal/domain/repositories"
	"github.com/devilmonastery/idlink/internal/pkg/metrics"
)

func strPtr(s string) *string { return &s }

func googleAssertion(sub, email, name string) entities.IdentityAssertion {
	a := entities.IdentityAssertion{Provider: entities.ProviderGoogle, ProviderUserID: sub}
	if email != "" {
		a.Email = strPtr(email)
	}
	if name != "" {
		a.DisplayName = strPtr(name)
	}
	return a
}

func githubAssertion(id, email, name string) entities.IdentityAssertion {
	a := googleAssertion(id, email, name)
	a.Provider = entities.ProviderGitHub
	return a
}

func TestReconcile_CreatesUserAndLink(t *testing.T) {
	store := newMemStore()
	svc := NewReconcileService(store)

	before := testutil.ToFloat64(metrics.ReconcileOutcomes.WithLabelValues("GOOGLE", "created"))

	user, err := svc.Reconcile(context.Background(), googleAssertion("g-123", "a@x.com", "A"))
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, "A", user.DisplayName)
	assert.Equal(t, 1, store.userCount())
	links := store.linksFor(user.ID)
	require.Len(t, links, 1)
	assert.Equal(t, entities.ProviderGoogle, links[0].Provider)
	assert.Equal(t, "g-123", links[0].ProviderUserID)
	assert.Equal(t, "a@x.com", links[0].ProviderEmail)

	after := testutil.ToFloat64(metrics.ReconcileOutcomes.WithLabelValues("GOOGLE", "created"))
	assert.Equal(t, before+1, after)
}

func TestReconcile_Idempotent(t *testing.T) {
	store := newMemStore()
	svc := NewReconcileService(store)
	a := googleAssertion("g-123", "a@x.com", "A")

	first, err := svc.Reconcile(context.Background(), a)
	require.NoError(t, err)
	second, err := svc.Reconcile(context.Background(), a)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.userCount())
	assert.Equal(t, 1, store.linkCount())
	assert.Equal(t, 0, store.updates, "replaying identical values must not write")
}

func TestReconcile_LinksSecondProviderByEmail(t *testing.T) {
	store := newMemStore()
	svc := NewReconcileService(store)

	google, err := svc.Reconcile(context.Background(), googleAssertion("g-1", "b@x.com", "B"))
	require.NoError(t, err)

	github, err := svc.Reconcile(context.Background(), githubAssertion("9", "b@x.com", "Bee"))
	require.NoError(t, err)

	assert.Equal(t, google.ID, github.ID)
	assert.Equal(t, "Bee", github.DisplayName)
	assert.Equal(t, 1, store.userCount())
	assert.Len(t, store.linksFor(google.ID), 2)
}

func TestReconcile_ReturningIdentityKeepsLinkedUser(t *testing.T) {
	store := newMemStore()
	svc := NewReconcileService(store)

	original, err := svc.Reconcile(context.Background(), googleAssertion("g-1", "a@x.com", "A"))
	require.NoError(t, err)

	// The provider now reports a different email; the link decides the user
	again, err := svc.Reconcile(context.Background(), googleAssertion("g-1", "new@x.com", "A"))
	require.NoError(t, err)

	assert.Equal(t, original.ID, again.ID)
	assert.Equal(t, "a@x.com", again.Email)
	assert.Equal(t, 1, store.userCount())
}

func TestReconcile_MergeNotClobber(t *testing.T) {
	store := newMemStore()
	svc := NewReconcileService(store)
	ctx := context.Background()

	withAvatar := googleAssertion("g-1", "a@x.com", "A")
	withAvatar.AvatarURL = strPtr("https://a/1.png")
	_, err := svc.Reconcile(ctx, withAvatar)
	require.NoError(t, err)

	// Name changes, avatar absent: avatar must survive
	user, err := svc.Reconcile(ctx, googleAssertion("g-1", "a@x.com", "Alice"))
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.DisplayName)
	require.NotNil(t, user.AvatarURL)
	assert.Equal(t, "https://a/1.png", *user.AvatarURL)
	assert.Equal(t, 1, store.updates)

	// Nothing supplied: nothing written
	user, err = svc.Reconcile(ctx, googleAssertion("g-1", "a@x.com", ""))
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.DisplayName)
	assert.Equal(t, 1, store.updates)
}

func TestReconcile_DefaultDisplayName(t *testing.T) {
	svc := NewReconcileService(newMemStore())

	user, err := svc.Reconcile(context.Background(), githubAssertion("9", "c@x.com", ""))
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultDisplayName, user.DisplayName)
	assert.Nil(t, user.AvatarURL)
}

func TestReconcile_RejectsBeforeOpeningTransaction(t *testing.T) {
	store := newMemStore()
	svc := NewReconcileService(store)

	_, err := svc.Reconcile(context.Background(), googleAssertion("g-1", "", "A"))
	assert.ErrorIs(t, err, auth.ErrEmailUnavailable)

	_, err = svc.Reconcile(context.Background(), googleAssertion("", "a@x.com", "A"))
	assert.ErrorIs(t, err, auth.ErrMissingSubject)

	_, err = svc.Reconcile(context.Background(), entities.IdentityAssertion{Provider: "OKTA", ProviderUserID: "1", Email: strPtr("a@x.com")})
	var upe *auth.UnsupportedProviderError
	assert.True(t, errors.As(err, &upe))

	assert.Equal(t, 0, store.begins)
}

func TestReconcile_RaceOnNewEmailLinksToWinner(t *testing.T) {
	store := newMemStore()
	svc := NewReconcileService(store)
	ctx := context.Background()

	// A GitHub login for the same email commits between our lookup and our insert
	var winner *entities.User
	var winnerErr error
	store.beforeCreateUser = func() {
		winner, winnerErr = svc.Reconcile(ctx, githubAssertion("9", "b@x.com", "B"))
	}

	retriesBefore := testutil.ToFloat64(metrics.ReconcileRetries.WithLabelValues("GOOGLE"))

	user, err := svc.Reconcile(ctx, googleAssertion("g-1", "b@x.com", "B"))
	require.NoError(t, err)
	require.NoError(t, winnerErr)

	assert.Equal(t, winner.ID, user.ID)
	assert.Equal(t, 1, store.userCount())
	assert.Equal(t, 2, store.linkCount())
	assert.Equal(t, retriesBefore+1, testutil.ToFloat64(metrics.ReconcileRetries.WithLabelValues("GOOGLE")))
}

func TestReconcile_RaceOnSameIdentity(t *testing.T) {
	store := newMemStore()
	svc := NewReconcileService(store)
	ctx := context.Background()
	a := googleAssertion("g-1", "a@x.com", "A")

	var winner *entities.User
	store.beforeCreateUser = func() {
		var err error
		winner, err = svc.Reconcile(ctx, a)
		require.NoError(t, err)
	}

	user, err := svc.Reconcile(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, user.ID)
	assert.Equal(t, 1, store.userCount())
	assert.Equal(t, 1, store.linkCount())
}

func TestReconcile_ConcurrentFirstLogins(t *testing.T) {
	store := newMemStore()
	svc := NewReconcileService(store)
	a := googleAssertion("g-1", "a@x.com", "A")

	const workers = 8
	var wg sync.WaitGroup
	ids := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := svc.Reconcile(context.Background(), a)
			errs[i] = err
			if err == nil {
				ids[i] = user.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, store.userCount())
	assert.Equal(t, 1, store.linkCount())
}

func TestReconcile_SecondConflictIsPersistenceError(t *testing.T) {
	store := newMemStore()
	store.errs["create_user"] = repositories.ErrDuplicateEmail
	svc := NewReconcileService(store)

	_, err := svc.Reconcile(context.Background(), googleAssertion("g-1", "a@x.com", "A"))

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe), "expected PersistenceError, got %v", err)
	assert.Equal(t, "create_user", pe.Op)
	assert.ErrorIs(t, err, repositories.ErrDuplicateEmail)
	assert.Equal(t, 2, store.begins)
	assert.Equal(t, 2, store.rollbacks)
	assert.Equal(t, 0, store.userCount())
}

func TestReconcile_GatewayErrorIsNotRetried(t *testing.T) {
	store := newMemStore()
	store.errs["get_user_by_email"] = errors.New("connection reset")
	svc := NewReconcileService(store)

	_, err := svc.Reconcile(context.Background(), googleAssertion("g-1", "a@x.com", "A"))

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "get_user_by_email", pe.Op)
	assert.Equal(t, 1, store.begins)
	assert.Equal(t, "persistence", FailureReason(err))
}

func TestReconcile_LinkFailureLeavesNoUser(t *testing.T) {
	store := newMemStore()
	store.errs["create_link"] = errors.New("disk full")
	svc := NewReconcileService(store)

	_, err := svc.Reconcile(context.Background(), googleAssertion("g-1", "a@x.com", "A"))
	require.Error(t, err)

	assert.Equal(t, 0, store.userCount())
	assert.Equal(t, 0, store.linkCount())
	assert.Equal(t, 0, store.commits)
}

func TestReconcile_BeginFailure(t *testing.T) {
	store := newMemStore()
	store.errs["begin"] = errors.New("too many connections")
	svc := NewReconcileService(store)

	_, err := svc.Reconcile(context.Background(), googleAssertion("g-1", "a@x.com", "A"))
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "begin", pe.Op)
}

func TestProject(t *testing.T) {
	user := &entities.User{
		ID:          "1",
		Email:       "a@x.com",
		DisplayName: "A",
		AvatarURL:   strPtr("https://a/1.png"),
	}

	profile := Project(user)
	assert.Equal(t, "a@x.com", profile.Email)
	assert.Equal(t, "A", profile.DisplayName)
	require.NotNil(t, profile.AvatarURL)
	assert.Equal(t, "https://a/1.png", *profile.AvatarURL)
	assert.Nil(t, profile.Bio)

	*profile.AvatarURL = "changed"
	assert.Equal(t, "https://a/1.png", *user.AvatarURL)
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "unsupported_provider", FailureReason(&auth.UnsupportedProviderError{Provider: "x"}))
	assert.Equal(t, "email_unavailable", FailureReason(auth.ErrEmailUnavailable))
	assert.Equal(t, "missing_subject", FailureReason(auth.ErrMissingSubject))
	assert.Equal(t, "persistence", FailureReason(&PersistenceError{Op: "commit", Err: errors.New("x")}))
	assert.Equal(t, "login_failed", FailureReason(errors.New("x")))
}
