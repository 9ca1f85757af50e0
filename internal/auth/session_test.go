// AngelaMos | 2026
// session_test.go

package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/account-service/internal/core"
	"github.com/carterperez-dev/templates/account-service/internal/user"
)

func storedUser(t *testing.T, f *fixture) *user.User {
	t.Helper()
	u := sampleUser()
	require.NoError(t, NewCredentials(nil).SetPassword(u, "s3cret!"))
	require.NoError(t, f.repo.Create(context.Background(), u))
	return u
}

func TestIssue_MintsWhenAbsent(t *testing.T) {
	f := newFixture(t)
	u := storedUser(t, f)
	ctx := context.Background()

	token, rotated, err := f.sessions.Issue(ctx, u)
	require.NoError(t, err)
	assert.True(t, rotated)
	assert.NotEmpty(t, token)
	assert.Equal(t, 1, f.repo.saves)

	stored := f.repo.get(t, u.Email)
	current, ok := stored.Session()
	require.True(t, ok)
	assert.Equal(t, token, current.Value)

	cached, hit, err := f.cache.Lookup(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, core.HashToken(token), cached)
}

func TestIssue_ReusesValidToken(t *testing.T) {
	f := newFixture(t)
	u := storedUser(t, f)
	ctx := context.Background()

	first, _, err := f.sessions.Issue(ctx, u)
	require.NoError(t, err)

	again := f.repo.get(t, u.Email)
	second, rotated, err := f.sessions.Issue(ctx, &again)
	require.NoError(t, err)
	assert.False(t, rotated)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.repo.saves)
}

func TestIssue_RotatesExpiredToken(t *testing.T) {
	f := newFixture(t)
	u := storedUser(t, f)
	ctx := context.Background()

	u.SetSession(user.TokenPair{Value: "stale", ExpiresAt: time.Now().Add(-time.Minute)})

	token, rotated, err := f.sessions.Issue(ctx, u)
	require.NoError(t, err)
	assert.True(t, rotated)
	assert.NotEqual(t, "stale", token)

	stored := f.repo.get(t, u.Email)
	current, ok := stored.Session()
	require.True(t, ok)
	assert.Equal(t, token, current.Value)
	assert.True(t, current.ExpiresAt.After(time.Now()))
}

func TestIssue_PersistFailure(t *testing.T) {
	f := newFixture(t)
	u := storedUser(t, f)
	f.repo.saveErr = errors.New("connection reset")

	token, _, err := f.sessions.Issue(context.Background(), u)
	require.Error(t, err)
	assert.Empty(t, token)
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, hit, _ := f.cache.Lookup(context.Background(), u.ID)
	assert.False(t, hit)
}

func TestIssue_CacheFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	u := storedUser(t, f)
	f.cache.err = errors.New("redis down")

	token, rotated, err := f.sessions.Issue(context.Background(), u)
	require.NoError(t, err)
	assert.True(t, rotated)
	assert.NotEmpty(t, token)
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	u := storedUser(t, f)
	ctx := context.Background()

	token, _, err := f.sessions.Issue(ctx, u)
	require.NoError(t, err)

	t.Run("cache hit", func(t *testing.T) {
		id, err := f.sessions.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, u.ID, id)
	})

	t.Run("cache miss falls back to store", func(t *testing.T) {
		f.cache.drop(u.ID)

		id, err := f.sessions.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, u.ID, id)

		_, hit, _ := f.cache.Lookup(ctx, u.ID)
		assert.True(t, hit)
	})

	t.Run("cache unavailable falls back to store", func(t *testing.T) {
		f.cache.err = errors.New("redis down")
		defer func() { f.cache.err = nil }()

		id, err := f.sessions.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, u.ID, id)
	})

	t.Run("bad signature", func(t *testing.T) {
		_, err := f.sessions.Resolve(ctx, token+"x")
		assert.ErrorIs(t, err, core.ErrTokenInvalid)
	})
}

func TestResolve_AfterRevoke(t *testing.T) {
	f := newFixture(t)
	u := storedUser(t, f)
	ctx := context.Background()

	token, _, err := f.sessions.Issue(ctx, u)
	require.NoError(t, err)

	stored := f.repo.get(t, u.Email)
	require.NoError(t, f.sessions.Revoke(ctx, &stored))

	after := f.repo.get(t, u.Email)
	_, ok := after.Session()
	assert.False(t, ok)

	_, err = f.sessions.Resolve(ctx, token)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestResolve_SupersededToken(t *testing.T) {
	f := newFixture(t)
	u := storedUser(t, f)
	ctx := context.Background()

	old, _, err := f.sessions.Issue(ctx, u)
	require.NoError(t, err)

	stored := f.repo.get(t, u.Email)
	stored.ClearSession()
	require.NoError(t, f.repo.Save(ctx, &stored))
	fresh, rotated, err := f.sessions.Issue(ctx, &stored)
	require.NoError(t, err)
	require.True(t, rotated)

	_, err = f.sessions.Resolve(ctx, old)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	id, err := f.sessions.Resolve(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
}

func TestResolve_UnknownUser(t *testing.T) {
	f := newFixture(t)

	pair, err := f.minter.MintSession(sampleUser())
	require.NoError(t, err)

	_, err = f.sessions.Resolve(context.Background(), pair.Value)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestCookies(t *testing.T) {
	f := newFixture(t)

	c := f.sessions.Cookie("abc")
	assert.Equal(t, "token", c.Name)
	assert.Equal(t, "abc", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 7*24*60*60, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.False(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)

	cleared := f.sessions.ClearCookie()
	assert.Equal(t, "token", cleared.Name)
	assert.Empty(t, cleared.Value)
	assert.Equal(t, -1, cleared.MaxAge)
	assert.True(t, cleared.HttpOnly)

	secure := NewSessionIssuer(f.repo, f.minter, nil, testSession, true, nil)
	assert.True(t, secure.Cookie("abc").Secure)
	assert.Equal(t, "token", secure.CookieName())
}

func TestRevoke_CacheUnavailableLeavesSession(t *testing.T) {
	f := newFixture(t)
	u := storedUser(t, f)
	ctx := context.Background()

	token, _, err := f.sessions.Issue(ctx, u)
	require.NoError(t, err)

	f.cache.invalidateErrs = []error{errors.New("redis down")}
	stored := f.repo.get(t, u.Email)
	err = f.sessions.Revoke(ctx, &stored)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUpstream)
	assert.Equal(t, http.StatusBadGateway, appErr(t, err).StatusCode)

	after := f.repo.get(t, u.Email)
	_, ok := after.Session()
	assert.True(t, ok, "session must survive an aborted revoke")

	id, err := f.sessions.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
}

func TestRevoke_SecondInvalidationFails(t *testing.T) {
	f := newFixture(t)
	u := storedUser(t, f)
	ctx := context.Background()

	token, _, err := f.sessions.Issue(ctx, u)
	require.NoError(t, err)

	f.cache.invalidateErrs = []error{nil, errors.New("redis down")}
	stored := f.repo.get(t, u.Email)
	err = f.sessions.Revoke(ctx, &stored)
	assert.ErrorIs(t, err, core.ErrUpstream)

	_, hit, _ := f.cache.Lookup(ctx, u.ID)
	assert.False(t, hit)

	_, err = f.sessions.Resolve(ctx, token)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

// interleavedRepo runs afterFind once, right after the first FindByID read.
type interleavedRepo struct {
	*fakeRepo
	afterFind func()
}

func (r *interleavedRepo) FindByID(ctx context.Context, id string) (*user.User, error) {
	u, err := r.fakeRepo.FindByID(ctx, id)
	if hook := r.afterFind; hook != nil {
		r.afterFind = nil
		hook()
	}
	return u, err
}

func TestResolve_RevokeDuringLookupIsNotRecached(t *testing.T) {
	f := newFixture(t)
	u := storedUser(t, f)
	ctx := context.Background()

	repo := &interleavedRepo{fakeRepo: f.repo}
	sessions := NewSessionIssuer(repo, f.minter, f.cache, testSession, false, discardLogger())

	token, _, err := sessions.Issue(ctx, u)
	require.NoError(t, err)
	f.cache.drop(u.ID)

	repo.afterFind = func() {
		stored := f.repo.get(t, u.Email)
		require.NoError(t, sessions.Revoke(ctx, &stored))
	}

	_, err = sessions.Resolve(ctx, token)
	require.NoError(t, err)

	_, hit, _ := f.cache.Lookup(ctx, u.ID)
	assert.False(t, hit)

	_, err = sessions.Resolve(ctx, token)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}
