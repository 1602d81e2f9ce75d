package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rios0rios0/contentsync/application"
	"github.com/rios0rios0/contentsync/domain"
	"github.com/rios0rios0/contentsync/infrastructure/auth"
	testdoubles "github.com/rios0rios0/contentsync/test"
)

func newSession(backend domain.BackendService, creds *testdoubles.MemoryCredentialStore) *application.SessionService {
	session := application.NewSessionService(creds)
	if backend != nil {
		session.AttachBackend(backend)
	}
	return session
}

func TestSessionSignIn(t *testing.T) {
	t.Parallel()

	t.Run("should authenticate and cache the user on token sign-in", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{
			SignInUser: &domain.User{Login: "jane", Token: "tok-1", BackendName: "gitea"},
		}
		creds := &testdoubles.MemoryCredentialStore{}
		session := newSession(backend, creds)

		// when
		user, err := session.SignInWithToken(context.Background(), "tok-1", "refresh-1")

		// then
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, application.StateAuthenticated, session.State())
		assert.Equal(t, user, session.CurrentUser())
		assert.Equal(t, 1, creds.UserWrites)
		require.Len(t, backend.SignInCalls, 1)
		assert.Equal(t, "tok-1", backend.SignInCalls[0].Token)
		assert.Equal(t, "refresh-1", backend.SignInCalls[0].RefreshToken)
	})

	t.Run("should expose the pending token pair before the user exists", func(t *testing.T) {
		t.Parallel()

		// given
		session := application.NewSessionService(&testdoubles.MemoryCredentialStore{})
		var tokenDuringSignIn, refreshDuringSignIn string
		backend := &testdoubles.SpyBackend{
			SignInUser: &domain.User{Login: "jane", Token: "tok-1"},
			OnSignIn: func(_ domain.SignInOptions) {
				// the backend reads session tokens mid sign-in, before any
				// user record is published
				tokenDuringSignIn, refreshDuringSignIn = session.Tokens()
			},
		}
		session.AttachBackend(backend)

		// when
		_, err := session.SignInWithToken(context.Background(), "tok-1", "refresh-1")

		// then
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tokenDuringSignIn)
		assert.Equal(t, "refresh-1", refreshDuringSignIn)
	})

	t.Run("should reset to anonymous when the backend rejects the sign-in", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{SignInErr: &domain.AuthError{}}
		session := newSession(backend, &testdoubles.MemoryCredentialStore{})

		// when
		user, err := session.SignIn(context.Background())

		// then
		require.Error(t, err)
		assert.Nil(t, user)
		assert.Equal(t, application.StateAnonymous, session.State())
		assert.Nil(t, session.CurrentUser())
	})

	t.Run("should fail without an attached backend", func(t *testing.T) {
		t.Parallel()

		// given
		session := newSession(nil, &testdoubles.MemoryCredentialStore{})

		// when
		_, err := session.SignIn(context.Background())

		// then
		require.Error(t, err)
		var notFound *domain.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestSessionAutoSignIn(t *testing.T) {
	t.Parallel()

	t.Run("should restore the session from cached credentials", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{
			SignInUser: &domain.User{Login: "jane", Token: "tok-1", BackendName: "gitea"},
		}
		creds := &testdoubles.MemoryCredentialStore{
			User: &domain.User{Token: "tok-1", RefreshToken: "refresh-1"},
		}
		session := newSession(backend, creds)

		// when
		user, err := session.AutoSignIn(context.Background())

		// then
		require.NoError(t, err)
		require.NotNil(t, user)
		require.Len(t, backend.SignInCalls, 1)
		assert.True(t, backend.SignInCalls[0].Auto)
		assert.Equal(t, "tok-1", backend.SignInCalls[0].Token)
	})

	t.Run("should stay anonymous without calling the backend when nothing is cached", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{}
		session := newSession(backend, &testdoubles.MemoryCredentialStore{})

		// when
		user, err := session.AutoSignIn(context.Background())

		// then
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.Empty(t, backend.SignInCalls)
	})

	t.Run("should respect the signed-out sentinel", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{}
		creds := &testdoubles.MemoryCredentialStore{SignedOut: true}
		session := newSession(backend, creds)

		// when
		user, err := session.AutoSignIn(context.Background())

		// then
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.Empty(t, backend.SignInCalls)
	})

	t.Run("should swallow a rejected cached token and mark the session unauthenticated", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{SignInErr: &domain.AuthError{Cause: errors.New("expired")}}
		creds := &testdoubles.MemoryCredentialStore{User: &domain.User{Token: "stale"}}
		session := newSession(backend, creds)

		// when
		user, err := session.AutoSignIn(context.Background())

		// then: no error escapes, but the UI knows a fresh sign-in is needed
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.True(t, session.Unauthenticated())
		assert.Equal(t, application.StateAnonymous, session.State())
	})

	t.Run("should surface a non-auth failure on the error store", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{SignInErr: &domain.HTTPError{Status: 500, Body: "oops"}}
		creds := &testdoubles.MemoryCredentialStore{User: &domain.User{Token: "tok-1"}}
		session := newSession(backend, creds)

		// when
		_, err := session.AutoSignIn(context.Background())

		// then
		require.Error(t, err)
		assert.False(t, session.Unauthenticated())
		assert.ErrorIs(t, session.AuthErrorStore().Get(), err)
	})
}

func TestSessionConsumeBootstrap(t *testing.T) {
	t.Parallel()

	t.Run("should sign in with the embedded token and strip the path", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{
			SignInUser: &domain.User{Login: "jane", Token: "qr-token"},
		}
		session := newSession(backend, &testdoubles.MemoryCredentialStore{})
		path, err := auth.EncodeSignInPath(auth.Bootstrap{Token: "qr-token"})
		require.NoError(t, err)

		// when
		user, stripped, err := session.ConsumeBootstrap(context.Background(), path)

		// then
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "/", stripped)
		require.Len(t, backend.SignInCalls, 1)
		assert.Equal(t, "qr-token", backend.SignInCalls[0].Token)
	})

	t.Run("should leave a non-signin path untouched", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{}
		session := newSession(backend, &testdoubles.MemoryCredentialStore{})

		// when
		user, stripped, err := session.ConsumeBootstrap(context.Background(), "/entries")

		// then
		require.NoError(t, err)
		assert.Nil(t, user)
		assert.Equal(t, "/entries", stripped)
		assert.Empty(t, backend.SignInCalls)
	})
}

func TestSessionSignOut(t *testing.T) {
	t.Parallel()

	t.Run("should always succeed locally and write the sentinel", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{
			SignInUser: &domain.User{Login: "jane", Token: "tok-1"},
		}
		creds := &testdoubles.MemoryCredentialStore{}
		session := newSession(backend, creds)
		_, err := session.SignInWithToken(context.Background(), "tok-1", "")
		require.NoError(t, err)

		// when
		session.SignOut(context.Background())

		// then
		assert.Equal(t, 1, backend.SignOutCalls)
		assert.Equal(t, 1, creds.SignedOutWrite)
		assert.Nil(t, session.CurrentUser())
		assert.Equal(t, application.StateAnonymous, session.State())
		assert.NoError(t, session.AuthErrorStore().Get())
	})

	t.Run("should not fail even when the cache write does", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{}
		creds := &testdoubles.MemoryCredentialStore{WriteErr: errors.New("disk full")}
		session := newSession(backend, creds)

		// when: SignOut has no error to return by contract
		session.SignOut(context.Background())

		// then
		assert.Equal(t, application.StateAnonymous, session.State())
	})
}

func TestSessionUpdateTokens(t *testing.T) {
	t.Parallel()

	t.Run("should rewrite the live user and persist it after a refresh", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{
			SignInUser: &domain.User{Login: "jane", Token: "tok-old", RefreshToken: "refresh-old"},
		}
		creds := &testdoubles.MemoryCredentialStore{}
		session := newSession(backend, creds)
		_, err := session.SignInWithToken(context.Background(), "tok-old", "refresh-old")
		require.NoError(t, err)
		writesBefore := creds.UserWrites

		// when
		session.UpdateTokens("tok-new", "refresh-new")

		// then
		token, refresh := session.Tokens()
		assert.Equal(t, "tok-new", token)
		assert.Equal(t, "refresh-new", refresh)
		assert.Equal(t, "tok-new", session.CurrentUser().Token)
		assert.Equal(t, writesBefore+1, creds.UserWrites)
	})
}
