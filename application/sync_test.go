package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rios0rios0/contentsync/application"
	"github.com/rios0rios0/contentsync/domain"
	testdoubles "github.com/rios0rios0/contentsync/test"
)

func signedInSession(t *testing.T, backend domain.BackendService) *application.SessionService {
	t.Helper()
	session := newSession(backend, &testdoubles.MemoryCredentialStore{})
	_, err := session.SignInWithToken(context.Background(), "tok-1", "")
	require.NoError(t, err)
	return session
}

func TestSyncFetchAll(t *testing.T) {
	t.Parallel()

	t.Run("should return the backend contents for a signed-in session", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{
			SignInUser: &domain.User{Login: "jane", Token: "tok-1"},
			RepoInfo:   &domain.RepositoryInfo{Owner: "acme", Repo: "site"},
			Contents: domain.ContentsMap{
				"content/a.md": {Text: "# A"},
			},
		}
		session := signedInSession(t, backend)
		sync := application.NewSyncService(session)

		// when
		contents, err := sync.FetchAll(context.Background(), backend)

		// then
		require.NoError(t, err)
		assert.Equal(t, backend.Contents, contents)
		assert.Equal(t, 1, backend.FetchCalls)
	})

	t.Run("should refuse to fetch anonymously", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{}
		session := newSession(backend, &testdoubles.MemoryCredentialStore{})
		sync := application.NewSyncService(session)

		// when
		_, err := sync.FetchAll(context.Background(), backend)

		// then
		var authErr *domain.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Zero(t, backend.FetchCalls)
	})
}

func TestSyncFetchAsset(t *testing.T) {
	t.Parallel()

	t.Run("should retrieve a single blob", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{
			SignInUser: &domain.User{Login: "jane", Token: "tok-1"},
			Blobs:      map[string][]byte{"static/logo.png": {0x89, 'P', 'N', 'G'}},
		}
		sync := application.NewSyncService(signedInSession(t, backend))

		// when
		blob, err := sync.FetchAsset(context.Background(), backend, "static/logo.png")

		// then
		require.NoError(t, err)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, blob)
	})
}

func TestSyncCommit(t *testing.T) {
	t.Parallel()

	t.Run("should pass the change set through and return the commit URL", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{
			SignInUser: &domain.User{Login: "jane", Token: "tok-1"},
			CommitURL:  "https://git.example.com/acme/site/commit/abc",
		}
		sync := application.NewSyncService(signedInSession(t, backend))
		changes := []domain.FileChange{{Action: domain.ActionUpdate, Path: "a.md", Data: "x"}}
		opts := domain.CommitOptions{Kind: domain.CommitKindUpdate, SkipCI: true}

		// when
		url, err := sync.Commit(context.Background(), backend, changes, opts)

		// then
		require.NoError(t, err)
		assert.Equal(t, "https://git.example.com/acme/site/commit/abc", url)
		require.Len(t, backend.CommittedChanges, 1)
		assert.Equal(t, changes, backend.CommittedChanges[0])
		assert.Equal(t, opts, backend.CommittedOpts[0])
	})

	t.Run("should refuse to commit anonymously", func(t *testing.T) {
		t.Parallel()

		// given
		backend := &testdoubles.SpyBackend{}
		sync := application.NewSyncService(newSession(backend, &testdoubles.MemoryCredentialStore{}))

		// when
		_, err := sync.Commit(context.Background(), backend, nil, domain.CommitOptions{})

		// then
		var authErr *domain.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Empty(t, backend.CommittedChanges)
	})
}
