package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rios0rios0/contentsync/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contentsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

//nolint:tparallel // some subtests use t.Setenv which is incompatible with t.Parallel on parent
func TestLoad(t *testing.T) {
	t.Run("should load a complete backend configuration", func(t *testing.T) {
		t.Parallel()

		// given
		path := writeConfig(t, `
backend:
  name: gitea
  repo: acme/website
  branch: main
  base_url: https://git.example.com
  app_id: my-client-id
`)

		// when
		cfg, err := config.Load(path)

		// then
		require.NoError(t, err)
		assert.Equal(t, "gitea", cfg.Backend.Name)
		assert.Equal(t, "acme", cfg.Backend.Owner())
		assert.Equal(t, "website", cfg.Backend.RepoName())
		assert.Equal(t, "main", cfg.Backend.Branch)
		assert.Equal(t, "https://git.example.com", cfg.Backend.BaseURL)
		assert.Equal(t, "my-client-id", cfg.Backend.AppID)
	})

	t.Run("should expand environment variable in token", func(t *testing.T) {
		// NOTE: cannot use t.Parallel() with t.Setenv()

		// given
		t.Setenv("TEST_BACKEND_TOKEN", "gta_secret")
		path := writeConfig(t, `
backend:
  name: gitea
  repo: acme/website
  token: ${TEST_BACKEND_TOKEN}
`)

		// when
		cfg, err := config.Load(path)

		// then
		require.NoError(t, err)
		assert.Equal(t, "gta_secret", cfg.Backend.Token)
	})

	t.Run("should fail when backend name is missing", func(t *testing.T) {
		t.Parallel()

		// given
		path := writeConfig(t, `
backend:
  repo: acme/website
`)

		// when
		_, err := config.Load(path)

		// then
		require.Error(t, err)
		assert.Contains(t, err.Error(), "backend.name is required")
	})

	t.Run("should fail when repo is not owner/repo", func(t *testing.T) {
		t.Parallel()

		// given
		path := writeConfig(t, `
backend:
  name: gitea
  repo: website
`)

		// when
		_, err := config.Load(path)

		// then
		require.Error(t, err)
		assert.Contains(t, err.Error(), "owner/repo")
	})

	t.Run("should fail for a missing file", func(t *testing.T) {
		t.Parallel()

		// when
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))

		// then
		require.Error(t, err)
	})
}

//nolint:tparallel // some subtests use t.Setenv which is incompatible with t.Parallel on parent
func TestResolveToken(t *testing.T) {
	t.Run("should return inline token unchanged", func(t *testing.T) {
		t.Parallel()

		// given
		raw := "gta_abc123xyz"

		// when
		result := config.ResolveToken(raw)

		// then
		assert.Equal(t, "gta_abc123xyz", result)
	})

	t.Run("should return empty for unset env var", func(t *testing.T) {
		t.Parallel()

		// given
		raw := "${DEFINITELY_NOT_SET_VAR_12345}"

		// when
		result := config.ResolveToken(raw)

		// then
		assert.Empty(t, result)
	})

	t.Run("should read token from file path", func(t *testing.T) {
		t.Parallel()

		// given
		path := filepath.Join(t.TempDir(), "token.txt")
		require.NoError(t, os.WriteFile(path, []byte("file-token\n"), 0o600))

		// when
		result := config.ResolveToken(path)

		// then
		assert.Equal(t, "file-token", result)
	})
}
