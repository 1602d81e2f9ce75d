// Package credentials persists the signed-in user between sessions. The
// cache is shared with two earlier CMS generations, so three key formats are
// probed and normalized to the same user shape.
package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/contentsync/domain"
)

// Key probed first is this system's own; the other two are compatible
// third-party CMS user formats left behind by previous editors.
var userKeys = []string{
	"contentsync.user",
	"netlify-cms-user",
	"decap-cms.user",
}

// Store is the local credential cache consumed at startup and written on
// sign-in/sign-out.
type Store interface {
	// ReadUser returns the cached user, or (nil, true, nil) when the cache
	// holds the signed-out sentinel that suppresses auto sign-in.
	ReadUser() (user *domain.User, signedOut bool, err error)
	WriteUser(user *domain.User) error
	// WriteSignedOut replaces the cached user with an empty object, the
	// sentinel that keeps the next startup anonymous.
	WriteSignedOut() error
}

// FileStore is a Store backed by a single JSON key-value file.
type FileStore struct {
	path string
}

// NewFileStore creates a store at the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns the standard cache location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "contentsync", "credentials.json"), nil
}

func (s *FileStore) ReadUser() (*domain.User, bool, error) {
	entries, err := s.read()
	if err != nil {
		return nil, false, err
	}

	for _, key := range userKeys {
		raw, ok := entries[key]
		if !ok {
			continue
		}

		if isEmptyObject(raw) {
			return nil, true, nil
		}

		user, normErr := normalizeUser(raw)
		if normErr != nil {
			logger.Warnf("Ignoring unreadable cached user under %q: %v", key, normErr)
			continue
		}
		return user, false, nil
	}

	return nil, false, nil
}

func (s *FileStore) WriteUser(user *domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	return s.write(userKeys[0], raw)
}

func (s *FileStore) WriteSignedOut() error {
	return s.write(userKeys[0], json.RawMessage("{}"))
}

func (s *FileStore) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential cache: %w", err)
	}

	entries := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse credential cache: %w", err)
		}
	}
	return entries, nil
}

func (s *FileStore) write(key string, value json.RawMessage) error {
	entries, err := s.read()
	if err != nil {
		return err
	}
	entries[key] = value

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential cache: %w", err)
	}

	if mkErr := os.MkdirAll(filepath.Dir(s.path), 0o700); mkErr != nil {
		return fmt.Errorf("failed to create cache dir: %w", mkErr)
	}
	if writeErr := os.WriteFile(s.path, data, 0o600); writeErr != nil {
		return fmt.Errorf("failed to write credential cache: %w", writeErr)
	}
	return nil
}

func isEmptyObject(raw json.RawMessage) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return len(probe) == 0
}

// normalizeUser accepts any of the three cached formats. The legacy CMS
// shapes carry at least a token and a backend name; whatever profile fields
// they lack are re-fetched at sign-in.
func normalizeUser(raw json.RawMessage) (*domain.User, error) {
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, err
	}

	if user.Token == "" {
		// Legacy formats nest the token under "auth".
		var legacy struct {
			Auth struct {
				Token        string `json:"token"`
				RefreshToken string `json:"refresh_token"`
			} `json:"auth"`
			Backend string `json:"backendName"`
		}
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return nil, err
		}
		user.Token = legacy.Auth.Token
		user.RefreshToken = legacy.Auth.RefreshToken
		if user.BackendName == "" {
			user.BackendName = legacy.Backend
		}
	}

	if user.Token == "" {
		return nil, fmt.Errorf("cached user has no token")
	}
	return &user, nil
}
