package application

import (
	"context"
	"errors"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/contentsync/domain"
)

// SyncService runs the fetch and commit cycles against the active backend.
type SyncService struct {
	session *SessionService
}

// NewSyncService creates a sync service bound to the session.
func NewSyncService(session *SessionService) *SyncService {
	return &SyncService{session: session}
}

// FetchAll retrieves the full repository state: tree listing plus the text
// of every entry file. It requires a signed-in session.
func (s *SyncService) FetchAll(ctx context.Context, backend domain.BackendService) (domain.ContentsMap, error) {
	if s.session.CurrentUser() == nil {
		return nil, &domain.AuthError{Cause: errors.New("sign in before fetching files")}
	}

	logger.Infof("Fetching files from %s/%s...", backend.Repository().Owner, backend.Repository().Repo)

	contents, err := backend.FetchFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch cycle failed: %w", err)
	}

	logger.Infof("Fetched %d files", len(contents))
	return contents, nil
}

// FetchAsset retrieves one binary asset on demand.
func (s *SyncService) FetchAsset(ctx context.Context, backend domain.BackendService, path string) ([]byte, error) {
	if s.session.CurrentUser() == nil {
		return nil, &domain.AuthError{Cause: errors.New("sign in before fetching assets")}
	}
	return backend.FetchBlob(ctx, path)
}

// Commit submits a change set and returns the resulting commit's web URL.
func (s *SyncService) Commit(
	ctx context.Context,
	backend domain.BackendService,
	changes []domain.FileChange,
	opts domain.CommitOptions,
) (string, error) {
	if s.session.CurrentUser() == nil {
		return "", &domain.AuthError{Cause: errors.New("sign in before committing")}
	}

	url, err := backend.CommitChanges(ctx, changes, opts)
	if err != nil {
		return "", err
	}

	logger.Infof("Committed %d changes: %s", len(changes), url)
	return url, nil
}
