// Package testdoubles provides test doubles (spies, stubs, dummies) for
// domain interfaces. These are hand-crafted implementations, no mock
// frameworks.
package testdoubles

import (
	"context"

	"github.com/rios0rios0/contentsync/domain"
)

// ---------------------------------------------------------------------------
// SpyBackend
// ---------------------------------------------------------------------------

// SpyBackend implements domain.BackendService as a configurable spy.
// Configure the response fields for the methods your test exercises,
// then inspect the call-tracking fields to verify behavior.
type SpyBackend struct {
	// --- identity ---
	BackendName string
	RepoInfo    *domain.RepositoryInfo

	// --- Init ---
	InitClaimed bool
	InitErr     error
	InitCalls   int

	// --- SignIn ---
	SignInUser *domain.User
	SignInErr  error
	// OnSignIn, when set, runs before the canned response is returned.
	OnSignIn func(opts domain.SignInOptions)
	// spy: options received
	SignInCalls []domain.SignInOptions

	// --- SignOut ---
	SignOutCalls int

	// --- FetchFiles ---
	Contents     domain.ContentsMap
	FetchErr     error
	FetchCalls   int

	// --- FetchBlob ---
	Blobs   map[string][]byte
	BlobErr error

	// --- CommitChanges ---
	CommitURL string
	CommitErr error
	// spy: inputs received
	CommittedChanges [][]domain.FileChange
	CommittedOpts    []domain.CommitOptions
}

func (s *SpyBackend) IsGit() bool { return true }

func (s *SpyBackend) Name() string {
	if s.BackendName == "" {
		return "spy"
	}
	return s.BackendName
}

func (s *SpyBackend) Label() string { return "Spy" }

func (s *SpyBackend) Repository() *domain.RepositoryInfo { return s.RepoInfo }

func (s *SpyBackend) Init() (bool, error) {
	s.InitCalls++
	return s.InitClaimed, s.InitErr
}

func (s *SpyBackend) SignIn(_ context.Context, opts domain.SignInOptions) (*domain.User, error) {
	s.SignInCalls = append(s.SignInCalls, opts)
	if s.OnSignIn != nil {
		s.OnSignIn(opts)
	}
	if s.SignInErr != nil {
		return nil, s.SignInErr
	}
	return s.SignInUser, nil
}

func (s *SpyBackend) SignOut(_ context.Context) {
	s.SignOutCalls++
}

func (s *SpyBackend) FetchFiles(_ context.Context) (domain.ContentsMap, error) {
	s.FetchCalls++
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	return s.Contents, nil
}

func (s *SpyBackend) FetchBlob(_ context.Context, path string) ([]byte, error) {
	if s.BlobErr != nil {
		return nil, s.BlobErr
	}
	return s.Blobs[path], nil
}

func (s *SpyBackend) CommitChanges(
	_ context.Context,
	changes []domain.FileChange,
	opts domain.CommitOptions,
) (string, error) {
	s.CommittedChanges = append(s.CommittedChanges, changes)
	s.CommittedOpts = append(s.CommittedOpts, opts)
	if s.CommitErr != nil {
		return "", s.CommitErr
	}
	return s.CommitURL, nil
}

// ---------------------------------------------------------------------------
// MemoryCredentialStore
// ---------------------------------------------------------------------------

// MemoryCredentialStore implements credentials.Store in memory.
type MemoryCredentialStore struct {
	User      *domain.User
	SignedOut bool
	ReadErr   error
	WriteErr  error
	// spy: write counters
	UserWrites     int
	SignedOutWrite int
}

func (m *MemoryCredentialStore) ReadUser() (*domain.User, bool, error) {
	if m.ReadErr != nil {
		return nil, false, m.ReadErr
	}
	return m.User, m.SignedOut, nil
}

func (m *MemoryCredentialStore) WriteUser(user *domain.User) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.User = user
	m.SignedOut = false
	m.UserWrites++
	return nil
}

func (m *MemoryCredentialStore) WriteSignedOut() error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.User = nil
	m.SignedOut = true
	m.SignedOutWrite++
	return nil
}

// ---------------------------------------------------------------------------
// StubCodeReceiver
// ---------------------------------------------------------------------------

// StubCodeReceiver implements auth.CodeReceiver with a canned code.
type StubCodeReceiver struct {
	Code string
	Err  error
	// spy: the auth URL that was presented
	PresentedURL string
}

func (r *StubCodeReceiver) RedirectURL() string { return "http://127.0.0.1:0/callback" }

func (r *StubCodeReceiver) ReceiveCode(_ context.Context, authURL, _ string) (string, error) {
	r.PresentedURL = authURL
	if r.Err != nil {
		return "", r.Err
	}
	return r.Code, nil
}
