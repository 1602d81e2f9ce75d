// Package application orchestrates the session lifecycle and the fetch
// cycle on top of a resolved backend.
package application

import (
	"context"
	"sync"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/contentsync/domain"
	"github.com/rios0rios0/contentsync/infrastructure/auth"
	"github.com/rios0rios0/contentsync/infrastructure/backend/reposync"
	"github.com/rios0rios0/contentsync/infrastructure/credentials"
)

// AuthState is the session's position in the sign-in state machine.
type AuthState string

const (
	StateAnonymous      AuthState = "anonymous"
	StateAuthenticating AuthState = "authenticating"
	StateAuthenticated  AuthState = "authenticated"
)

// SessionService owns the signed-in user and the sign-in/sign-out state
// machine. It implements backend.Session, so provider backends read tokens
// from it and silent refreshes write straight back into the live user.
//
// Its own transitions are guarded by a mutex, but callers must still not run
// sign-in and a fetch cycle concurrently against the same backend.
type SessionService struct {
	mu    sync.Mutex
	creds credentials.Store

	backend domain.BackendService

	state           AuthState
	unauthenticated bool

	// pending token pair used between the start of sign-in and the moment
	// the user record exists
	pendingToken   string
	pendingRefresh string

	userStore *domain.Store[*domain.User]
	authError *domain.Store[error]
	progress  *domain.Store[int]
}

// NewSessionService creates an anonymous session backed by the given
// credential cache.
func NewSessionService(creds credentials.Store) *SessionService {
	return &SessionService{
		creds:     creds,
		state:     StateAnonymous,
		userStore: domain.NewStore[*domain.User](nil),
		authError: domain.NewStore[error](nil),
		progress:  domain.NewStore(reposync.ProgressIdle),
	}
}

// AttachBackend binds the session to the backend the registry resolved.
func (s *SessionService) AttachBackend(b domain.BackendService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend = b
}

// --- backend.Session ---

// Tokens returns the live token pair: the signed-in user's, or the pending
// pair while a sign-in is in flight.
func (s *SessionService) Tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user := s.userStore.Get(); user != nil {
		return user.Token, user.RefreshToken
	}
	return s.pendingToken, s.pendingRefresh
}

// UpdateTokens replaces the token pair in place. Called by backends at
// sign-in and by the API client after a silent refresh; the refreshed pair
// is persisted so the cache never holds a dead token.
func (s *SessionService) UpdateTokens(token, refreshToken string) {
	s.mu.Lock()
	s.pendingToken, s.pendingRefresh = token, refreshToken

	user := s.userStore.Get()
	if user != nil {
		user.Token = token
		user.RefreshToken = refreshToken
	}
	s.mu.Unlock()

	if user != nil {
		s.userStore.Set(user)
		if err := s.creds.WriteUser(user); err != nil {
			logger.Warnf("Failed to persist refreshed credentials: %v", err)
		}
	}
}

// CurrentUser returns the signed-in user, or nil.
func (s *SessionService) CurrentUser() *domain.User {
	return s.userStore.Get()
}

// --- sign-in flows ---

// SignIn runs an interactive sign-in through the backend.
func (s *SessionService) SignIn(ctx context.Context) (*domain.User, error) {
	return s.signIn(ctx, domain.SignInOptions{})
}

// SignInWithToken signs in with a known token, e.g. from configuration.
func (s *SessionService) SignInWithToken(ctx context.Context, token, refreshToken string) (*domain.User, error) {
	return s.signIn(ctx, domain.SignInOptions{Token: token, RefreshToken: refreshToken})
}

// AutoSignIn restores the session from cached credentials at startup. A
// rejected cached token (401/403/404 class) resets to anonymous without
// surfacing an error; anything else is published on the auth-error store
// and returned.
func (s *SessionService) AutoSignIn(ctx context.Context) (*domain.User, error) {
	cached, signedOut, err := s.creds.ReadUser()
	if err != nil {
		logger.Warnf("Could not read the credential cache: %v", err)
		return nil, nil
	}
	if signedOut || cached == nil {
		logger.Debug("No cached credentials, staying anonymous")
		return nil, nil
	}

	user, err := s.signIn(ctx, domain.SignInOptions{
		Token:        cached.Token,
		RefreshToken: cached.RefreshToken,
		Auto:         true,
	})
	if err != nil {
		if domain.IsAuthClass(err) {
			logger.Infof("Cached credentials were rejected, signing out: %v", err)
			s.resetToAnonymous(true)
			return nil, nil
		}
		s.authError.Set(err)
		return nil, err
	}
	return user, nil
}

// ConsumeBootstrap completes a QR/deep-link sign-in: the path's embedded
// token is consumed once and the stripped path is returned for history
// replacement.
func (s *SessionService) ConsumeBootstrap(ctx context.Context, path string) (*domain.User, string, error) {
	bootstrap, stripped, err := auth.ConsumeSignInPath(path)
	if err != nil {
		return nil, stripped, err
	}
	if bootstrap == nil {
		return nil, stripped, nil
	}

	user, err := s.signIn(ctx, domain.SignInOptions{Token: bootstrap.Token})
	return user, stripped, err
}

func (s *SessionService) signIn(ctx context.Context, opts domain.SignInOptions) (*domain.User, error) {
	s.mu.Lock()
	backendService := s.backend
	s.state = StateAuthenticating
	s.pendingToken, s.pendingRefresh = opts.Token, opts.RefreshToken
	s.mu.Unlock()

	if backendService == nil {
		s.resetToAnonymous(false)
		return nil, &domain.NotFoundError{Resource: "backend"}
	}

	user, err := backendService.SignIn(ctx, opts)
	if err != nil {
		s.resetToAnonymous(false)
		return nil, err
	}
	if user == nil {
		// Automatic sign-in with nothing to work with.
		s.resetToAnonymous(false)
		return nil, nil
	}

	s.completeSignIn(user)
	return user, nil
}

func (s *SessionService) completeSignIn(user *domain.User) {
	s.mu.Lock()
	s.state = StateAuthenticated
	s.unauthenticated = false
	s.pendingToken, s.pendingRefresh = "", ""
	s.mu.Unlock()

	s.userStore.Set(user)
	s.authError.Set(nil)

	if err := s.creds.WriteUser(user); err != nil {
		logger.Warnf("Failed to cache credentials: %v", err)
	}

	logger.Infof("Signed in as %s (%s)", user.Login, user.BackendName)
}

func (s *SessionService) resetToAnonymous(markUnauthenticated bool) {
	s.mu.Lock()
	s.state = StateAnonymous
	if markUnauthenticated {
		s.unauthenticated = true
	}
	s.pendingToken, s.pendingRefresh = "", ""
	s.mu.Unlock()

	s.userStore.Set(nil)
}

// SignOut tears the session down. Provider-side revocation is best-effort;
// local sign-out always succeeds, and the cache keeps an empty-object
// sentinel so the next startup stays anonymous.
func (s *SessionService) SignOut(ctx context.Context) {
	s.mu.Lock()
	backendService := s.backend
	s.mu.Unlock()

	if backendService != nil {
		backendService.SignOut(ctx)
	}

	if err := s.creds.WriteSignedOut(); err != nil {
		logger.Warnf("Failed to clear the credential cache: %v", err)
	}

	s.resetToAnonymous(false)
	s.authError.Set(nil)

	logger.Info("Signed out")
}

// --- accessors ---

// State returns the current sign-in state.
func (s *SessionService) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Unauthenticated reports that cached credentials were rejected and the
// user must sign in again.
func (s *SessionService) Unauthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unauthenticated
}

// UserStore exposes the observable signed-in user.
func (s *SessionService) UserStore() *domain.Store[*domain.User] { return s.userStore }

// AuthErrorStore exposes the observable global auth error.
func (s *SessionService) AuthErrorStore() *domain.Store[error] { return s.authError }

// Progress exposes the observable fetch progress percentage.
func (s *SessionService) Progress() *domain.Store[int] { return s.progress }
