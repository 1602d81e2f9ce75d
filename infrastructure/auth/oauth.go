// Package auth implements the interactive OAuth/PKCE flow, silent token
// refresh, and the deep-link token bootstrap used by the session service.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/rios0rios0/contentsync/domain"
)

// Tokens is the outcome of a completed authorization.
type Tokens struct {
	Token        string
	RefreshToken string
}

// Authenticator is what a provider backend needs from the auth layer:
// an interactive authorization and a silent refresh.
type Authenticator interface {
	Authorize(ctx context.Context) (*Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (token, newRefreshToken string, err error)
}

// CodeReceiver bridges the asynchronous half of the authorization flow: it
// presents the authorization URL to the user and blocks until the matching
// redirect delivers a code (one-shot completion). Implementations range from
// a localhost callback server to a paste-the-code prompt.
type CodeReceiver interface {
	// RedirectURL is where the provider sends the user back after consent.
	RedirectURL() string
	ReceiveCode(ctx context.Context, authURL, state string) (code string, err error)
}

// ErrAborted should be returned by a CodeReceiver when the user cancels the
// flow; it is translated into a *domain.AbortError.
var ErrAborted = errors.New("authorization cancelled")

// PKCEAuthenticator runs the authorization-code flow with PKCE, for public
// clients without a client secret.
type PKCEAuthenticator struct {
	cfg      oauth2.Config
	receiver CodeReceiver
}

// NewPKCEAuthenticator builds an authenticator from the endpoint
// configuration a backend resolved at Init. The receiver may be nil for
// token-only sessions; Refresh still works, Authorize does not.
func NewPKCEAuthenticator(endpoints domain.EndpointConfig, receiver CodeReceiver) *PKCEAuthenticator {
	redirectURL := ""
	if receiver != nil {
		redirectURL = receiver.RedirectURL()
	}
	return &PKCEAuthenticator{
		cfg: oauth2.Config{
			ClientID:    endpoints.ClientID,
			RedirectURL: redirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  endpoints.AuthURL,
				TokenURL: endpoints.TokenURL,
			},
		},
		receiver: receiver,
	}
}

// Authorize walks the interactive flow: authorization URL with a PKCE
// challenge and a fresh state nonce, one-shot code delivery, then the code
// exchange. A cancelled receiver yields *domain.AbortError.
func (a *PKCEAuthenticator) Authorize(ctx context.Context) (*Tokens, error) {
	if a.receiver == nil {
		return nil, errors.New("no code receiver configured for interactive sign-in")
	}

	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	authURL := a.cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	code, err := a.receiver.ReceiveCode(ctx, authURL, state)
	if err != nil {
		if errors.Is(err, ErrAborted) {
			return nil, &domain.AbortError{}
		}
		return nil, fmt.Errorf("failed to receive authorization code: %w", err)
	}

	token, err := a.cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	logger.Debugf("Authorization completed against %s", a.cfg.Endpoint.AuthURL)

	return &Tokens{Token: token.AccessToken, RefreshToken: token.RefreshToken}, nil
}

// Refresh exchanges a refresh token for a new token pair. When the provider
// rotates refresh tokens the new one is returned; otherwise the old one is
// kept so the caller can store it unchanged.
func (a *PKCEAuthenticator) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	source := a.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	token, err := source.Token()
	if err != nil {
		return "", "", fmt.Errorf("failed to refresh token: %w", err)
	}

	newRefresh := token.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}

	return token.AccessToken, newRefresh, nil
}
