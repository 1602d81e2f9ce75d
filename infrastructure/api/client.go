// Package api provides the generic authenticated REST executor every
// provider backend builds on: one request surface with typed JSON decoding,
// raw blob retrieval, and a transparent token refresh on auth failures.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/contentsync/domain"
)

const defaultTimeout = 30 * time.Second

// TokenStore gives the client access to the session's current credentials
// and lets it write refreshed tokens back, so later requests (and any caller
// re-reading the session) pick up the new token.
type TokenStore interface {
	Tokens() (token, refreshToken string)
	UpdateTokens(token, refreshToken string)
}

// TokenRefresher exchanges a refresh token for a fresh token pair.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (token, newRefreshToken string, err error)
}

// Client executes authenticated requests against one provider REST root.
type Client struct {
	rest      *resty.Client
	tokens    TokenStore
	refresher TokenRefresher
}

// RequestOptions shapes a single request. Exactly one of Result (typed JSON
// target), Blob, or Raw selects the response interpretation; with none set
// the body is discarded.
type RequestOptions struct {
	Method string
	Body   any
	Query  map[string]string
	Result any  // pointer target for JSON decoding
	Blob   bool // return the raw body bytes
	Raw    bool // leave the response unparsed for header inspection
}

// New creates a client rooted at the given REST base URL.
func New(baseURL string, tokens TokenStore, refresher TokenRefresher) *Client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "contentsync")

	return &Client{rest: rest, tokens: tokens, refresher: refresher}
}

// Request performs one authenticated call. On a 401/403/404 it attempts a
// single silent token refresh (when a refresh token exists) and retries;
// when that also fails the error is a *domain.AuthError. Any other non-2xx
// becomes a *domain.HTTPError.
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions) (*resty.Response, error) {
	resp, err := c.execute(ctx, path, opts)
	if err != nil {
		return nil, fmt.Errorf("request to %q failed: %w", path, err)
	}

	if !isAuthStatus(resp.StatusCode()) {
		return resp, classify(resp)
	}

	_, refreshToken := c.tokens.Tokens()
	if c.refresher == nil || refreshToken == "" {
		return nil, &domain.AuthError{Cause: newHTTPError(resp)}
	}

	logger.Debugf("Request to %q returned %d, attempting token refresh", path, resp.StatusCode())

	token, newRefresh, refreshErr := c.refresher.Refresh(ctx, refreshToken)
	if refreshErr != nil {
		return nil, &domain.AuthError{Cause: fmt.Errorf("token refresh failed: %w", refreshErr)}
	}
	c.tokens.UpdateTokens(token, newRefresh)

	resp, err = c.execute(ctx, path, opts)
	if err != nil {
		return nil, fmt.Errorf("request to %q failed after token refresh: %w", path, err)
	}
	if isAuthStatus(resp.StatusCode()) {
		return nil, &domain.AuthError{Cause: newHTTPError(resp)}
	}

	return resp, classify(resp)
}

// Get decodes a JSON response into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	_, err := c.Request(ctx, path, RequestOptions{Method: "GET", Result: result})
	return err
}

// Post sends a JSON body and decodes the JSON response into result.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	_, err := c.Request(ctx, path, RequestOptions{Method: "POST", Body: body, Result: result})
	return err
}

// GetBlob retrieves a binary resource as raw bytes.
func (c *Client) GetBlob(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	resp, err := c.Request(ctx, path, RequestOptions{Method: "GET", Query: query, Blob: true})
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func (c *Client) execute(ctx context.Context, path string, opts RequestOptions) (*resty.Response, error) {
	req := c.rest.R().SetContext(ctx)

	if token, _ := c.tokens.Tokens(); token != "" {
		req.SetAuthToken(token)
	}
	if opts.Body != nil {
		req.SetBody(opts.Body)
	}
	if opts.Query != nil {
		req.SetQueryParams(opts.Query)
	}
	if opts.Result != nil {
		req.SetResult(opts.Result)
	}

	method := opts.Method
	if method == "" {
		method = "GET"
	}

	return req.Execute(method, path)
}

func isAuthStatus(status int) bool {
	return status == 401 || status == 403 || status == 404
}

func classify(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	return newHTTPError(resp)
}

func newHTTPError(resp *resty.Response) *domain.HTTPError {
	return &domain.HTTPError{Status: resp.StatusCode(), Body: string(resp.Body())}
}
