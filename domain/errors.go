package domain

import (
	"errors"
	"fmt"
)

// AuthError means the token is invalid or expired and a refresh attempt (if
// any) also failed. It forces the session back to the anonymous state.
type AuthError struct {
	Cause error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("authentication failed: %v", e.Cause)
	}
	return "authentication failed"
}

func (e *AuthError) Unwrap() error { return e.Cause }

// HTTPError is a generic non-2xx provider response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}

// UnsupportedVersionError means the provider server is older than the
// minimum this backend supports. Non-retryable; raised before any sync work.
type UnsupportedVersionError struct {
	Detected string
	Minimum  string
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported server version %s (minimum %s)", e.Detected, e.Minimum)
}

// UnsupportedForkError means the server is a known incompatible fork,
// detected by a marker in the version string regardless of the numeric part.
type UnsupportedForkError struct {
	Detected string
}

func (e *UnsupportedForkError) Error() string {
	return fmt.Sprintf("unsupported server fork (version %q)", e.Detected)
}

// AccessDeniedError means the authenticated identity lacks read access to
// the repository, as opposed to the repository not existing.
type AccessDeniedError struct {
	Owner string
	Repo  string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("no read access to repository %s/%s", e.Owner, e.Repo)
}

// NotFoundError means the repository (or another addressed resource) could
// not be resolved at all.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// EmptyRepositoryError means the provider reports no default branch, i.e. a
// brand-new repository without a single commit.
type EmptyRepositoryError struct {
	Owner string
	Repo  string
}

func (e *EmptyRepositoryError) Error() string {
	return fmt.Sprintf("repository %s/%s is empty", e.Owner, e.Repo)
}

// CommitError means the multi-file commit request was rejected. Retry and
// backoff policy belong to the caller.
type CommitError struct {
	Status int
	Body   string
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit rejected with status %d: %s", e.Status, e.Body)
}

// AbortError means the user cancelled an interactive authentication flow.
type AbortError struct{}

func (e *AbortError) Error() string { return "authentication aborted by user" }

// HTTPStatus digs the provider status code out of an error chain, looking
// through AuthError wrapping. It returns 0 when no HTTP status is attached.
func HTTPStatus(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

// IsAuthClass reports whether an error represents an invalid/expired
// credential: either a typed AuthError or a bare 401/403/404 response.
func IsAuthClass(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	switch HTTPStatus(err) {
	case 401, 403, 404:
		return true
	}
	return false
}
