package domain

import "context"

// BackendService abstracts a Git hosting service (Gitea, GitLab, etc.) as the
// storage backend of the content editor. Each implementation handles
// authentication, repository metadata, bulk file synchronization, and commit
// submission for its platform.
//
// SignIn and FetchFiles must not be invoked concurrently for the same
// backend instance; callers are expected to serialize the two flows.
type BackendService interface {
	// IsGit reports whether the backend stores content in a Git repository.
	IsGit() bool

	// Name returns the backend identifier (e.g. "gitea", "gitlab").
	Name() string

	// Label returns the human-readable provider name (e.g. "Gitea").
	Label() string

	// Repository returns the repository info resolved by Init. The branch
	// field may be empty until the default branch has been resolved.
	Repository() *RepositoryInfo

	// Init derives RepositoryInfo and EndpointConfig from the site
	// configuration. It returns false (and no error) when the configured
	// backend name does not belong to this provider, so a registry can let
	// every factory attempt initialization and exactly one claim it.
	Init() (bool, error)

	// SignIn authenticates and returns the canonical user. With a token
	// already supplied it goes straight to profile retrieval; an automatic
	// sign-in without a cached token resolves to (nil, nil) instead of
	// starting an interactive flow.
	SignIn(ctx context.Context, opts SignInOptions) (*User, error)

	// SignOut performs provider-side revocation on a best-effort basis.
	// It never fails: local sign-out must always succeed.
	SignOut(ctx context.Context)

	// FetchFiles lists every file in the repository and bulk-fetches the
	// text of all entry files, returning a path-to-contents map.
	FetchFiles(ctx context.Context) (ContentsMap, error)

	// FetchBlob retrieves a single asset file as raw bytes.
	FetchBlob(ctx context.Context, path string) ([]byte, error)

	// CommitChanges submits one atomic multi-file commit and returns the
	// resulting commit's web-viewable URL.
	CommitChanges(ctx context.Context, changes []FileChange, opts CommitOptions) (string, error)
}

// SignInOptions controls a sign-in attempt.
type SignInOptions struct {
	Token        string
	RefreshToken string
	// Auto marks a silent re-authentication from cached credentials; it
	// never triggers an interactive flow.
	Auto bool
}

// CommitOptions carries commit metadata beyond the file changes themselves.
type CommitOptions struct {
	Kind CommitKind
	// SkipCI appends the provider's skip-CI marker to the message.
	SkipCI bool
}
