// Package gitea implements the BackendService contract against the Gitea
// REST API (API v1). It is the reference provider: version-gated sign-in,
// paginated tree listing, batched bulk content fetch, and atomic multi-file
// commits.
package gitea

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/mod/semver"

	"github.com/rios0rios0/contentsync/config"
	"github.com/rios0rios0/contentsync/domain"
	"github.com/rios0rios0/contentsync/infrastructure/api"
	"github.com/rios0rios0/contentsync/infrastructure/auth"
	"github.com/rios0rios0/contentsync/infrastructure/backend"
	"github.com/rios0rios0/contentsync/infrastructure/backend/reposync"
)

const (
	backendName  = "gitea"
	backendLabel = "Gitea"

	publicOrigin = "https://gitea.com"

	// The bulk file-contents endpoint requires at least this server version.
	minVersion = "1.24"

	// Forks (e.g. Forgejo) advertise compatibility as "<ver>+gitea-<ver>";
	// their APIs have diverged, so they are rejected outright.
	forkMarker = "+gitea-"

	defaultClientID = "contentsync"
)

// Backend implements domain.BackendService for Gitea.
type Backend struct {
	cfg           *config.Config
	session       backend.Session
	receiver      auth.CodeReceiver
	authenticator auth.Authenticator
	progress      *domain.Store[int]

	client    *api.Client
	repo      *domain.RepositoryInfo
	endpoints domain.EndpointConfig

	// per-session caches, populated once and reused by every later check
	versionOK bool
	meta      *repoMeta
	batchSize int
}

type repoMeta struct {
	defaultBranch string
	htmlURL       string
	canPull       bool
	canPush       bool
}

// New creates an unclaimed Gitea backend; Init decides whether it activates.
// The receiver may be nil for token-only sessions.
func New(cfg *config.Config, session backend.Session, receiver auth.CodeReceiver, progress *domain.Store[int]) domain.BackendService {
	return &Backend{
		cfg:      cfg,
		session:  session,
		receiver: receiver,
		progress: progress,
	}
}

func (b *Backend) IsGit() bool   { return true }
func (b *Backend) Name() string  { return backendName }
func (b *Backend) Label() string { return backendLabel }

func (b *Backend) Repository() *domain.RepositoryInfo { return b.repo }

// Init derives the repository info and endpoint configuration from the site
// configuration. It is idempotent: a second call with the same configuration
// yields identical values, and the database name never changes once set.
func (b *Backend) Init() (bool, error) {
	bc := b.cfg.Backend
	if bc.Name != backendName {
		return false, nil
	}

	baseURL := bc.BaseURL
	if baseURL == "" {
		baseURL = publicOrigin
	}
	origin, err := toOrigin(baseURL)
	if err != nil {
		return false, fmt.Errorf("invalid base_url %q: %w", baseURL, err)
	}

	restRoot := origin + "/api/v1"
	if bc.APIRoot != "" {
		apiOrigin, apiErr := toOrigin(bc.APIRoot)
		if apiErr != nil {
			return false, fmt.Errorf("invalid api_root %q: %w", bc.APIRoot, apiErr)
		}
		restRoot = apiOrigin + "/api/v1"
	}

	authPath := bc.AuthEndpoint
	if authPath == "" {
		authPath = "login/oauth/authorize"
	}
	authURL := origin + "/" + strings.Trim(authPath, "/")
	tokenURL := strings.Replace(authURL, "authorize", "access_token", 1)

	clientID := bc.AppID
	if clientID == "" {
		clientID = defaultClientID
	}

	b.endpoints = domain.EndpointConfig{
		ClientID:    clientID,
		AuthURL:     authURL,
		TokenURL:    tokenURL,
		Origin:      origin,
		RESTBaseURL: restRoot,
	}

	databaseName := fmt.Sprintf("%s:%s/%s", backendName, bc.Owner(), bc.RepoName())
	if b.repo != nil && b.repo.DatabaseName != "" {
		// The database name keys the local cache; it is fixed for the session.
		databaseName = b.repo.DatabaseName
	}

	b.repo = &domain.RepositoryInfo{
		Service:      backendName,
		Label:        backendLabel,
		Owner:        bc.Owner(),
		Repo:         bc.RepoName(),
		Branch:       bc.Branch,
		BaseURL:      fmt.Sprintf("%s/%s/%s", origin, bc.Owner(), bc.RepoName()),
		DatabaseName: databaseName,
		IsSelfHosted: origin != publicOrigin,
	}
	b.updateBranchURLs()

	b.authenticator = auth.NewPKCEAuthenticator(b.endpoints, b.receiver)
	b.client = api.New(restRoot, b.session, b.refresher())

	return true, nil
}

// updateBranchURLs recomputes the branch-derived browse URLs; called again
// once the default branch has been resolved.
func (b *Backend) updateBranchURLs() {
	if b.repo.Branch == "" {
		return
	}
	b.repo.TreeBaseURL = fmt.Sprintf("%s/src/branch/%s", b.repo.BaseURL, b.repo.Branch)
	b.repo.BlobBaseURL = b.repo.TreeBaseURL
}

func (b *Backend) refresher() api.TokenRefresher {
	if b.authenticator == nil {
		return nil
	}
	return refresherFunc(b.authenticator.Refresh)
}

type refresherFunc func(ctx context.Context, refreshToken string) (string, string, error)

func (f refresherFunc) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	return f(ctx, refreshToken)
}

// --- sign-in / sign-out ---

type giteaUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// SignIn authenticates against the server. A supplied token (cache or QR
// bootstrap) skips the interactive flow; automatic sign-in without a token
// resolves to nil rather than opening one.
func (b *Backend) SignIn(ctx context.Context, opts domain.SignInOptions) (*domain.User, error) {
	token, refreshToken := opts.Token, opts.RefreshToken

	if token == "" {
		if opts.Auto {
			return nil, nil
		}
		tokens, err := b.authenticator.Authorize(ctx)
		if err != nil {
			return nil, err
		}
		token, refreshToken = tokens.Token, tokens.RefreshToken
	}

	// Make the credentials visible to the API client before the first call.
	b.session.UpdateTokens(token, refreshToken)

	if err := b.checkVersion(ctx); err != nil {
		return nil, err
	}

	var profile giteaUser
	if err := b.client.Get(ctx, "/user", &profile); err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}

	// A silent refresh during the profile call may have rotated the pair.
	token, refreshToken = b.session.Tokens()

	name := profile.FullName
	if name == "" {
		name = profile.Login
	}

	return &domain.User{
		BackendName:  backendName,
		ID:           profile.ID,
		Name:         name,
		Login:        profile.Login,
		Email:        profile.Email,
		AvatarURL:    profile.AvatarURL,
		ProfileURL:   profile.HTMLURL,
		Token:        token,
		RefreshToken: refreshToken,
	}, nil
}

// SignOut is a local operation: Gitea offers no OAuth revocation endpoint,
// and sign-out must succeed regardless.
func (b *Backend) SignOut(_ context.Context) {
	logger.Debugf("Signed out of %s", b.endpoints.Origin)
}

// checkVersion gates the session on server compatibility, once.
func (b *Backend) checkVersion(ctx context.Context) error {
	if b.versionOK {
		return nil
	}

	var payload struct {
		Version string `json:"version"`
	}
	if err := b.client.Get(ctx, "/version", &payload); err != nil {
		return fmt.Errorf("failed to detect server version: %w", err)
	}

	// Fork detection runs first: a fork's numeric prefix says nothing
	// about its API compatibility.
	if strings.Contains(payload.Version, forkMarker) {
		return &domain.UnsupportedForkError{Detected: payload.Version}
	}

	numeric, _, _ := strings.Cut(payload.Version, "+")
	if semver.Compare(semver.MajorMinor("v"+numeric), "v"+minVersion) < 0 {
		return &domain.UnsupportedVersionError{Detected: payload.Version, Minimum: minVersion}
	}

	b.versionOK = true
	return nil
}

// --- repository metadata ---

type giteaRepository struct {
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
	Permissions   struct {
		Pull bool `json:"pull"`
		Push bool `json:"push"`
	} `json:"permissions"`
}

// ensureRepoMeta resolves repository access and the working branch, caching
// the result so repeated checks before each fetch cycle cost no round trips.
func (b *Backend) ensureRepoMeta(ctx context.Context) (*repoMeta, error) {
	if b.meta != nil {
		return b.meta, nil
	}

	var repo giteaRepository
	err := b.client.Get(ctx, b.repoPath(""), &repo)
	if err != nil {
		if domain.HTTPStatus(err) == 404 {
			return nil, &domain.NotFoundError{
				Resource: fmt.Sprintf("repository %s/%s", b.repo.Owner, b.repo.Repo),
			}
		}
		return nil, fmt.Errorf("failed to look up repository: %w", err)
	}

	if !repo.Permissions.Pull {
		return nil, &domain.AccessDeniedError{Owner: b.repo.Owner, Repo: b.repo.Repo}
	}

	if b.repo.Branch == "" {
		if repo.DefaultBranch == "" {
			return nil, &domain.EmptyRepositoryError{Owner: b.repo.Owner, Repo: b.repo.Repo}
		}
		b.repo.Branch = repo.DefaultBranch
		b.updateBranchURLs()
	}

	b.meta = &repoMeta{
		defaultBranch: repo.DefaultBranch,
		htmlURL:       repo.HTMLURL,
		canPull:       repo.Permissions.Pull,
		canPush:       repo.Permissions.Push,
	}
	return b.meta, nil
}

// --- file synchronization ---

// Wire shapes of the tree-listing endpoint.
type gitEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	SHA  string `json:"sha"`
}

type gitTreeResponse struct {
	SHA        string     `json:"sha"`
	Entries    []gitEntry `json:"tree"`
	Truncated  bool       `json:"truncated"`
	Page       int        `json:"page"`
	TotalCount int        `json:"total_count"`
}

type contentsResponse struct {
	Path     string  `json:"path"`
	SHA      string  `json:"sha"`
	Size     int64   `json:"size"`
	Encoding *string `json:"encoding"`
	Content  *string `json:"content"`
}

// FetchFiles lists every file on the working branch and bulk-fetches all
// entry text, returning the assembled contents map.
func (b *Backend) FetchFiles(ctx context.Context) (domain.ContentsMap, error) {
	if err := b.checkVersion(ctx); err != nil {
		return nil, err
	}
	// Access and branch resolution must complete before the first tree
	// request goes out.
	if _, err := b.ensureRepoMeta(ctx); err != nil {
		return nil, err
	}

	src := reposync.Source{
		ListPage:   b.listTreePage,
		FetchBatch: b.fetchContentsBatch,
		BatchLimit: b.batchLimit(ctx),
	}

	return reposync.FetchAll(ctx, src, b.progress)
}

func (b *Backend) listTreePage(ctx context.Context, page int) (reposync.TreePage, error) {
	var tree gitTreeResponse
	_, err := b.client.Request(ctx, b.repoPath("/git/trees/"+url.PathEscape(b.repo.Branch)), api.RequestOptions{
		Method: "GET",
		Query: map[string]string{
			"recursive": "true",
			"page":      fmt.Sprintf("%d", page),
		},
		Result: &tree,
	})
	if err != nil {
		return reposync.TreePage{}, err
	}

	items := make([]domain.FileListItem, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.Type != "blob" {
			continue
		}
		items = append(items, reposync.ToListItem(entry.Path, entry.SHA, entry.Size))
	}

	return reposync.TreePage{Entries: items, Truncated: tree.Truncated}, nil
}

func (b *Backend) fetchContentsBatch(ctx context.Context, paths []string) (map[string]domain.FileContents, error) {
	var files []contentsResponse
	_, err := b.client.Request(ctx, b.repoPath("/file-contents"), api.RequestOptions{
		Method: "POST",
		Query:  map[string]string{"ref": b.repo.Branch},
		Body:   map[string][]string{"files": paths},
		Result: &files,
	})
	if err != nil {
		return nil, err
	}

	contents := make(map[string]domain.FileContents, len(files))
	for _, f := range files {
		contents[f.Path] = domain.FileContents{
			SHA:  f.SHA,
			Size: f.Size,
			Text: decodeContent(f.Encoding, f.Content),
		}
	}
	return contents, nil
}

// batchLimit asks the server for its bulk-fetch cap; any failure falls back
// to the shared default rather than blocking the sync.
func (b *Backend) batchLimit(ctx context.Context) int {
	if b.batchSize > 0 {
		return b.batchSize
	}

	var settings struct {
		DefaultPagingNum int `json:"default_paging_num"`
	}
	if err := b.client.Get(ctx, "/settings/api", &settings); err != nil {
		logger.Debugf("Could not read API settings, using default batch size: %v", err)
		b.batchSize = reposync.DefaultBatchLimit
		return b.batchSize
	}

	b.batchSize = settings.DefaultPagingNum
	if b.batchSize <= 0 {
		b.batchSize = reposync.DefaultBatchLimit
	}
	return b.batchSize
}

// FetchBlob retrieves one asset as raw bytes through the media endpoint.
func (b *Backend) FetchBlob(ctx context.Context, path string) ([]byte, error) {
	blob, err := b.client.GetBlob(ctx, b.repoPath("/media/"+escapePath(path)), map[string]string{
		"ref": b.repo.Branch,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blob %q: %w", path, err)
	}
	return blob, nil
}

// --- commit ---

type commitIdentity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type changeFileOperation struct {
	Operation string `json:"operation"`
	Path      string `json:"path"`
	Content   string `json:"content,omitempty"`
	FromPath  string `json:"from_path,omitempty"`
}

type changeFilesBody struct {
	Branch    string                `json:"branch"`
	Message   string                `json:"message"`
	Author    commitIdentity        `json:"author"`
	Committer commitIdentity        `json:"committer"`
	Dates     map[string]string     `json:"dates"`
	Files     []changeFileOperation `json:"files"`
}

type filesResponse struct {
	Commit struct {
		HTMLURL string `json:"html_url"`
	} `json:"commit"`
}

// CommitChanges submits one atomic multi-file commit and returns the web
// URL of the resulting commit. Moves are represented as updates with a
// from_path, since the API has no first-class rename operation.
func (b *Backend) CommitChanges(ctx context.Context, changes []domain.FileChange, opts domain.CommitOptions) (string, error) {
	if err := domain.ValidateChanges(changes); err != nil {
		return "", err
	}
	if _, err := b.ensureRepoMeta(ctx); err != nil {
		return "", err
	}

	user := b.session.CurrentUser()
	if user == nil {
		return "", &domain.AuthError{Cause: errors.New("no signed-in user to author the commit")}
	}

	identity := commitIdentity{Name: user.Name, Email: user.Email}
	if identity.Name == "" {
		identity.Name = user.Login
	}
	now := time.Now().UTC().Format(time.RFC3339)

	body := changeFilesBody{
		Branch:    b.repo.Branch,
		Message:   domain.ComposeCommitMessage(opts.Kind, changes, opts),
		Author:    identity,
		Committer: identity,
		Dates:     map[string]string{"author": now, "committer": now},
		Files:     encodeOperations(changes),
	}

	var result filesResponse
	if err := b.client.Post(ctx, b.repoPath("/contents"), body, &result); err != nil {
		if status := domain.HTTPStatus(err); status != 0 {
			return "", &domain.CommitError{Status: status, Body: err.Error()}
		}
		return "", fmt.Errorf("failed to submit commit: %w", err)
	}

	return result.Commit.HTMLURL, nil
}

func encodeOperations(changes []domain.FileChange) []changeFileOperation {
	ops := make([]changeFileOperation, 0, len(changes))
	for _, change := range changes {
		op := changeFileOperation{Path: change.Path}
		switch change.Action {
		case domain.ActionCreate:
			op.Operation = "create"
			op.Content = encodeContent(change.Data)
		case domain.ActionUpdate:
			op.Operation = "update"
			op.Content = encodeContent(change.Data)
		case domain.ActionDelete:
			op.Operation = "delete"
		case domain.ActionMove:
			op.Operation = "update"
			op.FromPath = change.PreviousPath
			op.Content = encodeContent(change.Data)
		}
		ops = append(ops, op)
	}
	return ops
}

// --- helpers ---

func (b *Backend) repoPath(suffix string) string {
	return fmt.Sprintf("/repos/%s/%s%s", b.repo.Owner, b.repo.Repo, suffix)
}

func toOrigin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("missing scheme or host")
	}
	return u.Scheme + "://" + u.Host, nil
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func encodeContent(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

// decodeContent tolerates entries deleted between listing and fetch: a
// missing body or an unexpected encoding tag yields empty text, not an error.
func decodeContent(encoding, content *string) string {
	if content == nil || encoding == nil || *encoding != "base64" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(*content)
	if err != nil {
		return ""
	}
	return string(raw)
}
