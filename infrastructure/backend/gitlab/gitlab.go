// Package gitlab implements the BackendService contract on top of the
// official GitLab API client. It shares the synchronization algorithm with
// every other backend but maps it onto GitLab's REST semantics: next-page
// pagination, per-file content retrieval, and a first-class move action.
package gitlab

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	logger "github.com/sirupsen/logrus"
	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/rios0rios0/contentsync/config"
	"github.com/rios0rios0/contentsync/domain"
	"github.com/rios0rios0/contentsync/infrastructure/auth"
	"github.com/rios0rios0/contentsync/infrastructure/backend"
	"github.com/rios0rios0/contentsync/infrastructure/backend/reposync"
)

const (
	backendName  = "gitlab"
	backendLabel = "GitLab"

	publicOrigin = "https://gitlab.com"

	perPage = 100
)

// Backend implements domain.BackendService for GitLab.
type Backend struct {
	cfg           *config.Config
	session       backend.Session
	receiver      auth.CodeReceiver
	authenticator auth.Authenticator
	progress      *domain.Store[int]

	client    *gl.Client
	repo      *domain.RepositoryInfo
	endpoints domain.EndpointConfig
	meta      *repoMeta
}

type repoMeta struct {
	defaultBranch string
	webURL        string
}

// New creates an unclaimed GitLab backend; Init decides whether it activates.
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
// configuration; false when another backend is configured.
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

	restRoot := origin + "/api/v4"
	if bc.APIRoot != "" {
		apiOrigin, apiErr := toOrigin(bc.APIRoot)
		if apiErr != nil {
			return false, fmt.Errorf("invalid api_root %q: %w", bc.APIRoot, apiErr)
		}
		restRoot = apiOrigin + "/api/v4"
	}

	b.endpoints = domain.EndpointConfig{
		ClientID:    bc.AppID,
		AuthURL:     origin + "/oauth/authorize",
		TokenURL:    origin + "/oauth/token",
		Origin:      origin,
		RESTBaseURL: restRoot,
	}

	databaseName := fmt.Sprintf("%s:%s/%s", backendName, bc.Owner(), bc.RepoName())
	if b.repo != nil && b.repo.DatabaseName != "" {
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

	return true, nil
}

func (b *Backend) updateBranchURLs() {
	if b.repo.Branch == "" {
		return
	}
	b.repo.TreeBaseURL = fmt.Sprintf("%s/-/tree/%s", b.repo.BaseURL, b.repo.Branch)
	b.repo.BlobBaseURL = fmt.Sprintf("%s/-/blob/%s", b.repo.BaseURL, b.repo.Branch)
}

// ensureClient rebuilds the API client whenever the session token changed.
func (b *Backend) ensureClient() (*gl.Client, error) {
	token, _ := b.session.Tokens()
	if token == "" {
		return nil, &domain.AuthError{Cause: errors.New("no token available")}
	}
	if b.client != nil {
		return b.client, nil
	}

	client, err := gl.NewOAuthClient(token, gl.WithBaseURL(b.endpoints.RESTBaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to construct gitlab client: %w", err)
	}
	b.client = client
	return client, nil
}

// --- sign-in / sign-out ---

// SignIn authenticates and fetches the canonical user profile. Automatic
// sign-in without a cached token resolves to nil instead of going
// interactive.
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

	b.session.UpdateTokens(token, refreshToken)
	b.client = nil // force re-construction with the fresh token

	client, err := b.ensureClient()
	if err != nil {
		return nil, err
	}

	profile, _, err := client.Users.CurrentUser(gl.WithContext(ctx))
	if err != nil {
		return nil, wrapError("failed to fetch user profile", err)
	}

	name := profile.Name
	if name == "" {
		name = profile.Username
	}

	return &domain.User{
		BackendName:  backendName,
		ID:           profile.ID,
		Name:         name,
		Login:        profile.Username,
		Email:        profile.Email,
		AvatarURL:    profile.AvatarURL,
		ProfileURL:   profile.WebsiteURL,
		Token:        token,
		RefreshToken: refreshToken,
	}, nil
}

// SignOut is local only; GitLab OAuth tokens expire on their own and a
// failed remote revocation must never block signing out.
func (b *Backend) SignOut(_ context.Context) {
	b.client = nil
	logger.Debugf("Signed out of %s", b.endpoints.Origin)
}

// --- repository metadata ---

func (b *Backend) projectID() string {
	return b.repo.Owner + "/" + b.repo.Repo
}

func (b *Backend) ensureRepoMeta(ctx context.Context) (*repoMeta, error) {
	if b.meta != nil {
		return b.meta, nil
	}

	client, err := b.ensureClient()
	if err != nil {
		return nil, err
	}

	project, _, err := client.Projects.GetProject(b.projectID(), nil, gl.WithContext(ctx))
	if err != nil {
		if httpStatus(err) == 404 {
			return nil, &domain.NotFoundError{
				Resource: fmt.Sprintf("repository %s/%s", b.repo.Owner, b.repo.Repo),
			}
		}
		return nil, wrapError("failed to look up project", err)
	}

	// GitLab hides projects the caller cannot read behind a 404, so a
	// resolvable project implies pull access; denial shows as forbidden on
	// the archive-level flag.
	if project.Permissions != nil &&
		project.Permissions.ProjectAccess == nil &&
		project.Permissions.GroupAccess == nil &&
		project.Visibility == gl.PrivateVisibility {
		return nil, &domain.AccessDeniedError{Owner: b.repo.Owner, Repo: b.repo.Repo}
	}

	if b.repo.Branch == "" {
		if project.DefaultBranch == "" {
			return nil, &domain.EmptyRepositoryError{Owner: b.repo.Owner, Repo: b.repo.Repo}
		}
		b.repo.Branch = project.DefaultBranch
		b.updateBranchURLs()
	}

	b.meta = &repoMeta{defaultBranch: project.DefaultBranch, webURL: project.WebURL}
	return b.meta, nil
}

// --- file synchronization ---

// FetchFiles lists every file on the working branch and fetches all entry
// text, returning the assembled contents map.
func (b *Backend) FetchFiles(ctx context.Context) (domain.ContentsMap, error) {
	if _, err := b.ensureRepoMeta(ctx); err != nil {
		return nil, err
	}

	src := reposync.Source{
		ListPage:   b.listTreePage,
		FetchBatch: b.fetchContentsBatch,
		BatchLimit: reposync.DefaultBatchLimit,
	}

	return reposync.FetchAll(ctx, src, b.progress)
}

func (b *Backend) listTreePage(ctx context.Context, page int) (reposync.TreePage, error) {
	client, err := b.ensureClient()
	if err != nil {
		return reposync.TreePage{}, err
	}

	recursive := true
	nodes, resp, err := client.Repositories.ListTree(b.projectID(), &gl.ListTreeOptions{
		ListOptions: gl.ListOptions{PerPage: perPage, Page: int64(page)},
		Ref:         gl.Ptr(b.repo.Branch),
		Recursive:   &recursive,
	}, gl.WithContext(ctx))
	if err != nil {
		return reposync.TreePage{}, wrapError("failed to list tree", err)
	}

	items := make([]domain.FileListItem, 0, len(nodes))
	for _, node := range nodes {
		if node.Type == "tree" {
			continue
		}
		items = append(items, reposync.ToListItem(node.Path, node.ID, 0))
	}

	return reposync.TreePage{Entries: items, Truncated: resp.NextPage != 0}, nil
}

// fetchContentsBatch has no bulk endpoint to lean on; the files of one batch
// are independent retrievals whose results are assembled together.
func (b *Backend) fetchContentsBatch(ctx context.Context, paths []string) (map[string]domain.FileContents, error) {
	client, err := b.ensureClient()
	if err != nil {
		return nil, err
	}

	contents := make(map[string]domain.FileContents, len(paths))
	for _, p := range paths {
		file, _, getErr := client.RepositoryFiles.GetFile(b.projectID(), p, &gl.GetFileOptions{
			Ref: gl.Ptr(b.repo.Branch),
		}, gl.WithContext(ctx))
		if getErr != nil {
			// Deleted between listing and fetch: treat as empty.
			if httpStatus(getErr) == 404 {
				contents[p] = domain.FileContents{}
				continue
			}
			return nil, wrapError(fmt.Sprintf("failed to fetch file %q", p), getErr)
		}

		contents[p] = domain.FileContents{
			SHA:  file.BlobID,
			Size: int64(file.Size),
			Text: decodeContent(file.Encoding, file.Content),
		}
	}
	return contents, nil
}

// FetchBlob retrieves one asset as raw bytes.
func (b *Backend) FetchBlob(ctx context.Context, path string) ([]byte, error) {
	client, err := b.ensureClient()
	if err != nil {
		return nil, err
	}

	raw, _, err := client.RepositoryFiles.GetRawFile(b.projectID(), path, &gl.GetRawFileOptions{
		Ref: gl.Ptr(b.repo.Branch),
	}, gl.WithContext(ctx))
	if err != nil {
		return nil, wrapError(fmt.Sprintf("failed to fetch blob %q", path), err)
	}
	return raw, nil
}

// --- commit ---

// CommitChanges submits one atomic multi-file commit. GitLab has a native
// move action, so renames keep their history server-side.
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

	client, err := b.ensureClient()
	if err != nil {
		return "", err
	}

	commit, _, err := client.Commits.CreateCommit(b.projectID(), &gl.CreateCommitOptions{
		Branch:        gl.Ptr(b.repo.Branch),
		CommitMessage: gl.Ptr(domain.ComposeCommitMessage(opts.Kind, changes, opts)),
		AuthorName:    gl.Ptr(authorName(user)),
		AuthorEmail:   gl.Ptr(user.Email),
		Actions:       encodeActions(changes),
	}, gl.WithContext(ctx))
	if err != nil {
		if status := httpStatus(err); status != 0 {
			return "", &domain.CommitError{Status: status, Body: err.Error()}
		}
		return "", fmt.Errorf("failed to submit commit: %w", err)
	}

	return commit.WebURL, nil
}

func encodeActions(changes []domain.FileChange) []*gl.CommitActionOptions {
	actions := make([]*gl.CommitActionOptions, 0, len(changes))
	for _, change := range changes {
		action := &gl.CommitActionOptions{
			FilePath: gl.Ptr(strings.TrimPrefix(change.Path, "/")),
		}
		switch change.Action {
		case domain.ActionCreate:
			action.Action = gl.Ptr(gl.FileCreate)
			action.Content = gl.Ptr(change.Data)
		case domain.ActionUpdate:
			action.Action = gl.Ptr(gl.FileUpdate)
			action.Content = gl.Ptr(change.Data)
		case domain.ActionDelete:
			action.Action = gl.Ptr(gl.FileDelete)
		case domain.ActionMove:
			action.Action = gl.Ptr(gl.FileMove)
			action.PreviousPath = gl.Ptr(strings.TrimPrefix(change.PreviousPath, "/"))
			action.Content = gl.Ptr(change.Data)
		}
		actions = append(actions, action)
	}
	return actions
}

// --- helpers ---

func authorName(user *domain.User) string {
	if user.Name != "" {
		return user.Name
	}
	return user.Login
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

func decodeContent(encoding, content string) string {
	if encoding != "base64" || content == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return ""
	}
	return string(raw)
}

func httpStatus(err error) int {
	var errResp *gl.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode
	}
	return 0
}

func wrapError(msg string, err error) error {
	switch httpStatus(err) {
	case 401:
		return &domain.AuthError{Cause: err}
	case 0:
		return fmt.Errorf("%s: %w", msg, err)
	default:
		return fmt.Errorf("%s: %w", msg, &domain.HTTPError{Status: httpStatus(err), Body: err.Error()})
	}
}
