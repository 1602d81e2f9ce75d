package domain

import (
	"fmt"
	"path"
	"strings"
)

// RepositoryInfo describes the remote repository an activated backend works
// against. It is created once by Init; only the branch (and the URLs derived
// from it) may be filled in later, once the default branch is resolved.
type RepositoryInfo struct {
	Service      string // backend name, e.g. "gitea"
	Label        string // human-readable provider label
	Owner        string
	Repo         string
	Branch       string
	BaseURL      string // web URL of the repository
	TreeBaseURL  string // web URL for browsing the tree at Branch
	BlobBaseURL  string // web URL for viewing a file at Branch
	DatabaseName string // local cache key; fixed at first assignment
	IsSelfHosted bool
}

// EndpointConfig holds the OAuth and REST endpoints for one provider
// instance. Immutable after Init completes.
type EndpointConfig struct {
	ClientID    string
	AuthURL     string
	TokenURL    string
	Origin      string
	RESTBaseURL string
}

// User is the canonical signed-in identity. The session service owns the
// single instance; Token and RefreshToken may be replaced in place when a
// request triggers a silent refresh, so callers must re-read the session
// store instead of caching a copy.
type User struct {
	BackendName  string `json:"backendName"`
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Login        string `json:"login"`
	Email        string `json:"email"`
	AvatarURL    string `json:"avatar_url"`
	ProfileURL   string `json:"profile_url"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// FileListItem is one blob entry produced by the recursive tree listing.
type FileListItem struct {
	Path string
	SHA  string
	Size int64
	Name string
	Type string // "entry" or "asset"
}

// FileContents is the fetched state of a single file.
type FileContents struct {
	SHA  string
	Size int64
	Text string
	Meta map[string]string
}

// ContentsMap maps file paths to their fetched contents. Once returned by a
// fetch cycle it is treated as immutable; edits go through FileChange.
type ContentsMap map[string]FileContents

// FileAction enumerates the operations a FileChange can carry.
type FileAction string

const (
	ActionCreate FileAction = "create"
	ActionUpdate FileAction = "update"
	ActionDelete FileAction = "delete"
	ActionMove   FileAction = "move"
)

// FileChange is one file-level operation within a commit. PreviousPath is
// required iff Action is ActionMove.
type FileChange struct {
	Action       FileAction
	Path         string
	PreviousPath string
	Data         string
}

// Validate checks the structural invariants of a change.
func (c FileChange) Validate() error {
	switch c.Action {
	case ActionCreate, ActionUpdate, ActionDelete:
		if c.PreviousPath != "" {
			return fmt.Errorf("previousPath is only valid for move, got %q on %s", c.PreviousPath, c.Action)
		}
	case ActionMove:
		if c.PreviousPath == "" {
			return fmt.Errorf("move of %q requires previousPath", c.Path)
		}
	default:
		return fmt.Errorf("unknown file action %q", c.Action)
	}
	if c.Path == "" {
		return fmt.Errorf("file change (%s) requires a path", c.Action)
	}
	return nil
}

// entryExtensions lists the text formats treated as editable entries.
// Anything else is an asset and is fetched individually as a raw blob.
var entryExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".mdx":      true,
	".yaml":     true,
	".yml":      true,
	".toml":     true,
	".json":     true,
	".html":     true,
}

// IsEntryPath reports whether the path points at an editable entry file
// rather than a binary asset.
func IsEntryPath(p string) bool {
	return entryExtensions[strings.ToLower(path.Ext(p))]
}

// EntryType returns the FileListItem type for a path.
func EntryType(p string) string {
	if IsEntryPath(p) {
		return "entry"
	}
	return "asset"
}
