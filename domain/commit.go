package domain

import "fmt"

// CommitKind classifies what a commit represents, which drives the shared
// message template used by every backend.
type CommitKind string

const (
	CommitKindCreate      CommitKind = "create"
	CommitKindUpdate      CommitKind = "update"
	CommitKindDelete      CommitKind = "delete"
	CommitKindUploadMedia CommitKind = "uploadMedia"
	CommitKindDeleteMedia CommitKind = "deleteMedia"
)

var commitVerbs = map[CommitKind]string{
	CommitKindCreate:      "Create",
	CommitKindUpdate:      "Update",
	CommitKindDelete:      "Delete",
	CommitKindUploadMedia: "Upload",
	CommitKindDeleteMedia: "Delete",
}

// ComposeCommitMessage builds the multi-file commit message all backends
// share: "<Verb> <first path>" plus a trailer when more files are involved.
// A lone move is rendered as a rename.
func ComposeCommitMessage(kind CommitKind, changes []FileChange, opts CommitOptions) string {
	if len(changes) == 0 {
		return "Update files"
	}

	verb, ok := commitVerbs[kind]
	if !ok {
		verb = "Update"
	}

	first := changes[0]
	msg := fmt.Sprintf("%s %s", verb, first.Path)
	if first.Action == ActionMove {
		msg = fmt.Sprintf("Rename %s to %s", first.PreviousPath, first.Path)
	}

	if n := len(changes) - 1; n > 0 {
		msg = fmt.Sprintf("%s (+%d more)", msg, n)
	}

	if opts.SkipCI {
		msg += " [skip ci]"
	}

	return msg
}

// ValidateChanges checks every change in a set before it is handed to a
// provider, so a malformed change fails fast instead of mid-commit.
func ValidateChanges(changes []FileChange) error {
	if len(changes) == 0 {
		return fmt.Errorf("commit requires at least one file change")
	}
	for i, c := range changes {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("change %d: %w", i, err)
		}
	}
	return nil
}
