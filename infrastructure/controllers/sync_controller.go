package controllers

import (
	"context"
	"encoding/json"
	"os"
	"sort"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rios0rios0/contentsync/domain"
	"github.com/rios0rios0/contentsync/infrastructure/backend/reposync"
)

// SyncController handles the "sync" subcommand.
type SyncController struct{}

// NewSyncController creates a new SyncController.
func NewSyncController() *SyncController {
	return &SyncController{}
}

// GetBind returns the Cobra command metadata for the sync controller.
func (it *SyncController) GetBind() Bind {
	return Bind{
		Use:   "sync",
		Short: "Fetch the full repository content state",
		Long: `List every file on the working branch and bulk-fetch the text
of all entry files, printing a summary of the synchronized state.

Credentials are restored from the local cache; run "login" first when no
valid cached credentials exist.`,
	}
}

// Execute runs one full fetch cycle.
func (it *SyncController) Execute(cmd *cobra.Command, _ []string) {
	ctx := context.Background()

	app, err := buildApp(cmd, false)
	if err != nil {
		logger.Errorf("%v", err)
		return
	}

	if _, autoErr := app.session.AutoSignIn(ctx); autoErr != nil {
		logger.Errorf("Sign-in failed: %v", autoErr)
		return
	}
	if app.session.CurrentUser() == nil {
		if token := app.config.Backend.Token; token != "" {
			if _, signErr := app.session.SignInWithToken(ctx, token, ""); signErr != nil {
				logger.Errorf("Sign-in failed: %v", signErr)
				return
			}
		} else {
			logger.Error("Not signed in; run \"contentsync login\" first")
			return
		}
	}

	app.session.Progress().Subscribe(func(pct int) {
		if pct != reposync.ProgressIdle {
			logger.Infof("Fetching contents... %d%%", pct)
		}
	})

	contents, err := app.sync.FetchAll(ctx, app.backend)
	if err != nil {
		logger.Errorf("Sync failed: %v", err)
		return
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		it.printJSON(contents)
		return
	}

	repo := app.backend.Repository()
	logger.Infof("Repository %s/%s@%s: %d files in sync", repo.Owner, repo.Repo, repo.Branch, len(contents))
}

func (it *SyncController) printJSON(contents domain.ContentsMap) {
	paths := make([]string, 0, len(contents))
	for p := range contents {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	summary := make([]map[string]any, 0, len(paths))
	for _, p := range paths {
		fc := contents[p]
		summary = append(summary, map[string]any{
			"path": p,
			"sha":  fc.SHA,
			"size": fc.Size,
		})
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		logger.Errorf("Failed to encode summary: %v", err)
	}
}

// AddFlags adds the sync-specific flags to the given Cobra command.
func (it *SyncController) AddFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Print a JSON summary of the synchronized files")
}
