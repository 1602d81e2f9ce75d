package controllers

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// StatusController handles the "status" subcommand.
type StatusController struct{}

// NewStatusController creates a new StatusController.
func NewStatusController() *StatusController {
	return &StatusController{}
}

// GetBind returns the Cobra command metadata for the status controller.
func (it *StatusController) GetBind() Bind {
	return Bind{
		Use:   "status",
		Short: "Show the active backend and session state",
		Long: `Resolve the configured backend, attempt an automatic sign-in
from cached credentials, and report the session state.`,
	}
}

// Execute reports the backend and session state.
func (it *StatusController) Execute(cmd *cobra.Command, _ []string) {
	ctx := context.Background()

	app, err := buildApp(cmd, false)
	if err != nil {
		logger.Errorf("%v", err)
		return
	}

	repo := app.backend.Repository()
	logger.Infof("Backend: %s (%s)", app.backend.Label(), app.backend.Name())
	logger.Infof("Repository: %s/%s", repo.Owner, repo.Repo)
	if repo.Branch != "" {
		logger.Infof("Branch: %s", repo.Branch)
	}

	if _, autoErr := app.session.AutoSignIn(ctx); autoErr != nil {
		logger.Warnf("Automatic sign-in failed: %v", autoErr)
	}

	if user := app.session.CurrentUser(); user != nil {
		logger.Infof("Signed in as %s <%s>", user.Login, user.Email)
	} else if app.session.Unauthenticated() {
		logger.Info("Cached credentials were rejected; run \"contentsync login\"")
	} else {
		logger.Info("Not signed in")
	}
}
