package controllers

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// LogoutController handles the "logout" subcommand.
type LogoutController struct{}

// NewLogoutController creates a new LogoutController.
func NewLogoutController() *LogoutController {
	return &LogoutController{}
}

// GetBind returns the Cobra command metadata for the logout controller.
func (it *LogoutController) GetBind() Bind {
	return Bind{
		Use:   "logout",
		Short: "Sign out and clear cached credentials",
		Long: `Sign out of the configured backend.

Provider-side revocation is best-effort: local sign-out always succeeds and
the credential cache is replaced with a sentinel so the next run does not
sign in automatically.`,
	}
}

// Execute runs the sign-out flow.
func (it *LogoutController) Execute(cmd *cobra.Command, _ []string) {
	app, err := buildApp(cmd, false)
	if err != nil {
		logger.Errorf("%v", err)
		return
	}

	app.session.SignOut(context.Background())
}
