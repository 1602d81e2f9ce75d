package controllers

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// LoginController handles the "login" subcommand.
type LoginController struct{}

// NewLoginController creates a new LoginController.
func NewLoginController() *LoginController {
	return &LoginController{}
}

// GetBind returns the Cobra command metadata for the login controller.
func (it *LoginController) GetBind() Bind {
	return Bind{
		Use:   "login",
		Short: "Sign in to the configured Git hosting backend",
		Long: `Authenticate against the configured backend and cache the
resulting credentials locally.

With a token configured (backend.token, inline or via ${ENV_VAR}) the token
is validated and the profile fetched directly. Otherwise an OAuth/PKCE flow
is started in the browser. A deep-link payload from another signed-in device
can be supplied with --bootstrap /signin/<data>.`,
	}
}

// Execute runs the sign-in flow.
func (it *LoginController) Execute(cmd *cobra.Command, _ []string) {
	ctx := context.Background()

	app, err := buildApp(cmd, true)
	if err != nil {
		logger.Errorf("%v", err)
		return
	}

	if bootstrapPath, _ := cmd.Flags().GetString("bootstrap"); bootstrapPath != "" {
		user, _, bootErr := app.session.ConsumeBootstrap(ctx, bootstrapPath)
		if bootErr != nil {
			logger.Errorf("Bootstrap sign-in failed: %v", bootErr)
			return
		}
		logger.Infof("Signed in as %s via bootstrap", user.Login)
		return
	}

	if token := app.config.Backend.Token; token != "" {
		if _, signErr := app.session.SignInWithToken(ctx, token, ""); signErr != nil {
			logger.Errorf("Sign-in failed: %v", signErr)
		}
		return
	}

	if _, signErr := app.session.SignIn(ctx); signErr != nil {
		logger.Errorf("Sign-in failed: %v", signErr)
	}
}

// AddFlags adds the login-specific flags to the given Cobra command.
func (it *LoginController) AddFlags(cmd *cobra.Command) {
	cmd.Flags().String("bootstrap", "", "Deep-link sign-in path (/signin/<base64 payload>)")
}
