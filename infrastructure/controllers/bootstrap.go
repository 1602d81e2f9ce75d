// Package controllers binds the application services to the CLI surface.
package controllers

import (
	"fmt"
	"os/exec"
	"runtime"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rios0rios0/contentsync/application"
	"github.com/rios0rios0/contentsync/config"
	"github.com/rios0rios0/contentsync/domain"
	"github.com/rios0rios0/contentsync/infrastructure/auth"
	"github.com/rios0rios0/contentsync/infrastructure/backend"
	"github.com/rios0rios0/contentsync/infrastructure/backend/gitea"
	"github.com/rios0rios0/contentsync/infrastructure/backend/gitlab"
	"github.com/rios0rios0/contentsync/infrastructure/credentials"
)

// Bind is the Cobra metadata a controller exposes.
type Bind struct {
	Use   string
	Short string
	Long  string
}

// Controller is one CLI subcommand backed by the application services.
type Controller interface {
	GetBind() Bind
	Execute(cmd *cobra.Command, args []string)
}

// app is the fully wired object graph for one invocation.
type app struct {
	config  *config.Config
	session *application.SessionService
	sync    *application.SyncService
	backend domain.BackendService
}

// buildApp loads configuration, wires the session, and lets the backend
// registry resolve the active provider. Interactive mode attaches a
// localhost code receiver so sign-in can open a browser.
func buildApp(cmd *cobra.Command, interactive bool) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		found, err := config.FindConfigFile()
		if err != nil {
			return nil, fmt.Errorf("no config file found (specify one with --config): %w", err)
		}
		configPath = found
	}
	logger.Debugf("Using config file: %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	credsPath, err := credentials.DefaultPath()
	if err != nil {
		return nil, err
	}
	session := application.NewSessionService(credentials.NewFileStore(credsPath))

	var receiver auth.CodeReceiver
	if interactive {
		receiver = &auth.LocalReceiver{Present: openBrowser}
	}

	registry := backend.NewRegistry()
	registry.Register("gitea", func() domain.BackendService {
		return gitea.New(cfg, session, receiver, session.Progress())
	})
	registry.Register("gitlab", func() domain.BackendService {
		return gitlab.New(cfg, session, receiver, session.Progress())
	})

	active, err := registry.Resolve()
	if err != nil {
		return nil, err
	}
	session.AttachBackend(active)

	return &app{
		config:  cfg,
		session: session,
		sync:    application.NewSyncService(session),
		backend: active,
	}, nil
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
