package main

import (
	"os"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rios0rios0/contentsync/infrastructure/controllers"
)

func buildRootCommand() *cobra.Command {
	//nolint:exhaustruct // Minimal Command initialization with required fields only
	cmd := &cobra.Command{
		Use:   "contentsync",
		Short: "Git-backed content synchronization and authentication core",
		Long: `The data-synchronization and authentication core of a Git-backed
content editor: content lives as files in a remote repository on a Git
hosting provider instead of a database.

One BackendService contract is implemented per provider (Gitea, GitLab);
the configured backend is selected at runtime, signed into via token or
OAuth/PKCE, and synchronized through paginated tree listing and batched
bulk content fetch. Edits flow back as atomic multi-file commits.`,
		RunE: func(command *cobra.Command, _ []string) error {
			return command.Help()
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "",
		"Path to config file (default: auto-detect)")
	cmd.PersistentFlags().BoolP("verbose", "v", false,
		"Enable verbose output")

	return cmd
}

func addSubcommands(rootCmd *cobra.Command, controllerList *[]controllers.Controller) {
	for _, controller := range *controllerList {
		bind := controller.GetBind()
		ctrl := controller // capture for closure
		//nolint:exhaustruct // Minimal Command initialization with required fields only
		subCmd := &cobra.Command{
			Use:   bind.Use,
			Short: bind.Short,
			Long:  bind.Long,
			Run: func(command *cobra.Command, arguments []string) {
				if verbose, _ := command.Flags().GetBool("verbose"); verbose {
					logger.SetLevel(logger.DebugLevel)
				}
				ctrl.Execute(command, arguments)
			},
		}

		// Add controller-specific flags
		if lc, ok := ctrl.(*controllers.LoginController); ok {
			lc.AddFlags(subCmd)
		}
		if sc, ok := ctrl.(*controllers.SyncController); ok {
			sc.AddFlags(subCmd)
		}

		rootCmd.AddCommand(subCmd)
	}
}

func main() {
	//nolint:exhaustruct // Minimal TextFormatter initialization with required fields only
	logger.SetFormatter(&logger.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	if os.Getenv("DEBUG") == "true" {
		logger.SetLevel(logger.DebugLevel)
	}

	controllerList := injectControllers()
	cobraRoot := buildRootCommand()
	addSubcommands(cobraRoot, controllerList)

	if err := cobraRoot.Execute(); err != nil {
		logger.Fatalf("Error executing 'contentsync': %s", err)
	}
}
