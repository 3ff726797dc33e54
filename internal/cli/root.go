// Package cli defines the librarian command line: the HTTP server plus
// maintenance commands that work directly against the library database.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/logger"
)

// NewRootCommand builds the command tree. Running it without a subcommand
// starts the server.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "librarian",
		Short:         "A small lending library: donate, borrow, return and track books",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(config.NewConfig().Log.Level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(version)
		},
	}

	root.AddCommand(
		newServeCommand(version),
		newCreateUserCommand(),
		newImportBooksCommand(),
	)
	return root
}

// Execute runs the command line and flushes the logger.
func Execute(version string) error {
	defer logger.Sync()
	return NewRootCommand(version).Execute()
}
