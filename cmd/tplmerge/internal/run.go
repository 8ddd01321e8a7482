// Package internal contains the main application logic for the CLI.
package internal

import (
	"context"

	"github.com/lvillar/tplmerge/internal/commands"
)

// Run executes the command line args. It accepts OS dependencies as
// parameters so tests can supply their own.
func Run(ctx context.Context, args []string, getenv func(string) string) error {
	rootCmd := commands.NewRootCmd(getenv)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}
