// Package commands contains all CLI command definitions.
package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lvillar/tplmerge/config"
	"github.com/lvillar/tplmerge/internal/app"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

type contextKey struct{}

// NewRootCmd creates the root command. getenv resolves the default settings
// file location.
func NewRootCmd(getenv func(string) string) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "tplmerge",
		Short: "Merge spreadsheet rows into image and PDF templates",
		Long: `tplmerge renders one output file per spreadsheet row, either by drawing
the row's values onto an image template or by filling the form fields of a
PDF template.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return openWorkspace(cmd, opts, getenv)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a := fromCommand(cmd); a != nil {
				return a.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Settings file (default $TPLMERGE_CONFIG or the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug messages")

	registerConfigCmd(rootCmd)
	registerSheetsCmd(rootCmd)
	rootCmd.AddCommand(newActivateCmd())
	rootCmd.AddCommand(newAssetsCmd())
	rootCmd.AddCommand(newFieldsCmd())
	registerPlacementsCmd(rootCmd)
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

func openWorkspace(cmd *cobra.Command, opts *rootOptions, getenv func(string) string) error {
	path := opts.configPath
	if path == "" {
		p, err := config.DefaultPath(getenv)
		if err != nil {
			return err
		}
		path = p
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Open(ctx, path, logger)
	if err != nil {
		return err
	}
	cmd.SetContext(context.WithValue(ctx, contextKey{}, a))
	return nil
}

// fromCommand returns the workspace opened for cmd, or nil.
func fromCommand(cmd *cobra.Command) *app.App {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(contextKey{}).(*app.App)
	return a
}

func requireApp(cmd *cobra.Command) (*app.App, error) {
	a := fromCommand(cmd)
	if a == nil {
		return nil, errors.New("workspace not loaded")
	}
	return a, nil
}
