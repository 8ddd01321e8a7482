package commands

import (
	"github.com/spf13/cobra"

	"github.com/lvillar/tplmerge/ipc"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the host interface on stdin and stdout",
		Long: `Serve the JSON-RPC 2.0 host interface on stdin and stdout, one message per
line. A desktop front end starts this command as a child process; logs go
to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := requireApp(cmd)
			if err != nil {
				return err
			}
			srv := ipc.NewServerWithIO(cmd.InOrStdin(), cmd.OutOrStdout(), a.Logger)
			ipc.RegisterMethods(srv, a)
			a.Logger.Info("serving", "methods", len(srv.Methods()))
			return srv.Run(cmd.Context())
		},
	}
}
