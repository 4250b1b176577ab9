package main

import (
	"github.com/spf13/cobra"

	"codescope/internal/rpc"
)

func newRPCCmd(g *globalFlags, newEngine engineFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "rpc [path]",
		Short: "Serve JSON-RPC 2.0 over stdio",
		Long: `Serve JSON-RPC 2.0 over stdin and stdout, one message per line.

Methods:
  analyze      run an analysis; params mirror the analyze flags
  detect       detect the languages of a project
  cache.stats  cache statistics

Requests without a path analyze [path]. Logs go to stderr since stdout
carries the protocol.`,
		Args: optionalPath,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g, newEngine, args)
			if err != nil {
				return err
			}
			defer s.Close()

			server := rpc.NewServer(s.engine, s.logger, s.root)
			return server.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
