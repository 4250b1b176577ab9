package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"codescope/internal/api"
)

func newServeCmd(g *globalFlags, newEngine engineFactory) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Start the HTTP API server",
		Long: `Start the codescope HTTP API server.

Endpoints:
  POST   /analyze       run an analysis (JSON body or query string)
  GET    /detect        detect the languages of a project
  GET    /cache/stats   cache statistics
  DELETE /cache         clear the cache
  GET    /health        liveness and storage status

Relative paths in requests resolve against [path].`,
		Args: optionalPath,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, g, newEngine, addr, args)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, g *globalFlags, newEngine engineFactory, addr string, args []string) error {
	s, err := openSession(cmd, g, newEngine, args)
	if err != nil {
		return err
	}
	defer s.Close()

	cfg := api.DefaultConfig()
	cfg.Root = s.root
	if s.cfg.Server.Addr != "" {
		cfg.Addr = s.cfg.Server.Addr
	}
	if addr != "" {
		cfg.Addr = addr
	}
	server := api.NewServer(s.engine, s.logger, cfg)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "codescope HTTP API server listening on http://%s\n", cfg.Addr)

	ctx := cmd.Context()
	select {
	case err := <-serverErr:
		if err != nil {
			s.logger.Error("Server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error during shutdown", "error", err)
		return err
	}
	s.logger.Info("Server stopped gracefully")
	return nil
}
