package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(g *globalFlags, newEngine engineFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the analysis cache",
		Long: `Inspect or clear the parse cache and the stored snapshots of a project.

The cache lives in <path>/.codescope unless cache.dir is configured.`,
	}
	cmd.AddCommand(newCacheStatsCmd(g, newEngine), newCacheClearCmd(g, newEngine))
	return cmd
}

func newCacheStatsCmd(g *globalFlags, newEngine engineFactory) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats [path]",
		Short: "Show cache statistics",
		Args:  optionalPath,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g, newEngine, args)
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.engine.CacheStats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			fmt.Fprintf(out, "Database:  %s\n", stats.Database)
			fmt.Fprintf(out, "Snapshots: %d\n", stats.Snapshots)
			if p := stats.Persistent; p != nil {
				fmt.Fprintf(out, "Cached ASTs: %d (%s)\n", p.Entries, formatBytes(p.Bytes))
				if p.Expired > 0 || p.Corruptions > 0 {
					fmt.Fprintf(out, "  expired %d, corrupt %d\n", p.Expired, p.Corruptions)
				}
			} else {
				fmt.Fprintln(out, "Cached ASTs: persistent cache disabled")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the statistics as JSON")
	return cmd
}

func newCacheClearCmd(g *globalFlags, newEngine engineFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [path]",
		Short: "Remove every cached AST and snapshot",
		Args:  optionalPath,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g, newEngine, args)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.engine.PurgeCache(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries\n", n)
			return nil
		},
	}
}

// formatBytes formats bytes in human-readable form
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
