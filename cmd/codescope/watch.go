package main

import (
	"github.com/spf13/cobra"

	"codescope/internal/engine"
	"codescope/internal/scan"
	"codescope/internal/watcher"
)

func newWatchCmd(g *globalFlags, newEngine engineFactory) *cobra.Command {
	var (
		stages   []string
		exclude  []string
		workers  int
		debounce int
	)

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Re-analyze a project whenever it changes",
		Long: `Analyze a project, then watch it and run an incremental analysis after
every burst of changes. One summary line is printed per run. Failed runs are
reported and watching continues until interrupted.`,
		Args: optionalPath,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debounce <= 0 {
				return usageErrorf("--debounce must be positive, got %d", debounce)
			}
			s, err := openSession(cmd, g, newEngine, args)
			if err != nil {
				return err
			}
			defer s.Close()

			wcfg := watcher.DefaultConfig()
			wcfg.DebounceMs = debounce
			opts := engine.Options{Stages: stages, Exclude: exclude, Workers: workers}
			scanOpt := scan.Options{
				MaxFileBytes: s.cfg.Detection.MaxFileBytes,
				Ignore:       s.cfg.Detection.Ignore,
			}
			return watcher.Run(cmd.Context(), s.engine, s.root, opts, wcfg, scanOpt, cmd.OutOrStdout(), s.logger)
		},
	}

	cmd.Flags().StringSliceVar(&stages, "stages", nil, "Stages to run (default all)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Stages to skip")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker pool size (0 uses the configured size)")
	cmd.Flags().IntVar(&debounce, "debounce", watcher.DefaultConfig().DebounceMs, "Quiet period in milliseconds before re-analyzing")
	return cmd
}
