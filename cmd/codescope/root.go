package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"codescope/internal/config"
	"codescope/internal/engine"
	scopeerrors "codescope/internal/errors"
	"codescope/internal/slogutil"
	"codescope/internal/version"
)

// engineFactory opens the engine a command works with.
type engineFactory func(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error)

// globalFlags are shared by every command.
type globalFlags struct {
	verbose   int
	quiet     bool
	logFormat string
}

func newRootCmd(newEngine engineFactory) *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "codescope",
		Short: "codescope - cache-aware code analysis",
		Long: `codescope analyzes a source tree in stages (complexity, churn, technical debt,
dead code, duplication and the dependency graph), scores every file for defect
risk and renders a size-bounded report. Parse results and snapshots are cached
under .codescope so repeated runs only re-analyze what changed.`,
		Version:       version.Info(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate("codescope version {{.Version}}\n")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	rootCmd.PersistentFlags().CountVarP(&g.verbose, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "Suppress all logging")
	rootCmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format: human or json (default from config)")

	rootCmd.AddCommand(
		newAnalyzeCmd(g, newEngine),
		newDetectCmd(g, newEngine),
		newCacheCmd(g, newEngine),
		newServeCmd(g, newEngine),
		newRPCCmd(g, newEngine),
		newWatchCmd(g, newEngine),
		newVersionCmd(),
	)
	return rootCmd
}

// session is what one command invocation works with.
type session struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger
	engine *engine.Engine
}

func (s *session) Close() {
	if err := s.engine.Close(); err != nil {
		s.logger.Warn("Failed to close engine", "error", err)
	}
}

// openSession resolves the project root, loads its configuration and opens
// the engine. Logs go to the command's stderr.
func openSession(cmd *cobra.Command, g *globalFlags, newEngine engineFactory, args []string) (*session, error) {
	root, err := projectRoot(args)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Cache.Dir = cfg.CacheDir(root)

	logger := g.logger(cmd, cfg)
	eng, err := newEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &session{root: root, cfg: cfg, logger: logger, engine: eng}, nil
}

// projectRoot returns the absolute path named by args, or the working
// directory.
func projectRoot(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", scopeerrors.New(scopeerrors.InvalidOptions, "cannot resolve "+path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", scopeerrors.New(scopeerrors.InvalidOptions, "cannot read "+path, err)
	}
	if !info.IsDir() {
		return "", scopeerrors.Newf(scopeerrors.InvalidOptions, "%s is not a directory", path)
	}
	return abs, nil
}

// logger builds the command logger. -v and -q win over the configured level.
func (g *globalFlags) logger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := slogutil.LevelFromVerbosity(g.verbose, g.quiet)
	if g.verbose == 0 && !g.quiet && cfg.Logging.Level != "" {
		level = slogutil.LevelFromString(cfg.Logging.Level)
	}
	format := cfg.Logging.Format
	if g.logFormat != "" {
		format = g.logFormat
	}
	return slogutil.New(cmd.ErrOrStderr(), format, level)
}

// optionalPath accepts zero or one path argument.
func optionalPath(_ *cobra.Command, args []string) error {
	if len(args) > 1 {
		return usageErrorf("accepts at most one path, received %d", len(args))
	}
	return nil
}
