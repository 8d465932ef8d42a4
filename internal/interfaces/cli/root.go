// Package cli implements the fairplay command-line interface. The CLI runs
// the analysis pipeline locally against an engine binary; it does not need
// the server stack.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/FairPlay-Intelligence/internal/config"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions holds the global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
}

// CLIContext carries the initialized dependencies through the command tree.
type CLIContext struct {
	Config  *config.Config
	Logger  logging.Logger
	Output  string
	Verbose bool
}

type cliContextKey struct{}

// FromContext returns the CLIContext installed by the root command's
// PersistentPreRun. It panics when called outside the command tree, which
// indicates a wiring bug rather than a runtime condition.
func FromContext(cmd *cobra.Command) *CLIContext {
	cliCtx, ok := cmd.Context().Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("cli: command executed without root initialization")
	}
	return cliCtx
}

// NewRootCommand builds the root command with global flags and all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fairplay",
		Short: "Screen chess games for engine assistance",
		Long: "fairplay analyzes chess games for signs of engine assistance.\n" +
			"It evaluates every move with a UCI engine, measures accuracy, engine\n" +
			"correlation, move timing and positional complexity, and aggregates the\n" +
			"signals into a risk assessment.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./fairplay.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")

	cmd.AddCommand(
		NewAnalyzeCmd(),
		NewVersionCmd(),
	)

	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	switch opts.OutputFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", opts.OutputFormat)
	}

	cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := initLogger(opts)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	cliCtx := &CLIContext{
		Config:  cfg,
		Logger:  logger,
		Output:  opts.OutputFormat,
		Verbose: opts.Verbose,
	}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads configuration with an explicit --config path taking
// precedence, then well-known locations, then environment variables alone.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}

	searchPaths := []string{"./fairplay.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".fairplay", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/fairplay/config.yaml")

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		}
	}
	return config.LoadFromEnv()
}

// initLogger builds a console logger on stderr so report output on stdout
// stays clean for piping.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level := strings.ToLower(opts.LogLevel)
	if opts.Verbose {
		level = "debug"
	}

	return logging.NewLogger(logging.Config{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}
