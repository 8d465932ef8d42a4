package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/FairPlay-Intelligence/internal/application/assessment"
	"github.com/turtacn/FairPlay-Intelligence/internal/application/reporting"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/evaluation"
	"github.com/turtacn/FairPlay-Intelligence/internal/domain/opening"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/engine/uci"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/explorer/lichess"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
)

// newEngine spawns the UCI engine. Swapped out in tests, which have no
// engine binary to exec.
var newEngine = func(cfg uci.Config) (evaluation.Engine, func() error, error) {
	eng, err := uci.NewEngine(cfg)
	if err != nil {
		return nil, nil, err
	}
	return eng, eng.Close, nil
}

// AnalyzeOptions holds the analyze command flags.
type AnalyzeOptions struct {
	PGNPath     string
	Depth       int
	MultiPV     int
	SkipOpening bool
	EnginePath  string
}

// NewAnalyzeCmd builds the analyze subcommand, which runs the full pipeline
// locally: engine evaluation, metric aggregation, risk scoring and report
// rendering.
func NewAnalyzeCmd() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a PGN file for engine assistance",
		Long: "analyze evaluates every move of the given game with a local UCI\n" +
			"engine and prints the resulting risk report. Opening moves are checked\n" +
			"against the Lichess opening explorer unless --skip-opening is set.",
		Example: `  fairplay analyze --pgn game.pgn
  fairplay analyze --pgn game.pgn --depth 16 --multipv 3 -o json
  fairplay analyze --pgn game.pgn --skip-opening --engine /usr/bin/stockfish`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.PGNPath, "pgn", "", "path to the PGN file to analyze (required)")
	f.IntVar(&opts.Depth, "depth", 0, "engine search depth per position (default from config)")
	f.IntVar(&opts.MultiPV, "multipv", 0, "candidate lines per position (default from config)")
	f.BoolVar(&opts.SkipOpening, "skip-opening", false, "skip the opening-theory scan")
	f.StringVar(&opts.EnginePath, "engine", "", "UCI engine binary (default from config)")
	_ = cmd.MarkFlagRequired("pgn")

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *AnalyzeOptions) error {
	cliCtx := FromContext(cmd)
	cfg := cliCtx.Config
	log := cliCtx.Logger

	pgn, err := os.ReadFile(opts.PGNPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", opts.PGNPath, err)
	}

	enginePath := opts.EnginePath
	if enginePath == "" {
		enginePath = cfg.Engine.BinaryPath
	}

	eng, closeEngine, err := newEngine(uci.Config{
		BinaryPath: enginePath,
		HashMB:     cfg.Engine.HashMB,
		Threads:    cfg.Engine.Threads,
		MultiPV:    cfg.Analysis.MultiPV,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer func() {
		if cerr := closeEngine(); cerr != nil {
			log.Warn("closing engine", logging.Err(cerr))
		}
	}()

	var oracle opening.TheoryOracle
	if !opts.SkipOpening {
		oracle = lichess.NewClient(lichess.Config{
			BaseURL: cfg.Explorer.BaseURL,
			Timeout: cfg.Explorer.Timeout,
		}, log)
	}

	svc, err := assessment.NewService(assessment.Deps{
		Engine: eng,
		Oracle: oracle,
		Logger: log,
	}, assessment.Options{
		Depth:           cfg.Analysis.Depth,
		MultiPV:         cfg.Analysis.MultiPV,
		MaxOpeningMoves: cfg.Analysis.MaxOpeningMoves,
		GameThreshold:   cfg.Analysis.GameThreshold,
		RateLimitDelay:  cfg.Analysis.RateLimitDelay,
	})
	if err != nil {
		return err
	}

	log.Info("analyzing game", logging.String("pgn", opts.PGNPath))

	result, err := svc.AnalyzePGN(cmd.Context(), pgn, assessment.Options{
		Depth:       opts.Depth,
		MultiPV:     opts.MultiPV,
		SkipOpening: opts.SkipOpening,
	})
	if err != nil {
		return err
	}

	report := reporting.BuildGameReport(result)

	if cliCtx.Output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return reporting.WriteText(cmd.OutOrStdout(), report)
}
