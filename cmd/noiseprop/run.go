package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"noiseprop/internal/aggregator"
	"noiseprop/internal/attenuation"
	"noiseprop/internal/config"
	"noiseprop/internal/path"
	"noiseprop/internal/scene"
	"noiseprop/internal/scheduler"
	"noiseprop/internal/source"
	"noiseprop/internal/storage"
)

var (
	runFormat    string
	runDBPath    string
	runThreads   int
	runMaxError  float64
	runStorePath bool
	runNoStore   bool
)

// progressInterval is the period of the progress log line.
const progressInterval = 2 * time.Second

var runCmd = &cobra.Command{
	Use:   "run <scene>",
	Short: "Compute the attenuation of a scene",
	Long: `Load a scene file (yaml or toml), compute the attenuation between every source
and receiver, and store the results.

Examples:
  noiseprop run street.yaml                 # Run with default settings
  noiseprop run street.yaml --threads 1     # Single-threaded
  noiseprop run street.yaml --max-error 0   # Disable the early stop rule
  noiseprop run street.yaml --store-paths   # Keep path geometry for inspection`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runFormat, "format", "human", "Output format (json, human)")
	runCmd.Flags().StringVar(&runDBPath, "db", "", "Result database (overrides storage.path)")
	runCmd.Flags().IntVar(&runThreads, "threads", 0, "Worker count (overrides propagation.threadCount)")
	runCmd.Flags().Float64Var(&runMaxError, "max-error", 0, "Early stop budget in dB (overrides propagation.maximumError)")
	runCmd.Flags().BoolVar(&runStorePath, "store-paths", false, "Store the geometry of every evaluated path")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "Print the results without writing them to the database")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Storage.Path = runDBPath
	}
	if flags.Changed("threads") {
		cfg.Propagation.ThreadCount = runThreads
	}
	if flags.Changed("max-error") {
		cfg.Propagation.MaximumError = runMaxError
	}
	if runStorePath {
		cfg.Storage.StorePaths = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := newLogger(cmd, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resp, runErr := runScene(ctx, cfg, args[0], !runNoStore, logger)
	if resp != nil {
		output, err := FormatResponse(resp, OutputFormat(runFormat))
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, output)
	}
	return runErr
}

// RunResponseCLI is the outcome of a run.
type RunResponseCLI struct {
	RunID      string               `json:"runId,omitempty"`
	Scene      string               `json:"scene"`
	Sources    int                  `json:"sources"`
	Receivers  int                  `json:"receivers"`
	Bands      []float64            `json:"bands"`
	DurationMs int64                `json:"durationMs"`
	Stats      aggregator.Stats     `json:"stats"`
	Levels     []aggregator.Summary `json:"levels"`
	Error      string               `json:"error,omitempty"`
}

// pipeline holds the components of one run.
type pipeline struct {
	scene  *scene.Scene
	agg    *aggregator.Aggregator
	engine *scheduler.Engine
}

// buildPipeline wires the scene into the propagation components.
func buildPipeline(cfg *config.Config, sc *scene.Scene, logger *slog.Logger) (*pipeline, error) {
	bands := len(cfg.Bands.Nominal)
	builder := path.NewBuilder(sc.World, path.NewSoilIndex(sc.Soils), cfg.PathSettings(), logger)
	evaluator, err := attenuation.New(cfg.EvaluatorParams())
	if err != nil {
		return nil, err
	}
	sources, err := source.NewDiscretizer(sc.Sources, bands, sc.World.HeightAt,
		cfg.Propagation.MaxSourceDistance, cfg.Propagation.BoundMarginDb)
	if err != nil {
		return nil, err
	}
	agg := aggregator.New(sources.IDs(), sc.ReceiverIDs(), cfg.RetainPaths())
	engine := scheduler.New(builder, evaluator, sources, sc.World, agg, cfg.SchedulerConfig(), logger)
	return &pipeline{scene: sc, agg: agg, engine: engine}, nil
}

// runScene loads the scene, runs the propagation and, when store is set,
// records the run and its results. Results of the ranges that succeeded are
// kept even when another range failed.
func runScene(ctx context.Context, cfg *config.Config, scenePath string, store bool, logger *slog.Logger) (*RunResponseCLI, error) {
	sc, err := scene.Load(scenePath, len(cfg.Bands.Nominal))
	if err != nil {
		return nil, err
	}
	p, err := buildPipeline(cfg, sc, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Scene loaded",
		"scene", sc.Name,
		"sources", len(sc.Sources),
		"receivers", len(sc.Receivers),
		"soils", len(sc.Soils),
		"bands", len(cfg.Bands.Nominal),
	)

	var (
		db  *storage.DB
		run *storage.Run
	)
	if store {
		db, err = storage.Open(cfg.Storage.Path, logger)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		run = &storage.Run{
			Scene:     scenePath,
			Config:    cfgJSON,
			Sources:   len(sc.Sources),
			Receivers: len(sc.Receivers),
			Bands:     cfg.Bands.Nominal,
		}
		if err := db.CreateRun(run); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	runErr := runWithProgress(ctx, p, logger)
	duration := time.Since(start)

	resp := &RunResponseCLI{
		Scene:      sc.Name,
		Sources:    len(sc.Sources),
		Receivers:  len(sc.Receivers),
		Bands:      cfg.Bands.Nominal,
		DurationMs: duration.Milliseconds(),
		Stats:      p.agg.Stats(),
		Levels:     p.agg.Summaries(),
	}
	if runErr != nil {
		resp.Error = runErr.Error()
	}
	if !store {
		return resp, runErr
	}

	resp.RunID = run.ID
	var storeErr error
	if err := db.SaveResults(run.ID, p.agg.Records(), resp.Levels); err != nil {
		storeErr = err
	} else if cfg.Storage.StorePaths {
		storeErr = db.SavePaths(run.ID, p.agg.Paths())
	}
	if err := db.FinishRun(run.ID, resp.Stats, duration, errors.Join(runErr, storeErr)); err != nil {
		storeErr = errors.Join(storeErr, err)
	}
	if storeErr == nil {
		logger.Info("Run stored", "run", run.ID, "db", db.Path())
	}
	return resp, errors.Join(runErr, storeErr)
}

// runWithProgress runs the engine and logs the receiver count periodically.
func runWithProgress(ctx context.Context, p *pipeline, logger *slog.Logger) error {
	receivers := p.scene.Positions()
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				logger.Info("Progress", "done", p.engine.Progress(), "total", len(receivers))
			}
		}
	}()
	err := p.engine.Run(ctx, receivers)
	close(done)
	return err
}
