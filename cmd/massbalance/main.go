package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	massbalance "github.com/jamesainslie/go-massbalance"
	"github.com/jamesainslie/go-massbalance/dataset"
	"github.com/jamesainslie/go-massbalance/internal/config"
	"github.com/jamesainslie/go-massbalance/internal/report"
	"github.com/jamesainslie/go-massbalance/internal/telemetry"
	"github.com/jamesainslie/go-massbalance/params"
	"github.com/jamesainslie/go-massbalance/scorer"
)

// Set by the build via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		dataPath    = flag.String("data", config.DefaultDataset, "Dataset CSV file")
		modelPath   = flag.String("model", config.DefaultModel, "Path to ONNX scoring model")
		epochs      = flag.Int("epochs", config.DefaultEpochs, "Number of calibration epochs")
		step        = flag.Float64("step", config.DefaultStepMultiplier, "Multiplicative probe step (> 1)")
		workers     = flag.Int("workers", 0, "Concurrent evaluations per pass (0 = physical cores)")
		metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
		reportPath  = flag.String("report", "", "Write the final result as JSON to this file")
		verbose     = flag.Bool("v", false, "Log every pass and probe")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("massbalance %s (%s, %s)\n", version, commit, date)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}

	// Flags only override the file when given explicitly.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.Dataset = *dataPath
		case "model":
			cfg.Model = *modelPath
		case "epochs":
			cfg.Epochs = *epochs
		case "step":
			cfg.StepMultiplier = *step
		case "workers":
			cfg.Workers = *workers
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "report":
			cfg.Report = *reportPath
		}
	})
	if errs := cfg.Validate(); len(errs) > 0 {
		fail(fmt.Errorf("invalid configuration: %w", errors.Join(errs...)))
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	runID := uuid.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With("run_id", runID.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, runID, logger); err != nil {
		stop()
		fail(err)
	}
}

func run(ctx context.Context, cfg *config.Config, runID uuid.UUID, logger *slog.Logger) error {
	started := time.Now()

	data, err := dataset.Load(cfg.Dataset)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded", "path", cfg.Dataset, "samples", data.Len())

	values := make([]float64, len(cfg.Coefficients))
	set, err := params.NewSet()
	if err != nil {
		return err
	}
	for i, c := range cfg.Coefficients {
		values[i] = c.Value
		p, err := params.Bind(c.Name, &values[i])
		if err != nil {
			return fmt.Errorf("coefficient %s: %w", c.Name, err)
		}
		if err := set.Add(p); err != nil {
			return err
		}
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = massbalance.DefaultPoolSize()
	}

	sc, err := scorer.New(cfg.Model, scorer.WithPoolSize(workers), scorer.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("loading scorer: %w", err)
	}
	defer func() { _ = sc.Close() }() // Cleanup error ignored in CLI

	opts := []massbalance.Option{
		massbalance.WithEpochs(cfg.Epochs),
		massbalance.WithStepMultiplier(cfg.StepMultiplier),
		massbalance.WithPoolSize(workers),
		massbalance.WithLogger(logger),
		massbalance.WithReporter(report.NewConsole(os.Stdout)),
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics, err := telemetry.New(reg)
		if err != nil {
			return err
		}
		opts = append(opts, massbalance.WithObserver(metrics))

		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := telemetry.Serve(metricsCtx, cfg.MetricsAddr, reg); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	eng, err := massbalance.New(set, data, sc, opts...)
	if err != nil {
		return err
	}

	logger.Info("calibration started",
		"epochs", cfg.Epochs,
		"step", cfg.StepMultiplier,
		"workers", workers,
		"coefficients", set.Len(),
	)
	res, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	attrs := []any{
		"deviation", res.Summary.Deviation,
		"mean_difference", res.Summary.MeanDifference,
		"scale", res.Scale,
		"elapsed", time.Since(started).Round(time.Millisecond),
	}
	if res.Summary.RatiosDefined {
		attrs = append(attrs, "mean_ratio", res.Summary.MeanRatio, "ratio_deviation", res.Summary.RatioDeviation)
	}
	logger.Info("calibration complete", attrs...)

	if cfg.Report != "" {
		meta := report.Meta{
			RunID:    runID,
			Dataset:  cfg.Dataset,
			Model:    cfg.Model,
			Step:     cfg.StepMultiplier,
			Started:  started,
			Finished: time.Now(),
		}
		if err := report.WriteJSONFile(cfg.Report, meta, res); err != nil {
			return err
		}
		logger.Info("report written", "path", cfg.Report)
	}

	return nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
