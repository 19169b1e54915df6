package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	massbalance "github.com/jamesainslie/go-massbalance"
	"github.com/jamesainslie/go-massbalance/dataset"
	"github.com/jamesainslie/go-massbalance/internal/config"
	"github.com/jamesainslie/go-massbalance/mods"
	"github.com/jamesainslie/go-massbalance/params"
	"github.com/jamesainslie/go-massbalance/scorer"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (coefficients and model)")
	modelPath := flag.String("model", "", "Path to ONNX scoring model (overrides config)")
	scale := flag.Float64("scale", 1, "Global scale applied to the raw score")

	flag.Parse()

	line := strings.Join(flag.Args(), " ")
	if line == "" {
		fmt.Fprintln(os.Stderr, "Usage: mb-score [OPTIONS] ID,OK,MEH,MISS,TARGET,COMBO,NAME,MODS")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *modelPath != "" {
		cfg.Model = *modelPath
	}

	sample, err := dataset.ParseLine(line)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	m, err := mods.Parse(sample.Input.Mods)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	set, err := params.NewSet()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	values := make([]float64, len(cfg.Coefficients))
	for i, c := range cfg.Coefficients {
		values[i] = c.Value
		p, err := params.Bind(c.Name, &values[i])
		if err == nil {
			err = set.Add(p)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: coefficient %s: %v\n", c.Name, err)
			os.Exit(1)
		}
	}

	sc, err := scorer.New(cfg.Model,
		scorer.WithPoolSize(1),
		scorer.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating scorer: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = sc.Close() }() // Cleanup error ignored in CLI

	ec := massbalance.EvalContext{Coefficients: set.Snapshot(), Scale: *scale}
	computed, err := sc.Evaluate(context.Background(), sample.Input, ec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	sample.Computed = computed

	fmt.Printf("Map: %d (%s)\n", sample.Input.MapID, sample.Name)
	fmt.Printf("Mods: %s\n", m)
	fmt.Printf("Hits: %d / %d / %d, combo %d\n",
		sample.Input.CountOk, sample.Input.CountMeh, sample.Input.CountMiss, sample.Input.Combo)
	fmt.Printf("PP: %.2f  Target: %.2f  Diff: %.2f\n", sample.Computed, sample.Target, sample.Difference())
	fmt.Print(set)
}
