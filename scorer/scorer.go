// Package scorer evaluates samples with an ONNX scoring model.
package scorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	massbalance "github.com/jamesainslie/go-massbalance"
	"github.com/jamesainslie/go-massbalance/dataset"
	"github.com/jamesainslie/go-massbalance/inference"
	"github.com/jamesainslie/go-massbalance/mods"
)

var (
	// ErrModelNotFound indicates the model file does not exist.
	ErrModelNotFound = errors.New("scorer: model file not found")

	// ErrInvalidModel indicates the model file exists but cannot be loaded.
	ErrInvalidModel = errors.New("scorer: invalid model")

	// ErrMissingCoefficient indicates the evaluation context lacks a
	// coefficient the model expects.
	ErrMissingCoefficient = errors.New("scorer: missing coefficient")
)

// Scorer is a massbalance.Evaluator backed by a pool of ONNX sessions.
// It is safe for concurrent use.
type Scorer struct {
	pool   *inference.Pool
	order  []string
	logger *slog.Logger
}

var _ massbalance.Evaluator = (*Scorer)(nil)

// New loads the scoring model at modelPath.
func New(modelPath string, opts ...Option) (*Scorer, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, err := os.Stat(modelPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
		}
		return nil, fmt.Errorf("checking model file: %w", err)
	}

	pool, err := inference.NewPool(modelPath, cfg.poolSize, cfg.names)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}
	cfg.logger.Debug("scoring model loaded", "model", modelPath, "sessions", pool.Size())

	return &Scorer{
		pool:   pool,
		order:  cfg.order,
		logger: cfg.logger,
	}, nil
}

// Evaluate scores one sample. The model's raw output is multiplied by the
// global scale of ec. Unknown modifiers fail with mods.ErrInvalidModifier.
func (s *Scorer) Evaluate(ctx context.Context, in dataset.Input, ec massbalance.EvalContext) (float64, error) {
	m, err := mods.Parse(in.Mods)
	if err != nil {
		return 0, err
	}

	coefs, err := s.coefficients(ec)
	if err != nil {
		return 0, err
	}

	raw, err := s.pool.Score(ctx, Features(in, m), coefs)
	if err != nil {
		return 0, fmt.Errorf("scoring map %d: %w", in.MapID, err)
	}
	return ec.Scale * float64(raw), nil
}

func (s *Scorer) coefficients(ec massbalance.EvalContext) ([]float32, error) {
	if len(s.order) == 0 {
		out := make([]float32, len(ec.Coefficients))
		for i, c := range ec.Coefficients {
			out[i] = float32(c.Value)
		}
		return out, nil
	}

	out := make([]float32, len(s.order))
	for i, name := range s.order {
		v, ok := ec.Coefficient(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingCoefficient, name)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// Features lays out the model's feature row:
//
//	map id, ok, meh, miss, combo (0 = max), legacy mod bitmask
func Features(in dataset.Input, m mods.Mod) []int64 {
	return []int64{
		int64(in.MapID),
		int64(in.CountOk),
		int64(in.CountMeh),
		int64(in.CountMiss),
		int64(in.Combo),
		int64(m),
	}
}

// Close releases all sessions.
func (s *Scorer) Close() error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Close()
}
