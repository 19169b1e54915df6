package scorer

import (
	"log/slog"
	"runtime"

	"github.com/jamesainslie/go-massbalance/inference"
)

// Option configures a Scorer.
type Option func(*config)

type config struct {
	poolSize int
	names    inference.Names
	order    []string
	logger   *slog.Logger
}

func defaultConfig() config {
	return config{
		poolSize: runtime.NumCPU(),
		names:    inference.DefaultNames(),
		logger:   slog.Default(),
	}
}

// WithPoolSize sets the ONNX session pool size (default: runtime.NumCPU()).
// Match it to the engine pool size so no worker waits for a session.
func WithPoolSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithTensorNames overrides the model's input and output tensor names.
func WithTensorNames(n inference.Names) Option {
	return func(c *config) {
		c.names = n
	}
}

// WithCoefficientOrder fixes the order coefficients are fed to the model,
// independent of calibration order. Without it calibration order is used.
func WithCoefficientOrder(names ...string) Option {
	return func(c *config) {
		c.order = append([]string(nil), names...)
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
