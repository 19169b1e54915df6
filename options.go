package massbalance

import (
	"log/slog"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// Option configures an Engine.
type Option func(*config)

type config struct {
	epochs   int
	step     float64
	poolSize int
	logger   *slog.Logger
	reporter Reporter
	observer Observer
}

func defaultConfig() config {
	return config{
		epochs:   20,
		step:     1.05,
		poolSize: DefaultPoolSize(),
		logger:   slog.Default(),
		reporter: nopReporter{},
		observer: nopObserver{},
	}
}

// DefaultPoolSize returns the physical core count, falling back to the
// logical CPU count when cpuid cannot tell.
func DefaultPoolSize() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// WithEpochs sets the number of coordinate sweeps (default: 20).
func WithEpochs(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.epochs = n
		}
	}
}

// WithStepMultiplier sets the multiplicative probe step (default: 1.05).
// Values <= 1 are rejected by New.
func WithStepMultiplier(m float64) Option {
	return func(c *config) {
		c.step = m
	}
}

// WithPoolSize sets the number of concurrent evaluations per pass
// (default: physical core count).
func WithPoolSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.poolSize = n
		}
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

// WithReporter receives per-epoch and final reports (default: discard).
func WithReporter(r Reporter) Option {
	return func(c *config) {
		if r != nil {
			c.reporter = r
		}
	}
}

// WithObserver receives pass and decision events (default: discard).
func WithObserver(o Observer) Option {
	return func(c *config) {
		if o != nil {
			c.observer = o
		}
	}
}
