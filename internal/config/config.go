// Package config loads calibration run settings.
// It uses koanf to read an optional YAML file; environment variables override file values.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Coefficient is one named starting value. Order in the file is the order
// coefficients are calibrated in.
type Coefficient struct {
	Name  string  `koanf:"name"`
	Value float64 `koanf:"value"`
}

// Config holds everything a calibration run needs.
type Config struct {
	Dataset        string        `koanf:"dataset"`
	Model          string        `koanf:"model"`
	Epochs         int           `koanf:"epochs"`
	StepMultiplier float64       `koanf:"step_multiplier"`
	Workers        int           `koanf:"workers"` // 0 selects the physical core count
	MetricsAddr    string        `koanf:"metrics_addr"`
	Report         string        `koanf:"report"` // JSON export path, empty disables
	Coefficients   []Coefficient `koanf:"coefficients"`
}

// Validation errors.
var (
	ErrMissingDataset     = errors.New("dataset is required")
	ErrMissingModel       = errors.New("model is required")
	ErrNegativeEpochs     = errors.New("epochs must not be negative")
	ErrInvalidStep        = errors.New("step_multiplier must be greater than 1")
	ErrNegativeWorkers    = errors.New("workers must not be negative")
	ErrNoCoefficients     = errors.New("at least one coefficient is required")
	ErrInvalidCoefficient = errors.New("invalid coefficient")
)

// Defaults.
const (
	DefaultDataset        = "scores.csv"
	DefaultModel          = "scorer.onnx"
	DefaultEpochs         = 20
	DefaultStepMultiplier = 1.05
)

// DefaultCoefficients returns the coefficients calibrated when the file names none.
func DefaultCoefficients() []Coefficient {
	return []Coefficient{
		{Name: "aimMultiplier", Value: 26.25},
		{Name: "speedMultiplier", Value: 1400},
		{Name: "speedStrainDecayBase", Value: 0.3},
		{Name: "aimStrainDecayBase", Value: 0.15},
	}
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		Dataset:        DefaultDataset,
		Model:          DefaultModel,
		Epochs:         DefaultEpochs,
		StepMultiplier: DefaultStepMultiplier,
		Coefficients:   DefaultCoefficients(),
	}
}

// Load reads configuration from an optional YAML file and the environment.
// MASSBALANCE_DATASET, MASSBALANCE_MODEL and MASSBALANCE_METRICS_ADDR take
// precedence over file values. The returned config is not validated; callers
// apply flag overrides first and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		applyEnv(cfg)
		return cfg, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	var fc Config
	if err := k.Unmarshal("", &fc); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", path, err)
	}

	if k.Exists("dataset") {
		cfg.Dataset = fc.Dataset
	}
	if k.Exists("model") {
		cfg.Model = fc.Model
	}
	if k.Exists("epochs") {
		cfg.Epochs = fc.Epochs
	}
	if k.Exists("step_multiplier") {
		cfg.StepMultiplier = fc.StepMultiplier
	}
	if k.Exists("workers") {
		cfg.Workers = fc.Workers
	}
	if k.Exists("metrics_addr") {
		cfg.MetricsAddr = fc.MetricsAddr
	}
	if k.Exists("report") {
		cfg.Report = fc.Report
	}
	if k.Exists("coefficients") {
		cfg.Coefficients = fc.Coefficients
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MASSBALANCE_DATASET"); v != "" {
		cfg.Dataset = v
	}
	if v := os.Getenv("MASSBALANCE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("MASSBALANCE_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
}

// Validate checks the config and returns every problem found.
func (c *Config) Validate() []error {
	var errs []error

	if c.Dataset == "" {
		errs = append(errs, ErrMissingDataset)
	}
	if c.Model == "" {
		errs = append(errs, ErrMissingModel)
	}
	if c.Epochs < 0 {
		errs = append(errs, ErrNegativeEpochs)
	}
	if !(c.StepMultiplier > 1) || math.IsInf(c.StepMultiplier, 0) {
		errs = append(errs, ErrInvalidStep)
	}
	if c.Workers < 0 {
		errs = append(errs, ErrNegativeWorkers)
	}
	if len(c.Coefficients) == 0 {
		errs = append(errs, ErrNoCoefficients)
	}

	seen := make(map[string]bool, len(c.Coefficients))
	for i, coef := range c.Coefficients {
		switch {
		case coef.Name == "":
			errs = append(errs, fmt.Errorf("%w: coefficient %d has no name", ErrInvalidCoefficient, i))
		case seen[coef.Name]:
			errs = append(errs, fmt.Errorf("%w: %s listed twice", ErrInvalidCoefficient, coef.Name))
		case !(coef.Value > 0) || math.IsInf(coef.Value, 0):
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidCoefficient, coef.Name, coef.Value))
		}
		seen[coef.Name] = true
	}

	return errs
}
