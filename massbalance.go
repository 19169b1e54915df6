package massbalance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jamesainslie/go-massbalance/dataset"
	"github.com/jamesainslie/go-massbalance/params"
)

// Engine calibrates a parameter set against a dataset by coordinate-wise
// multiplicative probing. An Engine runs once and is not safe for concurrent use.
type Engine struct {
	params *params.Set
	data   *dataset.Dataset
	eval   Evaluator
	scale  globalScale
	cfg    config
}

// New creates an Engine over ps and data. The engine takes ownership of both:
// it mutates coefficient values and every sample's Computed field.
func New(ps *params.Set, data *dataset.Dataset, eval Evaluator, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.step <= 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStep, cfg.step)
	}
	if ps == nil || ps.Len() == 0 {
		return nil, ErrNoParameters
	}
	if data == nil || data.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	if eval == nil {
		return nil, errors.New("massbalance: nil evaluator")
	}

	return &Engine{
		params: ps,
		data:   data,
		eval:   eval,
		scale:  newGlobalScale(),
		cfg:    cfg,
	}, nil
}

// Scale returns the current global scale.
func (e *Engine) Scale() float64 {
	return e.scale.value()
}

// Run performs the initial pass, the configured number of epochs and the
// final sequential pass, reporting along the way.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	reference, err := e.pass(ctx, PassInitial)
	if err != nil {
		return nil, err
	}
	e.cfg.logger.Info("initial pass", "deviation", reference, "scale", e.scale.value())

	for epoch := 0; epoch < e.cfg.epochs; epoch++ {
		for i := 0; i < e.params.Len(); i++ {
			reference, err = e.probe(ctx, epoch, e.params.At(i), reference)
			if err != nil {
				return nil, fmt.Errorf("epoch %d, parameter %s: %w", epoch, e.params.At(i).Name(), err)
			}
		}

		e.cfg.logger.Info("epoch complete", "epoch", epoch, "deviation", reference, "scale", e.scale.value())
		if err := e.cfg.reporter.ReportEpoch(EpochReport{
			Epoch:        epoch,
			Deviation:    reference,
			Scale:        e.scale.value(),
			Coefficients: e.params.Snapshot(),
		}); err != nil {
			return nil, fmt.Errorf("report epoch %d: %w", epoch, err)
		}
	}

	finalScale := e.scale.value()
	if _, err := e.pass(ctx, PassFinal); err != nil {
		return nil, err
	}

	summary, err := dataset.Summarize(e.data.Samples)
	if err != nil {
		return nil, fmt.Errorf("final statistics: %w", err)
	}

	res := &Result{
		Epochs:       e.cfg.epochs,
		Deviation:    reference,
		Scale:        finalScale,
		Coefficients: e.params.Snapshot(),
		Samples:      slices.Clone(e.data.Samples),
		Summary:      summary,
	}
	if err := e.cfg.reporter.ReportFinal(res); err != nil {
		return nil, fmt.Errorf("report final: %w", err)
	}
	return res, nil
}

// probe runs the decrease and increase passes for p and commits the outcome.
// It returns the new reference deviation.
func (e *Engine) probe(ctx context.Context, epoch int, p *params.Parameter, reference float64) (float64, error) {
	step := e.cfg.step

	if err := p.Div(step); err != nil {
		return 0, err
	}
	dec, err := e.pass(ctx, PassDecrease)
	if err != nil {
		return 0, err
	}

	if err := p.Mul(step * step); err != nil {
		return 0, err
	}
	inc, err := e.pass(ctx, PassIncrease)
	if err != nil {
		return 0, err
	}

	if err := p.Div(step); err != nil {
		return 0, err
	}

	d := Decide(reference, dec, inc)
	switch d {
	case DecisionDecrease:
		if err := p.Div(step); err != nil {
			return 0, err
		}
		reference = dec
	case DecisionIncrease:
		if err := p.Mul(step); err != nil {
			return 0, err
		}
		reference = inc
	}

	e.cfg.logger.Debug("probe",
		"epoch", epoch,
		"param", p.Name(),
		"decrease_deviation", dec,
		"increase_deviation", inc,
		"decision", d.String(),
		"value", p.Value(),
	)
	e.cfg.observer.ObserveDecision(DecisionEvent{
		Epoch:     epoch,
		Parameter: p.Name(),
		Decision:  d,
		Value:     p.Value(),
		Deviation: reference,
	})

	return reference, nil
}

// Decide picks the probe outcome.
//
// The first branch is the only one that looks at reference: when both probes
// are worse than it and the increase is worse still, nothing changes.
// Otherwise the lower of dec and inc wins, ties going to the increase, even
// when the winner is worse than reference.
func Decide(reference, dec, inc float64) Decision {
	switch {
	case dec > reference && inc > dec:
		return DecisionKeep
	case dec < inc:
		return DecisionDecrease
	default:
		return DecisionIncrease
	}
}

// pass evaluates every sample, computes the deviation and rescales the global
// scale. The final pass runs sequentially; all others use the worker pool.
func (e *Engine) pass(ctx context.Context, kind PassKind) (float64, error) {
	start := time.Now()
	ec := EvalContext{
		Coefficients: e.params.Snapshot(),
		Scale:        e.scale.value(),
	}

	var err error
	if kind == PassFinal {
		err = e.evaluateSequential(ctx, kind, ec)
	} else {
		err = e.evaluateParallel(ctx, kind, ec)
	}
	if err != nil {
		return 0, err
	}

	deviation, err := dataset.DifferenceDeviation(e.data.Samples)
	if err != nil {
		return 0, fmt.Errorf("%s pass: %w", kind, err)
	}
	ratio, err := e.scale.rescale(e.data.Samples)
	if err != nil {
		return 0, fmt.Errorf("%s pass: %w", kind, err)
	}

	ev := PassEvent{
		Kind:      kind,
		Duration:  time.Since(start),
		Deviation: deviation,
		Ratio:     ratio,
		Scale:     e.scale.value(),
	}
	e.cfg.logger.Debug("pass",
		"kind", kind.String(),
		"duration", ev.Duration,
		"deviation", deviation,
		slog.Float64("ratio", ratio),
		slog.Float64("scale", ev.Scale),
	)
	e.cfg.observer.ObservePass(ev)

	return deviation, nil
}
