package massbalance

import (
	"context"
	"time"

	"github.com/jamesainslie/go-massbalance/dataset"
	"github.com/jamesainslie/go-massbalance/params"
)

// EvalContext is the state an Evaluator may read during one pass.
// It is built between passes and never mutated while a pass is in flight.
type EvalContext struct {
	Coefficients []params.Value // calibration order
	Scale        float64
}

// Coefficient returns the named coefficient value.
func (c EvalContext) Coefficient(name string) (float64, bool) {
	for _, v := range c.Coefficients {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}

// Evaluator computes the score of one sample.
// Implementations must be safe for concurrent use and deterministic in their
// inputs; Evaluate is called once per sample per pass.
type Evaluator interface {
	Evaluate(ctx context.Context, in dataset.Input, ec EvalContext) (float64, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, in dataset.Input, ec EvalContext) (float64, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, in dataset.Input, ec EvalContext) (float64, error) {
	return f(ctx, in, ec)
}

// PassKind identifies why a pass ran.
type PassKind int

const (
	PassInitial PassKind = iota
	PassDecrease
	PassIncrease
	PassFinal
)

func (k PassKind) String() string {
	switch k {
	case PassInitial:
		return "initial"
	case PassDecrease:
		return "decrease"
	case PassIncrease:
		return "increase"
	case PassFinal:
		return "final"
	default:
		return "unknown"
	}
}

// Decision is the outcome of probing one coefficient.
type Decision int

const (
	// DecisionKeep leaves the coefficient at its pre-probe value.
	DecisionKeep Decision = iota
	// DecisionDecrease commits value / step.
	DecisionDecrease
	// DecisionIncrease commits value * step.
	DecisionIncrease
)

func (d Decision) String() string {
	switch d {
	case DecisionKeep:
		return "keep"
	case DecisionDecrease:
		return "decrease"
	case DecisionIncrease:
		return "increase"
	default:
		return "unknown"
	}
}

// PassEvent describes a completed evaluation pass.
type PassEvent struct {
	Kind      PassKind
	Duration  time.Duration
	Deviation float64
	Ratio     float64 // factor applied to the global scale
	Scale     float64 // global scale after rescaling
}

// DecisionEvent describes the outcome of probing one coefficient.
type DecisionEvent struct {
	Epoch     int
	Parameter string
	Decision  Decision
	Value     float64 // coefficient value after the decision
	Deviation float64 // reference deviation after the decision
}

// Observer receives engine events. Calls happen between passes on the
// goroutine running the engine.
type Observer interface {
	ObservePass(PassEvent)
	ObserveDecision(DecisionEvent)
}

// EpochReport is the engine state after one sweep over every coefficient.
type EpochReport struct {
	Epoch        int
	Deviation    float64
	Scale        float64
	Coefficients []params.Value
}

// Result is the state reported after the final pass.
type Result struct {
	Epochs       int
	Deviation    float64 // reference deviation after the last epoch
	Scale        float64 // global scale used by the final pass
	Coefficients []params.Value
	Samples      []dataset.Sample // final pass values, dataset order
	Summary      dataset.Summary  // statistics of the final pass
}

// Reporter formats engine state. It must not feed anything back into the engine.
type Reporter interface {
	ReportEpoch(EpochReport) error
	ReportFinal(*Result) error
}

type nopReporter struct{}

func (nopReporter) ReportEpoch(EpochReport) error { return nil }
func (nopReporter) ReportFinal(*Result) error     { return nil }

type nopObserver struct{}

func (nopObserver) ObservePass(PassEvent)         {}
func (nopObserver) ObserveDecision(DecisionEvent) {}
