package massbalance

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// evaluateParallel runs one Evaluate per sample on a bounded pool. Every
// worker writes only its own sample; failures are captured per sample and
// surfaced after the join, in dataset order.
func (e *Engine) evaluateParallel(ctx context.Context, kind PassKind, ec EvalContext) error {
	samples := e.data.Samples
	failures := make([]*SampleError, len(samples))

	var g errgroup.Group
	g.SetLimit(e.cfg.poolSize)

	for i := range samples {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			v, err := e.eval.Evaluate(ctx, samples[i].Input, ec)
			if err != nil {
				failures[i] = e.sampleError(i, err)
				return nil
			}
			samples[i].Computed = v
			return nil
		})
	}

	_ = g.Wait() // workers report through failures, never through the group

	if err := ctx.Err(); err != nil {
		return err
	}
	return collect(kind, failures)
}

// evaluateSequential runs the pass in dataset order on the calling goroutine.
func (e *Engine) evaluateSequential(ctx context.Context, kind PassKind, ec EvalContext) error {
	samples := e.data.Samples
	failures := make([]*SampleError, len(samples))

	for i := range samples {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := e.eval.Evaluate(ctx, samples[i].Input, ec)
		if err != nil {
			failures[i] = e.sampleError(i, err)
			continue
		}
		samples[i].Computed = v
	}

	return collect(kind, failures)
}

func (e *Engine) sampleError(i int, err error) *SampleError {
	s := e.data.Samples[i]
	return &SampleError{Index: i, Line: s.Line, Name: s.Name, Err: err}
}

func collect(kind PassKind, failures []*SampleError) error {
	var failed []*SampleError
	for _, f := range failures {
		if f != nil {
			failed = append(failed, f)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &PassError{Kind: kind, Failures: failed}
}
