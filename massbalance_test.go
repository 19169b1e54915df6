package massbalance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/jamesainslie/go-massbalance/dataset"
	"github.com/jamesainslie/go-massbalance/mods"
	"github.com/jamesainslie/go-massbalance/params"
)

const step = 1.05

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// twoSamples has targets 10 and 12 and weights 1 and 2, so with
// computed = p * weight the deviation is |p - 2| / 2.
func twoSamples() *dataset.Dataset {
	return &dataset.Dataset{Samples: []dataset.Sample{
		{Line: 1, Name: "a", Target: 10, Input: dataset.Input{MapID: 1}},
		{Line: 2, Name: "b", Target: 12, Input: dataset.Input{MapID: 2}},
	}}
}

// weighted ignores the global scale.
var weighted = EvaluatorFunc(func(_ context.Context, in dataset.Input, ec EvalContext) (float64, error) {
	p, _ := ec.Coefficient("p")
	return p * float64(in.MapID), nil
})

func singleParam(t *testing.T, v *float64) *params.Set {
	t.Helper()
	p, err := params.Bind("p", v)
	if err != nil {
		t.Fatal(err)
	}
	set, err := params.NewSet(p)
	if err != nil {
		t.Fatal(err)
	}
	return set
}

type recorder struct {
	passes    []PassEvent
	decisions []DecisionEvent
	epochs    []EpochReport
	final     *Result
}

func (r *recorder) ObservePass(ev PassEvent)         { r.passes = append(r.passes, ev) }
func (r *recorder) ObserveDecision(ev DecisionEvent) { r.decisions = append(r.decisions, ev) }

func (r *recorder) ReportEpoch(er EpochReport) error {
	r.epochs = append(r.epochs, er)
	return nil
}

func (r *recorder) ReportFinal(res *Result) error {
	r.final = res
	return nil
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name                string
		reference, dec, inc float64
		want                Decision
	}{
		{"both worse, increase worst", 1, 2, 3, DecisionKeep},
		{"decrease better", 5, 3, 4, DecisionDecrease},
		{"increase better", 5, 4, 3, DecisionIncrease},
		{"tie goes to increase", 5, 4, 4, DecisionIncrease},
		{"all equal commits increase", 0, 0, 0, DecisionIncrease},
		// Both probes worse than reference but the decrease is the worse one:
		// the increase is committed anyway.
		{"worse increase committed", 1, 3, 2, DecisionIncrease},
		// Decrease worse than reference, increase better than decrease but
		// tied with it: not caught by the keep branch.
		{"decrease worse, tie", 1, 2, 2, DecisionIncrease},
		// Decrease not worse than reference, increase even worse: decrease wins
		// without reference being consulted.
		{"decrease equal to reference", 1, 1, 2, DecisionDecrease},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.reference, tt.dec, tt.inc); got != tt.want {
				t.Errorf("Decide(%v, %v, %v) = %v, want %v", tt.reference, tt.dec, tt.inc, got, tt.want)
			}
		})
	}
}

func TestRun_SingleParameterBranches(t *testing.T) {
	tests := []struct {
		name          string
		initial       float64
		wantValue     float64
		wantDecision  Decision
		wantDeviation float64
	}{
		{
			name:          "decrease committed",
			initial:       20,
			wantValue:     20 / step,
			wantDecision:  DecisionDecrease,
			wantDeviation: math.Abs(20/step-2) / 2,
		},
		{
			name:          "kept at optimum",
			initial:       2,
			wantValue:     2,
			wantDecision:  DecisionKeep,
			wantDeviation: 0,
		},
		{
			name:          "increase committed",
			initial:       1,
			wantValue:     1 * step,
			wantDecision:  DecisionIncrease,
			wantDeviation: math.Abs(1*step-2) / 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.initial
			rec := &recorder{}
			eng, err := New(singleParam(t, &v), twoSamples(), weighted,
				WithEpochs(1),
				WithStepMultiplier(step),
				WithLogger(quietLogger()),
				WithReporter(rec),
				WithObserver(rec),
			)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			res, err := eng.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if !near(v, tt.wantValue) {
				t.Errorf("value = %v, want %v", v, tt.wantValue)
			}
			if len(rec.decisions) != 1 || rec.decisions[0].Decision != tt.wantDecision {
				t.Fatalf("decisions = %+v, want one %v", rec.decisions, tt.wantDecision)
			}
			if !near(res.Deviation, tt.wantDeviation) {
				t.Errorf("Deviation = %v, want %v", res.Deviation, tt.wantDeviation)
			}
			if len(rec.epochs) != 1 || !near(rec.epochs[0].Deviation, tt.wantDeviation) {
				t.Errorf("epoch reports = %+v", rec.epochs)
			}
		})
	}
}

func TestRun_IdenticalSamplesDriftUpward(t *testing.T) {
	// Every sample has target 10 and receives the coefficient itself, so the
	// deviation is 0 on every pass. Each probe ties and the increase is
	// committed, although it is no better than keeping the value.
	data := &dataset.Dataset{Samples: []dataset.Sample{
		{Name: "a", Target: 10},
		{Name: "b", Target: 10},
	}}
	identity := EvaluatorFunc(func(_ context.Context, _ dataset.Input, ec EvalContext) (float64, error) {
		p, _ := ec.Coefficient("p")
		return p, nil
	})

	v := 20.0
	rec := &recorder{}
	eng, err := New(singleParam(t, &v), data, identity,
		WithEpochs(3), WithLogger(quietLogger()), WithObserver(rec))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !near(v, 20*step*step*step) {
		t.Errorf("value = %v, want %v", v, 20*step*step*step)
	}
	if res.Deviation != 0 {
		t.Errorf("Deviation = %v, want 0", res.Deviation)
	}
	for _, d := range rec.decisions {
		if d.Decision != DecisionIncrease {
			t.Errorf("epoch %d decision = %v, want increase", d.Epoch, d.Decision)
		}
	}
}

func TestRun_ScaleUnchangedWhenAligned(t *testing.T) {
	// The evaluator reproduces each target exactly, so every ratio is 1.
	data := &dataset.Dataset{Samples: []dataset.Sample{
		{Name: "a", Target: 100, Input: dataset.Input{CountOk: 100}},
		{Name: "b", Target: 250, Input: dataset.Input{CountOk: 250}},
		{Name: "c", Target: 75, Input: dataset.Input{CountOk: 75}},
	}}
	exact := EvaluatorFunc(func(_ context.Context, in dataset.Input, _ EvalContext) (float64, error) {
		return float64(in.CountOk), nil
	})

	a, b := 1.0, 3.0
	pa, _ := params.Bind("a", &a)
	pb, _ := params.Bind("b", &b)
	set, _ := params.NewSet(pa, pb)

	eng, err := New(set, data, exact, WithEpochs(2), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if eng.Scale() != 1 {
		t.Errorf("Scale() = %v, want 1", eng.Scale())
	}
	if !near(a, step*step) || !near(b, 3*step*step) {
		t.Errorf("values = %v, %v; want %v, %v", a, b, step*step, 3*step*step)
	}
}

func TestRun_ScaleCompounds(t *testing.T) {
	v := 7.0
	scaled := EvaluatorFunc(func(_ context.Context, in dataset.Input, ec EvalContext) (float64, error) {
		p, _ := ec.Coefficient("p")
		return ec.Scale * (p*float64(in.MapID) + 1), nil
	})

	rec := &recorder{}
	eng, err := New(singleParam(t, &v), twoSamples(), scaled,
		WithEpochs(2), WithLogger(quietLogger()), WithObserver(rec))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// initial + 2 epochs * (decrease + increase) + final
	if got, want := len(rec.passes), 1+2*2+1; got != want {
		t.Fatalf("passes = %d, want %d", got, want)
	}

	product := 1.0
	for i, ev := range rec.passes {
		product *= ev.Ratio
		if !near(ev.Scale, product) {
			t.Errorf("pass %d (%s): scale = %v, want product of ratios %v", i, ev.Kind, ev.Scale, product)
		}
	}
	if !near(eng.Scale(), product) {
		t.Errorf("Scale() = %v, want %v", eng.Scale(), product)
	}

	wantKinds := []PassKind{PassInitial, PassDecrease, PassIncrease, PassDecrease, PassIncrease, PassFinal}
	for i, k := range wantKinds {
		if rec.passes[i].Kind != k {
			t.Errorf("pass %d kind = %v, want %v", i, rec.passes[i].Kind, k)
		}
	}
}

func TestRun_FinalReportOrder(t *testing.T) {
	v := 3.0
	data := &dataset.Dataset{Samples: []dataset.Sample{
		{Line: 1, Name: "z", Target: 30, Input: dataset.Input{MapID: 3}},
		{Line: 2, Name: "a", Target: 10, Input: dataset.Input{MapID: 1}},
		{Line: 3, Name: "m", Target: 20, Input: dataset.Input{MapID: 2}},
	}}

	rec := &recorder{}
	eng, err := New(singleParam(t, &v), data, weighted,
		WithEpochs(2), WithLogger(quietLogger()), WithReporter(rec))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	res, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if rec.final != res {
		t.Error("reporter did not receive the returned result")
	}
	if len(rec.epochs) != 2 {
		t.Errorf("epoch reports = %d, want 2", len(rec.epochs))
	}
	for i, want := range []string{"z", "a", "m"} {
		if res.Samples[i].Name != want {
			t.Errorf("Samples[%d] = %s, want %s", i, res.Samples[i].Name, want)
		}
		if res.Samples[i].Computed != v*float64(res.Samples[i].Input.MapID) {
			t.Errorf("Samples[%d].Computed = %v, want %v", i, res.Samples[i].Computed, v*float64(res.Samples[i].Input.MapID))
		}
	}
	if len(res.Coefficients) != 1 || res.Coefficients[0].Value != v {
		t.Errorf("Coefficients = %+v, want p = %v", res.Coefficients, v)
	}
}

func TestRun_InvalidModifierAbortsPass(t *testing.T) {
	data := &dataset.Dataset{Samples: []dataset.Sample{
		{Line: 1, Name: "ok", Target: 10, Input: dataset.Input{MapID: 1, Mods: "HD"}},
		{Line: 2, Name: "bad1", Target: 10, Input: dataset.Input{MapID: 1, Mods: "QQ"}},
		{Line: 3, Name: "ok", Target: 10, Input: dataset.Input{MapID: 1, Mods: "DT"}},
		{Line: 4, Name: "bad2", Target: 10, Input: dataset.Input{MapID: 1, Mods: "HDZZ"}},
	}}
	strict := EvaluatorFunc(func(_ context.Context, in dataset.Input, ec EvalContext) (float64, error) {
		if _, err := mods.Parse(in.Mods); err != nil {
			return 0, err
		}
		p, _ := ec.Coefficient("p")
		return p, nil
	})

	v := 1.0
	rec := &recorder{}
	eng, err := New(singleParam(t, &v), data, strict,
		WithLogger(quietLogger()), WithReporter(rec), WithPoolSize(4))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = eng.Run(context.Background())
	if !errors.Is(err, mods.ErrInvalidModifier) {
		t.Fatalf("Run() error = %v, want ErrInvalidModifier", err)
	}

	var pe *PassError
	if !errors.As(err, &pe) {
		t.Fatalf("error %T is not *PassError", err)
	}
	if pe.Kind != PassInitial {
		t.Errorf("Kind = %v, want %v", pe.Kind, PassInitial)
	}
	if len(pe.Failures) != 2 || pe.Failures[0].Line != 2 || pe.Failures[1].Line != 4 {
		t.Errorf("Failures = %v, want lines 2 and 4", pe.Failures)
	}
	if len(rec.epochs) != 0 || rec.final != nil {
		t.Error("reporter called after a failed pass")
	}
}

func TestRun_DegenerateScale(t *testing.T) {
	zero := EvaluatorFunc(func(context.Context, dataset.Input, EvalContext) (float64, error) {
		return 0, nil
	})
	v := 1.0
	eng, err := New(singleParam(t, &v), twoSamples(), zero, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := eng.Run(context.Background()); !errors.Is(err, ErrDegenerateScale) {
		t.Errorf("Run() error = %v, want ErrDegenerateScale", err)
	}
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := 1.0
	eng, err := New(singleParam(t, &v), twoSamples(), weighted, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := eng.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestNew_Validation(t *testing.T) {
	v := 1.0
	set := singleParam(t, &v)
	empty, _ := params.NewSet()

	tests := []struct {
		name    string
		set     *params.Set
		data    *dataset.Dataset
		opts    []Option
		wantErr error
	}{
		{"step of one", set, twoSamples(), []Option{WithStepMultiplier(1)}, ErrInvalidStep},
		{"step below one", set, twoSamples(), []Option{WithStepMultiplier(0.9)}, ErrInvalidStep},
		{"no parameters", empty, twoSamples(), nil, ErrNoParameters},
		{"nil parameters", nil, twoSamples(), nil, ErrNoParameters},
		{"empty dataset", set, &dataset.Dataset{}, nil, ErrEmptyDataset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.set, tt.data, weighted, tt.opts...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParallelSequentialEquivalence(t *testing.T) {
	data := &dataset.Dataset{}
	for i := 0; i < 64; i++ {
		data.Samples = append(data.Samples, dataset.Sample{
			Name:   "s",
			Target: float64(100 + 7*i%13),
			Input:  dataset.Input{MapID: i + 1, CountMiss: i % 5},
		})
	}
	eval := EvaluatorFunc(func(_ context.Context, in dataset.Input, ec EvalContext) (float64, error) {
		p, _ := ec.Coefficient("p")
		return ec.Scale * (p*math.Sqrt(float64(in.MapID)) - float64(in.CountMiss)), nil
	})

	v := 12.5
	eng, err := New(singleParam(t, &v), data, eval, WithPoolSize(8), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ec := EvalContext{Coefficients: eng.params.Snapshot(), Scale: 1.3}
	ctx := context.Background()

	if err := eng.evaluateParallel(ctx, PassDecrease, ec); err != nil {
		t.Fatalf("parallel pass error = %v", err)
	}
	parallel, err := dataset.Summarize(data.Samples)
	if err != nil {
		t.Fatal(err)
	}

	for i := range data.Samples {
		data.Samples[i].Computed = 0
	}

	if err := eng.evaluateSequential(ctx, PassFinal, ec); err != nil {
		t.Fatalf("sequential pass error = %v", err)
	}
	sequential, err := dataset.Summarize(data.Samples)
	if err != nil {
		t.Fatal(err)
	}

	if !near(parallel.Deviation, sequential.Deviation) || !near(parallel.MeanDifference, sequential.MeanDifference) {
		t.Errorf("parallel %+v != sequential %+v", parallel, sequential)
	}
}
