package massbalance

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrNoParameters indicates an engine built without coefficients to tune.
	ErrNoParameters = errors.New("massbalance: no parameters")

	// ErrEmptyDataset indicates an engine built over zero samples.
	ErrEmptyDataset = errors.New("massbalance: empty dataset")

	// ErrDegenerateScale indicates the global scale cannot be rescaled because
	// the mean target or mean computed value is zero or undefined.
	ErrDegenerateScale = errors.New("massbalance: degenerate global scale")

	// ErrInvalidStep indicates a step multiplier that is not greater than one.
	ErrInvalidStep = errors.New("massbalance: step multiplier must be > 1")
)

// SampleError records the evaluation failure of one sample.
type SampleError struct {
	Index int // position in the dataset
	Line  int // source line, 0 if unknown
	Name  string
	Err   error
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("sample %d (line %d, %q): %v", e.Index, e.Line, e.Name, e.Err)
}

func (e *SampleError) Unwrap() error {
	return e.Err
}

// PassError aborts an evaluation pass. Failures are listed in dataset order.
type PassError struct {
	Kind     PassKind
	Failures []*SampleError
}

func (e *PassError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s pass: %d sample(s) failed: %v", e.Kind, len(e.Failures), e.Failures[0])
	if len(e.Failures) > 1 {
		fmt.Fprintf(&b, " (and %d more)", len(e.Failures)-1)
	}
	return b.String()
}

func (e *PassError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
