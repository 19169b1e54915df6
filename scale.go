package massbalance

import (
	"fmt"

	"github.com/jamesainslie/go-massbalance/dataset"
)

// globalScale compounds across the whole run: every pass multiplies it by
// mean(target) / mean(computed) and nothing ever resets it. A probe pass
// therefore leaves its mark on every later pass.
type globalScale struct {
	v float64
}

func newGlobalScale() globalScale {
	return globalScale{v: 1}
}

func (s *globalScale) value() float64 {
	return s.v
}

// rescale applies the ratio of the current pass and returns it.
func (s *globalScale) rescale(samples []dataset.Sample) (float64, error) {
	r, err := dataset.ScaleRatio(samples)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDegenerateScale, err)
	}
	s.v *= r
	return r, nil
}
