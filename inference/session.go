// Package inference provides ONNX Runtime integration for scoring models.
//
// A scoring model takes two inputs, an int64 feature row describing the play
// and a float32 row of coefficients, and produces a single float32 score.
package inference

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortEnvOnce sync.Once
	ortEnvErr  error
)

// initORT initializes ONNX Runtime environment once.
func initORT() error {
	ortEnvOnce.Do(func() {
		ortEnvErr = ort.InitializeEnvironment()
	})
	return ortEnvErr
}

// Names are the tensor names a scoring model exposes.
type Names struct {
	Features     string
	Coefficients string
	Score        string
}

// DefaultNames returns the tensor names used by exported scoring models.
func DefaultNames() Names {
	return Names{
		Features:     "features",
		Coefficients: "coefficients",
		Score:        "score",
	}
}

// Session wraps an ONNX Runtime session for one scoring model.
type Session struct {
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex
	closed  bool
}

// NewSession creates a new ONNX session from a model file.
func NewSession(modelPath string, names Names) (*Session, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if err := initORT(); err != nil {
		return nil, fmt.Errorf("initializing ONNX runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}
	defer func() { _ = options.Destroy() }() // Cleanup error doesn't affect success

	// One evaluation per session at a time; parallelism comes from the pool.
	if err := options.SetIntraOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("setting intra-op threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{names.Features, names.Coefficients},
		[]string{names.Score},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &Session{session: session}, nil
}

// Score runs the model on one feature row and coefficient row.
func (s *Session) Score(ctx context.Context, features []int64, coefficients []float32) (float32, error) {
	// Check context before expensive operation
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("session is closed")
	}

	featureTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(features))), features)
	if err != nil {
		return 0, fmt.Errorf("creating features tensor: %w", err)
	}
	defer func() { _ = featureTensor.Destroy() }()

	coefTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(coefficients))), coefficients)
	if err != nil {
		return 0, fmt.Errorf("creating coefficients tensor: %w", err)
	}
	defer func() { _ = coefTensor.Destroy() }()

	// nil output is allocated by Run
	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{featureTensor, coefTensor}, outputs); err != nil {
		return 0, fmt.Errorf("running inference: %w", err)
	}
	if outputs[0] == nil {
		return 0, fmt.Errorf("no output produced")
	}
	defer func() { _ = outputs[0].Destroy() }()

	scoreTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return 0, fmt.Errorf("unexpected output tensor type")
	}
	data := scoreTensor.GetData()
	if len(data) == 0 {
		return 0, fmt.Errorf("empty score tensor")
	}

	return data[0], nil
}

// Close releases ONNX resources.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}
