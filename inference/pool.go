package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("inference: pool closed")

// Pool manages a fixed set of ONNX sessions so concurrent evaluations never
// wait on each other's session lock.
type Pool struct {
	sessions  chan *Session
	modelPath string
	size      int
	mu        sync.Mutex
	closed    bool
}

// NewPool creates a pool of size sessions over one model.
func NewPool(modelPath string, size int, names Names) (*Pool, error) {
	if size <= 0 {
		size = 1
	}

	pool := &Pool{
		sessions:  make(chan *Session, size),
		modelPath: modelPath,
		size:      size,
	}

	for i := 0; i < size; i++ {
		session, err := NewSession(modelPath, names)
		if err != nil {
			_ = pool.Close() // Best-effort cleanup; original error takes precedence
			return nil, fmt.Errorf("creating session %d: %w", i, err)
		}
		pool.sessions <- session
	}

	return pool, nil
}

// Acquire gets a session from the pool, blocking if none available.
// Respects context cancellation. Returns ErrPoolClosed if the pool is closed.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	select {
	case session, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		return session, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a session to the pool.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = s.Close() // Pool closed; clean up session
		return
	}

	select {
	case p.sessions <- s:
	default:
		_ = s.Close() // Pool full; clean up excess session
	}
}

// Score acquires a session, scores one row and releases the session.
func (p *Pool) Score(ctx context.Context, features []int64, coefficients []float32) (float32, error) {
	s, err := p.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer p.Release(s)

	return s.Score(ctx, features, coefficients)
}

// Close closes all idle sessions. Sessions still out are closed on Release.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sessions)
	p.mu.Unlock()

	var errs []error
	for session := range p.sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Size returns the pool size.
func (p *Pool) Size() int {
	return p.size
}

// ModelPath returns the model the sessions were created from.
func (p *Pool) ModelPath() string {
	return p.modelPath
}
