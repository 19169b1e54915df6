// Package params holds the tunable coefficients of a calibration run.
//
// A coefficient is never referenced directly. Its storage belongs to whatever
// scoring backend consumes it, so each Parameter is a named handle over a pair
// of read/write capabilities bound once at construction.
package params

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNonPositive indicates an attempt to store a value <= 0 or a non-finite value.
	ErrNonPositive = errors.New("params: value must be positive and finite")

	// ErrDuplicateName indicates two parameters registered under one name.
	ErrDuplicateName = errors.New("params: duplicate parameter name")

	// ErrInvalidHandle indicates a parameter built without a name or accessor.
	ErrInvalidHandle = errors.New("params: invalid parameter handle")
)

// Parameter is a named coefficient reachable through bound accessors.
type Parameter struct {
	name string
	get  func() float64
	set  func(float64)
}

// New binds a parameter to the given accessors.
// The current value must already be positive.
func New(name string, get func() float64, set func(float64)) (*Parameter, error) {
	if name == "" || get == nil || set == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHandle, name)
	}
	if !valid(get()) {
		return nil, fmt.Errorf("%w: %s = %v", ErrNonPositive, name, get())
	}
	return &Parameter{name: name, get: get, set: set}, nil
}

// Bind is shorthand for a parameter stored in a plain variable.
func Bind(name string, v *float64) (*Parameter, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHandle, name)
	}
	return New(name,
		func() float64 { return *v },
		func(x float64) { *v = x },
	)
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Value reads the current value through the bound getter.
func (p *Parameter) Value() float64 {
	return p.get()
}

// Set writes v through the bound setter.
func (p *Parameter) Set(v float64) error {
	if !valid(v) {
		return fmt.Errorf("%w: %s = %v", ErrNonPositive, p.name, v)
	}
	p.set(v)
	return nil
}

// Mul multiplies the current value by f.
func (p *Parameter) Mul(f float64) error {
	return p.Set(p.get() * f)
}

// Div divides the current value by f.
func (p *Parameter) Div(f float64) error {
	return p.Set(p.get() / f)
}

func valid(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Value is a point-in-time copy of one parameter.
type Value struct {
	Name  string
	Value float64
}

// Set is an ordered collection of parameters.
// Iteration follows insertion order.
type Set struct {
	params []*Parameter
	index  map[string]int
}

// NewSet builds a set from ps in the order given.
func NewSet(ps ...*Parameter) (*Set, error) {
	s := &Set{index: make(map[string]int, len(ps))}
	for _, p := range ps {
		if err := s.Add(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends p to the end of the set.
func (s *Set) Add(p *Parameter) error {
	if p == nil {
		return ErrInvalidHandle
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[p.name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, p.name)
	}
	s.index[p.name] = len(s.params)
	s.params = append(s.params, p)
	return nil
}

// Len returns the number of parameters.
func (s *Set) Len() int {
	return len(s.params)
}

// At returns the i-th parameter in calibration order.
func (s *Set) At(i int) *Parameter {
	return s.params[i]
}

// Lookup finds a parameter by name.
func (s *Set) Lookup(name string) (*Parameter, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.params[i], true
}

// Snapshot copies the current values in calibration order.
func (s *Set) Snapshot() []Value {
	out := make([]Value, len(s.params))
	for i, p := range s.params {
		out[i] = Value{Name: p.name, Value: p.get()}
	}
	return out
}

// String renders one "name: value" line per parameter.
func (s *Set) String() string {
	var b strings.Builder
	for _, p := range s.params {
		b.WriteString(p.name)
		b.WriteString(": ")
		b.WriteString(strconv.FormatFloat(p.get(), 'g', -1, 64))
		b.WriteByte('\n')
	}
	return b.String()
}
