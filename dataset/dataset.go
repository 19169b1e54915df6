// Package dataset loads labelled samples and reduces them to deviation statistics.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

// fieldCount is the number of comma-separated fields on every line.
const fieldCount = 8

// ErrMalformedLine indicates a dataset line that cannot be turned into a Sample.
var ErrMalformedLine = errors.New("dataset: malformed line")

// ParseError reports the line and field that failed to parse.
type ParseError struct {
	Line  int    // 1-based line number
	Field string // field name, empty when the line shape is wrong
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: field %s: %v", e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Input is the descriptor handed to the scoring backend for one sample.
type Input struct {
	MapID     int
	CountOk   int
	CountMeh  int
	CountMiss int
	Combo     int    // 0 selects the maximum combo of the map
	Mods      string // backend-specific modifier syntax
}

// Sample is one labelled play.
type Sample struct {
	Line     int
	Name     string
	Target   float64
	Computed float64 // rewritten on every evaluation pass
	Input    Input
}

// Difference returns Computed - Target.
func (s Sample) Difference() float64 {
	return s.Computed - s.Target
}

// Ratio returns Computed / Target.
func (s Sample) Ratio() float64 {
	return s.Computed / s.Target
}

// Dataset is an ordered sequence of samples in file order.
type Dataset struct {
	Samples []Sample
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Samples)
}

// LongestName returns the widest sample name in runes.
func (d *Dataset) LongestName() int {
	if len(d.Samples) == 0 {
		return 0
	}
	return utf8.RuneCountInString(lo.MaxBy(d.Samples, func(a, b Sample) bool {
		return utf8.RuneCountInString(a.Name) > utf8.RuneCountInString(b.Name)
	}).Name)
}

// ParseLine parses one record:
//
//	id,countOk,countMeh,countMiss,target,combo,name,mods
//
// No quoting is supported; a field must not contain a comma.
func ParseLine(line string) (Sample, error) {
	fields := strings.Split(strings.TrimRight(line, "\r"), ",")
	if len(fields) != fieldCount {
		return Sample{}, &ParseError{
			Err: fmt.Errorf("%w: got %d fields, want %d", ErrMalformedLine, len(fields), fieldCount),
		}
	}

	var (
		s    Sample
		err  error
		ints = []struct {
			name string
			dst  *int
			raw  string
		}{
			{"id", &s.Input.MapID, fields[0]},
			{"count_ok", &s.Input.CountOk, fields[1]},
			{"count_meh", &s.Input.CountMeh, fields[2]},
			{"count_miss", &s.Input.CountMiss, fields[3]},
			{"combo", &s.Input.Combo, fields[5]},
		}
	)

	for _, f := range ints {
		*f.dst, err = strconv.Atoi(strings.TrimSpace(f.raw))
		if err != nil {
			return Sample{}, &ParseError{Field: f.name, Err: fmt.Errorf("%w: %w", ErrMalformedLine, err)}
		}
		if f.name != "id" && *f.dst < 0 {
			return Sample{}, &ParseError{Field: f.name, Err: fmt.Errorf("%w: negative value %d", ErrMalformedLine, *f.dst)}
		}
	}

	s.Target, err = strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
	if err != nil {
		return Sample{}, &ParseError{Field: "target", Err: fmt.Errorf("%w: %w", ErrMalformedLine, err)}
	}
	if !finite(s.Target) {
		return Sample{}, &ParseError{Field: "target", Err: fmt.Errorf("%w: non-finite target", ErrMalformedLine)}
	}

	s.Name = fields[6]
	s.Input.Mods = fields[7]
	return s, nil
}

// Parse reads every line of r. Any malformed line aborts the whole parse.
func Parse(r io.Reader) (*Dataset, error) {
	d := &Dataset{}
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		s, err := ParseLine(scanner.Text())
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Line = lineNo
			}
			return nil, err
		}
		s.Line = lineNo
		d.Samples = append(d.Samples, s)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan dataset: %w", err)
	}

	return d, nil
}

// Load reads a dataset file.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }() // Read-only; close error carries no data loss

	d, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return d, nil
}
