// Package report formats calibration progress and results.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	massbalance "github.com/jamesainslie/go-massbalance"
	"github.com/jamesainslie/go-massbalance/params"
)

// Console writes the plain-text progress report.
type Console struct {
	w io.Writer
}

var _ massbalance.Reporter = (*Console)(nil)

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// ReportEpoch writes the reference deviation followed by every coefficient.
func (c *Console) ReportEpoch(r massbalance.EpochReport) error {
	bw := bufio.NewWriter(c.w)
	fmt.Fprintf(bw, "Deviation at %d: %s\n", r.Epoch, formatFloat(r.Deviation))
	writeCoefficients(bw, r.Coefficients)
	return bw.Flush()
}

// ReportFinal writes one line per sample in dataset order, names right-aligned
// to the longest one, followed by every coefficient.
func (c *Console) ReportFinal(res *massbalance.Result) error {
	width := 0
	for _, s := range res.Samples {
		width = max(width, utf8.RuneCountInString(s.Name))
	}

	bw := bufio.NewWriter(c.w)
	for _, s := range res.Samples {
		fmt.Fprintf(bw, "%s: PP - %.2f. Target - %.2f. Diff - %.2f\n",
			padLeft(s.Name, width), s.Computed, s.Target, s.Difference())
	}
	writeCoefficients(bw, res.Coefficients)
	return bw.Flush()
}

func writeCoefficients(w io.Writer, values []params.Value) {
	for _, v := range values {
		fmt.Fprintf(w, "%s: %s\n", v.Name, formatFloat(v.Value))
	}
	fmt.Fprintln(w)
}

func padLeft(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return strings.Repeat(" ", width-n) + s
	}
	return s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
