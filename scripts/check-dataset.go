//go:build ignore

// Check a calibration dataset before a long run.
// Reports every malformed line and unknown modifier instead of stopping at the first,
// then prints per-modifier sample counts.
// Usage: go run ./scripts/check-dataset.go [scores.csv]
package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jamesainslie/go-massbalance/dataset"
	"github.com/jamesainslie/go-massbalance/mods"
)

func main() {
	path := "scores.csv"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	file, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", path, err)
		os.Exit(1)
	}
	defer file.Close()

	var (
		lineNo   int
		samples  int
		problems int
		zeroes   int
		byMods   = map[string]int{}
	)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			fmt.Printf("line %d: blank line\n", lineNo)
			problems++
			continue
		}

		s, err := dataset.ParseLine(line)
		if err != nil {
			fmt.Printf("line %d: %v\n", lineNo, err)
			problems++
			continue
		}

		m, err := mods.Parse(s.Input.Mods)
		if err != nil {
			fmt.Printf("line %d (%s): %v\n", lineNo, s.Name, err)
			problems++
			continue
		}

		if s.Target == 0 {
			zeroes++
		}
		byMods[m.String()]++
		samples++
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning %s: %v\n", path, err)
		os.Exit(1)
	}

	fmt.Printf("\n%s: %d lines, %d usable samples, %d problems\n", path, lineNo, samples, problems)
	if zeroes > 0 {
		// Ratio statistics are skipped for the whole run when any target is zero.
		fmt.Printf("%d samples have a zero target\n", zeroes)
	}

	keys := make([]string, 0, len(byMods))
	for k := range byMods {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-12s %d\n", k, byMods[k])
	}

	if problems > 0 {
		os.Exit(1)
	}
}
