// Package dump reads memory and register dumps and compares them the way the
// toolkit's mem-compare does: comments and whitespace do not count.
package dump

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/roach88/turtlecheck/internal/stage"
	"github.com/roach88/turtlecheck/internal/toolchain"
)

var commentMarkers = []string{"//", "#", ";"}

// Entry is one significant line of a dump.
type Entry struct {
	Line  int    // 1-based line number in the file
	Value string // content with comments removed and whitespace collapsed
}

// Parse reads the significant entries of a dump.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		for _, marker := range commentMarkers {
			if i := strings.Index(text, marker); i >= 0 {
				text = text[:i]
			}
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		entries = append(entries, Entry{Line: line, Value: strings.Join(fields, " ")})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}
	return entries, nil
}

// ParseFile is Parse on a file.
func ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Mismatch is one differing entry. A zero line means the entry is missing
// on that side.
type Mismatch struct {
	Index        int
	ExpectedLine int
	ActualLine   int
	Expected     string
	Actual       string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("entry %d: expected %s, got %s",
		m.Index, side(m.Expected, m.ExpectedLine), side(m.Actual, m.ActualLine))
}

func side(value string, line int) string {
	if line == 0 {
		return "<missing>"
	}
	return fmt.Sprintf("%q (line %d)", value, line)
}

// Diff is the result of comparing two dumps.
type Diff struct {
	Mismatches []Mismatch
}

// Equal reports whether the dumps matched.
func (d Diff) Equal() bool {
	return len(d.Mismatches) == 0
}

// Describe renders the first mismatch, or all of them when all is set.
func (d Diff) Describe(all bool) string {
	if d.Equal() {
		return "dumps match"
	}
	if !all {
		return fmt.Sprintf("%s (%d mismatches)", d.Mismatches[0], len(d.Mismatches))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d mismatches\n", len(d.Mismatches))
	for _, m := range d.Mismatches {
		fmt.Fprintf(&b, "  %s\n", m)
	}
	return b.String()
}

// Compare compares entries position by position.
func Compare(expected, actual []Entry) Diff {
	var diff Diff
	n := max(len(expected), len(actual))
	for i := 0; i < n; i++ {
		var e, a Entry
		if i < len(expected) {
			e = expected[i]
		}
		if i < len(actual) {
			a = actual[i]
		}
		if e.Line != 0 && a.Line != 0 && e.Value == a.Value {
			continue
		}
		diff.Mismatches = append(diff.Mismatches, Mismatch{
			Index:        i,
			ExpectedLine: e.Line,
			ActualLine:   a.Line,
			Expected:     e.Value,
			Actual:       a.Value,
		})
	}
	return diff
}

// CompareFiles parses and compares two dump files.
func CompareFiles(expected, actual string) (Diff, error) {
	e, err := ParseFile(expected)
	if err != nil {
		return Diff{}, err
	}
	a, err := ParseFile(actual)
	if err != nil {
		return Diff{}, err
	}
	return Compare(e, a), nil
}

// Comparator is the in-process toolchain.Comparator.
type Comparator struct {
	Verbose bool // list every mismatch rather than the first
}

var _ toolchain.Comparator = Comparator{}

// Compare implements toolchain.Comparator.
func (c Comparator) Compare(ctx context.Context, expected, actual string) (toolchain.CompareResult, error) {
	diff, err := CompareFiles(expected, actual)
	if err != nil {
		return toolchain.CompareResult{}, err
	}
	return toolchain.CompareResult{
		Equal:  diff.Equal(),
		Output: stage.Output{Stdout: diff.Describe(c.Verbose)},
	}, nil
}
