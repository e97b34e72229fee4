package harness

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/roach88/turtlecheck/internal/stage"
)

const banner = "============================================================"

// Console prints human-facing test progress. A nil *Console prints nothing.
type Console struct {
	w    io.Writer
	ok   *color.Color
	fail *color.Color
	warn *color.Color
	bold *color.Color
}

// NewConsole writes progress to w, colored when colored is true.
func NewConsole(w io.Writer, colored bool) *Console {
	c := &Console{
		w:    w,
		ok:   color.New(color.FgGreen),
		fail: color.New(color.FgRed),
		warn: color.New(color.FgYellow),
		bold: color.New(color.Bold),
	}
	if !colored {
		for _, col := range []*color.Color{c.ok, c.fail, c.warn, c.bold} {
			col.DisableColor()
		}
	}
	return c
}

// Begin announces a test.
func (c *Console) Begin(name, source string) {
	if c == nil {
		return
	}
	fmt.Fprintf(c.w, "\n%s\n", banner)
	c.bold.Fprintf(c.w, "Testing: %s\n", source)
	fmt.Fprintf(c.w, "Test name: %s\n", name)
	fmt.Fprintf(c.w, "%s\n", banner)
}

// Stage reports the outcome of one pipeline stage.
func (c *Console) Stage(res stage.Result) {
	if c == nil {
		return
	}
	if res.OK {
		c.ok.Fprintf(c.w, "  ✓ %s (%.3fs)\n", res.Stage, res.Elapsed.Seconds())
		return
	}
	c.fail.Fprintf(c.w, "  ✗ %s (%.3fs)\n", res.Stage, res.Elapsed.Seconds())
	for _, line := range strings.Split(strings.TrimRight(res.Detail, "\n"), "\n") {
		fmt.Fprintf(c.w, "      %s\n", line)
	}
}

// Check reports one of the two dump comparisons.
func (c *Console) Check(ok bool, what string) {
	if c == nil {
		return
	}
	if ok {
		c.ok.Fprintf(c.w, "    ✓ %s comparison passed\n", what)
	} else {
		c.fail.Fprintf(c.w, "    ✗ %s comparison failed\n", what)
	}
}

// Verdict prints the final line for a test.
func (c *Console) Verdict(o Outcome) {
	if c == nil {
		return
	}
	if o.Passed {
		c.ok.Fprintf(c.w, "Test PASSED: %s (%.3fs)\n", o.Name, o.Elapsed.Seconds())
	} else {
		c.fail.Fprintf(c.w, "Test FAILED: %s (%.3fs) [%s]\n", o.Name, o.Elapsed.Seconds(), o.Kind())
	}
	if o.DebugDir != "" {
		fmt.Fprintf(c.w, "Debug files saved to: %s\n", o.DebugDir)
	}
}

// Warn prints a warning that does not affect any verdict.
func (c *Console) Warn(format string, args ...any) {
	if c == nil {
		return
	}
	c.warn.Fprintf(c.w, "warning: "+format+"\n", args...)
}

// Printf prints an uncolored line.
func (c *Console) Printf(format string, args ...any) {
	if c == nil {
		return
	}
	fmt.Fprintf(c.w, format, args...)
}
