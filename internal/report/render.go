package report

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jeandeaual/go-locale"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const rule = "============================================================"

// LocalPrinter returns a printer for the user's locale, falling back to en-US.
func LocalPrinter() *message.Printer {
	locales, err := locale.GetLocales()
	if err != nil {
		slog.Debug("locale lookup failed", "err", err)
	}
	if len(locales) == 0 {
		locales = []string{"en-US"}
	}
	return message.NewPrinter(message.MatchLanguage(locales...))
}

// NewPrinter returns a printer for a fixed language, for reproducible output.
func NewPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

// WriteText renders s for humans.
func WriteText(w io.Writer, p *message.Printer, s Summary) error {
	var b strings.Builder

	b.WriteString("\n" + rule + "\n")
	p.Fprintf(&b, "Test Results: %d passed, %d failed, %d total\n", s.Passed, s.Failed, s.Total)
	p.Fprintf(&b, "Success rate: %.1f%%\n", s.SuccessRate)
	if s.RunID != "" {
		p.Fprintf(&b, "Run ID: %s\n", s.RunID)
	}
	b.WriteString(rule + "\n")

	b.WriteString("\nTiming breakdown:\n")
	for _, st := range s.Stages {
		fmt.Fprintf(&b, "  %-18s total %10s  avg %9s  runs %5s  %6s\n",
			st.Stage,
			p.Sprintf("%.3fs", seconds(st.Total)),
			p.Sprintf("%.3fs", seconds(st.Average)),
			p.Sprintf("%d", st.Count),
			p.Sprintf("%.1f%%", st.Share))
	}
	fmt.Fprintf(&b, "  %-18s total %10s  (workspace/file management) %6s\n",
		"overhead", p.Sprintf("%.3fs", seconds(s.Overhead)), p.Sprintf("%.1f%%", s.OverheadShare()))
	fmt.Fprintf(&b, "  %-18s total %10s\n", "all tests", p.Sprintf("%.3fs", seconds(s.TestTime)))

	if len(s.FailedTests) > 0 {
		b.WriteString("\nFailed tests:\n")
		for _, o := range s.FailedTests {
			p.Fprintf(&b, "  ✗ %s (%.3fs)", o.Name, seconds(o.Elapsed))
			if o.Kind != "" {
				p.Fprintf(&b, " [%s]", o.Kind)
			}
			b.WriteString("\n")
		}
	}
	if len(s.PassedTests) > 0 {
		b.WriteString("\nPassed tests:\n")
		for _, o := range s.PassedTests {
			p.Fprintf(&b, "  ✓ %s (%.3fs)\n", o.Name, seconds(o.Elapsed))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func seconds(d time.Duration) float64 {
	return d.Seconds()
}
