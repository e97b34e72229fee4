package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/turtlecheck/internal/history"
	"github.com/roach88/turtlecheck/internal/report"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	RunID    string
	Test     string
	Limit    int
}

// RunDetail is one run with its outcomes and stage totals.
type RunDetail struct {
	Run      history.Run          `json:"run"`
	Outcomes []report.Outcome     `json:"outcomes"`
	Stages   []history.StageTotal `json:"stages"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded test runs",
		Long: `Show runs recorded with "turtlecheck run --history <db>".

Without --run or --test, lists the most recent runs. --run shows one run's
outcomes and stage totals; --test shows one test across runs.

Examples:
  turtlecheck history --db runs.db
  turtlecheck history --db runs.db --run 01981c3e-...
  turtlecheck history --db runs.db --test load_test --limit 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show a single run")
	cmd.Flags().StringVar(&opts.Test, "test", "", "show one test across runs")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of entries (0 for all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func showHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	if opts.RunID != "" && opts.Test != "" {
		return NewExitError(ExitCommandError, "--run and --test are mutually exclusive")
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	fail := func(msg string, err error) error {
		return f.Fail(CodeHistory, WrapExitError(ExitCommandError, msg, err))
	}

	// Reading never creates a ledger.
	if _, err := os.Stat(opts.Database); err != nil {
		return fail("history database not found", err)
	}
	st, err := history.Open(opts.Database)
	if err != nil {
		return fail("failed to open history database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	switch {
	case opts.RunID != "":
		run, err := st.GetRun(ctx, opts.RunID)
		if err != nil {
			return fail("failed to read run", err)
		}
		outcomes, err := st.RunOutcomes(ctx, opts.RunID)
		if err != nil {
			return fail("failed to read run", err)
		}
		stages, err := st.RunStages(ctx, opts.RunID)
		if err != nil {
			return fail("failed to read run", err)
		}
		detail := RunDetail{Run: run, Outcomes: outcomes, Stages: stages}
		if opts.Format == "json" {
			return f.Success(detail)
		}
		writeRunDetail(w, detail)

	case opts.Test != "":
		hist, err := st.TestHistory(ctx, opts.Test, opts.Limit)
		if err != nil {
			return fail("failed to read test history", err)
		}
		if opts.Format == "json" {
			return f.Success(hist)
		}
		if len(hist) == 0 {
			fmt.Fprintf(w, "No runs recorded for %s.\n", opts.Test)
			return nil
		}
		for _, h := range hist {
			fmt.Fprintf(w, "%s %s  %s  %s (%s)\n", mark(h.Outcome.Status), h.RunID,
				h.Started.Format(time.RFC3339), h.Outcome.Status, seconds(h.Outcome.Elapsed))
		}

	default:
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return fail("failed to list runs", err)
		}
		if opts.Format == "json" {
			return f.Success(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%s  %s  %d/%d passed  %s\n",
				r.ID, r.Started.Format(time.RFC3339), r.Passed, r.Total, seconds(r.TestTime))
		}
	}
	return nil
}

func writeRunDetail(w io.Writer, d RunDetail) {
	fmt.Fprintf(w, "Run %s (%s)\n", d.Run.ID, d.Run.Started.Format(time.RFC3339))
	fmt.Fprintf(w, "Test Results: %d passed, %d failed, %d total\n", d.Run.Passed, d.Run.Failed, d.Run.Total)
	fmt.Fprintln(w)
	for _, o := range d.Outcomes {
		fmt.Fprintf(w, "  %s %s (%s)", mark(o.Status), o.Name, seconds(o.Elapsed))
		if o.Kind != "" {
			fmt.Fprintf(w, " [%s]", o.Kind)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
	for _, s := range d.Stages {
		fmt.Fprintf(w, "  %-18s total %10s  runs %5d\n", s.Stage, seconds(s.Total), s.Count)
	}
}

func mark(s report.Status) string {
	if s == report.Passed {
		return "✓"
	}
	return "✗"
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}
