package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/turtlecheck/internal/config"
	"github.com/roach88/turtlecheck/internal/dump"
	"github.com/roach88/turtlecheck/internal/harness"
	"github.com/roach88/turtlecheck/internal/history"
	"github.com/roach88/turtlecheck/internal/report"
	"github.com/roach88/turtlecheck/internal/resolve"
	"github.com/roach88/turtlecheck/internal/stage"
	"github.com/roach88/turtlecheck/internal/toolchain"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	TestFile         string
	TestName         string
	Suite            bool
	SaveDebug        bool
	Filter           string
	Comparator       string
	MaxCycles        int
	CheckDeterminism bool
	History          string
	TimingChart      string

	// Tools overrides the external collaborators (for testing).
	// If nil, the turtle-toolkit and RTL adapters are built from config.
	Tools *harness.Tools

	// Clock overrides wall time (for testing).
	Clock stage.Clock
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [test...]",
		Short: "Run differential tests",
		Long: `Run test programs on the reference simulator and the RTL simulation and
compare final memory and registers.

Tests are named by path or by bare name; bare names are looked up in the
configured program directories. With no tests named, every program in the
suite directories is run.

Exit codes:
  0 - All tests passed
  1 - One or more tests failed
  2 - Command error (unresolvable test, invalid config, etc.)

Examples:
  turtlecheck run
  turtlecheck run load_test add_two
  turtlecheck run -f tests/test_programs/load_test.asm -n load
  turtlecheck run --filter "mem_*" --save-debug
  turtlecheck run --history runs.db --timing-chart timing.png`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.TestFile, "test-file", "f", "", "run a single test program")
	cmd.Flags().StringVarP(&opts.TestName, "test-name", "n", "", "test name for --test-file (default: file stem)")
	cmd.Flags().BoolVarP(&opts.Suite, "test-suite", "s", false, "run the discovered suite (the default)")
	cmd.Flags().BoolVarP(&opts.SaveDebug, "save-debug", "d", false, "save debug files even when tests pass")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter suite tests by glob pattern on the test name")
	cmd.Flags().StringVar(&opts.Comparator, "comparator", "", "dump comparator (toolkit|builtin)")
	cmd.Flags().IntVar(&opts.MaxCycles, "max-cycles", 0, "reference simulator cycle ceiling")
	cmd.Flags().BoolVar(&opts.CheckDeterminism, "check-determinism", false, "translate twice and require identical images")
	cmd.Flags().StringVar(&opts.History, "history", "", "record the run in this SQLite database")
	cmd.Flags().StringVar(&opts.TimingChart, "timing-chart", "", "write a per-stage timing chart (.png, .svg, .pdf)")

	return cmd
}

func runTests(opts *RunOptions, args []string, cmd *cobra.Command) error {
	logger := opts.logger(cmd.ErrOrStderr())
	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if err := opts.checkSelection(args); err != nil {
		return failWith(f, CodeInvalidArgs, err)
	}

	cfg, err := opts.runConfig(cmd)
	if err != nil {
		return failWith(f, CodeInvalidConfig, err)
	}

	tests, err := opts.selectTests(cfg, args, f)
	if err != nil {
		return failWith(f, CodeNotFound, err)
	}

	// Open the ledger first so a bad path fails before any test runs.
	var ledger *history.Store
	if opts.History != "" {
		ledger, err = history.Open(opts.History)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open history database", err)
		}
		defer func() {
			if closeErr := ledger.Close(); closeErr != nil {
				logger.Error("error closing history database", "error", closeErr)
			}
		}()
	}

	runID, err := report.NewRunID()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start run", err)
	}
	clock := opts.Clock
	if clock == nil {
		clock = stage.SystemClock()
	}
	rec := report.NewRecorder(runID, clock.Now())

	tools := buildTools(cfg, logger)
	if opts.Tools != nil {
		tools = *opts.Tools
	}

	console := opts.console(cmd)
	driver := harness.NewDriver(tools, harness.Options{
		Format:           cfg.ImageFormat,
		MaxCycles:        cfg.MaxCycles,
		ScratchDir:       scratchDir(cfg),
		DebugDir:         cfg.Path(cfg.DebugDir),
		SaveDebug:        cfg.SaveDebug,
		CheckDeterminism: cfg.CheckDeterminism,
	}, rec,
		harness.WithClock(clock),
		harness.WithLogger(logger),
		harness.WithConsole(console),
	)

	suite := harness.NewSuite(driver, harness.Discovery{
		Root:   cfg.ProjectRoot,
		Dirs:   cfg.SuiteDirs,
		Ext:    cfg.SourceExt,
		Filter: opts.Filter,
	}, rec, console, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("run started", "run_id", runID, "root", cfg.ProjectRoot)
	if _, err := suite.Run(ctx, tests); err != nil {
		return WrapExitError(ExitCommandError, "failed to run suite", err)
	}

	summary := rec.Summary()

	if ledger != nil {
		if err := ledger.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		logger.Info("run recorded", "run_id", runID, "db", opts.History)
	}

	if opts.TimingChart != "" {
		if err := report.WriteChart(summary, opts.TimingChart); err != nil {
			return WrapExitError(ExitCommandError, "failed to write timing chart", err)
		}
	}

	if opts.Format == "json" {
		return outputRunJSON(cmd, summary)
	}
	return outputRunText(cmd, summary)
}

// runConfig loads the configuration and applies the run flags that were set.
func (opts *RunOptions) runConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("save-debug") {
		cfg.SaveDebug = opts.SaveDebug
	}
	if flags.Changed("comparator") {
		cfg.Comparator = opts.Comparator
	}
	if flags.Changed("max-cycles") {
		cfg.MaxCycles = opts.MaxCycles
	}
	if flags.Changed("check-determinism") {
		cfg.CheckDeterminism = opts.CheckDeterminism
	}

	if err := cfg.Validate(); err != nil {
		return cfg, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// checkSelection rejects flag and argument combinations that cannot name a
// test run.
func (opts *RunOptions) checkSelection(args []string) error {
	if opts.TestFile != "" && len(args) > 0 {
		return NewExitError(ExitCommandError, "--test-file cannot be combined with test arguments")
	}
	if opts.TestName != "" && opts.TestFile == "" {
		return NewExitError(ExitCommandError, "--test-name requires --test-file")
	}
	// The name becomes a workspace prefix and a debug directory.
	if opts.TestName != "" && (strings.ContainsAny(opts.TestName, `/\`) || opts.TestName == "." || opts.TestName == "..") {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --test-name %q: must not contain a path separator", opts.TestName))
	}
	return nil
}

// selectTests resolves the requested tests. A nil result means the
// discovered suite. Every identifier is resolved before anything runs.
func (opts *RunOptions) selectTests(cfg config.Config, args []string, f *OutputFormatter) ([]harness.Test, error) {
	r := resolver(cfg)

	if opts.TestFile != "" {
		path, err := r.Lookup(opts.TestFile)
		if err != nil {
			return nil, notFound(err)
		}
		f.VerboseLog("resolved %s -> %s", opts.TestFile, path)
		name := opts.TestName
		if name == "" {
			name = resolve.Name(path)
		}
		return []harness.Test{{Name: name, Source: path}}, nil
	}

	if len(args) == 0 {
		return nil, nil
	}

	paths := make([]string, 0, len(args))
	for _, id := range args {
		path, err := r.Lookup(id)
		if err != nil {
			return nil, notFound(err)
		}
		f.VerboseLog("resolved %s -> %s", id, path)
		paths = append(paths, path)
	}
	return harness.TestsFromPaths(paths), nil
}

// failWith reports a command error under code; other errors pass through.
func failWith(f *OutputFormatter, code string, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return f.Fail(code, exitErr)
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, resolve.ErrNotFound) {
		return WrapExitError(ExitCommandError, string(harness.KindResolution), err)
	}
	return WrapExitError(ExitCommandError, "failed to resolve test", err)
}

// console returns the progress printer. JSON output keeps stdout clean by
// sending progress to stderr.
func (opts *RunOptions) console(cmd *cobra.Command) *harness.Console {
	if opts.Format == "json" {
		return harness.NewConsole(cmd.ErrOrStderr(), false)
	}
	w := cmd.OutOrStdout()
	return harness.NewConsole(w, w == io.Writer(os.Stdout) && !color.NoColor)
}

// buildTools wires the real collaborators from cfg.
func buildTools(cfg config.Config, logger *slog.Logger) harness.Tools {
	proc := stage.NewProcess(logger)
	kit := &toolchain.Toolkit{
		Exec:    proc,
		Dir:     cfg.Path(cfg.ToolkitDir),
		Command: cfg.Toolkit,

		MaxCyclesFlag: cfg.MaxCyclesFlag,
	}
	rtl := &toolchain.RTL{
		Exec:        proc,
		Dir:         cfg.Path(cfg.RTLDir),
		Make:        cfg.Make,
		BuildTarget: cfg.BuildTarget,
		RunTarget:   cfg.RunTarget,
	}

	var cmp toolchain.Comparator = kit
	if cfg.Comparator == config.ComparatorBuiltin {
		cmp = dump.Comparator{Verbose: true}
	}

	return harness.Tools{Translator: kit, Reference: kit, Candidate: rtl, Comparator: cmp}
}

func scratchDir(cfg config.Config) string {
	if cfg.ScratchDir == "" {
		return ""
	}
	return cfg.Path(cfg.ScratchDir)
}

func outputRunJSON(cmd *cobra.Command, summary report.Summary) error {
	f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
	if summary.OK() {
		return f.Success(summary)
	}

	msg := fmt.Sprintf("%d of %d tests failed", summary.Failed, summary.Total)
	if err := f.Error(CodeTestsFailed, msg, summary); err != nil {
		return err
	}
	// Test failures = exit code 1
	return NewExitError(ExitFailure, msg)
}

func outputRunText(cmd *cobra.Command, summary report.Summary) error {
	w := cmd.OutOrStdout()
	if err := report.WriteText(w, report.LocalPrinter(), summary); err != nil {
		return err
	}

	if !summary.OK() {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d tests failed", summary.Failed, summary.Total))
	}

	fmt.Fprintln(w, "✓ All tests passed")
	return nil
}
