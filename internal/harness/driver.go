package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/turtlecheck/internal/report"
	"github.com/roach88/turtlecheck/internal/setup"
	"github.com/roach88/turtlecheck/internal/stage"
	"github.com/roach88/turtlecheck/internal/toolchain"
)

// State is a point in the life of one test.
type State string

const (
	Resolving     State = "RESOLVING"
	Translating   State = "TRANSLATING"
	ReferenceExec State = "REFERENCE_EXEC"
	CandidateExec State = "CANDIDATE_EXEC"
	Comparing     State = "COMPARING"
	Passed        State = "PASSED"
	Failed        State = "FAILED"
)

// Tools are the collaborators a Driver calls.
type Tools struct {
	Translator toolchain.Translator
	Reference  toolchain.ReferenceExecutor
	Candidate  toolchain.CandidateExecutor
	Comparator toolchain.Comparator
}

// Options tune a Driver.
type Options struct {
	Format    string // image format passed to every tool
	MaxCycles int    // reference cycle ceiling

	ScratchDir string // parent of workspaces; empty means os.TempDir
	DebugDir   string // parent of preserved workspaces
	SaveDebug  bool   // preserve passing tests too

	CheckDeterminism bool // translate twice and require identical images
}

// Outcome is the result of one Driver.Run.
type Outcome struct {
	Name     string
	Source   string
	Passed   bool
	State    State // PASSED or FAILED
	Failure  *Failure
	Elapsed  time.Duration
	DebugDir string // set when the workspace was preserved
}

// Kind returns the failure kind, or "" for a passing test.
func (o Outcome) Kind() FailureKind {
	if o.Failure == nil {
		return ""
	}
	return o.Failure.Kind
}

// Report converts o to the aggregator's record.
func (o Outcome) Report() report.Outcome {
	r := report.Outcome{
		Name:    o.Name,
		Source:  o.Source,
		Status:  report.Failed,
		Elapsed: o.Elapsed,
	}
	if o.Passed {
		r.Status = report.Passed
	}
	if o.Failure != nil {
		r.Kind = string(o.Failure.Kind)
		r.Detail = o.Failure.Message
	}
	return r
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithClock sets the clock used for all timings.
func WithClock(c stage.Clock) DriverOption {
	return func(d *Driver) { d.clock = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) { d.logger = l }
}

// WithConsole sets where progress lines go.
func WithConsole(c *Console) DriverOption {
	return func(d *Driver) { d.console = c }
}

// Driver runs single tests. It owns the candidate build gate, so every test
// run through one Driver shares one build.
//
// A Driver is not safe for concurrent use; tests run sequentially.
type Driver struct {
	tools    Tools
	opts     Options
	recorder *report.Recorder

	gate    *setup.Gate
	runner  *stage.Runner
	clock   stage.Clock
	logger  *slog.Logger
	console *Console

	// saved counts preserved workspaces per test name in this run.
	saved map[string]int
}

// NewDriver creates a Driver that records into rec.
func NewDriver(tools Tools, opts Options, rec *report.Recorder, options ...DriverOption) *Driver {
	d := &Driver{
		tools:    tools,
		opts:     opts,
		recorder: rec,
		clock:    stage.SystemClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		saved:    make(map[string]int),
	}
	for _, opt := range options {
		opt(d)
	}

	d.runner = stage.NewRunner(d.clock, d.logger)
	d.gate = setup.NewGate(func(ctx context.Context) error {
		_, err := d.tools.Candidate.Build(ctx)
		return err
	}, d.logger)
	return d
}

// Gate exposes the build gate state, for reporting.
func (d *Driver) Gate() setup.State {
	return d.gate.State()
}

// Run takes the program at source through the pipeline as test name.
// The outcome is recorded before Run returns, whatever happened.
func (d *Driver) Run(ctx context.Context, name, source string) Outcome {
	start := d.clock.Now()
	out := Outcome{Name: name, Source: source}
	log := d.logger.With("test", name)
	d.console.Begin(name, source)

	ws, err := os.MkdirTemp(d.opts.ScratchDir, "turtle_test_"+name+"_")
	if err != nil {
		out.Failure = &Failure{Kind: KindUnexpected, Message: fmt.Sprintf("create workspace: %v", err), Err: err}
	} else {
		defer func() {
			if err := os.RemoveAll(ws); err != nil {
				log.Warn("workspace cleanup failed", "dir", ws, "err", err)
			}
		}()

		tc := NewTestCase(name, source, ws)
		out.Failure = d.pipeline(ctx, tc, log)
		out.Passed = out.Failure == nil

		if !out.Passed || d.opts.SaveDebug {
			out.DebugDir = d.preserve(tc, log)
		}
	}

	out.State = Failed
	if out.Passed {
		out.State = Passed
	}
	out.Elapsed = d.clock.Now().Sub(start)

	log.Info("test finished", "state", out.State, "elapsed", out.Elapsed)
	if d.recorder != nil {
		d.recorder.RecordOutcome(out.Report())
	}
	d.console.Verdict(out)
	return out
}

// pipeline runs the stages in order and returns the first failure.
func (d *Driver) pipeline(ctx context.Context, tc TestCase, log *slog.Logger) *Failure {
	enter := func(s State) { log.Debug("state", "state", s) }

	enter(Resolving)
	if info, err := os.Stat(tc.Source); err != nil || info.IsDir() {
		if err == nil {
			err = errors.New("is a directory")
		}
		return &Failure{Kind: KindResolution, Message: fmt.Sprintf("%s: %v", tc.Source, err), Err: err}
	}

	enter(Translating)
	if res := d.stage(ctx, stage.Translate, func(ctx context.Context) (stage.Output, error) {
		return d.translate(ctx, tc)
	}); !res.OK {
		return stageFailure(KindTranslation, res)
	}

	enter(ReferenceExec)
	if res := d.stage(ctx, stage.ReferenceExec, func(ctx context.Context) (stage.Output, error) {
		return d.reference(ctx, tc)
	}); !res.OK {
		return stageFailure(KindExecution, res)
	}

	enter(CandidateExec)
	if res := d.stage(ctx, stage.CandidateExec, func(ctx context.Context) (stage.Output, error) {
		if err := d.gate.Ensure(ctx); err != nil {
			return stage.Output{}, err
		}
		return d.tools.Candidate.Run(ctx, toolchain.ExecRequest{
			Image:        tc.Image,
			Format:       d.opts.Format,
			MemoryDump:   tc.CandidateMemory,
			RegisterDump: tc.CandidateRegs,
		})
	}); !res.OK {
		if errors.Is(res.Err, setup.ErrBuildFailed) {
			return stageFailure(KindBuild, res)
		}
		return stageFailure(KindExecution, res)
	}

	enter(Comparing)
	if res := d.stage(ctx, stage.Compare, func(ctx context.Context) (stage.Output, error) {
		return d.compare(ctx, tc)
	}); !res.OK {
		return stageFailure(KindComparison, res)
	}

	return nil
}

// stage runs fn through the stage runner and records its timing.
func (d *Driver) stage(ctx context.Context, name stage.Name, fn stage.Func) stage.Result {
	res := d.runner.Run(ctx, name, fn)
	if d.recorder != nil {
		d.recorder.RecordStage(name, res.Elapsed)
	}
	d.console.Stage(res)
	return res
}

func (d *Driver) translate(ctx context.Context, tc TestCase) (stage.Output, error) {
	req := toolchain.TranslateRequest{Source: tc.Source, Output: tc.Image, Format: d.opts.Format}
	out, err := d.tools.Translator.Translate(ctx, req)
	if err != nil || !d.opts.CheckDeterminism {
		return out, err
	}

	check := strings.TrimSuffix(tc.Image, ".binstr.txt") + "_recheck.binstr.txt"
	req.Output = check
	if _, err := d.tools.Translator.Translate(ctx, req); err != nil {
		return out, fmt.Errorf("second translation: %w", err)
	}

	first, err := os.ReadFile(tc.Image)
	if err != nil {
		return out, err
	}
	second, err := os.ReadFile(check)
	if err != nil {
		return out, err
	}
	if !bytes.Equal(first, second) {
		return out, fmt.Errorf("%w: %s and %s differ", ErrNondeterministic, filepath.Base(tc.Image), filepath.Base(check))
	}
	return out, os.Remove(check)
}

func (d *Driver) reference(ctx context.Context, tc TestCase) (stage.Output, error) {
	res, err := d.tools.Reference.Execute(ctx, toolchain.ExecRequest{
		Image:        tc.Image,
		Format:       d.opts.Format,
		MaxCycles:    d.opts.MaxCycles,
		MemoryDump:   tc.ReferenceMemory,
		RegisterDump: tc.ReferenceRegs,
	})
	if err != nil {
		return res.Output, err
	}
	if !res.Halted {
		return res.Output, fmt.Errorf("%w after %d cycles", stage.ErrNotHalted, res.Cycles)
	}
	return res.Output, nil
}

// compare checks memory and registers. Both checks always run; the stage
// succeeds only when both report equal.
func (d *Driver) compare(ctx context.Context, tc TestCase) (stage.Output, error) {
	checks := []struct {
		what             string
		expected, actual string
	}{
		{"memory", tc.ReferenceMemory, tc.CandidateMemory},
		{"registers", tc.ReferenceRegs, tc.CandidateRegs},
	}

	var out stage.Output
	var errs []error
	for _, c := range checks {
		res, err := d.tools.Comparator.Compare(ctx, c.expected, c.actual)
		out.Stdout += res.Output.Stdout
		out.Stderr += res.Output.Stderr

		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s comparison: %w", c.what, err))
		case !res.Equal:
			detail := strings.TrimSpace(res.Output.Stdout)
			errs = append(errs, fmt.Errorf("%s: %w\n%s", c.what, ErrMismatch, detail))
		}
		d.console.Check(err == nil && res.Equal, c.what)
	}
	return out, errors.Join(errs...)
}

// preserve copies the workspace into DebugDir/<name> and returns that
// directory, or "" if nothing could be saved. A name preserved earlier in the
// same run gets DebugDir/<name>-<n> instead. Whatever the directory held
// before is removed first.
func (d *Driver) preserve(tc TestCase, log *slog.Logger) string {
	d.saved[tc.Name]++
	dir := tc.Name
	if n := d.saved[tc.Name]; n > 1 {
		dir = fmt.Sprintf("%s-%d", tc.Name, n)
	}
	dst := filepath.Join(d.opts.DebugDir, dir)

	err := os.RemoveAll(dst)
	if err == nil {
		err = copyFlat(tc.Workspace, dst)
	}
	if err != nil {
		log.Warn("saving debug files failed", "dir", dst, "err", err)
		d.console.Warn("could not save debug files to %s: %v", dst, err)
		return ""
	}
	log.Debug("debug files saved", "dir", dst)
	return dst
}

// copyFlat copies the regular files of src into dst, overwriting.
func copyFlat(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		if err == nil {
			err = os.WriteFile(filepath.Join(dst, e.Name()), data, 0o644)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
