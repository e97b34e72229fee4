// Package stage runs one step of the differential test pipeline and reports
// what happened as a Result.
//
// A stage is either an in-process library call or an out-of-process tool
// invocation (see Process). In both cases Runner.Run times the call from just
// before dispatch to just after completion and never lets a fault escape:
// returned errors and panics both become a failed Result carrying the detail.
package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Name identifies a pipeline stage.
// The set is closed: only the constants below are valid.
type Name string

const (
	Translate     Name = "translate"
	ReferenceExec Name = "reference-execute"
	CandidateExec Name = "candidate-execute"
	Compare       Name = "compare"

	// FullTest labels the end-to-end duration of one test. It is not a
	// pipeline stage but is sampled alongside them.
	FullTest Name = "full-test"
)

// Pipeline lists the pipeline stages in execution order.
var Pipeline = [...]Name{Translate, ReferenceExec, CandidateExec, Compare}

// Index returns the position of n in Pipeline, or -1 if n is not a pipeline stage.
func (n Name) Index() int {
	for i, p := range Pipeline {
		if p == n {
			return i
		}
	}
	return -1
}

var (
	// ErrPanic marks a Result whose stage function panicked.
	ErrPanic = errors.New("stage panicked")

	// ErrNotHalted marks a reference run that hit its cycle ceiling.
	ErrNotHalted = errors.New("reference executor did not halt")
)

// Output is what a stage printed.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Result is the outcome of running one stage.
type Result struct {
	Stage   Name
	OK      bool
	Output  Output
	Detail  string // failure detail: stderr for processes, fault text for calls
	Err     error
	Elapsed time.Duration
}

// Clock supplies wall time to the runner.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Func is the body of a stage.
type Func func(ctx context.Context) (Output, error)

// Runner dispatches stage functions and converts their outcome to a Result.
type Runner struct {
	clock  Clock
	logger *slog.Logger
}

// NewRunner creates a Runner. A nil clock means wall time; a nil logger discards.
func NewRunner(clock Clock, logger *slog.Logger) *Runner {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{clock: clock, logger: logger}
}

// Run executes fn as stage name.
//
// The elapsed time is recorded on every path, including a panic in fn.
func (r *Runner) Run(ctx context.Context, name Name, fn Func) (res Result) {
	res.Stage = name
	start := r.clock.Now()

	defer func() {
		if p := recover(); p != nil {
			res.OK = false
			res.Err = fmt.Errorf("%w: %v", ErrPanic, p)
			res.Detail = res.Err.Error()
		}
		res.Elapsed = r.clock.Now().Sub(start)

		if res.OK {
			r.logger.Debug("stage finished", "stage", name, "elapsed", res.Elapsed)
		} else {
			r.logger.Debug("stage failed", "stage", name, "elapsed", res.Elapsed, "detail", res.Detail)
		}
	}()

	out, err := fn(ctx)
	res.Output = out
	if err != nil {
		res.Err = err
		res.Detail = failureDetail(out, err)
		return res
	}
	res.OK = true
	return res
}

// failureDetail picks the most useful text to show for a failed stage.
func failureDetail(out Output, err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Stderr != "" {
			return exitErr.Stderr
		}
		if out.Stdout != "" {
			return out.Stdout
		}
	}
	return err.Error()
}
