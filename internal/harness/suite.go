package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"

	"github.com/roach88/turtlecheck/internal/report"
	"github.com/roach88/turtlecheck/internal/resolve"
)

// TestRunner runs one test. *Driver is the production implementation.
type TestRunner interface {
	Run(ctx context.Context, name, source string) Outcome
}

// Test names one program to run.
type Test struct {
	Name   string
	Source string
}

// TestsFromPaths names each path after its file stem.
func TestsFromPaths(paths []string) []Test {
	tests := make([]Test, 0, len(paths))
	for _, p := range paths {
		tests = append(tests, Test{Name: resolve.Name(p), Source: p})
	}
	return tests
}

// Discovery says where Suite looks for programs when none are listed.
type Discovery struct {
	Root   string
	Dirs   []string
	Ext    string
	Filter string // glob on the test name; empty matches all
}

// Suite runs a batch of tests sequentially.
type Suite struct {
	runner    TestRunner
	discovery Discovery
	recorder  *report.Recorder
	console   *Console
	logger    *slog.Logger
}

// NewSuite creates a Suite. rec receives the outcomes of tests that fault
// outside runner; runner records everything else itself.
func NewSuite(runner TestRunner, discovery Discovery, rec *report.Recorder, console *Console, logger *slog.Logger) *Suite {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Suite{
		runner:    runner,
		discovery: discovery,
		recorder:  rec,
		console:   console,
		logger:    logger,
	}
}

// Discover lists the suite's programs in discovery order.
func (s *Suite) Discover() ([]Test, error) {
	d := s.discovery
	paths, err := resolve.Discover(d.Root, d.Dirs, d.Ext, d.Filter)
	if err != nil {
		return nil, err
	}
	return TestsFromPaths(paths), nil
}

// Run runs tests in order, or the discovered suite when tests is nil.
// It reports whether every test passed. An error means discovery failed and
// nothing was run.
func (s *Suite) Run(ctx context.Context, tests []Test) (bool, error) {
	if tests == nil {
		var err error
		if tests, err = s.Discover(); err != nil {
			return false, fmt.Errorf("discover tests: %w", err)
		}
	}

	s.console.Printf("\nRunning test suite with %d tests\n", len(tests))
	s.logger.Info("suite started", "tests", len(tests))

	allPassed := true
	for _, t := range tests {
		o := s.runOne(ctx, t)
		if !o.Passed {
			allPassed = false
		}
	}
	return allPassed, nil
}

// runOne isolates the batch from a test that panics outside the stage runner.
func (s *Suite) runOne(ctx context.Context, t Test) (out Outcome) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		s.logger.Error("test faulted", "test", t.Name, "panic", p, "stack", string(debug.Stack()))
		out = Outcome{
			Name:   t.Name,
			Source: t.Source,
			State:  Failed,
			Failure: &Failure{
				Kind:    KindUnexpected,
				Message: fmt.Sprint(p),
			},
		}
		if s.recorder != nil {
			s.recorder.RecordOutcome(out.Report())
		}
		s.console.Verdict(out)
	}()
	return s.runner.Run(ctx, t.Name, t.Source)
}
