// Package setup provides the one-time preparation gate shared by every test
// in a run.
//
// Building the candidate executor is slow and assumed deterministic, so it is
// done at most once per Gate. A failed build is remembered: later callers get
// the same failure without the build being retried.
package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrBuildFailed is wrapped by every error Ensure returns.
var ErrBuildFailed = errors.New("candidate build failed")

// Step performs the expensive preparation.
type Step func(ctx context.Context) error

// State is the gate's view of the preparation step.
type State struct {
	Attempted bool  // the step has been run
	Ready     bool  // the step ran and succeeded
	Err       error // sticky failure, nil unless Attempted && !Ready
}

// Gate runs Step at most once.
//
// A Gate is owned by one harness instance; two harnesses never share one.
type Gate struct {
	mu     sync.Mutex
	step   Step
	state  State
	logger *slog.Logger
}

// NewGate creates a Gate around step. A nil logger discards.
func NewGate(step Step, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gate{step: step, logger: logger}
}

// Ensure runs the step on first call and reports its outcome on every call.
func (g *Gate) Ensure(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.Attempted {
		return g.state.Err
	}

	g.logger.Info("building candidate executor (one-time setup)")
	err := g.step(ctx)
	g.state.Attempted = true
	if err != nil {
		g.state.Err = fmt.Errorf("%w: %w", ErrBuildFailed, err)
		g.logger.Error("candidate build failed", "err", err)
		return g.state.Err
	}

	g.state.Ready = true
	g.logger.Info("candidate build successful")
	return nil
}

// State returns a snapshot of the gate.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}
