package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/roach88/turtlecheck/internal/stage"
	"github.com/roach88/turtlecheck/internal/toolchain"
)

// Translator is an in-memory toolchain.Translator for the toy machine.
//
// With Nondeterministic set, every image carries a different serial comment,
// which a byte-wise determinism check must catch.
type Translator struct {
	Nondeterministic bool

	mu    sync.Mutex
	Calls int
}

// Translate assembles req.Source into req.Output.
func (t *Translator) Translate(_ context.Context, req toolchain.TranslateRequest) (stage.Output, error) {
	t.mu.Lock()
	t.Calls++
	serial := t.Calls
	t.mu.Unlock()

	src, err := os.ReadFile(req.Source)
	if err != nil {
		return stage.Output{Stderr: err.Error(), ExitCode: 1}, err
	}
	prog, err := Assemble(string(src))
	if err != nil {
		return stage.Output{Stderr: err.Error(), ExitCode: 1}, err
	}

	image := EncodeImage(prog)
	if t.Nondeterministic {
		image += fmt.Sprintf("// serial %d\n", serial)
	}
	if err := os.WriteFile(req.Output, []byte(image), 0o644); err != nil {
		return stage.Output{Stderr: err.Error(), ExitCode: 1}, err
	}
	return stage.Output{Stdout: fmt.Sprintf("assembled %d instructions\n", len(prog))}, nil
}

// Reference is the toy software simulator.
type Reference struct {
	mu    sync.Mutex
	Calls int
}

// Execute runs the image, reporting Halted=false when MaxCycles is reached.
// Dumps are written only for a halted run.
func (r *Reference) Execute(_ context.Context, req toolchain.ExecRequest) (toolchain.ExecResult, error) {
	r.mu.Lock()
	r.Calls++
	r.mu.Unlock()

	prog, err := readImage(req.Image)
	if err != nil {
		return toolchain.ExecResult{Output: stage.Output{Stderr: err.Error(), ExitCode: 1}}, err
	}

	var m Machine
	runErr := m.Run(prog, req.MaxCycles)
	if runErr != nil && !errors.Is(runErr, ErrNoHalt) {
		return toolchain.ExecResult{Cycles: m.Cycles, Output: stage.Output{Stderr: runErr.Error(), ExitCode: 1}}, runErr
	}
	halted := runErr == nil
	if halted {
		if err := m.WriteDumps(req.MemoryDump, req.RegisterDump, "// ref"); err != nil {
			return toolchain.ExecResult{Output: stage.Output{Stderr: err.Error(), ExitCode: 1}}, err
		}
	}
	out := stage.Output{Stdout: fmt.Sprintf("cycles: %d\nhalted: %v\n", m.Cycles, halted)}
	return toolchain.ExecResult{Halted: halted, Cycles: m.Cycles, Output: out}, nil
}

// candidateCycleLimit bounds the fake hardware run; real RTL has its own.
const candidateCycleLimit = 1 << 16

// Candidate is the toy hardware executor.
//
// BuildErr makes Build fail. Corrupt, when set, edits the final state before
// the dumps are written, to model an RTL bug.
type Candidate struct {
	BuildErr error
	Corrupt  func(m *Machine)

	mu     sync.Mutex
	Builds int
	Runs   int
}

// Build counts invocations and returns BuildErr.
func (c *Candidate) Build(context.Context) (stage.Output, error) {
	c.mu.Lock()
	c.Builds++
	c.mu.Unlock()

	if c.BuildErr != nil {
		return stage.Output{Stderr: c.BuildErr.Error(), ExitCode: 2}, c.BuildErr
	}
	return stage.Output{Stdout: "build ok\n"}, nil
}

// Run executes the image and writes the dumps with '#' comments.
func (c *Candidate) Run(_ context.Context, req toolchain.ExecRequest) (stage.Output, error) {
	c.mu.Lock()
	c.Runs++
	c.mu.Unlock()

	prog, err := readImage(req.Image)
	if err != nil {
		return stage.Output{Stderr: err.Error(), ExitCode: 1}, err
	}

	var m Machine
	if err := m.Run(prog, candidateCycleLimit); err != nil {
		return stage.Output{Stderr: err.Error(), ExitCode: 1}, err
	}
	if c.Corrupt != nil {
		c.Corrupt(&m)
	}
	if err := m.WriteDumps(req.MemoryDump, req.RegisterDump, "# rtl"); err != nil {
		return stage.Output{Stderr: err.Error(), ExitCode: 1}, err
	}
	return stage.Output{Stdout: "simulation finished\n"}, nil
}

// BuildCount returns the number of Build calls so far.
func (c *Candidate) BuildCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Builds
}

// RunCount returns the number of Run calls so far.
func (c *Candidate) RunCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Runs
}

// ComparatorFunc adapts a function to toolchain.Comparator.
type ComparatorFunc func(ctx context.Context, expected, actual string) (toolchain.CompareResult, error)

// Compare calls f.
func (f ComparatorFunc) Compare(ctx context.Context, expected, actual string) (toolchain.CompareResult, error) {
	return f(ctx, expected, actual)
}

func readImage(path string) ([]Instr, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeImage(string(text))
}
