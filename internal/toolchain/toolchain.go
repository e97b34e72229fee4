// Package toolchain defines the collaborators the harness drives and adapts
// the Turtle CPU tools to them.
//
// The Toolkit adapter shells out to the turtle-toolkit CLI for translation,
// reference simulation and dump comparison. The RTL adapter drives the
// hardware simulation through make.
package toolchain

import (
	"context"

	"github.com/roach88/turtlecheck/internal/stage"
)

// TranslateRequest asks for Source to be turned into an image at Output.
type TranslateRequest struct {
	Source string // program source file
	Output string // formatted image file to write
	Format string // image text format, e.g. "binstr"
}

// Translator turns program source into an executable image.
// It must produce identical output for identical input.
type Translator interface {
	Translate(ctx context.Context, req TranslateRequest) (stage.Output, error)
}

// ExecRequest names the image to run and where the final state goes.
type ExecRequest struct {
	Image        string
	Format       string
	MaxCycles    int // ignored by the candidate
	MemoryDump   string
	RegisterDump string
}

// ExecResult is what the reference executor reports.
type ExecResult struct {
	Halted bool // false means MaxCycles was reached first
	Cycles int
	Output stage.Output
}

// ReferenceExecutor is the software simulator, the ground truth.
type ReferenceExecutor interface {
	Execute(ctx context.Context, req ExecRequest) (ExecResult, error)
}

// CandidateExecutor is the hardware simulation under test.
//
// Build is expensive and idempotent; callers run it once per harness.
type CandidateExecutor interface {
	Build(ctx context.Context) (stage.Output, error)
	Run(ctx context.Context, req ExecRequest) (stage.Output, error)
}

// CompareResult is the verdict on two dumps.
type CompareResult struct {
	Equal  bool
	Output stage.Output // mismatch description when not Equal
}

// Comparator checks two dumps for equality, ignoring comments and
// whitespace. An error means the comparison itself could not be done.
type Comparator interface {
	Compare(ctx context.Context, expected, actual string) (CompareResult, error)
}
