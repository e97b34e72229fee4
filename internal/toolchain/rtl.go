package toolchain

import (
	"context"
	"fmt"

	"github.com/roach88/turtlecheck/internal/stage"
)

// Plusargs understood by the RTL testbench.
const (
	PlusInstructionMemory = "initial_instruction_memory_file"
	PlusDataMemory        = "final_data_memory_file"
	PlusRegisterFile      = "final_register_file"
)

// RTL drives the hardware simulation through make.
//
// All runs share one build directory, so an RTL must not be used by two
// tests at the same time.
type RTL struct {
	Exec        stage.Executor
	Dir         string
	Make        string
	BuildTarget string
	RunTarget   string
}

// Build runs the rebuild target.
func (r *RTL) Build(ctx context.Context) (stage.Output, error) {
	return r.Exec.Exec(ctx, stage.Command{
		Dir:  r.Dir,
		Args: []string{r.Make, r.BuildTarget},
	})
}

// Run simulates the image and writes the final data memory and register file.
func (r *RTL) Run(ctx context.Context, req ExecRequest) (stage.Output, error) {
	return r.Exec.Exec(ctx, stage.Command{
		Dir:  r.Dir,
		Args: []string{r.Make, r.RunTarget, "PLUSARGS=" + Plusargs(req)},
	})
}

// Plusargs renders the testbench arguments for req.
func Plusargs(req ExecRequest) string {
	return fmt.Sprintf("+%s=%s +%s=%s +%s=%s",
		PlusInstructionMemory, req.Image,
		PlusDataMemory, req.MemoryDump,
		PlusRegisterFile, req.RegisterDump,
	)
}
