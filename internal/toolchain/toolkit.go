package toolchain

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/turtlecheck/internal/stage"
)

// Toolkit drives the turtle-toolkit CLI.
type Toolkit struct {
	Exec    stage.Executor
	Dir     string   // toolkit checkout; commands run here
	Command []string // e.g. poetry run turtle-toolkit

	// MaxCyclesFlag, when set, passes the cycle ceiling to "simulate" as
	// "<flag> N". Empty leaves the simulator's built-in ceiling in charge.
	MaxCyclesFlag string
}

func (t *Toolkit) command(args ...string) stage.Command {
	full := make([]string, 0, len(t.Command)+len(args))
	full = append(full, t.Command...)
	full = append(full, args...)
	return stage.Command{Dir: t.Dir, Args: full}
}

// Translate runs "assemble". Sources inside the toolkit directory are passed
// relative to it, anything else as an absolute path.
func (t *Toolkit) Translate(ctx context.Context, req TranslateRequest) (stage.Output, error) {
	src, err := filepath.Abs(req.Source)
	if err != nil {
		return stage.Output{}, fmt.Errorf("resolve source path: %w", err)
	}
	if rel, ok := relativeTo(t.Dir, src); ok {
		src = rel
	}

	return t.Exec.Exec(ctx, t.command(
		"assemble",
		"--format", req.Format,
		src,
		"-o", req.Output,
	))
}

var (
	cyclesPattern = regexp.MustCompile(`(?im)^\s*cycles?\s*[:=]\s*(\d+)`)
	haltedPattern = regexp.MustCompile(`(?im)^\s*halted\s*[:=]\s*(\w+)`)
	noHaltPattern = regexp.MustCompile(`(?i)\b(did not halt|not halted|without halting|cycle limit|max(imum)?[ _-]?cycles? (reached|exceeded|hit))\b`)
)

// Execute runs "simulate" with full memory and register dumps.
//
// Output contract: a "cycles: N" line on stdout gives the cycle count. The
// run is not halted when the command fails, when stdout has "halted: no", or
// when stdout or stderr reports the ceiling ("did not halt", "cycle limit",
// "max cycles reached" and similar). A zero exit with none of these counts as
// halted, which is how a simulator without halt reporting behaves.
func (t *Toolkit) Execute(ctx context.Context, req ExecRequest) (ExecResult, error) {
	args := []string{
		"simulate",
		"--format", req.Format,
		req.Image,
		"--dump-memory", req.MemoryDump,
		"--dump-memory-full",
		"--dump-registers", req.RegisterDump,
	}
	if req.MaxCycles > 0 && t.MaxCyclesFlag != "" {
		args = append(args, t.MaxCyclesFlag, strconv.Itoa(req.MaxCycles))
	}

	out, err := t.Exec.Exec(ctx, t.command(args...))
	res := ExecResult{Halted: true, Output: out}
	if m := cyclesPattern.FindStringSubmatch(out.Stdout); m != nil {
		res.Cycles, _ = strconv.Atoi(m[1])
	}
	if m := haltedPattern.FindStringSubmatch(out.Stdout); m != nil {
		res.Halted = parseYes(m[1])
	} else if noHaltPattern.MatchString(out.Stdout) || noHaltPattern.MatchString(out.Stderr) {
		res.Halted = false
	}
	if err != nil {
		res.Halted = false
		return res, err
	}
	return res, nil
}

// Compare runs "mem-compare --ignore-comments --verbose".
// A non-zero exit is a mismatch; failing to start the tool is an error.
func (t *Toolkit) Compare(ctx context.Context, expected, actual string) (CompareResult, error) {
	out, err := t.Exec.Exec(ctx, t.command(
		"mem-compare",
		expected, actual,
		"--ignore-comments",
		"--verbose",
	))
	if err == nil {
		return CompareResult{Equal: true, Output: out}, nil
	}

	var exitErr *stage.ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return CompareResult{Equal: false, Output: out}, nil
	}
	return CompareResult{Output: out}, err
}

func parseYes(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "true", "1", "y":
		return true
	}
	return false
}

// relativeTo returns path relative to dir if path lies inside dir.
func relativeTo(dir, path string) (string, bool) {
	if dir == "" {
		return "", false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}
