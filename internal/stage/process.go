package stage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/alessio/shellescape"
)

// Command describes one external tool invocation.
type Command struct {
	Dir  string   // working directory; empty means the current one
	Args []string // Args[0] is the program
}

// String renders the command as a shell-quoted line, for logs.
func (c Command) String() string {
	return shellescape.QuoteCommand(c.Args)
}

// ExitError reports a tool that exited non-zero or could not be started.
type ExitError struct {
	Command string
	Code    int // -1 if the process never ran
	Stderr  string
	Err     error
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if e.Code < 0 {
		return fmt.Sprintf("%s: failed to start: %v", e.Command, e.Err)
	}
	if msg == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.Code, msg)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Executor runs external commands.
type Executor interface {
	Exec(ctx context.Context, cmd Command) (Output, error)
}

// Process is the os/exec backed Executor.
//
// stdout and stderr are captured separately. A non-zero exit code is returned
// as *ExitError with stderr attached.
type Process struct {
	Logger *slog.Logger
}

// NewProcess creates a Process executor. A nil logger discards.
func NewProcess(logger *slog.Logger) *Process {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Process{Logger: logger}
}

// Exec runs cmd and waits for it to exit.
func (p *Process) Exec(ctx context.Context, cmd Command) (Output, error) {
	if len(cmd.Args) == 0 {
		return Output{ExitCode: -1}, errors.New("empty command")
	}

	p.Logger.Debug("running command", "cmd", cmd.String(), "dir", cmd.Dir)

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	out := Output{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, &ExitError{
			Command: cmd.String(),
			Code:    out.ExitCode,
			Stderr:  out.Stderr,
			Err:     err,
		}
	}

	out.ExitCode = -1
	out.Stderr = err.Error()
	return out, &ExitError{
		Command: cmd.String(),
		Code:    -1,
		Stderr:  out.Stderr,
		Err:     err,
	}
}
