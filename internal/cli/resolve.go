package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/turtlecheck/internal/resolve"
)

// Resolution is the resolver's answer for one identifier.
type Resolution struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Found bool   `json:"found"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <test>...",
		Short: "Show which program file a test identifier resolves to",
		Long: `Resolve test identifiers the way run does, without running anything.

An identifier is an absolute path, a path relative to the working directory,
or a bare name looked up in the configured program directories.

Exit codes:
  0 - Every identifier resolved
  2 - At least one identifier has no program file

Examples:
  turtlecheck resolve load_test
  turtlecheck resolve add_two ./my_prog.asm --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolveTests(rootOpts, args, cmd)
		},
	}
	return cmd
}

func resolveTests(opts *RootOptions, ids []string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	r := resolver(cfg)

	results := make([]Resolution, 0, len(ids))
	var missing []string
	for _, id := range ids {
		path, err := r.Lookup(id)
		switch {
		case err == nil:
			results = append(results, Resolution{ID: id, Path: path, Found: true})
		case errors.Is(err, resolve.ErrNotFound):
			results = append(results, Resolution{ID: id, Path: r.Resolve(id)})
			missing = append(missing, id)
		default:
			return WrapExitError(ExitCommandError, "failed to resolve "+id, err)
		}
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	if opts.Format == "json" {
		if len(missing) > 0 {
			msg := fmt.Sprintf("%d identifier(s) not found", len(missing))
			if err := f.Error(CodeNotFound, msg, results); err != nil {
				return err
			}
			return NewExitError(ExitCommandError, msg)
		}
		return f.Success(results)
	}

	w := cmd.OutOrStdout()
	for _, res := range results {
		if res.Found {
			fmt.Fprintf(w, "✓ %s -> %s\n", res.ID, res.Path)
		} else {
			fmt.Fprintf(w, "✗ %s: not found\n", res.ID)
		}
	}
	if len(missing) > 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("%d identifier(s) not found", len(missing)))
	}
	return nil
}
