package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/turtlecheck/internal/config"
	"github.com/roach88/turtlecheck/internal/resolve"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ConfigPath  string
	ProjectRoot string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the turtlecheck CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "turtlecheck",
		Short: "Differential test harness for the Turtle CPU",
		Long: `turtlecheck runs Turtle CPU programs on the reference simulator and on the
RTL simulation and checks that both end with the same memory and registers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default <project-root>/"+config.FileName+")")
	cmd.PersistentFlags().StringVarP(&opts.ProjectRoot, "project-root", "r", "", "project root directory")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// logger builds the structured logger: text to w, Debug when verbose.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the config file, applies the project root flag and makes
// the root absolute. It does not validate; callers apply their own flag
// overrides first.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Discover(o.ConfigPath, o.ProjectRoot)
	if err != nil {
		return cfg, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	cfg, err = cfg.Absolute()
	if err != nil {
		return cfg, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// resolver builds the artifact resolver for cfg.
func resolver(cfg config.Config) *resolve.Resolver {
	return &resolve.Resolver{
		Root:      cfg.ProjectRoot,
		ProbeDirs: cfg.ProgramDirs,
		Ext:       cfg.SourceExt,
	}
}
