// Package config holds the harness configuration: where the project lives,
// which tools to call and where test programs are found.
//
// Values come from Default, then an optional YAML file, then command-line
// overrides. The merged result is checked against an embedded CUE schema
// before use.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the project root when no explicit
// path is given.
const FileName = "turtlecheck.yaml"

// Comparator backends.
const (
	ComparatorToolkit = "toolkit"
	ComparatorBuiltin = "builtin"
)

// Config describes one harness instance.
type Config struct {
	// ProjectRoot is the directory the other relative paths hang off.
	ProjectRoot string `yaml:"project_root" json:"project_root"`

	ToolkitDir string `yaml:"toolkit_dir" json:"toolkit_dir"`
	RTLDir     string `yaml:"rtl_dir" json:"rtl_dir"`
	DebugDir   string `yaml:"debug_dir" json:"debug_dir"`

	// ProgramDirs is the resolver's probe order for bare test names.
	ProgramDirs []string `yaml:"program_dirs" json:"program_dirs"`

	// SuiteDirs are enumerated, in order, when no tests are named.
	SuiteDirs []string `yaml:"suite_dirs" json:"suite_dirs"`

	SourceExt string `yaml:"source_ext" json:"source_ext"`

	// Toolkit is the command prefix of the assembler/simulator/comparator CLI.
	Toolkit []string `yaml:"toolkit" json:"toolkit"`

	// Make is the build tool driving the RTL simulation.
	Make        string `yaml:"make" json:"make"`
	BuildTarget string `yaml:"build_target" json:"build_target"`
	RunTarget   string `yaml:"run_target" json:"run_target"`

	// ImageFormat is the translator output format handed to both executors.
	ImageFormat string `yaml:"image_format" json:"image_format"`

	MaxCycles int `yaml:"max_cycles" json:"max_cycles"`

	// MaxCyclesFlag is the simulate option that takes MaxCycles, e.g.
	// "--max-cycles". Empty means the toolkit is not told the ceiling and
	// its built-in one applies.
	MaxCyclesFlag string `yaml:"max_cycles_flag" json:"max_cycles_flag"`
	Comparator    string `yaml:"comparator" json:"comparator"`

	// ScratchDir is the parent of per-test workspaces; empty means os.TempDir.
	ScratchDir string `yaml:"scratch_dir" json:"scratch_dir"`

	SaveDebug        bool `yaml:"save_debug" json:"save_debug"`
	CheckDeterminism bool `yaml:"check_determinism" json:"check_determinism"`
}

// Default returns the layout of the Turtle CPU repository.
func Default() Config {
	return Config{
		ProjectRoot: ".",
		ToolkitDir:  "turtle-toolkit",
		RTLDir:      filepath.Join("src", "turtle_cpu_top"),
		DebugDir:    filepath.Join("tests", "integration", "debug_output"),
		ProgramDirs: []string{
			filepath.Join("tests", "test_programs"),
			filepath.Join("tests", "integration", "test_programs"),
			filepath.Join("turtle-toolkit", "examples"),
		},
		SuiteDirs: []string{
			filepath.Join("turtle-toolkit", "examples"),
			filepath.Join("tests", "integration", "test_programs"),
		},
		SourceExt:   ".asm",
		Toolkit:     []string{"poetry", "run", "turtle-toolkit"},
		Make:        "make",
		BuildTarget: "rebuild",
		RunTarget:   "run",
		ImageFormat: "binstr",
		MaxCycles:   100000,
		Comparator:  ComparatorToolkit,
	}
}

// Load reads a YAML file over Default.
//
// Unknown keys are rejected so typos surface instead of being ignored.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Discover loads path if set, else root/FileName if it exists, else Default.
// An empty root means the working directory. The returned config has
// ProjectRoot set to root when root is non-empty; otherwise the file decides.
func Discover(path, root string) (Config, error) {
	cfg := Default()

	if path == "" {
		candidate := filepath.Join(root, FileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if root != "" {
		cfg.ProjectRoot = root
	}
	return cfg, nil
}

// Path joins p to the project root unless it is already absolute.
func (c Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectRoot, p)
}

// Absolute returns a copy with ProjectRoot made absolute.
func (c Config) Absolute() (Config, error) {
	root, err := filepath.Abs(c.ProjectRoot)
	if err != nil {
		return c, fmt.Errorf("resolve project root: %w", err)
	}
	c.ProjectRoot = root
	return c, nil
}
