// Package resolve turns test identifiers into program source paths and
// discovers the default suite.
package resolve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound reports an identifier with no matching source file.
var ErrNotFound = errors.New("test program not found")

// Resolver maps a test identifier to a program source file.
//
// Lookup order:
//  1. an existing absolute path
//  2. an existing path relative to WorkDir
//  3. for an identifier without extension, Root/<dir>/<id><Ext> for each
//     entry of ProbeDirs, first match wins
//
// When nothing matches, Resolve returns the identifier unchanged.
type Resolver struct {
	Root      string   // project root, joined with relative ProbeDirs
	WorkDir   string   // base for relative identifiers; empty means os.Getwd
	ProbeDirs []string // ordered list of test-program directories
	Ext       string   // canonical source extension, e.g. ".asm"
}

// Resolve returns the source path for id, or id itself if none was found.
func (r *Resolver) Resolve(id string) string {
	if id == "" {
		return id
	}

	if filepath.IsAbs(id) {
		if isFile(id) {
			return id
		}
	} else if abs, err := r.abs(id); err == nil && isFile(abs) {
		return abs
	}

	if filepath.Ext(id) != "" {
		return id
	}

	for _, dir := range r.ProbeDirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(r.Root, dir)
		}
		candidate := filepath.Join(dir, id+r.Ext)
		if isFile(candidate) {
			return candidate
		}
	}

	return id
}

// Lookup is Resolve that fails with ErrNotFound when the result does not exist.
// A relative result is checked against WorkDir, not the process directory.
func (r *Resolver) Lookup(id string) (string, error) {
	path := r.Resolve(id)
	if path != "" && !filepath.IsAbs(path) {
		abs, err := r.abs(path)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", id, err)
		}
		path = abs
	}
	if !isFile(path) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return path, nil
}

// Name derives a test name from a source path: the base name without extension.
func Name(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (r *Resolver) abs(id string) (string, error) {
	base := r.WorkDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		base = wd
	}
	return filepath.Join(base, id), nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
