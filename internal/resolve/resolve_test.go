package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("halt\n"), 0644))
}

func newResolver(root string) *Resolver {
	return &Resolver{
		Root:      root,
		WorkDir:   root,
		ProbeDirs: []string{"tests/test_programs", "tests/integration/test_programs", "turtle-toolkit/examples"},
		Ext:       ".asm",
	}
}

func TestResolve_BareNameProbesDirs(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, "tests", "test_programs", "load_test.asm")
	writeFile(t, want)

	r := newResolver(root)
	assert.Equal(t, want, r.Resolve("load_test"))
}

func TestResolve_FirstProbeDirWins(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "tests", "integration", "test_programs", "add_two.asm")
	second := filepath.Join(root, "turtle-toolkit", "examples", "add_two.asm")
	writeFile(t, second)
	writeFile(t, first)

	r := newResolver(root)
	assert.Equal(t, first, r.Resolve("add_two"))
}

func TestResolve_MissingReturnsIdentifier(t *testing.T) {
	r := newResolver(t.TempDir())
	assert.Equal(t, "missing_test", r.Resolve("missing_test"))

	_, err := r.Lookup("missing_test")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "missing_test")
}

func TestResolve_AbsolutePath(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "elsewhere", "prog.asm")
	writeFile(t, path)

	r := newResolver(t.TempDir())
	assert.Equal(t, path, r.Resolve(path))
}

func TestResolve_RelativePathBecomesAbsolute(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "programs", "jump.asm")
	writeFile(t, path)

	r := newResolver(root)
	assert.Equal(t, path, r.Resolve(filepath.Join("programs", "jump.asm")))
}

func TestResolve_WithExtensionIsNotProbed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tests", "test_programs", "store.asm"))

	r := newResolver(root)
	assert.Equal(t, "store.asm", r.Resolve("store.asm"))
}

func TestResolve_DirectoryIsNotAMatch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tests", "test_programs", "loop.asm"), 0755))

	r := newResolver(root)
	assert.Equal(t, "loop", r.Resolve("loop"))
}

func TestResolve_Empty(t *testing.T) {
	r := newResolver(t.TempDir())
	assert.Equal(t, "", r.Resolve(""))
}

func TestName(t *testing.T) {
	assert.Equal(t, "add_two", Name("/a/b/add_two.asm"))
	assert.Equal(t, "load_test", Name("load_test"))
}

func TestLookup_RelativeIdentifierUsesWorkDir(t *testing.T) {
	// resolve_test.go exists in the process directory but not in WorkDir.
	require.FileExists(t, "resolve_test.go")
	r := newResolver(t.TempDir())

	_, err := r.Lookup("resolve_test.go")
	assert.ErrorIs(t, err, ErrNotFound)

	path := filepath.Join(r.WorkDir, "resolve_test.go")
	writeFile(t, path)
	got, err := r.Lookup("resolve_test.go")
	require.NoError(t, err)
	assert.Equal(t, path, got)
}
