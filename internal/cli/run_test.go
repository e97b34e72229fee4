package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/turtlecheck/internal/dump"
	"github.com/roach88/turtlecheck/internal/harness"
	"github.com/roach88/turtlecheck/internal/history"
	"github.com/roach88/turtlecheck/internal/testutil"
)

// project is a temporary repository in the default Turtle layout.
type project struct {
	root      string
	candidate *testutil.Candidate
}

func newProject(t *testing.T) *project {
	t.Helper()
	root := t.TempDir()
	testutil.WriteProgram(t, filepath.Join(root, "tests", "test_programs"), "add_two.asm", testutil.AddTwo)
	testutil.WriteProgram(t, filepath.Join(root, "tests", "integration", "test_programs"), "no_halt.asm", testutil.NoHalt)
	testutil.WriteProgram(t, filepath.Join(root, "turtle-toolkit", "examples"), "countdown.asm", testutil.Countdown)
	// Keep the reference fast on the looping program.
	require.NoError(t, os.WriteFile(filepath.Join(root, "turtlecheck.yaml"), []byte("max_cycles: 200\n"), 0o644))
	return &project{root: root, candidate: &testutil.Candidate{}}
}

type result struct {
	stdout string
	stderr string
	err    error
}

func (p *project) run(t *testing.T, format string, args ...string) result {
	t.Helper()
	tools := harness.Tools{
		Translator: &testutil.Translator{},
		Reference:  &testutil.Reference{},
		Candidate:  p.candidate,
		Comparator: dump.Comparator{Verbose: true},
	}
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: format, ProjectRoot: p.root},
		Tools:       &tools,
		Clock:       testutil.NewClock(time.Millisecond),
	}
	cmd := newRunCommand(opts)

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestRun_SingleTestPasses(t *testing.T) {
	p := newProject(t)
	res := p.run(t, "text", "add_two")

	require.NoError(t, res.err)
	assert.Equal(t, ExitSuccess, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "Test PASSED: add_two")
	assert.Contains(t, res.stdout, "Test Results: 1 passed, 0 failed, 1 total")
	assert.Contains(t, res.stdout, "✓ All tests passed")
	assert.NoDirExists(t, filepath.Join(p.root, "tests", "integration", "debug_output", "add_two"))
}

func TestRun_FailingTestExitsOne(t *testing.T) {
	p := newProject(t)
	res := p.run(t, "text", "no_halt")

	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Equal(t, "1 of 1 tests failed", res.err.Error())
	assert.Contains(t, res.stdout, "Test FAILED: no_halt")
	assert.Contains(t, res.stdout, "[EXECUTION_FAILURE]")
	assert.Zero(t, p.candidate.BuildCount())
	assert.DirExists(t, filepath.Join(p.root, "tests", "integration", "debug_output", "no_halt"))
}

func TestRun_UnresolvableTestRunsNothing(t *testing.T) {
	p := newProject(t)
	res := p.run(t, "text", "add_two", "missing_test")

	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.err.Error(), "RESOLUTION_FAILURE")
	assert.Contains(t, res.err.Error(), "missing_test")
	assert.NotContains(t, res.stdout, "add_two")
	assert.Zero(t, p.candidate.BuildCount())
}

func TestRun_SuiteBuildsOnce(t *testing.T) {
	p := newProject(t)
	res := p.run(t, "text")

	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "Running test suite with 2 tests")
	assert.Contains(t, res.stdout, "Test PASSED: countdown")
	assert.Contains(t, res.stdout, "Test FAILED: no_halt")
	assert.Equal(t, 1, p.candidate.BuildCount())
}

func TestRun_Filter(t *testing.T) {
	p := newProject(t)
	res := p.run(t, "text", "--filter", "count*")

	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Running test suite with 1 tests")
	assert.NotContains(t, res.stdout, "no_halt")
}

func TestRun_TestFileWithName(t *testing.T) {
	p := newProject(t)
	path := filepath.Join(p.root, "tests", "test_programs", "add_two.asm")
	res := p.run(t, "text", "-f", path, "-n", "addition")

	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Test PASSED: addition")
}

func TestRun_FlagConflicts(t *testing.T) {
	p := newProject(t)

	res := p.run(t, "text", "-f", "add_two", "no_halt")
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))

	res = p.run(t, "text", "-n", "addition")
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
}

func TestRun_InvalidConfigOverride(t *testing.T) {
	p := newProject(t)
	res := p.run(t, "text", "--comparator", "diff", "add_two")

	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.err.Error(), "invalid configuration")
}

func TestRun_SaveDebugKeepsPassingWorkspace(t *testing.T) {
	p := newProject(t)
	res := p.run(t, "text", "--save-debug", "add_two")

	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Debug files saved to:")
	assert.FileExists(t, filepath.Join(p.root, "tests", "integration", "debug_output", "add_two", "add_two_rtl_registers.binstr.txt"))
}

func TestRun_JSON(t *testing.T) {
	p := newProject(t)
	res := p.run(t, "json", "add_two", "no_halt")

	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))

	// Progress goes to stderr so stdout is a single document.
	assert.Contains(t, res.stderr, "Test PASSED: add_two")

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Total       int `json:"total"`
			Passed      int `json:"passed"`
			Failed      int `json:"failed"`
			FailedTests []struct {
				Name string `json:"name"`
				Kind string `json:"failure_kind"`
			} `json:"failed_tests"`
		} `json:"data"`
		Error *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeTestsFailed, resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.FailedTests, 1)
	assert.Equal(t, "no_halt", resp.Data.FailedTests[0].Name)
	assert.Equal(t, "EXECUTION_FAILURE", resp.Data.FailedTests[0].Kind)
}

func TestRun_JSONSuccess(t *testing.T) {
	p := newProject(t)
	res := p.run(t, "json", "add_two")
	require.NoError(t, res.err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestRun_RecordsHistory(t *testing.T) {
	p := newProject(t)
	db := filepath.Join(t.TempDir(), "runs.db")
	res := p.run(t, "text", "--history", db, "add_two", "no_halt")
	require.Equal(t, ExitFailure, GetExitCode(res.err))

	st, err := history.Open(db)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Total)
	assert.Equal(t, 1, runs[0].Failed)

	outcomes, err := st.RunOutcomes(context.Background(), runs[0].ID)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "add_two", outcomes[0].Name)
	assert.Equal(t, "no_halt", outcomes[1].Name)
}

func TestRun_BadHistoryPathFailsBeforeRunning(t *testing.T) {
	p := newProject(t)
	db := filepath.Join(t.TempDir(), "missing", "dir", "runs.db")
	res := p.run(t, "text", "--history", db, "add_two")

	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.NotContains(t, res.stdout, "add_two")
}

func TestRun_TimingChart(t *testing.T) {
	p := newProject(t)
	chart := filepath.Join(t.TempDir(), "timing.png")
	res := p.run(t, "text", "--timing-chart", chart, "add_two")

	require.NoError(t, res.err)
	info, err := os.Stat(chart)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRun_BuildFailureFailsEveryTest(t *testing.T) {
	p := newProject(t)
	p.candidate.BuildErr = errors.New("verilator: syntax error")
	res := p.run(t, "text", "add_two", "countdown")

	require.Error(t, res.err)
	assert.Equal(t, "2 of 2 tests failed", res.err.Error())
	assert.Equal(t, 1, p.candidate.BuildCount())
	assert.Contains(t, res.stdout, "Test FAILED: add_two")
	assert.Contains(t, res.stdout, "Test FAILED: countdown")
	assert.Contains(t, res.stdout, "[BUILD_FAILURE]")
}

func TestRun_JSONCommandErrors(t *testing.T) {
	p := newProject(t)

	res := p.run(t, "json", "missing_test")
	require.Equal(t, ExitCommandError, GetExitCode(res.err))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)

	res = p.run(t, "json", "--max-cycles=-1", "add_two")
	require.Equal(t, ExitCommandError, GetExitCode(res.err))
	resp = CLIResponse{}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidConfig, resp.Error.Code)
}

func TestRun_TestNameWithSeparatorIsRejected(t *testing.T) {
	p := newProject(t)
	path := filepath.Join(p.root, "tests", "test_programs", "add_two.asm")

	for _, name := range []string{"sub/add", `sub\add`, ".."} {
		res := p.run(t, "text", "-f", path, "-n", name)
		require.Error(t, res.err, name)
		assert.Equal(t, ExitCommandError, GetExitCode(res.err), name)
		assert.Contains(t, res.err.Error(), "invalid --test-name", name)
		assert.NotContains(t, res.stdout, "Test FAILED", name)
	}
	assert.Zero(t, p.candidate.BuildCount())

	res := p.run(t, "json", "-f", path, "-n", "sub/add")
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidArgs, resp.Error.Code)
}

func TestRun_VerboseLogsResolvedPaths(t *testing.T) {
	p := newProject(t)
	tools := harness.Tools{
		Translator: &testutil.Translator{},
		Reference:  &testutil.Reference{},
		Candidate:  p.candidate,
		Comparator: dump.Comparator{},
	}
	cmd := newRunCommand(&RunOptions{
		RootOptions: &RootOptions{Format: "text", ProjectRoot: p.root, Verbose: true},
		Tools:       &tools,
		Clock:       testutil.NewClock(time.Millisecond),
	})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"add_two"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, stderr.String(), "resolved add_two -> "+filepath.Join(p.root, "tests", "test_programs", "add_two.asm"))
	assert.NotContains(t, stdout.String(), "resolved add_two")
}
