package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedRun runs add_two and no_halt into a fresh ledger and returns its path.
func recordedRun(t *testing.T) string {
	t.Helper()
	p := newProject(t)
	db := filepath.Join(t.TempDir(), "runs.db")
	res := p.run(t, "text", "--history", db, "add_two", "no_halt")
	require.Equal(t, ExitFailure, GetExitCode(res.err))
	return db
}

func listedRunID(t *testing.T, db string) string {
	t.Helper()
	out, _, err := execute(t, "--format", "json", "history", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	return resp.Data[0].ID
}

func TestHistory_ListRuns(t *testing.T) {
	db := recordedRun(t)
	out, _, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "1/2 passed")
}

func TestHistory_RunDetail(t *testing.T) {
	db := recordedRun(t)
	id := listedRunID(t, db)

	out, _, err := execute(t, "history", "--db", db, "--run", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Run "+id)
	assert.Contains(t, out, "Test Results: 1 passed, 1 failed, 2 total")
	assert.Contains(t, out, "✓ add_two")
	assert.Contains(t, out, "✗ no_halt")
	assert.Contains(t, out, "[EXECUTION_FAILURE]")
	assert.Contains(t, out, "reference-execute")
}

func TestHistory_RunDetailJSON(t *testing.T) {
	db := recordedRun(t)
	id := listedRunID(t, db)

	out, _, err := execute(t, "--format", "json", "history", "--db", db, "--run", id)
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, id, resp.Data.Run.ID)
	require.Len(t, resp.Data.Outcomes, 2)
	assert.Equal(t, "no_halt", resp.Data.Outcomes[1].Name)
	assert.NotEmpty(t, resp.Data.Stages)
}

func TestHistory_TestAcrossRuns(t *testing.T) {
	db := recordedRun(t)
	out, _, err := execute(t, "history", "--db", db, "--test", "no_halt")
	require.NoError(t, err)
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "FAILED")

	out, _, err = execute(t, "history", "--db", db, "--test", "never_ran")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded for never_ran.")
}

func TestHistory_UnknownRun(t *testing.T) {
	db := recordedRun(t)
	_, _, err := execute(t, "history", "--db", db, "--run", "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistory_MissingDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "absent.db")
	_, _, err := execute(t, "history", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.NoFileExists(t, db)
}

func TestHistory_RunAndTestAreExclusive(t *testing.T) {
	db := recordedRun(t)
	_, _, err := execute(t, "history", "--db", db, "--run", "x", "--test", "y")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistory_RequiresDB(t *testing.T) {
	_, _, err := execute(t, "history")
	assert.Error(t, err)
}

func TestHistory_MissingDatabaseJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "absent.db")
	out, _, err := execute(t, "--format", "json", "history", "--db", db)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeHistory, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "history database not found")
}
