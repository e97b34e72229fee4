package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/turtlecheck/internal/report"
	"github.com/roach88/turtlecheck/internal/stage"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, started time.Time, failing bool) *report.Recorder {
	rec := report.NewRecorder(id, started)
	rec.RecordStage(stage.Translate, 10*time.Millisecond)
	rec.RecordStage(stage.ReferenceExec, 20*time.Millisecond)
	rec.RecordStage(stage.CandidateExec, 300*time.Millisecond)
	rec.RecordStage(stage.Compare, 5*time.Millisecond)
	rec.RecordOutcome(report.Outcome{Name: "add_two", Source: "/p/add_two.asm", Status: report.Passed, Elapsed: 400 * time.Millisecond})
	if failing {
		rec.RecordStage(stage.Translate, 10*time.Millisecond)
		rec.RecordStage(stage.ReferenceExec, 50*time.Millisecond)
		rec.RecordOutcome(report.Outcome{
			Name: "no_halt", Source: "/p/no_halt.asm", Status: report.Failed,
			Elapsed: 70 * time.Millisecond, Kind: "EXECUTION_FAILURE",
			Detail: "reference executor did not halt after 100 cycles",
		})
	}
	return rec
}

func TestOpen_AppliesPragmasAndVersion(t *testing.T) {
	s := openTest(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	assert.Error(t, err)
}

func TestRecordRun_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	started := time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC)
	rec := sampleRun("run-a", started, true)

	require.NoError(t, s.RecordRun(ctx, rec))

	run, err := s.GetRun(ctx, "run-a")
	require.NoError(t, err)
	assert.True(t, started.Equal(run.Started))
	run.Started = started
	assert.Equal(t, Run{
		ID:        "run-a",
		Started:   started,
		Total:     2,
		Passed:    1,
		Failed:    1,
		TestTime:  470 * time.Millisecond,
		StageTime: 395 * time.Millisecond,
	}, run)

	outcomes, err := s.RunOutcomes(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, rec.Outcomes(), outcomes)

	stages, err := s.RunStages(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, stages, 4)
	assert.Equal(t, StageTotal{Stage: stage.Translate, Count: 2, Total: 20 * time.Millisecond}, stages[0])
	assert.Equal(t, StageTotal{Stage: stage.Compare, Count: 1, Total: 5 * time.Millisecond}, stages[3])
}

func TestRecordRun_Immutable(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	rec := sampleRun("run-a", time.Now(), false)

	require.NoError(t, s.RecordRun(ctx, rec))
	assert.Error(t, s.RecordRun(ctx, rec))

	outcomes, err := s.RunOutcomes(ctx, "run-a")
	require.NoError(t, err)
	assert.Len(t, outcomes, 1, "failed rewrite leaves the first record intact")
}

func TestRecordRun_RequiresID(t *testing.T) {
	s := openTest(t)
	assert.Error(t, s.RecordRun(context.Background(), report.NewRecorder("", time.Now())))
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	base := time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, s.RecordRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour), i == 1)))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-1", runs[2].ID)

	limited, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestListRuns_Empty(t *testing.T) {
	runs, err := openTest(t).ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestRunOutcomes_UnknownRun(t *testing.T) {
	_, err := openTest(t).RunOutcomes(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestTestHistory(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	base := time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordRun(ctx, sampleRun("run-1", base, true)))
	require.NoError(t, s.RecordRun(ctx, sampleRun("run-2", base.Add(time.Hour), false)))

	hist, err := s.TestHistory(ctx, "add_two", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "run-2", hist[0].RunID)
	assert.Equal(t, report.Passed, hist[0].Outcome.Status)

	hist, err = s.TestHistory(ctx, "no_halt", 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "EXECUTION_FAILURE", hist[0].Outcome.Kind)
}
