package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/turtlecheck/internal/report"
	"github.com/roach88/turtlecheck/internal/stage"
)

// Run is one recorded suite run.
type Run struct {
	ID        string        `json:"id"`
	Started   time.Time     `json:"started"`
	Total     int           `json:"total"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	TestTime  time.Duration `json:"test_time_ns"`
	StageTime time.Duration `json:"stage_time_ns"`
}

// StageTotal is one stage's aggregate within a run.
type StageTotal struct {
	Stage stage.Name    `json:"stage"`
	Count int           `json:"count"`
	Total time.Duration `json:"total_ns"`
}

// TestRun is one test's outcome in a past run, for per-test history.
type TestRun struct {
	RunID   string         `json:"run_id"`
	Started time.Time      `json:"started"`
	Outcome report.Outcome `json:"outcome"`
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, total, passed, failed, test_time_ns, stage_time_ns
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, total, passed, failed, test_time_ns, stage_time_ns
		FROM runs
		WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// RunOutcomes returns the outcomes of a run in run order.
func (s *Store) RunOutcomes(ctx context.Context, runID string) ([]report.Outcome, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, source, status, failure_kind, detail, elapsed_ns
		FROM outcomes
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []report.Outcome{}
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}

// RunStages returns a run's stage totals in pipeline order.
func (s *Store) RunStages(ctx context.Context, runID string) ([]StageTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, runs, total_ns
		FROM stage_totals
		WHERE run_id = ?
		ORDER BY ord ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stage totals: %w", err)
	}
	defer rows.Close()

	stages := []StageTotal{}
	for rows.Next() {
		var st StageTotal
		var name string
		var total int64
		if err := rows.Scan(&name, &st.Count, &total); err != nil {
			return nil, fmt.Errorf("scan stage total: %w", err)
		}
		st.Stage = stage.Name(name)
		st.Total = time.Duration(total)
		stages = append(stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage totals: %w", err)
	}
	return stages, nil
}

// TestHistory returns the latest outcomes of the named test, newest first.
// A limit <= 0 means all.
func (s *Store) TestHistory(ctx context.Context, name string, limit int) ([]TestRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, o.name, o.source, o.status, o.failure_kind, o.detail, o.elapsed_ns
		FROM outcomes o
		JOIN runs r ON r.id = o.run_id
		WHERE o.name = ?
		ORDER BY r.started_at DESC, r.id DESC, o.seq ASC
		LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query test history: %w", err)
	}
	defer rows.Close()

	history := []TestRun{}
	for rows.Next() {
		var tr TestRun
		var started int64
		var o outcomeRow
		if err := rows.Scan(&tr.RunID, &started, &o.name, &o.source, &o.status, &o.kind, &o.detail, &o.elapsed); err != nil {
			return nil, fmt.Errorf("scan test history: %w", err)
		}
		tr.Started = time.Unix(0, started).UTC()
		tr.Outcome = o.outcome()
		history = append(history, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate test history: %w", err)
	}
	return history, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var started, testTime, stageTime int64
	err := row.Scan(&r.ID, &started, &r.Total, &r.Passed, &r.Failed, &testTime, &stageTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.Started = time.Unix(0, started).UTC()
	r.TestTime = time.Duration(testTime)
	r.StageTime = time.Duration(stageTime)
	return r, nil
}

type outcomeRow struct {
	name, source, status, kind, detail string
	elapsed                            int64
}

func (o outcomeRow) outcome() report.Outcome {
	return report.Outcome{
		Name:    o.name,
		Source:  o.source,
		Status:  report.Status(o.status),
		Elapsed: time.Duration(o.elapsed),
		Kind:    o.kind,
		Detail:  o.detail,
	}
}

func scanOutcome(row scanner) (report.Outcome, error) {
	var o outcomeRow
	if err := row.Scan(&o.name, &o.source, &o.status, &o.kind, &o.detail, &o.elapsed); err != nil {
		return report.Outcome{}, fmt.Errorf("scan outcome: %w", err)
	}
	return o.outcome(), nil
}
