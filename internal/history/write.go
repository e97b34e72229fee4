package history

import (
	"context"
	"fmt"

	"github.com/roach88/turtlecheck/internal/report"
)

// RecordRun appends a finished suite run to the ledger.
//
// Writing the same run ID twice fails: runs are immutable once recorded.
func (s *Store) RecordRun(ctx context.Context, rec *report.Recorder) error {
	if rec.RunID == "" {
		return fmt.Errorf("record run: empty run id")
	}
	sum := rec.Summary()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, total, passed, failed, test_time_ns, stage_time_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RunID,
		rec.Started.UTC().UnixNano(),
		sum.Total,
		sum.Passed,
		sum.Failed,
		int64(sum.TestTime),
		int64(sum.StageTime),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", rec.RunID, err)
	}

	for i, o := range rec.Outcomes() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outcomes
			(run_id, seq, name, source, status, failure_kind, detail, elapsed_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.RunID, i, o.Name, o.Source, string(o.Status), o.Kind, o.Detail, int64(o.Elapsed))
		if err != nil {
			return fmt.Errorf("record outcome %s: %w", o.Name, err)
		}
	}

	for i, st := range sum.Stages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stage_totals (run_id, stage, ord, runs, total_ns)
			VALUES (?, ?, ?, ?, ?)
		`, rec.RunID, string(st.Stage), i, st.Count, int64(st.Total))
		if err != nil {
			return fmt.Errorf("record stage %s: %w", st.Stage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: commit: %w", err)
	}
	return nil
}
