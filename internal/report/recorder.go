package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/turtlecheck/internal/stage"
)

// Status is the terminal state of one test.
type Status string

const (
	Passed Status = "PASSED"
	Failed Status = "FAILED"
)

// Outcome is the record of one attempted test.
type Outcome struct {
	Name    string        `json:"name"`
	Source  string        `json:"source,omitempty"`
	Status  Status        `json:"status"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Kind    string        `json:"failure_kind,omitempty"`
	Detail  string        `json:"detail,omitempty"`
}

// Timings holds duration samples for the pipeline stages and full tests.
type Timings struct {
	stages [len(stage.Pipeline)][]time.Duration
	full   []time.Duration
}

// Add appends a sample. Names outside the pipeline and FullTest are dropped.
func (t *Timings) Add(name stage.Name, d time.Duration) {
	if name == stage.FullTest {
		t.full = append(t.full, d)
		return
	}
	if i := name.Index(); i >= 0 {
		t.stages[i] = append(t.stages[i], d)
	}
}

// Samples returns the samples recorded for name.
func (t *Timings) Samples(name stage.Name) []time.Duration {
	if name == stage.FullTest {
		return t.full
	}
	if i := name.Index(); i >= 0 {
		return t.stages[i]
	}
	return nil
}

// Recorder collects the outcomes and timings of one suite run.
// Outcomes are kept in the order they were recorded.
type Recorder struct {
	RunID   string
	Started time.Time

	outcomes []Outcome
	timings  Timings
}

// NewRunID returns a fresh, time-ordered (UUIDv7) run ID.
func NewRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id.String(), nil
}

// NewRecorder creates an empty Recorder.
func NewRecorder(runID string, started time.Time) *Recorder {
	return &Recorder{RunID: runID, Started: started}
}

// RecordStage adds one stage timing sample.
func (r *Recorder) RecordStage(name stage.Name, d time.Duration) {
	r.timings.Add(name, d)
}

// RecordOutcome appends a test outcome and its full-test timing.
func (r *Recorder) RecordOutcome(o Outcome) {
	r.outcomes = append(r.outcomes, o)
	r.timings.Add(stage.FullTest, o.Elapsed)
}

// Outcomes returns the outcomes in run order.
func (r *Recorder) Outcomes() []Outcome {
	return append([]Outcome(nil), r.outcomes...)
}

// Timings returns the accumulated samples.
func (r *Recorder) Timings() *Timings {
	return &r.timings
}
