package report

import (
	"time"

	"github.com/roach88/turtlecheck/internal/stage"
)

// StageSummary aggregates the samples of one stage.
type StageSummary struct {
	Stage   stage.Name    `json:"stage"`
	Count   int           `json:"count"`
	Total   time.Duration `json:"total_ns"`
	Average time.Duration `json:"average_ns"`
	Share   float64       `json:"share_percent"` // of the summed test time
}

// Summary is the end-of-run report.
type Summary struct {
	RunID       string         `json:"run_id,omitempty"`
	Total       int            `json:"total"`
	Passed      int            `json:"passed"`
	Failed      int            `json:"failed"`
	SuccessRate float64        `json:"success_rate_percent"`
	Stages      []StageSummary `json:"stages"`
	TestTime    time.Duration  `json:"test_time_ns"`
	StageTime   time.Duration  `json:"stage_time_ns"`
	Overhead    time.Duration  `json:"overhead_ns"`
	FailedTests []Outcome      `json:"failed_tests"`
	PassedTests []Outcome      `json:"passed_tests"`
}

// Summary computes the report for everything recorded so far.
func (r *Recorder) Summary() Summary {
	s := Summary{
		RunID:       r.RunID,
		Total:       len(r.outcomes),
		Stages:      make([]StageSummary, 0, len(stage.Pipeline)),
		FailedTests: []Outcome{},
		PassedTests: []Outcome{},
	}

	for _, o := range r.outcomes {
		s.TestTime += o.Elapsed
		if o.Status == Passed {
			s.Passed++
			s.PassedTests = append(s.PassedTests, o)
		} else {
			s.Failed++
			s.FailedTests = append(s.FailedTests, o)
		}
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Passed) / float64(s.Total) * 100
	}

	for _, name := range stage.Pipeline {
		samples := r.timings.Samples(name)
		ss := StageSummary{Stage: name, Count: len(samples)}
		for _, d := range samples {
			ss.Total += d
		}
		if ss.Count > 0 {
			ss.Average = ss.Total / time.Duration(ss.Count)
		}
		s.StageTime += ss.Total
		s.Stages = append(s.Stages, ss)
	}

	s.Overhead = s.TestTime - s.StageTime
	for i := range s.Stages {
		s.Stages[i].Share = percent(s.Stages[i].Total, s.TestTime)
	}

	return s
}

// OverheadShare is Overhead as a percentage of TestTime.
func (s Summary) OverheadShare() float64 {
	return percent(s.Overhead, s.TestTime)
}

// OK reports whether every test passed.
func (s Summary) OK() bool {
	return s.Failed == 0
}

func percent(part, whole time.Duration) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
