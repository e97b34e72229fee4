// Package report accumulates per-test outcomes and per-stage timings over a
// suite run and renders the end-of-run summary.
//
// # Timing model
//
// Each test contributes one sample per pipeline stage it reached plus one
// full-test sample. Stage samples live in a fixed array indexed by
// stage.Pipeline, so the summary always lists stages in pipeline order.
//
// The time a test spends outside its stages (creating and removing the
// scratch workspace, copying debug artifacts) is not sampled directly. It is
// reported as overhead: the sum of per-test totals minus the sum of all
// stage samples.
//
// Nothing here influences whether a test passed.
package report
