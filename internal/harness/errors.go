package harness

import (
	"errors"
	"fmt"

	"github.com/roach88/turtlecheck/internal/stage"
)

// FailureKind categorizes a failed test.
type FailureKind string

const (
	// KindResolution indicates the test identifier has no source file.
	KindResolution FailureKind = "RESOLUTION_FAILURE"

	// KindTranslation indicates the source could not be turned into an image.
	KindTranslation FailureKind = "TRANSLATION_FAILURE"

	// KindExecution indicates an executor failed, or the reference did not halt.
	KindExecution FailureKind = "EXECUTION_FAILURE"

	// KindBuild indicates the candidate build failed. Sticky for the run.
	KindBuild FailureKind = "BUILD_FAILURE"

	// KindComparison indicates the dumps differ or the comparator failed.
	KindComparison FailureKind = "COMPARISON_FAILURE"

	// KindUnexpected indicates a fault nothing else anticipated.
	KindUnexpected FailureKind = "UNEXPECTED_FAULT"
)

var (
	// ErrMismatch is wrapped by comparison failures caused by differing dumps.
	ErrMismatch = errors.New("dumps differ")

	// ErrNondeterministic is wrapped when two translations of one source differ.
	ErrNondeterministic = errors.New("translation is not deterministic")
)

// Failure explains why a test did not pass.
type Failure struct {
	// Kind identifies the failure category.
	Kind FailureKind

	// Stage is the pipeline stage that failed, empty outside the pipeline.
	Stage stage.Name

	// Message is the detail shown to the user: tool stderr or fault text.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", f.Kind, f.Stage, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf returns the failure kind of err, or "" if err is not a *Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsResolutionFailure returns true if err is a resolution failure.
func IsResolutionFailure(err error) bool { return KindOf(err) == KindResolution }

// IsTranslationFailure returns true if err is a translation failure.
func IsTranslationFailure(err error) bool { return KindOf(err) == KindTranslation }

// IsExecutionFailure returns true if err is an execution failure.
func IsExecutionFailure(err error) bool { return KindOf(err) == KindExecution }

// IsBuildFailure returns true if err is a candidate build failure.
func IsBuildFailure(err error) bool { return KindOf(err) == KindBuild }

// IsComparisonFailure returns true if err is a comparison failure.
func IsComparisonFailure(err error) bool { return KindOf(err) == KindComparison }

// IsUnexpectedFault returns true if err is an unexpected fault.
func IsUnexpectedFault(err error) bool { return KindOf(err) == KindUnexpected }

// stageFailure classifies a failed stage result. A panic inside a stage is
// always an unexpected fault, whatever the stage.
func stageFailure(kind FailureKind, res stage.Result) *Failure {
	if errors.Is(res.Err, stage.ErrPanic) {
		kind = KindUnexpected
	}
	return &Failure{Kind: kind, Stage: res.Stage, Message: res.Detail, Err: res.Err}
}
