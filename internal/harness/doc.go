// Package harness drives differential tests of the Turtle CPU.
//
// A test takes one program through four stages: translate the source into an
// image, run the image on the reference simulator, run it on the RTL candidate,
// then compare the two memory dumps and the two register dumps. The test
// passes only when both comparisons report equal.
//
// # Driver
//
// Driver runs one test in a private scratch workspace:
//
//	RESOLVING -> TRANSLATING -> REFERENCE_EXEC -> CANDIDATE_EXEC -> COMPARING -> PASSED
//	     \______________\_____________\________________\______________\--> FAILED
//
// A failed stage ends the test at once. The candidate stage first passes
// through the driver's setup.Gate, so the RTL is built once per Driver and a
// build failure fails every later candidate stage without a rebuild.
//
// On failure, or on success with Options.SaveDebug, every file in the
// workspace is copied flat into DebugDir/<test name> before the workspace is
// removed. Copy problems are reported as warnings and never change the verdict.
//
// # Suite
//
// Suite runs tests one after another in listing order. With no explicit list
// it discovers programs in the configured suite directories. A panic escaping
// the driver is recorded as an UNEXPECTED_FAULT failure with zero elapsed time
// and the suite moves on to the next test.
//
// # Failures
//
// Every failed test carries a *Failure whose Kind says which part of the
// pipeline gave up. Use the IsXxx helpers to classify wrapped errors.
package harness
