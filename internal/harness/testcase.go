package harness

import (
	"path/filepath"
)

// TestCase is one program under test and the scratch files derived from it.
// All paths live in Workspace, which belongs to this test alone.
type TestCase struct {
	Name   string
	Source string

	Workspace string

	Image           string // translated program
	ReferenceMemory string
	ReferenceRegs   string
	CandidateMemory string
	CandidateRegs   string
}

// NewTestCase derives the scratch file names for name inside workspace.
func NewTestCase(name, source, workspace string) TestCase {
	file := func(suffix string) string {
		return filepath.Join(workspace, name+"_"+suffix+".binstr.txt")
	}
	return TestCase{
		Name:            name,
		Source:          source,
		Workspace:       workspace,
		Image:           file("instructions"),
		ReferenceMemory: file("sim_memory"),
		ReferenceRegs:   file("sim_registers"),
		CandidateMemory: file("rtl_memory"),
		CandidateRegs:   file("rtl_registers"),
	}
}
