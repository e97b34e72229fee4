package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// AddTwo sets R1=2 and R2=3, computes R3=R1+R2, stores it and halts.
const AddTwo = `# add_two: r3 = 2 + 3
li r1, 2
li r2, 3
add r3, r1, r2   ; r3 = 5
st r3, 0
halt
`

// NoHalt loops forever.
const NoHalt = `# spin without halting
li r1, 1
j 1      ; jump to self
`

// Countdown subtracts down to zero through memory stores.
const Countdown = `li r1, 3
li r2, 1
sub r1, r1, r2
st r1, 1
sub r1, r1, r2
st r1, 2
halt
`

// BadSyntax does not assemble.
const BadSyntax = `li r1, 2
mul r3, r1, r1
halt
`

// WriteProgram writes src to dir/name and returns the path.
func WriteProgram(t testing.TB, dir, name, src string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}
