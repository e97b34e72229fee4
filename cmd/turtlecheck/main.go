// Command turtlecheck runs differential tests of the Turtle CPU RTL against
// the reference simulator.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/turtlecheck/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
