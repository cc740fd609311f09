// Command tether runs the shared physics playground and its tooling.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tether/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tether:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
