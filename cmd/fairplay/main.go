// The fairplay binary is the command-line client. It runs the analysis
// pipeline locally against an engine binary, with no server involved.
package main

import (
	"fmt"
	"os"

	"github.com/turtacn/FairPlay-Intelligence/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fairplay: %v\n", err)
		os.Exit(1)
	}
}
