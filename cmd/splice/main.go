// Command splice compiles, runs, tests and replays descriptor-tree views.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/splice/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "splice:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
