// Command requerio validates and runs manifests and scenarios against the
// organism engine and inspects the action journal.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/requerio/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
