// Command ralph is the CLI entrypoint: 'ralph init <path>' lays out a
// project's .ralph/ directory, 'ralph run' drives the Iteration Controller
// over its pending tasks.
package main

import (
	"fmt"
	"os"

	"github.com/veighnsche/ralph/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
