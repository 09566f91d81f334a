// framegraph compiles dataflow patches into frame schedules and runs them.
package main

import (
	"os"

	"github.com/roach88/framegraph/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
