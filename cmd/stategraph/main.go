// Command stategraph runs and inspects state-graph workflows.
package main

import (
	"os"

	"github.com/randalmurphal/stategraph/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
