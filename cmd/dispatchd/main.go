// Command dispatchd runs a worker pool, an event bus and a scheduler as a
// standalone process exposing Prometheus metrics.
package main

import (
	"fmt"
	"os"

	"github.com/vnykmshr/dispatch/cmd/dispatchd/commands"
)

func main() {
	if err := commands.NewCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
