// Command tracedump inspects and replays recorded Omicron trace captures.
// It mirrors cmd/pbzip2's subcommand layout (inspect/scan/cat), adapted to
// this module's domain: inspect a captured trace set, simulate/replay a
// capture from a recorded byte log, and report run-length compression
// stats.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "tracedump",
		Short: "inspect and replay Omicron logic-analyzer trace captures",
	}
	root.AddCommand(newInspectCmd())
	root.AddCommand(newSimulateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
