package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/must"
	"github.com/schollz/progressbar/v2"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"
	"v.io/x/lib/cmd/flagvar"
)

// simulateFlags mirrors cmd/pbzip2/main.go's unzipFlags: a ProgressBar
// toggle gated the same way main.go's optsFromUnzipFlags gates its bar, on
// both the flag and whether stdout is a terminal.
type simulateFlags struct {
	Freq        float64 `cmd:"freq,1000000,'sample rate in Hz used to decode the replay log'"`
	ProgressBar bool    `cmd:"progress,true,'display a progress bar'"`
}

func newSimulateCmd() *cobra.Command {
	fl := &simulateFlags{}
	mux := newMuxFlag()

	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	must.Nil(flagvar.RegisterFlagsInStruct(fs, "cmd", fl, nil, nil))
	fs.Var(mux, "mux", "comma separated slot:input assignments, e.g. 0:20,1:19")

	cmd := &cobra.Command{
		Use:   "simulate <replay-log>",
		Short: "replay a recorded log through the decoder as if it were live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, size, err := readReplayLog(args[0])
			if err != nil {
				return err
			}

			var progress func(int)
			isTTY := terminal.IsTerminal(int(os.Stdout.Fd()))
			if fl.ProgressBar && isTTY {
				bar := progressbar.NewOptions64(size,
					progressbar.OptionSetBytes64(size),
					progressbar.OptionSetWriter(os.Stdout),
					progressbar.OptionSetPredictTime(true))
				bar.RenderBlank()
				progress = func(n int) { bar.Add(n) }
			}

			store, err := decodeReplayLog(records, mux.mux, mux.channelCount(), fl.Freq, progress)
			if err != nil {
				return err
			}
			if fl.ProgressBar && isTTY {
				fmt.Fprintln(os.Stdout)
			}
			printSummary(store)
			return nil
		},
	}
	cmd.Flags().AddGoFlagSet(fs)
	return cmd
}
