package main

import (
	"flag"
	"fmt"

	"github.com/grailbio/base/must"
	"github.com/spf13/cobra"
	"v.io/x/lib/cmd/flagvar"

	"github.com/avakar/lorris/trace"
)

// inspectFlags mirrors cmd/pbzip2/pbz2-inspect.go's commandline struct:
// registered through v.io/x/lib/cmd/flagvar instead of cobra's own pflag
// binding, since that is how the teacher wires its inspect tool's flags.
// The mux-assignment flag is not part of this struct; it is a muxFlag
// registered separately with fs.Var.
type inspectFlags struct {
	Freq float64 `cmd:"freq,1000000,'sample rate in Hz used to decode the replay log'"`
}

func newInspectCmd() *cobra.Command {
	fl := &inspectFlags{}
	mux := newMuxFlag()

	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	must.Nil(flagvar.RegisterFlagsInStruct(fs, "cmd", fl, nil, nil))
	fs.Var(mux, "mux", "comma separated slot:input assignments, e.g. 0:20,1:19")

	cmd := &cobra.Command{
		Use:   "inspect <replay-log>",
		Short: "decode a recorded replay log and summarize its channels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, _, err := readReplayLog(args[0])
			if err != nil {
				return err
			}
			store, err := decodeReplayLog(records, mux.mux, mux.channelCount(), fl.Freq, nil)
			if err != nil {
				return err
			}
			printSummary(store)
			return nil
		},
	}
	cmd.Flags().AddGoFlagSet(fs)
	return cmd
}

func printSummary(store *trace.Store) {
	fmt.Printf("%-8s %12s %10s %12s\n", "channel", "samples", "blocks", "start_time")
	for _, ch := range store.Channels() {
		for _, tr := range store.Traces(ch) {
			fmt.Printf("%-8d %12d %10d %12.6f\n",
				ch, tr.Length(), tr.BlockCount(), tr.StartTime())
		}
	}
}
