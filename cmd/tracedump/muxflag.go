package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/avakar/lorris/internal/bitpack"
)

// muxFlag parses a comma-separated slot:input list (e.g. "0:20,1:19") into a
// mux assignment, implementing flag.Value so each subcommand can register it
// with fs.Var next to the struct it registers through
// v.io/x/lib/cmd/flagvar — a custom flag.Value instead of a plain struct
// field, since a mux assignment isn't a single scalar.
type muxFlag struct {
	mux [bitpack.MaxMuxSlots]uint8
	set string
}

func newMuxFlag() *muxFlag {
	f := &muxFlag{}
	for i := range f.mux {
		f.mux[i] = bitpack.DisabledInput
	}
	return f
}

func (f *muxFlag) String() string {
	return f.set
}

func (f *muxFlag) Set(s string) error {
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid mux entry %q, want slot:input", pair)
		}
		slot, err := strconv.Atoi(parts[0])
		if err != nil || slot < 0 || slot >= bitpack.MaxMuxSlots {
			return fmt.Errorf("invalid mux slot %q", parts[0])
		}
		input, err := strconv.Atoi(parts[1])
		if err != nil || input < 0 || input > bitpack.DisabledInput {
			return fmt.Errorf("invalid mux input %q", parts[1])
		}
		f.mux[slot] = uint8(input)
	}
	f.set = s
	return nil
}

// channelCount returns one past the highest assigned slot, the
// channel_count startTrace itself would derive from this mux.
func (f *muxFlag) channelCount() int {
	n := bitpack.MaxMuxSlots
	for n > 0 && f.mux[n-1] == bitpack.DisabledInput {
		n--
	}
	return n
}
