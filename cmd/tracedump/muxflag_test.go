package main

import (
	"testing"

	"github.com/avakar/lorris/internal/bitpack"
)

func TestMuxFlagSetParsesPairs(t *testing.T) {
	f := newMuxFlag()
	if err := f.Set("0:20,1:19,2:3"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if f.mux[0] != 20 || f.mux[1] != 19 || f.mux[2] != 3 {
		t.Fatalf("mux = %v, want [20 19 3 ...]", f.mux[:3])
	}
	for i := 3; i < bitpack.MaxMuxSlots; i++ {
		if f.mux[i] != bitpack.DisabledInput {
			t.Fatalf("mux[%d] = %d, want DisabledInput", i, f.mux[i])
		}
	}
}

func TestMuxFlagSetRejectsBadInput(t *testing.T) {
	f := newMuxFlag()
	for _, bad := range []string{"x:1", "0:x", "16:1", "0:32", "0"} {
		if err := f.Set(bad); err == nil {
			t.Errorf("Set(%q) = nil error, want error", bad)
		}
	}
}

func TestMuxFlagChannelCountTrimsTrailingDisabled(t *testing.T) {
	f := newMuxFlag()
	f.Set("0:1,2:2")
	if got, want := f.channelCount(), 3; got != want {
		t.Fatalf("channelCount() = %d, want %d", got, want)
	}
}

func TestMuxFlagString(t *testing.T) {
	f := newMuxFlag()
	f.Set("0:1")
	if got, want := f.String(), "0:1"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
