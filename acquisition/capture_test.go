package acquisition

import (
	"context"
	"testing"
	"time"

	"github.com/avakar/lorris/internal/bitpack"
	"github.com/avakar/lorris/internal/decoder"
	"github.com/avakar/lorris/trace"
)

// TestRunDecodesOneEpoch exercises the full C3+C5+C2 wiring end to end:
// Loop.Run reads one epoch from a fake single-channel device, Bridge hands
// it to the decode goroutine, and the decoder appends it to the store.
func TestRunDecodesOneEpoch(t *testing.T) {
	bridge := NewBridge()
	dev := &fakeDevice{}
	loop := NewLoop(dev, bridge, 0)
	dev.loop = loop

	var mux [bitpack.MaxMuxSlots]uint8
	for i := range mux {
		mux[i] = bitpack.DisabledInput
	}
	mux[0] = 0

	store := trace.NewStore()
	dec := decoder.New(store, mux, 1, 1000)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := Run(ctx, loop, bridge, dec); err != nil {
		t.Fatalf("Run: %v", err)
	}

	tr := store.Trace(0)
	if tr == nil {
		t.Fatalf("Trace(0) = nil, want a decoded trace")
	}
	// Four 16-bit words, one rounded channel: 64 bits decoded as a single
	// plain run sealed at the buffer's end.
	if got, want := store.Length(tr), uint64(64); got != want {
		t.Fatalf("Length = %d, want %d", got, want)
	}
}

// TestDecodeSurvivesFramingErrorAndContinues checks spec.md §7's
// propagation rule: an odd-length buffer is decoder-local and
// self-healing, so decode must not surface decoder.ErrFraming as the
// capture session's error, and must keep decoding whatever comes after the
// next marker boundary.
func TestDecodeSurvivesFramingErrorAndContinues(t *testing.T) {
	bridge := NewBridge()

	var mux [bitpack.MaxMuxSlots]uint8
	for i := range mux {
		mux[i] = bitpack.DisabledInput
	}
	mux[0] = 0

	store := trace.NewStore()
	dec := decoder.New(store, mux, 1, 1000)

	// marker 1: an odd-length buffer, abandoned by the decoder as a
	// framing error. marker 2: a fresh segment with a clean one-word
	// buffer that must still decode once the bridge delivers it.
	bridge.Push(1, []byte{0x00, 0x00, 0x00})
	bridge.Push(2, []byte{0xff, 0xff})
	bridge.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := decode(ctx, bridge, dec); err != nil {
		t.Fatalf("decode: %v, want nil (framing errors must self-heal)", err)
	}

	tr := store.Trace(0)
	if tr == nil {
		t.Fatalf("Trace(0) = nil, want the post-framing-error segment decoded")
	}
	if got, want := store.Length(tr), uint64(16); got != want {
		t.Fatalf("Length = %d, want %d", got, want)
	}
}
