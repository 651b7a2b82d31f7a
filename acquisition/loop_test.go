package acquisition

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/avakar/lorris/usbomicron"
)

// fakeDevice simulates one capture epoch: a single unchoke reporting
// startAddr=0 and marker=42, a device buffer holding exactly 4 sample words
// (8 bytes) at get_sample_index's first reply, and a second
// get_sample_index reply that requests the loop stop instead of reporting
// new data — the shortest sequence that exercises unchoke -> readMem ->
// move_choke -> readNext -> quit.
type fakeDevice struct {
	mu                  sync.Mutex
	getSampleIndexCalls int
	loop                *Loop
}

func (f *fakeDevice) ControlWrite(ctx context.Context, reqType, request uint8, value, index uint16, data []byte) error {
	return nil
}

func (f *fakeDevice) ControlRead(ctx context.Context, reqType, request uint8, value, index uint16, data []byte) (int, error) {
	switch request {
	case usbomicron.CmdUnchoke:
		binary.LittleEndian.PutUint32(data[0:4], 0)
		binary.LittleEndian.PutUint64(data[4:12], 42)
		return 64, nil
	case usbomicron.CmdGetSampleIndex:
		f.mu.Lock()
		f.getSampleIndexCalls++
		n := f.getSampleIndexCalls
		f.mu.Unlock()

		binary.LittleEndian.PutUint32(data[0:4], 4)
		if n > 1 {
			f.loop.RequestQuit()
		}
		return 64, nil
	default:
		return 0, fmt.Errorf("fakeDevice: unexpected control read request %#x", request)
	}
}

func (f *fakeDevice) BulkRead(ctx context.Context, data []byte) (int, error) {
	for i := range data {
		data[i] = 0
	}
	copy(data, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	return len(data), nil
}

func TestLoopRunDrainsOneEpochThenQuits(t *testing.T) {
	bridge := NewBridge()
	dev := &fakeDevice{}
	loop := NewLoop(dev, bridge, 0)
	dev.loop = loop

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	items := bridge.Drain()
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1: %v", len(items), items)
	}
	if got, want := items[0].Marker, uint64(42); got != want {
		t.Fatalf("Marker = %d, want %d", got, want)
	}
	if got, want := string(items[0].Data), "\x01\x02\x03\x04\x05\x06\x07\x08"; got != want {
		t.Fatalf("Data = %q, want %q", got, want)
	}
	if dev.getSampleIndexCalls < 2 {
		t.Fatalf("getSampleIndexCalls = %d, want >= 2", dev.getSampleIndexCalls)
	}
}
