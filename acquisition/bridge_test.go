package acquisition

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBridgeCoalescesSameMarkerPushes(t *testing.T) {
	b := NewBridge()
	b.Push(1, []byte{1, 2})
	b.Push(1, []byte{3, 4})
	b.Push(2, []byte{5})

	items := b.Drain()
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if got, want := items[0].Marker, uint64(1); got != want {
		t.Fatalf("items[0].Marker = %d, want %d", got, want)
	}
	if got, want := string(items[0].Data), "\x01\x02\x03\x04"; got != want {
		t.Fatalf("items[0].Data = %q, want %q", got, want)
	}
	if got, want := items[1].Marker, uint64(2); got != want {
		t.Fatalf("items[1].Marker = %d, want %d", got, want)
	}
}

func TestBridgeDrainEmptiesQueue(t *testing.T) {
	b := NewBridge()
	b.Push(1, []byte{1})
	b.Drain()
	if items := b.Drain(); len(items) != 0 {
		t.Fatalf("second Drain() = %v, want empty", items)
	}
}

func TestBridgeWaitBlocksUntilPush(t *testing.T) {
	b := NewBridge()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := b.Wait(ctx); err == nil {
		t.Fatalf("Wait on empty bridge returned nil, want a context deadline error")
	}

	b2 := NewBridge()
	b2.Push(1, []byte{1})
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := b2.Wait(ctx2); err != nil {
		t.Fatalf("Wait after Push: %v", err)
	}
}

func TestBridgeCloseUnblocksWait(t *testing.T) {
	b := NewBridge()
	done := make(chan error, 1)
	go func() {
		done <- b.Wait(context.Background())
	}()

	b.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("Wait after Close: %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Wait did not return after Close")
	}

	// A second Close is a no-op, not a panic on a double close(chan).
	b.Close()
}
