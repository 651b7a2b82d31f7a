package acquisition

import (
	"context"
	"sync"
)

// Item is one pending buffer of raw sample bytes tagged with the epoch
// marker it belongs to (§4.2/§6.4).
type Item struct {
	Marker uint64
	Data   []byte
}

// Bridge is the producer/consumer handoff between the acquisition loop's
// device-owning goroutine and whatever goroutine decodes the data (C5).
// It mirrors the original's m_mutex-guarded m_data vector plus a
// ThreadChannel notification: a single mutex guards a plain FIFO slice, and
// an edge-triggered, buffered-1 channel wakes the consumer — multiple Push
// calls between two Wait/Drain calls coalesce into a single notification,
// exactly as ThreadChannel::send()'s Qt-signal delivery coalesces repeated
// emissions the receiving slot hasn't yet processed.
type Bridge struct {
	mu      sync.Mutex
	items   []Item
	notify  chan struct{}
	closed  bool
	closeCh chan struct{}
}

// NewBridge returns an empty Bridge.
func NewBridge() *Bridge {
	return &Bridge{notify: make(chan struct{}, 1), closeCh: make(chan struct{})}
}

// ErrClosed is returned by Wait once Close has been called and no further
// items will ever be pushed.
var ErrClosed = errClosed{}

type errClosed struct{}

func (errClosed) Error() string { return "acquisition: bridge closed" }

// Close marks the bridge as done: every blocked and future Wait call
// returns ErrClosed (or nil, if a Push notification is still pending).
// Wait does not look at the queue, so items pushed before Close stay
// available to Drain after Wait has returned ErrClosed. Idempotent. Called once the producer (Loop.Run) has returned, so the
// consumer goroutine can exit instead of blocking forever on a FIFO
// nothing will ever add to again.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.closeCh)
	}
}

// Push appends data to the FIFO, tagged with marker. A Push whose marker
// matches the most recently queued item's marker appends to that item's
// Data instead of creating a new one, matching readMem's "if m_data is
// empty or its last marker differs, push a new pair; otherwise extend the
// existing vector" coalescing. Push copies data, since callers reuse their
// read buffer across calls.
func (b *Bridge) Push(marker uint64, data []byte) {
	if len(data) == 0 {
		return
	}

	b.mu.Lock()
	if n := len(b.items); n > 0 && b.items[n-1].Marker == marker {
		b.items[n-1].Data = append(b.items[n-1].Data, data...)
	} else {
		buf := make([]byte, len(data))
		copy(buf, data)
		b.items = append(b.items, Item{Marker: marker, Data: buf})
	}
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Drain returns every item queued since the last Drain, in FIFO order, and
// empties the queue. Matches readChannelReceive's data.swap(m_data).
func (b *Bridge) Drain() []Item {
	b.mu.Lock()
	items := b.items
	b.items = nil
	b.mu.Unlock()
	return items
}

// Wait blocks until Push has been called at least once since the last Wait
// that returned nil, until Close has been called, or until ctx is done.
// Drain does not clear a pending notification, so a Wait after a Drain may
// return nil with nothing left in the queue.
func (b *Bridge) Wait(ctx context.Context) error {
	select {
	case <-b.notify:
		return nil
	case <-b.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
