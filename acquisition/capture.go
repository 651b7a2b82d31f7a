package acquisition

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/avakar/lorris/internal/decoder"
)

// decode drains bridge and feeds every item to dec, in order, until bridge
// is closed or ctx is done. It is the consumer half of the C5 handoff: the
// producer (Loop.Run) never blocks on decoding, since Bridge.Push only
// takes the FIFO's mutex briefly.
func decode(ctx context.Context, bridge *Bridge, dec *decoder.Decoder) error {
	for {
		waitErr := bridge.Wait(ctx)

		// Whatever was queued before a Close or cancellation still needs
		// decoding: readMem may have pushed a final buffer just before
		// Loop.Run returned, and dropping it would silently truncate the
		// last segment.
		for _, item := range bridge.Drain() {
			if err := dec.ProcessBuffer(item.Marker, item.Data); err != nil {
				// ErrFraming is decoder-local and self-healing: the decoder
				// has already abandoned the odd buffer and will resume
				// cleanly at the next marker boundary, so the capture
				// session itself keeps running.
				if errors.Is(err, decoder.ErrFraming) {
					log.Printf("acquisition: %v, abandoning current segment", err)
					continue
				}
				return err
			}
		}

		if waitErr != nil {
			if errors.Is(waitErr, ErrClosed) {
				return nil
			}
			return waitErr
		}
	}
}

// Run drives one full capture session: a device-owning goroutine (Loop.Run)
// and a decode goroutine, wired together through bridge, until ctx is
// canceled or loop.Run returns. Grounded on reader.go's NewReader, which
// starts its scan/decompress pair the same way and waits on both via a
// WaitGroup. The loop's error is returned if it has one, otherwise the
// decode goroutine's. bridge is closed once loop.Run returns, so the decode
// goroutine always terminates.
func Run(ctx context.Context, loop *Loop, bridge *Bridge, dec *decoder.Decoder) error {
	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = loop.Run(ctx)
		bridge.Close()
	}()
	go func() {
		defer wg.Done()
		errs[1] = decode(ctx, bridge, dec)
	}()
	wg.Wait()

	if errs[0] != nil {
		return errs[0]
	}
	return errs[1]
}
