// Package acquisition drives the device-read loop (C3) and the
// producer/consumer handoff (C5) that feeds raw sample buffers to a
// decoder.Decoder. Concurrency here is grounded on parallel.go's
// worker/assemble goroutine pair and reader.go's WaitGroup+error-channel
// shutdown, adapted from "N decompression workers + reorder heap" to "one
// device-owning goroutine + one decode goroutine, strict FIFO" since the
// spec mandates a single task own the device endpoints and delivery order
// is already correct by construction.
package acquisition

import "context"

// Device is the USB transport the acquisition loop drives: control
// transfers for the command protocol (§6.1) and a bulk read for sample
// data (§6.2). usbomicron.Session implements this by wrapping a claimed
// gousb interface; tests implement it with an in-memory fake. Neither this
// package nor its tests import gousb directly, mirroring how Scanner and
// Decompressor hide their I/O behind io.Reader/io.Writer.
type Device interface {
	ControlWrite(ctx context.Context, reqType, request uint8, value, index uint16, data []byte) error
	ControlRead(ctx context.Context, reqType, request uint8, value, index uint16, data []byte) (int, error)
	BulkRead(ctx context.Context, data []byte) (int, error)
}

// CancelLevel is the acquisition loop's two-tier cancellation request,
// modeled over context.Context rather than reinventing a scheduler: Quit
// asks the loop to stop at its next iteration boundary (the current
// control/bulk transfer, if any, is allowed to finish); Abort additionally
// cuts short an in-progress readMem drain loop as soon as its current
// transfer completes. Canceling ctx itself is the hard-stop equivalent of
// Abort applied to whatever Device call is in flight.
type CancelLevel int32

const (
	// CancelNone is the zero value: no cancellation requested.
	CancelNone CancelLevel = iota
	// CancelQuit requests a graceful stop at the next loop iteration.
	CancelQuit
	// CancelAbort additionally stops mid-drain of a single readMem call.
	CancelAbort
)
