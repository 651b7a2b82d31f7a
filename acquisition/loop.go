package acquisition

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v3"

	"github.com/avakar/lorris/usbomicron"
)

// bufferSize mirrors the original's m_buffer[64*1024] scratch buffer used
// for every control/bulk transfer.
const bufferSize = 64 * 1024

// ErrDeviceGone reports that the device stopped responding to control
// transfers for longer than the loop's backoff policy allows, distinct from
// a single transient stall (which is retried silently).
var ErrDeviceGone = errors.New("acquisition: device not responding")

// Loop is the device-owning goroutine's state: the read cursor
// (startAddr/endAddr/marker) and choke/unchoke flag that
// readContinuously/readNext/readMem track across iterations in the
// original, grounded on omicronanalconn.cpp's OmicronAnalyzerConnection
// fields of the same purpose. One Loop drives one Device for the lifetime
// of one capture; it is not safe for concurrent use.
type Loop struct {
	dev     Device
	bridge  *Bridge
	intfNum uint16

	cancelLevel int32 // atomic CancelLevel

	startAddr uint32
	endAddr   uint32
	marker    uint64
	choked    bool

	newBackOff func() backoff.BackOff
}

// NewLoop returns a Loop that reads from dev (the claimed interface number
// is intfNum, passed as the wIndex of every control transfer) and pushes
// the raw sample bytes it reads to bridge.
func NewLoop(dev Device, bridge *Bridge, intfNum uint16) *Loop {
	return &Loop{
		dev:     dev,
		bridge:  bridge,
		intfNum: intfNum,
		choked:  true,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 5 * time.Second
			return b
		},
	}
}

// RequestQuit asks Run to stop at its next iteration boundary.
func (l *Loop) RequestQuit() { atomic.StoreInt32(&l.cancelLevel, int32(CancelQuit)) }

// RequestAbort asks Run to additionally cut short an in-progress readMem
// drain as soon as its current transfer completes.
func (l *Loop) RequestAbort() { atomic.StoreInt32(&l.cancelLevel, int32(CancelAbort)) }

func (l *Loop) cancelLevelNow() CancelLevel {
	return CancelLevel(atomic.LoadInt32(&l.cancelLevel))
}

// Run repeatedly unchokes (when choked), reads the device's current sample
// index and drains its ring buffer up to that index, and re-arms the choke
// — mirroring readContinuously's loop — until a Quit/Abort is requested,
// ctx is done, or the device stops responding for longer than the backoff
// policy allows.
func (l *Loop) Run(ctx context.Context) error {
	buf := make([]byte, bufferSize)
	bo := l.newBackOff()

	for {
		if l.cancelLevelNow() >= CancelQuit {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := l.step(ctx, buf)
		if err == nil {
			bo.Reset()
			continue
		}
		if !isTransient(err) {
			return err
		}
		d := bo.NextBackOff()
		if d == backoff.Stop {
			return fmt.Errorf("%w: %v", ErrDeviceGone, err)
		}
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// isTransient reports whether err is the kind of USB stall that is worth
// retrying (as opposed to a hard protocol or cancellation error). Every
// error this package itself returns is treated as transient except the
// ones that already indicate a terminal condition; a Device implementation
// that wants a particular transport error treated as terminal should wrap
// it so errors.Is matches one of those.
func isTransient(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ErrDeviceGone)
}

// step implements one iteration of readContinuously: an unchoke control
// read when choked (which also reports the new marker for the segment
// about to start, per §6.4), followed by readNext.
func (l *Loop) step(ctx context.Context, buf []byte) error {
	if l.choked {
		n, err := l.dev.ControlRead(ctx, usbomicron.ReqTypeIn, usbomicron.CmdUnchoke, 0, l.intfNum, buf[:64])
		if err != nil {
			return fmt.Errorf("unchoke: %w", err)
		}
		if n < 12 {
			return fmt.Errorf("unchoke: short response (%d bytes)", n)
		}
		l.startAddr = binary.LittleEndian.Uint32(buf[0:4])
		l.marker = binary.LittleEndian.Uint64(buf[4:12])
	}
	return l.readNext(ctx, buf)
}

// readNext asks the device for its current write address (get_sample_index)
// — a response of exactly 12 bytes means the device choked again, per the
// original's "m_choked = (r == 12)" — drains memory
// up to that address, and re-arms the choke at the new address.
func (l *Loop) readNext(ctx context.Context, buf []byte) error {
	n, err := l.dev.ControlRead(ctx, usbomicron.ReqTypeIn, usbomicron.CmdGetSampleIndex, 0, l.intfNum, buf[:64])
	if err != nil {
		return fmt.Errorf("get_sample_index: %w", err)
	}
	l.choked = n == 12
	if n < 4 {
		return fmt.Errorf("get_sample_index: short response (%d bytes)", n)
	}
	l.endAddr = binary.LittleEndian.Uint32(buf[0:4])

	if err := l.readMem(ctx, buf); err != nil {
		return err
	}

	var addrBuf [4]byte
	binary.LittleEndian.PutUint32(addrBuf[:], l.endAddr)
	if err := l.dev.ControlWrite(ctx, usbomicron.ReqTypeOut, usbomicron.CmdMoveChoke, 0, l.intfNum, addrBuf[:]); err != nil {
		return fmt.Errorf("move_choke: %w", err)
	}
	return nil
}

// readMem drains the device's sample ring buffer from startAddr up to
// endAddr in chunks of at most len(buf), 32-sample-word aligned, pushing
// each chunk to the bridge tagged with the segment's marker. The alignment
// and length-clamping arithmetic (word count -> byte count, round up to a
// 64-byte bulk-transfer boundary, mask to the ring buffer's 25-bit address
// space) is taken directly from the original's readMem/readNext, which
// reads one word-aligned byte address but must bulk-read whole 64-byte
// transfers and then discard the leading bytes belonging to words already
// delivered in a previous chunk.
func (l *Loop) readMem(ctx context.Context, buf []byte) error {
	aligned := l.startAddr &^ 31
	var addrBuf [4]byte
	binary.LittleEndian.PutUint32(addrBuf[:], aligned)
	if err := l.dev.ControlWrite(ctx, usbomicron.ReqTypeOut, usbomicron.CmdSetRdAddr, 0, l.intfNum, addrBuf[:]); err != nil {
		return fmt.Errorf("set_rdaddr: %w", err)
	}

	for l.startAddr != l.endAddr {
		if l.cancelLevelNow() >= CancelAbort {
			return nil
		}

		aligned = l.startAddr &^ 31
		totalLen := (l.endAddr - aligned) * 2
		totalLen = (totalLen + 63) &^ 63
		totalLen &= 0x1ffffff
		readLen := totalLen
		if readLen > uint32(len(buf)) {
			readLen = uint32(len(buf))
		}

		n, err := l.dev.BulkRead(ctx, buf[:readLen])
		if err != nil {
			return fmt.Errorf("bulk read: %w", err)
		}

		totalLen = (l.endAddr - aligned) * 2
		totalLen &= 0x1ffffff
		keepLen := totalLen
		if uint32(n) < keepLen {
			keepLen = uint32(n)
		}

		skip := 2 * (l.startAddr & 31)
		if skip > keepLen {
			skip = keepLen
		}
		l.bridge.Push(l.marker, buf[skip:keepLen])

		l.startAddr = (aligned + keepLen/2) & 0xffffff
	}
	return nil
}
