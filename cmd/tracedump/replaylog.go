package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/avakar/lorris/internal/bitpack"
	"github.com/avakar/lorris/internal/decoder"
	"github.com/avakar/lorris/trace"
)

// replayRecord is one buffer of a recorded capture: the epoch marker it was
// tagged with (§4.2/§6.4) and the raw little-endian sample-word bytes
// acquisition.Bridge would have delivered to the decoder.
type replayRecord struct {
	Marker uint64
	Data   []byte
}

// readReplayLog reads a sequence of (marker uint64 LE, length uint32 LE,
// data) records from path — the input simulate/inspect replay against in
// place of a live USB device. No code in this module writes the format; the
// tests build such logs by hand. It has no analogue in the original (which
// never persists raw buffers to disk); it exists purely so this CLI has something concrete to
// replay, per SPEC_FULL.md's "simulate/replay a capture from a recorded
// byte log".
func readReplayLog(path string) ([]replayRecord, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}

	var records []replayRecord
	var header [12]byte
	for {
		if _, err := io.ReadFull(f, header[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, 0, fmt.Errorf("read record header: %w", err)
		}
		marker := binary.LittleEndian.Uint64(header[0:8])
		length := binary.LittleEndian.Uint32(header[8:12])

		data := make([]byte, length)
		if _, err := io.ReadFull(f, data); err != nil {
			return nil, 0, fmt.Errorf("read record data (%d bytes): %w", length, err)
		}
		records = append(records, replayRecord{Marker: marker, Data: data})
	}

	return records, info.Size(), nil
}

// decodeReplayLog feeds every record into a fresh decoder.Decoder in order,
// calling progress after each record with the number of bytes just
// consumed (for a caller-driven progress bar), and returns the resulting
// trace.Store.
func decodeReplayLog(records []replayRecord, mux [bitpack.MaxMuxSlots]uint8, channelCount int, samplesPerSecond float64, progress func(n int)) (*trace.Store, error) {
	store := trace.NewStore()
	dec := decoder.New(store, mux, channelCount, samplesPerSecond)

	for _, rec := range records {
		if err := dec.ProcessBuffer(rec.Marker, rec.Data); err != nil {
			return nil, fmt.Errorf("decode marker %#x: %w", rec.Marker, err)
		}
		if progress != nil {
			progress(len(rec.Data))
		}
	}
	return store, nil
}
