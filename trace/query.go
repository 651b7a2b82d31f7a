package trace

import "sync"

// Store is a Set guarded by a single RWMutex: the decoder goroutine is the
// only writer (BeginSegment/AppendBlock/AppendBlockTo, all taking the write
// lock), and
// every other read in this package's public API takes the read lock. This
// is the C6 query façade and the C1/C2 synchronization point in one type,
// mirroring the teacher's pattern of guarding shared state with a single
// mutex at the point where the goroutines actually hand off work
// (parallel.go's workCh/doneCh accounting) rather than scattering locks
// across each accessor.
type Store struct {
	mu  sync.RWMutex
	set *Set
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{set: NewSet()}
}

// BeginSegment allocates a fresh Trace for each entry of channels (one per
// entry, positionally — channels may repeat, since two mux slots are
// allowed to share the same physical input id per §4.4), appends each to
// the set, and returns them in the same order. Called by the decoder at a
// segment boundary (§3.5/§3.6/§4.2): previously open traces for these
// channels are sealed simply by no longer being the last entry returned by
// Trace.
func (s *Store) BeginSegment(channels []ChannelID, samplesPerSecond float64, samplesFromEpoch uint64) []*Trace {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Trace, len(channels))
	for i, ch := range channels {
		tr := New(samplesPerSecond, samplesFromEpoch)
		s.set.Add(ch, tr)
		out[i] = tr
	}
	return out
}

// AppendBlock appends a block to the current (most recently opened) trace
// for channel. It is a programming error to call this for a channel with
// no open trace; such a call panics with an index out of range on the
// channel's empty trace slice.
//
// This only ever reaches the last trace opened for channel, so it is only
// safe when channel was opened at most once in the current segment; the
// decoder, which may open several slots under the same channel id, appends
// through AppendBlockTo instead.
func (s *Store) AppendBlock(channel ChannelID, blockLength, repeatCount uint64, bits []bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	traces := s.set.traces[channel]
	tr := traces[len(traces)-1]
	tr.AppendBlock(blockLength, repeatCount, bits)
}

// AppendBlockTo appends a block directly to tr under the store's write
// lock. Unlike AppendBlock, it addresses the trace by the handle
// BeginSegment returned rather than by looking a channel id back up, so it
// stays correct even when several mux slots share one channel id and each
// has its own independent trace.
func (s *Store) AppendBlockTo(tr *Trace, blockLength, repeatCount uint64, bits []bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr.AppendBlock(blockLength, repeatCount, bits)
}

// ChannelCount returns the number of distinct channels with at least one
// trace.
func (s *Store) ChannelCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.set.traces)
}

// Channels returns every channel id with at least one trace. Order is
// unspecified.
func (s *Store) Channels() []ChannelID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.Channels()
}

// Trace returns the most recently opened trace for channel, or nil if the
// channel has never been opened.
func (s *Store) Trace(channel ChannelID) *Trace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	traces := s.set.traces[channel]
	if len(traces) == 0 {
		return nil
	}
	return traces[len(traces)-1]
}

// Traces returns every trace ever opened for channel, oldest first.
func (s *Store) Traces(channel ChannelID) []*Trace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	traces := s.set.traces[channel]
	out := make([]*Trace, len(traces))
	copy(out, traces)
	return out
}

// FirstSampleIndex returns the earliest SamplesFromEpoch across every
// trace in the store.
func (s *Store) FirstSampleIndex() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.FirstSampleIndex()
}

// Length returns tr.Length() under the store's read lock, so a caller
// never reads a Trace concurrently with a decoder append.
func (s *Store) Length(tr *Trace) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tr.Length()
}

// Sample returns tr.Sample(i) under the store's read lock.
func (s *Store) Sample(tr *Trace, i uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tr.Sample(i)
}

// Multisample returns tr.Multisample(first, last) under the store's read
// lock.
func (s *Store) Multisample(tr *Trace, first, last uint64) (sawFalse, sawTrue bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tr.Multisample(first, last)
}

// BlockCount returns tr.BlockCount() under the store's read lock.
func (s *Store) BlockCount(tr *Trace) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tr.BlockCount()
}

// SampleIndexAt converts a wall-clock time (seconds since tr's trace set's
// epoch) into a logical sample index on tr, per §4.6: sample_index = (t -
// start_time) * samples_per_second.
func (s *Store) SampleIndexAt(tr *Trace, seconds float64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	delta := seconds - tr.StartTime()
	if delta <= 0 {
		return 0
	}
	return uint64(delta * tr.SamplesPerSecond)
}
