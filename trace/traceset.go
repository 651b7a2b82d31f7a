package trace

import "math"

// ChannelID identifies a physical or logical channel within a Set.
type ChannelID uint64

// Set is a capture session's full collection of traces, keyed by channel:
// more than one Trace may be recorded against the same channel id (e.g. a
// channel that was stopped and restarted mid capture produces a second,
// later Trace rather than extending the first), mirroring the original's
// std::multimap<channel_id_t, signal_trace>.
type Set struct {
	traces map[ChannelID][]*Trace
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{traces: make(map[ChannelID][]*Trace)}
}

// Add records trace against channel. Traces for a channel are returned by
// Traces in the order they were added.
func (s *Set) Add(channel ChannelID, tr *Trace) {
	s.traces[channel] = append(s.traces[channel], tr)
}

// Traces returns the traces recorded against channel, in insertion order.
// The returned slice is owned by the Set and must not be modified.
func (s *Set) Traces(channel ChannelID) []*Trace {
	return s.traces[channel]
}

// Channels returns the set of channel ids that have at least one trace.
// The order is unspecified.
func (s *Set) Channels() []ChannelID {
	ids := make([]ChannelID, 0, len(s.traces))
	for id := range s.traces {
		ids = append(ids, id)
	}
	return ids
}

// FirstSampleIndex returns the smallest SamplesFromEpoch among every trace
// in the set, i.e. the sample index at which the earliest-starting channel
// began recording. It returns math.MaxUint64 for an empty set, matching the
// original's (uint64_t)-1 sentinel.
func (s *Set) FirstSampleIndex() uint64 {
	res := uint64(math.MaxUint64)
	for _, traces := range s.traces {
		for _, tr := range traces {
			if tr.SamplesFromEpoch < res {
				res = tr.SamplesFromEpoch
			}
		}
	}
	return res
}
