package trace

import (
	"fmt"

	"github.com/google/btree"
	"github.com/grailbio/base/must"
)

// blockEntry is the btree payload: a block keyed by the logical sample
// index of its first sample.
type blockEntry struct {
	key   uint64
	block Block
}

func lessBlockEntry(a, b blockEntry) bool {
	return a.key < b.key
}

// Trace is one channel's full sample history: a sparse run-length-block
// index over a flat bit vector, plus the timing metadata needed to place
// the trace's samples on a common time axis (§3.2).
type Trace struct {
	blocks *btree.BTreeG[blockEntry]
	data   []bool

	// SamplesPerSecond is the capture rate in effect when the trace was
	// recorded.
	SamplesPerSecond float64
	// SamplesFromEpoch is the count of samples between the owning Set's
	// epoch and the first sample of this trace.
	SamplesFromEpoch uint64
}

// New returns an empty Trace recorded at samplesPerSecond, starting
// samplesFromEpoch samples after the set's epoch.
func New(samplesPerSecond float64, samplesFromEpoch uint64) *Trace {
	return &Trace{
		blocks:           btree.NewG(32, lessBlockEntry),
		SamplesPerSecond: samplesPerSecond,
		SamplesFromEpoch: samplesFromEpoch,
	}
}

// Length returns the logical sample count: 0 if the trace is empty,
// otherwise the last block's key plus its span.
func (t *Trace) Length() uint64 {
	last, ok := t.blocks.Max()
	if !ok {
		return 0
	}
	return last.key + last.block.Span()
}

// BlockCount returns the number of distinct run-length blocks recorded for
// this trace, i.e. the compression the decoder achieved: a trace with many
// samples but few blocks spent most of its time repeating the same sample.
func (t *Trace) BlockCount() int {
	return t.blocks.Len()
}

// StartTime returns the wall-clock time, in seconds from the set's epoch,
// of this trace's first sample.
func (t *Trace) StartTime() float64 {
	return float64(t.SamplesFromEpoch) / t.SamplesPerSecond
}

// EndTime returns the wall-clock time, in seconds from the set's epoch, one
// sample period past this trace's last sample.
func (t *Trace) EndTime() float64 {
	return float64(t.SamplesFromEpoch+t.Length()) / t.SamplesPerSecond
}

// AppendBlock extends the trace with a new block whose payload is bits,
// repeated repeatCount times. len(bits) must equal blockLength and
// repeatCount must be at least 1; both are preconditions enforced with
// must.True, since a violation indicates a decoder bug rather than bad
// input.
func (t *Trace) AppendBlock(blockLength, repeatCount uint64, bits []bool) {
	must.True(uint64(len(bits)) == blockLength, "trace: len(bits) must equal blockLength")
	must.True(repeatCount >= 1, "trace: repeatCount must be >= 1")
	must.True(blockLength >= 1, "trace: blockLength must be >= 1")

	key := t.Length()
	offset := uint64(len(t.data))
	t.data = append(t.data, bits...)

	prevMax, hasPrev := t.blocks.Max()
	if hasPrev {
		must.True(offset == prevMax.block.DataOffset+prevMax.block.BlockLength,
			"trace: non-contiguous data offset")
	}

	t.blocks.ReplaceOrInsert(blockEntry{
		key: key,
		block: Block{
			DataOffset:  offset,
			BlockLength: blockLength,
			RepeatCount: repeatCount,
		},
	})
}

// blockAt returns the block covering the given logical sample index, and
// that block's key. index must be <= t.Length(); index == t.Length() lands
// on the last block with an out-of-range repeat index, which samplePtrAt
// relies on to give Multisample a one-past-the-end locator.
func (t *Trace) blockAt(index uint64) (uint64, Block) {
	var entry blockEntry
	found := false
	t.blocks.DescendLessOrEqual(blockEntry{key: index}, func(item blockEntry) bool {
		entry = item
		found = true
		return false
	})
	must.True(found, fmt.Sprintf("trace: no block covers sample index %d", index))
	return entry.key, entry.block
}

// Sample returns the bit at logical sample index i. i must be < t.Length().
func (t *Trace) Sample(i uint64) bool {
	key, block := t.blockAt(i)
	offset := (i - key) % block.BlockLength
	return t.data[block.DataOffset+offset]
}

// samplePtr is a cached locator for a logical sample index within its
// block, used to split a multisample range query into a partial leading
// repeat, a partial trailing repeat, and a fully covered middle span.
// samplePtrAt(t.Length()) is a valid, deliberately one-past-the-end
// locator: repeatIndex == block.RepeatCount, firstRepeat and lastRepeat
// both false, repeatOffset == 0.
type samplePtr struct {
	key          uint64
	block        Block
	repeatIndex  uint64
	repeatOffset uint64
	firstRepeat  bool
	lastRepeat   bool
}

func (t *Trace) samplePtrAt(i uint64) samplePtr {
	key, block := t.blockAt(i)
	blockSampleOffset := i - key
	repeatIndex := blockSampleOffset / block.BlockLength
	repeatOffset := blockSampleOffset % block.BlockLength
	return samplePtr{
		key:          key,
		block:        block,
		repeatIndex:  repeatIndex,
		repeatOffset: repeatOffset,
		firstRepeat:  repeatIndex == 0,
		lastRepeat:   repeatIndex == block.RepeatCount-1,
	}
}

// reduce scans data[first:last) and ORs whatever it finds into res,
// stopping as soon as both a false and a true bit have been seen.
func reduce(res *[2]bool, data []bool, first, last uint64) {
	for ; (!res[0] || !res[1]) && first != last; first++ {
		if data[first] {
			res[1] = true
		} else {
			res[0] = true
		}
	}
}

// Multisample reports whether at least one false bit and at least one true
// bit occur in the logical sample range [first, last). It is the primitive
// behind pixel-level downsampling: callers never need the individual bits
// of a range wider than one pixel, only whether the range is constant or
// mixed. first and last must be <= t.Length(), and first <= last.
//
// last is located the same way as first (via samplePtrAt), not last-1: at
// last == t.Length() this lands one past the final repeat of the final
// block, which is exactly the locator the partial-range splitting below
// needs to treat the whole of that block as fully covered.
func (t *Trace) Multisample(first, last uint64) (sawFalse, sawTrue bool) {
	if first == last {
		return false, false
	}

	firstPtr := t.samplePtrAt(first)
	lastPtr := t.samplePtrAt(last)

	var res [2]bool

	if firstPtr.key == lastPtr.key && firstPtr.repeatIndex == lastPtr.repeatIndex {
		reduce(&res, t.data,
			firstPtr.block.DataOffset+firstPtr.repeatOffset,
			lastPtr.block.DataOffset+lastPtr.repeatOffset)
		return res[0], res[1]
	}

	firstComplete := firstPtr.key
	lastComplete := lastPtr.key

	if firstPtr.lastRepeat {
		// firstPtr sits in the final repeat of its block: only the tail
		// of that repeat, from repeatOffset onward, is in range. Every
		// earlier repeat of this block is out of range (they precede
		// first), so the block itself is not part of the middle span.
		reduce(&res, t.data,
			firstPtr.block.DataOffset+firstPtr.repeatOffset,
			firstPtr.block.DataOffset+firstPtr.block.BlockLength)
		firstComplete = firstPtr.key + firstPtr.block.Span()
	}

	if lastPtr.firstRepeat {
		// lastPtr sits in the first repeat of its block: only the head
		// of that repeat, up to repeatOffset, is in range.
		reduce(&res, t.data,
			lastPtr.block.DataOffset,
			lastPtr.block.DataOffset+lastPtr.repeatOffset)
		if firstComplete == lastComplete {
			// Nothing fully covered remains between the two partial
			// scans above: they are adjacent slivers of the same or
			// consecutive blocks with no block fully inside the range.
			return res[0], res[1]
		}
		var prevKey uint64
		found := false
		t.blocks.DescendLessThan(blockEntry{key: lastPtr.key}, func(item blockEntry) bool {
			prevKey = item.key
			found = true
			return false
		})
		must.True(found, "trace: multisample ran off the start of the block map")
		lastComplete = prevKey
	}

	// Middle span: every block keyed in [firstComplete, lastComplete] is
	// fully inside the range, so scanning each one's payload once already
	// captures what every one of its repeats would contribute.
	lastEntry, ok := t.blocks.Get(blockEntry{key: lastComplete})
	must.True(ok, "trace: lastComplete does not name a block")
	upperExclusive := lastComplete + lastEntry.block.Span()

	t.blocks.AscendRange(blockEntry{key: firstComplete}, blockEntry{key: upperExclusive}, func(item blockEntry) bool {
		reduce(&res, t.data, item.block.DataOffset, item.block.DataOffset+item.block.BlockLength)
		return !res[0] || !res[1]
	})

	return res[0], res[1]
}
