package shard

import "sync"

// frameBuffer accumulates shards for one in-flight frame.
type frameBuffer struct {
	data      [][]byte // nil entries = not yet received
	dataLen   []int
	parity    [][]byte
	numParity uint8
	haveEnd   bool // end-of-frame shard seen, so len(data) is final
}

// Stats counts outcomes across the lifetime of a Reassembler.
type Stats struct {
	FramesCompleted   uint64
	FramesRecovered   uint64
	FramesDropped     uint64
	ShardsDiscarded   uint64 // arrived for a frame already evicted
}

// Reassembler reconstructs frame payloads from data and parity shards
// arriving out of order over the stream channel, evicting any frame that
// falls too far behind the newest one it has seen (the sender has moved
// on and the frame will never complete).
type Reassembler struct {
	maxInFlight int // how many distinct frame indices to track at once

	mu      sync.Mutex
	frames  map[uint64]*frameBuffer
	newest  uint64
	hasSeen bool
	stats   Stats
}

// NewReassembler returns a Reassembler tracking up to maxInFlight
// concurrent frames.
func NewReassembler(maxInFlight int) *Reassembler {
	return &Reassembler{
		maxInFlight: maxInFlight,
		frames:      make(map[uint64]*frameBuffer),
	}
}

func (r *Reassembler) bufferFor(frameIdx uint64) *frameBuffer {
	fb, ok := r.frames[frameIdx]
	if !ok {
		fb = &frameBuffer{}
		r.frames[frameIdx] = fb
	}
	return fb
}

// defaultShardLen is assumed for any shard not yet received: every shard
// but the frame's last is exactly MaxShardPayload bytes (Split pads
// nothing; only the last shard is short). A parity-recovered last shard
// may come out padded with trailing zero bytes versus the original if
// it was the one lost, which is harmless for length-delimited bitstream
// formats the encoder already emits.
const defaultShardLen = MaxShardPayload

func (r *Reassembler) ensureCapacity(frameIdx uint64, shardIdx int) {
	fb := r.frames[frameIdx]
	for len(fb.data) <= shardIdx {
		fb.data = append(fb.data, nil)
		fb.dataLen = append(fb.dataLen, defaultShardLen)
	}
}

// AddDataShard records one data shard. endOfFrame marks the highest
// shard index for this frame, so completion can be detected without
// waiting on a timeout.
func (r *Reassembler) AddDataShard(frameIdx uint64, shardIdx uint16, payload []byte, endOfFrame bool) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.evicted(frameIdx) {
		r.stats.ShardsDiscarded++
		return nil, false
	}
	r.track(frameIdx)

	fb := r.bufferFor(frameIdx)

	if endOfFrame && len(fb.data) > int(shardIdx)+1 {
		// A shard with a higher index already arrived, but end_of_frame
		// says this is the last one: the sender's shard count was
		// smaller than assumed. Discard the out-of-order shards above it.
		fb.data = fb.data[:shardIdx+1]
		fb.dataLen = fb.dataLen[:shardIdx+1]
	}

	r.ensureCapacity(frameIdx, int(shardIdx))
	if fb.data[shardIdx] == nil {
		// First arrival for this index wins; a duplicate retransmit of
		// an already-seen shard is dropped rather than overwriting it.
		fb.data[shardIdx] = payload
		fb.dataLen[shardIdx] = len(payload)
	}
	if endOfFrame {
		fb.haveEnd = true
	}

	return r.tryComplete(frameIdx, fb)
}

// AddParityShard records one parity shard for a frame.
func (r *Reassembler) AddParityShard(frameIdx uint64, dataShardCount int, numParity uint8, parityElement uint8, payload []byte) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.evicted(frameIdx) {
		r.stats.ShardsDiscarded++
		return nil, false
	}
	r.track(frameIdx)

	fb := r.bufferFor(frameIdx)
	fb.numParity = numParity
	for len(fb.data) < dataShardCount {
		fb.data = append(fb.data, nil)
		fb.dataLen = append(fb.dataLen, defaultShardLen)
	}
	if fb.parity == nil {
		fb.parity = make([][]byte, numParity)
	}
	if int(parityElement) < len(fb.parity) {
		fb.parity[parityElement] = payload
	}

	return r.tryComplete(frameIdx, fb)
}

func (r *Reassembler) track(frameIdx uint64) {
	if !r.hasSeen || frameIdx > r.newest {
		r.newest = frameIdx
		r.hasSeen = true
	}
	if len(r.frames) > r.maxInFlight {
		r.evictStale()
	}
}

func (r *Reassembler) evicted(frameIdx uint64) bool {
	if !r.hasSeen {
		return false
	}
	if _, ok := r.frames[frameIdx]; ok {
		return false
	}
	return r.newest >= uint64(r.maxInFlight) && frameIdx < r.newest-uint64(r.maxInFlight)
}

func (r *Reassembler) evictStale() {
	for idx := range r.frames {
		if idx < r.newest-uint64(r.maxInFlight) {
			delete(r.frames, idx)
			r.stats.FramesDropped++
		}
	}
}

// tryComplete attempts to finalize frameIdx: if every data shard has
// arrived, it's done; otherwise, if parity makes recovery possible and
// the frame's extent is known, it reconstructs the missing shards.
func (r *Reassembler) tryComplete(frameIdx uint64, fb *frameBuffer) ([]byte, bool) {
	if !fb.haveEnd {
		return nil, false
	}

	complete := true
	for _, d := range fb.data {
		if d == nil {
			complete = false
			break
		}
	}
	if complete {
		delete(r.frames, frameIdx)
		r.stats.FramesCompleted++
		return Join(fb.data), true
	}

	if fb.parity == nil || !Recoverable(fb.data, fb.numParity) {
		return nil, false
	}
	for _, p := range fb.parity {
		if p == nil {
			return nil, false
		}
	}

	if err := Recover(fb.data, fb.parity, fb.numParity, fb.dataLen); err != nil {
		return nil, false
	}
	delete(r.frames, frameIdx)
	r.stats.FramesRecovered++
	return Join(fb.data), true
}

// Stats returns a snapshot of the reassembler's lifetime counters.
func (r *Reassembler) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
