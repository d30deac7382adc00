// Package shard splits an encoded video frame into fixed-size shards for
// transmission over the unreliable stream channel, and reassembles them
// on the receiving side with optional forward error correction.
//
// FEC scheme: the wire format (internal/proto's video_stream_parity_shard)
// carries num_parity_elements interleaved XOR parity groups rather than a
// Reed-Solomon code. Group g covers every data shard whose index is
// congruent to g modulo num_parity_elements; parity shard g is the XOR of
// that group's payloads (short shards are conceptually zero-padded to the
// frame's largest shard). Losing one shard in a group is recoverable by
// XORing the group's other data shards with its parity shard; losing more
// than one shard in the same group is not. Raising num_parity_elements
// trades bandwidth for the ability to recover more simultaneous losses,
// as long as they land in different groups.
package shard

import "fmt"

// MaxShardPayload bounds a single shard's payload so it plus headers
// fits comfortably under a typical path MTU without IP fragmentation.
const MaxShardPayload = 1200

// Split divides payload into data shards of at most MaxShardPayload
// bytes each.
func Split(payload []byte) [][]byte {
	if len(payload) == 0 {
		return nil
	}
	n := (len(payload) + MaxShardPayload - 1) / MaxShardPayload
	shards := make([][]byte, n)
	for i := 0; i < n; i++ {
		start := i * MaxShardPayload
		end := start + MaxShardPayload
		if end > len(payload) {
			end = len(payload)
		}
		shards[i] = payload[start:end]
	}
	return shards
}

// ParityShards computes numParity interleaved XOR parity shards for
// dataShards. Shards are effectively zero-padded to the width of the
// widest shard in their group before XORing.
func ParityShards(dataShards [][]byte, numParity uint8) [][]byte {
	if numParity == 0 {
		return nil
	}
	parity := make([][]byte, numParity)
	for g := 0; g < int(numParity); g++ {
		var width int
		for i := g; i < len(dataShards); i += int(numParity) {
			if len(dataShards[i]) > width {
				width = len(dataShards[i])
			}
		}
		acc := make([]byte, width)
		for i := g; i < len(dataShards); i += int(numParity) {
			xorInto(acc, dataShards[i])
		}
		parity[g] = acc
	}
	return parity
}

func xorInto(dst, src []byte) {
	for i, b := range src {
		dst[i] ^= b
	}
}

// Recoverable reports whether Recover can reconstruct missing, given the
// present data shards (nil entries denote missing) and how many parity
// groups were generated: at most one missing shard per residue group.
func Recoverable(present [][]byte, numParity uint8) bool {
	if numParity == 0 {
		for _, d := range present {
			if d == nil {
				return false
			}
		}
		return true
	}
	missingPerGroup := make([]int, numParity)
	for i, d := range present {
		if d == nil {
			missingPerGroup[i%int(numParity)]++
		}
	}
	for _, m := range missingPerGroup {
		if m > 1 {
			return false
		}
	}
	return true
}

// Recover fills in missing data shards (nil entries in present) using
// parity, given parity was computed with ParityShards(present, numParity)
// before any losses. present is mutated in place. shardLen provides the
// true (unpadded) length of each shard, since XOR alone can't recover it.
func Recover(present [][]byte, parity [][]byte, numParity uint8, shardLen []int) error {
	if numParity == 0 {
		for i, d := range present {
			if d == nil {
				return fmt.Errorf("shard: missing shard %d with no parity", i)
			}
		}
		return nil
	}
	if !Recoverable(present, numParity) {
		return fmt.Errorf("shard: more than one shard missing in a parity group")
	}

	for g := 0; g < int(numParity); g++ {
		var missingIdx = -1
		width := len(parity[g])
		acc := make([]byte, width)
		for i := g; i < len(present); i += int(numParity) {
			if present[i] == nil {
				missingIdx = i
				continue
			}
			xorInto(acc, present[i])
		}
		if missingIdx == -1 {
			continue
		}
		xorInto(acc, parity[g])
		present[missingIdx] = acc[:shardLen[missingIdx]]
	}
	return nil
}

// Join concatenates shards back into the original frame payload.
func Join(shards [][]byte) []byte {
	var total int
	for _, s := range shards {
		total += len(s)
	}
	out := make([]byte, 0, total)
	for _, s := range shards {
		out = append(out, s...)
	}
	return out
}
