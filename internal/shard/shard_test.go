package shard

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestSplitJoinRoundTrip(t *testing.T) {
	payload := make([]byte, MaxShardPayload*3+57)
	rand.New(rand.NewSource(1)).Read(payload)

	shards := Split(payload)
	if len(shards) != 4 {
		t.Fatalf("expected 4 shards, got %d", len(shards))
	}
	if got := Join(shards); !bytes.Equal(got, payload) {
		t.Fatal("Join(Split(payload)) != payload")
	}
}

func TestParityRecoversOneMissingShardPerGroup(t *testing.T) {
	payload := make([]byte, MaxShardPayload*6+100)
	rand.New(rand.NewSource(2)).Read(payload)
	dataShards := Split(payload)

	const numParity = 2
	parity := ParityShards(dataShards, numParity)

	lengths := make([]int, len(dataShards))
	for i, s := range dataShards {
		lengths[i] = len(s)
	}

	present := make([][]byte, len(dataShards))
	copy(present, dataShards)
	// drop one shard from each parity group (indices 1 and 2 land in
	// different residue classes mod 2).
	present[1] = nil
	present[2] = nil

	if !Recoverable(present, numParity) {
		t.Fatal("expected recoverable")
	}
	if err := Recover(present, parity, numParity, lengths); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if got := Join(present); !bytes.Equal(got, payload) {
		t.Fatal("recovered payload does not match original")
	}
}

func TestParityCannotRecoverTwoLossesInSameGroup(t *testing.T) {
	dataShards := Split(make([]byte, MaxShardPayload*4))
	const numParity = 2
	present := make([][]byte, len(dataShards))
	copy(present, dataShards)
	// indices 0 and 2 are both in group 0 (index % 2 == 0).
	present[0] = nil
	present[2] = nil

	if Recoverable(present, numParity) {
		t.Fatal("expected unrecoverable with two losses in the same group")
	}
}

func TestReassemblerCompletesWithAllDataShards(t *testing.T) {
	re := NewReassembler(8)
	payload := []byte("frame payload")
	shards := Split(payload)

	var out []byte
	var done bool
	for i, s := range shards {
		out, done = re.AddDataShard(1, uint16(i), s, i == len(shards)-1)
	}
	if !done {
		t.Fatal("expected frame to complete")
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("got %q, want %q", out, payload)
	}
	stats := re.Stats()
	if stats.FramesCompleted != 1 {
		t.Fatalf("FramesCompleted = %d, want 1", stats.FramesCompleted)
	}
}

func TestReassemblerRecoversFromParity(t *testing.T) {
	re := NewReassembler(8)
	payload := make([]byte, MaxShardPayload*3+10)
	rand.New(rand.NewSource(3)).Read(payload)
	dataShards := Split(payload)
	const numParity = 1
	parity := ParityShards(dataShards, numParity)

	var out []byte
	var done bool
	for i, s := range dataShards {
		if i == 1 {
			continue // drop shard 1
		}
		out, done = re.AddDataShard(7, uint16(i), s, i == len(dataShards)-1)
	}
	if done {
		t.Fatal("should not complete before parity arrives")
	}
	out, done = re.AddParityShard(7, len(dataShards), numParity, 0, parity[0])
	if !done {
		t.Fatal("expected recovery once parity arrives")
	}
	if !bytes.Equal(out, payload) {
		t.Fatal("recovered payload mismatch")
	}
	if re.Stats().FramesRecovered != 1 {
		t.Fatalf("FramesRecovered = %d, want 1", re.Stats().FramesRecovered)
	}
}

func TestReassemblerTruncatesOnOutOfOrderEndOfFrame(t *testing.T) {
	re := NewReassembler(8)
	payload := []byte("abc")
	shards := Split(payload)
	if len(shards) != 1 {
		t.Fatalf("expected 1 shard for this payload, got %d", len(shards))
	}

	// Shard 2 arrives first (reordered ahead of the real last shard),
	// growing the buffer to 3 slots before end_of_frame corrects it.
	re.AddDataShard(9, 2, []byte("stray"), false)
	out, done := re.AddDataShard(9, 0, shards[0], true)
	if !done {
		t.Fatal("expected frame to complete once the true end_of_frame shard lands")
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("got %q, want %q", out, payload)
	}
}

func TestReassemblerDedupsFirstShardWins(t *testing.T) {
	re := NewReassembler(8)
	payload := bytes.Repeat([]byte("frame payload "), 200)
	shards := Split(payload)

	re.AddDataShard(4, 0, shards[0], false)
	// A retransmit of shard 0 with different bytes must not overwrite
	// the first copy already recorded.
	re.AddDataShard(4, 0, []byte("corrupted retransmit"), false)

	var out []byte
	var done bool
	for i := 1; i < len(shards); i++ {
		out, done = re.AddDataShard(4, uint16(i), shards[i], i == len(shards)-1)
	}
	if !done {
		t.Fatal("expected frame to complete")
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("got %q, want %q (dedup should have kept the first shard 0)", out, payload)
	}
}

func TestReassemblerEvictsStaleFrames(t *testing.T) {
	re := NewReassembler(2)
	re.AddDataShard(0, 0, []byte{1}, false)
	re.AddDataShard(1, 0, []byte{1}, false)
	re.AddDataShard(2, 0, []byte{1}, false)
	re.AddDataShard(5, 0, []byte{1}, false)

	if _, done := re.AddDataShard(0, 1, []byte{2}, true); done {
		t.Fatal("evicted frame should not complete")
	}
	if re.Stats().ShardsDiscarded == 0 && re.Stats().FramesDropped == 0 {
		t.Fatal("expected eviction to be recorded")
	}
}
