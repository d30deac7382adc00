package transport

import (
	"testing"
	"time"

	"github.com/nexusvr/corevr/internal/proto"
)

func TestStreamDataShardRoundTrip(t *testing.T) {
	host, err := ListenStream("127.0.0.1:0", 0x1111)
	if err != nil {
		t.Fatalf("ListenStream host: %v", err)
	}
	defer host.Close()
	headset, err := ListenStream("127.0.0.1:0", 0x2222)
	if err != nil {
		t.Fatalf("ListenStream headset: %v", err)
	}
	defer headset.Close()

	shard := proto.VideoStreamDataShard{
		StreamItemIdx: 0,
		FrameIdx:      7,
		ShardIdx:      3,
		Flags:         proto.EndOfFrame,
		Payload:       []byte{1, 2, 3, 4},
	}
	if err := host.WriteHostPacket(headset.LocalAddr(), shard); err != nil {
		t.Fatalf("WriteHostPacket: %v", err)
	}

	buf := make([]byte, 2048)
	headset.conn.SetReadDeadline(time.Now().Add(time.Second))
	dg, err := headset.ReadDatagram(buf)
	if err != nil {
		t.Fatalf("ReadDatagram: %v", err)
	}
	if dg.ForceIdr {
		t.Fatal("unexpected ForceIdr datagram")
	}
	if !dg.ShardHeader.Present || dg.ShardHeader.FrameIdx != 7 || dg.ShardHeader.ShardIdx != 3 {
		t.Fatalf("ShardHeader = %+v, want frame 7 shard 3", dg.ShardHeader)
	}

	got, err := ReadHostPacket(dg)
	if err != nil {
		t.Fatalf("ReadHostPacket: %v", err)
	}
	gotShard, ok := got.(proto.VideoStreamDataShard)
	if !ok || gotShard.FrameIdx != 7 || string(gotShard.Payload) != string(shard.Payload) {
		t.Fatalf("got %#v, want matching shard", got)
	}
}

func TestStreamSequenceNumberIncrements(t *testing.T) {
	host, err := ListenStream("127.0.0.1:0", 1)
	if err != nil {
		t.Fatalf("ListenStream: %v", err)
	}
	defer host.Close()
	headset, err := ListenStream("127.0.0.1:0", 2)
	if err != nil {
		t.Fatalf("ListenStream: %v", err)
	}
	defer headset.Close()

	for i := 0; i < 3; i++ {
		if err := host.WriteHostPacket(headset.LocalAddr(), proto.TimesyncQuery{Query: int64(i)}); err != nil {
			t.Fatalf("WriteHostPacket: %v", err)
		}
	}

	buf := make([]byte, 2048)
	var seqs []uint16
	headset.conn.SetReadDeadline(time.Now().Add(time.Second))
	for i := 0; i < 3; i++ {
		dg, err := headset.ReadDatagram(buf)
		if err != nil {
			t.Fatalf("ReadDatagram: %v", err)
		}
		seqs = append(seqs, dg.Seq)
	}
	for i := 1; i < len(seqs); i++ {
		if seqs[i] != seqs[i-1]+1 {
			t.Fatalf("sequence numbers not monotonic: %v", seqs)
		}
	}
}

func TestForceIdrRoundTrip(t *testing.T) {
	host, err := ListenStream("127.0.0.1:0", 0xAAAA)
	if err != nil {
		t.Fatalf("ListenStream: %v", err)
	}
	defer host.Close()
	headset, err := ListenStream("127.0.0.1:0", 0xBBBB)
	if err != nil {
		t.Fatalf("ListenStream: %v", err)
	}
	defer headset.Close()

	if err := headset.SendForceIdr(host.LocalAddr()); err != nil {
		t.Fatalf("SendForceIdr: %v", err)
	}

	buf := make([]byte, 2048)
	host.conn.SetReadDeadline(time.Now().Add(time.Second))
	dg, err := host.ReadDatagram(buf)
	if err != nil {
		t.Fatalf("ReadDatagram: %v", err)
	}
	if !dg.ForceIdr {
		t.Fatal("expected a ForceIdr datagram")
	}
}
