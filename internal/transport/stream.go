package transport

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/pion/rtp"

	"github.com/nexusvr/corevr/internal/proto"
)

// shardExtensionID is the RFC 5285 one-byte header extension id
// carrying the shard/frame header fields outside the packet body, so
// the transport layer can observe frame/shard indices (for raw-loss
// telemetry) without decoding the inner stream packet.
const shardExtensionID = 1

const streamPayloadType = 102

// Stream is the UDP datagram channel carrying stream-channel packets,
// one packet per datagram, RTP-framed.
type Stream struct {
	conn net.PacketConn
	ssrc uint32
	seq  uint16
}

// ListenStream opens a UDP socket for the stream channel. addr may be
// ":0" to pick an ephemeral port (the handshake carries no port, so
// nothing in this package tells the peer which port was chosen).
func ListenStream(addr string, ssrc uint32) (*Stream, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen stream %s: %w", addr, err)
	}
	return &Stream{conn: conn, ssrc: ssrc}, nil
}

// LocalAddr is the bound UDP address.
func (s *Stream) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Close closes the UDP socket.
func (s *Stream) Close() error { return s.conn.Close() }

// ShardHeader carries the frame/shard identification this package
// additionally surfaces via an RTP header extension, readable without
// decoding the stream packet body.
type ShardHeader struct {
	FrameIdx uint64
	ShardIdx uint16
	Flags    uint8
	Present  bool
}

func encodeShardHeader(frameIdx uint64, shardIdx uint16, flags uint8) []byte {
	buf := make([]byte, 11)
	binary.BigEndian.PutUint64(buf[0:8], frameIdx)
	binary.BigEndian.PutUint16(buf[8:10], shardIdx)
	buf[10] = flags
	return buf
}

func decodeShardHeader(buf []byte) ShardHeader {
	if len(buf) < 11 {
		return ShardHeader{}
	}
	return ShardHeader{
		FrameIdx: binary.BigEndian.Uint64(buf[0:8]),
		ShardIdx: binary.BigEndian.Uint16(buf[8:10]),
		Flags:    buf[10],
		Present:  true,
	}
}

func shardHeaderFor(p any) (frameIdx uint64, shardIdx uint16, flags uint8, ok bool) {
	switch v := p.(type) {
	case proto.VideoStreamDataShard:
		return v.FrameIdx, v.ShardIdx, uint8(v.Flags), true
	case proto.VideoStreamParityShard:
		return v.FrameIdx, uint16(v.ParityElement), 0, true
	default:
		return 0, 0, 0, false
	}
}

// WriteHostPacket sends a host->headset stream packet to addr.
func (s *Stream) WriteHostPacket(addr net.Addr, p proto.HostStreamPacket) error {
	body, err := proto.MarshalHostStream(p)
	if err != nil {
		return err
	}
	return s.send(addr, body, p)
}

// WriteHeadsetPacket sends a headset->host stream packet to addr.
func (s *Stream) WriteHeadsetPacket(addr net.Addr, p proto.HeadsetStreamPacket) error {
	body, err := proto.MarshalHeadsetStream(p)
	if err != nil {
		return err
	}
	return s.send(addr, body, p)
}

func (s *Stream) send(addr net.Addr, body []byte, p any) error {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    streamPayloadType,
			SequenceNumber: s.seq,
			SSRC:           s.ssrc,
		},
		Payload: body,
	}
	s.seq++

	if frameIdx, shardIdx, flags, ok := shardHeaderFor(p); ok {
		if err := pkt.Header.SetExtension(shardExtensionID, encodeShardHeader(frameIdx, shardIdx, flags)); err != nil {
			return fmt.Errorf("set shard extension: %w", err)
		}
	}

	out, err := pkt.Marshal()
	if err != nil {
		return fmt.Errorf("marshal rtp packet: %w", err)
	}
	_, err = s.conn.WriteTo(out, addr)
	return err
}

// Datagram is one received stream-channel datagram, already
// RTP-unwrapped. ForceIdr datagrams carry no RTP payload; callers must
// check ForceIdr before looking at Seq/ShardHeader/Body.
type Datagram struct {
	From        net.Addr
	Seq         uint16
	ShardHeader ShardHeader
	Body        []byte
	ForceIdr    bool
}

// ReadDatagram blocks for the next datagram on the socket, recognizing
// an out-of-band force-idr RTCP packet before attempting to parse the
// datagram as an RTP stream packet.
func (s *Stream) ReadDatagram(buf []byte) (Datagram, error) {
	n, addr, err := s.conn.ReadFrom(buf)
	if err != nil {
		return Datagram{}, err
	}

	if IsForceIdr(buf[:n]) {
		return Datagram{From: addr, ForceIdr: true}, nil
	}

	var pkt rtp.Packet
	if err := pkt.Unmarshal(buf[:n]); err != nil {
		return Datagram{}, fmt.Errorf("unmarshal rtp packet: %w", err)
	}

	dg := Datagram{From: addr, Seq: pkt.SequenceNumber, Body: pkt.Payload}
	if ext := pkt.GetExtension(shardExtensionID); ext != nil {
		dg.ShardHeader = decodeShardHeader(ext)
	}
	return dg, nil
}

// ReadHostPacket decodes a datagram's body as a host->headset stream
// packet (called by the headset side).
func ReadHostPacket(dg Datagram) (proto.HostStreamPacket, error) {
	return proto.UnmarshalHostStream(dg.Body)
}

// ReadHeadsetPacket decodes a datagram's body as a headset->host stream
// packet (called by the host side).
func ReadHeadsetPacket(dg Datagram) (proto.HeadsetStreamPacket, error) {
	return proto.UnmarshalHeadsetStream(dg.Body)
}
