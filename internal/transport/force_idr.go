package transport

import (
	"fmt"
	"net"

	"github.com/pion/rtcp"
)

// SendForceIdr sends an RTCP PictureLossIndication on the stream
// socket, an out-of-band "I need a key frame now" signal the headset
// can raise the instant it detects a decode failure, ahead of the next
// regular feedback control packet. The receiving host resets the idr
// handler of every stream item, so each item's next frame is an IDR.
func (s *Stream) SendForceIdr(addr net.Addr) error {
	pkt := &rtcp.PictureLossIndication{MediaSSRC: s.ssrc}
	out, err := pkt.Marshal()
	if err != nil {
		return fmt.Errorf("marshal PLI: %w", err)
	}
	_, err = s.conn.WriteTo(out, addr)
	return err
}

// IsForceIdr reports whether a received datagram is an RTCP
// PictureLossIndication rather than an RTP stream packet, and should
// be routed to the idr handler instead of the shard reassembler.
func IsForceIdr(buf []byte) bool {
	packets, err := rtcp.Unmarshal(buf)
	if err != nil || len(packets) == 0 {
		return false
	}
	_, ok := packets[0].(*rtcp.PictureLossIndication)
	return ok
}
