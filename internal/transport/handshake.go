package transport

import (
	"fmt"

	"github.com/nexusvr/corevr/internal/proto"
)

// Handshake runs the host side of the initial handshake exchange: send
// our Handshake packet and wait for the headset's.
func (c *Control) Handshake(ours proto.Handshake) (proto.Handshake, error) {
	if err := c.WriteHostPacket(ours); err != nil {
		return proto.Handshake{}, fmt.Errorf("send handshake: %w", err)
	}
	p, err := c.ReadHeadsetPacket()
	if err != nil {
		return proto.Handshake{}, fmt.Errorf("read handshake: %w", err)
	}
	theirs, ok := p.(proto.Handshake)
	if !ok {
		return proto.Handshake{}, fmt.Errorf("expected handshake, got %T", p)
	}
	if theirs.Version != proto.ProtocolVersion {
		return proto.Handshake{}, fmt.Errorf("protocol version mismatch: host=%d headset=%d", proto.ProtocolVersion, theirs.Version)
	}
	return theirs, nil
}

// HeadsetHandshake runs the headset side: wait for the host's
// Handshake, then reply with ours.
func (c *Control) HeadsetHandshake(ours proto.Handshake) (proto.Handshake, error) {
	p, err := c.ReadHostPacket()
	if err != nil {
		return proto.Handshake{}, fmt.Errorf("read handshake: %w", err)
	}
	theirs, ok := p.(proto.Handshake)
	if !ok {
		return proto.Handshake{}, fmt.Errorf("expected handshake, got %T", p)
	}
	if err := c.WriteHeadsetPacket(ours); err != nil {
		return proto.Handshake{}, fmt.Errorf("send handshake: %w", err)
	}
	return theirs, nil
}
