// Package transport implements the two wire channels a session runs
// between host and headset: a TCP control channel carrying
// length-prefixed, reliable control packets, and a UDP stream channel
// carrying one packet per datagram, RTP-framed for sequence-number
// loss telemetry ahead of the shard reassembler even looking at the
// packet body.
package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nexusvr/corevr/internal/logx"
	"github.com/nexusvr/corevr/internal/proto"
)

var log = logx.New("transport")

// Control is the TCP control channel. Both roles dial/accept the same
// connection type; which Write*/Read* methods make sense depends on
// which side of the session is using it.
type Control struct {
	conn net.Conn

	writeMu sync.Mutex
	readMu  sync.Mutex
}

// DialControl connects to a host's control port.
func DialControl(addr string, timeout time.Duration) (*Control, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial control %s: %w", addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	log.Printf("control channel connected to %s", addr)
	return NewControl(conn), nil
}

// NewControl wraps an already-accepted or dialed connection.
func NewControl(conn net.Conn) *Control {
	return &Control{conn: conn}
}

// ListenControl opens a TCP listener for the host's control port.
func ListenControl(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen control %s: %w", addr, err)
	}
	return ln, nil
}

// AcceptControl accepts the next headset connection on ln and wraps it
// as a Control.
func AcceptControl(ln net.Listener) (*Control, error) {
	conn, err := ln.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	log.Printf("control channel accepted from %s", conn.RemoteAddr())
	return NewControl(conn), nil
}

// Close closes the underlying connection.
func (c *Control) Close() error { return c.conn.Close() }

// RemoteAddr is the peer's address, for logging.
func (c *Control) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// WriteHostPacket sends a host->headset control packet (called by the
// host side of the connection).
func (c *Control) WriteHostPacket(p proto.HostControlPacket) error {
	body, err := proto.MarshalHostControl(p)
	if err != nil {
		return err
	}
	return c.write(body)
}

// ReadHostPacket reads a host->headset control packet (called by the
// headset side of the connection).
func (c *Control) ReadHostPacket() (proto.HostControlPacket, error) {
	body, err := c.read()
	if err != nil {
		return nil, err
	}
	return proto.UnmarshalHostControl(body)
}

// WriteHeadsetPacket sends a headset->host control packet (called by
// the headset side of the connection).
func (c *Control) WriteHeadsetPacket(p proto.HeadsetControlPacket) error {
	body, err := proto.MarshalHeadsetControl(p)
	if err != nil {
		return err
	}
	return c.write(body)
}

// ReadHeadsetPacket reads a headset->host control packet (called by
// the host side of the connection).
func (c *Control) ReadHeadsetPacket() (proto.HeadsetControlPacket, error) {
	body, err := c.read()
	if err != nil {
		return nil, err
	}
	return proto.UnmarshalHeadsetControl(body)
}

func (c *Control) write(body []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return proto.WriteLengthPrefixed(c.conn, body)
}

func (c *Control) read() ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	return proto.ReadLengthPrefixed(c.conn)
}
