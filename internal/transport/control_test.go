package transport

import (
	"net"
	"testing"
	"time"

	"github.com/nexusvr/corevr/internal/proto"
)

func TestControlHandshakeRoundTrip(t *testing.T) {
	hostConn, headsetConn := net.Pipe()
	host := NewControl(hostConn)
	headset := NewControl(headsetConn)
	defer host.Close()
	defer headset.Close()

	done := make(chan proto.Handshake, 1)
	go func() {
		hs, err := headset.HeadsetHandshake(proto.Handshake{Version: proto.ProtocolVersion})
		if err != nil {
			t.Errorf("headset handshake: %v", err)
			return
		}
		done <- hs
	}()

	hostSide, err := host.Handshake(proto.Handshake{Version: proto.ProtocolVersion})
	if err != nil {
		t.Fatalf("host handshake: %v", err)
	}
	if hostSide.Version != proto.ProtocolVersion {
		t.Fatalf("host saw version %d, want %d", hostSide.Version, proto.ProtocolVersion)
	}

	select {
	case headsetSide := <-done:
		if headsetSide.Version != proto.ProtocolVersion {
			t.Fatalf("headset saw version %d, want %d", headsetSide.Version, proto.ProtocolVersion)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for headset handshake")
	}
}

func TestControlHostPacketRoundTrip(t *testing.T) {
	hostConn, headsetConn := net.Pipe()
	host := NewControl(hostConn)
	headset := NewControl(headsetConn)
	defer host.Close()
	defer headset.Close()

	sent := proto.RefreshRateChange{Fps: 90}
	errCh := make(chan error, 1)
	go func() { errCh <- host.WriteHostPacket(sent) }()

	got, err := headset.ReadHostPacket()
	if err != nil {
		t.Fatalf("ReadHostPacket: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WriteHostPacket: %v", err)
	}

	rr, ok := got.(proto.RefreshRateChange)
	if !ok || rr.Fps != 90 {
		t.Fatalf("got %#v, want RefreshRateChange{Fps: 90}", got)
	}
}

func TestControlHeadsetPacketRoundTrip(t *testing.T) {
	hostConn, headsetConn := net.Pipe()
	host := NewControl(hostConn)
	headset := NewControl(headsetConn)
	defer host.Close()
	defer headset.Close()

	sent := proto.Battery{Present: true, Charging: false, Level: 0.42}
	errCh := make(chan error, 1)
	go func() { errCh <- headset.WriteHeadsetPacket(sent) }()

	got, err := host.ReadHeadsetPacket()
	if err != nil {
		t.Fatalf("ReadHeadsetPacket: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WriteHeadsetPacket: %v", err)
	}

	b, ok := got.(proto.Battery)
	if !ok || b.Level != 0.42 {
		t.Fatalf("got %#v, want Battery{Level: 0.42}", got)
	}
}
