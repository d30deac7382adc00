package session

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexusvr/corevr/internal/logx"
	"github.com/nexusvr/corevr/internal/proto"
	"github.com/nexusvr/corevr/internal/shard"
	"github.com/nexusvr/corevr/internal/transport"
)

// FramePresenter is the headset-side counterpart of Encoder: it takes a
// fully reassembled frame payload and drives it through decode and
// display, returning the timestamps Feedback reports. Actual decoder
// and compositor integration is out of scope for this module.
type FramePresenter interface {
	Present(streamItemIdx uint8, frameIdx uint64, payload []byte) (sentToDecoder, receivedFromDecoder, blitted, displayed int64, err error)
}

// Headset is one streamed session from the headset's point of view: it
// reassembles incoming shards, reports feedback and tracking, and
// answers timesync queries against its own monotonic clock.
type Headset struct {
	id      string
	control *transport.Control
	stream  *transport.Stream
	log     *logx.Logger

	hostAddr net.Addr

	reasmMu sync.Mutex
	reasm   map[uint8]*shard.Reassembler

	presenter FramePresenter

	stateMu sync.Mutex
	state   proto.SessionState

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

const maxInFlightFrames = 8

// NewHeadset wraps an already-handshaken control connection and the
// stream socket, plus the host's stream address to send feedback and
// tracking to.
func NewHeadset(control *transport.Control, stream *transport.Stream, hostAddr net.Addr, presenter FramePresenter) *Headset {
	id := uuid.NewString()
	return &Headset{
		id:        id,
		control:   control,
		stream:    stream,
		log:       log.With(id[:8]),
		hostAddr:  hostAddr,
		reasm:     make(map[uint8]*shard.Reassembler),
		presenter: presenter,
		stopCh:    make(chan struct{}),
	}
}

// ID is this session's unique identifier.
func (c *Headset) ID() string { return c.id }

func (c *Headset) reassemblerFor(streamItemIdx uint8) *shard.Reassembler {
	c.reasmMu.Lock()
	defer c.reasmMu.Unlock()
	r, ok := c.reasm[streamItemIdx]
	if !ok {
		r = shard.NewReassembler(maxInFlightFrames)
		c.reasm[streamItemIdx] = r
	}
	return r
}

// Run starts the headset's net thread and blocks until ctx is canceled
// or Close is called.
func (c *Headset) Run(ctx context.Context) error {
	c.wg.Add(1)
	go c.netThread(ctx)

	select {
	case <-ctx.Done():
	case <-c.stopCh:
	}
	c.Close()
	c.wg.Wait()
	return nil
}

// Close tears down the session. Safe to call more than once.
func (c *Headset) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		_ = c.control.Close()
	})
}

// setState records the session's lifecycle state.
func (c *Headset) setState(state proto.SessionState) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = state
}

// State returns the session's last recorded lifecycle state.
func (c *Headset) State() proto.SessionState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// Reattach rewires this Headset onto a freshly redialed control
// connection after PeerGone put it into Reconnecting. Per-stream
// reassembly state is reinitialized rather than reused: a resumed
// connection starts a new frame sequence on the host side, so carrying
// over partially-assembled frames from before the drop would only ever
// stall waiting on shards that will never arrive.
func (c *Headset) Reattach(control *transport.Control, stream *transport.Stream, hostAddr net.Addr) {
	c.control = control
	c.stream = stream
	c.hostAddr = hostAddr
	c.reasmMu.Lock()
	c.reasm = make(map[uint8]*shard.Reassembler)
	c.reasmMu.Unlock()
	c.stopOnce = sync.Once{}
	c.stopCh = make(chan struct{})
	c.setState(proto.SessionActive)
}

func (c *Headset) netThread(ctx context.Context) {
	defer c.wg.Done()
	go c.readControlLoop(ctx)
	c.readStreamLoop(ctx)
}

func (c *Headset) readControlLoop(ctx context.Context) {
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		p, err := c.control.ReadHostPacket()
		if err != nil {
			c.handlePeerGone(err)
			return
		}
		c.dispatchControl(p)
	}
}

// handlePeerGone reacts to the host's control channel going away: the
// session moves to Reconnecting so the caller's redial loop knows to
// retry rather than give up, picking this same Headset back up via
// Reattach once a new connection is established.
func (c *Headset) handlePeerGone(err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		c.log.Printf("control channel closed: %v", err)
	} else {
		c.log.Printf("control read error: %v", err)
	}
	c.setState(proto.SessionReconnecting)
	c.Close()
}

func (c *Headset) dispatchControl(p proto.HostControlPacket) {
	switch v := p.(type) {
	case proto.VideoStreamDescription:
		c.log.Printf("video stream description: %dx%d @ %.1ffps, %d items", v.Width, v.Height, v.Fps, len(v.Items))
	case proto.TrackingControl:
		// A full headset schedules Tracking packets at each pattern
		// entry's prediction time; out of scope without a real pose
		// source, noted here so the wire path is exercised by callers
		// that do supply one.
	case proto.RefreshRateChange:
		c.log.Printf("refresh rate changed to %.1f", v.Fps)
	case proto.SessionStateChanged:
		c.log.Printf("session state -> %v", v.State)
	case proto.ApplicationList, proto.ApplicationIcon, proto.RunningApplications, proto.PinRequest, proto.AudioStreamDescription:
		// Wire shapes only.
	}
}

func (c *Headset) readStreamLoop(ctx context.Context) {
	buf := make([]byte, 2048)
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		dg, err := c.stream.ReadDatagram(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.log.Printf("stream read error: %v", err)
			continue
		}
		if dg.ForceIdr {
			continue
		}

		p, err := transport.ReadHostPacket(dg)
		if err != nil {
			c.log.Printf("stream decode error: %v", err)
			continue
		}
		c.dispatchStream(p)
	}
}

func (c *Headset) dispatchStream(p proto.HostStreamPacket) {
	switch v := p.(type) {
	case proto.VideoStreamDataShard:
		payload, ok := c.reassemblerFor(v.StreamItemIdx).AddDataShard(v.FrameIdx, v.ShardIdx, v.Payload, v.Flags&proto.EndOfFrame != 0)
		if ok {
			c.presentAndReport(v.StreamItemIdx, v.FrameIdx, payload)
		}
	case proto.VideoStreamParityShard:
		payload, ok := c.reassemblerFor(v.StreamItemIdx).AddParityShard(v.FrameIdx, int(v.DataShardCount), v.NumParityElements, v.ParityElement, v.Payload)
		if ok {
			c.presentAndReport(v.StreamItemIdx, v.FrameIdx, payload)
		}
	case proto.Haptics:
		// Haptic playback is a platform-specific sink, out of scope.
	case proto.TimesyncQuery:
		c.respondTimesync(v)
	case proto.AudioData:
		// Speaker playback sink, out of scope.
	case proto.ForceIdr:
		// Host-initiated key frame request; the decoder path that would
		// consume this is out of scope.
	}
}

func (c *Headset) presentAndReport(streamItemIdx uint8, frameIdx uint64, payload []byte) {
	if c.presenter == nil {
		return
	}
	sentToDecoder, receivedFromDecoder, blitted, displayed, err := c.presenter.Present(streamItemIdx, frameIdx, payload)
	if err != nil {
		c.log.Printf("present stream item %d frame %d: %v", streamItemIdx, frameIdx, err)
		return
	}
	fb := proto.Feedback{
		FrameIndex:          frameIdx,
		StreamIndex:         streamItemIdx,
		SentToDecoder:       sentToDecoder,
		ReceivedFromDecoder: receivedFromDecoder,
		Blitted:             blitted,
		Displayed:           displayed,
	}
	if err := c.control.WriteHeadsetPacket(fb); err != nil {
		c.log.Printf("write feedback: %v", err)
	}
}

func (c *Headset) respondTimesync(q proto.TimesyncQuery) {
	resp := proto.TimesyncResponse{Query: q.Query, Response: uint64(time.Now().UnixNano())}
	if err := c.stream.WriteHeadsetPacket(c.hostAddr, resp); err != nil {
		c.log.Printf("write timesync response: %v", err)
	}
}
