// Package session orchestrates one streamed connection between host
// and headset: a net thread dispatching decoded packets, a worker
// thread running periodic jobs (clock sync, tracking resolve,
// refresh-rate choice), and an encoder thread turning produced frames
// into shards on the stream channel. See internal/transport for the
// wire channels this wires together.
package session

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexusvr/corevr/internal/clocksync"
	"github.com/nexusvr/corevr/internal/config"
	"github.com/nexusvr/corevr/internal/foveation"
	"github.com/nexusvr/corevr/internal/idr"
	"github.com/nexusvr/corevr/internal/logx"
	"github.com/nexusvr/corevr/internal/pacing"
	"github.com/nexusvr/corevr/internal/posehistory"
	"github.com/nexusvr/corevr/internal/proto"
	"github.com/nexusvr/corevr/internal/tracking"
	"github.com/nexusvr/corevr/internal/transport"
)

var log = logx.New("session")

const poseHistoryCapacity = 512

// Encoder produces one shard-codec-ready payload per video stream item
// per frame. Actual codec/GPU work is out of scope for this module; a
// real host wires a hardware or software encoder behind this
// interface.
type Encoder interface {
	EncodeFrame(streamItemIdx uint8, frameID uint64, frameType idr.FrameType) ([]byte, error)
}

// Host is one streamed session from the host's point of view: it owns
// the control and stream channels to a single connected headset, and
// every piece of per-session state the protocol core tracks.
type Host struct {
	id      string
	control *transport.Control
	stream  *transport.Stream
	log     *logx.Logger

	settings config.Settings

	clock     *clocksync.Estimator
	poses     map[proto.DeviceID]*posehistory.RelationHistory
	posesMu   sync.Mutex
	tracking  *tracking.Controller
	pacer     *pacing.Pacer
	foveation *foveation.Computer

	pacingFactory *pacing.Factory
	appPacer      *pacing.AppPacer

	refreshMu          sync.Mutex
	candidateRefreshHz []float32
	currentRefreshHz   float32

	idrMu sync.Mutex
	idrs  map[uint8]*idr.Handler

	encoder       Encoder
	streamItems   []proto.VideoStreamItem
	headsetAddr   net.Addr
	headsetAddrMu sync.Mutex

	stateMu sync.Mutex
	state   proto.SessionState

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewHost wraps an already-handshaken control connection and the
// shared stream socket into a session, ready for Run.
func NewHost(control *transport.Control, stream *transport.Stream, settings config.Settings, enc Encoder) *Host {
	id := uuid.NewString()
	factory := pacing.NewFactory()
	return &Host{
		id:                 id,
		control:            control,
		stream:             stream,
		log:                log.With(id[:8]),
		settings:           settings,
		clock:              clocksync.NewEstimator(),
		poses:              make(map[proto.DeviceID]*posehistory.RelationHistory),
		tracking:           tracking.NewController(3 * time.Millisecond),
		pacer:              pacing.NewPacer(frameDurationFor(settings.PreferredRefreshRate)),
		foveation:          foveation.New(1024, 1024),
		pacingFactory:      factory,
		appPacer:           factory.NewApp(),
		candidateRefreshHz: []float32{settings.MinimumRefreshRate, settings.PreferredRefreshRate},
		currentRefreshHz:   settings.PreferredRefreshRate,
		idrs:               make(map[uint8]*idr.Handler),
		encoder:            enc,
		stopCh:             make(chan struct{}),
	}
}

// setCandidateRefreshRates records the refresh rates the headset reported
// it supports, replacing the configured min/preferred pair the session
// starts with before the headset's own handshake info arrives.
func (h *Host) setCandidateRefreshRates(rates []float32) {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()
	if len(rates) > 0 {
		h.candidateRefreshHz = append([]float32(nil), rates...)
	}
}

// chooseRefreshRate aggregates every registered app pacer's frame-time
// budget into a refresh-rate pick and reports whether it differs from
// the last rate sent to the headset.
func (h *Host) chooseRefreshRate() (hz float32, changed bool) {
	h.refreshMu.Lock()
	candidates := append([]float32(nil), h.candidateRefreshHz...)
	prev := h.currentRefreshHz
	h.refreshMu.Unlock()

	hz = h.pacingFactory.ChooseRefreshRate(candidates)
	if hz <= 0 || hz == prev {
		return hz, false
	}

	h.refreshMu.Lock()
	h.currentRefreshHz = hz
	h.refreshMu.Unlock()
	return hz, true
}

func frameDurationFor(hz float32) time.Duration {
	if hz <= 0 {
		hz = 90
	}
	return time.Duration(float64(time.Second) / float64(hz))
}

// ID is this session's unique identifier.
func (h *Host) ID() string { return h.id }

// historyFor returns (creating if needed) the pose history ring for a
// device.
func (h *Host) historyFor(device proto.DeviceID) *posehistory.RelationHistory {
	h.posesMu.Lock()
	defer h.posesMu.Unlock()
	hist, ok := h.poses[device]
	if !ok {
		hist = posehistory.NewRelationHistory(poseHistoryCapacity)
		h.poses[device] = hist
	}
	return hist
}

func (h *Host) idrHandler(streamItemIdx uint8) *idr.Handler {
	h.idrMu.Lock()
	defer h.idrMu.Unlock()
	handler, ok := h.idrs[streamItemIdx]
	if !ok {
		handler = idr.NewHandler()
		h.idrs[streamItemIdx] = handler
	}
	return handler
}

// SetStreamItems configures the video description this session
// streams, sizing the pacer's per-stream feedback bookkeeping. Must be
// called before Run; the encoder thread reads streamItems without
// locking.
func (h *Host) SetStreamItems(items []proto.VideoStreamItem) {
	h.streamItems = items
	h.pacer.SetStreamCount(len(items))
	for i := range items {
		h.idrHandler(uint8(i))
	}
}

// ConfigureVideo computes per-eye foveation tables for the given source
// extents and sends the resulting video_stream_description to the
// headset, alongside SetStreamItems. eyeSources holds one entry per eye
// describing the eye's region within the full stream item.
func (h *Host) ConfigureVideo(width, height uint16, fps float32, items []proto.VideoStreamItem, eyeSources [2]foveation.Source) error {
	h.SetStreamItems(items)

	desc := proto.VideoStreamDescription{
		Width:     width,
		Height:    height,
		Fps:       fps,
		Items:     items,
		Foveation: h.foveation.ComputeParams(eyeSources)[:],
	}
	return h.control.WriteHostPacket(desc)
}

// Run starts the net, worker, and encoder threads and blocks until ctx
// is canceled or Close is called.
func (h *Host) Run(ctx context.Context) error {
	h.wg.Add(3)
	go h.netThread(ctx)
	go h.workerThread(ctx)
	go h.encoderThread(ctx)

	select {
	case <-ctx.Done():
	case <-h.stopCh:
	}
	h.Close()
	h.wg.Wait()
	return nil
}

// Close tears down the session's channels and stops all threads. Safe
// to call more than once and from any goroutine.
func (h *Host) Close() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		_ = h.control.Close()
	})
}

// announceSessionState sends a session_state_changed control packet,
// e.g. when a headset becomes the active rendering target or goes
// invisible.
func (h *Host) announceSessionState(state proto.SessionState) error {
	return h.control.WriteHostPacket(proto.SessionStateChanged{State: state})
}

// setState records the session's lifecycle state and announces it; the
// announce is best-effort since it's often called right as the channel
// carrying it is going away (e.g. the Reconnecting transition).
func (h *Host) setState(state proto.SessionState) {
	h.stateMu.Lock()
	h.state = state
	h.stateMu.Unlock()
	if err := h.announceSessionState(state); err != nil {
		h.log.Printf("announce session state %v: %v", state, err)
	}
}

// State returns the session's last recorded lifecycle state.
func (h *Host) State() proto.SessionState {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return h.state
}

// Reattach rewires this Host onto a freshly accepted control connection
// after PeerGone put it into Reconnecting, keeping its pose histories,
// tracking controller, and idr handlers instead of rebuilding them from
// scratch the way NewHost does. The caller must ensure the Host's
// previous Run call has already returned.
func (h *Host) Reattach(control *transport.Control) {
	h.control = control
	h.stopOnce = sync.Once{}
	h.stopCh = make(chan struct{})
	h.headsetAddrMu.Lock()
	h.headsetAddr = nil
	h.headsetAddrMu.Unlock()
	h.setState(proto.SessionActive)
}
