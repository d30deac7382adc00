// Package idr decides, per outgoing video frame, whether the encoder
// must produce a key frame (IDR) before encoding can resume after a
// frame loss: NeedIdr -> WaitIdrFeedback -> IdrReceived -> Running, with
// a starvation escape back to NeedIdr if the feedback for a requested
// IDR never arrives.
package idr

import (
	"sync"

	"github.com/nexusvr/corevr/internal/proto"
)

// FrameType is what kind of frame the encoder should produce next.
type FrameType int

const (
	FrameP FrameType = iota
	FrameI
)

type stateKind int

const (
	stateNeedIdr stateKind = iota
	stateWaitIdrFeedback
	stateIdrReceived
	stateRunning
)

// starvationFrames bounds how long Handler waits for feedback on a
// requested IDR before giving up and asking again.
const starvationFrames = 100

// Handler tracks the key-frame request/acknowledge cycle for one video
// stream item.
type Handler struct {
	mu     sync.Mutex
	kind   stateKind
	idrID  uint64 // set when kind == stateWaitIdrFeedback
	firstP uint64 // set when kind == stateRunning
}

// NewHandler returns a Handler that will request an IDR for the first
// frame it's asked about.
func NewHandler() *Handler {
	return &Handler{kind: stateNeedIdr}
}

// OnFeedback updates state from a headset feedback report: confirms a
// requested IDR was decoded, or notices a P-frame was dropped and falls
// back to requesting a new IDR.
func (h *Handler) OnFeedback(f proto.Feedback) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sentToDecoder := f.SentToDecoder != 0

	switch h.kind {
	case stateWaitIdrFeedback:
		if sentToDecoder && f.FrameIndex == h.idrID {
			h.kind = stateIdrReceived
		}
	case stateRunning:
		if !sentToDecoder && f.FrameIndex >= h.firstP {
			h.kind = stateNeedIdr
		}
	}
}

// Reset forces an IDR request on the next GetType call, e.g. after a
// reconnect.
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kind = stateNeedIdr
}

// ShouldSkip reports whether frameID should be dropped rather than sent,
// because an IDR was requested and hasn't been acknowledged yet. If the
// wait has gone on far longer than a frame round trip should, it gives
// up waiting and allows a fresh IDR request instead of skipping forever.
func (h *Handler) ShouldSkip(frameID uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.kind != stateWaitIdrFeedback {
		return false
	}
	if frameID > h.idrID+starvationFrames {
		h.kind = stateNeedIdr
		return false
	}
	return true
}

// GetType returns the frame type to encode frameIndex as, advancing the
// state machine: requesting an IDR moves to WaitIdrFeedback, and the
// first P-frame after an acknowledged IDR moves to Running.
func (h *Handler) GetType(frameIndex uint64) FrameType {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.kind {
	case stateNeedIdr:
		h.kind = stateWaitIdrFeedback
		h.idrID = frameIndex
		return FrameI
	case stateIdrReceived:
		h.kind = stateRunning
		h.firstP = frameIndex
		return FrameP
	default:
		return FrameP
	}
}
