// Package pacing schedules when the host should start rendering each
// frame and at what rate, closing the loop on headset feedback the way
// the render loop's frame pacer does: nudging the wake-up schedule by
// how long the headset waited on a decoded frame, and aggregating
// refresh-rate requests across every connected render client.
package pacing

import (
	"sync"
	"time"

	"github.com/nexusvr/corevr/internal/proto"
)

const lerpAlpha = 0.1

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// Prediction is what Pacer.Predict hands the render loop for the next
// frame: when to wake up, when the frame is due to be presented, and
// the display time pose prediction should target.
type Prediction struct {
	FrameID               int64
	WakeUpNs              int64
	DesiredPresentNs       int64
	PredictedDisplayTimeNs int64
}

// Pacer paces frame submission for one streamed session: a fixed target
// frame duration, adjusted slightly as feedback reveals the headset is
// waiting too long or not long enough on decoded frames.
type Pacer struct {
	mu sync.Mutex

	frameDurationNs int64
	nextFrameNs     int64
	frameID         int64

	meanWakeUpToPresentNs int64
	meanClientWaitNs      int64
	lastWakeUpNs          int64

	streams []streamFeedback
}

type streamFeedback struct {
	have         bool
	frameIndex   uint64
	displayed    int64
	decodedNs    int64
}

// NewPacer returns a Pacer targeting the given frame duration.
func NewPacer(frameDuration time.Duration) *Pacer {
	return &Pacer{
		frameDurationNs:       int64(frameDuration),
		meanWakeUpToPresentNs: 1_000_000,
	}
}

// SetStreamCount sizes per-stream feedback bookkeeping (one video stream
// item may be a dedicated foveated region streamed and decoded
// independently of the others).
func (p *Pacer) SetStreamCount(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streams = make([]streamFeedback, n)
}

// Predict returns the schedule for the next frame: when to start
// rendering, when it's due on screen, and the ever-advancing frame ID.
func (p *Pacer) Predict(nowNs int64) Prediction {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nextFrameNs == 0 {
		p.nextFrameNs = nowNs
	}
	p.nextFrameNs += p.frameDurationNs
	p.frameID++

	desired := p.nextFrameNs + p.meanWakeUpToPresentNs
	return Prediction{
		FrameID:                p.frameID,
		WakeUpNs:               p.nextFrameNs,
		DesiredPresentNs:       desired,
		PredictedDisplayTimeNs: desired,
	}
}

// OnFeedback folds one stream's feedback report into the pacing model:
// it refines the frame-duration estimate from consecutive displayed
// timestamps on the primary stream, tracks how long the headset waits
// between a frame coming out of the decoder and being blitted to the
// display, and nudges the wake-up schedule so that wait stays between a
// quarter and half of a frame.
func (p *Pacer) OnFeedback(streamIndex int, f proto.Feedback, hostNs func(headsetNs int64) int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if streamIndex < 0 || streamIndex >= len(p.streams) {
		return
	}
	last := p.streams[streamIndex]

	displayed := int64(0)
	if f.Displayed != 0 {
		displayed = hostNs(f.Displayed)
	}
	decoded := int64(0)
	if f.ReceivedFromDecoder != 0 {
		decoded = hostNs(f.ReceivedFromDecoder)
	}

	if streamIndex == 0 && last.have && last.displayed != 0 && displayed != 0 &&
		f.FrameIndex == last.frameIndex+1 {
		observed := displayed - last.displayed
		p.frameDurationNs = int64(lerp(float64(p.frameDurationNs), float64(observed), lerpAlpha))
	}

	p.streams[streamIndex] = streamFeedback{have: true, frameIndex: f.FrameIndex, displayed: displayed, decodedNs: decoded}

	sameFrame := true
	var maxDecoded int64
	for _, s := range p.streams {
		if s.have && s.frameIndex != f.FrameIndex {
			sameFrame = false
		}
		if s.decodedNs > maxDecoded {
			maxDecoded = s.decodedNs
		}
	}

	blitted := int64(0)
	if f.Blitted != 0 {
		blitted = hostNs(f.Blitted)
	}
	if sameFrame && blitted != 0 {
		wait := blitted - maxDecoded
		p.meanClientWaitNs = int64(lerp(float64(p.meanClientWaitNs), float64(wait), lerpAlpha))
	}

	if p.meanClientWaitNs > p.frameDurationNs/2 {
		p.nextFrameNs += p.frameDurationNs / 1000
	}
	if p.meanClientWaitNs < p.frameDurationNs/4 {
		p.nextFrameNs -= p.frameDurationNs / 1000
	}
}

// Timing point kinds, mirroring the compositor's own submit timeline:
// only the span between waking up and finishing the GPU submit feeds
// back into the pacing model.
const (
	TimingWakeUp = iota
	TimingSubmitBegin
	TimingSubmitEnd
)

// MarkTimingPoint records one point in the render loop's own timeline
// for the current frame.
func (p *Pacer) MarkTimingPoint(point int, whenNs int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch point {
	case TimingWakeUp:
		p.lastWakeUpNs = whenNs
	case TimingSubmitEnd:
		if p.lastWakeUpNs != 0 {
			p.meanWakeUpToPresentNs = int64(lerp(float64(p.meanWakeUpToPresentNs), float64(whenNs-p.lastWakeUpNs), lerpAlpha))
		}
	}
}

// Reset clears accumulated pacing state, e.g. after a reconnect.
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextFrameNs = 0
	p.frameID = 0
	p.meanWakeUpToPresentNs = 1_000_000
	p.meanClientWaitNs = 0
	p.lastWakeUpNs = 0
	p.streams = make([]streamFeedback, len(p.streams))
}

// FrameDuration reports the pacer's current frame-duration estimate.
func (p *Pacer) FrameDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.frameDurationNs)
}
