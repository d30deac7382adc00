// Package tracking aggregates per-device prediction-time requests from
// the render loop into periodic tracking_control packets telling the
// headset which future instants to report poses for.
package tracking

import (
	"sync"
	"time"

	"github.com/nexusvr/corevr/internal/proto"
)

// MaxExtrapolationNs bounds how far into the future a prediction request
// is allowed to clamp to, so a runaway request can't ask for a pose so
// far ahead that extrapolation becomes meaningless.
const MaxExtrapolationNs = 100_000_000 // 100ms

// highFrequencyStepNs is used for devices whose pose is sampled at a
// much higher rate than the frame rate (head and hand poses used for
// reprojection), rather than one sample per display frame.
const highFrequencyStepNs = 3_000_000

var highFrequencyDevices = map[proto.DeviceID]bool{
	proto.DeviceHead:         true,
	proto.DeviceLeftGrip:     true,
	proto.DeviceLeftAim:      true,
	proto.DeviceLeftPalm:     true,
	proto.DeviceRightGrip:    true,
	proto.DeviceRightAim:     true,
	proto.DeviceRightPalm:    true,
	proto.DeviceLeftPinchPose:  true,
	proto.DeviceRightPinchPose: true,
	proto.DeviceEyeGaze:      true,
}

type requestRange struct {
	minPrediction int64
	maxPrediction int64
	set           bool
}

// Controller aggregates prediction requests across a resolve period and
// emits the tracking_control pattern the headset should poll at.
type Controller struct {
	step time.Duration

	mu               sync.Mutex
	reqs             map[proto.DeviceID]*requestRange
	motionsToPhotons int64
	next             time.Time
}

// NewController returns a Controller that resolves once per step.
func NewController(step time.Duration) *Controller {
	return &Controller{
		step: step,
		reqs: make(map[proto.DeviceID]*requestRange),
		next: time.Now().Add(step),
	}
}

// Advance reports whether it's time to Resolve, advancing the internal
// schedule when it is.
func (c *Controller) Advance(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next.After(now) {
		return false
	}
	c.next = c.next.Add(c.step)
	return true
}

// AddRequest records that device's pose was asked for at host time
// atNs, observed at host time now, with the pose sample that produced
// the request having been captured at producedNs (0 if unknown).
func (c *Controller) AddRequest(device proto.DeviceID, now, atNs, producedNs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prediction := atNs - now
	r, ok := c.reqs[device]
	if !ok {
		r = &requestRange{}
		c.reqs[device] = r
	}
	if !r.set || prediction < r.minPrediction {
		r.minPrediction = prediction
	}
	if !r.set || prediction > r.maxPrediction {
		r.maxPrediction = prediction
	}
	r.set = true

	if producedNs != 0 {
		motionsToPhotons := atNs - producedNs
		if motionsToPhotons > c.motionsToPhotons {
			c.motionsToPhotons = motionsToPhotons
		}
	}
}

// Resolve drains accumulated requests into a tracking_control packet,
// expanding each device's [min,max] prediction window into concrete
// sample points spaced by either the frame interval or, for
// high-frequency poses, a fixed short step.
func (c *Controller) Resolve(frameTimeNs, latencyNs int64) proto.TrackingControl {
	c.mu.Lock()
	reqs := c.reqs
	c.reqs = make(map[proto.DeviceID]*requestRange)
	motionsToPhotons := c.motionsToPhotons
	c.motionsToPhotons = 0
	c.mu.Unlock()

	var pattern []proto.TrackingControlEntry

	for device, r := range reqs {
		if !r.set {
			continue
		}

		step := frameTimeNs
		if highFrequencyDevices[device] {
			step = highFrequencyStepNs
		}
		if device == proto.DeviceFace {
			// Face tracking can't extrapolate: only ever ask for "now".
			pattern = append(pattern, proto.TrackingControlEntry{Device: device, PredictionNs: 0})
		}

		minP := clamp(r.minPrediction+latencyNs, 0, MaxExtrapolationNs)
		maxP := clamp(r.maxPrediction+latencyNs, 0, MaxExtrapolationNs)

		for t := minP; t < maxP+step; t += step {
			pattern = append(pattern, proto.TrackingControlEntry{Device: device, PredictionNs: t})
		}
	}

	return proto.TrackingControl{Pattern: pattern, MotionsToPhotons: motionsToPhotons}
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
