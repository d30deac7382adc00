// Package clocksync estimates the offset between the host's monotonic
// clock and the headset's monotonic clock from periodic timesync_query /
// timesync_response round trips, so pose timestamps and frame display
// times can be translated between the two clocks.
package clocksync

import (
	"sync"
	"time"
)

// Offset relates the two clocks: headset = server + B.
type Offset struct {
	B      int64
	Stable bool
}

// FromHeadset converts a headset-clock timestamp to the host's clock.
func (o Offset) FromHeadset(ts int64) int64 { return ts - o.B }

// ToHeadset converts a host-clock timestamp to the headset's clock.
func (o Offset) ToHeadset(ts int64) int64 { return ts + o.B }

type sample struct {
	query, response, received int64
}

// Estimator maintains a sliding window of round trips and derives Offset
// by linear regression, matching the windowed least-squares approach: the
// window fills with raw midpoint estimates, then once full, outliers (by
// excess round-trip latency, a sign of retransmission) are dropped and
// the offset is regressed from the remaining samples.
type Estimator struct {
	windowSize int

	mu             sync.Mutex
	samples        []sample
	index          int
	offset         Offset
	nextSample     time.Time
	sampleInterval time.Duration
}

const defaultWindowSize = 100

// NewEstimator returns an Estimator with the default 100-sample window.
func NewEstimator() *Estimator {
	return &Estimator{
		windowSize:     defaultWindowSize,
		sampleInterval: 10 * time.Millisecond,
	}
}

// Reset clears accumulated samples and returns to the fast initial
// sampling interval, e.g. after a reconnect.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.samples = nil
	e.index = 0
	e.offset = Offset{}
	e.nextSample = time.Time{}
	e.sampleInterval = 10 * time.Millisecond
}

// MaybeQuery reports whether a new timesync_query should be sent at now,
// returning the host-monotonic query value to embed in it. Call sites
// that get false should not send a query this tick.
func (e *Estimator) MaybeQuery(now time.Time, hostMonotonicNs int64) (query int64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now.Before(e.nextSample) {
		return 0, false
	}
	e.nextSample = now.Add(e.sampleInterval)
	return hostMonotonicNs, true
}

// AddSample folds one timesync_response into the window and recomputes
// the offset. receivedAtNs is the host-monotonic time the response
// arrived at.
func (e *Estimator) AddSample(query, response, receivedAtNs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := sample{query: query, response: response, received: receivedAtNs}

	if len(e.samples) < e.windowSize {
		e.samples = append(e.samples, s)
	} else {
		e.sampleInterval = 100 * time.Millisecond

		var totalLatency int64
		for _, old := range e.samples {
			totalLatency += old.received - old.query
		}
		avgLatency := totalLatency / int64(len(e.samples))

		if s.received-s.query > 3*avgLatency {
			// Likely a retransmit: we can't tell which leg was delayed.
			return
		}

		e.samples[e.index] = s
		e.index = (e.index + 1) % e.windowSize
	}

	e.recompute()
}

// recompute performs the windowed least-squares regression described in
// driver/clock_offset.cpp: x is host time, y is headset time, fit
// y = x + b around the means to keep the regression numerically stable.
func (e *Estimator) recompute() {
	n := len(e.samples)
	invN := 1.0 / float64(n)

	var x0, y0 float64
	for _, s := range e.samples {
		x0 += float64(s.query+s.received) * 0.5
		y0 += float64(s.response)
	}
	x0 *= invN
	y0 *= invN

	if n < e.windowSize {
		e.offset = Offset{B: int64(y0 - x0)}
		return
	}

	var sumX, sumY float64
	for _, s := range e.samples {
		x := float64(s.query+s.received)*0.5 - x0
		y := float64(s.response) - y0
		sumX += x
		sumY += y
	}

	meanX := sumX * invN
	meanY := sumY * invN

	b := y0 + (meanY - meanX) - x0

	stable := absInt64(int64(b)-e.offset.B) < 20_000_000
	e.offset = Offset{B: int64(b), Stable: stable}
}

// Offset returns the most recently computed clock relation.
func (e *Estimator) Offset() Offset {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offset
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
