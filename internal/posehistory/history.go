// Package posehistory keeps a short, timestamped window of samples per
// tracked device and answers pose queries at arbitrary timestamps by
// interpolating between bracketing samples or extrapolating from the
// two most recent ones, the way a prediction-horizon render loop needs.
package posehistory

import (
	"sort"
	"sync"

	"github.com/nexusvr/corevr/internal/clocksync"
)

// Interpolator supplies the type-specific math History[T] needs: how to
// blend two samples at a fractional point between them, and how to
// project from the two nearest samples (the trailing two, or the leading
// two for a time before the window) when the query time is outside the
// window.
type Interpolator[T any] interface {
	Interpolate(a, b T, t float32) T
	Extrapolate(a, b T, taNs, tbNs, atNs int64) T
}

type timedSample[T any] struct {
	atNs int64
	data T
}

// History is a fixed-capacity, time-ordered ring of samples for one
// device, generic over the sample payload type (pose, hand joint set,
// face weights, ...).
type History[T any] struct {
	maxSamples int
	interp     Interpolator[T]

	mu   sync.Mutex
	data []timedSample[T]
}

// New returns a History holding at most maxSamples entries.
func New[T any](maxSamples int, interp Interpolator[T]) *History[T] {
	return &History[T]{maxSamples: maxSamples, interp: interp}
}

// AddSample inserts sample at the headset-clock timestamp timestampNs,
// translated to host time via offset. Samples are kept sorted by time;
// a sample landing on an existing timestamp replaces it.
func (h *History[T]) AddSample(timestampNs int64, sample T, offset clocksync.Offset) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := offset.FromHeadset(timestampNs)
	idx := sort.Search(len(h.data), func(i int) bool { return h.data[i].atNs >= t })

	switch {
	case idx == len(h.data):
		h.data = append(h.data, timedSample[T]{atNs: t, data: sample})
	case h.data[idx].atNs == t:
		h.data[idx] = timedSample[T]{atNs: t, data: sample}
	default:
		h.data = append(h.data, timedSample[T]{})
		copy(h.data[idx+1:], h.data[idx:])
		h.data[idx] = timedSample[T]{atNs: t, data: sample}
	}

	if len(h.data) > h.maxSamples {
		h.data = h.data[1:]
	}
}

// GetAt returns the sample interpolated or extrapolated to atNs, the
// zero value of T if no sample has ever been added.
func (h *History[T]) GetAt(atNs int64) T {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.data) == 0 {
		var zero T
		return zero
	}
	if len(h.data) == 1 {
		return h.data[0].data
	}

	if h.data[0].atNs > atNs {
		return h.interp.Extrapolate(h.data[0].data, h.data[1].data, h.data[0].atNs, h.data[1].atNs, atNs)
	}

	for i := 1; i < len(h.data); i++ {
		if h.data[i].atNs > atNs {
			prev, cur := h.data[i-1], h.data[i]
			t := float32(cur.atNs-atNs) / float32(cur.atNs-prev.atNs)
			return h.interp.Interpolate(prev.data, cur.data, t)
		}
	}

	d0, d1 := h.data[len(h.data)-2], h.data[len(h.data)-1]
	return h.interp.Extrapolate(d0.data, d1.data, d0.atNs, d1.atNs, atNs)
}

// Len reports how many samples are currently retained.
func (h *History[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.data)
}
