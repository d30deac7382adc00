package clocksync

// LowpassEstimator is the alternate clock offset estimator: instead of a
// sliding regression window, it keeps a single exponentially lowpass
// filtered (query, response, received) triple and an accumulating 3x3
// covariance-like matrix, solving for the point on the query-received
// segment where the headset most likely processed the packet. It reacts
// to drift faster than Estimator at the cost of noisier short-term
// offsets, and is offered as a documented alternative rather than the
// default: see DESIGN.md's resolution of the clock-sync Open Question.
type LowpassEstimator struct {
	initialized bool
	filtered    [3]float64 // query, response, received
	a           [3][3]float64

	offset Offset
}

const (
	lowpassAlpha = 0.8
	maxRTTRatio  = 3.0
)

// Update folds one (query, response, received) sample and returns the
// new offset, or the previous offset if the sample looks like a
// retransmit.
func (e *LowpassEstimator) Update(query, response, received int64) Offset {
	u := [3]float64{float64(query), float64(response), float64(received)}
	rtt := received - query

	if !e.initialized {
		e.filtered = u
		e.initialized = true
		off := int64(u[1] - 0.5*(u[0]+u[2]))
		e.offset = Offset{B: off, Stable: false}
		return e.offset
	}

	meanRTT := e.filtered[2] - e.filtered[0]
	for i := range e.filtered {
		e.filtered[i] += lowpassAlpha * (u[i] - e.filtered[i])
	}

	if meanRTT > 0 && float64(rtt) > maxRTTRatio*meanRTT {
		return e.offset
	}

	var tmp [3]float64
	for i := range tmp {
		tmp[i] = u[i] - e.filtered[i]
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			e.a[i][j] = e.a[i][j]*0.99 + tmp[i]*tmp[j]
		}
	}

	denom := e.a[0][0] - 2*e.a[0][2] + e.a[2][2]
	x := 0.5
	if denom != 0 {
		x = (e.a[0][1] - e.a[0][2] - e.a[1][2] + e.a[2][2]) / denom
	}
	x = clamp01(x)

	t := lerp(float64(received), float64(query), x)
	off := response - int64(t)
	if e.offset.B != 0 {
		off = int64(lerp(float64(off), float64(e.offset.B), lowpassAlpha))
	}
	e.offset = Offset{B: off, Stable: true}
	return e.offset
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
