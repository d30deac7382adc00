// Package foveation computes per-axis, per-eye foveation tables: which
// source pixel columns/rows map to which encoded (foveated) ones, denser
// near the gaze point so the encoder spends bits where the eye looks.
package foveation

import (
	"math"
	"sync"

	"github.com/nexusvr/corevr/internal/proto"
)

// foveate maps a normalized destination coordinate x in [-1, 1] to a
// normalized source coordinate, concentrating resolution around c.
func foveate(a, b, lambda, c, x float64) float64 {
	return lambda/a*math.Tan(a*x+b) + c
}

// solve finds (a, b) such that foveate(a, b, lambda, c, -1) = -1 and
// foveate(a, b, lambda, c, 1) = 1, i.e. the image edges don't move, while
// matching the requested scale and center. It brackets a root with
// doubling, narrows with bisection until a sign change gives both
// endpoints, then switches to the secant method to converge quickly.
func solve(lambda, c float64) (a, b float64) {
	bOf := func(a float64) float64 { return math.Atan(a*(1-c)/lambda) - a }
	eq := func(a float64) float64 {
		return math.Atan(a*(1-c)/lambda) + math.Atan(a*(1+c)/lambda) - 2*a
	}

	a0 := 0.0
	a1 := 1.0
	for eq(a1) > 0 {
		a1 *= 2
	}

	var fA0 float64
	haveFA0 := false
	fA1 := eq(a1)

	av := 0.0
	for n := 0; math.Abs(a1-a0) > 1e-7 && n < 100; n++ {
		if !haveFA0 {
			av = 0.5 * (a0 + a1)
			val := eq(av)
			if val > 0 {
				a0 = av
				fA0 = val
				haveFA0 = true
			} else {
				a1 = av
				fA1 = val
			}
		} else {
			av = a1 - fA1*(a1-a0)/(fA1-fA0)
			a0 = a1
			a1 = av
			fA0 = fA1
			fA1 = eq(av)
		}
	}

	return a1, bOf(a1)
}

// FillAxis computes the per-ratio table for one axis: each of the
// foveatedDim destination pixels spans some number r of the sourceDim
// source pixels, r growing the farther the pixel is from the gaze center
// c (in [-1, 1], normalized destination coordinates), and the table
// counts how many destination pixels have each r. The entry at distance
// d from the middle holds the count for r = d+1, pixels left of c on the
// left half and the rest on the right half, so the middle entry is the
// 1:1 count, the entries sum to foveatedDim and never move the image
// edges. Ratios no pixel uses are zero entries.
func FillAxis(center float32, foveatedDim, sourceDim int) []uint16 {
	if foveatedDim >= sourceDim {
		return []uint16{uint16(sourceDim)}
	}

	scale := float64(foveatedDim) / float64(sourceDim)
	a, b := solve(scale, float64(center))

	var left, right []uint16
	var last uint16

	for i := 1; i < foveatedDim; i++ {
		u := float64(i)*2/float64(foveatedDim) - 1
		f := foveate(a, b, scale, float64(center), u)
		n := clampU16((f*0.5+0.5)*float64(sourceDim)+0.5, 0, sourceDim)

		count := int(n) - int(last)
		var side *[]uint16
		if u < float64(center) {
			side = &left
		} else {
			side = &right
		}
		if count > len(*side) {
			grown := make([]uint16, count)
			copy(grown, *side)
			*side = grown
		}
		(*side)[count-1]++
		last = n
	}

	count := sourceDim - int(last)
	if count > len(right) {
		grown := make([]uint16, count)
		copy(grown, right)
		right = grown
	}
	right[count-1]++

	width := len(left)
	if len(right) > width {
		width = len(right)
	}

	out := make([]uint16, 0, width*2-1)
	for i := width - len(left); i > 0; i-- {
		out = append(out, 0)
	}
	for i := len(left) - 1; i >= 0; i-- {
		out = append(out, left[i])
	}
	if len(right) > 0 {
		out[len(out)-1] += right[0]
	}
	if len(right) > 1 {
		out = append(out, right[1:]...)
	}
	for len(out) < width*2-1 {
		out = append(out, 0)
	}
	return out
}

func clampU16(v float64, lo, hi int) uint16 {
	if v < float64(lo) {
		return uint16(lo)
	}
	if v > float64(hi) {
		return uint16(hi)
	}
	return uint16(v)
}

// yawPitch extracts the yaw (around vertical) and pitch (around
// horizontal) Euler angles from a unit quaternion, matching the
// convention the rest of this package's angle math assumes.
func yawPitch(q proto.Quat) (yaw, pitch float32) {
	sinTheta := clampF32(-2*(q.Y*q.Z-q.W*q.X), -1, 1)
	pitch = float32(math.Asin(float64(sinTheta)))

	if abs32(sinTheta) > 0.99999 {
		scale := float32(2)
		if sinTheta < 0 {
			scale = -2
		}
		yaw = scale * float32(math.Atan2(float64(-q.Z), float64(q.W)))
		return yaw, pitch
	}

	yaw = float32(math.Atan2(
		float64(2*(q.X*q.Z+q.W*q.Y)),
		float64(q.W*q.W-q.X*q.X-q.Y*q.Y+q.Z*q.Z),
	))
	return yaw, pitch
}

func anglesToCenter(e, l, r float32) float32 {
	return (e-l)/(r-l)*2 - 1
}

// convergenceAngle estimates the extra yaw needed for one eye to
// converge on the gaze target at a fixed simulated distance.
func convergenceAngle(eyeX, gazeYaw float32) float32 {
	const simulatedConvergenceDist = 0.5
	b := simulatedConvergenceDist*float32(math.Sin(float64(gazeYaw))) - eyeX
	return float32(math.Asin(float64(b / simulatedConvergenceDist)))
}

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func quatConj(q proto.Quat) proto.Quat { return proto.Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W} }

func quatMul(a, b proto.Quat) proto.Quat {
	return proto.Quat{
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y,
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X,
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W,
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z,
	}
}

// quatUnrotate expresses qgaze (given in the same space as head) in
// head's local frame.
func quatUnrotate(head, qgaze proto.Quat) proto.Quat {
	return quatMul(quatConj(head), qgaze)
}

// Source describes the encoded source image region for one eye.
type Source struct {
	OffsetW, OffsetH int
	ExtentW, ExtentH int
}

// Computer tracks head/gaze orientation and derives the foveation table
// pair (one EyeFoveation per eye) the video_stream_description packet
// carries.
type Computer struct {
	foveatedWidth, foveatedHeight int

	mu       sync.Mutex
	views    [2]proto.TrackingView
	gaze     proto.Quat
	haveGaze bool
}

// New returns a Computer for a display of foveatedWidth x foveatedHeight
// pixels per eye (the encoded, foveated resolution, not the source
// resolution).
func New(foveatedWidth, foveatedHeight int) *Computer {
	return &Computer{foveatedWidth: foveatedWidth, foveatedHeight: foveatedHeight}
}

// UpdateTracking extracts head orientation and eye-gaze-in-head-frame
// from a tracking packet. Poses missing valid orientation leave the
// previous gaze estimate in place.
func (c *Computer) UpdateTracking(tr proto.Tracking) {
	const orientationOK = proto.OrientationValid | proto.OrientationTracked

	var head proto.Quat
	haveHead := false
	for _, dp := range tr.DevicePoses {
		if dp.Device != proto.DeviceHead {
			continue
		}
		if dp.Flags&orientationOK != orientationOK {
			return
		}
		head = dp.Pose.Orientation
		haveHead = true
		break
	}
	if !haveHead {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.views = tr.Views

	for _, dp := range tr.DevicePoses {
		if dp.Device != proto.DeviceEyeGaze {
			continue
		}
		if dp.Flags&orientationOK != orientationOK {
			return
		}
		c.gaze = quatUnrotate(head, dp.Pose.Orientation)
		c.haveGaze = true
		return
	}
}

// ComputeParams derives the per-eye, per-axis foveation tables for the
// given source regions, using the most recently tracked gaze direction
// (or image center if no gaze sample has arrived yet).
func (c *Computer) ComputeParams(src [2]Source) [2]proto.EyeFoveation {
	c.mu.Lock()
	views := c.views
	gaze := c.gaze
	haveGaze := c.haveGaze
	c.mu.Unlock()

	var tanCenter [2][2]float32 // [eye][x,y]
	if haveGaze {
		gazeYaw, gazePitch := yawPitch(gaze)
		for i := 0; i < 2; i++ {
			viewYaw, viewPitch := yawPitch(views[i].Pose.Orientation)

			angleX := convergenceAngle(views[i].Pose.Position.X, gazeYaw)
			tanCenter[i][0] = anglesToCenter(viewYaw+angleX, views[i].Fov.AngleLeft, views[i].Fov.AngleRight)

			offsetY := (views[i].Fov.AngleDown + views[i].Fov.AngleUp) / 2
			tanCenter[i][1] = anglesToCenter(-viewPitch-gazePitch, views[i].Fov.AngleUp, views[i].Fov.AngleDown) + offsetY
		}
	}

	var out [2]proto.EyeFoveation
	for i := 0; i < 2; i++ {
		out[i].X.Table = FillAxis(tanCenter[i][0], c.foveatedWidth, src[i].ExtentW)
		out[i].Y.Table = FillAxis(tanCenter[i][1], c.foveatedHeight, src[i].ExtentH)
	}
	return out
}
