package posehistory

import (
	"math"

	"github.com/nexusvr/corevr/internal/proto"
)

func vecAdd(a, b proto.Vec3) proto.Vec3 {
	return proto.Vec3{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z}
}

func vecSub(a, b proto.Vec3) proto.Vec3 {
	return proto.Vec3{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}
}

func vecScale(a proto.Vec3, s float32) proto.Vec3 {
	return proto.Vec3{X: a.X * s, Y: a.Y * s, Z: a.Z * s}
}

func vecLerp(a, b proto.Vec3, t float32) proto.Vec3 {
	return vecAdd(vecScale(a, 1-t), vecScale(b, t))
}

// quatMul composes two rotations, a then b (b applied in a's frame).
func quatMul(a, b proto.Quat) proto.Quat {
	return proto.Quat{
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y,
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X,
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W,
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z,
	}
}

func quatDot(a, b proto.Quat) float32 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z + a.W*b.W
}

func quatNormalize(q proto.Quat) proto.Quat {
	n := float32(math.Sqrt(float64(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)))
	if n == 0 {
		return proto.IdentityQuat
	}
	return proto.Quat{X: q.X / n, Y: q.Y / n, Z: q.Z / n, W: q.W / n}
}

// quatSlerp spherically interpolates between a and b, falling back to a
// normalized linear interpolation when they're nearly parallel to avoid
// dividing by a near-zero sine.
func quatSlerp(a, b proto.Quat, t float32) proto.Quat {
	cosHalfTheta := quatDot(a, b)
	if cosHalfTheta < 0 {
		b = proto.Quat{X: -b.X, Y: -b.Y, Z: -b.Z, W: -b.W}
		cosHalfTheta = -cosHalfTheta
	}
	if cosHalfTheta > 0.9995 {
		return quatNormalize(proto.Quat{
			X: a.X + (b.X-a.X)*t,
			Y: a.Y + (b.Y-a.Y)*t,
			Z: a.Z + (b.Z-a.Z)*t,
			W: a.W + (b.W-a.W)*t,
		})
	}

	halfTheta := float32(math.Acos(float64(cosHalfTheta)))
	sinHalfTheta := float32(math.Sin(float64(halfTheta)))

	ratioA := float32(math.Sin(float64((1-t)*halfTheta))) / sinHalfTheta
	ratioB := float32(math.Sin(float64(t*halfTheta))) / sinHalfTheta

	return proto.Quat{
		X: a.X*ratioA + b.X*ratioB,
		Y: a.Y*ratioA + b.Y*ratioB,
		Z: a.Z*ratioA + b.Z*ratioB,
		W: a.W*ratioA + b.W*ratioB,
	}
}

// quatExp maps a rotation vector (axis * angle, small-angle integrated
// angular velocity) to the unit quaternion it represents.
func quatExp(v proto.Vec3) proto.Quat {
	angle := float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
	if angle < 1e-8 {
		return proto.IdentityQuat
	}
	half := angle / 2
	s := float32(math.Sin(float64(half))) / angle
	return proto.Quat{X: v.X * s, Y: v.Y * s, Z: v.Z * s, W: float32(math.Cos(float64(half)))}
}
