package posehistory

import "github.com/nexusvr/corevr/internal/proto"

// RelationInterpolator implements Interpolator[proto.SpaceRelation]:
// SLERP/LERP between bracketing samples, constant-acceleration
// extrapolation beyond the trailing sample.
type RelationInterpolator struct{}

// Interpolate blends a and b, where t=1 selects a and t=0 selects b (the
// convention History.GetAt uses when walking forward through the
// window).
func (RelationInterpolator) Interpolate(a, b proto.SpaceRelation, t float32) proto.SpaceRelation {
	return proto.SpaceRelation{
		Pose: proto.Pose{
			Orientation: quatSlerp(b.Pose.Orientation, a.Pose.Orientation, t),
			Position:    vecLerp(b.Pose.Position, a.Pose.Position, t),
		},
		LinearVelocity:  vecLerp(b.LinearVelocity, a.LinearVelocity, t),
		AngularVelocity: vecLerp(b.AngularVelocity, a.AngularVelocity, t),
		RelationFlags:   a.RelationFlags & b.RelationFlags,
	}
}

// Extrapolate projects forward from (a, b) at ta/tb to atNs using a
// constant-acceleration model derived from the two samples' velocities.
func (RelationInterpolator) Extrapolate(a, b proto.SpaceRelation, taNs, tbNs, atNs int64) proto.SpaceRelation {
	if atNs < taNs {
		return a
	}

	h := float32(tbNs-taNs) / 1e9
	if h <= 0 {
		return b
	}

	linAcc := vecScale(vecSub(b.LinearVelocity, a.LinearVelocity), 1/h)
	angAcc := vecScale(vecSub(b.AngularVelocity, a.AngularVelocity), 1/h)

	dt := float32(atNs-tbNs) / 1e9
	dt2Over2 := dt * dt / 2

	res := proto.SpaceRelation{RelationFlags: b.RelationFlags}
	res.LinearVelocity = vecAdd(b.LinearVelocity, vecScale(linAcc, dt))
	res.Pose.Position = vecAdd(vecAdd(b.Pose.Position, vecScale(b.LinearVelocity, dt)), vecScale(linAcc, dt2Over2))

	res.AngularVelocity = vecAdd(b.AngularVelocity, vecScale(angAcc, dt))
	dtheta := vecAdd(vecScale(b.AngularVelocity, dt), vecScale(angAcc, dt2Over2))
	res.Pose.Orientation = quatMul(b.Pose.Orientation, quatExp(dtheta))

	return res
}

// RelationHistory is a pose history ring for one device.
type RelationHistory = History[proto.SpaceRelation]

// NewRelationHistory returns a RelationHistory with the given capacity.
func NewRelationHistory(maxSamples int) *RelationHistory {
	return New[proto.SpaceRelation](maxSamples, RelationInterpolator{})
}
