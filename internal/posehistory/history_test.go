package posehistory

import (
	"testing"

	"github.com/nexusvr/corevr/internal/clocksync"
	"github.com/nexusvr/corevr/internal/proto"
)

func relationAt(x float32) proto.SpaceRelation {
	return proto.SpaceRelation{
		Pose:          proto.Pose{Orientation: proto.IdentityQuat, Position: proto.Vec3{X: x}},
		LinearVelocity: proto.Vec3{X: 1},
		RelationFlags:  proto.OrientationValid | proto.PositionValid,
	}
}

func TestHistoryEmptyReturnsZero(t *testing.T) {
	h := NewRelationHistory(10)
	got := h.GetAt(1000)
	if got != (proto.SpaceRelation{}) {
		t.Fatalf("expected zero value, got %+v", got)
	}
}

func TestHistorySingleSample(t *testing.T) {
	h := NewRelationHistory(10)
	sample := relationAt(5)
	h.AddSample(1000, sample, clocksync.Offset{})
	got := h.GetAt(5000)
	if got != sample {
		t.Fatalf("got %+v, want %+v", got, sample)
	}
}

func TestHistoryInterpolatesBetweenSamples(t *testing.T) {
	h := NewRelationHistory(10)
	h.AddSample(0, relationAt(0), clocksync.Offset{})
	h.AddSample(1_000_000_000, relationAt(10), clocksync.Offset{})

	mid := h.GetAt(500_000_000)
	if mid.Pose.Position.X < 4.9 || mid.Pose.Position.X > 5.1 {
		t.Fatalf("interpolated X = %f, want ~5", mid.Pose.Position.X)
	}
}

func TestHistoryExtrapolatesPastLastSample(t *testing.T) {
	h := NewRelationHistory(10)
	h.AddSample(0, relationAt(0), clocksync.Offset{})
	h.AddSample(1_000_000_000, relationAt(10), clocksync.Offset{})

	// velocity is 1 unit/s constant (both samples have LinearVelocity.X=1),
	// acceleration is zero, so at t=2s we expect roughly X = 10 + 1*1 = 11.
	future := h.GetAt(2_000_000_000)
	if future.Pose.Position.X < 10.5 || future.Pose.Position.X > 11.5 {
		t.Fatalf("extrapolated X = %f, want ~11", future.Pose.Position.X)
	}
}

func TestHistoryExtrapolatesBeforeFirstSample(t *testing.T) {
	h := NewRelationHistory(10)
	first := relationAt(0)
	h.AddSample(1_000_000_000, first, clocksync.Offset{})
	h.AddSample(2_000_000_000, relationAt(10), clocksync.Offset{})

	got := h.GetAt(0)
	if got != first {
		t.Fatalf("expected a clamp to the first sample, got %+v want %+v", got, first)
	}
}

func TestHistoryCapacityEviction(t *testing.T) {
	h := NewRelationHistory(3)
	for i := int64(0); i < 10; i++ {
		h.AddSample(i*1_000_000, relationAt(float32(i)), clocksync.Offset{})
	}
	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
}

func TestHistoryUsesClockOffset(t *testing.T) {
	h := NewRelationHistory(10)
	offset := clocksync.Offset{B: 500_000_000}
	// headset reports ts=1_500_000_000, translated to host time 1_000_000_000
	h.AddSample(1_500_000_000, relationAt(7), offset)
	got := h.GetAt(1_000_000_000)
	if got.Pose.Position.X != 7 {
		t.Fatalf("got X=%f, want 7 (offset should map headset ts to host ts)", got.Pose.Position.X)
	}
}
