package tracking

import (
	"testing"
	"time"

	"github.com/nexusvr/corevr/internal/proto"
)

func TestAdvanceRespectsStep(t *testing.T) {
	c := NewController(100 * time.Millisecond)
	now := time.Now()
	if c.Advance(now) {
		t.Fatal("should not advance immediately")
	}
	if !c.Advance(now.Add(200 * time.Millisecond)) {
		t.Fatal("should advance once the step has elapsed")
	}
}

func TestResolveExpandsPredictionWindow(t *testing.T) {
	c := NewController(time.Second)
	c.AddRequest(proto.DeviceHead, 0, 10_000_000, 0)
	c.AddRequest(proto.DeviceHead, 0, 30_000_000, 0)

	tc := c.Resolve(11_000_000, 0)
	if len(tc.Pattern) == 0 {
		t.Fatal("expected a non-empty pattern")
	}
	for _, e := range tc.Pattern {
		if e.Device != proto.DeviceHead {
			t.Fatalf("unexpected device %v", e.Device)
		}
	}
	if tc.Pattern[0].PredictionNs != 10_000_000 {
		t.Fatalf("first prediction = %d, want 10_000_000", tc.Pattern[0].PredictionNs)
	}
}

func TestResolveDrainsRequests(t *testing.T) {
	c := NewController(time.Second)
	c.AddRequest(proto.DeviceHead, 0, 10_000_000, 0)
	first := c.Resolve(11_000_000, 0)
	if len(first.Pattern) == 0 {
		t.Fatal("expected entries from the first resolve")
	}
	second := c.Resolve(11_000_000, 0)
	if len(second.Pattern) != 0 {
		t.Fatalf("expected no entries once drained, got %+v", second.Pattern)
	}
}

func TestResolveTracksMotionsToPhotons(t *testing.T) {
	c := NewController(time.Second)
	c.AddRequest(proto.DeviceHead, 0, 20_000_000, 5_000_000)
	c.AddRequest(proto.DeviceHead, 0, 25_000_000, 8_000_000)

	tc := c.Resolve(11_000_000, 0)
	want := int64(25_000_000 - 8_000_000)
	if tc.MotionsToPhotons != want {
		t.Fatalf("MotionsToPhotons = %d, want %d", tc.MotionsToPhotons, want)
	}
}

func TestFaceDeviceGetsZeroPredictionEntry(t *testing.T) {
	c := NewController(time.Second)
	c.AddRequest(proto.DeviceFace, 0, 10_000_000, 0)

	tc := c.Resolve(11_000_000, 0)
	foundZero := false
	for _, e := range tc.Pattern {
		if e.Device == proto.DeviceFace && e.PredictionNs == 0 {
			foundZero = true
		}
	}
	if !foundZero {
		t.Fatalf("expected a zero-prediction face entry in %+v", tc.Pattern)
	}
}

func TestPredictionClampedToMaxExtrapolation(t *testing.T) {
	c := NewController(time.Second)
	c.AddRequest(proto.DeviceHead, 0, 1_000_000_000, 0)

	tc := c.Resolve(11_000_000, 0)
	for _, e := range tc.Pattern {
		if e.PredictionNs > MaxExtrapolationNs {
			t.Fatalf("prediction %d exceeds MaxExtrapolationNs %d", e.PredictionNs, MaxExtrapolationNs)
		}
	}
}
