package clocksync

import (
	"testing"
	"time"
)

func TestMaybeQueryRespectsInterval(t *testing.T) {
	e := NewEstimator()
	now := time.Unix(0, 0)
	if _, ok := e.MaybeQuery(now, 1000); !ok {
		t.Fatal("expected first query to be allowed")
	}
	if _, ok := e.MaybeQuery(now, 1000); ok {
		t.Fatal("expected immediate second query to be suppressed")
	}
	later := now.Add(20 * time.Millisecond)
	if _, ok := e.MaybeQuery(later, 2000); !ok {
		t.Fatal("expected query after interval elapsed")
	}
}

func TestAddSampleConvergesToConstantOffset(t *testing.T) {
	e := NewEstimator()
	const trueOffset = 5_000_000 // headset clock is 5ms ahead
	const latency = 1_000_000    // 1ms one-way

	hostT := int64(0)
	for i := 0; i < defaultWindowSize+20; i++ {
		query := hostT
		response := query + latency + trueOffset
		received := query + 2*latency
		e.AddSample(query, response, received)
		hostT += 1_000_000
	}

	off := e.Offset()
	diff := off.B - trueOffset
	if diff < 0 {
		diff = -diff
	}
	if diff > 100_000 {
		t.Fatalf("offset = %d, want close to %d", off.B, trueOffset)
	}
	if !off.Stable {
		t.Fatalf("expected offset to be stable after %d consistent samples", defaultWindowSize+20)
	}
}

func TestAddSampleDropsRetransmitOutlier(t *testing.T) {
	e := NewEstimator()
	hostT := int64(0)
	for i := 0; i < defaultWindowSize; i++ {
		e.AddSample(hostT, hostT+1_000_000, hostT+2_000_000)
		hostT += 1_000_000
	}
	before := e.Offset()

	// A retransmitted packet shows up with a huge round trip.
	e.AddSample(hostT, hostT+1_000_000, hostT+50_000_000)

	after := e.Offset()
	if after != before {
		t.Fatalf("expected outlier sample to be dropped: before=%+v after=%+v", before, after)
	}
}

func TestResetClearsState(t *testing.T) {
	e := NewEstimator()
	e.AddSample(0, 5_000_000, 1_000_000)
	if e.Offset() == (Offset{}) {
		t.Fatal("expected non-zero offset after a sample")
	}
	e.Reset()
	if off := e.Offset(); off != (Offset{}) {
		t.Fatalf("expected zero offset after Reset, got %+v", off)
	}
}

func TestFromHeadsetToHeadsetRoundTrip(t *testing.T) {
	o := Offset{B: 3_000_000}
	const ts = 123_456_789
	if got := o.FromHeadset(o.ToHeadset(ts)); got != ts {
		t.Fatalf("round trip = %d, want %d", got, ts)
	}
}

func TestLowpassEstimatorConverges(t *testing.T) {
	var e LowpassEstimator
	const trueOffset = 8_000_000
	const latency = 2_000_000

	hostT := int64(0)
	var off Offset
	for i := 0; i < 200; i++ {
		query := hostT
		response := query + latency + trueOffset
		received := query + 2*latency
		off = e.Update(query, response, received)
		hostT += 1_000_000
	}

	diff := off.B - trueOffset
	if diff < 0 {
		diff = -diff
	}
	if diff > 500_000 {
		t.Fatalf("lowpass offset = %d, want close to %d", off.B, trueOffset)
	}
}

func TestLowpassEstimatorHoldsOnRetransmit(t *testing.T) {
	var e LowpassEstimator
	hostT := int64(0)
	var off Offset
	for i := 0; i < 50; i++ {
		off = e.Update(hostT, hostT+1_000_000, hostT+2_000_000)
		hostT += 1_000_000
	}
	held := e.Update(hostT, hostT+1_000_000, hostT+100_000_000)
	if held != off {
		t.Fatalf("expected retransmit sample to be ignored: got %+v want %+v", held, off)
	}
}
