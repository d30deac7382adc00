package pacing

import (
	"testing"
	"time"

	"github.com/nexusvr/corevr/internal/proto"
)

func TestPredictAdvancesFrameIDAndSchedule(t *testing.T) {
	p := NewPacer(11 * time.Millisecond)
	first := p.Predict(1_000_000_000)
	second := p.Predict(1_000_000_000)

	if second.FrameID != first.FrameID+1 {
		t.Fatalf("FrameID did not advance: %d -> %d", first.FrameID, second.FrameID)
	}
	if second.WakeUpNs <= first.WakeUpNs {
		t.Fatalf("WakeUpNs did not advance: %d -> %d", first.WakeUpNs, second.WakeUpNs)
	}
}

func TestMarkTimingPointUpdatesWakeUpToPresent(t *testing.T) {
	p := NewPacer(11 * time.Millisecond)
	p.MarkTimingPoint(TimingWakeUp, 1_000_000_000)
	p.MarkTimingPoint(TimingSubmitEnd, 1_003_000_000)

	// mean_wake_up_to_present_ns starts at 1ms and lerps 10% toward 3ms.
	pred := p.Predict(0)
	wantApprox := int64(1_200_000)
	got := pred.DesiredPresentNs - pred.WakeUpNs
	if got != wantApprox {
		t.Fatalf("desired-wake gap = %d, want %d", got, wantApprox)
	}
}

func TestOnFeedbackIgnoresOutOfRangeStream(t *testing.T) {
	p := NewPacer(11 * time.Millisecond)
	p.SetStreamCount(1)
	p.OnFeedback(5, proto.Feedback{}, identity)
}

func identity(ns int64) int64 { return ns }

func TestOnFeedbackNudgesScheduleOnLongWait(t *testing.T) {
	p := NewPacer(10 * time.Millisecond)
	p.SetStreamCount(1)

	before := p.Predict(0).WakeUpNs

	p.OnFeedback(0, proto.Feedback{
		FrameIndex:          1,
		ReceivedFromDecoder: 1_000_000,
		Blitted:             1_008_000_000, // far beyond half a frame
	}, identity)

	after := p.Predict(0).WakeUpNs
	gotStep := after - before
	if gotStep <= int64(10*time.Millisecond) {
		t.Fatalf("expected the wake-up schedule to be nudged forward on a long client wait, step=%d", gotStep)
	}
}

func TestResetClearsFeedbackState(t *testing.T) {
	p := NewPacer(10 * time.Millisecond)
	p.SetStreamCount(1)
	p.Predict(0)
	p.Reset()
	if got := p.FrameDuration(); got != 10*time.Millisecond {
		t.Fatalf("FrameDuration after Reset = %v, want 10ms", got)
	}
}
