package pacing

import "testing"

func TestAppPacerTracksCPUAndGPUTime(t *testing.T) {
	f := NewFactory()
	a := f.NewApp()

	a.MarkWakeUp(1, 0)
	a.MarkDelivered(1, 2_000_000)
	a.MarkGPUDone(1, 5_000_000)

	if got := a.AppTime(); got == 0 {
		t.Fatal("expected non-zero app time after a full frame cycle")
	}
}

func TestFactoryFrameTimeIsMaxAcrossApps(t *testing.T) {
	f := NewFactory()
	a1 := f.NewApp()
	a2 := f.NewApp()

	a1.MarkWakeUp(1, 0)
	a1.MarkDelivered(1, 1_000_000)
	a1.MarkGPUDone(1, 2_000_000)

	a2.MarkWakeUp(1, 0)
	a2.MarkDelivered(1, 5_000_000)
	a2.MarkGPUDone(1, 9_000_000)

	if got, want := f.FrameTime(), a2.AppTime(); got != want {
		t.Fatalf("FrameTime() = %d, want max app time %d", got, want)
	}
}

func TestFactoryRemoveOnClose(t *testing.T) {
	f := NewFactory()
	a := f.NewApp()
	a.MarkWakeUp(1, 0)
	a.MarkDelivered(1, 5_000_000)
	a.MarkGPUDone(1, 9_000_000)
	a.Close()

	if got := f.FrameTime(); got != 0 {
		t.Fatalf("FrameTime() after Close = %d, want 0", got)
	}
}

func TestChooseRefreshRatePicksHighestThatFits(t *testing.T) {
	f := NewFactory()
	a := f.NewApp()
	a.MarkWakeUp(1, 0)
	a.MarkDelivered(1, 2_000_000)
	a.MarkGPUDone(1, 12_000_000) // 10ms app time

	got := f.ChooseRefreshRate([]float32{72, 90, 120})
	if got != 90 {
		t.Fatalf("ChooseRefreshRate = %v, want 90 (period 11.1ms fits 10ms, 120's 8.3ms doesn't)", got)
	}
}

func TestAppPacerPredictWakesEarlyWhenNotAppLimited(t *testing.T) {
	f := NewFactory()
	a := f.NewApp()
	a.Info(10_000_000, 10_000_000, 1_000_000) // compositor period 10ms, 1ms extra
	a.MarkWakeUp(1, 0)
	a.MarkDelivered(1, 2_000_000)
	a.MarkGPUDone(1, 4_000_000) // cpu=2ms, gpu=2ms: well under one period

	out := a.Predict(0)
	if out.FrameID != 1 {
		t.Fatalf("FrameID = %d, want 1", out.FrameID)
	}
	if out.PredictedDisplayPeriod != 10_000_000 {
		t.Fatalf("PredictedDisplayPeriod = %d, want 10ms", out.PredictedDisplayPeriod)
	}
	if out.WakeUpTime <= 0 {
		t.Fatalf("WakeUpTime = %d, want a wake-up ahead of the display deadline", out.WakeUpTime)
	}
	if out.WakeUpTime >= out.PredictedDisplayTime {
		t.Fatalf("WakeUpTime (%d) should be well before PredictedDisplayTime (%d)", out.WakeUpTime, out.PredictedDisplayTime)
	}
}

func TestAppPacerPredictWakesImmediatelyWhenAppLimited(t *testing.T) {
	f := NewFactory()
	a := f.NewApp()
	a.Info(10_000_000, 10_000_000, 0)
	a.MarkWakeUp(1, 0)
	a.MarkDelivered(1, 8_000_000)
	a.MarkGPUDone(1, 15_000_000) // cpu=8ms, gpu=7ms: min_ready lands inside the next display window

	out := a.Predict(1_000_000)
	if out.WakeUpTime != 1_000_000 {
		t.Fatalf("WakeUpTime = %d, want now (app-limited path doesn't wait)", out.WakeUpTime)
	}
}

func TestChooseRefreshRateFallsBackToLowest(t *testing.T) {
	f := NewFactory()
	a := f.NewApp()
	a.MarkWakeUp(1, 0)
	a.MarkDelivered(1, 30_000_000)
	a.MarkGPUDone(1, 60_000_000) // 30ms app time, too slow for all candidates

	got := f.ChooseRefreshRate([]float32{72, 90, 120})
	if got != 72 {
		t.Fatalf("ChooseRefreshRate = %v, want fallback to lowest 72", got)
	}
}
