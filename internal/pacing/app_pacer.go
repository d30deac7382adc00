package pacing

import "sync"

const appPacerLerpAlpha = 0.1

// defaultAppPeriod is the display period assumed before the compositor
// has reported one via Info.
const defaultAppPeriod = 10_000_000 // 10ms

const oneMillisecondNs = 1_000_000

func lerp0(a, b int64, t float64) int64 {
	if a == 0 {
		return b
	}
	return int64(lerp(float64(a), float64(b), t))
}

type appFrame struct {
	frameID  int64
	wakeUp   int64
	delivered int64

	hasWakeUp    bool
	hasDelivered bool
}

// PredictResult is the wake-up/display schedule Predict computes for one
// upcoming frame.
type PredictResult struct {
	FrameID                int64
	WakeUpTime             int64
	PredictedDisplayTime   int64
	PredictedDisplayPeriod int64
}

// AppPacer tracks one connected render client's own CPU/GPU submit
// timing, independent of the network/decode pacing Pacer models. A
// session that renders locally as well as streaming (e.g. a mirrored
// preview) registers one of these with a Factory so its timing
// contributes to the chosen refresh rate.
type AppPacer struct {
	factory *Factory

	mu                   sync.Mutex
	frames               [16]appFrame
	cpuTime              int64
	gpuTime              int64
	frameID              int64
	compositorDisplayTime int64
	lastDisplayTime      int64
	period               int64
	compositorTime       int64
}

func newAppPacer(f *Factory) *AppPacer {
	return &AppPacer{factory: f, period: defaultAppPeriod}
}

func (a *AppPacer) frameSlot(id int64) *appFrame {
	return &a.frames[id%int64(len(a.frames))]
}

// MarkWakeUp records when the app woke up to render frameID.
func (a *AppPacer) MarkWakeUp(frameID, whenNs int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f := a.frameSlot(frameID)
	if f.frameID != frameID {
		*f = appFrame{frameID: frameID}
	}
	f.wakeUp = whenNs
	f.hasWakeUp = true
}

// MarkDelivered records when frameID finished its CPU-side submission
// and was handed to the GPU.
func (a *AppPacer) MarkDelivered(frameID, whenNs int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f := a.frameSlot(frameID)
	if f.frameID == frameID {
		f.delivered = whenNs
		f.hasDelivered = true
	}
}

// MarkGPUDone records when the GPU finished frameID's work, folding the
// observed CPU and GPU spans into this app's time-budget estimate.
func (a *AppPacer) MarkGPUDone(frameID, whenNs int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f := a.frameSlot(frameID)
	if f.frameID != frameID || !f.hasWakeUp || !f.hasDelivered {
		return
	}
	a.cpuTime = lerp0(a.cpuTime, f.delivered-f.wakeUp, appPacerLerpAlpha)
	a.gpuTime = lerp0(a.gpuTime, whenNs-f.delivered, appPacerLerpAlpha)
}

// Predict computes the wake-up time and predicted display deadline for
// this app's next frame, given its own running CPU/GPU budget and the
// compositor timing last reported via Info. An app limited by its own
// render time (cpu_time or gpu_time exceeding a full period, or its
// earliest-ready time falling inside the next display window) is told
// to wake up immediately rather than sleep past its own budget.
func (a *AppPacer) Predict(nowNs int64) PredictResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.frameID++
	a.frames[a.frameID%int64(len(a.frames))] = appFrame{frameID: a.frameID}

	period := a.period
	minReady := nowNs + a.cpuTime + a.gpuTime + a.compositorTime

	// The ideal display time: one period after the last, phase-locked
	// to the compositor's own display schedule.
	a.lastDisplayTime += period
	a.lastDisplayTime = a.compositorDisplayTime + period*((period/2+a.lastDisplayTime-a.compositorDisplayTime)/period)

	out := PredictResult{FrameID: a.frameID, PredictedDisplayPeriod: period}

	if a.cpuTime > period || a.gpuTime > period || (minReady > a.lastDisplayTime && minReady < a.lastDisplayTime+period) {
		// App-limited: don't wait, render as soon as possible.
		out.WakeUpTime = nowNs
		for a.lastDisplayTime < minReady {
			a.lastDisplayTime += period
		}
		out.PredictedDisplayTime = a.lastDisplayTime
		return out
	}

	for a.lastDisplayTime < minReady {
		a.lastDisplayTime += period
	}
	out.PredictedDisplayTime = a.lastDisplayTime
	out.WakeUpTime = a.lastDisplayTime - (a.cpuTime + a.gpuTime + a.compositorTime + oneMillisecondNs)
	return out
}

// Info feeds this app's pacer the compositor's latest predicted display
// timing, the way the compositor's pacing driver reports it to every
// registered app pacer once per frame.
func (a *AppPacer) Info(predictedDisplayTimeNs, predictedDisplayPeriodNs, extraNs int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.compositorDisplayTime = predictedDisplayTimeNs
	if predictedDisplayPeriodNs > 0 {
		a.period = predictedDisplayPeriodNs
	}
	if extraNs < 0 {
		extraNs = 0
	}
	a.compositorTime = extraNs
}

// AppTime is this app's estimated per-frame render budget: the larger
// of its CPU and GPU spans, since the two can overlap on separate
// frames but whichever is larger bounds how early the app must wake up.
func (a *AppPacer) AppTime() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cpuTime > a.gpuTime {
		return a.cpuTime
	}
	return a.gpuTime
}

// Close detaches this app's pacer from its Factory.
func (a *AppPacer) Close() {
	a.factory.remove(a)
}

// Factory aggregates render-time budgets across every connected render
// client into a single frame-time estimate, the way the compositor's
// own pacing factory decides how far in advance to wake every app.
type Factory struct {
	mu   sync.Mutex
	apps []*AppPacer
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{}
}

// NewApp registers a new render client and returns its AppPacer.
func (f *Factory) NewApp() *AppPacer {
	a := newAppPacer(f)
	f.mu.Lock()
	f.apps = append(f.apps, a)
	f.mu.Unlock()
	return a
}

func (f *Factory) remove(target *AppPacer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.apps {
		if a == target {
			f.apps = append(f.apps[:i], f.apps[i+1:]...)
			return
		}
	}
}

// FrameTime returns the largest per-frame render budget across every
// registered app, the bound the refresh-rate chooser must respect so
// no app is starved.
func (f *Factory) FrameTime() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var max int64
	for _, a := range f.apps {
		if t := a.AppTime(); t > max {
			max = t
		}
	}
	return max
}

// ChooseRefreshRate picks the highest of the candidate refresh rates
// (Hz) whose frame period still leaves headroom over the aggregated
// app frame time, falling back to the lowest rate if every one is too
// demanding.
func (f *Factory) ChooseRefreshRate(candidatesHz []float32) float32 {
	if len(candidatesHz) == 0 {
		return 0
	}
	frameTime := f.FrameTime()

	lowest := candidatesHz[0]
	var best float32
	haveBest := false
	for _, hz := range candidatesHz {
		if hz <= 0 {
			continue
		}
		if hz < lowest {
			lowest = hz
		}
		periodNs := int64(1e9 / hz)
		if frameTime <= periodNs && (!haveBest || hz > best) {
			best = hz
			haveBest = true
		}
	}
	if haveBest {
		return best
	}
	return lowest
}
