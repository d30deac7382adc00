package session

import (
	"context"
	"net"
	"time"

	"github.com/nexusvr/corevr/internal/proto"
)

// clockQueryInterval bounds how often the worker thread polls the clock
// estimator for a new timesync_query; the estimator itself further
// throttles to its own internal schedule (10ms while converging, 100ms
// once stable).
const clockQueryInterval = 10 * time.Millisecond

// trackingResolveInterval is how often accumulated prediction-time
// requests are drained into a tracking_control packet.
const trackingResolveInterval = 1 * time.Second

// refreshRateChooseInterval is how often the aggregated app frame-time
// budget is re-evaluated against the candidate refresh rates.
const refreshRateChooseInterval = 10 * time.Second

// workerThread runs the session's periodic, non-blocking jobs: clock
// synchronization queries, tracking_control resolution, and refresh-rate
// choice. All three run on their own tickers independent of frame
// production.
func (h *Host) workerThread(ctx context.Context) {
	defer h.wg.Done()

	clockTicker := time.NewTicker(clockQueryInterval)
	defer clockTicker.Stop()
	trackingTicker := time.NewTicker(trackingResolveInterval)
	defer trackingTicker.Stop()
	refreshTicker := time.NewTicker(refreshRateChooseInterval)
	defer refreshTicker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ctx.Done():
			return
		case now := <-clockTicker.C:
			h.maybeSendTimesyncQuery(now)
		case <-trackingTicker.C:
			h.resolveTrackingControl()
		case <-refreshTicker.C:
			h.maybeChangeRefreshRate()
		}
	}
}

// maybeChangeRefreshRate re-evaluates the chosen refresh rate and, if it
// changed, tells the headset about it.
func (h *Host) maybeChangeRefreshRate() {
	hz, changed := h.chooseRefreshRate()
	if !changed {
		return
	}
	if err := h.control.WriteHostPacket(proto.RefreshRateChange{Fps: hz}); err != nil {
		h.log.Printf("refresh rate change: %v", err)
	}
}

func (h *Host) maybeSendTimesyncQuery(now time.Time) {
	addr := h.currentHeadsetAddr()
	if addr == nil {
		return
	}
	query, ok := h.clock.MaybeQuery(now, now.UnixNano())
	if !ok {
		return
	}
	if err := h.stream.WriteHostPacket(addr, proto.TimesyncQuery{Query: query}); err != nil {
		h.log.Printf("timesync query: %v", err)
	}
}

func (h *Host) resolveTrackingControl() {
	control := h.tracking.Resolve(int64(h.pacer.FrameDuration()), int64(h.pacer.FrameDuration()/4))
	if len(control.Pattern) == 0 {
		return
	}
	if err := h.control.WriteHostPacket(control); err != nil {
		h.log.Printf("tracking control: %v", err)
	}
}

func (h *Host) currentHeadsetAddr() net.Addr {
	h.headsetAddrMu.Lock()
	defer h.headsetAddrMu.Unlock()
	return h.headsetAddr
}
