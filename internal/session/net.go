package session

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/nexusvr/corevr/internal/idr"
	"github.com/nexusvr/corevr/internal/proto"
	"github.com/nexusvr/corevr/internal/transport"
)

// netThread owns the two channels: it blocks on control and stream
// reads and dispatches each decoded packet to its handler. Packets
// from one channel are handled in arrival order; the two channels are
// not ordered against each other.
func (h *Host) netThread(ctx context.Context) {
	defer h.wg.Done()

	go h.readControlLoop(ctx)
	h.readStreamLoop(ctx)
}

func (h *Host) readControlLoop(ctx context.Context) {
	for {
		select {
		case <-h.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		p, err := h.control.ReadHeadsetPacket()
		if err != nil {
			h.handlePeerGone(err)
			return
		}
		h.dispatchControl(p)
	}
}

// handlePeerGone reacts to the reliable control channel going away: the
// session moves to Reconnecting rather than being discarded outright,
// so that a subsequent accept from the same headset (identified by its
// handshake cookie) can pick its pose histories and tracking state back
// up via Reattach instead of starting over.
func (h *Host) handlePeerGone(err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		h.log.Printf("control channel closed: %v", err)
	} else {
		h.log.Printf("control read error: %v", err)
	}
	h.setState(proto.SessionReconnecting)
	h.Close()
}

func (h *Host) readStreamLoop(ctx context.Context) {
	buf := make([]byte, 2048)
	for {
		select {
		case <-h.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		dg, err := h.stream.ReadDatagram(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			h.log.Printf("stream read error: %v", err)
			continue
		}

		h.headsetAddrMu.Lock()
		h.headsetAddr = dg.From
		h.headsetAddrMu.Unlock()

		if dg.ForceIdr {
			h.forceIdrAll()
			continue
		}

		p, err := transport.ReadHeadsetPacket(dg)
		if err != nil {
			h.log.Printf("stream decode error: %v", err)
			continue
		}
		h.dispatchStream(p)
	}
}

// forceIdrAll resets every tracked video stream item's idr handler to
// request a fresh key frame, the response to an out-of-band PLI whose
// media SSRC doesn't identify which stream item the headset meant.
func (h *Host) forceIdrAll() {
	h.idrMu.Lock()
	handlers := make([]*idr.Handler, 0, len(h.idrs))
	for _, handler := range h.idrs {
		handlers = append(handlers, handler)
	}
	h.idrMu.Unlock()
	for _, handler := range handlers {
		handler.Reset()
	}
}

func (h *Host) dispatchControl(p proto.HeadsetControlPacket) {
	switch v := p.(type) {
	case proto.Feedback:
		h.idrHandler(v.StreamIndex).OnFeedback(v)
		h.pacer.OnFeedback(int(v.StreamIndex), v, h.clock.Offset().FromHeadset)
	case proto.HeadsetInfoPacket:
		h.log.Printf("headset info: eye=%dx%d refresh=%v", v.RecommendedEyeWidth, v.RecommendedEyeHeight, v.AvailableRefreshRates)
		h.setCandidateRefreshRates(v.AvailableRefreshRates)
	case proto.Battery:
		h.log.Printf("battery: present=%v charging=%v level=%.2f", v.Present, v.Charging, v.Level)
	case proto.VisibilityMaskChanged:
		// Wire shape only; mask consumption belongs to the renderer.
	case proto.UserPresenceChanged:
		state := proto.SessionIdle
		if v.Present {
			state = proto.SessionVisible
		}
		if err := h.announceSessionState(state); err != nil {
			h.log.Printf("announce session state: %v", err)
		}
	case proto.RefreshRateChanged:
		h.pacer.Reset()
	case proto.SettingsChanged:
		// Negotiated settings changes are applied by the caller owning
		// the config store; this session only relays the event.
	case proto.HidInput:
		// Raw HID passthrough is consumed by the input subsystem; out
		// of scope here beyond framing.
	case proto.GetApplicationList, proto.StartApp, proto.StopApplication:
		// App-launch bookkeeping: packet shapes only, actual process
		// launch is out of scope.
	}
}

func (h *Host) dispatchStream(p proto.HeadsetStreamPacket) {
	switch v := p.(type) {
	case proto.Tracking:
		h.recordTracking(v)
		h.foveation.UpdateTracking(v)
	case proto.TimesyncResponse:
		h.clock.AddSample(v.Query, int64(v.Response), time.Now().UnixNano())
	case proto.HandTracking, proto.BodyTracking, proto.FaceExpression:
		// Device-specific histories follow the same generic ring; a
		// full host wires one posehistory.History[T] per modality.
	case proto.Inputs:
		// Per-device button/axis state; routed to the input subsystem.
	case proto.DerivedPose, proto.OverrideFoveationCenter:
		// Wire shapes only.
	case proto.SessionStateChanged:
		h.log.Printf("headset session state -> %v", v.State)
	case proto.AudioData:
		// Audio capture passthrough; codec/device glue is out of scope.
	}
}

func (h *Host) recordTracking(v proto.Tracking) {
	offset := h.clock.Offset()
	for _, dp := range v.DevicePoses {
		hist := h.historyFor(dp.Device)
		hist.AddSample(int64(v.Timestamp), proto.SpaceRelation{
			Pose:            dp.Pose,
			LinearVelocity:  dp.LinearVelocity,
			AngularVelocity: dp.AngularVelocity,
			RelationFlags:   dp.Flags,
		}, offset)
	}
}
