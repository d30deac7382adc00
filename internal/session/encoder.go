package session

import (
	"context"
	"net"
	"time"

	"github.com/nexusvr/corevr/internal/pacing"
	"github.com/nexusvr/corevr/internal/proto"
	"github.com/nexusvr/corevr/internal/shard"
)

// numParityElements is the interleaved XOR parity group count used for
// every outgoing frame (see internal/shard's package doc for the
// scheme); fixed rather than adaptive to bandwidth, left as a later
// refinement once a bandwidth estimator is wired into the pacer.
const numParityElements = 1

// encoderThread turns each paced frame into shards on the stream
// channel, one pass per video stream item. It blocks waiting for the
// pacer's wake-up schedule rather than running flat out, mirroring a
// compositor's own frame loop driving an encode submission.
func (h *Host) encoderThread(ctx context.Context) {
	defer h.wg.Done()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		now := time.Now().UnixNano()
		pred := h.pacer.Predict(now)
		h.requestPosesFor(now, pred.PredictedDisplayTimeNs)

		if !h.sleepUntil(ctx, pred.WakeUpNs) {
			return
		}
		wakeUpNs := time.Now().UnixNano()
		h.pacer.MarkTimingPoint(pacing.TimingWakeUp, wakeUpNs)
		h.appPacer.MarkWakeUp(pred.FrameID, wakeUpNs)

		addr := h.currentHeadsetAddr()
		if addr != nil {
			for i := range h.streamItems {
				h.encodeAndSendItem(addr, uint8(i), uint64(pred.FrameID))
			}
		}

		submitEndNs := time.Now().UnixNano()
		h.pacer.MarkTimingPoint(pacing.TimingSubmitEnd, submitEndNs)
		// The encode path has no separate GPU phase to time, so delivery
		// and GPU completion are folded into the same mark: the app
		// pacer's cpu_time absorbs the full encode-and-send span, its
		// gpu_time stays at zero.
		h.appPacer.MarkDelivered(pred.FrameID, submitEndNs)
		h.appPacer.MarkGPUDone(pred.FrameID, submitEndNs)
	}
}

// requestPosesFor tells the tracking controller which devices this
// upcoming frame will render with and at what display time, so the
// next tracking_control resolve asks the headset to sample those poses
// ahead of when they're actually needed.
func (h *Host) requestPosesFor(nowNs, displayNs int64) {
	h.tracking.AddRequest(proto.DeviceHead, nowNs, displayNs, 0)
	if h.settings.EyeTrackingEnabled {
		h.tracking.AddRequest(proto.DeviceEyeGaze, nowNs, displayNs, 0)
	}
	if h.settings.HandTrackingEnabled {
		for _, d := range [...]proto.DeviceID{proto.DeviceLeftAim, proto.DeviceLeftGrip, proto.DeviceRightAim, proto.DeviceRightGrip} {
			h.tracking.AddRequest(d, nowNs, displayNs, 0)
		}
	}
	if h.settings.FaceTrackingEnabled {
		h.tracking.AddRequest(proto.DeviceFace, nowNs, displayNs, 0)
	}
	if h.settings.BodyTrackingEnabled {
		h.tracking.AddRequest(proto.DeviceBody, nowNs, displayNs, 0)
	}
}

func (h *Host) sleepUntil(ctx context.Context, whenNs int64) bool {
	d := time.Duration(whenNs - time.Now().UnixNano())
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-h.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *Host) encodeAndSendItem(addr net.Addr, streamItemIdx uint8, frameID uint64) {
	handler := h.idrHandler(streamItemIdx)
	if handler.ShouldSkip(frameID) {
		return
	}
	frameType := handler.GetType(frameID)

	payload, err := h.encoder.EncodeFrame(streamItemIdx, frameID, frameType)
	if err != nil {
		h.log.Printf("encode stream item %d frame %d: %v", streamItemIdx, frameID, err)
		return
	}

	dataShards := shard.Split(payload)
	if len(dataShards) == 0 {
		return
	}
	parity := shard.ParityShards(dataShards, numParityElements)

	for i, body := range dataShards {
		flags := proto.ShardFlags(0)
		if i == len(dataShards)-1 {
			flags |= proto.EndOfFrame
		}
		pkt := proto.VideoStreamDataShard{
			StreamItemIdx: streamItemIdx,
			FrameIdx:      frameID,
			ShardIdx:      uint16(i),
			Flags:         flags,
			Payload:       body,
		}
		if err := h.stream.WriteHostPacket(addr, pkt); err != nil {
			h.log.Printf("write data shard: %v", err)
		}
	}

	for i, body := range parity {
		pkt := proto.VideoStreamParityShard{
			StreamItemIdx:     streamItemIdx,
			FrameIdx:          frameID,
			DataShardCount:    uint16(len(dataShards)),
			NumParityElements: numParityElements,
			ParityElement:     uint8(i),
			Payload:           body,
		}
		if err := h.stream.WriteHostPacket(addr, pkt); err != nil {
			h.log.Printf("write parity shard: %v", err)
		}
	}
}
