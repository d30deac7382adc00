package proto

// Each union below corresponds to one of the four (direction, channel)
// pairs the packet catalog enumerates. A packet that belongs on more
// than one side (handshake, audio_data, session_state_changed) is one Go
// type implementing more than one marker method.

type HostControlPacket interface{ isHostControl() }
type HostStreamPacket interface{ isHostStream() }
type HeadsetControlPacket interface{ isHeadsetControl() }
type HeadsetStreamPacket interface{ isHeadsetStream() }

func (Handshake) isHostControl()    {}
func (Handshake) isHeadsetControl() {}

func (VideoStreamDescription) isHostControl() {}
func (AudioStreamDescription) isHostControl() {}
func (TrackingControl) isHostControl()        {}
func (RefreshRateChange) isHostControl()      {}
func (ApplicationList) isHostControl()        {}
func (ApplicationIcon) isHostControl()        {}
func (RunningApplications) isHostControl()    {}
func (PinRequest) isHostControl()             {}

func (SessionStateChanged) isHostControl()  {}
func (SessionStateChanged) isHeadsetStream() {}

func (VideoStreamDataShard) isHostStream()   {}
func (VideoStreamParityShard) isHostStream() {}
func (Haptics) isHostStream()                {}
func (TimesyncQuery) isHostStream()          {}
func (ForceIdr) isHostStream()               {}

func (AudioData) isHostStream()    {}
func (AudioData) isHeadsetStream() {}

func (HeadsetInfoPacket) isHeadsetControl()    {}
func (Feedback) isHeadsetControl()             {}
func (Battery) isHeadsetControl()              {}
func (VisibilityMaskChanged) isHeadsetControl() {}
func (UserPresenceChanged) isHeadsetControl()   {}
func (RefreshRateChanged) isHeadsetControl()    {}
func (GetApplicationList) isHeadsetControl()    {}
func (StartApp) isHeadsetControl()              {}
func (StopApplication) isHeadsetControl()       {}
func (SettingsChanged) isHeadsetControl()       {}
func (HidInput) isHeadsetControl()              {}

func (Tracking) isHeadsetStream()                {}
func (HandTracking) isHeadsetStream()            {}
func (BodyTracking) isHeadsetStream()            {}
func (FaceExpression) isHeadsetStream()          {}
func (Inputs) isHeadsetStream()                  {}
func (TimesyncResponse) isHeadsetStream()        {}
func (DerivedPose) isHeadsetStream()             {}
func (OverrideFoveationCenter) isHeadsetStream() {}

type bodyMarshaler interface {
	marshalBody() []byte
}

func frame(discriminant uint8, p bodyMarshaler) []byte {
	body := p.marshalBody()
	out := make([]byte, 0, len(body)+1)
	out = append(out, discriminant)
	out = append(out, body...)
	return out
}

// MarshalHostControl encodes a host->headset control packet, ready to be
// passed to WriteLengthPrefixed.
func MarshalHostControl(p HostControlPacket) ([]byte, error) {
	switch v := p.(type) {
	case Handshake:
		return frame(HCHandshake, v), nil
	case VideoStreamDescription:
		return frame(HCVideoStreamDescription, v), nil
	case AudioStreamDescription:
		return frame(HCAudioStreamDescription, v), nil
	case TrackingControl:
		return frame(HCTrackingControl, v), nil
	case RefreshRateChange:
		return frame(HCRefreshRateChange, v), nil
	case ApplicationList:
		return frame(HCApplicationList, v), nil
	case ApplicationIcon:
		return frame(HCApplicationIcon, v), nil
	case RunningApplications:
		return frame(HCRunningApplications, v), nil
	case SessionStateChanged:
		return frame(HCSessionStateChanged, v), nil
	case PinRequest:
		return frame(HCPinRequest, v), nil
	default:
		return nil, errUnknownDiscriminant("host-control", 0xff)
	}
}

// UnmarshalHostControl decodes a length-prefixed body already stripped of
// its frame: the first byte is the discriminant, the rest the body.
func UnmarshalHostControl(buf []byte) (HostControlPacket, error) {
	if len(buf) < 1 {
		return nil, errShortBuffer
	}
	r := NewReader(buf[1:])
	switch buf[0] {
	case HCHandshake:
		return unmarshalHandshake(r)
	case HCVideoStreamDescription:
		return unmarshalVideoStreamDescription(r)
	case HCAudioStreamDescription:
		return unmarshalAudioStreamDescription(r)
	case HCTrackingControl:
		return unmarshalTrackingControl(r)
	case HCRefreshRateChange:
		return unmarshalRefreshRateChange(r)
	case HCApplicationList:
		return unmarshalApplicationList(r)
	case HCApplicationIcon:
		return unmarshalApplicationIcon(r)
	case HCRunningApplications:
		return unmarshalRunningApplications(r)
	case HCSessionStateChanged:
		return unmarshalSessionStateChanged(r)
	case HCPinRequest:
		return unmarshalPinRequest(r)
	default:
		return nil, errUnknownDiscriminant("host-control", buf[0])
	}
}

func MarshalHostStream(p HostStreamPacket) ([]byte, error) {
	switch v := p.(type) {
	case VideoStreamDataShard:
		return frame(HSVideoStreamDataShard, v), nil
	case VideoStreamParityShard:
		return frame(HSVideoStreamParityShard, v), nil
	case Haptics:
		return frame(HSHaptics, v), nil
	case TimesyncQuery:
		return frame(HSTimesyncQuery, v), nil
	case AudioData:
		return frame(HSAudioData, v), nil
	case ForceIdr:
		return frame(HSForceIdr, v), nil
	default:
		return nil, errUnknownDiscriminant("host-stream", 0xff)
	}
}

func UnmarshalHostStream(buf []byte) (HostStreamPacket, error) {
	if len(buf) < 1 {
		return nil, errShortBuffer
	}
	r := NewReader(buf[1:])
	switch buf[0] {
	case HSVideoStreamDataShard:
		return unmarshalVideoStreamDataShard(r)
	case HSVideoStreamParityShard:
		return unmarshalVideoStreamParityShard(r)
	case HSHaptics:
		return unmarshalHaptics(r)
	case HSTimesyncQuery:
		return unmarshalTimesyncQuery(r)
	case HSAudioData:
		return unmarshalAudioData(r)
	case HSForceIdr:
		return unmarshalForceIdr(r)
	default:
		return nil, errUnknownDiscriminant("host-stream", buf[0])
	}
}

func MarshalHeadsetControl(p HeadsetControlPacket) ([]byte, error) {
	switch v := p.(type) {
	case Handshake:
		return frame(CHHandshake, v), nil
	case HeadsetInfoPacket:
		return frame(CHHeadsetInfoPacket, v), nil
	case Feedback:
		return frame(CHFeedback, v), nil
	case Battery:
		return frame(CHBattery, v), nil
	case VisibilityMaskChanged:
		return frame(CHVisibilityMaskChanged, v), nil
	case UserPresenceChanged:
		return frame(CHUserPresenceChanged, v), nil
	case RefreshRateChanged:
		return frame(CHRefreshRateChanged, v), nil
	case GetApplicationList:
		return frame(CHGetApplicationList, v), nil
	case StartApp:
		return frame(CHStartApp, v), nil
	case StopApplication:
		return frame(CHStopApplication, v), nil
	case SettingsChanged:
		return frame(CHSettingsChanged, v), nil
	case HidInput:
		return frame(CHHidInput, v), nil
	default:
		return nil, errUnknownDiscriminant("headset-control", 0xff)
	}
}

func UnmarshalHeadsetControl(buf []byte) (HeadsetControlPacket, error) {
	if len(buf) < 1 {
		return nil, errShortBuffer
	}
	r := NewReader(buf[1:])
	switch buf[0] {
	case CHHandshake:
		return unmarshalHandshake(r)
	case CHHeadsetInfoPacket:
		return unmarshalHeadsetInfoPacket(r)
	case CHFeedback:
		return unmarshalFeedback(r)
	case CHBattery:
		return unmarshalBattery(r)
	case CHVisibilityMaskChanged:
		return unmarshalVisibilityMaskChanged(r)
	case CHUserPresenceChanged:
		return unmarshalUserPresenceChanged(r)
	case CHRefreshRateChanged:
		return unmarshalRefreshRateChanged(r)
	case CHGetApplicationList:
		return unmarshalGetApplicationList(r)
	case CHStartApp:
		return unmarshalStartApp(r)
	case CHStopApplication:
		return unmarshalStopApplication(r)
	case CHSettingsChanged:
		return unmarshalSettingsChanged(r)
	case CHHidInput:
		return unmarshalHidInput(r)
	default:
		return nil, errUnknownDiscriminant("headset-control", buf[0])
	}
}

func MarshalHeadsetStream(p HeadsetStreamPacket) ([]byte, error) {
	switch v := p.(type) {
	case Tracking:
		return frame(CSTracking, v), nil
	case HandTracking:
		return frame(CSHandTracking, v), nil
	case BodyTracking:
		return frame(CSBodyTracking, v), nil
	case FaceExpression:
		return frame(CSFaceExpression, v), nil
	case Inputs:
		return frame(CSInputs, v), nil
	case TimesyncResponse:
		return frame(CSTimesyncResponse, v), nil
	case AudioData:
		return frame(CSAudioData, v), nil
	case DerivedPose:
		return frame(CSDerivedPose, v), nil
	case OverrideFoveationCenter:
		return frame(CSOverrideFoveationCenter, v), nil
	case SessionStateChanged:
		return frame(CSSessionStateChanged, v), nil
	default:
		return nil, errUnknownDiscriminant("headset-stream", 0xff)
	}
}

func UnmarshalHeadsetStream(buf []byte) (HeadsetStreamPacket, error) {
	if len(buf) < 1 {
		return nil, errShortBuffer
	}
	r := NewReader(buf[1:])
	switch buf[0] {
	case CSTracking:
		return unmarshalTracking(r)
	case CSHandTracking:
		return unmarshalHandTracking(r)
	case CSBodyTracking:
		return unmarshalBodyTracking(r)
	case CSFaceExpression:
		return unmarshalFaceExpression(r)
	case CSInputs:
		return unmarshalInputs(r)
	case CSTimesyncResponse:
		return unmarshalTimesyncResponse(r)
	case CSAudioData:
		return unmarshalAudioData(r)
	case CSDerivedPose:
		return unmarshalDerivedPose(r)
	case CSOverrideFoveationCenter:
		return unmarshalOverrideFoveationCenter(r)
	case CSSessionStateChanged:
		return unmarshalSessionStateChanged(r)
	default:
		return nil, errUnknownDiscriminant("headset-stream", buf[0])
	}
}
