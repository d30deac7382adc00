package proto

import "fmt"

// Discriminants are assigned by iota in declaration order within each
// const block, so inserting a variant renumbers the wire value of every
// variant declared after it in that block.

// Host -> Headset, control channel.
const (
	HCHandshake uint8 = iota
	HCVideoStreamDescription
	HCAudioStreamDescription
	HCTrackingControl
	HCRefreshRateChange
	HCApplicationList
	HCApplicationIcon
	HCRunningApplications
	HCSessionStateChanged
	HCPinRequest
)

// Host -> Headset, stream channel.
const (
	HSVideoStreamDataShard uint8 = iota
	HSVideoStreamParityShard
	HSHaptics
	HSTimesyncQuery
	HSAudioData
	// HSForceIdr supplements the catalog: it tags ForceIdr, a key frame
	// request naming one stream item, encoded like every other stream
	// packet. The RTCP PictureLossIndication path in internal/transport
	// is separate and does not use this discriminant.
	HSForceIdr
)

// Headset -> Host, control channel.
const (
	CHHandshake uint8 = iota
	CHHeadsetInfoPacket
	CHFeedback
	CHBattery
	CHVisibilityMaskChanged
	CHUserPresenceChanged
	CHRefreshRateChanged
	CHGetApplicationList
	CHStartApp
	CHStopApplication
	CHSettingsChanged
	CHHidInput
)

// Headset -> Host, stream channel.
const (
	CSTracking uint8 = iota
	CSHandTracking
	CSBodyTracking
	CSFaceExpression
	CSInputs
	CSTimesyncResponse
	CSAudioData
	CSDerivedPose
	CSOverrideFoveationCenter
	CSSessionStateChanged
)

const ProtocolVersion uint32 = 1

// ---- Host -> Headset, control ----

// Handshake is exchanged by both sides at connection start. Cookie is
// the headset's persisted server-identity string (see
// config.LoadOrCreateCookie): a host that recognizes it can correlate a
// reconnecting headset back to its prior session state instead of
// starting a fresh one. The host's own Handshake leaves Cookie empty.
type Handshake struct {
	Version uint32
	Cookie  string
}

func (p Handshake) marshalBody() []byte {
	w := NewWriter()
	w.u32(p.Version)
	w.str(p.Cookie)
	return w.Bytes()
}

func unmarshalHandshake(r *Reader) (Handshake, error) {
	v, err := r.u32()
	if err != nil {
		return Handshake{}, err
	}
	cookie, err := r.str()
	return Handshake{Version: v, Cookie: cookie}, err
}

type VideoStreamItem struct {
	Width, Height     uint16
	OffsetX, OffsetY  uint16
	Codec             VideoCodec
}

type FoveationAxis struct {
	// Destination-pixel counts per source-to-destination ratio, the
	// middle entry being the 1:1 count; see internal/foveation for how
	// these are derived.
	Table []uint16
}

type EyeFoveation struct {
	X, Y FoveationAxis
}

type VideoStreamDescription struct {
	Width, Height uint16
	Fps           float32
	Items         []VideoStreamItem
	Foveation     []EyeFoveation
}

func (p VideoStreamDescription) marshalBody() []byte {
	w := NewWriter()
	w.u16(p.Width)
	w.u16(p.Height)
	w.f32(p.Fps)
	w.u32(uint32(len(p.Items)))
	for _, it := range p.Items {
		w.u16(it.Width)
		w.u16(it.Height)
		w.u16(it.OffsetX)
		w.u16(it.OffsetY)
		w.u8(uint8(it.Codec))
	}
	w.u32(uint32(len(p.Foveation)))
	for _, f := range p.Foveation {
		w.u32(uint32(len(f.X.Table)))
		for _, n := range f.X.Table {
			w.u16(n)
		}
		w.u32(uint32(len(f.Y.Table)))
		for _, n := range f.Y.Table {
			w.u16(n)
		}
	}
	return w.Bytes()
}

func unmarshalVideoStreamDescription(r *Reader) (VideoStreamDescription, error) {
	var p VideoStreamDescription
	var err error
	if p.Width, err = r.u16(); err != nil {
		return p, err
	}
	if p.Height, err = r.u16(); err != nil {
		return p, err
	}
	if p.Fps, err = r.f32(); err != nil {
		return p, err
	}
	n, err := r.u32()
	if err != nil {
		return p, err
	}
	p.Items = make([]VideoStreamItem, n)
	for i := range p.Items {
		it := &p.Items[i]
		if it.Width, err = r.u16(); err != nil {
			return p, err
		}
		if it.Height, err = r.u16(); err != nil {
			return p, err
		}
		if it.OffsetX, err = r.u16(); err != nil {
			return p, err
		}
		if it.OffsetY, err = r.u16(); err != nil {
			return p, err
		}
		codec, err := r.u8()
		if err != nil {
			return p, err
		}
		it.Codec = VideoCodec(codec)
	}
	nf, err := r.u32()
	if err != nil {
		return p, err
	}
	p.Foveation = make([]EyeFoveation, nf)
	for i := range p.Foveation {
		nx, err := r.u32()
		if err != nil {
			return p, err
		}
		p.Foveation[i].X.Table = make([]uint16, nx)
		for j := range p.Foveation[i].X.Table {
			if p.Foveation[i].X.Table[j], err = r.u16(); err != nil {
				return p, err
			}
		}
		ny, err := r.u32()
		if err != nil {
			return p, err
		}
		p.Foveation[i].Y.Table = make([]uint16, ny)
		for j := range p.Foveation[i].Y.Table {
			if p.Foveation[i].Y.Table[j], err = r.u16(); err != nil {
				return p, err
			}
		}
	}
	return p, nil
}

type AudioStreamDescription struct {
	SampleRate uint32
	Channels   uint8
}

func (p AudioStreamDescription) marshalBody() []byte {
	w := NewWriter()
	w.u32(p.SampleRate)
	w.u8(p.Channels)
	return w.Bytes()
}

func unmarshalAudioStreamDescription(r *Reader) (AudioStreamDescription, error) {
	var p AudioStreamDescription
	var err error
	if p.SampleRate, err = r.u32(); err != nil {
		return p, err
	}
	if p.Channels, err = r.u8(); err != nil {
		return p, err
	}
	return p, nil
}

type TrackingControlEntry struct {
	Device       DeviceID
	PredictionNs int64
}

type TrackingControl struct {
	Pattern          []TrackingControlEntry
	MotionsToPhotons int64
}

func (p TrackingControl) marshalBody() []byte {
	w := NewWriter()
	w.u32(uint32(len(p.Pattern)))
	for _, e := range p.Pattern {
		w.u8(uint8(e.Device))
		w.i64(e.PredictionNs)
	}
	w.i64(p.MotionsToPhotons)
	return w.Bytes()
}

func unmarshalTrackingControl(r *Reader) (TrackingControl, error) {
	var p TrackingControl
	n, err := r.u32()
	if err != nil {
		return p, err
	}
	p.Pattern = make([]TrackingControlEntry, n)
	for i := range p.Pattern {
		d, err := r.u8()
		if err != nil {
			return p, err
		}
		pr, err := r.i64()
		if err != nil {
			return p, err
		}
		p.Pattern[i] = TrackingControlEntry{Device: DeviceID(d), PredictionNs: pr}
	}
	if p.MotionsToPhotons, err = r.i64(); err != nil {
		return p, err
	}
	return p, nil
}

type RefreshRateChange struct {
	Fps float32
}

func (p RefreshRateChange) marshalBody() []byte {
	w := NewWriter()
	w.f32(p.Fps)
	return w.Bytes()
}

func unmarshalRefreshRateChange(r *Reader) (RefreshRateChange, error) {
	fps, err := r.f32()
	return RefreshRateChange{Fps: fps}, err
}

type Application struct {
	ID   string
	Name string
}

type ApplicationList struct {
	Applications []Application
}

func (p ApplicationList) marshalBody() []byte {
	w := NewWriter()
	w.u32(uint32(len(p.Applications)))
	for _, a := range p.Applications {
		w.str(a.ID)
		w.str(a.Name)
	}
	return w.Bytes()
}

func unmarshalApplicationList(r *Reader) (ApplicationList, error) {
	var p ApplicationList
	n, err := r.u32()
	if err != nil {
		return p, err
	}
	p.Applications = make([]Application, n)
	for i := range p.Applications {
		id, err := r.str()
		if err != nil {
			return p, err
		}
		name, err := r.str()
		if err != nil {
			return p, err
		}
		p.Applications[i] = Application{ID: id, Name: name}
	}
	return p, nil
}

type ApplicationIcon struct {
	ID   string
	PNG  []byte
}

func (p ApplicationIcon) marshalBody() []byte {
	w := NewWriter()
	w.str(p.ID)
	w.bytesField(p.PNG)
	return w.Bytes()
}

func unmarshalApplicationIcon(r *Reader) (ApplicationIcon, error) {
	var p ApplicationIcon
	var err error
	if p.ID, err = r.str(); err != nil {
		return p, err
	}
	if p.PNG, err = r.bytesField(); err != nil {
		return p, err
	}
	return p, nil
}

type RunningApplications struct {
	IDs []string
}

func (p RunningApplications) marshalBody() []byte {
	w := NewWriter()
	w.u32(uint32(len(p.IDs)))
	for _, id := range p.IDs {
		w.str(id)
	}
	return w.Bytes()
}

func unmarshalRunningApplications(r *Reader) (RunningApplications, error) {
	var p RunningApplications
	n, err := r.u32()
	if err != nil {
		return p, err
	}
	p.IDs = make([]string, n)
	for i := range p.IDs {
		if p.IDs[i], err = r.str(); err != nil {
			return p, err
		}
	}
	return p, nil
}

// SessionState is shared by the host->headset control variant and the
// headset->host stream variant of session_state_changed.
type SessionState uint8

const (
	SessionIdle SessionState = iota
	SessionActive
	SessionVisible
	SessionReconnecting
	SessionStopping
)

type SessionStateChanged struct {
	State SessionState
}

func (p SessionStateChanged) marshalBody() []byte {
	w := NewWriter()
	w.u8(uint8(p.State))
	return w.Bytes()
}

func unmarshalSessionStateChanged(r *Reader) (SessionStateChanged, error) {
	s, err := r.u8()
	return SessionStateChanged{State: SessionState(s)}, err
}

type PinRequest struct {
	Pin string
}

func (p PinRequest) marshalBody() []byte {
	w := NewWriter()
	w.str(p.Pin)
	return w.Bytes()
}

func unmarshalPinRequest(r *Reader) (PinRequest, error) {
	pin, err := r.str()
	return PinRequest{Pin: pin}, err
}

// ---- Host -> Headset, stream ----

type ShardFlags uint8

const (
	StartOfSlice ShardFlags = 1 << iota
	EndOfSlice
	EndOfFrame
)

type ViewInfo struct {
	DisplayTime uint64 // headset clock
	Pose        [2]Pose
	Fov         [2]Fov
}

type VideoStreamDataShard struct {
	StreamItemIdx uint8
	FrameIdx      uint64
	ShardIdx      uint16
	Flags         ShardFlags
	Payload       []byte
	ViewInfo      *ViewInfo // optional; encoded iff non-nil, independently of Flags
}

func (p VideoStreamDataShard) marshalBody() []byte {
	w := NewWriter()
	w.u8(p.StreamItemIdx)
	w.u64(p.FrameIdx)
	w.u16(p.ShardIdx)
	w.u8(uint8(p.Flags))
	w.bytesField(p.Payload)
	if p.ViewInfo != nil {
		w.boolean(true)
		w.u64(p.ViewInfo.DisplayTime)
		for i := 0; i < 2; i++ {
			w.pose(p.ViewInfo.Pose[i])
			w.fov(p.ViewInfo.Fov[i])
		}
	} else {
		w.boolean(false)
	}
	return w.Bytes()
}

func unmarshalVideoStreamDataShard(r *Reader) (VideoStreamDataShard, error) {
	var p VideoStreamDataShard
	var err error
	if p.StreamItemIdx, err = r.u8(); err != nil {
		return p, err
	}
	if p.FrameIdx, err = r.u64(); err != nil {
		return p, err
	}
	if p.ShardIdx, err = r.u16(); err != nil {
		return p, err
	}
	flags, err := r.u8()
	if err != nil {
		return p, err
	}
	p.Flags = ShardFlags(flags)
	if p.Payload, err = r.bytesField(); err != nil {
		return p, err
	}
	has, err := r.boolean()
	if err != nil {
		return p, err
	}
	if has {
		vi := &ViewInfo{}
		if vi.DisplayTime, err = r.u64(); err != nil {
			return p, err
		}
		for i := 0; i < 2; i++ {
			if vi.Pose[i], err = r.pose(); err != nil {
				return p, err
			}
			if vi.Fov[i], err = r.fov(); err != nil {
				return p, err
			}
		}
		p.ViewInfo = vi
	}
	return p, nil
}

type VideoStreamParityShard struct {
	StreamItemIdx      uint8
	FrameIdx           uint64
	DataShardCount     uint16
	NumParityElements  uint8
	ParityElement      uint8
	Payload            []byte
}

func (p VideoStreamParityShard) marshalBody() []byte {
	w := NewWriter()
	w.u8(p.StreamItemIdx)
	w.u64(p.FrameIdx)
	w.u16(p.DataShardCount)
	w.u8(p.NumParityElements)
	w.u8(p.ParityElement)
	w.bytesField(p.Payload)
	return w.Bytes()
}

func unmarshalVideoStreamParityShard(r *Reader) (VideoStreamParityShard, error) {
	var p VideoStreamParityShard
	var err error
	if p.StreamItemIdx, err = r.u8(); err != nil {
		return p, err
	}
	if p.FrameIdx, err = r.u64(); err != nil {
		return p, err
	}
	if p.DataShardCount, err = r.u16(); err != nil {
		return p, err
	}
	if p.NumParityElements, err = r.u8(); err != nil {
		return p, err
	}
	if p.ParityElement, err = r.u8(); err != nil {
		return p, err
	}
	if p.Payload, err = r.bytesField(); err != nil {
		return p, err
	}
	return p, nil
}

type Haptics struct {
	Device     DeviceID
	DurationNs int64
	Frequency  float32
	Amplitude  float32
}

func (p Haptics) marshalBody() []byte {
	w := NewWriter()
	w.u8(uint8(p.Device))
	w.i64(p.DurationNs)
	w.f32(p.Frequency)
	w.f32(p.Amplitude)
	return w.Bytes()
}

func unmarshalHaptics(r *Reader) (Haptics, error) {
	var p Haptics
	var err error
	d, err := r.u8()
	if err != nil {
		return p, err
	}
	p.Device = DeviceID(d)
	if p.DurationNs, err = r.i64(); err != nil {
		return p, err
	}
	if p.Frequency, err = r.f32(); err != nil {
		return p, err
	}
	if p.Amplitude, err = r.f32(); err != nil {
		return p, err
	}
	return p, nil
}

type TimesyncQuery struct {
	Query int64 // host-monotonic ns
}

func (p TimesyncQuery) marshalBody() []byte {
	w := NewWriter()
	w.i64(p.Query)
	return w.Bytes()
}

func unmarshalTimesyncQuery(r *Reader) (TimesyncQuery, error) {
	q, err := r.i64()
	return TimesyncQuery{Query: q}, err
}

// AudioData is shared by the speaker (host->headset) and microphone
// (headset->host) directions: one shape, used both ways.
type AudioData struct {
	Timestamp uint64
	Payload   []int16
}

func (p AudioData) marshalBody() []byte {
	w := NewWriter()
	w.u64(p.Timestamp)
	w.u32(uint32(len(p.Payload)))
	for _, s := range p.Payload {
		w.u16(uint16(s))
	}
	return w.Bytes()
}

func unmarshalAudioData(r *Reader) (AudioData, error) {
	var p AudioData
	var err error
	if p.Timestamp, err = r.u64(); err != nil {
		return p, err
	}
	n, err := r.u32()
	if err != nil {
		return p, err
	}
	p.Payload = make([]int16, n)
	for i := range p.Payload {
		v, err := r.u16()
		if err != nil {
			return p, err
		}
		p.Payload[i] = int16(v)
	}
	return p, nil
}

// ForceIdr is a key frame request for one stream item (supplemented
// feature, see SPEC_FULL.md §2), a host->headset stream packet encoded
// like the others. It shares no fields with rtcp.PictureLossIndication;
// internal/transport sends and detects real PLIs on the stream socket
// on its own.
type ForceIdr struct {
	StreamItemIdx uint8
}

func (p ForceIdr) marshalBody() []byte {
	w := NewWriter()
	w.u8(p.StreamItemIdx)
	return w.Bytes()
}

func unmarshalForceIdr(r *Reader) (ForceIdr, error) {
	idx, err := r.u8()
	return ForceIdr{StreamItemIdx: idx}, err
}

// ---- Headset -> Host, control ----

type HandTrackingCapability uint8

const (
	HandTrackingNone HandTrackingCapability = iota
	HandTrackingSupported
)

type HeadsetInfoPacket struct {
	RecommendedEyeWidth, RecommendedEyeHeight uint32
	AvailableRefreshRates                     []float32
	PreferredRefreshRate                      float32
	MicrophoneSampleRate                      uint32
	MicrophoneChannels                        uint8
	HandTracking                              HandTrackingCapability
	EyeGazeCapable                            bool
	FaceTrackingVariant                       FaceExpressionVariant
	PalmPoseCapable                           bool
	NumGenericTrackers                        uint8
	Locale                                    string
}

func (p HeadsetInfoPacket) marshalBody() []byte {
	w := NewWriter()
	w.u32(p.RecommendedEyeWidth)
	w.u32(p.RecommendedEyeHeight)
	w.u32(uint32(len(p.AvailableRefreshRates)))
	for _, r := range p.AvailableRefreshRates {
		w.f32(r)
	}
	w.f32(p.PreferredRefreshRate)
	w.u32(p.MicrophoneSampleRate)
	w.u8(p.MicrophoneChannels)
	w.u8(uint8(p.HandTracking))
	w.boolean(p.EyeGazeCapable)
	w.u8(uint8(p.FaceTrackingVariant))
	w.boolean(p.PalmPoseCapable)
	w.u8(p.NumGenericTrackers)
	w.str(p.Locale)
	return w.Bytes()
}

func unmarshalHeadsetInfoPacket(r *Reader) (HeadsetInfoPacket, error) {
	var p HeadsetInfoPacket
	var err error
	if p.RecommendedEyeWidth, err = r.u32(); err != nil {
		return p, err
	}
	if p.RecommendedEyeHeight, err = r.u32(); err != nil {
		return p, err
	}
	n, err := r.u32()
	if err != nil {
		return p, err
	}
	p.AvailableRefreshRates = make([]float32, n)
	for i := range p.AvailableRefreshRates {
		if p.AvailableRefreshRates[i], err = r.f32(); err != nil {
			return p, err
		}
	}
	if p.PreferredRefreshRate, err = r.f32(); err != nil {
		return p, err
	}
	if p.MicrophoneSampleRate, err = r.u32(); err != nil {
		return p, err
	}
	if p.MicrophoneChannels, err = r.u8(); err != nil {
		return p, err
	}
	ht, err := r.u8()
	if err != nil {
		return p, err
	}
	p.HandTracking = HandTrackingCapability(ht)
	if p.EyeGazeCapable, err = r.boolean(); err != nil {
		return p, err
	}
	fv, err := r.u8()
	if err != nil {
		return p, err
	}
	p.FaceTrackingVariant = FaceExpressionVariant(fv)
	if p.PalmPoseCapable, err = r.boolean(); err != nil {
		return p, err
	}
	if p.NumGenericTrackers, err = r.u8(); err != nil {
		return p, err
	}
	if p.Locale, err = r.str(); err != nil {
		return p, err
	}
	return p, nil
}

type Feedback struct {
	FrameIndex  uint64
	StreamIndex uint8

	ReceivedFirstPacket int64
	ReceivedLastPacket  int64
	Reconstructed       int64
	SentToDecoder       int64
	ReceivedFromDecoder int64
	Blitted             int64
	Displayed           int64

	ReceivedPose [2]Pose
	RealPose     [2]Pose

	DataPackets         uint8
	ParityPackets       uint8
	ReceivedDataPackets uint8
	ReceivedParityPackets uint8
}

func (p Feedback) marshalBody() []byte {
	w := NewWriter()
	w.u64(p.FrameIndex)
	w.u8(p.StreamIndex)
	w.i64(p.ReceivedFirstPacket)
	w.i64(p.ReceivedLastPacket)
	w.i64(p.Reconstructed)
	w.i64(p.SentToDecoder)
	w.i64(p.ReceivedFromDecoder)
	w.i64(p.Blitted)
	w.i64(p.Displayed)
	for i := 0; i < 2; i++ {
		w.pose(p.ReceivedPose[i])
	}
	for i := 0; i < 2; i++ {
		w.pose(p.RealPose[i])
	}
	w.u8(p.DataPackets)
	w.u8(p.ParityPackets)
	w.u8(p.ReceivedDataPackets)
	w.u8(p.ReceivedParityPackets)
	return w.Bytes()
}

func unmarshalFeedback(r *Reader) (Feedback, error) {
	var p Feedback
	var err error
	if p.FrameIndex, err = r.u64(); err != nil {
		return p, err
	}
	if p.StreamIndex, err = r.u8(); err != nil {
		return p, err
	}
	for _, dst := range []*int64{
		&p.ReceivedFirstPacket, &p.ReceivedLastPacket, &p.Reconstructed,
		&p.SentToDecoder, &p.ReceivedFromDecoder, &p.Blitted, &p.Displayed,
	} {
		if *dst, err = r.i64(); err != nil {
			return p, err
		}
	}
	for i := 0; i < 2; i++ {
		if p.ReceivedPose[i], err = r.pose(); err != nil {
			return p, err
		}
	}
	for i := 0; i < 2; i++ {
		if p.RealPose[i], err = r.pose(); err != nil {
			return p, err
		}
	}
	if p.DataPackets, err = r.u8(); err != nil {
		return p, err
	}
	if p.ParityPackets, err = r.u8(); err != nil {
		return p, err
	}
	if p.ReceivedDataPackets, err = r.u8(); err != nil {
		return p, err
	}
	if p.ReceivedParityPackets, err = r.u8(); err != nil {
		return p, err
	}
	return p, nil
}

type Battery struct {
	Present  bool
	Charging bool
	Level    float32 // 0..1
}

func (p Battery) marshalBody() []byte {
	w := NewWriter()
	w.boolean(p.Present)
	w.boolean(p.Charging)
	w.f32(p.Level)
	return w.Bytes()
}

func unmarshalBattery(r *Reader) (Battery, error) {
	var p Battery
	var err error
	if p.Present, err = r.boolean(); err != nil {
		return p, err
	}
	if p.Charging, err = r.boolean(); err != nil {
		return p, err
	}
	if p.Level, err = r.f32(); err != nil {
		return p, err
	}
	return p, nil
}

type VisibilityMaskChanged struct {
	Visible bool
}

func (p VisibilityMaskChanged) marshalBody() []byte {
	w := NewWriter()
	w.boolean(p.Visible)
	return w.Bytes()
}

func unmarshalVisibilityMaskChanged(r *Reader) (VisibilityMaskChanged, error) {
	v, err := r.boolean()
	return VisibilityMaskChanged{Visible: v}, err
}

type UserPresenceChanged struct {
	Present bool
}

func (p UserPresenceChanged) marshalBody() []byte {
	w := NewWriter()
	w.boolean(p.Present)
	return w.Bytes()
}

func unmarshalUserPresenceChanged(r *Reader) (UserPresenceChanged, error) {
	v, err := r.boolean()
	return UserPresenceChanged{Present: v}, err
}

type RefreshRateChanged struct {
	Fps float32
}

func (p RefreshRateChanged) marshalBody() []byte {
	w := NewWriter()
	w.f32(p.Fps)
	return w.Bytes()
}

func unmarshalRefreshRateChanged(r *Reader) (RefreshRateChanged, error) {
	fps, err := r.f32()
	return RefreshRateChanged{Fps: fps}, err
}

type GetApplicationList struct{}

func (p GetApplicationList) marshalBody() []byte { return nil }

func unmarshalGetApplicationList(r *Reader) (GetApplicationList, error) {
	return GetApplicationList{}, nil
}

type StartApp struct {
	ID string
}

func (p StartApp) marshalBody() []byte {
	w := NewWriter()
	w.str(p.ID)
	return w.Bytes()
}

func unmarshalStartApp(r *Reader) (StartApp, error) {
	id, err := r.str()
	return StartApp{ID: id}, err
}

type StopApplication struct {
	ID string
}

func (p StopApplication) marshalBody() []byte {
	w := NewWriter()
	w.str(p.ID)
	return w.Bytes()
}

func unmarshalStopApplication(r *Reader) (StopApplication, error) {
	id, err := r.str()
	return StopApplication{ID: id}, err
}

type SettingsChanged struct {
	BitrateBps           uint32
	MinimumRefreshRate   float32
	PreferredRefreshRate float32
	CodecPreference      VideoCodec
	FoveationOverride    bool
	HidForwarding        bool
	HandTrackingEnabled  bool
	BodyTrackingEnabled  bool
	EyeTrackingEnabled   bool
	FaceTrackingEnabled  bool
}

func (p SettingsChanged) marshalBody() []byte {
	w := NewWriter()
	w.u32(p.BitrateBps)
	w.f32(p.MinimumRefreshRate)
	w.f32(p.PreferredRefreshRate)
	w.u8(uint8(p.CodecPreference))
	w.boolean(p.FoveationOverride)
	w.boolean(p.HidForwarding)
	w.boolean(p.HandTrackingEnabled)
	w.boolean(p.BodyTrackingEnabled)
	w.boolean(p.EyeTrackingEnabled)
	w.boolean(p.FaceTrackingEnabled)
	return w.Bytes()
}

func unmarshalSettingsChanged(r *Reader) (SettingsChanged, error) {
	var p SettingsChanged
	var err error
	if p.BitrateBps, err = r.u32(); err != nil {
		return p, err
	}
	if p.MinimumRefreshRate, err = r.f32(); err != nil {
		return p, err
	}
	if p.PreferredRefreshRate, err = r.f32(); err != nil {
		return p, err
	}
	codec, err := r.u8()
	if err != nil {
		return p, err
	}
	p.CodecPreference = VideoCodec(codec)
	if p.FoveationOverride, err = r.boolean(); err != nil {
		return p, err
	}
	if p.HidForwarding, err = r.boolean(); err != nil {
		return p, err
	}
	if p.HandTrackingEnabled, err = r.boolean(); err != nil {
		return p, err
	}
	if p.BodyTrackingEnabled, err = r.boolean(); err != nil {
		return p, err
	}
	if p.EyeTrackingEnabled, err = r.boolean(); err != nil {
		return p, err
	}
	if p.FaceTrackingEnabled, err = r.boolean(); err != nil {
		return p, err
	}
	return p, nil
}

type HidInput struct {
	ReportID uint8
	Payload  []byte
}

func (p HidInput) marshalBody() []byte {
	w := NewWriter()
	w.u8(p.ReportID)
	w.bytesField(p.Payload)
	return w.Bytes()
}

func unmarshalHidInput(r *Reader) (HidInput, error) {
	var p HidInput
	var err error
	if p.ReportID, err = r.u8(); err != nil {
		return p, err
	}
	if p.Payload, err = r.bytesField(); err != nil {
		return p, err
	}
	return p, nil
}

// ---- Headset -> Host, stream ----

type ViewStateFlags uint8

const (
	ViewStateOrientationValid ViewStateFlags = 1 << iota
	ViewStatePositionValid
)

type TrackingView struct {
	Pose Pose
	Fov  Fov
}

type TrackingDevicePose struct {
	Device          DeviceID
	Pose            Pose
	LinearVelocity  Vec3
	AngularVelocity Vec3
	Flags           RelationFlags
}

type Tracking struct {
	Timestamp          uint64 // headset clock
	ProductionTimestamp uint64
	ViewStateFlags      ViewStateFlags
	Views               [2]TrackingView
	DevicePoses          []TrackingDevicePose
}

func (p Tracking) marshalBody() []byte {
	w := NewWriter()
	w.u64(p.Timestamp)
	w.u64(p.ProductionTimestamp)
	w.u8(uint8(p.ViewStateFlags))
	for i := 0; i < 2; i++ {
		w.pose(p.Views[i].Pose)
		w.fov(p.Views[i].Fov)
	}
	w.u32(uint32(len(p.DevicePoses)))
	for _, dp := range p.DevicePoses {
		w.u8(uint8(dp.Device))
		w.pose(dp.Pose)
		w.vec3(dp.LinearVelocity)
		w.vec3(dp.AngularVelocity)
		w.u8(uint8(dp.Flags))
	}
	return w.Bytes()
}

func unmarshalTracking(r *Reader) (Tracking, error) {
	var p Tracking
	var err error
	if p.Timestamp, err = r.u64(); err != nil {
		return p, err
	}
	if p.ProductionTimestamp, err = r.u64(); err != nil {
		return p, err
	}
	flags, err := r.u8()
	if err != nil {
		return p, err
	}
	p.ViewStateFlags = ViewStateFlags(flags)
	for i := 0; i < 2; i++ {
		if p.Views[i].Pose, err = r.pose(); err != nil {
			return p, err
		}
		if p.Views[i].Fov, err = r.fov(); err != nil {
			return p, err
		}
	}
	n, err := r.u32()
	if err != nil {
		return p, err
	}
	p.DevicePoses = make([]TrackingDevicePose, n)
	for i := range p.DevicePoses {
		dp := &p.DevicePoses[i]
		d, err := r.u8()
		if err != nil {
			return p, err
		}
		dp.Device = DeviceID(d)
		if dp.Pose, err = r.pose(); err != nil {
			return p, err
		}
		if dp.LinearVelocity, err = r.vec3(); err != nil {
			return p, err
		}
		if dp.AngularVelocity, err = r.vec3(); err != nil {
			return p, err
		}
		f, err := r.u8()
		if err != nil {
			return p, err
		}
		dp.Flags = RelationFlags(f)
	}
	return p, nil
}

const NumHandJoints = 26

type HandJoint struct {
	Pose   Pose
	Radius float32
	Valid  bool
}

type HandTracking struct {
	Timestamp           uint64
	ProductionTimestamp uint64
	Device              DeviceID // DeviceLeftGrip or DeviceRightGrip identifies hand side
	Joints              [NumHandJoints]HandJoint
}

func (p HandTracking) marshalBody() []byte {
	w := NewWriter()
	w.u64(p.Timestamp)
	w.u64(p.ProductionTimestamp)
	w.u8(uint8(p.Device))
	for _, j := range p.Joints {
		w.pose(j.Pose)
		w.f32(j.Radius)
		w.boolean(j.Valid)
	}
	return w.Bytes()
}

func unmarshalHandTracking(r *Reader) (HandTracking, error) {
	var p HandTracking
	var err error
	if p.Timestamp, err = r.u64(); err != nil {
		return p, err
	}
	if p.ProductionTimestamp, err = r.u64(); err != nil {
		return p, err
	}
	d, err := r.u8()
	if err != nil {
		return p, err
	}
	p.Device = DeviceID(d)
	for i := range p.Joints {
		if p.Joints[i].Pose, err = r.pose(); err != nil {
			return p, err
		}
		if p.Joints[i].Radius, err = r.f32(); err != nil {
			return p, err
		}
		if p.Joints[i].Valid, err = r.boolean(); err != nil {
			return p, err
		}
	}
	return p, nil
}

const NumBodyJoints = 24

type BodyTracking struct {
	Timestamp           uint64
	ProductionTimestamp uint64
	Joints              [NumBodyJoints]HandJoint
}

func (p BodyTracking) marshalBody() []byte {
	w := NewWriter()
	w.u64(p.Timestamp)
	w.u64(p.ProductionTimestamp)
	for _, j := range p.Joints {
		w.pose(j.Pose)
		w.f32(j.Radius)
		w.boolean(j.Valid)
	}
	return w.Bytes()
}

func unmarshalBodyTracking(r *Reader) (BodyTracking, error) {
	var p BodyTracking
	var err error
	if p.Timestamp, err = r.u64(); err != nil {
		return p, err
	}
	if p.ProductionTimestamp, err = r.u64(); err != nil {
		return p, err
	}
	for i := range p.Joints {
		if p.Joints[i].Pose, err = r.pose(); err != nil {
			return p, err
		}
		if p.Joints[i].Radius, err = r.f32(); err != nil {
			return p, err
		}
		if p.Joints[i].Valid, err = r.boolean(); err != nil {
			return p, err
		}
	}
	return p, nil
}

const MaxFaceWeights = 70

type FaceExpression struct {
	Timestamp           uint64
	ProductionTimestamp uint64
	Variant              FaceExpressionVariant
	Valid                bool
	Weights              []float32 // len depends on Variant; sent as given, not clamped
}

func (p FaceExpression) marshalBody() []byte {
	w := NewWriter()
	w.u64(p.Timestamp)
	w.u64(p.ProductionTimestamp)
	w.u8(uint8(p.Variant))
	w.boolean(p.Valid)
	w.u32(uint32(len(p.Weights)))
	for _, we := range p.Weights {
		w.f32(we)
	}
	return w.Bytes()
}

func unmarshalFaceExpression(r *Reader) (FaceExpression, error) {
	var p FaceExpression
	var err error
	if p.Timestamp, err = r.u64(); err != nil {
		return p, err
	}
	if p.ProductionTimestamp, err = r.u64(); err != nil {
		return p, err
	}
	v, err := r.u8()
	if err != nil {
		return p, err
	}
	p.Variant = FaceExpressionVariant(v)
	if p.Valid, err = r.boolean(); err != nil {
		return p, err
	}
	n, err := r.u32()
	if err != nil {
		return p, err
	}
	p.Weights = make([]float32, n)
	for i := range p.Weights {
		if p.Weights[i], err = r.f32(); err != nil {
			return p, err
		}
	}
	return p, nil
}

type InputValue struct {
	Device         DeviceID
	Value          float32
	LastChangeTime uint64
}

type Inputs struct {
	Values []InputValue
}

func (p Inputs) marshalBody() []byte {
	w := NewWriter()
	w.u32(uint32(len(p.Values)))
	for _, v := range p.Values {
		w.u8(uint8(v.Device))
		w.f32(v.Value)
		w.u64(v.LastChangeTime)
	}
	return w.Bytes()
}

func unmarshalInputs(r *Reader) (Inputs, error) {
	var p Inputs
	n, err := r.u32()
	if err != nil {
		return p, err
	}
	p.Values = make([]InputValue, n)
	for i := range p.Values {
		d, err := r.u8()
		if err != nil {
			return p, err
		}
		val, err := r.f32()
		if err != nil {
			return p, err
		}
		t, err := r.u64()
		if err != nil {
			return p, err
		}
		p.Values[i] = InputValue{Device: DeviceID(d), Value: val, LastChangeTime: t}
	}
	return p, nil
}

type TimesyncResponse struct {
	Query    int64  // echoed host-monotonic t_q
	Response uint64 // headset-monotonic t_h at receipt
}

func (p TimesyncResponse) marshalBody() []byte {
	w := NewWriter()
	w.i64(p.Query)
	w.u64(p.Response)
	return w.Bytes()
}

func unmarshalTimesyncResponse(r *Reader) (TimesyncResponse, error) {
	var p TimesyncResponse
	var err error
	if p.Query, err = r.i64(); err != nil {
		return p, err
	}
	if p.Response, err = r.u64(); err != nil {
		return p, err
	}
	return p, nil
}

type DerivedPose struct {
	Device    DeviceID
	Timestamp uint64
	Relation  SpaceRelation
}

func (p DerivedPose) marshalBody() []byte {
	w := NewWriter()
	w.u8(uint8(p.Device))
	w.u64(p.Timestamp)
	w.relation(p.Relation)
	return w.Bytes()
}

func unmarshalDerivedPose(r *Reader) (DerivedPose, error) {
	var p DerivedPose
	var err error
	d, err := r.u8()
	if err != nil {
		return p, err
	}
	p.Device = DeviceID(d)
	if p.Timestamp, err = r.u64(); err != nil {
		return p, err
	}
	if p.Relation, err = r.relation(); err != nil {
		return p, err
	}
	return p, nil
}

type OverrideFoveationCenter struct {
	Eye  uint8
	X, Y float32
}

func (p OverrideFoveationCenter) marshalBody() []byte {
	w := NewWriter()
	w.u8(p.Eye)
	w.f32(p.X)
	w.f32(p.Y)
	return w.Bytes()
}

func unmarshalOverrideFoveationCenter(r *Reader) (OverrideFoveationCenter, error) {
	var p OverrideFoveationCenter
	var err error
	if p.Eye, err = r.u8(); err != nil {
		return p, err
	}
	if p.X, err = r.f32(); err != nil {
		return p, err
	}
	if p.Y, err = r.f32(); err != nil {
		return p, err
	}
	return p, nil
}

var errUnknownDiscriminant = func(channel string, d uint8) error {
	return fmt.Errorf("proto: unknown %s discriminant %d", channel, d)
}
