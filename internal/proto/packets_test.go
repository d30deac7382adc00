package proto

import (
	"bytes"
	"testing"
)

func TestLengthPrefixedRoundTrip(t *testing.T) {
	body := []byte{1, 2, 3, 4, 5}
	var buf bytes.Buffer
	if err := WriteLengthPrefixed(&buf, body); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadLengthPrefixed(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("got %v, want %v", got, body)
	}
}

func TestHostControlRoundTrip(t *testing.T) {
	comparable := []HostControlPacket{
		Handshake{Version: ProtocolVersion},
		AudioStreamDescription{SampleRate: 48000, Channels: 2},
		RefreshRateChange{Fps: 72},
		SessionStateChanged{State: SessionActive},
		PinRequest{Pin: "123456"},
	}
	for _, p := range comparable {
		encoded, err := MarshalHostControl(p)
		if err != nil {
			t.Fatalf("marshal %T: %v", p, err)
		}
		decoded, err := UnmarshalHostControl(encoded)
		if err != nil {
			t.Fatalf("unmarshal %T: %v", p, err)
		}
		if decoded != p {
			t.Fatalf("%T roundtrip mismatch:\n got %+v\nwant %+v", p, decoded, p)
		}
	}

	vsd := VideoStreamDescription{
		Width: 3616, Height: 1984, Fps: 90,
		Items: []VideoStreamItem{{Width: 1808, Height: 1984, Codec: CodecH265}},
		Foveation: []EyeFoveation{{
			X: FoveationAxis{Table: []uint16{1, 1, 2, 4, 2, 1, 1}},
			Y: FoveationAxis{Table: []uint16{1, 1, 2, 2, 1, 1}},
		}},
	}
	enc, err := MarshalHostControl(vsd)
	if err != nil {
		t.Fatalf("marshal video stream description: %v", err)
	}
	dec, err := UnmarshalHostControl(enc)
	if err != nil {
		t.Fatalf("unmarshal video stream description: %v", err)
	}
	got, ok := dec.(VideoStreamDescription)
	if !ok || len(got.Items) != 1 || got.Items[0].Codec != CodecH265 || len(got.Foveation) != 1 ||
		len(got.Foveation[0].X.Table) != 7 || got.Foveation[0].X.Table[3] != 4 {
		t.Fatalf("video stream description roundtrip mismatch: %+v", got)
	}

	trackC := TrackingControl{
		Pattern:          []TrackingControlEntry{{Device: DeviceHead, PredictionNs: 11_000_000}},
		MotionsToPhotons: 22_000_000,
	}
	enc, err = MarshalHostControl(trackC)
	if err != nil {
		t.Fatalf("marshal tracking control: %v", err)
	}
	dec, err = UnmarshalHostControl(enc)
	if err != nil {
		t.Fatalf("unmarshal tracking control: %v", err)
	}
	gotTC, ok := dec.(TrackingControl)
	if !ok || len(gotTC.Pattern) != 1 || gotTC.Pattern[0].PredictionNs != 11_000_000 || gotTC.MotionsToPhotons != 22_000_000 {
		t.Fatalf("tracking control roundtrip mismatch: %+v", gotTC)
	}

	appList := ApplicationList{Applications: []Application{{ID: "a", Name: "App A"}}}
	enc, err = MarshalHostControl(appList)
	if err != nil {
		t.Fatalf("marshal application list: %v", err)
	}
	dec, err = UnmarshalHostControl(enc)
	if err != nil {
		t.Fatalf("unmarshal application list: %v", err)
	}
	gotAL, ok := dec.(ApplicationList)
	if !ok || len(gotAL.Applications) != 1 || gotAL.Applications[0].Name != "App A" {
		t.Fatalf("application list roundtrip mismatch: %+v", gotAL)
	}

	icon := ApplicationIcon{ID: "a", PNG: []byte{0x89, 'P', 'N', 'G'}}
	enc, err = MarshalHostControl(icon)
	if err != nil {
		t.Fatalf("marshal application icon: %v", err)
	}
	dec, err = UnmarshalHostControl(enc)
	if err != nil {
		t.Fatalf("unmarshal application icon: %v", err)
	}
	gotIcon, ok := dec.(ApplicationIcon)
	if !ok || !bytes.Equal(gotIcon.PNG, icon.PNG) {
		t.Fatalf("application icon roundtrip mismatch: %+v", gotIcon)
	}

	running := RunningApplications{IDs: []string{"a", "b"}}
	enc, err = MarshalHostControl(running)
	if err != nil {
		t.Fatalf("marshal running applications: %v", err)
	}
	dec, err = UnmarshalHostControl(enc)
	if err != nil {
		t.Fatalf("unmarshal running applications: %v", err)
	}
	gotRA, ok := dec.(RunningApplications)
	if !ok || len(gotRA.IDs) != 2 || gotRA.IDs[1] != "b" {
		t.Fatalf("running applications roundtrip mismatch: %+v", gotRA)
	}
}

func TestHostStreamRoundTrip(t *testing.T) {
	shard := VideoStreamDataShard{
		StreamItemIdx: 0, FrameIdx: 42, ShardIdx: 3,
		Flags:   EndOfFrame | EndOfSlice,
		Payload: []byte{0xde, 0xad, 0xbe, 0xef},
		ViewInfo: &ViewInfo{
			DisplayTime: 123456,
			Pose:        [2]Pose{{Orientation: IdentityQuat}, {Orientation: IdentityQuat}},
			Fov:         [2]Fov{{AngleLeft: -1, AngleRight: 1, AngleUp: 1, AngleDown: -1}, {}},
		},
	}
	encoded, err := MarshalHostStream(shard)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := UnmarshalHostStream(encoded)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, ok := decoded.(VideoStreamDataShard)
	if !ok {
		t.Fatalf("wrong type: %T", decoded)
	}
	if got.FrameIdx != shard.FrameIdx || got.ShardIdx != shard.ShardIdx || !bytes.Equal(got.Payload, shard.Payload) {
		t.Fatalf("mismatch: %+v", got)
	}
	if got.ViewInfo == nil || got.ViewInfo.DisplayTime != shard.ViewInfo.DisplayTime {
		t.Fatalf("view info mismatch: %+v", got.ViewInfo)
	}

	noView := VideoStreamDataShard{StreamItemIdx: 1, FrameIdx: 7, ShardIdx: 0, Payload: []byte{1}}
	encoded2, err := MarshalHostStream(noView)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded2, err := UnmarshalHostStream(encoded2)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got2 := decoded2.(VideoStreamDataShard)
	if got2.ViewInfo != nil {
		t.Fatalf("expected nil ViewInfo, got %+v", got2.ViewInfo)
	}

	query := TimesyncQuery{Query: -5}
	enc3, _ := MarshalHostStream(query)
	dec3, err := UnmarshalHostStream(enc3)
	if err != nil || dec3 != HostStreamPacket(query) {
		t.Fatalf("timesync query roundtrip failed: %+v, %v", dec3, err)
	}
}

func TestHeadsetControlRoundTrip(t *testing.T) {
	cases := []HeadsetControlPacket{
		Handshake{Version: ProtocolVersion},
		HeadsetInfoPacket{
			RecommendedEyeWidth: 1808, RecommendedEyeHeight: 1984,
			AvailableRefreshRates: []float32{72, 80, 90, 120},
			PreferredRefreshRate:  90,
			MicrophoneSampleRate:  48000, MicrophoneChannels: 1,
			HandTracking:         HandTrackingSupported,
			EyeGazeCapable:       true,
			FaceTrackingVariant:  FaceVariantFBv2,
			PalmPoseCapable:      true,
			NumGenericTrackers:   2,
			Locale:               "en-US",
		},
		Battery{Present: true, Charging: false, Level: 0.87},
		VisibilityMaskChanged{Visible: true},
		UserPresenceChanged{Present: true},
		RefreshRateChanged{Fps: 120},
		GetApplicationList{},
		StartApp{ID: "com.example.app"},
		StopApplication{ID: "com.example.app"},
		SettingsChanged{
			BitrateBps: 30_000_000, MinimumRefreshRate: 72, PreferredRefreshRate: 90,
			CodecPreference: CodecH265, HandTrackingEnabled: true,
		},
		HidInput{ReportID: 1, Payload: []byte{0x01, 0x02}},
	}
	for _, p := range cases {
		encoded, err := MarshalHeadsetControl(p)
		if err != nil {
			t.Fatalf("marshal %T: %v", p, err)
		}
		decoded, err := UnmarshalHeadsetControl(encoded)
		if err != nil {
			t.Fatalf("unmarshal %T: %v", p, err)
		}
		if !equalHeadsetControl(p, decoded) {
			t.Fatalf("%T roundtrip mismatch:\n got %+v\nwant %+v", p, decoded, p)
		}
	}
}

func equalHeadsetControl(a, b HeadsetControlPacket) bool {
	if av, ok := a.(HeadsetInfoPacket); ok {
		bv, ok := b.(HeadsetInfoPacket)
		if !ok || av.RecommendedEyeWidth != bv.RecommendedEyeWidth || len(av.AvailableRefreshRates) != len(bv.AvailableRefreshRates) {
			return false
		}
		for i := range av.AvailableRefreshRates {
			if av.AvailableRefreshRates[i] != bv.AvailableRefreshRates[i] {
				return false
			}
		}
		return av.Locale == bv.Locale && av.FaceTrackingVariant == bv.FaceTrackingVariant
	}
	if av, ok := a.(HidInput); ok {
		bv, ok := b.(HidInput)
		return ok && av.ReportID == bv.ReportID && bytes.Equal(av.Payload, bv.Payload)
	}
	return a == b
}

func TestHeadsetStreamRoundTrip(t *testing.T) {
	tr := Tracking{
		Timestamp: 1000, ProductionTimestamp: 990,
		ViewStateFlags: ViewStateOrientationValid | ViewStatePositionValid,
		Views: [2]TrackingView{
			{Pose: Pose{Orientation: IdentityQuat}, Fov: Fov{AngleLeft: -1, AngleRight: 1, AngleUp: 1, AngleDown: -1}},
			{Pose: Pose{Orientation: IdentityQuat}, Fov: Fov{AngleLeft: -1, AngleRight: 1, AngleUp: 1, AngleDown: -1}},
		},
		DevicePoses: []TrackingDevicePose{
			{Device: DeviceHead, Pose: Pose{Orientation: IdentityQuat}, Flags: OrientationValid | PositionValid},
			{Device: DeviceLeftGrip, Pose: Pose{Orientation: IdentityQuat, Position: Vec3{X: -0.2, Y: 1.1, Z: -0.3}}, Flags: OrientationValid},
		},
	}
	encoded, err := MarshalHeadsetStream(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := UnmarshalHeadsetStream(encoded)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, ok := decoded.(Tracking)
	if !ok {
		t.Fatalf("wrong type: %T", decoded)
	}
	if got.Timestamp != tr.Timestamp || len(got.DevicePoses) != len(tr.DevicePoses) {
		t.Fatalf("mismatch: %+v", got)
	}
	if got.DevicePoses[1].Pose.Position != tr.DevicePoses[1].Pose.Position {
		t.Fatalf("position mismatch: %+v", got.DevicePoses[1])
	}

	ts := TimesyncResponse{Query: -42, Response: 99999}
	enc2, _ := MarshalHeadsetStream(ts)
	dec2, err := UnmarshalHeadsetStream(enc2)
	if err != nil || dec2 != HeadsetStreamPacket(ts) {
		t.Fatalf("timesync response roundtrip failed: %+v, %v", dec2, err)
	}

	ssc := SessionStateChanged{State: SessionReconnecting}
	enc3, _ := MarshalHeadsetStream(ssc)
	dec3, err := UnmarshalHeadsetStream(enc3)
	if err != nil || dec3 != HeadsetStreamPacket(ssc) {
		t.Fatalf("session state roundtrip failed: %+v, %v", dec3, err)
	}
}

func TestUnknownDiscriminant(t *testing.T) {
	if _, err := UnmarshalHostControl([]byte{0xfe}); err == nil {
		t.Fatal("expected error for unknown discriminant")
	}
	if _, err := UnmarshalHostControl(nil); err == nil {
		t.Fatal("expected error for empty buffer")
	}
}
