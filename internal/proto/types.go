// Package proto defines the wire packet catalog shared by the host and
// headset roles: the tagged unions of control and stream packets, their
// stable binary encoding, and the small geometry types the packets carry.
//
// Wire format: every control packet is length-prefixed (uint32 LE) then
// starts with a one-byte discriminant; every stream packet is exactly one
// packet per datagram with no length prefix (the UDP layer already frames
// it) and also starts with a one-byte discriminant. Fixed fields are
// little-endian; variable-length fields (strings, byte slices) are
// preceded by a uint32 LE length. The discriminants (packets.go) are
// assigned by iota in declaration order, so inserting a new packet
// shifts the wire value of every packet declared after it.
package proto

// Vec3 is a 3D vector (position or velocity).
type Vec3 struct {
	X, Y, Z float32
}

// Quat is a unit quaternion (orientation).
type Quat struct {
	X, Y, Z, W float32
}

// IdentityQuat is the zero-rotation quaternion.
var IdentityQuat = Quat{X: 0, Y: 0, Z: 0, W: 1}

// Pose is a position + orientation pair.
type Pose struct {
	Orientation Quat
	Position    Vec3
}

// Fov is a symmetric-or-not field of view, one per eye.
type Fov struct {
	AngleLeft, AngleRight, AngleUp, AngleDown float32
}

// RelationFlags mirrors xrt_space_relation_flags: which fields of a Pose
// sample are valid/tracked at all, independent of whether the device
// happens to be stationary.
type RelationFlags uint8

const (
	OrientationValid RelationFlags = 1 << iota
	PositionValid
	LinearVelocityValid
	AngularVelocityValid
	OrientationTracked
	PositionTracked
)

// SpaceRelation is one timestamped pose sample: position, orientation,
// and their first derivatives, with validity flags.
type SpaceRelation struct {
	Pose             Pose
	LinearVelocity   Vec3
	AngularVelocity  Vec3
	RelationFlags    RelationFlags
}

// ZeroRelation is returned by an empty pose history query.
var ZeroRelation = SpaceRelation{Pose: Pose{Orientation: IdentityQuat}}

// DeviceID enumerates every tracked input/output sink.
type DeviceID uint8

const (
	DeviceHead DeviceID = iota
	DeviceLeftControllerHaptic
	DeviceRightControllerHaptic
	DeviceLeftTriggerHaptic
	DeviceRightTriggerHaptic
	DeviceLeftThumbHaptic
	DeviceRightThumbHaptic
	DeviceLeftGrip
	DeviceLeftAim
	DeviceLeftPalm
	DeviceRightGrip
	DeviceRightAim
	DeviceRightPalm
	DeviceLeftPinchPose
	DeviceLeftPokePose
	DeviceRightPinchPose
	DeviceRightPokePose
	DeviceEyeGaze
	DeviceFace
	DeviceBody
	DeviceGenericTracker0
	DeviceGenericTracker1
	DeviceGenericTracker2
	DeviceGenericTracker3

	// Buttons / axes (left hand)
	DeviceXClick
	DeviceXTouch
	DeviceYClick
	DeviceYTouch
	DeviceMenuClick
	DeviceLeftSqueezeValue
	DeviceLeftSqueezeForce
	DeviceLeftTriggerValue
	DeviceLeftTriggerTouch
	DeviceLeftTriggerProximity
	DeviceLeftTriggerCurl
	DeviceLeftTriggerSlide
	DeviceLeftThumbstickX
	DeviceLeftThumbstickY
	DeviceLeftThumbstickClick
	DeviceLeftThumbstickTouch
	DeviceLeftTrackpadX
	DeviceLeftTrackpadY
	DeviceLeftTrackpadClick
	DeviceLeftTrackpadTouch
	DeviceLeftTrackpadForce
	DeviceLeftThumbrestTouch
	DeviceLeftThumbrestForce
	DeviceLeftStylusForce

	// Buttons / axes (right hand)
	DeviceAClick
	DeviceATouch
	DeviceBClick
	DeviceBTouch
	DeviceSystemClick
	DeviceRightSqueezeValue
	DeviceRightSqueezeForce
	DeviceRightTriggerValue
	DeviceRightTriggerTouch
	DeviceRightTriggerProximity
	DeviceRightTriggerCurl
	DeviceRightTriggerSlide
	DeviceRightThumbstickX
	DeviceRightThumbstickY
	DeviceRightThumbstickClick
	DeviceRightThumbstickTouch
	DeviceRightTrackpadX
	DeviceRightTrackpadY
	DeviceRightTrackpadClick
	DeviceRightTrackpadTouch
	DeviceRightTrackpadForce
	DeviceRightThumbrestTouch
	DeviceRightThumbrestForce
	DeviceRightStylusForce

	// Hand-interaction extension poses/values
	DeviceLeftHandInteractionPinchPose
	DeviceLeftHandInteractionPokePose
	DeviceLeftHandInteractionAimActivateValue
	DeviceLeftHandInteractionGraspValue
	DeviceLeftHandInteractionPinchReady
	DeviceLeftHandInteractionAimActivateReady
	DeviceLeftHandInteractionGraspReady
	DeviceRightHandInteractionPinchPose
	DeviceRightHandInteractionPokePose
	DeviceRightHandInteractionAimActivateValue
	DeviceRightHandInteractionGraspValue
	DeviceRightHandInteractionPinchReady
	DeviceRightHandInteractionAimActivateReady
	DeviceRightHandInteractionGraspReady

	deviceIDCount
)

// VideoCodec identifies the encoded bitstream format of a video item.
type VideoCodec uint8

const (
	CodecH264 VideoCodec = iota
	CodecH265
	CodecAV1
)

// FaceExpressionVariant selects which vendor-specific face tracking
// payload shape a face_expression packet carries.
type FaceExpressionVariant uint8

const (
	FaceVariantNone FaceExpressionVariant = iota
	FaceVariantFBv2
	FaceVariantHTC
	FaceVariantAndroid
	FaceVariantPico
)
