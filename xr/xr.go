// Package xr defines the immersive-runtime protocol boundary: the types
// and interfaces a presentation runtime must implement. The shapes follow
// the instance -> system -> session -> swapchain -> frame cycle model;
// implementations live outside this package.
package xr

import "time"

// Time is a runtime timestamp in nanoseconds. Predicted display times
// and event times share this domain.
type Time int64

// Duration converts a runtime timestamp delta to a time.Duration.
func (t Time) Duration() time.Duration {
	return time.Duration(t)
}

// Extension names a runtime may advertise and an instance may request.
const (
	ExtPlatformCreateInstance = "platform-create-instance"
	ExtOpenGLESEnable         = "opengl-es-enable"
	ExtOverlay                = "overlay"
)

// InfiniteDuration is accepted by Swapchain.Wait to block until the
// image is available. Swapchain depth guarantees eventual availability.
const InfiniteDuration = time.Duration(1<<63 - 1)

// SessionState enumerates the lifecycle states a session moves through.
// Transitions arrive exclusively as SessionStateChangedEvents.
type SessionState int

const (
	StateUnknown SessionState = iota
	StateIdle
	StateReady
	StateSynchronized
	StateVisible
	StateFocused
	StateStopping
	StateExiting
	StateLossPending
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateSynchronized:
		return "synchronized"
	case StateVisible:
		return "visible"
	case StateFocused:
		return "focused"
	case StateStopping:
		return "stopping"
	case StateExiting:
		return "exiting"
	case StateLossPending:
		return "loss-pending"
	default:
		return "unknown"
	}
}

// FormFactor selects the presentation hardware class.
type FormFactor int

const (
	FormFactorHeadMounted FormFactor = iota
	FormFactorHandheld
)

// ViewConfigurationType selects how views are arranged for a session.
type ViewConfigurationType int

const (
	ViewConfigurationMono ViewConfigurationType = iota
	ViewConfigurationStereo
)

// EnvironmentBlendMode tells the runtime how submitted layers combine
// with the passthrough environment.
type EnvironmentBlendMode int

const (
	BlendOpaque EnvironmentBlendMode = iota
	BlendAdditive
	BlendAlphaBlend
)

// ReferenceSpaceType anchors a space to a tracking origin.
type ReferenceSpaceType int

const (
	ReferenceSpaceView ReferenceSpaceType = iota
	ReferenceSpaceLocal
	ReferenceSpaceStage
)

// SystemID identifies presentation hardware on an instance.
type SystemID uint64

// Vector3f is a position in meters.
type Vector3f struct {
	X, Y, Z float32
}

// Quaternionf is a rotation. The identity orientation is {0,0,0,1}.
type Quaternionf struct {
	X, Y, Z, W float32
}

// IdentityOrientation returns the no-rotation quaternion.
func IdentityOrientation() Quaternionf {
	return Quaternionf{W: 1}
}

// Posef is an orientation plus position.
type Posef struct {
	Orientation Quaternionf
	Position    Vector3f
}

// IdentityPose returns a pose at the origin with no rotation.
func IdentityPose() Posef {
	return Posef{Orientation: IdentityOrientation()}
}

// Fovf holds the four half-angles of a view frustum, in radians.
// Left and down are typically negative.
type Fovf struct {
	AngleLeft  float32
	AngleRight float32
	AngleUp    float32
	AngleDown  float32
}

// Extent2Df is a size in meters (composition layer quads).
type Extent2Df struct {
	Width, Height float32
}

// Extent2Di is a size in pixels (swapchain images, sub-image rects).
type Extent2Di struct {
	Width, Height int32
}

// Offset2Di is a pixel offset inside a swapchain image.
type Offset2Di struct {
	X, Y int32
}

// Rect2Di is a pixel rectangle inside a swapchain image.
type Rect2Di struct {
	Offset Offset2Di
	Extent Extent2Di
}

// SystemProperties describes the presentation hardware behind a SystemID.
type SystemProperties struct {
	SystemName          string
	VendorID            uint32
	MaxLayers           int
	OrientationTracking bool
	PositionTracking    bool
}

// View is a single eye's pose and frustum, located for a display time.
type View struct {
	Pose Posef
	Fov  Fovf
}

// ViewConfigurationView carries the recommended render target size for
// one view of a view configuration.
type ViewConfigurationView struct {
	RecommendedWidth  int32
	RecommendedHeight int32
}
