package xr

import (
	"errors"
	"time"

	"github.com/devblok/korxr/gfx"
)

// Errors shared by runtime implementations.
var (
	// ErrExtensionUnsupported is returned by CreateInstance when a
	// requested extension is not advertised by the runtime.
	ErrExtensionUnsupported = errors.New("xr: requested extension not supported")

	// ErrInstanceLost means the instance is no longer usable. No call
	// on a lost instance succeeds and no reconnect is attempted.
	ErrInstanceLost = errors.New("xr: instance lost")

	// ErrSessionNotReady is returned by Session.Begin outside the
	// Ready state.
	ErrSessionNotReady = errors.New("xr: session not in ready state")

	// ErrSessionNotStopping is returned by Session.End outside the
	// Stopping state.
	ErrSessionNotStopping = errors.New("xr: session not in stopping state")

	// ErrFrameOutOfOrder means the wait/begin/end frame cycle was
	// violated: a begin without a wait, or an end without a begin.
	ErrFrameOutOfOrder = errors.New("xr: frame call out of order")

	// ErrSwapchainImageInFlight means Acquire was called while a
	// previously acquired image has not been released.
	ErrSwapchainImageInFlight = errors.New("xr: swapchain image still acquired")

	// ErrHandleInvalid means a handle refers to a destroyed or never
	// created resource (stale generation included).
	ErrHandleInvalid = errors.New("xr: invalid handle")
)

// InstanceCreateInfo names the application and requests extensions.
type InstanceCreateInfo struct {
	ApplicationName string
	EngineName      string
	Extensions      []string
}

// GraphicsBinding hands the runtime the live rendering context triple.
// The host creates the surface; the runtime only borrows it.
type GraphicsBinding struct {
	Display gfx.DisplayHandle
	Config  gfx.ConfigHandle
	Context gfx.ContextHandle
}

// OverlaySessionInfo requests compositing as an overlay session.
// Placement orders this session's layers relative to the main session:
// higher places on top.
type OverlaySessionInfo struct {
	Placement int32
}

// SessionCreateInfo carries everything session creation needs. Overlay
// is nil for a primary (non-overlay) session.
type SessionCreateInfo struct {
	System   SystemID
	Graphics GraphicsBinding
	Overlay  *OverlaySessionInfo
}

// ReferenceSpaceCreateInfo describes a reference space to create.
type ReferenceSpaceCreateInfo struct {
	Type ReferenceSpaceType
	Pose Posef
}

// SwapchainCreateInfo sizes a swapchain. Width and height are fixed for
// the swapchain's lifetime.
type SwapchainCreateInfo struct {
	Width       int32
	Height      int32
	SampleCount int32
	ArraySize   int32
}

// FrameState is the runtime's answer to WaitFrame.
type FrameState struct {
	PredictedDisplayTime   Time
	PredictedDisplayPeriod Time
	ShouldRender           bool
}

// SwapchainSubImage points a composition layer at a region of a
// swapchain image.
type SwapchainSubImage struct {
	Swapchain  Swapchain
	ImageRect  Rect2Di
	ArrayIndex int32
}

// CompositionLayer is one entry of the per-frame layer list. List order
// is back-to-front compositing order.
type CompositionLayer interface {
	LayerSpace() Space
}

// QuadLayer is a rectangular surface positioned in a space.
type QuadLayer struct {
	Space    Space
	Pose     Posef
	Size     Extent2Df
	SubImage SwapchainSubImage
}

// LayerSpace implements CompositionLayer.
func (l QuadLayer) LayerSpace() Space { return l.Space }

// ProjectionView is one eye of a projection layer.
type ProjectionView struct {
	Pose     Posef
	Fov      Fovf
	SubImage SwapchainSubImage
}

// ProjectionLayer is a full-field stereo surface. Kept as the single
// reference path for view/projection math; overlay compositing uses
// QuadLayer.
type ProjectionLayer struct {
	Space Space
	Views []ProjectionView
}

// LayerSpace implements CompositionLayer.
func (l ProjectionLayer) LayerSpace() Space { return l.Space }

// FrameEndInfo submits the assembled layer list for presentation.
type FrameEndInfo struct {
	DisplayTime Time
	BlendMode   EnvironmentBlendMode
	Layers      []CompositionLayer
}

// Event is a notification polled from the instance event queue.
type Event interface {
	EventTime() Time
}

// SessionStateChangedEvent reports a session lifecycle transition.
type SessionStateChangedEvent struct {
	State SessionState
	Time  Time
}

// EventTime implements Event.
func (e SessionStateChangedEvent) EventTime() Time { return e.Time }

// InstanceLossPendingEvent reports that the instance is about to become
// unusable. Fatal for the current session.
type InstanceLossPendingEvent struct {
	Time Time
}

// EventTime implements Event.
func (e InstanceLossPendingEvent) EventTime() Time { return e.Time }

// Space is an opaque handle to a created reference space.
type Space interface {
	SpaceType() ReferenceSpaceType
}

// Runtime is the entry point a presentation runtime implements.
type Runtime interface {
	// CreateInstance allocates an instance for the application.
	// Requesting an extension the runtime does not support fails with
	// ErrExtensionUnsupported.
	CreateInstance(InstanceCreateInfo) (Instance, error)

	// Name identifies the runtime.
	Name() string

	// Version reports the runtime version string.
	Version() string
}

// Instance is a live connection to the runtime.
type Instance interface {
	// System resolves presentation hardware for a form factor.
	System(FormFactor) (SystemID, error)

	// SystemProperties describes a resolved system.
	SystemProperties(SystemID) (SystemProperties, error)

	// ViewConfigurations lists supported view arrangements, preferred
	// first.
	ViewConfigurations(SystemID) []ViewConfigurationType

	// EnvironmentBlendModes lists supported blend modes, preferred
	// first.
	EnvironmentBlendModes(SystemID, ViewConfigurationType) []EnvironmentBlendMode

	// Extensions returns the extensions enabled on this instance.
	Extensions() []string

	// CreateSession allocates a session against a system.
	CreateSession(SessionCreateInfo) (Session, error)

	// PollEvent pops the next queued event. The second return is false
	// when the queue is empty; an empty queue is not an error.
	PollEvent() (Event, bool)

	// Destroy releases the instance. Idempotent.
	Destroy() error
}

// Session is a live presentation context. All frame calls must come
// from a single goroutine.
type Session interface {
	// CreateReferenceSpace allocates a space on this session.
	CreateReferenceSpace(ReferenceSpaceCreateInfo) (Space, error)

	// CreateSwapchain allocates a swapchain and its image ring.
	CreateSwapchain(SwapchainCreateInfo) (Swapchain, error)

	// Begin starts the session with the negotiated view configuration.
	// Legal only in the Ready state.
	Begin(ViewConfigurationType) error

	// End stops a session in the Stopping state.
	End() error

	// RequestExit asks the runtime to wind the session down. The
	// Stopping and Exiting states arrive as events.
	RequestExit() error

	// WaitFrame blocks until the runtime grants permission to begin a
	// frame. This is the loop's pacing point.
	WaitFrame() (FrameState, error)

	// BeginFrame opens the frame granted by the last WaitFrame.
	BeginFrame() error

	// EndFrame submits the layer list. Must be called exactly once per
	// begun frame, even with an empty list.
	EndFrame(FrameEndInfo) error

	// Destroy releases the session and everything it owns. Idempotent.
	Destroy() error
}

// Swapchain is a ring of presentable images for one layer.
type Swapchain interface {
	// Images returns the backing textures. Stable for the swapchain's
	// lifetime.
	Images() []gfx.Texture

	// Extent returns the fixed pixel size.
	Extent() Extent2Di

	// Acquire returns the index of the next writable image.
	Acquire() (int, error)

	// Wait blocks until the acquired image is ready for rendering.
	Wait(timeout time.Duration) error

	// Release returns the acquired image to the ring.
	Release() error

	// Destroy frees the swapchain and its images. Idempotent.
	Destroy() error
}
