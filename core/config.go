package core

import (
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gobuffalo/envy"

	"github.com/devblok/korxr/xr"
)

// Configuration defines a global compositor configuration setting
type Configuration struct {
	Time      TimeConfiguration
	Session   SessionConfiguration
	Animation AnimationConfiguration
	Policy    Policy

	// Background is the full-surround backdrop layer,
	// always present and always rendered first
	Background LayerSpec

	// Overlays holds the defaults for every overlay slot.
	// Slots are activated individually through the control surface.
	Overlays []LayerSpec
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To use the runtime's own pacing, set to 0
	FramesPerSecond int

	// EventPollDelay is the delay of the event ticker in milliseconds
	EventPollDelay int
}

// FramePeriod converts the fps cap into the frame interval handed to
// the runtime, zero when uncapped.
func (c TimeConfiguration) FramePeriod() time.Duration {
	if c.FramesPerSecond <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.FramesPerSecond)
}

// SessionConfiguration is used to configure the runtime session
type SessionConfiguration struct {
	ApplicationName string

	FormFactor xr.FormFactor
	ViewType   xr.ViewConfigurationType
	SpaceType  xr.ReferenceSpaceType

	// Overlay marks the session as a compositor overlay client
	Overlay   bool
	Placement uint32
}

// AnimationConfiguration is used to configure the reveal driver
type AnimationConfiguration struct {
	// StageDwell is how long a reveal stage holds before
	// the next overlay starts easing in
	StageDwell time.Duration

	// EaseIn is the window over which a newly revealed
	// overlay scales up from zero
	EaseIn time.Duration
}

// Policy collects behaviour switches for the control surface
type Policy struct {
	// AllowExistingOverlay makes a repeated create on a live
	// overlay id succeed instead of failing the call
	AllowExistingOverlay bool
}

// LayerSpec describes one composition layer slot: the swapchain
// dimensions backing it and the defaults it activates with.
type LayerSpec struct {
	Width  int32
	Height int32

	// Size is the extent of the quad in world units
	Size xr.Extent2Df

	Position mgl32.Vec3
	Scale    float32

	Color mgl32.Vec3
	Alpha float32
}

// DefaultConfiguration returns the stock scene: a cyan backdrop
// and three primary-coloured overlay slots fanned across it.
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 60,
			EventPollDelay:  10,
		},
		Session: SessionConfiguration{
			ApplicationName: "korxr",
			FormFactor:      xr.FormFactorHeadMounted,
			ViewType:        xr.ViewConfigurationStereo,
			SpaceType:       xr.ReferenceSpaceLocal,
			Overlay:         true,
			Placement:       1,
		},
		Animation: AnimationConfiguration{
			StageDwell: DefaultStageDwell,
			EaseIn:     DefaultEaseIn,
		},
		Background: LayerSpec{
			Width:  1024,
			Height: 1024,
			Size:   xr.Extent2Df{Width: 100, Height: 100},
			Scale:  1,
			Color:  mgl32.Vec3{0, 0.75, 0.75},
			Alpha:  1,
		},
		Overlays: []LayerSpec{
			{
				Width: 512, Height: 256,
				Size:     xr.Extent2Df{Width: 0.8, Height: 0.4},
				Position: mgl32.Vec3{-0.5, 0.5, -1.5},
				Scale:    1,
				Color:    mgl32.Vec3{0.2, 0.4, 1},
				Alpha:    0.9,
			},
			{
				Width: 512, Height: 256,
				Size:     xr.Extent2Df{Width: 0.8, Height: 0.4},
				Position: mgl32.Vec3{0, -0.25, -1.5},
				Scale:    1,
				Color:    mgl32.Vec3{1, 0.2, 0.8},
				Alpha:    0.9,
			},
			{
				Width: 512, Height: 256,
				Size:     xr.Extent2Df{Width: 0.8, Height: 0.4},
				Position: mgl32.Vec3{0.5, 0.25, -1.5},
				Scale:    1,
				Color:    mgl32.Vec3{0.2, 1, 0.4},
				Alpha:    0.9,
			},
		},
	}
}

// FromEnvironment overlays environment settings onto a configuration.
// Unset, malformed or out-of-range variables leave the passed values
// untouched.
func FromEnvironment(cfg Configuration) Configuration {
	if v, err := strconv.Atoi(envy.Get("KORXR_FPS", "")); err == nil {
		cfg.Time.FramesPerSecond = v
	}
	if v, err := strconv.Atoi(envy.Get("KORXR_EVENT_POLL_MS", "")); err == nil {
		cfg.Time.EventPollDelay = v
	}
	if v := envy.Get("KORXR_APP_NAME", ""); v != "" {
		cfg.Session.ApplicationName = v
	}
	if v, err := strconv.ParseFloat(envy.Get("KORXR_STAGE_DWELL_SEC", ""), 64); err == nil && v > 0 {
		cfg.Animation.StageDwell = time.Duration(v * float64(time.Second))
	}
	if v, err := strconv.ParseFloat(envy.Get("KORXR_EASE_IN_SEC", ""), 64); err == nil && v >= 0 {
		cfg.Animation.EaseIn = time.Duration(v * float64(time.Second))
	}
	if v, err := strconv.ParseBool(envy.Get("KORXR_ALLOW_EXISTING_OVERLAY", "")); err == nil {
		cfg.Policy.AllowExistingOverlay = v
	}
	return cfg
}
