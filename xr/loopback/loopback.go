// Package loopback implements the xr runtime protocol in-process. It
// schedules session state events, paces frames on the wall clock, backs
// swapchains with textures from a gfx context and composites submitted
// quad layers back-to-front onto a presentation target. It stands in
// for a real presentation runtime in tests and on hosts without one.
package loopback

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/korxr/gfx"
	"github.com/devblok/korxr/xr"
)

// Version reported by the runtime.
const runtimeVersion = "1.0.0"

var supportedExtensions = []string{
	xr.ExtPlatformCreateInstance,
	xr.ExtOpenGLESEnable,
	xr.ExtOverlay,
}

// Config tunes the runtime. Zero values fall back to defaults.
type Config struct {
	SystemName string
	VendorID   uint32

	ViewConfigurations []xr.ViewConfigurationType
	BlendModes         []xr.EnvironmentBlendMode

	// SwapchainDepth is the image ring length, default 3.
	SwapchainDepth int

	// FramePeriod is the presentation interval, default 16ms.
	FramePeriod time.Duration

	// Graphics allocates swapchain textures and reads pixels back for
	// compositing.
	Graphics gfx.Context

	// PresentWidth and PresentHeight size the presentation target,
	// default 1024x1024.
	PresentWidth  int
	PresentHeight int
}

func (c *Config) fillDefaults() {
	if c.SystemName == "" {
		c.SystemName = "Loopback HMD"
	}
	if len(c.ViewConfigurations) == 0 {
		c.ViewConfigurations = []xr.ViewConfigurationType{xr.ViewConfigurationMono}
	}
	if len(c.BlendModes) == 0 {
		c.BlendModes = []xr.EnvironmentBlendMode{xr.BlendAlphaBlend, xr.BlendOpaque}
	}
	if c.SwapchainDepth == 0 {
		c.SwapchainDepth = 3
	}
	if c.FramePeriod == 0 {
		c.FramePeriod = 16 * time.Millisecond
	}
	if c.PresentWidth == 0 {
		c.PresentWidth = 1024
	}
	if c.PresentHeight == 0 {
		c.PresentHeight = 1024
	}
}

// New creates a loopback runtime.
func New(cfg Config) (*Runtime, error) {
	cfg.fillDefaults()
	if cfg.Graphics == nil {
		return nil, errors.New("loopback.New(): graphics context required")
	}
	return &Runtime{
		cfg:   cfg,
		start: time.Now(),
	}, nil
}

// Runtime implements xr.Runtime.
type Runtime struct {
	cfg   Config
	start time.Time

	mu       sync.Mutex
	instance *Instance

	// test hooks
	failSwapchains int
	forceRenderOff bool
}

// Name implements xr.Runtime.
func (r *Runtime) Name() string { return "loopback" }

// Version implements xr.Runtime.
func (r *Runtime) Version() string { return runtimeVersion }

// CreateInstance implements xr.Runtime. A single live instance is
// supported at a time.
func (r *Runtime) CreateInstance(info xr.InstanceCreateInfo) (xr.Instance, error) {
	for _, ext := range info.Extensions {
		if !extensionSupported(ext) {
			return nil, xr.ErrExtensionUnsupported
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.instance != nil && !r.instance.destroyed {
		return nil, errors.New("loopback: instance already exists")
	}
	inst := &Instance{
		runtime:    r,
		extensions: append([]string(nil), info.Extensions...),
	}
	r.instance = inst
	log.WithFields(log.Fields{
		"application": info.ApplicationName,
		"extensions":  info.Extensions,
	}).Debug("loopback instance created")
	return inst, nil
}

// FailNextSwapchains makes the next n swapchain creations fail, to
// exercise partial-creation paths in callers.
func (r *Runtime) FailNextSwapchains(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failSwapchains = n
}

// SetShouldRender forces the should-render flag off (or back on) for
// subsequent frames regardless of session state.
func (r *Runtime) SetShouldRender(render bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forceRenderOff = !render
}

// LoseInstance delivers an instance-loss notification and poisons the
// instance. No reconnect is possible.
func (r *Runtime) LoseInstance() {
	r.mu.Lock()
	inst := r.instance
	r.mu.Unlock()
	if inst == nil {
		return
	}
	inst.lose(r.now())
}

// Session returns the live session, if any. Test surface.
func (r *Runtime) Session() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.instance == nil {
		return nil
	}
	return r.instance.session
}

func (r *Runtime) takeSwapchainFailure() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSwapchains > 0 {
		r.failSwapchains--
		return true
	}
	return false
}

func (r *Runtime) renderForcedOff() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forceRenderOff
}

func (r *Runtime) now() xr.Time {
	return xr.Time(time.Since(r.start).Nanoseconds())
}

func extensionSupported(name string) bool {
	for _, ext := range supportedExtensions {
		if ext == name {
			return true
		}
	}
	return false
}

// Instance implements xr.Instance.
type Instance struct {
	runtime    *Runtime
	extensions []string

	mu        sync.Mutex
	events    []xr.Event
	session   *Session
	lost      bool
	destroyed bool
}

// System implements xr.Instance.
func (i *Instance) System(ff xr.FormFactor) (xr.SystemID, error) {
	if err := i.usable(); err != nil {
		return 0, err
	}
	if ff != xr.FormFactorHeadMounted {
		return 0, errors.New("loopback: form factor unavailable")
	}
	return xr.SystemID(1), nil
}

// SystemProperties implements xr.Instance.
func (i *Instance) SystemProperties(id xr.SystemID) (xr.SystemProperties, error) {
	if err := i.usable(); err != nil {
		return xr.SystemProperties{}, err
	}
	if id != 1 {
		return xr.SystemProperties{}, xr.ErrHandleInvalid
	}
	return xr.SystemProperties{
		SystemName:          i.runtime.cfg.SystemName,
		VendorID:            i.runtime.cfg.VendorID,
		MaxLayers:           16,
		OrientationTracking: true,
	}, nil
}

// ViewConfigurations implements xr.Instance.
func (i *Instance) ViewConfigurations(xr.SystemID) []xr.ViewConfigurationType {
	return append([]xr.ViewConfigurationType(nil), i.runtime.cfg.ViewConfigurations...)
}

// EnvironmentBlendModes implements xr.Instance.
func (i *Instance) EnvironmentBlendModes(xr.SystemID, xr.ViewConfigurationType) []xr.EnvironmentBlendMode {
	return append([]xr.EnvironmentBlendMode(nil), i.runtime.cfg.BlendModes...)
}

// Extensions implements xr.Instance.
func (i *Instance) Extensions() []string {
	return append([]string(nil), i.extensions...)
}

// CreateSession implements xr.Instance. The new session starts in Idle
// and receives a Ready event immediately after.
func (i *Instance) CreateSession(info xr.SessionCreateInfo) (xr.Session, error) {
	if err := i.usable(); err != nil {
		return nil, err
	}
	if info.System != 1 {
		return nil, xr.ErrHandleInvalid
	}
	if info.Graphics.Context == 0 {
		return nil, errors.New("loopback: graphics binding missing")
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.session != nil && !i.session.destroyed {
		return nil, errors.New("loopback: session already exists")
	}
	s := newSession(i, info)
	i.session = s

	i.pushLocked(xr.SessionStateChangedEvent{State: xr.StateIdle, Time: i.runtime.now()})
	i.pushLocked(xr.SessionStateChangedEvent{State: xr.StateReady, Time: i.runtime.now()})
	s.setState(xr.StateReady)

	if info.Overlay != nil {
		log.WithField("placement", info.Overlay.Placement).Debug("loopback overlay session created")
	}
	return s, nil
}

// PollEvent implements xr.Instance.
func (i *Instance) PollEvent() (xr.Event, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.events) == 0 {
		return nil, false
	}
	ev := i.events[0]
	i.events = i.events[1:]
	return ev, true
}

// Destroy implements xr.Instance.
func (i *Instance) Destroy() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return nil
	}
	if i.session != nil && !i.session.destroyed {
		i.session.destroyLocked()
	}
	i.destroyed = true
	return nil
}

func (i *Instance) usable() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.lost {
		return xr.ErrInstanceLost
	}
	if i.destroyed {
		return xr.ErrHandleInvalid
	}
	return nil
}

func (i *Instance) lose(at xr.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.lost {
		return
	}
	i.lost = true
	i.pushLocked(xr.InstanceLossPendingEvent{Time: at})
}

func (i *Instance) push(ev xr.Event) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pushLocked(ev)
}

// pushLocked appends to the event queue. Callers hold mu.
func (i *Instance) pushLocked(ev xr.Event) {
	i.events = append(i.events, ev)
}
