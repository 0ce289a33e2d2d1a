package core

import (
	"errors"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/korxr/gfx"
	"github.com/devblok/korxr/xr"
)

// Hooks is the capability set a host injects into a session. Every
// field is optional; the session invokes them from the goroutine that
// delivered the triggering call or event.
type Hooks struct {
	// OnResume fires when the host reports the app came to the
	// foreground.
	OnResume func()

	// OnPause fires when the host reports the app left the foreground.
	OnPause func()

	// OnInputDown fires after a tap has been applied to the animation
	// driver, with the tap position in world units.
	OnInputDown func(x, y float32)

	// OnStop fires when the runtime asks the whole process to wind
	// down (session Exiting or instance loss).
	OnStop func()
}

// Session drives one overlay session through its lifecycle: instance
// and system acquisition, session and space creation, runtime event
// handling and the swapchain pool tied to the running state.
type Session struct {
	gfx    gfx.Context
	cfg    Configuration
	hooks  Hooks
	driver Driver

	runtimeName    string
	runtimeVersion string

	instance xr.Instance
	system   xr.SystemID
	props    xr.SystemProperties
	session  xr.Session
	space    xr.Space
	blend    xr.EnvironmentBlendMode

	background *Layer
	overlays   []*Layer
	pool       swapchainPool

	backgroundProg gfx.Program
	overlayProg    gfx.Program
	quad           gfx.Mesh

	state   atomic.Int32
	running atomic.Bool
	resumed atomic.Bool
	stopped atomic.Bool
	lost    atomic.Bool
	status  atomic.Value

	frames atomic.Uint64

	// frame phase bookkeeping, touched only by the compositor goroutine
	pending *pendingFrame
}

// NewSession connects to a runtime and builds everything up to the
// point where event-driven startup can take over. On any failure the
// partial construction is torn down in reverse order.
func NewSession(rt xr.Runtime, ctx gfx.Context, cfg Configuration, driver Driver, hooks Hooks) (*Session, error) {
	if ctx == nil {
		return nil, errors.New("core.NewSession(): nil graphics context")
	}
	if driver == nil {
		driver = NewStagedReveal(cfg.Animation)
	}

	s := &Session{
		gfx:        ctx,
		cfg:        cfg,
		hooks:      hooks,
		driver:     driver,
		background: newLayer(cfg.Background),
	}
	for _, spec := range cfg.Overlays {
		s.overlays = append(s.overlays, newLayer(spec))
	}
	s.runtimeName = rt.Name()
	s.runtimeVersion = rt.Version()
	s.resumed.Store(true)
	s.setStatus("created")

	exts := []string{xr.ExtPlatformCreateInstance, xr.ExtOpenGLESEnable}
	if cfg.Session.Overlay {
		exts = append(exts, xr.ExtOverlay)
	}

	instance, err := rt.CreateInstance(xr.InstanceCreateInfo{
		ApplicationName: cfg.Session.ApplicationName,
		EngineName:      "korxr",
		Extensions:      exts,
	})
	if err != nil {
		return nil, errors.New("core.NewSession(): " + err.Error())
	}
	s.instance = instance

	system, err := instance.System(cfg.Session.FormFactor)
	if err != nil {
		s.teardown()
		return nil, errors.New("core.NewSession(): " + err.Error())
	}
	s.system = system

	props, err := instance.SystemProperties(system)
	if err != nil {
		s.teardown()
		return nil, errors.New("core.NewSession(): " + err.Error())
	}
	s.props = props

	blends := instance.EnvironmentBlendModes(system, cfg.Session.ViewType)
	s.blend = xr.BlendAlphaBlend
	if len(blends) > 0 {
		s.blend = blends[0]
	}

	var overlay *xr.OverlaySessionInfo
	if cfg.Session.Overlay {
		overlay = &xr.OverlaySessionInfo{Placement: int32(cfg.Session.Placement)}
	}
	binding := ctx.Binding()
	session, err := instance.CreateSession(xr.SessionCreateInfo{
		System: system,
		Graphics: xr.GraphicsBinding{
			Display: binding.Display,
			Config:  binding.Config,
			Context: binding.Context,
		},
		Overlay: overlay,
	})
	if err != nil {
		s.teardown()
		return nil, errors.New("core.NewSession(): " + err.Error())
	}
	s.session = session

	space, err := session.CreateReferenceSpace(xr.ReferenceSpaceCreateInfo{
		Type: cfg.Session.SpaceType,
		Pose: xr.IdentityPose(),
	})
	if err != nil {
		s.teardown()
		return nil, errors.New("core.NewSession(): " + err.Error())
	}
	s.space = space

	if err := s.compilePrograms(); err != nil {
		s.teardown()
		return nil, errors.New("core.NewSession(): " + err.Error())
	}

	s.setStatus("initialized")
	log.WithFields(log.Fields{
		"system":  props.SystemName,
		"runtime": rt.Name(),
		"version": rt.Version(),
	}).Info("session initialized")
	return s, nil
}

func (s *Session) compilePrograms() error {
	src, err := gfx.LoadShaderSources()
	if err != nil {
		return err
	}
	if s.backgroundProg, err = s.gfx.CompileProgram(src.QuadVertex, src.BackgroundFragment); err != nil {
		return err
	}
	if s.overlayProg, err = s.gfx.CompileProgram(src.QuadVertex, src.OverlayFragment); err != nil {
		return err
	}
	s.quad = s.gfx.Quad()
	return nil
}

// PollEvents drains the instance event queue and applies every
// lifecycle transition. Call once per loop iteration.
func (s *Session) PollEvents() {
	if s.instance == nil {
		return
	}
	for {
		// applyState can tear the instance down on a fatal failure
		if s.instance == nil {
			return
		}
		ev, ok := s.instance.PollEvent()
		if !ok {
			return
		}
		switch e := ev.(type) {
		case xr.SessionStateChangedEvent:
			s.applyState(e.State)
		case xr.InstanceLossPendingEvent:
			s.lost.Store(true)
			s.running.Store(false)
			s.setStatus("instance lost")
			log.Error("instance loss pending, session is fatal")
			if s.hooks.OnStop != nil {
				s.hooks.OnStop()
			}
		}
	}
}

func (s *Session) applyState(state xr.SessionState) {
	s.state.Store(int32(state))
	log.WithField("state", state.String()).Debug("session state changed")

	switch state {
	case xr.StateReady:
		if err := s.session.Begin(s.cfg.Session.ViewType); err != nil {
			log.WithError(err).Error("session begin failed")
			s.setStatus("begin failed")
			return
		}
		if err := s.pool.create(s.session, s.gfx, s.allLayers()); err != nil {
			log.WithError(err).Error("swapchain creation failed, aborting startup")
			s.stopped.Store(true)
			s.teardown()
			s.setStatus("swapchain init failed")
			if s.hooks.OnStop != nil {
				s.hooks.OnStop()
			}
			return
		}
		s.running.Store(true)
		s.setStatus("running")
	case xr.StateStopping:
		s.running.Store(false)
		if err := s.session.End(); err != nil {
			log.WithError(err).Error("session end failed")
		}
		s.setStatus("stopped")
	case xr.StateExiting:
		s.running.Store(false)
		s.stopped.Store(true)
		s.setStatus("exiting")
		if s.hooks.OnStop != nil {
			s.hooks.OnStop()
		}
	case xr.StateLossPending:
		s.running.Store(false)
		s.lost.Store(true)
		s.setStatus("session lost")
	}
}

// Resume marks the app foregrounded. Rendering only happens while
// resumed and running.
func (s *Session) Resume() {
	s.resumed.Store(true)
	if s.hooks.OnResume != nil {
		s.hooks.OnResume()
	}
}

// Pause marks the app backgrounded.
func (s *Session) Pause() {
	s.resumed.Store(false)
	if s.hooks.OnPause != nil {
		s.hooks.OnPause()
	}
}

// InputDown applies a tap: the animation rewinds to its initial
// phase and the pointer position feeds the driver.
func (s *Session) InputDown(x, y float32) {
	s.driver.SetPointer(x, y)
	s.driver.Reset()
	if s.hooks.OnInputDown != nil {
		s.hooks.OnInputDown(x, y)
	}
}

// RequestExit asks the runtime to wind the session down. The actual
// stop arrives through PollEvents.
func (s *Session) RequestExit() error {
	if s.session == nil {
		return errors.New("core.RequestExit(): no session")
	}
	return s.session.RequestExit()
}

// State returns the last session state delivered by the runtime.
func (s *Session) State() xr.SessionState {
	return xr.SessionState(s.state.Load())
}

// Running reports whether the session is begun and frames are owed.
func (s *Session) Running() bool {
	return s.running.Load()
}

// Stopped reports whether the runtime asked the process to exit or
// the instance was lost.
func (s *Session) Stopped() bool {
	return s.stopped.Load() || s.lost.Load()
}

// FrameCount returns the number of completed frames.
func (s *Session) FrameCount() uint64 {
	return s.frames.Load()
}

// Status returns a short human-readable session status.
func (s *Session) Status() string {
	if v, ok := s.status.Load().(string); ok {
		return v
	}
	return "unknown"
}

func (s *Session) setStatus(v string) {
	s.status.Store(v)
}

// RuntimeInfo reports the connected runtime's name and version.
func (s *Session) RuntimeInfo() string {
	return s.runtimeName + " " + s.runtimeVersion
}

// SystemName reports the resolved system's advertised name.
func (s *Session) SystemName() string {
	return s.props.SystemName
}

// Extensions reports the extensions enabled on the instance.
func (s *Session) Extensions() []string {
	if s.instance == nil {
		return nil
	}
	return s.instance.Extensions()
}

// Overlay returns the overlay layer for an id, nil when out of range.
func (s *Session) Overlay(id int) *Layer {
	if id < 0 || id >= len(s.overlays) {
		return nil
	}
	return s.overlays[id]
}

func (s *Session) allLayers() []*Layer {
	return append([]*Layer{s.background}, s.overlays...)
}

// Destroy releases everything the session owns, dependencies last.
// Idempotent.
func (s *Session) Destroy() {
	s.running.Store(false)
	s.teardown()
	s.setStatus("destroyed")
}

func (s *Session) teardown() {
	s.pool.destroy(s.gfx, s.allLayers())
	if s.session != nil {
		if err := s.session.Destroy(); err != nil {
			log.WithError(err).Warn("session destroy failed")
		}
		s.session = nil
		s.space = nil
	}
	if s.instance != nil {
		if err := s.instance.Destroy(); err != nil {
			log.WithError(err).Warn("instance destroy failed")
		}
		s.instance = nil
	}
}
