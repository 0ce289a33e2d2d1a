package loopback

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/korxr/xr"
)

type framePhase int

const (
	phaseIdle framePhase = iota
	phaseWaited
	phaseBegun
)

func newSession(inst *Instance, info xr.SessionCreateInfo) *Session {
	return &Session{
		instance: inst,
		info:     info,
		state:    xr.StateIdle,
	}
}

// Session implements xr.Session. Frame calls must come from a single
// goroutine; lifecycle calls may come from another.
type Session struct {
	instance *Instance
	info     xr.SessionCreateInfo

	mu        sync.Mutex
	state     xr.SessionState
	running   bool
	destroyed bool

	swapchains swapchainArena
	spaces     []*space

	phase      framePhase
	nextFrame  time.Time
	waitedTime xr.Time

	frameCount    uint64
	lastSubmitted []xr.CompositionLayer
	presentation  *presentTarget
}

type space struct {
	typ  xr.ReferenceSpaceType
	pose xr.Posef
}

// SpaceType implements xr.Space.
func (s *space) SpaceType() xr.ReferenceSpaceType { return s.typ }

// CreateReferenceSpace implements xr.Session.
func (s *Session) CreateReferenceSpace(info xr.ReferenceSpaceCreateInfo) (xr.Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, xr.ErrHandleInvalid
	}
	sp := &space{typ: info.Type, pose: info.Pose}
	s.spaces = append(s.spaces, sp)
	return sp, nil
}

// CreateSwapchain implements xr.Session.
func (s *Session) CreateSwapchain(info xr.SwapchainCreateInfo) (xr.Swapchain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, xr.ErrHandleInvalid
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, errors.New("loopback: swapchain extent must be positive")
	}
	if s.instance.runtime.takeSwapchainFailure() {
		return nil, errors.New("loopback: swapchain creation failed (injected)")
	}
	return s.swapchains.create(s, info)
}

// Begin implements xr.Session. Legal only in Ready; queues the
// Synchronized, Visible and Focused transitions.
func (s *Session) Begin(vc xr.ViewConfigurationType) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return xr.ErrHandleInvalid
	}
	if s.state != xr.StateReady {
		s.mu.Unlock()
		return xr.ErrSessionNotReady
	}
	s.running = true
	s.nextFrame = time.Now()
	s.mu.Unlock()

	now := s.instance.runtime.now()
	for _, st := range []xr.SessionState{xr.StateSynchronized, xr.StateVisible, xr.StateFocused} {
		s.setState(st)
		s.instance.push(xr.SessionStateChangedEvent{State: st, Time: now})
	}
	log.WithField("viewConfiguration", vc).Debug("loopback session begun")
	return nil
}

// End implements xr.Session. Legal only in Stopping; queues Exiting.
func (s *Session) End() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return xr.ErrHandleInvalid
	}
	if s.state != xr.StateStopping {
		s.mu.Unlock()
		return xr.ErrSessionNotStopping
	}
	s.running = false
	s.mu.Unlock()

	s.setState(xr.StateExiting)
	s.instance.push(xr.SessionStateChangedEvent{State: xr.StateExiting, Time: s.instance.runtime.now()})
	return nil
}

// RequestExit implements xr.Session. Queues the Stopping transition;
// the caller is expected to End the session when it observes it.
func (s *Session) RequestExit() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return xr.ErrHandleInvalid
	}
	s.mu.Unlock()

	s.setState(xr.StateStopping)
	s.instance.push(xr.SessionStateChangedEvent{State: xr.StateStopping, Time: s.instance.runtime.now()})
	return nil
}

// WaitFrame implements xr.Session. Sleeps until the next display tick;
// the only intended blocking point of a frame loop.
func (s *Session) WaitFrame() (xr.FrameState, error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return xr.FrameState{}, xr.ErrHandleInvalid
	}
	if !s.running {
		s.mu.Unlock()
		return xr.FrameState{}, errors.New("loopback: session not running")
	}
	if s.phase == phaseBegun {
		s.mu.Unlock()
		return xr.FrameState{}, xr.ErrFrameOutOfOrder
	}
	period := s.instance.runtime.cfg.FramePeriod
	next := s.nextFrame
	s.mu.Unlock()

	if wait := time.Until(next); wait > 0 {
		time.Sleep(wait)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.nextFrame = now.Add(period)
	s.phase = phaseWaited
	s.waitedTime = s.instance.runtime.now() + xr.Time(period)

	render := s.state == xr.StateSynchronized || s.state == xr.StateVisible || s.state == xr.StateFocused
	if s.instance.runtime.renderForcedOff() {
		render = false
	}
	return xr.FrameState{
		PredictedDisplayTime:   s.waitedTime,
		PredictedDisplayPeriod: xr.Time(period),
		ShouldRender:           render,
	}, nil
}

// BeginFrame implements xr.Session.
func (s *Session) BeginFrame() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return xr.ErrHandleInvalid
	}
	if s.phase != phaseWaited {
		return xr.ErrFrameOutOfOrder
	}
	s.phase = phaseBegun
	return nil
}

// EndFrame implements xr.Session. Validates pairing and layer handles,
// records the submission and composites quad layers back-to-front.
func (s *Session) EndFrame(info xr.FrameEndInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return xr.ErrHandleInvalid
	}
	if s.phase != phaseBegun {
		return xr.ErrFrameOutOfOrder
	}
	for _, layer := range info.Layers {
		if quad, ok := layer.(xr.QuadLayer); ok {
			if err := s.swapchains.validate(quad.SubImage.Swapchain); err != nil {
				return err
			}
		}
	}

	s.phase = phaseIdle
	s.frameCount++
	s.lastSubmitted = append([]xr.CompositionLayer(nil), info.Layers...)
	s.compositeLocked(info)
	return nil
}

// Destroy implements xr.Session.
func (s *Session) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyLocked()
	return nil
}

// destroyLocked tears the session down. Callers hold mu (or the
// instance teardown path, which owns the session exclusively).
func (s *Session) destroyLocked() {
	if s.destroyed {
		return
	}
	s.swapchains.destroyAll(s.instance.runtime.cfg.Graphics)
	s.spaces = nil
	s.running = false
	s.destroyed = true
}

// FrameCount reports completed frames. Test surface.
func (s *Session) FrameCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameCount
}

// LastSubmitted returns the layer list of the most recent EndFrame.
// Test surface.
func (s *Session) LastSubmitted() []xr.CompositionLayer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]xr.CompositionLayer(nil), s.lastSubmitted...)
}

// State reports the current session state. Test surface.
func (s *Session) State() xr.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st xr.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}
