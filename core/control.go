package core

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Handle is the integer token boundary callers use to name a session
// registered with a Control. The zero Handle is never valid.
type Handle uint64

func makeHandle(index int, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(uint32(index)+1))
}

func splitHandle(h Handle) (index int, generation uint32) {
	return int(uint32(h)) - 1, uint32(h >> 32)
}

type controlSlot struct {
	session    *Session
	generation uint32
}

// Control is the external boundary of the compositor. Every operation
// that can fail returns a bare boolean and logs the cause; nothing
// here panics on a bad handle, an unknown layer id or a dead session.
type Control struct {
	mu     sync.Mutex
	policy Policy
	slots  []controlSlot
	free   []int
	closed bool
}

// NewControl creates an empty control surface.
func NewControl(policy Policy) *Control {
	return &Control{policy: policy}
}

// Register adds a constructed session and returns its handle.
func (c *Control) Register(s *Session) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || s == nil {
		return 0
	}

	var idx int
	if n := len(c.free); n > 0 {
		idx = c.free[n-1]
		c.free = c.free[:n-1]
	} else {
		c.slots = append(c.slots, controlSlot{})
		idx = len(c.slots) - 1
	}
	c.slots[idx].session = s
	return makeHandle(idx, c.slots[idx].generation)
}

// lookup resolves a handle under the lock. Stale generations miss.
func (c *Control) lookup(h Handle) *Session {
	idx, gen := splitHandle(h)
	if idx < 0 || idx >= len(c.slots) {
		return nil
	}
	slot := &c.slots[idx]
	if slot.generation != gen || slot.session == nil {
		return nil
	}
	return slot.session
}

func (c *Control) session(h Handle, op string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.lookup(h)
	if s == nil {
		log.WithFields(log.Fields{"op": op, "handle": h}).Warn("unknown session handle")
	}
	return s
}

// CreateOverlay activates overlay slot id with its configured
// defaults. Activating a live overlay fails unless the policy allows
// it, in which case the overlay keeps running with parameters reset.
func (c *Control) CreateOverlay(h Handle, id int) bool {
	s := c.session(h, "createOverlay")
	if s == nil {
		return false
	}
	l := s.Overlay(id)
	if l == nil {
		log.WithField("id", id).Warn("createOverlay: no such overlay slot")
		return false
	}
	if l.Active() {
		if !c.policy.AllowExistingOverlay {
			log.WithField("id", id).Warn("createOverlay: overlay already active")
			return false
		}
		l.resetParams()
		return true
	}
	l.resetParams()
	l.active.Store(true)
	return true
}

// DestroyOverlay deactivates an overlay slot. The slot keeps its
// swapchain and can be activated again.
func (c *Control) DestroyOverlay(h Handle, id int) bool {
	s := c.session(h, "destroyOverlay")
	if s == nil {
		return false
	}
	l := s.Overlay(id)
	if l == nil || !l.Active() {
		log.WithField("id", id).Warn("destroyOverlay: no active overlay")
		return false
	}
	l.active.Store(false)
	return true
}

// UpdateOverlayPosition moves an active overlay. Unknown ids are a
// logged no-op.
func (c *Control) UpdateOverlayPosition(h Handle, id int, x, y, z float32) bool {
	l := c.activeOverlay(h, id, "updateOverlayPosition")
	if l == nil {
		return false
	}
	l.SetPosition(x, y, z)
	return true
}

// UpdateOverlayScale rescales an active overlay.
func (c *Control) UpdateOverlayScale(h Handle, id int, scale float32) bool {
	l := c.activeOverlay(h, id, "updateOverlayScale")
	if l == nil {
		return false
	}
	l.SetScale(scale)
	return true
}

// UpdateOverlayColor recolors an active overlay.
func (c *Control) UpdateOverlayColor(h Handle, id int, r, g, b float32) bool {
	l := c.activeOverlay(h, id, "updateOverlayColor")
	if l == nil {
		return false
	}
	l.SetColor(r, g, b)
	return true
}

// UpdateOverlayAlpha changes an active overlay's opacity.
func (c *Control) UpdateOverlayAlpha(h Handle, id int, alpha float32) bool {
	l := c.activeOverlay(h, id, "updateOverlayAlpha")
	if l == nil {
		return false
	}
	l.SetAlpha(alpha)
	return true
}

func (c *Control) activeOverlay(h Handle, id int, op string) *Layer {
	s := c.session(h, op)
	if s == nil {
		return nil
	}
	l := s.Overlay(id)
	if l == nil || !l.Active() {
		log.WithFields(log.Fields{"op": op, "id": id}).Warn("no active overlay")
		return nil
	}
	return l
}

// BeginFrame runs the wait/begin/render half of a frame cycle.
func (c *Control) BeginFrame(h Handle) bool {
	s := c.session(h, "beginFrame")
	if s == nil {
		return false
	}
	s.PollEvents()
	if !s.Running() {
		log.Debug("beginFrame: session not running")
		return false
	}
	if err := s.BeginTick(); err != nil {
		log.WithError(err).Warn("beginFrame failed")
		return false
	}
	return true
}

// EndFrame submits the frame opened by BeginFrame.
func (c *Control) EndFrame(h Handle) bool {
	s := c.session(h, "endFrame")
	if s == nil {
		return false
	}
	if err := s.EndTick(); err != nil {
		log.WithError(err).Warn("endFrame failed")
		return false
	}
	return true
}

// ResetAnimation rewinds the session's animation, as a tap would.
func (c *Control) ResetAnimation(h Handle) bool {
	s := c.session(h, "resetAnimation")
	if s == nil {
		return false
	}
	s.InputDown(0, 0)
	return true
}

// GetFrameCount returns completed frames, zero for a dead handle.
func (c *Control) GetFrameCount(h Handle) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.lookup(h); s != nil {
		return s.FrameCount()
	}
	return 0
}

// GetRuntimeInfo returns the runtime name and version, empty for a
// dead handle.
func (c *Control) GetRuntimeInfo(h Handle) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.lookup(h); s != nil {
		return s.RuntimeInfo()
	}
	return ""
}

// GetSupportedExtensions returns the instance's enabled extensions.
func (c *Control) GetSupportedExtensions(h Handle) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.lookup(h); s != nil {
		return s.Extensions()
	}
	return nil
}

// Status returns the session's status line, "gone" for a dead handle.
func (c *Control) Status(h Handle) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.lookup(h); s != nil {
		return s.Status()
	}
	return "gone"
}

// Shutdown destroys a registered session and invalidates its handle.
// A stale handle is a logged no-op.
func (c *Control) Shutdown(h Handle) bool {
	c.mu.Lock()
	s := c.lookup(h)
	if s == nil {
		c.mu.Unlock()
		log.WithField("handle", h).Warn("shutdown: unknown session handle")
		return false
	}
	idx, _ := splitHandle(h)
	c.slots[idx].session = nil
	c.slots[idx].generation++
	c.free = append(c.free, idx)
	c.mu.Unlock()

	s.Destroy()
	return true
}

// Close shuts down every registered session. Idempotent.
func (c *Control) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	var live []*Session
	for i := range c.slots {
		if s := c.slots[i].session; s != nil {
			live = append(live, s)
			c.slots[i].session = nil
			c.slots[i].generation++
		}
	}
	c.mu.Unlock()

	for _, s := range live {
		s.Destroy()
	}
}
