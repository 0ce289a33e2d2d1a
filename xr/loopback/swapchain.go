package loopback

import (
	"sync"
	"time"

	"github.com/devblok/korxr/gfx"
	"github.com/devblok/korxr/xr"
)

// swapchainArena stores swapchain records behind generation-checked
// index handles. A destroyed slot bumps its generation, so a stale
// handle can never alias a newer swapchain.
type swapchainArena struct {
	mu    sync.Mutex
	slots []swapchainSlot
	free  []int32
}

type swapchainSlot struct {
	generation uint32
	record     *swapchainRecord
}

type swapchainRecord struct {
	extent   xr.Extent2Di
	textures []gfx.Texture

	next         int
	acquired     int // -1 when no image is held
	lastReleased int // -1 until the first release
}

func (a *swapchainArena) create(s *Session, info xr.SwapchainCreateInfo) (*Swapchain, error) {
	depth := s.instance.runtime.cfg.SwapchainDepth
	ctx := s.instance.runtime.cfg.Graphics

	rec := &swapchainRecord{
		extent:       xr.Extent2Di{Width: info.Width, Height: info.Height},
		acquired:     -1,
		lastReleased: -1,
	}
	for i := 0; i < depth; i++ {
		tex, err := ctx.NewTexture(int(info.Width), int(info.Height))
		if err != nil {
			for _, t := range rec.textures {
				ctx.DeleteTexture(t)
			}
			return nil, err
		}
		rec.textures = append(rec.textures, tex)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	var index int32
	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[index].record = rec
	} else {
		index = int32(len(a.slots))
		a.slots = append(a.slots, swapchainSlot{record: rec})
	}
	return &Swapchain{
		session:    s,
		index:      index,
		generation: a.slots[index].generation,
	}, nil
}

// lookup resolves a handle to its record, enforcing the generation.
func (a *swapchainArena) lookup(sc *Swapchain) (*swapchainRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sc.index < 0 || int(sc.index) >= len(a.slots) {
		return nil, xr.ErrHandleInvalid
	}
	slot := a.slots[sc.index]
	if slot.record == nil || slot.generation != sc.generation {
		return nil, xr.ErrHandleInvalid
	}
	return slot.record, nil
}

func (a *swapchainArena) validate(sc xr.Swapchain) error {
	own, ok := sc.(*Swapchain)
	if !ok {
		return xr.ErrHandleInvalid
	}
	_, err := own.session.swapchains.lookup(own)
	return err
}

func (a *swapchainArena) destroy(sc *Swapchain, ctx gfx.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sc.index < 0 || int(sc.index) >= len(a.slots) {
		return xr.ErrHandleInvalid
	}
	slot := &a.slots[sc.index]
	if slot.record == nil || slot.generation != sc.generation {
		// Destroy is idempotent: a stale handle simply has nothing
		// left to free.
		return nil
	}
	for _, t := range slot.record.textures {
		ctx.DeleteTexture(t)
	}
	slot.record = nil
	slot.generation++
	a.free = append(a.free, sc.index)
	return nil
}

func (a *swapchainArena) destroyAll(ctx gfx.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.slots {
		if a.slots[i].record != nil {
			for _, t := range a.slots[i].record.textures {
				ctx.DeleteTexture(t)
			}
			a.slots[i].record = nil
			a.slots[i].generation++
			a.free = append(a.free, int32(i))
		}
	}
}

// Swapchain implements xr.Swapchain as a generation-checked handle into
// the session's arena.
type Swapchain struct {
	session    *Session
	index      int32
	generation uint32

	mu sync.Mutex
}

// Images implements xr.Swapchain.
func (sc *Swapchain) Images() []gfx.Texture {
	rec, err := sc.session.swapchains.lookup(sc)
	if err != nil {
		return nil
	}
	return append([]gfx.Texture(nil), rec.textures...)
}

// Extent implements xr.Swapchain.
func (sc *Swapchain) Extent() xr.Extent2Di {
	rec, err := sc.session.swapchains.lookup(sc)
	if err != nil {
		return xr.Extent2Di{}
	}
	return rec.extent
}

// Acquire implements xr.Swapchain.
func (sc *Swapchain) Acquire() (int, error) {
	rec, err := sc.session.swapchains.lookup(sc)
	if err != nil {
		return 0, err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if rec.acquired >= 0 {
		return 0, xr.ErrSwapchainImageInFlight
	}
	rec.acquired = rec.next
	rec.next = (rec.next + 1) % len(rec.textures)
	return rec.acquired, nil
}

// Wait implements xr.Swapchain. The ring never over-commits (Acquire
// refuses a second image), so the acquired image is always ready.
func (sc *Swapchain) Wait(timeout time.Duration) error {
	rec, err := sc.session.swapchains.lookup(sc)
	if err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if rec.acquired < 0 {
		return xr.ErrFrameOutOfOrder
	}
	return nil
}

// Release implements xr.Swapchain.
func (sc *Swapchain) Release() error {
	rec, err := sc.session.swapchains.lookup(sc)
	if err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if rec.acquired < 0 {
		return xr.ErrFrameOutOfOrder
	}
	rec.lastReleased = rec.acquired
	rec.acquired = -1
	return nil
}

// Destroy implements xr.Swapchain. Idempotent.
func (sc *Swapchain) Destroy() error {
	return sc.session.swapchains.destroy(sc, sc.session.instance.runtime.cfg.Graphics)
}
