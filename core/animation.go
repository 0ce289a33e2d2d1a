package core

import (
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// LayerPlan is one overlay's animation output for a single frame.
type LayerPlan struct {
	// Revealed gates the overlay out of the frame entirely when false
	Revealed bool

	// Scale multiplies the overlay's own scale, 0..1 during ease-in
	Scale float32

	// Position, when set, replaces the overlay's stored position
	Position *mgl32.Vec3

	// Color, when set, replaces the overlay's stored color
	Color *mgl32.Vec3
}

// Driver produces per-overlay animation plans from wall time.
// Implementations must be safe for use from the compositor
// goroutine with Reset and SetPointer arriving from input handlers.
type Driver interface {
	// Plan returns one plan per overlay slot for the given instant
	Plan(now time.Time, overlays int) []LayerPlan

	// Reset rewinds the animation to its initial phase
	Reset()

	// SetPointer feeds the last input position, in world units
	SetPointer(x, y float32)
}

// Stage timing fallbacks for configurations that leave the windows
// unset. A zero ease-in stays zero: the overlay pops in at full scale.
const (
	DefaultStageDwell = 1200 * time.Millisecond
	DefaultEaseIn     = 500 * time.Millisecond
)

// NewStagedReveal creates the stock reveal driver: overlays appear
// one at a time, each stage holding for the dwell period before the
// next overlay eases in from zero scale.
func NewStagedReveal(cfg AnimationConfiguration) *StagedReveal {
	dwell := cfg.StageDwell
	if dwell <= 0 {
		dwell = DefaultStageDwell
	}
	return &StagedReveal{
		dwell:  dwell,
		easeIn: cfg.EaseIn,
		epoch:  time.Now(),
	}
}

// StagedReveal reveals overlays in stages as a pure function of the
// time elapsed since construction or the last Reset.
type StagedReveal struct {
	mu     sync.Mutex
	dwell  time.Duration
	easeIn time.Duration
	epoch  time.Time
}

// Plan implements Driver.
func (d *StagedReveal) Plan(now time.Time, overlays int) []LayerPlan {
	d.mu.Lock()
	elapsed := now.Sub(d.epoch)
	dwell, easeIn := d.dwell, d.easeIn
	d.mu.Unlock()

	if elapsed < 0 {
		elapsed = 0
	}

	// Stage 0 shows the backdrop only. Overlay k becomes
	// visible when stage k+1 is entered, dwell seconds apart.
	stage := int(elapsed / dwell)
	if stage > overlays {
		stage = overlays
	}
	inStage := elapsed - time.Duration(stage)*dwell

	plans := make([]LayerPlan, overlays)
	for i := range plans {
		switch {
		case stage < i+1:
			plans[i] = LayerPlan{}
		case stage == i+1:
			plans[i] = LayerPlan{Revealed: true, Scale: easeRamp(inStage, easeIn)}
		default:
			plans[i] = LayerPlan{Revealed: true, Scale: 1}
		}
	}
	return plans
}

// Reset implements Driver, restarting from stage zero.
func (d *StagedReveal) Reset() {
	d.mu.Lock()
	d.epoch = time.Now()
	d.mu.Unlock()
}

// SetPointer implements Driver. The reveal path ignores input position.
func (d *StagedReveal) SetPointer(x, y float32) {}

func easeRamp(t, window time.Duration) float32 {
	if window <= 0 {
		return 1
	}
	r := float32(t.Seconds() / window.Seconds())
	if r > 1 {
		return 1
	}
	if r < 0 {
		return 0
	}
	return r
}

// NewContinuous creates a driver that keeps every overlay visible
// and moves them along slow closed paths around the pointer.
func NewContinuous() *Continuous {
	return &Continuous{epoch: time.Now()}
}

// Continuous animates revealed overlays with orbiting positions,
// a breathing scale and a gentle color shift.
type Continuous struct {
	mu    sync.Mutex
	epoch time.Time
	px    float32
	py    float32
}

// Plan implements Driver.
func (c *Continuous) Plan(now time.Time, overlays int) []LayerPlan {
	c.mu.Lock()
	t := float32(now.Sub(c.epoch).Seconds())
	px, py := c.px, c.py
	c.mu.Unlock()

	plans := make([]LayerPlan, overlays)
	for i := range plans {
		fi := float32(i)
		phase := t*(0.5+0.2*fi) + fi*2*math32.Pi/3

		var pos mgl32.Vec3
		if i%2 == 0 {
			pos = mgl32.Vec3{
				px + 0.3*math32.Cos(phase),
				py + 0.3*math32.Sin(phase),
				-1.5,
			}
		} else {
			// figure-eight path for the odd slots
			pos = mgl32.Vec3{
				px + 0.35*math32.Sin(phase),
				py + 0.25*math32.Sin(phase)*math32.Cos(phase),
				-1.5,
			}
		}

		shift := 0.5 + 0.5*math32.Sin(t+fi)
		color := mgl32.Vec3{shift, 1 - shift, 0.5 + 0.5*math32.Cos(t*0.7+fi)}

		plans[i] = LayerPlan{
			Revealed: true,
			Scale:    1 + 0.15*math32.Sin(2*t+fi),
			Position: &pos,
			Color:    &color,
		}
	}
	return plans
}

// Reset implements Driver, rewinding the paths to their initial phase.
func (c *Continuous) Reset() {
	c.mu.Lock()
	c.epoch = time.Now()
	c.mu.Unlock()
}

// SetPointer implements Driver, recentering the paths.
func (c *Continuous) SetPointer(x, y float32) {
	c.mu.Lock()
	c.px, c.py = x, y
	c.mu.Unlock()
}

// Static is a Driver that shows every overlay at full scale with
// its stored parameters. Useful for tests and screenshots.
type Static struct{}

// Plan implements Driver.
func (Static) Plan(now time.Time, overlays int) []LayerPlan {
	plans := make([]LayerPlan, overlays)
	for i := range plans {
		plans[i] = LayerPlan{Revealed: true, Scale: 1}
	}
	return plans
}

// Reset implements Driver.
func (Static) Reset() {}

// SetPointer implements Driver.
func (Static) SetPointer(x, y float32) {}
