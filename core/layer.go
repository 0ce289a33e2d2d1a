package core

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/korxr/gfx"
	"github.com/devblok/korxr/xr"
)

// LayerParams is the mutable per-overlay state written by the
// control surface and read by the compositor. It is swapped whole
// so a frame never observes a half-applied update.
type LayerParams struct {
	Position mgl32.Vec3
	Scale    float32
	Color    mgl32.Vec3
	Alpha    float32
}

// Layer is one composition slot: its immutable spec, the swapchain
// backing it once the session is running, and its live parameters.
type Layer struct {
	spec   LayerSpec
	active atomic.Bool
	params atomic.Value

	swapchain    xr.Swapchain
	framebuffers []gfx.Framebuffer
}

func newLayer(spec LayerSpec) *Layer {
	l := &Layer{spec: spec}
	l.params.Store(LayerParams{
		Position: spec.Position,
		Scale:    spec.Scale,
		Color:    spec.Color,
		Alpha:    spec.Alpha,
	})
	return l
}

// Spec returns the slot defaults the layer was configured with.
func (l *Layer) Spec() LayerSpec {
	return l.spec
}

// Active reports whether the control surface has activated the slot.
func (l *Layer) Active() bool {
	return l.active.Load()
}

// Params returns the current parameter snapshot.
func (l *Layer) Params() LayerParams {
	return l.params.Load().(LayerParams)
}

// SetPosition replaces the layer position, keeping the other fields.
func (l *Layer) SetPosition(x, y, z float32) {
	p := l.Params()
	p.Position = mgl32.Vec3{x, y, z}
	l.params.Store(p)
}

// SetScale replaces the layer scale, keeping the other fields.
func (l *Layer) SetScale(scale float32) {
	p := l.Params()
	p.Scale = scale
	l.params.Store(p)
}

// SetColor replaces the layer color, keeping the other fields.
func (l *Layer) SetColor(r, g, b float32) {
	p := l.Params()
	p.Color = mgl32.Vec3{r, g, b}
	l.params.Store(p)
}

// SetAlpha replaces the layer opacity, keeping the other fields.
func (l *Layer) SetAlpha(alpha float32) {
	p := l.Params()
	p.Alpha = alpha
	l.params.Store(p)
}

func (l *Layer) resetParams() {
	l.params.Store(LayerParams{
		Position: l.spec.Position,
		Scale:    l.spec.Scale,
		Color:    l.spec.Color,
		Alpha:    l.spec.Alpha,
	})
}
