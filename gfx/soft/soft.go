// Package soft implements the gfx rendering contract on plain RGBA
// pixmaps. It rasterizes the shared quad under translate-scale model
// matrices with source-over alpha blending, which is exactly what the
// overlay compositor needs; it is not a general rasterizer.
package soft

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/korxr/gfx"
	"github.com/devblok/korxr/model"
)

var contextCounter uint32

// NewContext creates a software rendering context for an already-valid
// host surface. The surface is borrowed, never owned.
func NewContext(surface *gfx.Surface) (*Context, error) {
	if surface == nil || surface.Width <= 0 || surface.Height <= 0 {
		return nil, gfx.ErrNilSurface
	}
	id := atomic.AddUint32(&contextCounter, 1)
	return &Context{
		surface: *surface,
		binding: gfx.Binding{
			Display: gfx.DisplayHandle(surface.Native),
			Config:  gfx.ConfigHandle(id),
			Context: gfx.ContextHandle(id),
		},
		textures:     make(map[gfx.Texture]*image.RGBA),
		framebuffers: make(map[gfx.Framebuffer]gfx.Texture),
		programs:     make(map[gfx.Program]program),
		meshes:       make(map[gfx.Mesh]mesh),
	}, nil
}

type mesh struct {
	verts   []model.Vertex
	indices []uint32
}

type program struct {
	vertex   string
	fragment string

	// blended programs write with source-over alpha, opaque ones
	// overwrite the destination.
	blended bool
}

// Context is the software implementation of gfx.Context.
type Context struct {
	surface gfx.Surface
	binding gfx.Binding

	mu           sync.RWMutex
	textures     map[gfx.Texture]*image.RGBA
	framebuffers map[gfx.Framebuffer]gfx.Texture
	programs     map[gfx.Program]program
	meshes       map[gfx.Mesh]mesh

	nextTexture     uint32
	nextFramebuffer uint32
	nextProgram     uint32
	nextMesh        uint32

	quad      gfx.Mesh
	bound     gfx.Framebuffer
	viewportW int
	viewportH int

	destroyed bool
}

// Binding implements gfx.Context.
func (c *Context) Binding() gfx.Binding {
	return c.binding
}

// CompileProgram implements gfx.Context. Compilation validates that
// both stages are present; a fragment stage declaring an alpha uniform
// yields a blending program.
func (c *Context) CompileProgram(vertex, fragment string) (gfx.Program, error) {
	if strings.TrimSpace(vertex) == "" || strings.TrimSpace(fragment) == "" {
		return 0, gfx.ErrCompile
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextProgram++
	id := gfx.Program(c.nextProgram)
	c.programs[id] = program{
		vertex:   vertex,
		fragment: fragment,
		blended:  strings.Contains(fragment, "uniform float alpha"),
	}
	return id, nil
}

// Quad implements gfx.Context.
func (c *Context) Quad() gfx.Mesh {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quad != 0 {
		return c.quad
	}
	c.nextMesh++
	c.quad = gfx.Mesh(c.nextMesh)
	c.meshes[c.quad] = mesh{
		verts:   model.QuadVertices(),
		indices: model.QuadIndices(),
	}
	return c.quad
}

// NewTexture implements gfx.Context.
func (c *Context) NewTexture(w, h int) (gfx.Texture, error) {
	if w <= 0 || h <= 0 {
		return 0, errors.New("soft.NewTexture(): non-positive extent")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return 0, errors.New("soft.NewTexture(): context destroyed")
	}
	c.nextTexture++
	id := gfx.Texture(c.nextTexture)
	c.textures[id] = image.NewRGBA(image.Rect(0, 0, w, h))
	return id, nil
}

// DeleteTexture implements gfx.Context.
func (c *Context) DeleteTexture(t gfx.Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.textures, t)
}

// NewFramebuffer implements gfx.Context.
func (c *Context) NewFramebuffer(t gfx.Texture) (gfx.Framebuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.textures[t]; !ok {
		return 0, gfx.ErrUnknownResource
	}
	c.nextFramebuffer++
	id := gfx.Framebuffer(c.nextFramebuffer)
	c.framebuffers[id] = t
	return id, nil
}

// DeleteFramebuffer implements gfx.Context.
func (c *Context) DeleteFramebuffer(f gfx.Framebuffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.framebuffers, f)
	if c.bound == f {
		c.bound = gfx.NoFramebuffer
	}
}

// Bind implements gfx.Context.
func (c *Context) Bind(f gfx.Framebuffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f != gfx.NoFramebuffer {
		if _, ok := c.framebuffers[f]; !ok {
			return gfx.ErrUnknownResource
		}
	}
	c.bound = f
	return nil
}

// Viewport implements gfx.Context.
func (c *Context) Viewport(w, h int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewportW, c.viewportH = w, h
}

// Clear implements gfx.Context. Like the hardware call it fills the
// whole attachment, not just the viewport.
func (c *Context) Clear(col mgl32.Vec4) {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := c.boundTexture()
	if target == nil {
		return
	}
	fill := rgba(col)
	b := target.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			target.SetRGBA(x, y, fill)
		}
	}
}

// Draw implements gfx.Context. The indexed vertices pass through the
// mvp matrix, perspective divide and the viewport transform; the
// resulting quad is filled with the color/alpha uniforms.
func (c *Context) Draw(p gfx.Program, m gfx.Mesh, mvp mgl32.Mat4, col mgl32.Vec3, alpha float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prog, ok := c.programs[p]
	if !ok {
		return gfx.ErrUnknownResource
	}
	msh, ok := c.meshes[m]
	if !ok {
		return gfx.ErrUnknownResource
	}
	target := c.boundTexture()
	if target == nil {
		return errors.New("soft.Draw(): no framebuffer bound")
	}

	vw, vh := c.viewportW, c.viewportH
	if vw == 0 || vh == 0 {
		vw, vh = target.Bounds().Dx(), target.Bounds().Dy()
	}

	minX, minY := float32(1), float32(1)
	maxX, maxY := float32(-1), float32(-1)
	for _, ix := range msh.indices {
		if int(ix) >= len(msh.verts) {
			return gfx.ErrUnknownResource
		}
		v := msh.verts[ix]
		out := mvp.Mul4x1(mgl32.Vec4{v.Pos.X(), v.Pos.Y(), v.Pos.Z(), 1})
		w := out.W()
		if w == 0 {
			continue
		}
		x, y := out.X()/w, out.Y()/w
		minX, maxX = min32(minX, x), max32(maxX, x)
		minY, maxY = min32(minY, y), max32(maxY, y)
	}
	if minX > maxX || minY > maxY {
		return nil
	}

	// NDC to pixels, y flipped.
	px0 := int((minX*0.5 + 0.5) * float32(vw))
	px1 := int((maxX*0.5 + 0.5) * float32(vw))
	py0 := int((1 - (maxY*0.5 + 0.5)) * float32(vh))
	py1 := int((1 - (minY*0.5 + 0.5)) * float32(vh))

	b := target.Bounds()
	px0, py0 = clamp(px0, b.Min.X, b.Max.X), clamp(py0, b.Min.Y, b.Max.Y)
	px1, py1 = clamp(px1, b.Min.X, b.Max.X), clamp(py1, b.Min.Y, b.Max.Y)

	if !prog.blended {
		alpha = 1
	}
	src := rgba(mgl32.Vec4{col.X(), col.Y(), col.Z(), alpha})
	for y := py0; y < py1; y++ {
		for x := px0; x < px1; x++ {
			if prog.blended && alpha < 1 {
				target.SetRGBA(x, y, blend(src, target.RGBAAt(x, y), alpha))
			} else {
				target.SetRGBA(x, y, src)
			}
		}
	}
	return nil
}

// Pixels implements gfx.Context. The returned pixmap is live; callers
// must not write through it.
func (c *Context) Pixels(t gfx.Texture) (*image.RGBA, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.textures[t]
	if !ok {
		return nil, gfx.ErrUnknownResource
	}
	return img, nil
}

// FramebufferCount implements gfx.Context.
func (c *Context) FramebufferCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.framebuffers)
}

// Release implements gfx.Releasable.
func (c *Context) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.textures = make(map[gfx.Texture]*image.RGBA)
	c.framebuffers = make(map[gfx.Framebuffer]gfx.Texture)
	c.programs = make(map[gfx.Program]program)
	c.meshes = make(map[gfx.Mesh]mesh)
	c.quad = 0
	c.bound = gfx.NoFramebuffer
	c.destroyed = true
}

// boundTexture resolves the current render target. Callers hold mu.
func (c *Context) boundTexture() *image.RGBA {
	if c.bound == gfx.NoFramebuffer {
		return nil
	}
	tex, ok := c.framebuffers[c.bound]
	if !ok {
		return nil
	}
	return c.textures[tex]
}

func rgba(c mgl32.Vec4) color.RGBA {
	return color.RGBA{
		R: channel(c.X()),
		G: channel(c.Y()),
		B: channel(c.Z()),
		A: channel(c.W()),
	}
}

func channel(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func blend(src, dst color.RGBA, alpha float32) color.RGBA {
	mix := func(s, d uint8) uint8 {
		return uint8(float32(s)*alpha + float32(d)*(1-alpha) + 0.5)
	}
	return color.RGBA{
		R: mix(src.R, dst.R),
		G: mix(src.G, dst.G),
		B: mix(src.B, dst.B),
		A: mix(255, dst.A),
	}
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
