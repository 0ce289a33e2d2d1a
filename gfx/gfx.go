// Package gfx defines the rendering features the compositor core needs
// from a graphics backend: program compilation, the shared quad
// geometry, textures, framebuffers and the draw calls that tie them
// together. Backends implement Context; the software backend lives in
// gfx/soft.
package gfx

import (
	"errors"
	"image"

	"github.com/go-gl/mathgl/mgl32"
)

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// Errors shared by backend implementations.
var (
	// ErrNilSurface is returned when a context is created without a
	// usable drawable surface.
	ErrNilSurface = errors.New("gfx: nil or unusable surface")

	// ErrUnknownResource means a texture, framebuffer, program or mesh
	// id does not name a live resource on this context.
	ErrUnknownResource = errors.New("gfx: unknown resource id")

	// ErrCompile is returned when program compilation fails.
	ErrCompile = errors.New("gfx: program compilation failed")
)

// Opaque ids for context-owned resources.
type (
	Texture     uint32
	Framebuffer uint32
	Program     uint32
	Mesh        uint32
)

// NoFramebuffer unbinds the current render target.
const NoFramebuffer Framebuffer = 0

// Native handles forming the graphics binding handed to the runtime.
type (
	DisplayHandle uintptr
	ConfigHandle  uintptr
	ContextHandle uintptr
)

// Binding is the display/config/context triple a runtime binds against.
type Binding struct {
	Display DisplayHandle
	Config  ConfigHandle
	Context ContextHandle
}

// Surface is an already-valid drawable handed over by the host. The
// core never creates or owns the underlying window surface.
type Surface struct {
	Width  int
	Height int
	Native uintptr
}

// Context owns a rendering context created from a host surface, the
// compiled shader programs and the static quad geometry shared by every
// layer. Programs and the quad are read-only after creation.
type Context interface {
	Releasable

	// Binding returns the triple used for the runtime graphics binding.
	Binding() Binding

	// CompileProgram builds a program from vertex and fragment source.
	CompileProgram(vertex, fragment string) (Program, error)

	// Quad returns the shared unit quad mesh, creating it on first use.
	Quad() Mesh

	// NewTexture allocates a w x h RGBA texture.
	NewTexture(w, h int) (Texture, error)

	// DeleteTexture frees a texture. Unknown ids are ignored.
	DeleteTexture(Texture)

	// NewFramebuffer allocates a framebuffer with t as its color
	// attachment.
	NewFramebuffer(t Texture) (Framebuffer, error)

	// DeleteFramebuffer frees a framebuffer. Unknown ids are ignored.
	DeleteFramebuffer(Framebuffer)

	// Bind makes f the current render target. NoFramebuffer unbinds.
	Bind(f Framebuffer) error

	// Viewport sets the pixel viewport for subsequent draws.
	Viewport(w, h int)

	// Clear fills the bound framebuffer's whole attachment with c.
	Clear(c mgl32.Vec4)

	// Draw renders mesh m with program p, the given mvp matrix and
	// color/alpha uniforms, into the bound framebuffer.
	Draw(p Program, m Mesh, mvp mgl32.Mat4, color mgl32.Vec3, alpha float32) error

	// Pixels returns the backing pixmap of a texture. Callers must
	// treat the result as read-only.
	Pixels(t Texture) (*image.RGBA, error)

	// FramebufferCount reports live framebuffers, for leak checks.
	FramebufferCount() int
}
