// Package core drives an overlay quad compositor against an xr
// runtime: it owns the session lifecycle, one swapchain per layer,
// the per-frame wait/begin/render/end cycle and the animation that
// reveals and moves overlays. The Control type is the boundary hosts
// and bindings talk to; everything else hangs off Session.
package core
