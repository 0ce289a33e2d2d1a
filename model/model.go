// Package model holds the geometry primitives shared by every
// compositing pass: the vertex layout, the canonical unit quad and the
// model-view-projection uniform block.
package model

import (
	glm "github.com/go-gl/mathgl/mgl32"
)

// Vertex is a mesh vertex.
type Vertex struct {
	Pos glm.Vec3
}

// Uniform defines a model-view-projection object.
type Uniform struct {
	Model      glm.Mat4
	View       glm.Mat4
	Projection glm.Mat4
}

// MVP collapses the uniform block into a single matrix, multiplied in
// projection * view * model order.
func (u Uniform) MVP() glm.Mat4 {
	return u.Projection.Mul4(u.View).Mul4(u.Model)
}

// QuadVertices returns the unit quad centered on the origin. Every
// layer and the background draw this same geometry under their own
// model matrix.
func QuadVertices() []Vertex {
	return []Vertex{
		{Pos: glm.Vec3{-0.5, -0.5, 0}},
		{Pos: glm.Vec3{0.5, -0.5, 0}},
		{Pos: glm.Vec3{0.5, 0.5, 0}},
		{Pos: glm.Vec3{-0.5, 0.5, 0}},
	}
}

// QuadIndices returns the two-triangle index list for QuadVertices.
func QuadIndices() []uint32 {
	return []uint32{0, 1, 2, 2, 3, 0}
}
