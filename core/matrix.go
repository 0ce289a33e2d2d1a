package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/korxr/xr"
)

// ModelMatrix builds the quad transform used both when rendering
// into a layer image and when sizing its descriptor: a translation
// to (x, y, z) followed by a uniform scale in the quad plane.
func ModelMatrix(x, y, z, scale float32) mgl32.Mat4 {
	return mgl32.Translate3D(x, y, z).Mul4(mgl32.Scale3D(scale, scale, 1))
}

// ProjectionFromFov builds an asymmetric off-axis projection from
// per-edge field of view angles, in radians.
func ProjectionFromFov(fov xr.Fovf, near, far float32) mgl32.Mat4 {
	tanLeft := math32.Tan(fov.AngleLeft)
	tanRight := math32.Tan(fov.AngleRight)
	tanDown := math32.Tan(fov.AngleDown)
	tanUp := math32.Tan(fov.AngleUp)

	width := tanRight - tanLeft
	height := tanUp - tanDown

	var m mgl32.Mat4
	m[0] = 2 / width
	m[5] = 2 / height
	m[8] = (tanRight + tanLeft) / width
	m[9] = (tanUp + tanDown) / height
	m[10] = -(far + near) / (far - near)
	m[11] = -1
	m[14] = -(2 * far * near) / (far - near)
	return m
}

// ViewFromPose inverts a rigid pose into a view matrix.
func ViewFromPose(p xr.Posef) mgl32.Mat4 {
	q := mgl32.Quat{
		W: p.Orientation.W,
		V: mgl32.Vec3{p.Orientation.X, p.Orientation.Y, p.Orientation.Z},
	}
	rot := q.Normalize().Mat4().Transpose()

	t := rot.Mul4x1(mgl32.Vec4{-p.Position.X, -p.Position.Y, -p.Position.Z, 0})
	rot[12] = t[0]
	rot[13] = t[1]
	rot[14] = t[2]
	return rot
}
