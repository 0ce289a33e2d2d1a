package core_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/devblok/korxr/core"
	"github.com/devblok/korxr/xr"
)

func TestModelMatrix(t *testing.T) {
	tests := []struct {
		name       string
		x, y, z, s float32
	}{
		{"identity", 0, 0, 0, 1},
		{"translated", -0.5, 0.5, -1.5, 1},
		{"scaled", 0, 0, 0, 0.25},
		{"both", 0.5, 0.25, -1.5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := mgl32.Translate3D(tt.x, tt.y, tt.z).Mul4(mgl32.Scale3D(tt.s, tt.s, 1))
			got := core.ModelMatrix(tt.x, tt.y, tt.z, tt.s)
			assert.Equal(t, want, got)
		})
	}
}

func TestModelMatrixTransformsCorners(t *testing.T) {
	m := core.ModelMatrix(1, 2, 0, 2)
	corner := m.Mul4x1(mgl32.Vec4{0.5, 0.5, 0, 1})
	assert.InDelta(t, 2.0, corner.X(), 1e-6)
	assert.InDelta(t, 3.0, corner.Y(), 1e-6)
}

func TestProjectionFromFovSymmetric(t *testing.T) {
	fov := xr.Fovf{
		AngleLeft:  -0.785398,
		AngleRight: 0.785398,
		AngleUp:    0.785398,
		AngleDown:  -0.785398,
	}
	m := core.ProjectionFromFov(fov, 0.1, 100)

	// symmetric frustum has no off-axis shear
	assert.InDelta(t, 1.0, m[0], 1e-5)
	assert.InDelta(t, 1.0, m[5], 1e-5)
	assert.InDelta(t, 0.0, m[8], 1e-5)
	assert.InDelta(t, 0.0, m[9], 1e-5)
	assert.InDelta(t, -1.0, m[11], 1e-6)

	// a point on the near plane lands on z = -1 after divide
	p := m.Mul4x1(mgl32.Vec4{0, 0, -0.1, 1})
	assert.InDelta(t, -1.0, p.Z()/p.W(), 1e-4)
}

func TestViewFromPoseIdentity(t *testing.T) {
	v := core.ViewFromPose(xr.IdentityPose())
	assert.Equal(t, mgl32.Ident4(), v)
}

func TestViewFromPoseInvertsTranslation(t *testing.T) {
	pose := xr.Posef{
		Orientation: xr.IdentityOrientation(),
		Position:    xr.Vector3f{X: 1, Y: 2, Z: 3},
	}
	v := core.ViewFromPose(pose)

	// the eye position maps to the origin
	p := v.Mul4x1(mgl32.Vec4{1, 2, 3, 1})
	assert.InDelta(t, 0.0, p.X(), 1e-6)
	assert.InDelta(t, 0.0, p.Y(), 1e-6)
	assert.InDelta(t, 0.0, p.Z(), 1e-6)
}

func BenchmarkModelMatrix(b *testing.B) {
	for idx := 0; idx < b.N; idx++ {
		core.ModelMatrix(0.5, -0.25, -1.5, 0.75)
	}
}

func BenchmarkProjectionFromFov(b *testing.B) {
	fov := xr.Fovf{AngleLeft: -0.7, AngleRight: 0.7, AngleUp: 0.6, AngleDown: -0.6}
	for idx := 0; idx < b.N; idx++ {
		core.ProjectionFromFov(fov, 0.1, 100)
	}
}
