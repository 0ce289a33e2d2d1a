package model_test

import (
	"testing"

	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/devblok/korxr/model"
)

func TestQuadVerticesSpanUnitQuad(t *testing.T) {
	verts := model.QuadVertices()
	assert.Len(t, verts, 4)
	for _, v := range verts {
		assert.InDelta(t, 0.5, abs(v.Pos.X()), 1e-6)
		assert.InDelta(t, 0.5, abs(v.Pos.Y()), 1e-6)
	}
}

func TestQuadIndicesFormTwoTriangles(t *testing.T) {
	idx := model.QuadIndices()
	assert.Len(t, idx, 6)
	for _, i := range idx {
		assert.Less(t, int(i), 4)
	}
}

func TestUniformMVPOrder(t *testing.T) {
	u := model.Uniform{
		Model:      glm.Translate3D(1, 0, 0),
		View:       glm.Ident4(),
		Projection: glm.Ident4(),
	}
	p := u.MVP().Mul4x1(glm.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 1.0, p.X(), 1e-6)
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
