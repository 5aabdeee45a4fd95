package transform_test

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/plus3/kiln/transform"
	"github.com/stretchr/testify/assert"
)

func TestInterpolate(t *testing.T) {
	a := transform.FromTranslation(mgl32.Vec3{0, 0, 0})
	b := transform.Transform{
		Translation: mgl32.Vec3{10, -4, 2},
		Rotation:    mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 1, 0}),
		Scale:       mgl32.Vec3{3, 3, 3},
	}

	tests := []struct {
		name   string
		weight float32
		want   transform.Transform
	}{
		{"zero weight keeps a", 0, a},
		{"negative weight clamps", -1, a},
		{"full weight takes b", 1, b},
		{"over weight clamps", 2, b},
		{"halfway", 0.5, transform.Transform{
			Translation: mgl32.Vec3{5, -2, 1},
			Rotation:    mgl32.QuatRotate(math.Pi/4, mgl32.Vec3{0, 1, 0}),
			Scale:       mgl32.Vec3{2, 2, 2},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := transform.Interpolate(a, b, tt.weight)
			assert.True(t, got.ApproxEqual(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestInterpolateTakesShortestArc(t *testing.T) {
	a := transform.FromRotation(mgl32.QuatIdent())
	b := transform.FromRotation(mgl32.QuatIdent().Scale(-1))

	got := transform.Interpolate(a, b, 0.5)
	assert.True(t, got.Rotation.OrientationEqualThreshold(mgl32.QuatIdent(), 1e-4))
}

func TestMatrixMatchesTransformPoint(t *testing.T) {
	tr := transform.Transform{
		Translation: mgl32.Vec3{1, 2, 3},
		Rotation:    mgl32.QuatRotate(0.7, mgl32.Vec3{1, 0, 0}),
		Scale:       mgl32.Vec3{2, 1, 0.5},
	}
	p := mgl32.Vec3{4, -1, 2}

	viaMatrix := tr.Matrix().Mul4x1(p.Vec4(1)).Vec3()
	assert.True(t, viaMatrix.ApproxEqualThreshold(tr.TransformPoint(p), 1e-4))
}

func TestMulComposes(t *testing.T) {
	parent := transform.Transform{
		Translation: mgl32.Vec3{0, 5, 0},
		Rotation:    mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1}),
		Scale:       mgl32.Vec3{2, 2, 2},
	}
	child := transform.FromTranslation(mgl32.Vec3{1, 0, 0})
	p := mgl32.Vec3{0.5, 0.25, 0}

	composed := parent.Mul(child).TransformPoint(p)
	nested := parent.TransformPoint(child.TransformPoint(p))
	assert.True(t, composed.ApproxEqualThreshold(nested, 1e-4))
	assert.True(t, transform.Identity().Mul(child).ApproxEqual(child))
}
