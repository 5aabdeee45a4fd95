// Package transform provides the spatial component written by the animation
// evaluator and read by renderers.
package transform

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/plus3/kiln/ecs"
)

// Transform is a translation, rotation and scale, applied in scale-rotate-translate order.
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

// Identity returns the transform that leaves every point in place
func Identity() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// FromTranslation returns an identity transform moved to v
func FromTranslation(v mgl32.Vec3) Transform {
	t := Identity()
	t.Translation = v
	return t
}

// FromRotation returns an identity transform rotated by q
func FromRotation(q mgl32.Quat) Transform {
	t := Identity()
	t.Rotation = q
	return t
}

// Matrix returns the 4x4 matrix equivalent of the transform.
func (t Transform) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(t.Translation.X(), t.Translation.Y(), t.Translation.Z()).
		Mul4(t.Rotation.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z()))
}

// Mul composes t with child, so that the result applies child first.
func (t Transform) Mul(child Transform) Transform {
	return Transform{
		Translation: t.Translation.Add(t.Rotation.Rotate(mulVec(t.Scale, child.Translation))),
		Rotation:    t.Rotation.Mul(child.Rotation).Normalize(),
		Scale:       mulVec(t.Scale, child.Scale),
	}
}

// TransformPoint applies t to p
func (t Transform) TransformPoint(p mgl32.Vec3) mgl32.Vec3 {
	return t.Translation.Add(t.Rotation.Rotate(mulVec(t.Scale, p)))
}

// ApproxEqual compares every part of two transforms within 1e-4. Rotations describing
// the same orientation compare equal.
func (t Transform) ApproxEqual(other Transform) bool {
	return t.ApproxEqualThreshold(other, 1e-4)
}

// ApproxEqualThreshold is ApproxEqual with a custom tolerance
func (t Transform) ApproxEqualThreshold(other Transform, epsilon float32) bool {
	return t.Translation.ApproxEqualThreshold(other.Translation, epsilon) &&
		t.Rotation.OrientationEqualThreshold(other.Rotation, epsilon) &&
		t.Scale.ApproxEqualThreshold(other.Scale, epsilon)
}

func (t Transform) String() string {
	return fmt.Sprintf("T(%.3f %.3f %.3f) R(%.3f %.3f %.3f %.3f) S(%.3f %.3f %.3f)",
		t.Translation[0], t.Translation[1], t.Translation[2],
		t.Rotation.W, t.Rotation.V[0], t.Rotation.V[1], t.Rotation.V[2],
		t.Scale[0], t.Scale[1], t.Scale[2])
}

// Interpolate blends a toward b: translation and scale are lerped, rotation is slerped
// along the shortest arc. weight is clamped to [0, 1].
func Interpolate(a, b Transform, weight float32) Transform {
	switch {
	case weight <= 0:
		return a
	case weight >= 1:
		return b
	}
	return Transform{
		Translation: Lerp(a.Translation, b.Translation, weight),
		Rotation:    mgl32.QuatSlerp(a.Rotation, b.Rotation, weight),
		Scale:       Lerp(a.Scale, b.Scale, weight),
	}
}

// Lerp linearly interpolates between two vectors
func Lerp(a, b mgl32.Vec3, u float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(u))
}

func mulVec(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// Register adds Transform to registry
func Register(registry *ecs.ComponentRegistry) {
	ecs.RegisterComponent[Transform](registry)
}
