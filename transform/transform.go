// Package transform holds rigid bone transforms, the pose-sized transform
// arrays in both array-of-structs and structure-of-arrays layouts, and the
// bulk operations the blend tasks are built from.
package transform

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a rigid bone transform: rotation, translation and per-axis scale.
type Transform struct {
	Rotation    mgl32.Quat
	Translation mgl32.Vec3
	Scale3D     mgl32.Vec3
}

// Identity is neutral under composition.
var Identity = Transform{
	Rotation: mgl32.QuatIdent(),
	Scale3D:  mgl32.Vec3{1, 1, 1},
}

// AdditiveIdentity is neutral under additive accumulation: identity rotation,
// zero translation and zero scale delta.
var AdditiveIdentity = Transform{
	Rotation: mgl32.QuatIdent(),
}

func New(rotation mgl32.Quat, translation, scale mgl32.Vec3) Transform {
	return Transform{Rotation: rotation, Translation: translation, Scale3D: scale}
}

func FromTranslation(v mgl32.Vec3) Transform {
	t := Identity
	t.Translation = v
	return t
}

// Mul composes t with parent, returning t expressed in parent's space:
// t is applied first, parent second.
func (t Transform) Mul(parent Transform) Transform {
	return Transform{
		Rotation:    parent.Rotation.Mul(t.Rotation),
		Translation: parent.Rotation.Rotate(mulElem(parent.Scale3D, t.Translation)).Add(parent.Translation),
		Scale3D:     mulElem(t.Scale3D, parent.Scale3D),
	}
}

// GetRelativeTransform is the inverse of Mul: it returns the transform r for
// which r.Mul(parent) == t.
func (t Transform) GetRelativeTransform(parent Transform) Transform {
	inv := parent.Rotation.Inverse()
	return Transform{
		Rotation:    inv.Mul(t.Rotation),
		Translation: divElemSafe(inv.Rotate(t.Translation.Sub(parent.Translation)), parent.Scale3D),
		Scale3D:     divElemSafe(t.Scale3D, parent.Scale3D),
	}
}

func (t Transform) NormalizeRotation() Transform {
	t.Rotation = t.Rotation.Normalize()
	return t
}

// Equals compares rotations as orientations (q and -q are equal) and the
// vector parts component-wise.
func (t Transform) Equals(o Transform, tolerance float32) bool {
	r1 := t.Rotation.Normalize()
	r2 := o.Rotation.Normalize()
	if r1.Dot(r2) < 0 {
		r2 = r2.Scale(-1)
	}
	return NearlyEqualQuat(r1, r2, tolerance) &&
		NearlyEqualVec(t.Translation, o.Translation, tolerance) &&
		NearlyEqualVec(t.Scale3D, o.Scale3D, tolerance)
}

// NearlyEqualVec compares component-wise with an absolute tolerance.
func NearlyEqualVec(a, b mgl32.Vec3, tolerance float32) bool {
	for i := range a {
		if d := a[i] - b[i]; d > tolerance || d < -tolerance {
			return false
		}
	}
	return true
}

// NearlyEqualQuat compares component-wise, so q and -q are not equal here.
func NearlyEqualQuat(a, b mgl32.Quat, tolerance float32) bool {
	d := a.W - b.W
	return d <= tolerance && d >= -tolerance && NearlyEqualVec(a.V, b.V, tolerance)
}

func (t Transform) String() string {
	return fmt.Sprintf("rot(%.4f %.4f %.4f %.4f) pos(%.4f %.4f %.4f) scale(%.4f %.4f %.4f)",
		t.Rotation.X(), t.Rotation.Y(), t.Rotation.Z(), t.Rotation.W,
		t.Translation[0], t.Translation[1], t.Translation[2],
		t.Scale3D[0], t.Scale3D[1], t.Scale3D[2])
}

func mulElem(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func divElemSafe(a, b mgl32.Vec3) mgl32.Vec3 {
	var r mgl32.Vec3
	for i := range r {
		if b[i] != 0 {
			r[i] = a[i] / b[i]
		}
	}
	return r
}

func scaleQuat(q mgl32.Quat, s float32) mgl32.Quat {
	return mgl32.Quat{W: q.W * s, V: q.V.Mul(s)}
}

// addQuatShortest adds q to acc after flipping q onto acc's hemisphere.
func addQuatShortest(acc, q mgl32.Quat) mgl32.Quat {
	if acc.Dot(q) < 0 {
		q = scaleQuat(q, -1)
	}
	return acc.Add(q)
}

// blendQuatFromIdentity lerps from identity to q by weight along the shorter
// arc and renormalizes.
func blendQuatFromIdentity(q mgl32.Quat, weight float32) mgl32.Quat {
	bias := float32(1)
	if q.W < 0 {
		bias = -1
	}
	r := mgl32.Quat{
		W: q.W*weight + bias*(1-weight),
		V: q.V.Mul(weight),
	}
	return r.Normalize()
}
