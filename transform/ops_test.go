package transform

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/animnext/bone"
)

const eps = 1e-4

var layouts = []Layout{LayoutSoA, LayoutAoS}

func axisAngle(deg float32, axis mgl32.Vec3) mgl32.Quat {
	return mgl32.QuatRotate(mgl32.DegToRad(deg), axis.Normalize())
}

// chain returns Root(0) - Spine(1) - Head(2) - Jaw(3).
func chainParents() []uint16 {
	return []uint16{bone.PACKED_NONE, 0, 1, 2}
}

func filledView(layout Layout, ts ...Transform) View {
	v := NewArray(layout, len(ts)).View()
	for i, t := range ts {
		v.Set(i, t)
	}
	return v
}

func sampleTransforms() []Transform {
	return []Transform{
		New(axisAngle(10, mgl32.Vec3{0, 0, 1}), mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 1, 1}),
		New(axisAngle(30, mgl32.Vec3{1, 0, 0}), mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 1, 1}),
		New(axisAngle(-45, mgl32.Vec3{0, 1, 0}), mgl32.Vec3{0, 2, 0}, mgl32.Vec3{1, 1, 1}),
		New(axisAngle(90, mgl32.Vec3{1, 1, 0}), mgl32.Vec3{0.5, 0, 0}, mgl32.Vec3{1, 1, 1}),
	}
}

func TestSetIdentity(t *testing.T) {
	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			v := filledView(layout, sampleTransforms()...)

			SetIdentity(v, false, 1, 2)
			assert.Equal(t, sampleTransforms()[0], v.Get(0))
			assert.Equal(t, Identity, v.Get(1))
			assert.Equal(t, Identity, v.Get(2))
			assert.Equal(t, sampleTransforms()[3], v.Get(3))

			SetIdentity(v, true, 0, -1)
			for i := 0; i < v.Num(); i++ {
				assert.Equal(t, AdditiveIdentity, v.Get(i))
			}

			assert.Panics(t, func() { SetIdentity(v, false, 3, 2) })
		})
	}
}

func TestCopyTransformsAcrossLayouts(t *testing.T) {
	for _, dl := range layouts {
		for _, sl := range layouts {
			src := filledView(sl, sampleTransforms()...)
			dst := NewArray(dl, 4).View()
			SetIdentity(dst, false, 0, -1)

			CopyTransforms(dst, src, 2, -1)
			assert.Equal(t, Identity, dst.Get(0))
			assert.Equal(t, Identity, dst.Get(1))
			assert.Equal(t, src.Get(2), dst.Get(2))
			assert.Equal(t, src.Get(3), dst.Get(3))
		}
	}

	short := NewArray(LayoutSoA, 2).View()
	long := NewArray(LayoutSoA, 3).View()
	assert.Panics(t, func() { CopyTransforms(long, short, 0, -1) })
}

func TestBlendOverwriteWithScaleHalvesTranslation(t *testing.T) {
	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			dest := NewArray(layout, 1).View()
			SetIdentity(dest, false, 0, -1)
			source := filledView(layout, FromTranslation(mgl32.Vec3{2, 0, 0}))

			BlendOverwriteWithScale(dest, source, 0.5)
			assert.True(t, NearlyEqualVec(dest.Translation(0), mgl32.Vec3{1, 0, 0}, eps))
		})
	}
}

func TestBlendAddWithScaleShortestArc(t *testing.T) {
	q := axisAngle(20, mgl32.Vec3{0, 0, 1})
	negated := scaleQuat(q, -1)

	for _, layout := range layouts {
		dest := filledView(layout, New(q, mgl32.Vec3{}, mgl32.Vec3{}))
		source := filledView(layout, New(negated, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{1, 1, 1}))

		BlendAddWithScale(dest, source, 1)
		got := dest.Rotation(0)
		// The negated quaternion is the same orientation, so the sum doubles q.
		assert.InDelta(t, 2*q.W, got.W, eps)
		assert.True(t, NearlyEqualQuat(got.Normalize(), q, eps))
		assert.Equal(t, mgl32.Vec3{1, 0, 0}, dest.Translation(0))
	}
}

func TestBlendTwo(t *testing.T) {
	a := filledView(LayoutSoA, FromTranslation(mgl32.Vec3{0, 0, 0}))
	b := filledView(LayoutAoS, New(axisAngle(90, mgl32.Vec3{0, 0, 1}), mgl32.Vec3{4, 0, 0}, mgl32.Vec3{1, 1, 1}))

	BlendTwo(a, a, b, 0.5)
	assert.True(t, NearlyEqualVec(a.Translation(0), mgl32.Vec3{2, 0, 0}, eps))
	assert.InDelta(t, 1, a.Rotation(0).Len(), eps)
	assert.True(t, NearlyEqualQuat(a.Rotation(0), axisAngle(45, mgl32.Vec3{0, 0, 1}), eps))
}

func TestBlendWithIdentityAndAccumulate(t *testing.T) {
	additive := []Transform{
		New(axisAngle(40, mgl32.Vec3{0, 1, 0}), mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0.5, 0, 0}),
		New(axisAngle(-70, mgl32.Vec3{1, 0, 0}), mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 0, 0}),
		AdditiveIdentity,
		New(axisAngle(5, mgl32.Vec3{1, 1, 1}), mgl32.Vec3{}, mgl32.Vec3{0, 0.1, 0}),
	}

	for _, layout := range layouts {
		t.Run(layout.String()+"/zero weight", func(t *testing.T) {
			base := filledView(layout, sampleTransforms()...)
			BlendWithIdentityAndAccumulate(base, filledView(layout, additive...), 0)
			NormalizeRotations(base)
			for i, want := range sampleTransforms() {
				assert.True(t, base.Get(i).Equals(want, eps), "bone %d: %v != %v", i, base.Get(i), want)
			}
		})

		t.Run(layout.String()+"/full weight", func(t *testing.T) {
			base := filledView(layout, sampleTransforms()...)
			BlendWithIdentityAndAccumulate(base, filledView(layout, additive...), 1)
			for i, b := range sampleTransforms() {
				want := Transform{
					Rotation:    additive[i].Rotation.Mul(b.Rotation),
					Translation: b.Translation.Add(additive[i].Translation),
					Scale3D:     b.Scale3D.Add(additive[i].Scale3D),
				}
				assert.True(t, base.Get(i).Equals(want, eps), "bone %d", i)
			}
		})
	}
}

func TestBlendWithIdentityAndAccumulateMesh(t *testing.T) {
	parents := chainParents()
	base := filledView(LayoutSoA, sampleTransforms()...)

	additive := NewArray(LayoutSoA, 4).View()
	SetIdentity(additive, true, 0, -1)
	delta := axisAngle(30, mgl32.Vec3{0, 0, 1})
	additive.SetRotation(1, delta)

	meshBefore := LocalToMesh(base, parents, 1).Rotation
	childBefore := LocalToMesh(base, parents, 2).Rotation
	BlendWithIdentityAndAccumulateMesh(base, additive, parents, 1)

	assert.True(t, NearlyEqualQuat(LocalToMesh(base, parents, 1).Rotation, delta.Mul(meshBefore), eps))
	// The root is untouched and children keep their mesh space rotation.
	assert.True(t, base.Get(0).Equals(sampleTransforms()[0], eps))
	assert.True(t, NearlyEqualQuat(LocalToMesh(base, parents, 2).Rotation, childBefore, eps))
}

func TestConvertPoseRoundTrip(t *testing.T) {
	parents := chainParents()
	for _, layout := range layouts {
		v := filledView(layout, sampleTransforms()...)
		ConvertPoseLocalToMeshRotationTranslation(v, parents)

		// Matches the model space composition without scale.
		for i := range sampleTransforms() {
			want := LocalToMesh(filledView(layout, sampleTransforms()...), parents, i)
			assert.True(t, NearlyEqualVec(v.Translation(i), want.Translation, eps), "bone %d", i)
			assert.True(t, NearlyEqualQuat(v.Rotation(i), want.Rotation, eps), "bone %d", i)
		}

		ConvertPoseMeshToLocalRotationTranslation(v, parents)
		for i, want := range sampleTransforms() {
			assert.True(t, v.Get(i).Equals(want, eps), "bone %d", i)
		}

		ConvertPoseLocalToMeshRotation(v, parents)
		ConvertPoseMeshToLocalRotation(v, parents)
		for i, want := range sampleTransforms() {
			assert.True(t, v.Get(i).Equals(want, eps), "bone %d", i)
		}
	}
}

func TestConvertPoseRejectsChildBeforeParent(t *testing.T) {
	v := filledView(LayoutSoA, sampleTransforms()[:2]...)
	assert.Panics(t, func() { ConvertPoseLocalToMeshRotation(v, []uint16{1, bone.PACKED_NONE}) })
	assert.Panics(t, func() { ConvertPoseLocalToMeshRotation(v, []uint16{bone.PACKED_NONE}) })
}

func TestPerBoneWeights(t *testing.T) {
	pw := PerBoneWeights{
		BoneToWeightIndex: []int32{bone.INDEX_NONE, 0, 1},
		Weights:           []float32{0.25, 1},
		Default:           0.5,
	}
	assert.Equal(t, float32(0.5), pw.Weight(0))
	assert.Equal(t, float32(0.25), pw.Weight(1))
	assert.Equal(t, float32(0.5), pw.Weight(7))

	pw.Invert = true
	assert.Equal(t, float32(0.5), pw.Weight(0), "default weight is never inverted")
	assert.Equal(t, float32(0.75), pw.Weight(1))
	assert.Equal(t, float32(0), pw.Weight(2))

	for _, layout := range layouts {
		dest := NewArray(layout, 3).View()
		source := filledView(layout,
			FromTranslation(mgl32.Vec3{4, 0, 0}),
			FromTranslation(mgl32.Vec3{4, 0, 0}),
			FromTranslation(mgl32.Vec3{4, 0, 0}))
		BlendOverwritePerBoneWithScale(dest, source, pw)
		assert.InDelta(t, 2, dest.Translation(0)[0], eps)
		assert.InDelta(t, 3, dest.Translation(1)[0], eps)
		assert.InDelta(t, 0, dest.Translation(2)[0], eps)

		BlendAddPerBoneWithScale(dest, source, pw)
		assert.InDelta(t, 4, dest.Translation(0)[0], eps)
		assert.InDelta(t, 6, dest.Translation(1)[0], eps)
		assert.InDelta(t, 0, dest.Translation(2)[0], eps)
	}
}

func TestTransformRelativeInvertsMul(t *testing.T) {
	child := New(axisAngle(33, mgl32.Vec3{1, 2, 3}), mgl32.Vec3{1, -2, 0.5}, mgl32.Vec3{1, 2, 1})
	parent := New(axisAngle(-80, mgl32.Vec3{0, 1, 0}), mgl32.Vec3{3, 0, 0}, mgl32.Vec3{2, 2, 2})

	mesh := child.Mul(parent)
	assert.True(t, mesh.GetRelativeTransform(parent).Equals(child, eps))
	assert.True(t, Identity.Mul(parent).Equals(parent, eps))
}

func TestScratchStack(t *testing.T) {
	s := NewScratchStack(4)
	m := s.Mark()

	a := s.Alloc(LayoutSoA, 3)
	b := s.Alloc(LayoutSoA, 3) // grows past the initial capacity
	SetIdentity(a, false, 0, -1)
	SetIdentity(b, true, 0, -1)
	assert.Equal(t, Identity, a.Get(2), "growth must not clobber earlier views")

	c := s.Alloc(LayoutAoS, 2)
	require.Equal(t, 2, c.Num())
	assert.Equal(t, LayoutAoS, c.Layout())

	s.Release(m)
	assert.Equal(t, m, s.Mark())
	assert.Panics(t, func() { s.Release(ScratchMark{soa: 100}) })
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("AoS")
	require.NoError(t, err)
	assert.Equal(t, LayoutAoS, l)
	_, err = ParseLayout("columns")
	assert.Error(t, err)
}

func benchmarkAccumulate(b *testing.B, layout Layout) {
	const n = 256
	base := NewArray(layout, n).View()
	additive := NewArray(layout, n).View()
	SetIdentity(base, false, 0, -1)
	SetIdentity(additive, true, 0, -1)
	for i := 0; i < n; i++ {
		additive.SetRotation(i, axisAngle(float32(i%90), mgl32.Vec3{0, 1, 0}))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		BlendWithIdentityAndAccumulate(base, additive, float32(i%10)/10)
		NormalizeRotations(base)
	}
}

func BenchmarkAccumulateSoA(b *testing.B) { benchmarkAccumulate(b, LayoutSoA) }
func BenchmarkAccumulateAoS(b *testing.B) { benchmarkAccumulate(b, LayoutAoS) }
