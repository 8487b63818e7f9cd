package transform

import (
	"fmt"

	"github.com/mogaika/animnext/bone"
)

// The operations below assume the caller validated length relationships.
// Violations are programmer errors and panic.

// SetIdentity fills [start, start+count) with Identity, or with
// AdditiveIdentity when isAdditive is set. A negative count means "to the end".
func SetIdentity(v View, isAdditive bool, start, count int) {
	if count < 0 {
		count = v.Num() - start
	}
	checkRange(v.Num(), start, count)

	id := Identity
	if isAdditive {
		id = AdditiveIdentity
	}

	if sv, ok := AsSoA(v); ok {
		end := start + count
		for i := start; i < end; i++ {
			sv.Rotations[i] = id.Rotation
			sv.Translations[i] = id.Translation
			sv.Scales3D[i] = id.Scale3D
		}
		return
	}
	for i := start; i < start+count; i++ {
		v.Set(i, id)
	}
}

// CopyTransforms copies source into dest over [start, start+count).
// A negative count copies up to the end of dest.
func CopyTransforms(dest View, source ConstView, start, count int) {
	if source.Num() < dest.Num() {
		panic(fmt.Sprintf("transform: copy source has %d transforms, dest needs %d", source.Num(), dest.Num()))
	}
	if count < 0 {
		count = dest.Num() - start
	}
	checkRange(dest.Num(), start, count)
	end := start + count

	dv, dok := AsSoA(dest)
	sv, sok := AsSoA(source)
	if dok && sok {
		copy(dv.Rotations[start:end], sv.Rotations[start:end])
		copy(dv.Translations[start:end], sv.Translations[start:end])
		copy(dv.Scales3D[start:end], sv.Scales3D[start:end])
		return
	}
	if da, ok := dest.(AoSView); ok {
		if sa, ok := source.(AoSView); ok {
			copy(da.Transforms[start:end], sa.Transforms[start:end])
			return
		}
	}
	for i := start; i < end; i++ {
		dest.Set(i, source.Get(i))
	}
}

// NormalizeRotations renormalizes every rotation. Needed after accumulation,
// summed quaternions drift off the unit sphere.
func NormalizeRotations(v View) {
	if sv, ok := AsSoA(v); ok {
		for i := range sv.Rotations {
			sv.Rotations[i] = sv.Rotations[i].Normalize()
		}
		return
	}
	for i, n := 0, v.Num(); i < n; i++ {
		v.SetRotation(i, v.Rotation(i).Normalize())
	}
}

func parentOf(parents []uint16, i int) int {
	p := parents[i]
	if p == bone.PACKED_NONE {
		return bone.INDEX_NONE
	}
	if int(p) >= i {
		panic(fmt.Sprintf("transform: bone %d has parent %d, parents must precede children", i, p))
	}
	return int(p)
}

func checkParents(v ConstView, parents []uint16) {
	if len(parents) < v.Num() {
		panic(fmt.Sprintf("transform: parent map has %d entries for %d transforms", len(parents), v.Num()))
	}
}

// ConvertPoseLocalToMeshRotation turns parent-relative rotations into
// root-relative ones. Parents are converted before their children.
func ConvertPoseLocalToMeshRotation(v View, parents []uint16) {
	checkParents(v, parents)
	for i, n := 0, v.Num(); i < n; i++ {
		if p := parentOf(parents, i); p != bone.INDEX_NONE {
			v.SetRotation(i, v.Rotation(p).Mul(v.Rotation(i)))
		}
	}
}

// ConvertPoseMeshToLocalRotation undoes ConvertPoseLocalToMeshRotation.
// Children are converted first so their parent still holds its mesh value.
func ConvertPoseMeshToLocalRotation(v View, parents []uint16) {
	checkParents(v, parents)
	for i := v.Num() - 1; i >= 0; i-- {
		if p := parentOf(parents, i); p != bone.INDEX_NONE {
			v.SetRotation(i, v.Rotation(p).Inverse().Mul(v.Rotation(i)))
		}
	}
}

// ConvertPoseLocalToMeshRotationTranslation also propagates translations.
// Scale is not taken into account.
func ConvertPoseLocalToMeshRotationTranslation(v View, parents []uint16) {
	checkParents(v, parents)
	for i, n := 0, v.Num(); i < n; i++ {
		p := parentOf(parents, i)
		if p == bone.INDEX_NONE {
			continue
		}
		parentRot := v.Rotation(p)
		v.SetTranslation(i, parentRot.Rotate(v.Translation(i)).Add(v.Translation(p)))
		v.SetRotation(i, parentRot.Mul(v.Rotation(i)))
	}
}

func ConvertPoseMeshToLocalRotationTranslation(v View, parents []uint16) {
	checkParents(v, parents)
	for i := v.Num() - 1; i >= 0; i-- {
		p := parentOf(parents, i)
		if p == bone.INDEX_NONE {
			continue
		}
		invParentRot := v.Rotation(p).Inverse()
		v.SetTranslation(i, invParentRot.Rotate(v.Translation(i).Sub(v.Translation(p))))
		v.SetRotation(i, invParentRot.Mul(v.Rotation(i)))
	}
}

func checkBlendInputs(dest View, source ConstView) {
	if source.Num() < dest.Num() {
		panic(fmt.Sprintf("transform: blend source has %d transforms, dest has %d", source.Num(), dest.Num()))
	}
}

// BlendWithIdentityAndAccumulate accumulates additive onto base, scaled by
// weight: the additive delta is first lerped from the additive identity.
func BlendWithIdentityAndAccumulate(base View, additive ConstView, weight float32) {
	checkBlendInputs(base, additive)

	bv, bok := AsSoA(base)
	av, aok := AsSoA(additive)
	if bok && aok {
		for i := range bv.Rotations {
			delta := blendQuatFromIdentity(av.Rotations[i], weight)
			bv.Rotations[i] = delta.Mul(bv.Rotations[i])
			bv.Translations[i] = bv.Translations[i].Add(av.Translations[i].Mul(weight))
			bv.Scales3D[i] = bv.Scales3D[i].Add(av.Scales3D[i].Mul(weight))
		}
		return
	}

	for i, n := 0, base.Num(); i < n; i++ {
		delta := blendQuatFromIdentity(additive.Rotation(i), weight)
		base.SetRotation(i, delta.Mul(base.Rotation(i)))
		base.SetTranslation(i, base.Translation(i).Add(additive.Translation(i).Mul(weight)))
		base.SetScale3D(i, base.Scale3D(i).Add(additive.Scale3D(i).Mul(weight)))
	}
}

// BlendWithIdentityAndAccumulateMesh is BlendWithIdentityAndAccumulate for
// additive rotations authored in mesh space.
func BlendWithIdentityAndAccumulateMesh(base View, additive ConstView, parents []uint16, weight float32) {
	ConvertPoseLocalToMeshRotation(base, parents)
	BlendWithIdentityAndAccumulate(base, additive, weight)
	ConvertPoseMeshToLocalRotation(base, parents)
}

// BlendOverwriteWithScale writes source*weight into dest, component-wise.
// Rotations are not renormalized.
func BlendOverwriteWithScale(dest View, source ConstView, weight float32) {
	checkBlendInputs(dest, source)

	dv, dok := AsSoA(dest)
	sv, sok := AsSoA(source)
	if dok && sok {
		for i := range dv.Rotations {
			dv.Rotations[i] = scaleQuat(sv.Rotations[i], weight)
			dv.Translations[i] = sv.Translations[i].Mul(weight)
			dv.Scales3D[i] = sv.Scales3D[i].Mul(weight)
		}
		return
	}
	for i, n := 0, dest.Num(); i < n; i++ {
		overwriteScaled(dest, source, i, weight)
	}
}

// BlendAddWithScale adds source*weight to dest. The scaled rotation is
// flipped onto dest's hemisphere before adding.
func BlendAddWithScale(dest View, source ConstView, weight float32) {
	checkBlendInputs(dest, source)

	dv, dok := AsSoA(dest)
	sv, sok := AsSoA(source)
	if dok && sok {
		for i := range dv.Rotations {
			dv.Rotations[i] = addQuatShortest(dv.Rotations[i], scaleQuat(sv.Rotations[i], weight))
			dv.Translations[i] = dv.Translations[i].Add(sv.Translations[i].Mul(weight))
			dv.Scales3D[i] = dv.Scales3D[i].Add(sv.Scales3D[i].Mul(weight))
		}
		return
	}
	for i, n := 0, dest.Num(); i < n; i++ {
		addScaled(dest, source, i, weight)
	}
}

// PerBoneWeights resolves a per-bone blend weight. BoneToWeightIndex maps a
// LOD bone index to an index into Weights, or to bone.INDEX_NONE when the
// bone has no specific weight and Default applies.
type PerBoneWeights struct {
	BoneToWeightIndex []int32
	Weights           []float32
	Default           float32
	// Invert turns a found weight w into 1-w. Default is never inverted.
	Invert bool
}

func (pw PerBoneWeights) Weight(boneIndex int) float32 {
	if boneIndex >= 0 && boneIndex < len(pw.BoneToWeightIndex) {
		if wi := pw.BoneToWeightIndex[boneIndex]; wi != bone.INDEX_NONE {
			w := pw.Weights[wi]
			if pw.Invert {
				w = 1 - w
			}
			return w
		}
	}
	return pw.Default
}

func BlendOverwritePerBoneWithScale(dest View, source ConstView, weights PerBoneWeights) {
	checkBlendInputs(dest, source)
	for i, n := 0, dest.Num(); i < n; i++ {
		overwriteScaled(dest, source, i, weights.Weight(i))
	}
}

func BlendAddPerBoneWithScale(dest View, source ConstView, weights PerBoneWeights) {
	checkBlendInputs(dest, source)
	for i, n := 0, dest.Num(); i < n; i++ {
		addScaled(dest, source, i, weights.Weight(i))
	}
}

func overwriteScaled(dest View, source ConstView, i int, w float32) {
	dest.Set(i, Transform{
		Rotation:    scaleQuat(source.Rotation(i), w),
		Translation: source.Translation(i).Mul(w),
		Scale3D:     source.Scale3D(i).Mul(w),
	})
}

func addScaled(dest View, source ConstView, i int, w float32) {
	dest.Set(i, Transform{
		Rotation:    addQuatShortest(dest.Rotation(i), scaleQuat(source.Rotation(i), w)),
		Translation: dest.Translation(i).Add(source.Translation(i).Mul(w)),
		Scale3D:     dest.Scale3D(i).Add(source.Scale3D(i).Mul(w)),
	})
}

// BlendTwo writes lerp(a, b, weight) into dest and renormalizes rotations.
func BlendTwo(dest View, a, b ConstView, weight float32) {
	BlendOverwriteWithScale(dest, a, 1-weight)
	BlendAddWithScale(dest, b, weight)
	NormalizeRotations(dest)
}

// LocalToMesh returns the mesh-space transform of bone i by composing local
// transforms up the parent chain.
func LocalToMesh(v ConstView, parents []uint16, i int) Transform {
	t := v.Get(i)
	for p := parentOf(parents, i); p != bone.INDEX_NONE; p = parentOf(parents, p) {
		t = t.Mul(v.Get(p))
	}
	return t
}
