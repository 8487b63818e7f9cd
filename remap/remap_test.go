package remap

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/animnext/attribute"
	"github.com/mogaika/animnext/bone"
	"github.com/mogaika/animnext/lodpose"
	"github.com/mogaika/animnext/refpose"
	"github.com/mogaika/animnext/skeleton"
	"github.com/mogaika/animnext/transform"
	"github.com/mogaika/animnext/utils"
)

func buildRefPose(t *testing.T, bones []skeleton.BoneDesc, lods [][]string) *refpose.ReferencePose {
	mesh, err := skeleton.BuildMesh("mesh", "", bones, lods)
	require.NoError(t, err)
	c := skeleton.NewMeshComponent(mesh)
	rp, err := refpose.GenerateForComponent(c)
	require.NoError(t, err)
	return rp
}

func namedBones(parents map[string]string, order ...string) []skeleton.BoneDesc {
	bones := make([]skeleton.BoneDesc, len(order))
	for i, name := range order {
		bones[i] = skeleton.BoneDesc{
			Name:      name,
			Parent:    parents[name],
			Transform: transform.FromTranslation(mgl32.Vec3{0, 0, -1}),
		}
	}
	return bones
}

func animatedPose(rp *refpose.ReferencePose, lod int, layout transform.Layout) *lodpose.HeapPose {
	p := lodpose.NewHeapPose(layout)
	p.PrepareForLOD(rp, lod, false, false)
	for i := 0; i < p.GetNumBones(); i++ {
		p.LocalTransforms.Set(i, transform.New(
			mgl32.QuatRotate(float32(i+1)*0.1, mgl32.Vec3{0, 1, 0}),
			mgl32.Vec3{float32(i + 1), 0, 0},
			mgl32.Vec3{1, 1, 1}))
	}
	return p
}

func TestRemapByName(t *testing.T) {
	parents := map[string]string{"Spine": "Root", "Head": "Spine", "ExtraBone": "Root"}
	source := buildRefPose(t, namedBones(parents, "Root", "Spine", "Head", "ExtraBone"), nil)
	target := buildRefPose(t, namedBones(parents, "Root", "Spine", "Head"), nil)

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	r := New(WithLogger(log))
	require.True(t, r.ShouldReinit(source, target))
	r.Reinit(source, target)
	assert.False(t, r.ShouldReinit(source, target))
	assert.NotEmpty(t, hook.Entries)

	mapping := r.GetBoneMapping(0, 0)
	require.NotNil(t, mapping)
	extra := source.FindLODBoneIndexFromBoneName("ExtraBone")
	for _, pair := range mapping.BoneIndexMap {
		assert.NotEqual(t, extra, pair.Source)
	}
	assert.Len(t, mapping.BoneIndexMap, 3)
	assert.Equal(t, bone.CompactPoseIndex(0), mapping.TargetRootToSource)

	for _, layout := range []transform.Layout{transform.LayoutSoA, transform.LayoutAoS} {
		src := animatedPose(source, 0, layout)
		src.Flags |= lodpose.FLAG_USE_RAW_DATA
		out := lodpose.NewHeapPose(layout)
		r.RemapPose(&src.Pose, out)

		require.True(t, out.IsValid())
		assert.Equal(t, 3, out.GetNumBones())
		assert.True(t, out.Flags.Has(lodpose.FLAG_USE_RAW_DATA))
		for _, name := range []string{"Root", "Spine", "Head"} {
			s := source.FindLODBoneIndexFromBoneName(name)
			d := target.FindLODBoneIndexFromBoneName(name)
			assert.Equal(t, src.LocalTransforms.Get(s.Int()), out.LocalTransforms.Get(d.Int()), name)
		}
	}
}

func TestRemapUnmappedBonesKeepRefPose(t *testing.T) {
	source := buildRefPose(t, namedBones(map[string]string{"Spine": "Root"}, "Root", "Spine"), nil)
	target := buildRefPose(t, namedBones(map[string]string{"Tail": "Root"}, "Root", "Tail"), nil)

	r := New()
	r.Reinit(source, target)
	out := lodpose.NewHeapPose(transform.LayoutSoA)
	r.RemapPose(&animatedPose(source, 0, transform.LayoutSoA).Pose, out)

	tail := target.FindLODBoneIndexFromBoneName("Tail")
	assert.Equal(t, target.GetRefPoseTransform(tail), out.LocalTransforms.Get(tail.Int()))
}

func TestRemapReattachesRoot(t *testing.T) {
	parents := map[string]string{"Spine": "Root", "Head": "Spine"}
	source := buildRefPose(t, namedBones(parents, "Root", "Spine", "Head"), nil)
	// prop rigged without the root bone
	target := buildRefPose(t, namedBones(map[string]string{"Head": "Spine"}, "Spine", "Head"), nil)

	r := New()
	r.Reinit(source, target)
	mapping := r.GetBoneMapping(0, 0)
	require.NotNil(t, mapping)
	spine := source.FindLODBoneIndexFromBoneName("Spine")
	assert.Equal(t, spine, mapping.TargetRootToSource)

	src := animatedPose(source, 0, transform.LayoutAoS)
	out := lodpose.NewHeapPose(transform.LayoutSoA)
	r.RemapPose(&src.Pose, out)

	expected := transform.LocalToMesh(src.LocalTransforms, src.GetLODBoneIndexToParentLODBoneIndexMap(), spine.Int())
	assert.True(t, out.LocalTransforms.Get(0).Equals(expected, 1e-5))
	head := source.FindLODBoneIndexFromBoneName("Head")
	assert.Equal(t, src.LocalTransforms.Get(head.Int()), out.LocalTransforms.Get(1))

	// additive deltas are copied as they are
	additive := lodpose.NewHeapPose(transform.LayoutSoA)
	additive.PrepareForLOD(source, 0, true, true)
	additive.LocalTransforms.SetTranslation(spine.Int(), mgl32.Vec3{5, 0, 0})
	r.RemapPose(&additive.Pose, out)
	assert.True(t, out.IsAdditive())
	assert.Equal(t, mgl32.Vec3{5, 0, 0}, out.LocalTransforms.Translation(0))
}

func TestRemapFollowsTargetLOD(t *testing.T) {
	parents := map[string]string{"Spine": "Root", "Head": "Spine"}
	source := buildRefPose(t, namedBones(parents, "Root", "Spine", "Head"), [][]string{{"Root", "Spine", "Head"}, {"Root"}})
	target := buildRefPose(t, namedBones(parents, "Root", "Spine", "Head"), [][]string{{"Root", "Spine", "Head"}, {"Root", "Spine"}})

	r := New()
	r.Reinit(source, target)

	// source lod1 has no Spine, target lod1 keeps it at ref pose
	m := r.GetBoneMapping(1, 1)
	require.NotNil(t, m)
	assert.Equal(t, []BoneMapping{{Source: 0, Target: 0}}, m.BoneIndexMap)

	target.GetComponent().SetPredictedLOD(1)
	out := lodpose.NewHeapPose(transform.LayoutSoA)
	r.RemapPose(&animatedPose(source, 1, transform.LayoutSoA).Pose, out)
	assert.Equal(t, 1, out.LODLevel)
	assert.Equal(t, 2, out.GetNumBones())
	assert.Equal(t, target.GetRefPoseTransform(1), out.LocalTransforms.Get(1))

	assert.Nil(t, r.GetBoneMapping(2, 0))
	assert.Nil(t, r.GetBoneMapping(0, 2))
}

func TestRemapClampsOutOfRangeLOD(t *testing.T) {
	parents := map[string]string{"Spine": "Root", "Head": "Spine"}
	source := buildRefPose(t, namedBones(parents, "Root", "Spine", "Head"), nil)
	target := buildRefPose(t, namedBones(parents, "Root", "Spine", "Head"), nil)

	r := New()
	r.Reinit(source, target)

	src := animatedPose(source, 2, transform.LayoutSoA)
	require.True(t, src.IsValid())
	require.Equal(t, 3, src.GetNumBones())

	out := lodpose.NewHeapPose(transform.LayoutSoA)
	require.NotPanics(t, func() { r.RemapPoseToLOD(&src.Pose, out, 5) })
	assert.Equal(t, 0, out.LODLevel)
	require.Equal(t, 3, out.GetNumBones())
	for i := 0; i < 3; i++ {
		assert.Equal(t, src.LocalTransforms.Get(i), out.LocalTransforms.Get(i))
	}

	require.NotPanics(t, func() { r.RemapPoseToLOD(&src.Pose, out, -1) })
	assert.Equal(t, 0, out.LODLevel)
}

func TestShouldReinitOnMeshChange(t *testing.T) {
	bones := namedBones(map[string]string{"Spine": "Root"}, "Root", "Spine")
	a := buildRefPose(t, bones, nil)
	b := buildRefPose(t, bones, nil)

	r := New()
	r.Reinit(a, a)
	assert.False(t, r.ShouldReinit(a, a))
	assert.True(t, r.ShouldReinit(b, a))
	assert.True(t, r.ShouldReinit(a, b))

	assert.Panics(t, func() {
		r.RemapPose(&animatedPose(b, 0, transform.LayoutSoA).Pose, lodpose.NewHeapPose(transform.LayoutSoA))
	})
}

func TestRemapAttributes(t *testing.T) {
	parents := map[string]string{"Spine": "Root", "Head": "Spine", "ExtraBone": "Root"}
	source := buildRefPose(t, namedBones(parents, "Root", "Spine", "Head", "ExtraBone"), nil)
	target := buildRefPose(t, namedBones(map[string]string{"Head": "Root"}, "Root", "Head"), nil)

	srcPose := animatedPose(source, 0, transform.LayoutSoA)
	dstPose := animatedPose(target, 0, transform.LayoutSoA)

	attrs := attribute.NewContainer()
	attrs.Set("ik", source.FindLODBoneIndexFromBoneName("Head"), attribute.Float(1))
	attrs.Set("ik", source.FindLODBoneIndexFromBoneName("ExtraBone"), attribute.Float(2))
	attrs.Set("label", source.FindLODBoneIndexFromBoneName("Root"), attribute.String("root"))

	out := attribute.NewContainer()
	out.Set("stale", 0, attribute.Float(9))

	r := New()
	r.Reinit(source, target)
	r.RemapAttributes(&srcPose.Pose, attrs, &dstPose.Pose, out)

	assert.Equal(t, 2, out.Num())
	v, ok := out.Get(attribute.Key{Type: attribute.TYPE_FLOAT, Name: "ik", Bone: target.FindLODBoneIndexFromBoneName("Head")})
	require.True(t, ok)
	assert.Equal(t, attribute.Float(1), v)
	_, ok = out.Get(attribute.Key{Type: attribute.TYPE_STRING, Name: "label", Bone: 0})
	assert.True(t, ok)
}

// every source and target draw bone names from a shared pool so the
// skeletons overlap partially
func TestRandomMappingsAreTargetSubsets(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	pool := utils.NewRandomNameGenerator(3).RandomNames(40)

	randomRefPose := func() *refpose.ReferencePose {
		perm := r.Perm(len(pool))[:3+r.Intn(20)]
		bones := make([]skeleton.BoneDesc, len(perm))
		for i, pi := range perm {
			bones[i] = skeleton.BoneDesc{Name: pool[pi], Transform: transform.Identity}
			if i > 0 {
				bones[i].Parent = bones[r.Intn(i)].Name
			}
		}
		lods := [][]string{nil}
		for _, b := range bones {
			lods[0] = append(lods[0], b.Name)
		}
		// second lod: root and its direct children
		lods = append(lods, []string{bones[0].Name})
		for _, b := range bones[1:] {
			if b.Parent == bones[0].Name {
				lods[1] = append(lods[1], b.Name)
			}
		}
		return buildRefPose(t, bones, lods)
	}

	for iter := 0; iter < 100; iter++ {
		source, target := randomRefPose(), randomRefPose()
		m := New()
		m.Reinit(source, target)
		for srcLOD := 0; srcLOD < source.GetNumLODs(); srcLOD++ {
			for tgtLOD := 0; tgtLOD < target.GetNumLODs(); tgtLOD++ {
				mapping := m.GetBoneMapping(srcLOD, tgtLOD)
				require.NotNil(t, mapping)
				assert.LessOrEqual(t, len(mapping.BoneIndexMap), target.GetNumBonesForLOD(tgtLOD))

				seen := make(map[bone.CompactPoseIndex]bool)
				for _, pair := range mapping.BoneIndexMap {
					assert.False(t, seen[pair.Target], "duplicate target bone")
					seen[pair.Target] = true
					assert.Less(t, pair.Source.Int(), source.GetNumBonesForLOD(srcLOD))
					assert.Equal(t, target.GetBoneNameForLOD(tgtLOD, pair.Target), source.GetBoneNameForLOD(srcLOD, pair.Source))
				}
			}
		}
	}
}
