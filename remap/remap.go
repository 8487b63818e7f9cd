// Package remap retargets poses and attributes between skeletal meshes of
// different topology by matching bone names.
package remap

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mogaika/animnext/attribute"
	"github.com/mogaika/animnext/bone"
	"github.com/mogaika/animnext/lodpose"
	"github.com/mogaika/animnext/refpose"
	"github.com/mogaika/animnext/transform"
)

type BoneMapping struct {
	Source bone.CompactPoseIndex
	Target bone.CompactPoseIndex
}

// LODMapping maps one source LOD onto one target LOD. Pairs follow target
// bone order and every target bone appears at most once.
type LODMapping struct {
	SourceLOD    int
	TargetLOD    int
	BoneIndexMap []BoneMapping

	// TargetRootToSource is the source bone the target root maps to,
	// INDEX_NONE when the target root has no counterpart.
	TargetRootToSource bone.CompactPoseIndex
}

type Option func(*RemapPoseData)

func WithLogger(log logrus.FieldLogger) Option {
	return func(r *RemapPoseData) { r.log = log }
}

// RemapPoseData caches the bone mappings between a source and a target
// reference pose for every source LOD and target LOD pair.
type RemapPoseData struct {
	sourceRefPose *refpose.ReferencePose
	targetRefPose *refpose.ReferencePose
	sourceMeshID  uuid.UUID
	targetMeshID  uuid.UUID

	numTargetLODs int
	mappings      []LODMapping
	initialized   bool

	log logrus.FieldLogger
}

func New(opts ...Option) *RemapPoseData {
	r := &RemapPoseData{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func meshID(rp *refpose.ReferencePose) uuid.UUID {
	if rp == nil || rp.GetSkeletalMesh() == nil {
		return uuid.Nil
	}
	return rp.GetSkeletalMesh().ID
}

// ShouldReinit compares mesh identities only, a mesh changed in place keeps
// its old mapping.
func (r *RemapPoseData) ShouldReinit(source, target *refpose.ReferencePose) bool {
	return !r.initialized || meshID(source) != r.sourceMeshID || meshID(target) != r.targetMeshID
}

func (r *RemapPoseData) Reinit(source, target *refpose.ReferencePose) {
	r.sourceRefPose = source
	r.targetRefPose = target
	r.sourceMeshID = meshID(source)
	r.targetMeshID = meshID(target)
	r.numTargetLODs = target.GetNumLODs()
	r.mappings = r.mappings[:0]
	r.initialized = true

	sourceSkeleton := source.GetReferenceSkeleton()
	for srcLOD := 0; srcLOD < source.GetNumLODs(); srcLOD++ {
		for tgtLOD := 0; tgtLOD < target.GetNumLODs(); tgtLOD++ {
			m := LODMapping{
				SourceLOD:          srcLOD,
				TargetLOD:          tgtLOD,
				TargetRootToSource: bone.INDEX_NONE,
			}
			numSourceBones := source.GetNumBonesForLOD(srcLOD)
			for t, n := 0, target.GetNumBonesForLOD(tgtLOD); t < n; t++ {
				tgt := bone.CompactPoseIndex(t)
				name := target.GetBoneNameForLOD(tgtLOD, tgt)
				srcMesh := sourceSkeleton.FindBoneIndex(name)
				if !srcMesh.IsValid() {
					continue
				}
				src := source.GetLODBoneIndexFromMeshBoneIndexForLOD(srcLOD, srcMesh)
				if !src.IsValid() || src.Int() >= numSourceBones {
					continue
				}
				m.BoneIndexMap = append(m.BoneIndexMap, BoneMapping{Source: src, Target: tgt})
			}
			for _, pair := range m.BoneIndexMap {
				if pair.Target == bone.ROOT_BONE_INDEX {
					m.TargetRootToSource = pair.Source
					break
				}
			}
			r.mappings = append(r.mappings, m)
		}
	}

	r.log.WithFields(logrus.Fields{
		"source":    source,
		"target":    target,
		"lod_pairs": len(r.mappings),
	}).Debug("Remap pose data rebuilt")
}

func (r *RemapPoseData) GetSourceRefPose() *refpose.ReferencePose { return r.sourceRefPose }
func (r *RemapPoseData) GetTargetRefPose() *refpose.ReferencePose { return r.targetRefPose }

// GetBoneMapping returns nil for LODs the mapping was not built for.
func (r *RemapPoseData) GetBoneMapping(sourceLOD, targetLOD int) *LODMapping {
	if !r.initialized || sourceLOD < 0 || targetLOD < 0 || targetLOD >= r.numTargetLODs {
		return nil
	}
	i := sourceLOD*r.numTargetLODs + targetLOD
	if i >= len(r.mappings) {
		return nil
	}
	return &r.mappings[i]
}

// RemapPose writes source into out at the target's current source LOD.
func (r *RemapPoseData) RemapPose(source *lodpose.Pose, out lodpose.Buffer) {
	lod := 0
	if r.targetRefPose != nil {
		lod = r.targetRefPose.GetSourceLODLevel()
	}
	r.RemapPoseToLOD(source, out, lod)
}

// clampLOD falls back to LOD0 for levels rp does not have.
func clampLOD(rp *refpose.ReferencePose, lod int) int {
	if rp == nil || lod < 0 || lod >= rp.GetNumLODs() {
		return 0
	}
	return lod
}

// RemapPoseToLOD copies every mapped bone from source into out, prepared for
// the target reference pose at targetLOD. Unmapped target bones keep the
// target reference pose. When the target root maps below the source root it
// receives the source bone's mesh space transform. Out of range source and
// target LODs are treated as LOD0.
func (r *RemapPoseData) RemapPoseToLOD(source *lodpose.Pose, out lodpose.Buffer, targetLOD int) {
	if !r.initialized {
		panic("remap: RemapPose before Reinit")
	}
	if meshID(source.RefPose) != r.sourceMeshID {
		panic(fmt.Sprintf("remap: source pose of %v, mapping built for %v", source.RefPose, r.sourceRefPose))
	}

	sourceLOD := clampLOD(r.sourceRefPose, source.LODLevel)
	targetLOD = clampLOD(r.targetRefPose, targetLOD)
	mapping := r.GetBoneMapping(sourceLOD, targetLOD)
	if mapping == nil {
		panic(fmt.Sprintf("remap: no mapping for source lod %d target lod %d", sourceLOD, targetLOD))
	}

	isAdditive := source.IsAdditive()
	target := out.GetPose()
	if target.ShouldPrepareForLOD(r.targetRefPose, targetLOD, isAdditive) {
		out.PrepareForLOD(r.targetRefPose, targetLOD, true, isAdditive)
	}
	target.Flags = source.Flags

	src := source.LocalTransforms
	dst := target.LocalTransforms
	sv, sok := transform.AsSoA(src)
	dv, dok := transform.AsSoA(dst)
	if sok && dok {
		for _, pair := range mapping.BoneIndexMap {
			s, d := pair.Source, pair.Target
			dv.Rotations[d] = sv.Rotations[s]
			dv.Translations[d] = sv.Translations[s]
			dv.Scales3D[d] = sv.Scales3D[s]
		}
	} else {
		for _, pair := range mapping.BoneIndexMap {
			dst.Set(pair.Target.Int(), src.Get(pair.Source.Int()))
		}
	}

	// mesh space placement is meaningless for additive deltas
	if !isAdditive && mapping.TargetRootToSource.IsValid() && !mapping.TargetRootToSource.IsRoot() {
		root := transform.LocalToMesh(src, source.GetLODBoneIndexToParentLODBoneIndexMap(), mapping.TargetRootToSource.Int())
		dst.Set(bone.ROOT_BONE_INDEX, root)
	}
}

// RemapAttributes re-keys source attributes onto the target bones of the
// same name. Attributes of bones missing from the target are dropped.
func (r *RemapPoseData) RemapAttributes(sourcePose *lodpose.Pose, source *attribute.Container, targetPose *lodpose.Pose, out *attribute.Container) {
	out.Reset()
	dropped := 0
	for _, k := range source.Keys() {
		v, _ := source.Get(k)
		t := targetPose.FindLODBoneIndexFromBoneName(sourcePose.GetBoneName(k.Bone))
		if !t.IsValid() {
			dropped++
			continue
		}
		out.SetKey(attribute.Key{Type: k.Type, Name: k.Name, Bone: t}, v)
	}
	if dropped != 0 {
		r.log.WithField("count", dropped).Debug("Dropped attributes of unmapped bones")
	}
}
