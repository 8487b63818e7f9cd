// Package refpose holds the per-LOD bone topology of a skeletal mesh: bone
// counts, parent links and the tables converting between LOD, mesh and
// skeleton bone indices.
package refpose

import (
	"fmt"

	"github.com/mogaika/animnext/bone"
	"github.com/mogaika/animnext/skeleton"
	"github.com/mogaika/animnext/transform"
)

// Tables are the precomputed index tables a ReferencePose is initialized from.
// With FastPath set every per-LOD slice holds a single LOD0 table that serves
// all LODs by truncation.
type Tables struct {
	ParentMaps   [][]uint16
	MeshMaps     [][]bone.MeshIndex
	SkeletonMaps [][]bone.SkeletonIndex

	SkeletonToLOD []bone.CompactPoseIndex
	MeshToLOD     []bone.CompactPoseIndex
	// MeshToLODPerLOD is only used without FastPath.
	MeshToLODPerLOD [][]bone.CompactPoseIndex

	LODNumBones []int
	NameToLOD   map[string]bone.CompactPoseIndex
	FastPath    bool
}

// ReferencePose is immutable once initialized and may be shared between
// goroutines.
type ReferencePose struct {
	Tables

	meshParents   []bone.MeshIndex
	refTransforms [][]transform.Transform

	refSkeleton *skeleton.ReferenceSkeleton
	skeleton    *skeleton.Skeleton
	mesh        *skeleton.SkeletalMesh
	component   *skeleton.MeshComponent
}

// Initialize populates the pose from the mesh reference skeleton and tables.
func (rp *ReferencePose) Initialize(ref *skeleton.ReferenceSkeleton, t Tables) {
	numTables := len(t.LODNumBones)
	if t.FastPath {
		numTables = 1
	}
	if len(t.ParentMaps) != numTables || len(t.MeshMaps) != numTables || len(t.SkeletonMaps) != numTables {
		panic(fmt.Sprintf("expected %d lod tables, got parents %d mesh %d skeleton %d",
			numTables, len(t.ParentMaps), len(t.MeshMaps), len(t.SkeletonMaps)))
	}
	for lod := 1; lod < len(t.LODNumBones); lod++ {
		if t.LODNumBones[lod] > t.LODNumBones[lod-1] {
			panic(fmt.Sprintf("lod %d has %d bones, more than lod %d with %d",
				lod, t.LODNumBones[lod], lod-1, t.LODNumBones[lod-1]))
		}
	}

	rp.Tables = t
	rp.refSkeleton = ref

	bindPose := ref.RefBonePose()
	rp.refTransforms = make([][]transform.Transform, numTables)
	for i, meshMap := range t.MeshMaps {
		transforms := make([]transform.Transform, len(meshMap))
		for iBone, meshIndex := range meshMap {
			transforms[iBone] = bindPose[meshIndex]
		}
		rp.refTransforms[i] = transforms
	}

	rp.meshParents = make([]bone.MeshIndex, ref.Num())
	for i, bi := range ref.BoneInfo() {
		rp.meshParents[i] = bi.ParentIndex
	}
}

func (rp *ReferencePose) IsValid() bool    { return len(rp.LODNumBones) != 0 }
func (rp *ReferencePose) IsFastPath() bool { return rp.FastPath }
func (rp *ReferencePose) GetNumLODs() int  { return len(rp.LODNumBones) }

func (rp *ReferencePose) GetSkeleton() *skeleton.Skeleton                   { return rp.skeleton }
func (rp *ReferencePose) GetSkeletalMesh() *skeleton.SkeletalMesh           { return rp.mesh }
func (rp *ReferencePose) GetComponent() *skeleton.MeshComponent             { return rp.component }
func (rp *ReferencePose) GetReferenceSkeleton() *skeleton.ReferenceSkeleton { return rp.refSkeleton }

// GetNumBonesForLOD clamps out of range LODs to LOD0.
func (rp *ReferencePose) GetNumBonesForLOD(lod int) int {
	if lod >= 0 && lod < len(rp.LODNumBones) {
		return rp.LODNumBones[lod]
	}
	if len(rp.LODNumBones) != 0 {
		return rp.LODNumBones[0]
	}
	return 0
}

// GetSourceLODLevel is the bound component's predicted LOD, which may change
// from one call to the next. Callers cache it once per frame.
func (rp *ReferencePose) GetSourceLODLevel() int {
	if rp.component == nil {
		return 0
	}
	return rp.component.PredictedLOD()
}

// tableIndex picks the table serving lod.
func (rp *ReferencePose) tableIndex(lod int) int {
	if rp.FastPath || lod < 0 || lod >= len(rp.LODNumBones) {
		return 0
	}
	return lod
}

func (rp *ReferencePose) GetLODBoneIndexToParentLODBoneIndexMap(lod int) []uint16 {
	if !rp.IsValid() {
		return nil
	}
	return rp.ParentMaps[rp.tableIndex(lod)][:rp.GetNumBonesForLOD(lod)]
}

func (rp *ReferencePose) GetLODBoneIndexToMeshBoneIndexMap(lod int) []bone.MeshIndex {
	if !rp.IsValid() {
		return nil
	}
	return rp.MeshMaps[rp.tableIndex(lod)][:rp.GetNumBonesForLOD(lod)]
}

func (rp *ReferencePose) GetLODBoneIndexToSkeletonBoneIndexMap(lod int) []bone.SkeletonIndex {
	if !rp.IsValid() {
		return nil
	}
	return rp.SkeletonMaps[rp.tableIndex(lod)][:rp.GetNumBonesForLOD(lod)]
}

func (rp *ReferencePose) GetSkeletonBoneIndexToLODBoneIndexMap() []bone.CompactPoseIndex {
	return rp.SkeletonToLOD
}

func (rp *ReferencePose) GetMeshBoneIndexToLODBoneIndexMap() []bone.CompactPoseIndex {
	return rp.MeshToLOD
}

func (rp *ReferencePose) GetMeshBoneIndexToParentMeshBoneIndexMap() []bone.MeshIndex {
	return rp.meshParents
}

// GetRefPoseTransforms are the bind pose transforms in the LOD's bone order.
func (rp *ReferencePose) GetRefPoseTransforms(lod int) []transform.Transform {
	if !rp.IsValid() {
		return nil
	}
	return rp.refTransforms[rp.tableIndex(lod)][:rp.GetNumBonesForLOD(lod)]
}

// GetRefPoseTransform uses LOD0 bone indices.
func (rp *ReferencePose) GetRefPoseTransform(i bone.CompactPoseIndex) transform.Transform {
	if !rp.IsValid() || i < 0 || int(i) >= rp.LODNumBones[0] {
		return transform.Identity
	}
	return rp.refTransforms[0][i]
}

func (rp *ReferencePose) GetLODParentBoneIndex(lod int, i bone.CompactPoseIndex) bone.CompactPoseIndex {
	parents := rp.GetLODBoneIndexToParentLODBoneIndexMap(lod)
	if i < 0 || int(i) >= len(parents) {
		return bone.INDEX_NONE
	}
	return bone.Unpack(parents[i])
}

func (rp *ReferencePose) GetLODBoneIndexFromMeshBoneIndex(m bone.MeshIndex) bone.CompactPoseIndex {
	if m < 0 || int(m) >= len(rp.MeshToLOD) {
		return bone.INDEX_NONE
	}
	return rp.MeshToLOD[m]
}

func (rp *ReferencePose) GetMeshBoneIndexFromLODBoneIndex(i bone.CompactPoseIndex) bone.MeshIndex {
	return rp.GetMeshBoneIndexFromLODBoneIndexForLOD(0, i)
}

func (rp *ReferencePose) GetLODBoneIndexFromSkeletonBoneIndex(s bone.SkeletonIndex) bone.CompactPoseIndex {
	if s < 0 || int(s) >= len(rp.SkeletonToLOD) {
		return bone.INDEX_NONE
	}
	return rp.SkeletonToLOD[s]
}

func (rp *ReferencePose) GetSkeletonBoneIndexFromLODBoneIndex(i bone.CompactPoseIndex) bone.SkeletonIndex {
	skeletonMap := rp.GetLODBoneIndexToSkeletonBoneIndexMap(0)
	if i < 0 || int(i) >= len(skeletonMap) {
		return bone.INDEX_NONE
	}
	return skeletonMap[i]
}

// GetLODBoneIndexFromMeshBoneIndexForLOD returns the index of a mesh bone in
// the LOD's own bone order, INDEX_NONE if the LOD does not evaluate it.
func (rp *ReferencePose) GetLODBoneIndexFromMeshBoneIndexForLOD(lod int, m bone.MeshIndex) bone.CompactPoseIndex {
	var i bone.CompactPoseIndex
	if rp.FastPath || rp.tableIndex(lod) == 0 {
		i = rp.GetLODBoneIndexFromMeshBoneIndex(m)
	} else {
		perLOD := rp.MeshToLODPerLOD[lod]
		if m < 0 || int(m) >= len(perLOD) {
			return bone.INDEX_NONE
		}
		i = perLOD[m]
	}
	if i < 0 || int(i) >= rp.GetNumBonesForLOD(lod) {
		return bone.INDEX_NONE
	}
	return i
}

func (rp *ReferencePose) GetMeshBoneIndexFromLODBoneIndexForLOD(lod int, i bone.CompactPoseIndex) bone.MeshIndex {
	meshMap := rp.GetLODBoneIndexToMeshBoneIndexMap(lod)
	if i < 0 || int(i) >= len(meshMap) {
		return bone.INDEX_NONE
	}
	return meshMap[i]
}

// FindLODBoneIndexFromBoneName returns a LOD0 bone index.
func (rp *ReferencePose) FindLODBoneIndexFromBoneName(name string) bone.CompactPoseIndex {
	if i, ok := rp.NameToLOD[name]; ok {
		return i
	}
	return bone.INDEX_NONE
}

// GetBoneName takes a LOD0 bone index.
func (rp *ReferencePose) GetBoneName(i bone.CompactPoseIndex) string {
	if rp.refSkeleton == nil {
		return ""
	}
	return rp.refSkeleton.GetBoneName(rp.GetMeshBoneIndexFromLODBoneIndex(i))
}

func (rp *ReferencePose) GetBoneNameForLOD(lod int, i bone.CompactPoseIndex) string {
	if rp.refSkeleton == nil {
		return ""
	}
	return rp.refSkeleton.GetBoneName(rp.GetMeshBoneIndexFromLODBoneIndexForLOD(lod, i))
}

func (rp *ReferencePose) String() string {
	name := "<none>"
	if rp.mesh != nil {
		name = rp.mesh.Name
	}
	return fmt.Sprintf("RefPose(%s lods=%v fast=%v)", name, rp.LODNumBones, rp.FastPath)
}
