// Package lodpose binds a transform buffer to a reference pose and a LOD.
package lodpose

import (
	"fmt"
	"strings"

	"github.com/mogaika/animnext/bone"
	"github.com/mogaika/animnext/refpose"
	"github.com/mogaika/animnext/transform"
	"github.com/mogaika/animnext/utils"
)

type Flags uint8

const (
	FLAG_ADDITIVE Flags = 1 << iota
	FLAG_MESH_SPACE_ADDITIVE
	FLAG_LOCAL_SPACE_ADDITIVE
	FLAG_DISABLE_RETARGETING
	FLAG_USE_RAW_DATA
	FLAG_USE_SOURCE_DATA

	FLAGS_NONE Flags = 0

	additiveFlags = FLAG_ADDITIVE | FLAG_MESH_SPACE_ADDITIVE | FLAG_LOCAL_SPACE_ADDITIVE
)

var flagNames = []string{"Additive", "MeshSpaceAdditive", "LocalSpaceAdditive", "DisableRetargeting", "UseRawData", "UseSourceData"}

func (f Flags) Has(o Flags) bool { return f&o == o }

func (f Flags) String() string {
	if f == FLAGS_NONE {
		return "None"
	}
	var parts []string
	for i, name := range flagNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// Pose is a view over LocalTransforms bound to RefPose at LODLevel. It does
// not own the transforms; HeapPose and StackPose do. A zero Pose is unbound
// and its queries return empty results.
type Pose struct {
	LocalTransforms transform.View
	RefPose         *refpose.ReferencePose
	LODLevel        int
	Flags           Flags
}

func (p *Pose) IsValid() bool {
	return p.RefPose != nil && p.LocalTransforms != nil &&
		p.LocalTransforms.Num() == p.RefPose.GetNumBonesForLOD(p.LODLevel)
}

func (p *Pose) IsAdditive() bool { return p.Flags.Has(FLAG_ADDITIVE) }

func (p *Pose) GetNumBones() int {
	if p.LocalTransforms == nil {
		return 0
	}
	return p.LocalTransforms.Num()
}

func (p *Pose) GetRefPose() *refpose.ReferencePose { return p.RefPose }

// ShouldPrepareForLOD reports whether the pose must be prepared again to
// serve refPose at lod.
func (p *Pose) ShouldPrepareForLOD(refPose *refpose.ReferencePose, lod int, isAdditive bool) bool {
	return p.RefPose != refPose || p.LODLevel != lod || p.IsAdditive() != isAdditive || p.LocalTransforms == nil
}

func (p *Pose) bind(refPose *refpose.ReferencePose, lod int, view transform.View, isAdditive bool) {
	p.RefPose = refPose
	p.LODLevel = lod
	p.LocalTransforms = view
	if isAdditive {
		p.Flags |= FLAG_ADDITIVE
	} else {
		p.Flags &^= additiveFlags
	}
}

// SetRefPose fills [start, start+count) with the reference pose, or with the
// additive identity. A negative count means the rest of the buffer.
func (p *Pose) SetRefPose(isAdditive bool, start, count int) {
	if p.LocalTransforms == nil {
		return
	}
	if count < 0 {
		count = p.LocalTransforms.Num() - start
	}
	if isAdditive || p.RefPose == nil {
		transform.SetIdentity(p.LocalTransforms, isAdditive, start, count)
		return
	}
	refs := p.RefPose.GetRefPoseTransforms(p.LODLevel)
	if start < 0 || count < 0 || start+count > p.LocalTransforms.Num() || start+count > len(refs) {
		panic(fmt.Sprintf("lodpose: ref pose range [%d, %d) out of %d bones", start, start+count, p.LocalTransforms.Num()))
	}
	transform.CopyTransforms(p.LocalTransforms.Slice(start, count), transform.AoSView{Transforms: refs[start : start+count]}, 0, -1)
}

// CopyFrom copies source into this pose. Both must share the reference pose.
// A higher quality source gives a subset of its bones, a lower quality one
// leaves the bones it never computed at the reference pose.
func (p *Pose) CopyFrom(source *Pose) {
	if p.RefPose != source.RefPose {
		panic("lodpose: copy between poses of different reference poses")
	}
	p.Flags = source.Flags
	if p.LocalTransforms == nil || source.LocalTransforms == nil {
		return
	}

	if source.LODLevel == p.LODLevel {
		transform.CopyTransforms(p.LocalTransforms, source.LocalTransforms, 0, -1)
		return
	}

	if p.RefPose.IsFastPath() {
		n := p.GetNumBones()
		if source.GetNumBones() < n {
			p.SetRefPose(p.IsAdditive(), source.GetNumBones(), -1)
			n = source.GetNumBones()
		}
		transform.CopyTransforms(p.LocalTransforms.Slice(0, n), source.LocalTransforms, 0, -1)
		return
	}

	// per lod tables do not share prefixes, go through mesh indices
	meshMap := p.RefPose.GetLODBoneIndexToMeshBoneIndexMap(p.LODLevel)
	for i, m := range meshMap {
		j := p.RefPose.GetLODBoneIndexFromMeshBoneIndexForLOD(source.LODLevel, m)
		if j.IsValid() {
			p.LocalTransforms.Set(i, source.LocalTransforms.Get(j.Int()))
		} else {
			p.SetRefPose(p.IsAdditive(), i, 1)
		}
	}
}

func (p *Pose) NormalizeRotations() {
	if p.LocalTransforms != nil {
		transform.NormalizeRotations(p.LocalTransforms)
	}
}

func (p *Pose) GetLODBoneIndexToParentLODBoneIndexMap() []uint16 {
	if p.RefPose == nil {
		return nil
	}
	return p.RefPose.GetLODBoneIndexToParentLODBoneIndexMap(p.LODLevel)
}

func (p *Pose) GetLODBoneIndexToMeshBoneIndexMap() []bone.MeshIndex {
	if p.RefPose == nil {
		return nil
	}
	return p.RefPose.GetLODBoneIndexToMeshBoneIndexMap(p.LODLevel)
}

func (p *Pose) GetLODBoneIndexToSkeletonBoneIndexMap() []bone.SkeletonIndex {
	if p.RefPose == nil {
		return nil
	}
	return p.RefPose.GetLODBoneIndexToSkeletonBoneIndexMap(p.LODLevel)
}

func (p *Pose) GetSkeletonBoneIndexToLODBoneIndexMap() []bone.CompactPoseIndex {
	if p.RefPose == nil {
		return nil
	}
	return p.RefPose.GetSkeletonBoneIndexToLODBoneIndexMap()
}

func (p *Pose) GetLODBoneParentIndex(i bone.CompactPoseIndex) bone.CompactPoseIndex {
	if p.RefPose == nil {
		return bone.INDEX_NONE
	}
	return p.RefPose.GetLODParentBoneIndex(p.LODLevel, i)
}

// FindLODBoneIndexFromBoneName returns the bone index in this pose's LOD.
func (p *Pose) FindLODBoneIndexFromBoneName(name string) bone.CompactPoseIndex {
	if p.RefPose == nil || p.RefPose.GetReferenceSkeleton() == nil {
		return bone.INDEX_NONE
	}
	m := p.RefPose.GetReferenceSkeleton().FindBoneIndex(name)
	if !m.IsValid() {
		return bone.INDEX_NONE
	}
	return p.RefPose.GetLODBoneIndexFromMeshBoneIndexForLOD(p.LODLevel, m)
}

func (p *Pose) GetBoneName(i bone.CompactPoseIndex) string {
	if p.RefPose == nil {
		return ""
	}
	return p.RefPose.GetBoneNameForLOD(p.LODLevel, i)
}

// IsBoneChildOf reports whether parent is an ancestor of child.
func (p *Pose) IsBoneChildOf(child, parent bone.CompactPoseIndex) bool {
	parents := p.GetLODBoneIndexToParentLODBoneIndexMap()
	if parents == nil || !child.IsValid() || int(child) >= len(parents) {
		return false
	}
	for i := bone.Unpack(parents[child]); i.IsValid(); i = bone.Unpack(parents[i]) {
		if i == parent {
			return true
		}
	}
	return false
}

func (p *Pose) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Pose lod=%d bones=%d flags=%v", p.LODLevel, p.GetNumBones(), p.Flags)
	if p.RefPose != nil {
		fmt.Fprintf(&sb, " %v", p.RefPose)
	}
	sb.WriteByte('\n')
	for i := 0; i < p.GetNumBones(); i++ {
		fmt.Fprintf(&sb, "  %3d %-24s %s\n", i, p.GetBoneName(bone.CompactPoseIndex(i)), describeTransform(p.LocalTransforms.Get(i)))
	}
	return sb.String()
}

// describeTransform prints the rotation as euler degrees.
func describeTransform(t transform.Transform) string {
	e := utils.RadiansToDegreeV3(utils.QuatToEuler(t.Rotation))
	return fmt.Sprintf("pos(%.3f %.3f %.3f) euler(%.1f %.1f %.1f) scale(%.3f %.3f %.3f)",
		t.Translation[0], t.Translation[1], t.Translation[2],
		e[0], e[1], e[2],
		t.Scale3D[0], t.Scale3D[1], t.Scale3D[2])
}

// Dump is a spew dump of the pose, including the raw layout.
func (p *Pose) Dump() string {
	return utils.SDump(p.LODLevel, p.Flags, p.LocalTransforms)
}

// Buffer is a pose that owns its storage and can be prepared for a LOD.
type Buffer interface {
	PrepareForLOD(refPose *refpose.ReferencePose, lod int, setRefPose, isAdditive bool)
	GetPose() *Pose
}

func (p *Pose) GetPose() *Pose { return p }

// HeapPose owns growable storage that is reused across frames.
type HeapPose struct {
	Pose
	layout  transform.Layout
	storage transform.Array
}

func NewHeapPose(layout transform.Layout) *HeapPose {
	return &HeapPose{layout: layout}
}

// PrepareForLOD sizes the buffer for lod and optionally seeds it with the
// reference pose.
func (hp *HeapPose) PrepareForLOD(refPose *refpose.ReferencePose, lod int, setRefPose, isAdditive bool) {
	n := refPose.GetNumBonesForLOD(lod)
	if hp.storage == nil {
		hp.storage = transform.NewArray(hp.layout, n)
	} else {
		hp.storage.SetNum(n)
	}
	hp.bind(refPose, lod, hp.storage.View(), isAdditive)
	if setRefPose {
		hp.SetRefPose(isAdditive, 0, -1)
	}
}

// StackPose takes its storage from a scratch stack. The buffer lives until
// the enclosing scratch mark is released.
type StackPose struct {
	Pose
	layout transform.Layout
	stack  *transform.ScratchStack
}

func NewStackPose(stack *transform.ScratchStack, layout transform.Layout) *StackPose {
	return &StackPose{stack: stack, layout: layout}
}

func (sp *StackPose) PrepareForLOD(refPose *refpose.ReferencePose, lod int, setRefPose, isAdditive bool) {
	sp.bind(refPose, lod, sp.stack.Alloc(sp.layout, refPose.GetNumBonesForLOD(lod)), isAdditive)
	if setRefPose {
		sp.SetRefPose(isAdditive, 0, -1)
	}
}
