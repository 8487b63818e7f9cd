package skeleton

import (
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mogaika/animnext/bone"
)

// Skeleton is the skeleton asset meshes and animations are authored against.
type Skeleton struct {
	ID          uuid.UUID
	Name        string
	RefSkeleton *ReferenceSkeleton
}

func NewSkeleton(name string, ref *ReferenceSkeleton) *Skeleton {
	return &Skeleton{ID: uuid.New(), Name: name, RefSkeleton: ref}
}

type LODInfo struct {
	// RequiredBones lists the mesh bones evaluated at this LOD, sorted and
	// closed under ancestry.
	RequiredBones []bone.MeshIndex
}

// SkeletalMesh binds a reference skeleton to a skeleton asset and describes
// which bones every LOD needs.
type SkeletalMesh struct {
	ID          uuid.UUID
	Name        string
	RefSkeleton *ReferenceSkeleton
	Skeleton    *Skeleton
	LODs        []LODInfo

	meshToSkeleton []bone.SkeletonIndex
}

// NewSkeletalMesh validates the LOD bone sets. No LODs means a single LOD
// with every bone.
func NewSkeletalMesh(name string, ref *ReferenceSkeleton, skel *Skeleton, lods []LODInfo) (*SkeletalMesh, error) {
	if ref == nil {
		return nil, errors.Errorf("mesh %q without reference skeleton", name)
	}
	if skel == nil {
		skel = NewSkeleton(name, ref)
	}

	if len(lods) == 0 {
		all := make([]bone.MeshIndex, ref.Num())
		for i := range all {
			all[i] = bone.MeshIndex(i)
		}
		lods = []LODInfo{{RequiredBones: all}}
	}

	m := &SkeletalMesh{
		ID:          uuid.New(),
		Name:        name,
		RefSkeleton: ref,
		Skeleton:    skel,
		LODs:        make([]LODInfo, len(lods)),
	}

	for iLod, lod := range lods {
		required := append([]bone.MeshIndex(nil), lod.RequiredBones...)
		sort.Slice(required, func(i, j int) bool { return required[i] < required[j] })

		present := make(map[bone.MeshIndex]struct{}, len(required))
		for i, b := range required {
			if !ref.IsValidIndex(b) {
				return nil, errors.Errorf("mesh %q lod %d: bone index %d out of range", name, iLod, b)
			}
			if i > 0 && required[i-1] == b {
				return nil, errors.Errorf("mesh %q lod %d: bone %d listed twice", name, iLod, b)
			}
			present[b] = struct{}{}
		}
		if len(required) == 0 || required[0] != bone.ROOT_BONE_INDEX {
			return nil, errors.Errorf("mesh %q lod %d: root bone is not required", name, iLod)
		}
		for _, b := range required {
			if p := ref.GetParentIndex(b); p != bone.INDEX_NONE {
				if _, ok := present[p]; !ok {
					return nil, errors.Errorf("mesh %q lod %d: bone %q requires missing parent %q",
						name, iLod, ref.GetBoneName(b), ref.GetBoneName(p))
				}
			}
		}
		m.LODs[iLod].RequiredBones = required
	}

	m.meshToSkeleton = make([]bone.SkeletonIndex, ref.Num())
	for i, bi := range ref.BoneInfo() {
		m.meshToSkeleton[i] = bone.SkeletonIndex(skel.RefSkeleton.FindBoneIndex(bi.Name))
	}
	return m, nil
}

func (m *SkeletalMesh) NumLODs() int { return len(m.LODs) }

// MeshToSkeletonIndex maps a mesh bone onto the skeleton asset by name.
func (m *SkeletalMesh) MeshToSkeletonIndex(i bone.MeshIndex) bone.SkeletonIndex {
	if !m.RefSkeleton.IsValidIndex(i) {
		return bone.INDEX_NONE
	}
	return m.meshToSkeleton[i]
}
