// Package skeleton models the assets and scene objects the pose core consumes:
// reference skeletons, skeleton assets, skeletal meshes with per-LOD bone
// sets, mesh components with a predicted LOD, and the world that owns them.
package skeleton

import (
	"github.com/pkg/errors"

	"github.com/mogaika/animnext/bone"
	"github.com/mogaika/animnext/transform"
)

type BoneInfo struct {
	Name        string
	ParentIndex bone.MeshIndex
}

// ReferenceSkeleton is a bone hierarchy with its bind pose. Parents always
// come before their children.
type ReferenceSkeleton struct {
	boneInfo    []BoneInfo
	bonePose    []transform.Transform
	nameToIndex map[string]bone.MeshIndex
}

func NewReferenceSkeleton(infos []BoneInfo, pose []transform.Transform) (*ReferenceSkeleton, error) {
	if len(infos) == 0 {
		return nil, errors.New("reference skeleton without bones")
	}
	if len(infos) != len(pose) {
		return nil, errors.Errorf("%d bones but %d bind pose transforms", len(infos), len(pose))
	}
	if len(infos) >= bone.PACKED_NONE {
		return nil, errors.Errorf("too many bones: %d", len(infos))
	}

	rs := &ReferenceSkeleton{
		boneInfo:    append([]BoneInfo(nil), infos...),
		bonePose:    append([]transform.Transform(nil), pose...),
		nameToIndex: make(map[string]bone.MeshIndex, len(infos)),
	}
	for i, bi := range infos {
		if i == 0 {
			if bi.ParentIndex != bone.INDEX_NONE {
				return nil, errors.Errorf("root bone %q has parent %d", bi.Name, bi.ParentIndex)
			}
		} else if bi.ParentIndex < 0 || int(bi.ParentIndex) >= i {
			return nil, errors.Errorf("bone %d %q has parent %d, parents must precede children", i, bi.Name, bi.ParentIndex)
		}
		if _, exists := rs.nameToIndex[bi.Name]; exists {
			return nil, errors.Errorf("duplicate bone name %q", bi.Name)
		}
		rs.nameToIndex[bi.Name] = bone.MeshIndex(i)
	}
	return rs, nil
}

func (rs *ReferenceSkeleton) Num() int                           { return len(rs.boneInfo) }
func (rs *ReferenceSkeleton) BoneInfo() []BoneInfo               { return rs.boneInfo }
func (rs *ReferenceSkeleton) RefBonePose() []transform.Transform { return rs.bonePose }

func (rs *ReferenceSkeleton) IsValidIndex(i bone.MeshIndex) bool {
	return i >= 0 && int(i) < len(rs.boneInfo)
}

func (rs *ReferenceSkeleton) FindBoneIndex(name string) bone.MeshIndex {
	if i, ok := rs.nameToIndex[name]; ok {
		return i
	}
	return bone.INDEX_NONE
}

func (rs *ReferenceSkeleton) GetBoneName(i bone.MeshIndex) string {
	if !rs.IsValidIndex(i) {
		return ""
	}
	return rs.boneInfo[i].Name
}

func (rs *ReferenceSkeleton) GetParentIndex(i bone.MeshIndex) bone.MeshIndex {
	if !rs.IsValidIndex(i) {
		return bone.INDEX_NONE
	}
	return rs.boneInfo[i].ParentIndex
}
