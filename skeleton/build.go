package skeleton

import (
	"github.com/pkg/errors"

	"github.com/mogaika/animnext/bone"
	"github.com/mogaika/animnext/transform"
)

// BoneDesc names a bone and its parent, empty for the root.
type BoneDesc struct {
	Name      string
	Parent    string
	Transform transform.Transform
}

// BuildMesh creates a skeletal mesh and its own skeleton asset. Bones are
// listed parent first, lods name the required bones of every LOD.
func BuildMesh(name, skeletonName string, bones []BoneDesc, lods [][]string) (*SkeletalMesh, error) {
	infos := make([]BoneInfo, len(bones))
	pose := make([]transform.Transform, len(bones))
	indexByName := make(map[string]bone.MeshIndex, len(bones))
	for i, b := range bones {
		if b.Name == "" {
			return nil, errors.Errorf("bone %d has no name", i)
		}
		infos[i] = BoneInfo{Name: b.Name, ParentIndex: bone.INDEX_NONE}
		if b.Parent != "" {
			p, ok := indexByName[b.Parent]
			if !ok {
				return nil, errors.Errorf("bone %q: parent %q is not defined before it", b.Name, b.Parent)
			}
			infos[i].ParentIndex = p
		}
		indexByName[b.Name] = bone.MeshIndex(i)
		pose[i] = b.Transform
	}

	ref, err := NewReferenceSkeleton(infos, pose)
	if err != nil {
		return nil, err
	}

	lodInfos := make([]LODInfo, len(lods))
	for iLod, names := range lods {
		for _, n := range names {
			idx := ref.FindBoneIndex(n)
			if idx == bone.INDEX_NONE {
				return nil, errors.Errorf("lod %d: unknown bone %q", iLod, n)
			}
			lodInfos[iLod].RequiredBones = append(lodInfos[iLod].RequiredBones, idx)
		}
	}

	if skeletonName == "" {
		skeletonName = name
	}
	return NewSkeletalMesh(name, ref, NewSkeleton(skeletonName, ref), lodInfos)
}
