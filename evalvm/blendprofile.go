package evalvm

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/mogaika/animnext/bone"
	"github.com/mogaika/animnext/refpose"
	"github.com/mogaika/animnext/skeleton"
	"github.com/mogaika/animnext/transform"
)

type BlendProfileEntry struct {
	Bone   bone.SkeletonIndex
	Weight float32
}

// BlendProfile assigns blend weights to bones of a skeleton asset. A bone
// without an entry uses the weight of its closest ancestor that has one, or
// Default.
type BlendProfile struct {
	Name     string
	Skeleton *skeleton.Skeleton
	Entries  []BlendProfileEntry
	Default  float32
}

// NewBlendProfile builds a profile from weights keyed by bone name.
func NewBlendProfile(name string, skel *skeleton.Skeleton, def float32, weights map[string]float32) (*BlendProfile, error) {
	if skel == nil || skel.RefSkeleton == nil {
		return nil, errors.Errorf("blend profile %q has no skeleton", name)
	}
	bp := &BlendProfile{Name: name, Skeleton: skel, Default: def}
	for boneName, w := range weights {
		m := skel.RefSkeleton.FindBoneIndex(boneName)
		if !m.IsValid() {
			return nil, errors.Errorf("blend profile %q: no bone %q in skeleton %q", name, boneName, skel.Name)
		}
		bp.Entries = append(bp.Entries, BlendProfileEntry{Bone: bone.SkeletonIndex(m), Weight: w})
	}
	sort.Slice(bp.Entries, func(i, j int) bool { return bp.Entries[i].Bone < bp.Entries[j].Bone })
	return bp, nil
}

// Resolve maps the profile onto the bones of rp at lod. Profiles authored
// for another skeleton are remapped by bone name, through rr when set.
// Bones missing from the pose's skeleton are dropped. A nil profile weights
// every bone 1.
func (bp *BlendProfile) Resolve(rp *refpose.ReferencePose, lod int, rr *skeleton.RemappingRegistry) transform.PerBoneWeights {
	if bp == nil || rp == nil {
		return transform.PerBoneWeights{Default: 1}
	}
	pw := transform.PerBoneWeights{Default: bp.Default}

	var remapping *skeleton.SkeletonRemapping
	if target := rp.GetSkeleton(); rr != nil {
		remapping = rr.GetRemapping(bp.Skeleton, target)
	} else if target != nil && target.ID != bp.Skeleton.ID {
		remapping = skeleton.NewSkeletonRemapping(bp.Skeleton, target)
	}
	skelToWeight := make(map[bone.SkeletonIndex]int32, len(bp.Entries))
	for _, e := range bp.Entries {
		s := e.Bone
		if remapping != nil {
			s = remapping.GetTargetSkeletonBoneIndex(s)
			if !s.IsValid() {
				continue
			}
		}
		skelToWeight[s] = int32(len(pw.Weights))
		pw.Weights = append(pw.Weights, e.Weight)
	}

	lodToSkeleton := rp.GetLODBoneIndexToSkeletonBoneIndexMap(lod)
	parents := rp.GetLODBoneIndexToParentLODBoneIndexMap(lod)
	pw.BoneToWeightIndex = make([]int32, len(lodToSkeleton))
	for i, s := range lodToSkeleton {
		wi, ok := skelToWeight[s]
		if !ok {
			wi = bone.INDEX_NONE
			// parents come first in lod order
			if p := bone.Unpack(parents[i]); p.IsValid() {
				wi = pw.BoneToWeightIndex[p]
			}
		}
		pw.BoneToWeightIndex[i] = wi
	}
	return pw
}

// scaled returns pw with every weight, Default included, multiplied by s.
func scaled(pw transform.PerBoneWeights, s float32) transform.PerBoneWeights {
	out := pw
	out.Weights = make([]float32, len(pw.Weights))
	for i, w := range pw.Weights {
		out.Weights[i] = w * s
	}
	out.Default = pw.Default * s
	return out
}
