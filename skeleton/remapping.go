package skeleton

import (
	"sync"

	"github.com/google/uuid"

	"github.com/mogaika/animnext/bone"
)

// SkeletonRemapping maps bones of one skeleton asset onto another by name.
type SkeletonRemapping struct {
	Source *Skeleton
	Target *Skeleton

	sourceToTarget []bone.SkeletonIndex
}

func NewSkeletonRemapping(source, target *Skeleton) *SkeletonRemapping {
	r := &SkeletonRemapping{
		Source:         source,
		Target:         target,
		sourceToTarget: make([]bone.SkeletonIndex, source.RefSkeleton.Num()),
	}
	for i, bi := range source.RefSkeleton.BoneInfo() {
		r.sourceToTarget[i] = bone.SkeletonIndex(target.RefSkeleton.FindBoneIndex(bi.Name))
	}
	return r
}

func (r *SkeletonRemapping) GetTargetSkeletonBoneIndex(source bone.SkeletonIndex) bone.SkeletonIndex {
	if source < 0 || int(source) >= len(r.sourceToTarget) {
		return bone.INDEX_NONE
	}
	return r.sourceToTarget[source]
}

type remappingKey struct {
	source, target uuid.UUID
}

// RemappingRegistry caches remappings between skeleton assets. Safe for
// concurrent use.
type RemappingRegistry struct {
	mu    sync.RWMutex
	cache map[remappingKey]*SkeletonRemapping
}

func NewRemappingRegistry() *RemappingRegistry {
	return &RemappingRegistry{cache: make(map[remappingKey]*SkeletonRemapping)}
}

// GetRemapping returns nil when either skeleton is nil or both are the same
// asset: no remapping is needed then.
func (rr *RemappingRegistry) GetRemapping(source, target *Skeleton) *SkeletonRemapping {
	if source == nil || target == nil || source.ID == target.ID {
		return nil
	}
	key := remappingKey{source.ID, target.ID}

	rr.mu.RLock()
	r, ok := rr.cache[key]
	rr.mu.RUnlock()
	if ok {
		return r
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()
	if r, ok := rr.cache[key]; ok {
		return r
	}
	r = NewSkeletonRemapping(source, target)
	rr.cache[key] = r
	return r
}
