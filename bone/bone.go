// Package bone holds the bone index types of the three index spaces a pose
// can be addressed in. Each space is its own type so an index from one space
// cannot be passed where another is expected without an explicit conversion.
package bone

import "math"

const (
	INDEX_NONE      = -1
	ROOT_BONE_INDEX = 0

	// PACKED_NONE marks "no parent" inside packed uint16 parent tables.
	PACKED_NONE = math.MaxUint16
)

// CompactPoseIndex addresses a bone inside a LOD pose (LOD bone index).
type CompactPoseIndex int32

// MeshIndex addresses a bone of the skeletal mesh reference skeleton.
type MeshIndex int32

// SkeletonIndex addresses a bone of the skeleton asset.
type SkeletonIndex int32

func (i CompactPoseIndex) IsValid() bool { return i >= 0 }
func (i CompactPoseIndex) IsRoot() bool  { return i == ROOT_BONE_INDEX }
func (i CompactPoseIndex) Int() int      { return int(i) }

func (i MeshIndex) IsValid() bool { return i >= 0 }
func (i MeshIndex) IsRoot() bool  { return i == ROOT_BONE_INDEX }
func (i MeshIndex) Int() int      { return int(i) }

func (i SkeletonIndex) IsValid() bool { return i >= 0 }
func (i SkeletonIndex) IsRoot() bool  { return i == ROOT_BONE_INDEX }
func (i SkeletonIndex) Int() int      { return int(i) }

// Unpack converts a packed table entry into a LOD bone index.
func Unpack(v uint16) CompactPoseIndex {
	if v == PACKED_NONE {
		return INDEX_NONE
	}
	return CompactPoseIndex(v)
}

// Pack stores an index in a packed table entry. Negative indices become PACKED_NONE.
func Pack(i int) uint16 {
	if i < 0 {
		return PACKED_NONE
	}
	if i >= PACKED_NONE {
		panic("bone: index does not fit in packed table")
	}
	return uint16(i)
}
