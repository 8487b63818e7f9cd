package refpose

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/mogaika/animnext/bone"
	"github.com/mogaika/animnext/skeleton"
)

// Generate builds the reference pose of a mesh. component may be nil; when
// set, GetSourceLODLevel follows its predicted LOD.
//
// LOD bones are ordered by the lowest quality LOD that still needs them, then
// by mesh index. Parents are needed by every LOD that needs their children,
// so parents stay before children, and nested LOD bone sets become prefixes
// of the LOD0 order.
func Generate(mesh *skeleton.SkeletalMesh, component *skeleton.MeshComponent) (*ReferencePose, error) {
	if mesh == nil || mesh.RefSkeleton == nil {
		return nil, errors.New("no skeletal mesh")
	}
	if mesh.NumLODs() == 0 {
		return nil, errors.Errorf("mesh %q has no lods", mesh.Name)
	}
	ref := mesh.RefSkeleton
	numMeshBones := ref.Num()
	numLODs := mesh.NumLODs()

	inLOD := make([][]bool, numLODs)
	lowestLOD := make([]int, numMeshBones)
	for i := range lowestLOD {
		lowestLOD[i] = -1
	}
	for lod, info := range mesh.LODs {
		inLOD[lod] = make([]bool, numMeshBones)
		for _, m := range info.RequiredBones {
			inLOD[lod][m] = true
			lowestLOD[m] = lod
		}
	}

	lodNumBones := make([]int, numLODs)
	for lod, info := range mesh.LODs {
		lodNumBones[lod] = len(info.RequiredBones)
		if lod > 0 && lodNumBones[lod] > lodNumBones[lod-1] {
			return nil, errors.Errorf("mesh %q: lod %d needs %d bones, more than lod %d", mesh.Name, lod, lodNumBones[lod], lod-1)
		}
		for _, m := range info.RequiredBones {
			if !inLOD[0][m] {
				return nil, errors.Errorf("mesh %q: bone %q of lod %d is missing from lod 0", mesh.Name, ref.GetBoneName(m), lod)
			}
		}
	}

	order := make([]bone.MeshIndex, 0, lodNumBones[0])
	for m := 0; m < numMeshBones; m++ {
		if lowestLOD[m] >= 0 {
			order = append(order, bone.MeshIndex(m))
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return lowestLOD[order[i]] > lowestLOD[order[j]]
	})

	// nested sets: every lod is exactly the bones needed at that lod or lower quality
	fastPath := true
	for lod := range mesh.LODs {
		n := 0
		for _, m := range order {
			if lowestLOD[m] >= lod {
				n++
			}
		}
		if n != lodNumBones[lod] {
			fastPath = false
			break
		}
	}

	lodOrders := [][]bone.MeshIndex{order}
	if !fastPath {
		for lod := 1; lod < numLODs; lod++ {
			lodOrder := make([]bone.MeshIndex, 0, lodNumBones[lod])
			for _, m := range order {
				if inLOD[lod][m] {
					lodOrder = append(lodOrder, m)
				}
			}
			lodOrders = append(lodOrders, lodOrder)
		}
	}

	t := Tables{
		LODNumBones:   lodNumBones,
		FastPath:      fastPath,
		NameToLOD:     make(map[string]bone.CompactPoseIndex, len(order)),
		MeshToLOD:     meshToLODTable(numMeshBones, order),
		SkeletonToLOD: make([]bone.CompactPoseIndex, mesh.Skeleton.RefSkeleton.Num()),
	}
	for i := range t.SkeletonToLOD {
		t.SkeletonToLOD[i] = bone.INDEX_NONE
	}
	for i, m := range order {
		t.NameToLOD[ref.GetBoneName(m)] = bone.CompactPoseIndex(i)
		if s := mesh.MeshToSkeletonIndex(m); s.IsValid() {
			t.SkeletonToLOD[s] = bone.CompactPoseIndex(i)
		}
	}

	for _, lodOrder := range lodOrders {
		meshToLOD := meshToLODTable(numMeshBones, lodOrder)
		if !fastPath {
			t.MeshToLODPerLOD = append(t.MeshToLODPerLOD, meshToLOD)
		}

		parents := make([]uint16, len(lodOrder))
		skeletonMap := make([]bone.SkeletonIndex, len(lodOrder))
		for i, m := range lodOrder {
			parents[i] = bone.PACKED_NONE
			if p := ref.GetParentIndex(m); p.IsValid() {
				parents[i] = bone.Pack(int(meshToLOD[p]))
			}
			skeletonMap[i] = mesh.MeshToSkeletonIndex(m)
		}
		t.ParentMaps = append(t.ParentMaps, parents)
		t.MeshMaps = append(t.MeshMaps, lodOrder)
		t.SkeletonMaps = append(t.SkeletonMaps, skeletonMap)
	}

	rp := &ReferencePose{
		skeleton:  mesh.Skeleton,
		mesh:      mesh,
		component: component,
	}
	rp.Initialize(ref, t)
	return rp, nil
}

func meshToLODTable(numMeshBones int, order []bone.MeshIndex) []bone.CompactPoseIndex {
	table := make([]bone.CompactPoseIndex, numMeshBones)
	for i := range table {
		table[i] = bone.INDEX_NONE
	}
	for i, m := range order {
		table[m] = bone.CompactPoseIndex(i)
	}
	return table
}

// GenerateForComponent uses the component's current mesh.
func GenerateForComponent(component *skeleton.MeshComponent) (*ReferencePose, error) {
	if component == nil {
		return nil, errors.New("no component")
	}
	return Generate(component.SkeletalMesh(), component)
}
