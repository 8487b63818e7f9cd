package skeleton

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/mogaika/animnext/bone"
	"github.com/mogaika/animnext/transform"
	"github.com/mogaika/animnext/utils/gltfutils"
)

// LoadGLTF builds a single LOD skeletal mesh from a glTF skin.
func LoadGLTF(path string, skinIndex int) (*SkeletalMesh, error) {
	doc, err := gltfutils.Open(path)
	if err != nil {
		return nil, err
	}
	mesh, err := MeshFromGLTF(doc, skinIndex)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't load skin %d of '%s'", skinIndex, path)
	}
	return mesh, nil
}

func MeshFromGLTF(doc *gltf.Document, skinIndex int) (*SkeletalMesh, error) {
	joints, err := gltfutils.SkinJoints(doc, skinIndex)
	if err != nil {
		return nil, err
	}

	infos := make([]BoneInfo, len(joints))
	pose := make([]transform.Transform, len(joints))
	for i, j := range joints {
		infos[i] = BoneInfo{Name: j.Name, ParentIndex: bone.MeshIndex(j.Parent)}
		pose[i] = transform.New(
			mgl32.Quat{W: j.Rotation[3], V: mgl32.Vec3{j.Rotation[0], j.Rotation[1], j.Rotation[2]}}.Normalize(),
			j.Translation,
			j.Scale)
	}

	ref, err := NewReferenceSkeleton(infos, pose)
	if err != nil {
		return nil, err
	}

	name := doc.Skins[skinIndex].Name
	if name == "" {
		name = "skin"
	}
	return NewSkeletalMesh(name, ref, nil, nil)
}
