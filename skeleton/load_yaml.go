package skeleton

import (
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/animnext/transform"
	"github.com/mogaika/animnext/utils"
)

type yamlBone struct {
	Name        string    `yaml:"name"`
	Parent      string    `yaml:"parent"`
	Translation []float32 `yaml:"translation"`
	Rotation    []float32 `yaml:"rotation"` // euler degrees
	Quat        []float32 `yaml:"quat"`     // x y z w
	Scale       []float32 `yaml:"scale"`
}

type yamlMesh struct {
	Name     string     `yaml:"name"`
	Skeleton string     `yaml:"skeleton"`
	Bones    []yamlBone `yaml:"bones"`
	LODs     [][]string `yaml:"lods"`
}

func LoadYAMLFile(path string) (*SkeletalMesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open skeleton '%s'", path)
	}
	defer f.Close()

	mesh, err := LoadYAML(f)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't load skeleton '%s'", path)
	}
	return mesh, nil
}

// LoadYAML reads a skeletal mesh description. Bones are listed parent first;
// every LOD names its bones, no LODs means one LOD with all bones.
func LoadYAML(r io.Reader) (*SkeletalMesh, error) {
	var desc yamlMesh
	if err := yaml.NewDecoder(r).Decode(&desc); err != nil {
		return nil, errors.Wrap(err, "Can't decode yaml")
	}

	bones := make([]BoneDesc, len(desc.Bones))
	for i, yb := range desc.Bones {
		t, err := yb.transform()
		if err != nil {
			return nil, errors.Wrapf(err, "bone %d %q", i, yb.Name)
		}
		bones[i] = BoneDesc{Name: yb.Name, Parent: yb.Parent, Transform: t}
	}

	skelName := desc.Skeleton
	if skelName == "" {
		skelName = desc.Name
	}
	return BuildMesh(desc.Name, skelName, bones, desc.LODs)
}

func (yb *yamlBone) transform() (transform.Transform, error) {
	t := transform.Identity
	if yb.Translation != nil {
		if len(yb.Translation) != 3 {
			return t, errors.Errorf("translation needs 3 components, got %d", len(yb.Translation))
		}
		t.Translation = mgl32.Vec3{yb.Translation[0], yb.Translation[1], yb.Translation[2]}
	}
	if yb.Scale != nil {
		if len(yb.Scale) != 3 {
			return t, errors.Errorf("scale needs 3 components, got %d", len(yb.Scale))
		}
		t.Scale3D = mgl32.Vec3{yb.Scale[0], yb.Scale[1], yb.Scale[2]}
	}
	switch {
	case yb.Quat != nil && yb.Rotation != nil:
		return t, errors.New("both rotation and quat are set")
	case yb.Quat != nil:
		if len(yb.Quat) != 4 {
			return t, errors.Errorf("quat needs 4 components, got %d", len(yb.Quat))
		}
		t.Rotation = mgl32.Quat{W: yb.Quat[3], V: mgl32.Vec3{yb.Quat[0], yb.Quat[1], yb.Quat[2]}}.Normalize()
	case yb.Rotation != nil:
		if len(yb.Rotation) != 3 {
			return t, errors.Errorf("rotation needs 3 components, got %d", len(yb.Rotation))
		}
		t.Rotation = utils.EulerToQuat(mgl32.Vec3{yb.Rotation[0], yb.Rotation[1], yb.Rotation[2]})
	}
	return t, nil
}
