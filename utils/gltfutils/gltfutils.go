package gltfutils

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

// Joint is a skin joint in parent-first order. Parent is -1 for the root.
type Joint struct {
	Name        string
	Parent      int
	Translation [3]float32
	Rotation    [4]float32 // x y z w
	Scale       [3]float32
}

func NewDocument() *gltf.Document {
	return gltf.NewDocument()
}

func Open(path string) (*gltf.Document, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open gltf '%s'", path)
	}
	return doc, nil
}

// SkinJoints returns the joints of a skin sorted so that parents precede
// children. The skin must have a single root joint.
func SkinJoints(doc *gltf.Document, skinIndex int) ([]Joint, error) {
	if skinIndex < 0 || skinIndex >= len(doc.Skins) {
		return nil, errors.Errorf("skin index %d out of range [0, %d)", skinIndex, len(doc.Skins))
	}
	skin := doc.Skins[skinIndex]
	if len(skin.Joints) == 0 {
		return nil, errors.Errorf("skin %d has no joints", skinIndex)
	}

	isJoint := make(map[uint32]bool, len(skin.Joints))
	for _, nodeIndex := range skin.Joints {
		if int(nodeIndex) >= len(doc.Nodes) {
			return nil, errors.Errorf("joint node %d out of range", nodeIndex)
		}
		isJoint[nodeIndex] = true
	}

	nodeParent := make(map[uint32]uint32, len(doc.Nodes))
	for iNode, node := range doc.Nodes {
		for _, child := range node.Children {
			nodeParent[child] = uint32(iNode)
		}
	}

	// nearest ancestor that is a joint too
	jointParent := func(nodeIndex uint32) (uint32, bool) {
		for {
			p, ok := nodeParent[nodeIndex]
			if !ok {
				return 0, false
			}
			if isJoint[p] {
				return p, true
			}
			nodeIndex = p
		}
	}

	children := make(map[uint32][]uint32)
	var roots []uint32
	for _, nodeIndex := range skin.Joints {
		if p, ok := jointParent(nodeIndex); ok {
			children[p] = append(children[p], nodeIndex)
		} else {
			roots = append(roots, nodeIndex)
		}
	}
	if len(roots) != 1 {
		return nil, errors.Errorf("skin %d has %d root joints, expected 1", skinIndex, len(roots))
	}

	joints := make([]Joint, 0, len(skin.Joints))
	nodeToJoint := make(map[uint32]int, len(skin.Joints))
	queue := []uint32{roots[0]}
	for len(queue) > 0 {
		nodeIndex := queue[0]
		queue = queue[1:]

		node := doc.Nodes[nodeIndex]
		j := Joint{
			Name:        node.Name,
			Parent:      -1,
			Translation: node.Translation,
			Rotation:    node.Rotation,
			Scale:       node.Scale,
		}
		if j.Name == "" {
			j.Name = fmt.Sprintf("joint_%d", nodeIndex)
		}
		if j.Rotation == [4]float32{} {
			j.Rotation = [4]float32{0, 0, 0, 1}
		}
		if j.Scale == [3]float32{} {
			j.Scale = [3]float32{1, 1, 1}
		}
		if p, ok := jointParent(nodeIndex); ok {
			j.Parent = nodeToJoint[p]
		}

		nodeToJoint[nodeIndex] = len(joints)
		joints = append(joints, j)
		queue = append(queue, children[nodeIndex]...)
	}
	return joints, nil
}

// AddSkin appends joints as a node hierarchy plus a skin referencing them.
// Joints must be parent-first. Returns the skin index.
func AddSkin(doc *gltf.Document, name string, joints []Joint) int {
	base := uint32(len(doc.Nodes))
	skin := &gltf.Skin{Name: name, Joints: make([]uint32, len(joints))}
	for i, j := range joints {
		node := &gltf.Node{
			Name:        j.Name,
			Translation: j.Translation,
			Rotation:    j.Rotation,
			Scale:       j.Scale,
		}
		doc.Nodes = append(doc.Nodes, node)
		skin.Joints[i] = base + uint32(i)
		if j.Parent >= 0 {
			parent := doc.Nodes[base+uint32(j.Parent)]
			parent.Children = append(parent.Children, base+uint32(i))
		}
	}
	if len(doc.Scenes) != 0 && len(joints) != 0 {
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, base)
	}
	doc.Skins = append(doc.Skins, skin)
	return len(doc.Skins) - 1
}

func ExportBinary(w io.Writer, doc *gltf.Document) error {
	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return encoder.Encode(doc)
}
