package evalvm

import (
	"fmt"

	"github.com/mogaika/animnext/attribute"
	"github.com/mogaika/animnext/lodpose"
	"github.com/mogaika/animnext/transform"
)

// Keyframe is a pose with its curves and attributes.
type Keyframe struct {
	Pose       *lodpose.HeapPose
	Curves     attribute.Curves
	Attributes attribute.Container
}

func NewKeyframe(layout transform.Layout) *Keyframe {
	return &Keyframe{Pose: lodpose.NewHeapPose(layout)}
}

func (kf *Keyframe) IsAdditive() bool { return kf.Pose.IsAdditive() }

// Clone deep copies the keyframe into a new buffer of the same layout.
func (kf *Keyframe) Clone() *Keyframe {
	layout := transform.LayoutSoA
	if v := kf.Pose.LocalTransforms; v != nil {
		layout = v.Layout()
	}
	out := NewKeyframe(layout)
	if kf.Pose.RefPose != nil {
		out.Pose.PrepareForLOD(kf.Pose.RefPose, kf.Pose.LODLevel, false, kf.IsAdditive())
		out.Pose.CopyFrom(&kf.Pose.Pose)
	}
	out.Curves.CopyFrom(&kf.Curves)
	out.Attributes.CopyFrom(&kf.Attributes)
	return out
}

func (kf *Keyframe) String() string {
	return fmt.Sprintf("Keyframe{%d bones, %d curves, %d attributes, %v}",
		kf.Pose.GetNumBones(), kf.Curves.Num(), kf.Attributes.Num(), kf.Pose.Flags)
}

func checkSameBones(task string, a, b *Keyframe) {
	if a.Pose.GetNumBones() != b.Pose.GetNumBones() {
		panic(fmt.Sprintf("evalvm: %s inputs have %d and %d bones", task, a.Pose.GetNumBones(), b.Pose.GetNumBones()))
	}
}
