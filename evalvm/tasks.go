package evalvm

import (
	"github.com/mogaika/animnext/lodpose"
	"github.com/mogaika/animnext/refpose"
	"github.com/mogaika/animnext/remap"
	"github.com/mogaika/animnext/transform"
)

// Task is one step of an evaluation program.
type Task interface {
	Name() string
	Execute(vm *VM)
}

type Program []Task

// popTwo pops input B from the top, then input A. A lone keyframe is pushed
// back untouched and ok is false.
func popTwo(vm *VM, task string) (a, b *Keyframe, ok bool) {
	b, ok = vm.PopKeyframe()
	if !ok {
		vm.log.WithField("task", task).Debug("No keyframe to blend")
		return nil, nil, false
	}
	a, ok = vm.PopKeyframe()
	if !ok {
		vm.PushKeyframe(b)
		vm.log.WithField("task", task).Debug("Single keyframe passed through")
		return nil, nil, false
	}
	return a, b, true
}

func popOne(vm *VM, task string) (*Keyframe, bool) {
	kf, ok := vm.PopKeyframe()
	if !ok {
		vm.log.WithField("task", task).Debug("No keyframe to blend")
	}
	return kf, ok
}

type PushReferenceKeyframeTask struct {
	IsAdditive bool
}

func (t PushReferenceKeyframeTask) Name() string { return "PushReferenceKeyframe" }

func (t PushReferenceKeyframeTask) Execute(vm *VM) {
	vm.PushKeyframe(vm.MakeReferenceKeyframe(t.IsAdditive))
}

// PushKeyframeTask pushes a copy of Keyframe, so one program can run many
// times.
type PushKeyframeTask struct {
	Keyframe *Keyframe
}

func (t PushKeyframeTask) Name() string { return "PushKeyframe" }

func (t PushKeyframeTask) Execute(vm *VM) {
	if t.Keyframe == nil {
		vm.log.WithField("task", t.Name()).Debug("Nothing to push")
		return
	}
	vm.PushKeyframe(t.Keyframe.Clone())
}

// ApplyAdditiveKeyframeTask pops an additive keyframe (B) and its base (A)
// and pushes the base with the additive applied. A non additive B turns the
// result into the reference pose.
type ApplyAdditiveKeyframeTask struct {
	Alpha Alpha
}

func (t ApplyAdditiveKeyframeTask) Name() string { return "ApplyAdditiveKeyframe" }

func (t ApplyAdditiveKeyframeTask) Execute(vm *VM) {
	base, additive, ok := popTwo(vm, t.Name())
	if !ok {
		return
	}
	if !additive.IsAdditive() {
		vm.log.WithField("task", t.Name()).Warn("Additive input is not additive, using reference pose")
		vm.PushKeyframe(vm.MakeReferenceKeyframe(false))
		return
	}
	checkSameBones(t.Name(), base, additive)

	w := t.Alpha.Resolve(base, additive)
	if vm.IsEnabled(FLAG_BONES) {
		bp, ap := base.Pose, additive.Pose
		if ap.Flags.Has(lodpose.FLAG_MESH_SPACE_ADDITIVE) {
			transform.BlendWithIdentityAndAccumulateMesh(bp.LocalTransforms, ap.LocalTransforms, bp.GetLODBoneIndexToParentLODBoneIndexMap(), w)
		} else {
			transform.BlendWithIdentityAndAccumulate(bp.LocalTransforms, ap.LocalTransforms, w)
		}
	}
	if vm.IsEnabled(FLAG_CURVES) {
		base.Curves.Accumulate(&additive.Curves, w)
	}
	if vm.IsEnabled(FLAG_ATTRIBUTES) {
		base.Attributes.Accumulate(&additive.Attributes, w)
	}
	vm.PushKeyframe(base)
}

// BlendTwoKeyframesTask pops B and A and pushes lerp(A, B, alpha).
type BlendTwoKeyframesTask struct {
	Alpha Alpha
}

func (t BlendTwoKeyframesTask) Name() string { return "BlendTwoKeyframes" }

func (t BlendTwoKeyframesTask) Execute(vm *VM) {
	a, b, ok := popTwo(vm, t.Name())
	if !ok {
		return
	}
	checkSameBones(t.Name(), a, b)

	w := t.Alpha.Resolve(a, b)
	if vm.IsEnabled(FLAG_BONES) {
		transform.BlendTwo(a.Pose.LocalTransforms, a.Pose.LocalTransforms, b.Pose.LocalTransforms, w)
	}
	if vm.IsEnabled(FLAG_CURVES) {
		a.Curves.Blend(&a.Curves, &b.Curves, w)
	}
	if vm.IsEnabled(FLAG_ATTRIBUTES) {
		a.Attributes.Blend(&a.Attributes, &b.Attributes, w)
	}
	vm.PushKeyframe(a)
}

// BlendOverwriteKeyframeWithScaleTask scales the top keyframe by alpha. It
// starts a weighted sum finished by BlendAddKeyframeWithScaleTask steps.
type BlendOverwriteKeyframeWithScaleTask struct {
	Alpha Alpha
}

func (t BlendOverwriteKeyframeWithScaleTask) Name() string { return "BlendOverwriteKeyframeWithScale" }

func (t BlendOverwriteKeyframeWithScaleTask) Execute(vm *VM) {
	kf, ok := popOne(vm, t.Name())
	if !ok {
		return
	}
	w := t.Alpha.Resolve(kf, nil)
	if vm.IsEnabled(FLAG_BONES) {
		transform.BlendOverwriteWithScale(kf.Pose.LocalTransforms, kf.Pose.LocalTransforms, w)
	}
	if vm.IsEnabled(FLAG_CURVES) {
		kf.Curves.OverrideWithScale(&kf.Curves, w)
	}
	if vm.IsEnabled(FLAG_ATTRIBUTES) {
		kf.Attributes.OverrideWithScale(&kf.Attributes, w)
	}
	vm.PushKeyframe(kf)
}

// BlendAddKeyframeWithScaleTask pops B and the running sum A and pushes
// A + B*alpha.
type BlendAddKeyframeWithScaleTask struct {
	Alpha Alpha
}

func (t BlendAddKeyframeWithScaleTask) Name() string { return "BlendAddKeyframeWithScale" }

func (t BlendAddKeyframeWithScaleTask) Execute(vm *VM) {
	a, b, ok := popTwo(vm, t.Name())
	if !ok {
		return
	}
	checkSameBones(t.Name(), a, b)

	w := t.Alpha.Resolve(a, b)
	if vm.IsEnabled(FLAG_BONES) {
		transform.BlendAddWithScale(a.Pose.LocalTransforms, b.Pose.LocalTransforms, w)
	}
	if vm.IsEnabled(FLAG_CURVES) {
		a.Curves.AddWithScale(&b.Curves, w)
	}
	if vm.IsEnabled(FLAG_ATTRIBUTES) {
		a.Attributes.AddWithScale(&b.Attributes, w)
	}
	vm.PushKeyframe(a)
}

func profileWeights(vm *VM, profile *BlendProfile, kf *Keyframe, w float32) transform.PerBoneWeights {
	return scaled(profile.Resolve(kf.Pose.RefPose, kf.Pose.LODLevel, vm.remapping), w)
}

// BlendOverwriteKeyframePerBoneWithScaleTask scales every bone of the top
// keyframe by its profile weight times alpha. Curves and attributes have no
// bone weight and are scaled by alpha.
type BlendOverwriteKeyframePerBoneWithScaleTask struct {
	BlendProfile *BlendProfile
	Alpha        Alpha
}

func (t BlendOverwriteKeyframePerBoneWithScaleTask) Name() string {
	return "BlendOverwriteKeyframePerBoneWithScale"
}

func (t BlendOverwriteKeyframePerBoneWithScaleTask) Execute(vm *VM) {
	kf, ok := popOne(vm, t.Name())
	if !ok {
		return
	}
	w := t.Alpha.Resolve(kf, nil)
	if vm.IsEnabled(FLAG_BONES) {
		weights := profileWeights(vm, t.BlendProfile, kf, w)
		transform.BlendOverwritePerBoneWithScale(kf.Pose.LocalTransforms, kf.Pose.LocalTransforms, weights)
	}
	if vm.IsEnabled(FLAG_CURVES) {
		kf.Curves.OverrideWithScale(&kf.Curves, w)
	}
	if vm.IsEnabled(FLAG_ATTRIBUTES) {
		kf.Attributes.OverrideWithScale(&kf.Attributes, w)
	}
	vm.PushKeyframe(kf)
}

// BlendAddKeyframePerBoneWithScaleTask pops B and the running sum A and adds
// every bone of B scaled by its profile weight times alpha.
type BlendAddKeyframePerBoneWithScaleTask struct {
	BlendProfile *BlendProfile
	Alpha        Alpha
}

func (t BlendAddKeyframePerBoneWithScaleTask) Name() string {
	return "BlendAddKeyframePerBoneWithScale"
}

func (t BlendAddKeyframePerBoneWithScaleTask) Execute(vm *VM) {
	a, b, ok := popTwo(vm, t.Name())
	if !ok {
		return
	}
	checkSameBones(t.Name(), a, b)

	w := t.Alpha.Resolve(a, b)
	if vm.IsEnabled(FLAG_BONES) {
		weights := profileWeights(vm, t.BlendProfile, b, w)
		transform.BlendAddPerBoneWithScale(a.Pose.LocalTransforms, b.Pose.LocalTransforms, weights)
	}
	if vm.IsEnabled(FLAG_CURVES) {
		a.Curves.AddWithScale(&b.Curves, w)
	}
	if vm.IsEnabled(FLAG_ATTRIBUTES) {
		a.Attributes.AddWithScale(&b.Attributes, w)
	}
	vm.PushKeyframe(a)
}

// BlendKeyframePerBoneWithScaleTask pops the blend keyframe B and the base
// A and lerps every bone from A to B by its profile weight times alpha.
type BlendKeyframePerBoneWithScaleTask struct {
	BlendProfile *BlendProfile
	Alpha        Alpha
}

func (t BlendKeyframePerBoneWithScaleTask) Name() string { return "BlendKeyframePerBoneWithScale" }

func (t BlendKeyframePerBoneWithScaleTask) Execute(vm *VM) {
	a, b, ok := popTwo(vm, t.Name())
	if !ok {
		return
	}
	checkSameBones(t.Name(), a, b)

	w := t.Alpha.Resolve(a, b)
	weights := profileWeights(vm, t.BlendProfile, b, w)
	if vm.IsEnabled(FLAG_BONES) {
		dest := a.Pose.LocalTransforms
		transform.BlendOverwritePerBoneWithScale(dest, dest, complement(weights))
		transform.BlendAddPerBoneWithScale(dest, b.Pose.LocalTransforms, weights)
		transform.NormalizeRotations(dest)
	}
	if vm.IsEnabled(FLAG_CURVES) {
		a.Curves.Blend(&a.Curves, &b.Curves, w)
	}
	if vm.IsEnabled(FLAG_ATTRIBUTES) {
		a.Attributes.BlendPerBone(&a.Attributes, &b.Attributes, weights)
	}
	vm.PushKeyframe(a)
}

// complement weights the base side of a per bone lerp. Listed bones flip
// through Invert, which leaves Default alone, so Default is flipped here.
func complement(pw transform.PerBoneWeights) transform.PerBoneWeights {
	pw.Invert = !pw.Invert
	pw.Default = 1 - pw.Default
	return pw
}

// NormalizeKeyframeRotationsTask renormalizes the top keyframe in place.
type NormalizeKeyframeRotationsTask struct{}

func (t NormalizeKeyframeRotationsTask) Name() string { return "NormalizeKeyframeRotations" }

func (t NormalizeKeyframeRotationsTask) Execute(vm *VM) {
	kf, ok := vm.PeekKeyframe(0)
	if !ok {
		return
	}
	if vm.IsEnabled(FLAG_BONES) {
		kf.Pose.NormalizeRotations()
	}
	if vm.IsEnabled(FLAG_ATTRIBUTES) {
		kf.Attributes.Normalize()
	}
}

// RemapKeyframeTask retargets the top keyframe onto Target. The bone
// mapping is rebuilt when the source or target mesh changes.
type RemapKeyframeTask struct {
	Target *refpose.ReferencePose
	Remap  *remap.RemapPoseData
}

func NewRemapKeyframeTask(target *refpose.ReferencePose, opts ...remap.Option) *RemapKeyframeTask {
	return &RemapKeyframeTask{Target: target, Remap: remap.New(opts...)}
}

func (t *RemapKeyframeTask) Name() string { return "RemapKeyframe" }

func (t *RemapKeyframeTask) Execute(vm *VM) {
	kf, ok := popOne(vm, t.Name())
	if !ok {
		return
	}
	source := kf.Pose.RefPose
	if t.Target == nil || source == t.Target || kf.Pose.Flags.Has(lodpose.FLAG_DISABLE_RETARGETING) {
		vm.PushKeyframe(kf)
		return
	}
	if t.Remap.ShouldReinit(source, t.Target) {
		t.Remap.Reinit(source, t.Target)
	}

	out := NewKeyframe(vm.layout)
	t.Remap.RemapPose(&kf.Pose.Pose, out.Pose)
	if vm.IsEnabled(FLAG_CURVES) {
		out.Curves.CopyFrom(&kf.Curves)
	}
	if vm.IsEnabled(FLAG_ATTRIBUTES) {
		t.Remap.RemapAttributes(&kf.Pose.Pose, &kf.Attributes, &out.Pose.Pose, &out.Attributes)
	}
	vm.PushKeyframe(out)
}
