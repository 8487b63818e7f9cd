// Package evalvm evaluates animation as a sequence of tasks over named
// stacks. Blend tasks pop keyframes, combine them and push one result.
package evalvm

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mogaika/animnext/refpose"
	"github.com/mogaika/animnext/skeleton"
	"github.com/mogaika/animnext/transform"
)

const KEYFRAME_STACK_NAME = "AnimNext_KeyframeStack"

// EvaluationFlags select which parts of a keyframe a pass computes.
type EvaluationFlags uint8

const (
	FLAG_BONES EvaluationFlags = 1 << iota
	FLAG_CURVES
	FLAG_ATTRIBUTES

	FLAGS_NONE EvaluationFlags = 0
	FLAGS_ALL                  = FLAG_BONES | FLAG_CURVES | FLAG_ATTRIBUTES
)

func (f EvaluationFlags) String() string {
	if f == FLAGS_NONE {
		return "None"
	}
	var parts []string
	for i, name := range []string{"Bones", "Curves", "Attributes"} {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

type Option func(*VM)

func WithLogger(log logrus.FieldLogger) Option {
	return func(vm *VM) { vm.log = log }
}

func WithFlags(flags EvaluationFlags) Option {
	return func(vm *VM) { vm.flags = flags }
}

func WithLayout(layout transform.Layout) Option {
	return func(vm *VM) { vm.layout = layout }
}

func WithRemappingRegistry(rr *skeleton.RemappingRegistry) Option {
	return func(vm *VM) { vm.remapping = rr }
}

// VM holds the stacks of one evaluation pass. It is not safe for concurrent
// use; run independent passes on separate VMs.
type VM struct {
	refPose   *refpose.ReferencePose
	lod       int
	flags     EvaluationFlags
	layout    transform.Layout
	remapping *skeleton.RemappingRegistry
	log       logrus.FieldLogger

	stacks map[string][]any
}

func New(refPose *refpose.ReferencePose, lod int, opts ...Option) *VM {
	if refPose == nil || !refPose.IsValid() {
		panic("evalvm: VM needs a valid reference pose")
	}
	vm := &VM{
		refPose: refPose,
		lod:     lod,
		flags:   FLAGS_ALL,
		layout:  transform.LayoutSoA,
		log:     logrus.StandardLogger(),
		stacks:  make(map[string][]any),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

func (vm *VM) GetReferencePose() *refpose.ReferencePose { return vm.refPose }
func (vm *VM) GetCurrentLOD() int                       { return vm.lod }
func (vm *VM) GetFlags() EvaluationFlags                { return vm.flags }
func (vm *VM) GetLayout() transform.Layout              { return vm.layout }
func (vm *VM) GetRemappingRegistry() *skeleton.RemappingRegistry {
	return vm.remapping
}
func (vm *VM) Logger() logrus.FieldLogger { return vm.log }

func (vm *VM) IsEnabled(f EvaluationFlags) bool { return vm.flags&f == f }

// SetLOD changes the LOD new reference keyframes are prepared for.
func (vm *VM) SetLOD(lod int) { vm.lod = lod }

func (vm *VM) StackDepth(name string) int { return len(vm.stacks[name]) }

// Reset empties every stack.
func (vm *VM) Reset() {
	for name := range vm.stacks {
		delete(vm.stacks, name)
	}
}

func PushValue[T any](vm *VM, name string, v T) {
	vm.stacks[name] = append(vm.stacks[name], v)
}

// PopValue pops the top value of the stack. A value of another type on top
// is a programming error.
func PopValue[T any](vm *VM, name string) (T, bool) {
	v, ok := PeekValue[T](vm, name, 0)
	if ok {
		s := vm.stacks[name]
		s[len(s)-1] = nil
		vm.stacks[name] = s[:len(s)-1]
	}
	return v, ok
}

// PeekValue returns the value offset entries below the top.
func PeekValue[T any](vm *VM, name string, offset int) (T, bool) {
	var zero T
	s := vm.stacks[name]
	i := len(s) - 1 - offset
	if offset < 0 || i < 0 {
		return zero, false
	}
	v, ok := s[i].(T)
	if !ok {
		panic(fmt.Sprintf("evalvm: stack %q holds %T, read as %v", name, s[i], reflect.TypeOf(&zero).Elem()))
	}
	return v, true
}

func (vm *VM) PushKeyframe(kf *Keyframe) { PushValue(vm, KEYFRAME_STACK_NAME, kf) }

func (vm *VM) PopKeyframe() (*Keyframe, bool) { return PopValue[*Keyframe](vm, KEYFRAME_STACK_NAME) }

func (vm *VM) PeekKeyframe(offset int) (*Keyframe, bool) {
	return PeekValue[*Keyframe](vm, KEYFRAME_STACK_NAME, offset)
}

// MakeReferenceKeyframe returns a keyframe at the reference pose of the
// current LOD, or at the additive identity.
func (vm *VM) MakeReferenceKeyframe(isAdditive bool) *Keyframe {
	kf := NewKeyframe(vm.layout)
	kf.Pose.PrepareForLOD(vm.refPose, vm.lod, true, isAdditive)
	return kf
}

// MakeUninitializedKeyframe sizes the pose without writing transforms.
func (vm *VM) MakeUninitializedKeyframe(isAdditive bool) *Keyframe {
	kf := NewKeyframe(vm.layout)
	kf.Pose.PrepareForLOD(vm.refPose, vm.lod, false, isAdditive)
	return kf
}

// Run executes the tasks in order.
func (vm *VM) Run(program Program) {
	for _, task := range program {
		task.Execute(vm)
	}
}
