// Package registry owns shared evaluation data: reference counted typed
// blocks, reference poses cached per mesh component and named data.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mogaika/animnext/refpose"
	"github.com/mogaika/animnext/skeleton"
)

const DEFAULT_BLOCK_SIZE = 64

// Host owns the components reference poses are cached for. *skeleton.World
// implements it.
type Host interface {
	Resolve(h skeleton.ComponentHandle) (*skeleton.MeshComponent, bool)
	AddPostGarbageCollect(fn func()) skeleton.DelegateHandle
	RemovePostGarbageCollect(h skeleton.DelegateHandle)
}

type Option func(*Registry)

func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Registry) { r.log = log }
}

// WithLeakCheck makes Destroy panic when blocks or named data are still
// alive. Without it the blocks leak and skip their destructors.
func WithLeakCheck(check bool) Option {
	return func(r *Registry) { r.leakCheck = check }
}

func WithDefaultBlockSize(n int) Option {
	return func(r *Registry) { r.defaultBlockSize = n }
}

func WithAllocator(a Allocator) Option {
	return func(r *Registry) { r.allocator = a }
}

type refPoseEntry struct {
	handle    Handle
	component *skeleton.MeshComponent
	delegate  skeleton.DelegateHandle
}

type Registry struct {
	host             Host
	gcDelegate       skeleton.DelegateHandle
	log              logrus.FieldLogger
	allocator        Allocator
	leakCheck        bool
	defaultBlockSize int
	destroyed        atomic.Bool

	typesMu sync.RWMutex
	types   map[reflect.Type]*TypeDescriptor

	blocksMu sync.RWMutex
	blocks   map[*Block]struct{}

	refPosesMu sync.RWMutex
	refPoses   map[skeleton.ComponentHandle]*refPoseEntry

	namedMu sync.RWMutex
	named   map[string]Handle
}

// New creates a registry and subscribes it to the host's garbage collection.
func New(host Host, opts ...Option) *Registry {
	if host == nil {
		panic("registry: nil host")
	}
	r := &Registry{
		host:             host,
		log:              logrus.StandardLogger(),
		allocator:        DefaultAllocator,
		leakCheck:        true,
		defaultBlockSize: DEFAULT_BLOCK_SIZE,
		types:            make(map[reflect.Type]*TypeDescriptor),
		blocks:           make(map[*Block]struct{}),
		refPoses:         make(map[skeleton.ComponentHandle]*refPoseEntry),
		named:            make(map[string]Handle),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.gcDelegate = host.AddPostGarbageCollect(r.HandlePostGarbageCollect)
	return r
}

func (r *Registry) check() {
	if r.destroyed.Load() {
		panic("registry: use after Destroy")
	}
}

// Destroy unsubscribes from the host, releases the cached reference poses,
// checks that nothing else is alive and drops the type table. Blocks
// released afterwards are freed without running destructors.
func (r *Registry) Destroy() {
	r.check()
	r.host.RemovePostGarbageCollect(r.gcDelegate)

	r.refPosesMu.Lock()
	entries := r.refPoses
	r.refPoses = make(map[skeleton.ComponentHandle]*refPoseEntry)
	r.refPosesMu.Unlock()
	for _, e := range entries {
		e.component.RemoveRequiredBonesChanged(e.delegate)
		e.handle.Release()
	}

	r.namedMu.RLock()
	numNamed := len(r.named)
	r.namedMu.RUnlock()
	r.blocksMu.RLock()
	numBlocks := len(r.blocks)
	r.blocksMu.RUnlock()
	if numNamed != 0 || numBlocks != 0 {
		if r.leakCheck {
			panic(fmt.Sprintf("registry: destroyed with %d blocks and %d named entries alive", numBlocks, numNamed))
		}
		r.log.WithFields(logrus.Fields{
			"count": numBlocks,
			"named": numNamed,
		}).Warn("Registry destroyed with live blocks")
	}

	r.typesMu.Lock()
	r.types = nil
	r.typesMu.Unlock()
	r.destroyed.Store(true)
}

func (r *Registry) lookupType(t reflect.Type) *TypeDescriptor {
	r.typesMu.RLock()
	defer r.typesMu.RUnlock()
	return r.types[t]
}

func (r *Registry) registerType(t reflect.Type, destroy func(mem any)) (*TypeDescriptor, bool) {
	if td := r.lookupType(t); td != nil {
		return td, false
	}
	r.typesMu.Lock()
	defer r.typesMu.Unlock()
	if td, ok := r.types[t]; ok {
		return td, false
	}
	td := newTypeDescriptor(t, r.defaultBlockSize, destroy)
	r.types[t] = td
	return td, true
}

// RegisterType registers T with a destructor called for every element of a
// freed block. Registering a type again returns the first descriptor, and an
// error when a different destructor was asked for.
func RegisterType[T any](r *Registry, destructor func(*T)) (*TypeDescriptor, error) {
	r.check()
	t := reflect.TypeOf((*T)(nil)).Elem()
	var destroy func(mem any)
	if destructor != nil {
		destroy = func(mem any) {
			s := mem.([]T)
			for i := range s {
				destructor(&s[i])
			}
		}
	}
	td, created := r.registerType(t, destroy)
	if td.Type != t {
		panic(fmt.Sprintf("registry: descriptor of %v registered for %v", td.Type, t))
	}
	if !created && destructor != nil {
		return td, errors.Errorf("type %v already registered", t)
	}
	return td, nil
}

func (r *Registry) allocate(td *TypeDescriptor, n int) *Block {
	b := &Block{registry: r, desc: td, num: n, mem: r.allocator.Alloc(td, n)}
	b.refs.Store(1)
	r.blocksMu.Lock()
	r.blocks[b] = struct{}{}
	r.blocksMu.Unlock()
	return b
}

func typeFor[T any](r *Registry) *TypeDescriptor {
	td, _ := r.registerType(reflect.TypeOf((*T)(nil)).Elem(), nil)
	return td
}

// PreAllocateMemory allocates n zeroed elements of T, or the type's block
// size when n <= 0. Unregistered types are registered without a destructor.
func PreAllocateMemory[T any](r *Registry, n int) Handle {
	r.check()
	td := typeFor[T](r)
	if n <= 0 {
		n = td.BlockSize
	}
	return Handle{block: r.allocate(td, n)}
}

// AllocateData allocates n elements of T set to init.
func AllocateData[T any](r *Registry, n int, init T) Handle {
	r.check()
	h := Handle{block: r.allocate(typeFor[T](r), n)}
	s := GetSlice[T](h)
	for i := range s {
		s[i] = init
	}
	return h
}

func (r *Registry) freeBlock(b *Block) {
	r.blocksMu.Lock()
	_, tracked := r.blocks[b]
	delete(r.blocks, b)
	r.blocksMu.Unlock()
	if !tracked {
		panic(fmt.Sprintf("registry: free of untracked %v", b))
	}

	// destructors may release handles of their own, so they run unlocked
	r.typesMu.RLock()
	torndown := r.types == nil
	r.typesMu.RUnlock()
	if torndown {
		r.log.WithField("type", b.desc.Type.String()).Debug("Skipped destructor of block released after teardown")
	} else if b.desc.destroy != nil {
		b.desc.destroy(b.mem)
	}
	r.allocator.Free(b.desc, b.mem, b.num)
	b.mem = nil
}

// RegisterReferencePose generates the reference pose of the component's
// mesh and caches it. When another caller cached one first, the fresh pose
// is dropped and the cached one returned. The returned handle holds its own
// reference. It is invalid when the component is gone or its mesh cannot
// produce a reference pose.
func (r *Registry) RegisterReferencePose(ch skeleton.ComponentHandle) Handle {
	r.check()
	component, ok := r.host.Resolve(ch)
	if !ok {
		return Handle{}
	}
	rp, err := refpose.GenerateForComponent(component)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"component": component.ID.String(),
			"error":     err.Error(),
		}).Warn("Can't generate reference pose")
		return Handle{}
	}
	fresh := AllocateData(r, 1, *rp)

	r.refPosesMu.Lock()
	if e, ok := r.refPoses[ch]; ok {
		out := e.handle.Clone()
		r.refPosesMu.Unlock()
		fresh.Release()
		return out
	}
	e := &refPoseEntry{handle: fresh, component: component}
	r.refPoses[ch] = e
	e.delegate = component.AddRequiredBonesChanged(func() { r.RemoveReferencePose(ch) })
	out := fresh.Clone()
	r.refPosesMu.Unlock()
	return out
}

// GetOrGenerateReferencePose returns the cached reference pose or registers
// a new one.
func (r *Registry) GetOrGenerateReferencePose(ch skeleton.ComponentHandle) Handle {
	r.check()
	r.refPosesMu.RLock()
	e, ok := r.refPoses[ch]
	var out Handle
	if ok {
		out = e.handle.Clone()
	}
	r.refPosesMu.RUnlock()
	if ok {
		return out
	}
	return r.RegisterReferencePose(ch)
}

func (r *Registry) RemoveReferencePose(ch skeleton.ComponentHandle) {
	r.refPosesMu.Lock()
	e, ok := r.refPoses[ch]
	delete(r.refPoses, ch)
	r.refPosesMu.Unlock()
	if !ok {
		return
	}
	e.component.RemoveRequiredBonesChanged(e.delegate)
	e.handle.Release()
}

// HandlePostGarbageCollect drops reference poses of components that no
// longer resolve.
func (r *Registry) HandlePostGarbageCollect() {
	var stale []*refPoseEntry
	r.refPosesMu.Lock()
	for ch, e := range r.refPoses {
		if _, alive := r.host.Resolve(ch); !alive {
			stale = append(stale, e)
			delete(r.refPoses, ch)
		}
	}
	r.refPosesMu.Unlock()

	for _, e := range stale {
		e.component.RemoveRequiredBonesChanged(e.delegate)
		e.handle.Release()
	}
	if len(stale) != 0 {
		r.log.WithField("count", len(stale)).Debug("Released reference poses of collected components")
	}
}

// ReferencePose returns the pose held by a handle from RegisterReferencePose
// or GetOrGenerateReferencePose, nil for an invalid handle.
func ReferencePose(h Handle) *refpose.ReferencePose {
	return GetPtr[refpose.ReferencePose](h)
}

// RegisterData publishes h under id. The table keeps its own reference until
// UnregisterData. A previous entry under id is released.
func (r *Registry) RegisterData(id string, h Handle) {
	r.check()
	ref := h.Clone()
	r.namedMu.Lock()
	old, ok := r.named[id]
	r.named[id] = ref
	r.namedMu.Unlock()
	if ok {
		old.Release()
	}
}

func (r *Registry) UnregisterData(id string) bool {
	r.check()
	r.namedMu.Lock()
	h, ok := r.named[id]
	delete(r.named, id)
	r.namedMu.Unlock()
	if ok {
		h.Release()
	}
	return ok
}

// GetRegisteredData returns a new reference to the data under id.
func (r *Registry) GetRegisteredData(id string) (Handle, bool) {
	r.check()
	r.namedMu.RLock()
	defer r.namedMu.RUnlock()
	h, ok := r.named[id]
	if !ok {
		return Handle{}, false
	}
	return h.Clone(), true
}

func (r *Registry) RegisteredDataNames() []string {
	r.namedMu.RLock()
	names := make([]string, 0, len(r.named))
	for id := range r.named {
		names = append(names, id)
	}
	r.namedMu.RUnlock()
	sort.Strings(names)
	return names
}

type Stats struct {
	Blocks         int
	Bytes          int
	Types          int
	ReferencePoses int
	NamedData      int
}

func (r *Registry) Stats() Stats {
	var s Stats
	r.blocksMu.RLock()
	s.Blocks = len(r.blocks)
	for b := range r.blocks {
		s.Bytes += b.Bytes()
	}
	r.blocksMu.RUnlock()
	r.typesMu.RLock()
	s.Types = len(r.types)
	r.typesMu.RUnlock()
	r.refPosesMu.RLock()
	s.ReferencePoses = len(r.refPoses)
	r.refPosesMu.RUnlock()
	r.namedMu.RLock()
	s.NamedData = len(r.named)
	r.namedMu.RUnlock()
	return s
}
