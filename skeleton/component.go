package skeleton

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

type DelegateHandle uint64

type delegateList struct {
	mu   sync.Mutex
	next DelegateHandle
	fns  map[DelegateHandle]func()
}

func (dl *delegateList) add(fn func()) DelegateHandle {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.fns == nil {
		dl.fns = make(map[DelegateHandle]func())
	}
	dl.next++
	dl.fns[dl.next] = fn
	return dl.next
}

func (dl *delegateList) remove(h DelegateHandle) {
	dl.mu.Lock()
	delete(dl.fns, h)
	dl.mu.Unlock()
}

func (dl *delegateList) len() int {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return len(dl.fns)
}

// broadcast calls every delegate outside the lock, so a delegate may
// unregister itself.
func (dl *delegateList) broadcast() {
	dl.mu.Lock()
	fns := make([]func(), 0, len(dl.fns))
	for _, fn := range dl.fns {
		fns = append(fns, fn)
	}
	dl.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// MeshComponent is a scene instance of a skeletal mesh.
type MeshComponent struct {
	ID uuid.UUID

	mu   sync.RWMutex
	mesh *SkeletalMesh

	predictedLOD         atomic.Int32
	requiredBonesChanged delegateList
}

func NewMeshComponent(mesh *SkeletalMesh) *MeshComponent {
	return &MeshComponent{ID: uuid.New(), mesh: mesh}
}

func (c *MeshComponent) SkeletalMesh() *SkeletalMesh {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mesh
}

// SetSkeletalMesh swaps the mesh; the required bones change with it.
func (c *MeshComponent) SetSkeletalMesh(mesh *SkeletalMesh) {
	c.mu.Lock()
	c.mesh = mesh
	c.mu.Unlock()
	c.requiredBonesChanged.broadcast()
}

// PredictedLOD may change between frames.
func (c *MeshComponent) PredictedLOD() int       { return int(c.predictedLOD.Load()) }
func (c *MeshComponent) SetPredictedLOD(lod int) { c.predictedLOD.Store(int32(lod)) }

func (c *MeshComponent) AddRequiredBonesChanged(fn func()) DelegateHandle {
	return c.requiredBonesChanged.add(fn)
}

func (c *MeshComponent) RemoveRequiredBonesChanged(h DelegateHandle) {
	c.requiredBonesChanged.remove(h)
}

func (c *MeshComponent) NumRequiredBonesChangedDelegates() int {
	return c.requiredBonesChanged.len()
}

func (c *MeshComponent) MarkRequiredBonesDirty() {
	c.requiredBonesChanged.broadcast()
}
