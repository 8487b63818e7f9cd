package skeleton

import (
	"sync"
)

// ComponentHandle is a weak reference to a component owned by a World. It
// stops resolving once the component is destroyed, even if the slot is reused.
type ComponentHandle struct {
	Index      uint32
	Generation uint32
}

func (h ComponentHandle) IsValid() bool { return h.Generation != 0 }

type worldSlot struct {
	generation uint32
	component  *MeshComponent
}

// World owns mesh components. Destroyed components become garbage and
// CollectGarbage notifies whoever caches data keyed by their handles.
type World struct {
	mu    sync.RWMutex
	slots []worldSlot
	free  []uint32

	postGarbageCollect delegateList
}

func NewWorld() *World {
	return &World{}
}

func (w *World) Spawn(c *MeshComponent) ComponentHandle {
	w.mu.Lock()
	defer w.mu.Unlock()

	var index uint32
	if n := len(w.free); n != 0 {
		index = w.free[n-1]
		w.free = w.free[:n-1]
	} else {
		index = uint32(len(w.slots))
		w.slots = append(w.slots, worldSlot{})
	}
	slot := &w.slots[index]
	slot.generation++
	if slot.generation == 0 {
		slot.generation = 1
	}
	slot.component = c
	return ComponentHandle{Index: index, Generation: slot.generation}
}

// Destroy invalidates every handle to the component. Returns false for a stale handle.
func (w *World) Destroy(h ComponentHandle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.aliveLocked(h) {
		return false
	}
	slot := &w.slots[h.Index]
	slot.component = nil
	slot.generation++
	if slot.generation == 0 {
		slot.generation = 1
	}
	w.free = append(w.free, h.Index)
	return true
}

func (w *World) aliveLocked(h ComponentHandle) bool {
	return h.IsValid() && int(h.Index) < len(w.slots) &&
		w.slots[h.Index].generation == h.Generation && w.slots[h.Index].component != nil
}

func (w *World) Resolve(h ComponentHandle) (*MeshComponent, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.aliveLocked(h) {
		return nil, false
	}
	return w.slots[h.Index].component, true
}

func (w *World) IsAlive(h ComponentHandle) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.aliveLocked(h)
}

func (w *World) AddPostGarbageCollect(fn func()) DelegateHandle {
	return w.postGarbageCollect.add(fn)
}

func (w *World) RemovePostGarbageCollect(h DelegateHandle) {
	w.postGarbageCollect.remove(h)
}

func (w *World) NumPostGarbageCollectDelegates() int {
	return w.postGarbageCollect.len()
}

// CollectGarbage runs the post garbage collection delegates.
func (w *World) CollectGarbage() {
	w.postGarbageCollect.broadcast()
}
