package registry

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/mogaika/animnext/utils"
)

// TypeDescriptor describes how blocks of one element type are sized and
// destroyed. A type is registered once per registry.
type TypeDescriptor struct {
	Type      reflect.Type
	Size      int
	Align     int
	Stride    int
	BlockSize int

	destroy func(mem any)
}

func newTypeDescriptor(t reflect.Type, blockSize int, destroy func(mem any)) *TypeDescriptor {
	size, align := int(t.Size()), t.Align()
	return &TypeDescriptor{
		Type:      t,
		Size:      size,
		Align:     align,
		Stride:    utils.AlignSize(size, align),
		BlockSize: blockSize,
		destroy:   destroy,
	}
}

func (td *TypeDescriptor) HasDestructor() bool { return td.destroy != nil }

func (td *TypeDescriptor) String() string {
	return fmt.Sprintf("%v size=%d align=%d stride=%d", td.Type, td.Size, td.Align, td.Stride)
}

// Allocator provides the element memory of blocks. mem is a []T of the
// descriptor's type.
type Allocator interface {
	Alloc(td *TypeDescriptor, n int) (mem any)
	Free(td *TypeDescriptor, mem any, n int)
}

type reflectAllocator struct{}

func (reflectAllocator) Alloc(td *TypeDescriptor, n int) any {
	return reflect.MakeSlice(reflect.SliceOf(td.Type), n, n).Interface()
}

func (reflectAllocator) Free(td *TypeDescriptor, mem any, n int) {}

// DefaultAllocator allocates through reflect and leaves freeing to the
// garbage collector.
var DefaultAllocator Allocator = reflectAllocator{}

// Block is a reference counted array of elements of one type.
type Block struct {
	registry *Registry
	desc     *TypeDescriptor
	mem      any
	num      int
	refs     atomic.Int32
}

func (b *Block) Num() int              { return b.num }
func (b *Block) Type() *TypeDescriptor { return b.desc }
func (b *Block) Bytes() int            { return b.num * b.desc.Stride }
func (b *Block) RefCount() int         { return int(b.refs.Load()) }

func (b *Block) String() string {
	return fmt.Sprintf("Block[%v x%d refs=%d]", b.desc.Type, b.num, b.RefCount())
}

// Handle shares ownership of a block. The zero Handle is invalid. Copying a
// Handle value does not add a reference, use Clone.
type Handle struct {
	block *Block
}

func (h Handle) IsValid() bool { return h.block != nil }
func (h Handle) Block() *Block { return h.block }
func (h Handle) Num() int {
	if h.block == nil {
		return 0
	}
	return h.block.num
}

// Clone adds a reference. Cloning an invalid handle gives an invalid handle.
func (h Handle) Clone() Handle {
	if h.block == nil {
		return Handle{}
	}
	if n := h.block.refs.Add(1); n <= 1 {
		panic(fmt.Sprintf("registry: clone of released %v", h.block))
	}
	return h
}

// Release drops the reference and invalidates h. The block is freed by the
// release that drops the last reference.
func (h *Handle) Release() {
	b := h.block
	if b == nil {
		return
	}
	h.block = nil
	n := b.refs.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("registry: negative reference count on %v", b))
	}
	if n == 0 {
		b.registry.freeBlock(b)
	}
}

// Move transfers the reference to the returned handle and invalidates h.
func (h *Handle) Move() Handle {
	out := *h
	h.block = nil
	return out
}

func elements[T any](h Handle) []T {
	if h.block == nil {
		panic("registry: access through invalid handle")
	}
	s, ok := h.block.mem.([]T)
	if !ok {
		panic(fmt.Sprintf("registry: %v accessed as %v", h.block.desc.Type, reflect.TypeOf((*T)(nil)).Elem()))
	}
	return s
}

// GetSlice returns the elements of the block. T must be the block's type.
func GetSlice[T any](h Handle) []T { return elements[T](h) }

// GetPtr returns the first element, or nil for an invalid or empty handle.
func GetPtr[T any](h Handle) *T {
	if h.block == nil || h.block.num == 0 {
		return nil
	}
	return &elements[T](h)[0]
}

// GetRef returns the first element and panics where GetPtr returns nil.
func GetRef[T any](h Handle) *T {
	p := GetPtr[T](h)
	if p == nil {
		panic("registry: GetRef on invalid or empty handle")
	}
	return p
}
