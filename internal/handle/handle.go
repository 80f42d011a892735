// Package handle implements stable integer handles into typed object
// pools with free-list reuse, as used throughout the GPU device wrapper
// and the frame graph to refer to pooled resources without holding raw
// pointers across a release.
package handle

import (
	"github.com/nyxforge/framegraph/internal/bitm"
)

// Handle is an opaque, dense index into a Pool.
// The zero value is the reserved invalid handle.
type Handle uint32

// Invalid is the sentinel handle denoting "no object".
const Invalid Handle = 0

// nbit is the granularity of the pool's free-list bitmap.
const nbit = 32

// Pool is a stable-address, handle-indexed container.
// Addresses returned from Get remain valid until the handle is
// released; Pool never moves the objects it stores.
// The zero value is not ready for use; call NewPool.
type Pool[T any] struct {
	slots []T
	used  bitm.Bitm[uint32]
}

// NewPool returns a Pool reserved to hold at least reserve objects
// without needing to grow.
func NewPool[T any](reserve int) Pool[T] {
	var p Pool[T]
	if reserve > 0 {
		n := (reserve + nbit - 1) / nbit
		p.used.Grow(n)
		p.slots = make([]T, n*nbit)
		p.used.Set(0)
	}
	return p
}

// Obtain reserves a slot from the free list (growing the pool if
// necessary), zeroes it, and returns a pointer to it together with
// the handle that identifies it.
// Handle 0 is never returned by Obtain, so Invalid can be used as a
// sentinel by callers that have not yet obtained a handle.
func (p *Pool[T]) Obtain() (*T, Handle) {
	// Slot 0 is permanently reserved so that Handle(0) means invalid.
	if p.used.Len() == 0 {
		p.used.Grow(1)
		p.slots = make([]T, nbit)
		p.used.Set(0)
	}
	i, ok := p.used.Search()
	if !ok {
		base := p.used.Grow(1)
		p.slots = append(p.slots, make([]T, nbit)...)
		i = base
	}
	p.used.Set(i)
	var zero T
	p.slots[i] = zero
	return &p.slots[i], Handle(i)
}

// Get returns a pointer to the object identified by h, or nil if h
// is invalid, out of range, or was released.
func (p *Pool[T]) Get(h Handle) *T {
	i := int(h)
	if h == Invalid || i >= p.used.Len() || !p.used.IsSet(i) {
		return nil
	}
	return &p.slots[i]
}

// Release returns h's slot to the free list. It is a no-op if h is
// already invalid or released. A released handle may be reissued by
// a subsequent Obtain, so callers must not retain h past Release
// without revalidating it through Get.
func (p *Pool[T]) Release(h Handle) {
	i := int(h)
	if h == Invalid || i >= p.used.Len() || !p.used.IsSet(i) {
		return
	}
	p.used.Unset(i)
}

// ForEach calls fn once for every object currently in use, in handle
// order. fn must not call Obtain or Release on p.
func (p *Pool[T]) ForEach(fn func(Handle, *T)) {
	for i := 1; i < p.used.Len(); i++ {
		if p.used.IsSet(i) {
			fn(Handle(i), &p.slots[i])
		}
	}
}

// FreeAllResources releases every in-use slot, leaving the pool's
// capacity intact for reuse.
func (p *Pool[T]) FreeAllResources() {
	n := p.used.Len()
	p.used.Clear()
	if n > 0 {
		p.used.Set(0)
	}
}
