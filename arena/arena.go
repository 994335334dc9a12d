// Package arena is a typed slab: values live in fixed size batches so their
// addresses never move, and are named by small index handles.
package arena

import (
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/histdb/memcore/sizeof"
)

const lBatch = 1024

// T is not safe for concurrent use.
type T[V any] struct {
	_ [0]func() // no equality

	batches []*[lBatch]V
	next    uint32          // highest slot handed out
	free    []uint32        // released slots, reused lifo
	live    *roaring.Bitmap // slots currently handed out
}

func (t *T[V]) Size() uint64 {
	var live uint64
	if t.live != nil {
		live = t.live.GetSizeInBytes()
	}
	return 0 +
		/* batches */ uint64(len(t.batches))*uint64(unsafe.Sizeof([lBatch]V{})) +
		/* ptrs    */ sizeof.Slice(t.batches) +
		/* next    */ 4 +
		/* free    */ sizeof.Slice(t.free) +
		/* live    */ live +
		0
}

// Allocated returns the highest slot ever handed out since the last Reset.
func (t *T[V]) Allocated() uint32 { return t.next }

// Len returns the number of live slots.
func (t *T[V]) Len() int {
	if t.live == nil {
		return 0
	}
	return int(t.live.GetCardinality())
}

type tag[V any] struct{}

// P names a slot. The zero P names nothing.
type P[V any] struct {
	_ tag[V]
	v uint32
}

func Raw[V any](v uint32) P[V] { return P[V]{v: v} }
func (p P[V]) Raw() uint32     { return p.v }
func (p P[V]) Valid() bool     { return p.v != 0 }

func (t *T[V]) Get(p P[V]) *V {
	return &t.batches[p.v/lBatch][p.v%lBatch]
}

// New hands out a zeroed slot.
func (t *T[V]) New() (p P[V]) {
	if t.live == nil {
		t.live = roaring.New()
	}

	if n := len(t.free); n > 0 {
		p.v = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.next++
		p.v = t.next
		for int(p.v/lBatch) >= len(t.batches) {
			t.batches = append(t.batches, new([lBatch]V))
		}
	}

	t.live.Add(p.v)
	return p
}

// Free zeroes the slot and makes it available to New again.
func (t *T[V]) Free(p P[V]) {
	if t.live == nil || !t.live.Contains(p.v) {
		return
	}
	var zero V
	*t.Get(p) = zero
	t.live.Remove(p.v)
	t.free = append(t.free, p.v)
}

// Reset zeroes every slot handed out and forgets them. Batches are kept.
func (t *T[V]) Reset() {
	var zero V
	for v := uint32(1); v <= t.next; v++ {
		t.batches[v/lBatch][v%lBatch] = zero
	}
	t.next = 0
	t.free = t.free[:0]
	if t.live != nil {
		t.live.Clear()
	}
}

// Each calls fn with every live slot in ascending handle order until fn
// returns false.
func (t *T[V]) Each(fn func(P[V], *V) bool) {
	if t.live == nil {
		return
	}
	it := t.live.Iterator()
	for it.HasNext() {
		p := P[V]{v: it.Next()}
		if !fn(p, t.Get(p)) {
			return
		}
	}
}
