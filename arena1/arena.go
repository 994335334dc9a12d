// Package arena1 is a slab for small populations. Where arena starts with a
// full batch, arena1 starts with a couple of slots and doubles, so a slab
// that only ever holds a handful of values stays a handful of values big.
package arena1

import (
	"unsafe"

	"github.com/histdb/memcore/sizeof"
)

// T is not safe for concurrent use.
type T[V any] struct {
	_ [0]func() // no equality

	s    []*slot[V] // slot 0 is never handed out
	next uint32
	free []uint32
	n    int
}

type slot[V any] struct {
	v    V
	live bool
}

func (a *T[V]) Size() uint64 {
	return 0 +
		/* buf  */ uint64(len(a.s))*uint64(unsafe.Sizeof(slot[V]{})) +
		/* s    */ sizeof.Slice(a.s) +
		/* next */ 4 +
		/* free */ sizeof.Slice(a.free) +
		/* n    */ 8 +
		0
}

func (a *T[V]) Allocated() uint32 { return a.next }

// Len returns the number of live slots.
func (a *T[V]) Len() int { return a.n }

type tag[V any] struct{}

// P names a slot. The zero P names nothing.
type P[V any] struct {
	_ tag[V]
	v uint32
}

func Raw[V any](v uint32) P[V] { return P[V]{v: v} }
func (p P[V]) Raw() uint32     { return p.v }
func (p P[V]) Valid() bool     { return p.v != 0 }

// Get returns the value of p. Slots are allocated one by one so the address
// survives growth.
func (a *T[V]) Get(p P[V]) *V { return &a.s[p.v].v }

// New hands out a zeroed slot.
func (a *T[V]) New() (p P[V]) {
	if n := len(a.free); n > 0 {
		p.v = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.next++
		p.v = a.next
		if int(p.v) >= len(a.s) {
			a.realloc(p.v)
		}
	}

	a.s[p.v].live = true
	a.n++
	return p
}

//go:noinline
func (a *T[V]) realloc(v uint32) {
	t := 2 * len(a.s)
	if t == 0 {
		t = 2
	}
	for int(v) >= t {
		t *= 2
	}
	next := make([]*slot[V], t)
	fill(next[copy(next, a.s):])
	a.s = next
}

func fill[V any](x []*slot[V]) {
	for i := range x {
		x[i] = new(slot[V])
	}
}

// Free zeroes the slot and makes it available to New again.
func (a *T[V]) Free(p P[V]) {
	if p.v == 0 || int(p.v) >= len(a.s) || !a.s[p.v].live {
		return
	}
	*a.s[p.v] = slot[V]{}
	a.free = append(a.free, p.v)
	a.n--
}

// Reset zeroes every slot handed out and forgets them. Slots are kept.
func (a *T[V]) Reset() {
	for v := uint32(1); v <= a.next; v++ {
		*a.s[v] = slot[V]{}
	}
	a.next = 0
	a.free = a.free[:0]
	a.n = 0
}

// Each calls fn with every live slot in ascending handle order until fn
// returns false.
func (a *T[V]) Each(fn func(P[V], *V) bool) {
	for v := uint32(1); v <= a.next; v++ {
		if s := a.s[v]; s.live && !fn(P[V]{v: v}, &s.v) {
			return
		}
	}
}
