// Package shared implements reference counted handles over blocks: owning
// pointers, weak pointers, observers and non-nullable references.
//
// A handle is a *block.Meta plus a view T of the object. Handles made by
// Make have the view *V. Cast converts the view, for example to an
// interface the object implements, while sharing the same counts.
//
// Handles are values. Copying one with = does not take a reference; use
// Clone, Move and Reset to manage ownership. None of the handles are safe
// for concurrent use.
package shared

import (
	"reflect"
	"unsafe"

	"github.com/histdb/memcore/block"
	"github.com/histdb/memcore/lifetime"
	"github.com/histdb/memcore/logging"
)

// Destroyer is run once when the last strong reference to an object is
// released.
type Destroyer = block.Destroyer

// Ptr is an owning, nullable handle. The zero value is null.
type Ptr[T any] struct {
	_ [0]func() // no equality

	m *block.Meta
	v T
	h lifetime.Handle
}

func checkMakeable[V any]() {
	if reflect.TypeFor[V]().Kind() == reflect.Interface {
		logging.Fatal("shared: cannot make an object of interface type")
	}
}

// Make allocates a block holding v and returns the only strong reference
// to it.
func Make[V any](v V) Ptr[*V] {
	checkMakeable[V]()
	b := block.Alloc[V](1)
	*b.Storage() = v
	return adopt(b, 1)
}

// New allocates a block and constructs the object in place with init,
// which may be nil.
func New[V any](init func(*V)) Ptr[*V] {
	checkMakeable[V]()
	b := block.Alloc[V](1)
	if init != nil {
		init(b.Storage())
	}
	return adopt(b, 1)
}

// FromBlock takes the first strong reference to a block returned by
// block.Alloc whose object has been constructed.
func FromBlock[V any](b *block.Block[V]) Ptr[*V] {
	logging.Check(b.Strong() == 0 && b.Weak() == 0 && !b.Freed(),
		"shared: block is already referenced")
	return adopt(b, 1)
}

func adopt[V any](b *block.Block[V], skip int) Ptr[*V] {
	h := acquire(&b.Meta, skip+1)
	return Ptr[*V]{m: &b.Meta, v: b.Storage(), h: h}
}

func acquire(m *block.Meta, skip int) lifetime.Handle {
	m.IncStrong()
	return m.Track(lifetime.Strong, skip+1)
}

func acquireWeak(m *block.Meta, skip int) lifetime.Handle {
	m.IncWeak()
	return m.Track(lifetime.Weak, skip+1)
}

// Get returns the view of the object, or the zero T if p is null.
func (p Ptr[T]) Get() T { return p.v }

func (p Ptr[T]) Valid() bool { return p.m != nil }
func (p Ptr[T]) IsNil() bool { return p.m == nil }

// UseCount returns the number of strong references, zero if p is null.
func (p Ptr[T]) UseCount() uint32 {
	if p.m == nil {
		return 0
	}
	return p.m.Strong()
}

// WeakCount returns the number of weak references and observers.
func (p Ptr[T]) WeakCount() uint32 {
	if p.m == nil {
		return 0
	}
	return p.m.Weak()
}

func (p Ptr[T]) Unique() bool { return p.UseCount() == 1 }

// Addr returns the address of the object, nil if p is null.
func (p Ptr[T]) Addr() unsafe.Pointer {
	if p.m == nil {
		return nil
	}
	return p.m.Addr()
}

// Clone returns a new strong reference to the same object.
func (p Ptr[T]) Clone() Ptr[T] {
	if p.m == nil {
		return Ptr[T]{}
	}
	return Ptr[T]{m: p.m, v: p.v, h: acquire(p.m, 1)}
}

// Move transfers the reference out of p, leaving p null.
func (p *Ptr[T]) Move() Ptr[T] {
	out := *p
	*p = Ptr[T]{}
	return out
}

// Assign makes p a copy of src, releasing what p held before.
func (p *Ptr[T]) Assign(src Ptr[T]) {
	c := src.Clone()
	p.Reset()
	*p = c
}

// Reset releases the reference held by p and makes it null.
func (p *Ptr[T]) Reset() {
	if p.m == nil {
		return
	}
	m, h := p.m, p.h
	*p = Ptr[T]{}
	m.Untrack(h)
	m.DecStrong()
}

func (p *Ptr[T]) Swap(o *Ptr[T]) { *p, *o = *o, *p }

// ToRef returns a new non-nullable reference to the object. p must not be
// null.
func (p Ptr[T]) ToRef() Ref[T] {
	if p.m == nil {
		logging.Fatal("shared: reference from a null pointer")
	}
	return Ref[T]{p: p.Clone()}
}

// Traces returns the lifetime traces of the block, empty if it is not
// tracked.
func (p Ptr[T]) Traces() lifetime.Traces {
	if p.m == nil {
		return lifetime.Traces{}
	}
	return p.m.Traces()
}

// Cast returns a new strong reference to the object of p with its view
// converted to U. Converting to a type the view does not hold is fatal.
func Cast[U, T any](p Ptr[T]) Ptr[U] {
	if p.m == nil {
		return Ptr[U]{}
	}
	u, ok := any(p.v).(U)
	if !ok {
		logging.Fatalf("shared: cannot cast %T to %v", p.v, reflect.TypeFor[U]())
	}
	return Ptr[U]{m: p.m, v: u, h: acquire(p.m, 1)}
}

type addressed interface {
	Addr() unsafe.Pointer
}

// Equal reports if a and b refer to the same object. Two null handles are
// equal.
func Equal(a, b addressed) bool { return a.Addr() == b.Addr() }

// Compare orders handles by the address of their objects, null first.
func Compare(a, b addressed) int {
	x, y := uintptr(a.Addr()), uintptr(b.Addr())
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}
