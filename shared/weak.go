package shared

import (
	"reflect"
	"unsafe"

	"github.com/histdb/memcore/block"
	"github.com/histdb/memcore/lifetime"
	"github.com/histdb/memcore/logging"
)

// Weak is a non-owning handle that keeps the block, but not the object,
// alive. The zero value is empty.
type Weak[T any] struct {
	_ [0]func() // no equality

	m *block.Meta
	v T
	h lifetime.Handle
}

// WeakOf returns a weak reference to the object of p.
func WeakOf[T any](p Ptr[T]) Weak[T] {
	if p.m == nil {
		return Weak[T]{}
	}
	return Weak[T]{m: p.m, v: p.v, h: acquireWeak(p.m, 1)}
}

// WeakCast returns a weak reference with the view converted to U.
func WeakCast[U, T any](w Weak[T]) Weak[U] {
	if w.m == nil {
		return Weak[U]{}
	}
	u, ok := any(w.v).(U)
	if !ok {
		logging.Fatalf("shared: cannot cast %T to %v", w.v, reflect.TypeFor[U]())
	}
	return Weak[U]{m: w.m, v: u, h: acquireWeak(w.m, 1)}
}

func (w Weak[T]) UseCount() uint32 {
	if w.m == nil {
		return 0
	}
	return w.m.Strong()
}

func (w Weak[T]) WeakCount() uint32 {
	if w.m == nil {
		return 0
	}
	return w.m.Weak()
}

// Expired reports if the object has been destroyed or w is empty.
func (w Weak[T]) Expired() bool { return w.UseCount() == 0 }

// Lock returns a strong reference to the object if it is still alive and
// a null pointer otherwise.
func (w Weak[T]) Lock() Ptr[T] {
	if w.m == nil || w.m.Strong() == 0 {
		return Ptr[T]{}
	}
	return Ptr[T]{m: w.m, v: w.v, h: acquire(w.m, 1)}
}

func (w Weak[T]) Clone() Weak[T] {
	if w.m == nil {
		return Weak[T]{}
	}
	return Weak[T]{m: w.m, v: w.v, h: acquireWeak(w.m, 1)}
}

func (w *Weak[T]) Move() Weak[T] {
	out := *w
	*w = Weak[T]{}
	return out
}

func (w *Weak[T]) Assign(src Weak[T]) {
	c := src.Clone()
	w.Reset()
	*w = c
}

// Reset releases the weak reference held by w.
func (w *Weak[T]) Reset() {
	if w.m == nil {
		return
	}
	m, h := w.m, w.h
	*w = Weak[T]{}
	m.Untrack(h)
	m.DecWeak()
}

func (w *Weak[T]) Swap(o *Weak[T]) { *w, *o = *o, *w }

// Addr returns the address of the object storage, valid or not.
func (w Weak[T]) Addr() unsafe.Pointer {
	if w.m == nil {
		return nil
	}
	return w.m.Addr()
}

func (w Weak[T]) Traces() lifetime.Traces {
	if w.m == nil {
		return lifetime.Traces{}
	}
	return w.m.Traces()
}

// Observer watches an object without owning it. It can read the object
// while strong references exist but can never extend its life.
type Observer[T any] struct {
	_ [0]func() // no equality

	m *block.Meta
	v T
	h lifetime.Handle
}

// ObserverOf returns an observer of the object of p.
func ObserverOf[T any](p Ptr[T]) Observer[T] {
	if p.m == nil {
		return Observer[T]{}
	}
	return Observer[T]{m: p.m, v: p.v, h: acquireWeak(p.m, 1)}
}

// ObserverFromWeak returns an observer of the object w refers to.
func ObserverFromWeak[T any](w Weak[T]) Observer[T] {
	if w.m == nil {
		return Observer[T]{}
	}
	return Observer[T]{m: w.m, v: w.v, h: acquireWeak(w.m, 1)}
}

// TryGet returns the object while it is alive. The first call that finds
// it destroyed releases the observer's weak reference, and every call
// after that returns false.
func (o *Observer[T]) TryGet() (v T, ok bool) {
	if o.m == nil {
		return v, false
	}
	if o.m.Strong() == 0 {
		o.Reset()
		return v, false
	}
	return o.v, true
}

func (o Observer[T]) UseCount() uint32 {
	if o.m == nil {
		return 0
	}
	return o.m.Strong()
}

func (o Observer[T]) Expired() bool { return o.UseCount() == 0 }

func (o Observer[T]) Clone() Observer[T] {
	if o.m == nil {
		return Observer[T]{}
	}
	return Observer[T]{m: o.m, v: o.v, h: acquireWeak(o.m, 1)}
}

func (o *Observer[T]) Move() Observer[T] {
	out := *o
	*o = Observer[T]{}
	return out
}

func (o *Observer[T]) Assign(src Observer[T]) {
	c := src.Clone()
	o.Reset()
	*o = c
}

func (o *Observer[T]) Swap(p *Observer[T]) { *o, *p = *p, *o }

func (o *Observer[T]) Reset() {
	if o.m == nil {
		return
	}
	m, h := o.m, o.h
	*o = Observer[T]{}
	m.Untrack(h)
	m.DecWeak()
}

func (o Observer[T]) Addr() unsafe.Pointer {
	if o.m == nil {
		return nil
	}
	return o.m.Addr()
}
