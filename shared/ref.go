package shared

import (
	"unsafe"

	"github.com/zeebo/errs/v2"

	"github.com/histdb/memcore/lifetime"
	"github.com/histdb/memcore/logging"
)

// Ref is an owning handle that always refers to an object. The zero value
// is not a valid Ref; one is only obtained from NewRef, MustRef, MakeRef,
// Ptr.ToRef or Clone. Release ends it.
type Ref[T any] struct {
	_ [0]func() // no equality

	p Ptr[T]
}

// NewRef returns a reference to the object of p, failing if p is null.
func NewRef[T any](p Ptr[T]) (Ref[T], error) {
	if p.m == nil {
		return Ref[T]{}, errs.Errorf("shared: reference from a null pointer")
	}
	return Ref[T]{p: Ptr[T]{m: p.m, v: p.v, h: acquire(p.m, 1)}}, nil
}

// MustRef is like NewRef but a null p is fatal.
func MustRef[T any](p Ptr[T]) Ref[T] {
	r, err := NewRef(p)
	if err != nil {
		logging.Fatal(err.Error())
	}
	return r
}

// MakeRef allocates a block holding v and returns a reference to it.
func MakeRef[V any](v V) Ref[*V] {
	return Ref[*V]{p: Make(v)}
}

func (r Ref[T]) check() {
	if r.p.m == nil {
		logging.Fatal("shared: use of an unset reference")
	}
}

// Get returns the view of the object.
func (r Ref[T]) Get() T {
	r.check()
	return r.p.v
}

func (r Ref[T]) UseCount() uint32 {
	r.check()
	return r.p.m.Strong()
}

func (r Ref[T]) Unique() bool { return r.UseCount() == 1 }

func (r Ref[T]) Addr() unsafe.Pointer {
	r.check()
	return r.p.m.Addr()
}

func (r Ref[T]) Clone() Ref[T] {
	r.check()
	return Ref[T]{p: Ptr[T]{m: r.p.m, v: r.p.v, h: acquire(r.p.m, 1)}}
}

// Assign makes r refer to the object of src, releasing its old object.
func (r *Ref[T]) Assign(src Ref[T]) {
	src.check()
	r.p.Assign(src.p)
}

func (r *Ref[T]) Swap(o *Ref[T]) { r.p.Swap(&o.p) }

// Ptr returns a new strong nullable pointer to the object.
func (r Ref[T]) Ptr() Ptr[T] {
	r.check()
	return Ptr[T]{m: r.p.m, v: r.p.v, h: acquire(r.p.m, 1)}
}

// Release drops the reference. r must not be used afterwards.
func (r *Ref[T]) Release() {
	r.check()
	r.p.Reset()
}

func (r Ref[T]) Traces() lifetime.Traces {
	r.check()
	return r.p.m.Traces()
}

// CastRef is Cast for references.
func CastRef[U, T any](r Ref[T]) Ref[U] {
	r.check()
	return Ref[U]{p: Cast[U](r.p)}
}
