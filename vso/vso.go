// Package vso implements a vector of variable size objects stored back to
// back in one contiguous byte buffer. Every element is a header followed
// by the object and optional extra bytes. Growing relocates the buffer, so
// elements are addressed by Ref, an offset that survives relocation.
//
// Stored types must be plain data: they embed Plain and hold no Go
// pointers, since the bytes are copied around without the garbage
// collector's knowledge.
package vso

import (
	"iter"
	"math"
	"reflect"
	"unsafe"

	"go.uber.org/zap"

	"github.com/histdb/memcore/buffer"
	"github.com/histdb/memcore/heap"
	"github.com/histdb/memcore/layout"
	"github.com/histdb/memcore/logging"
	"github.com/histdb/memcore/profile"
	"github.com/histdb/memcore/sizeof"
)

// Plain is embedded by types stored in a Vector.
type Plain struct{}

func (Plain) plainData() {}

// PlainData is satisfied by types embedding Plain.
type PlainData interface {
	plainData()
}

const headerSize = 8

type header struct {
	size uint32
	kind uint32
}

// Ref addresses an element or out of band data. The zero Ref is unset.
type Ref struct {
	pos uint32 // offset + 1
}

func refAt(off int) Ref { return Ref{pos: uint32(off) + 1} }

func (r Ref) IsSet() bool { return r.pos != 0 }

// Offset returns the byte offset r addresses. r must be set.
func (r Ref) Offset() int {
	if r.pos == 0 {
		logging.Fatal("vso: offset of an unset ref")
	}
	return int(r.pos - 1)
}

type kind[B any] struct {
	typ  reflect.Type
	size int
	view func(unsafe.Pointer) B
}

// Vector holds plain data elements viewed through B. It is not safe for
// concurrent use.
type Vector[B any] struct {
	_ [0]func() // no equality

	buf   buffer.T
	n     int
	first Ref
	last  Ref
	kinds []kind[B]
	index map[reflect.Type]uint32
}

// New returns a Vector with capacity bytes preallocated.
func New[B any](capacity int) *Vector[B] {
	return NewWith[B](capacity, nil)
}

// NewWith is New with an allocator. A nil alloc uses heap.Default.
func NewWith[B any](capacity int, alloc heap.Allocator) *Vector[B] {
	return &Vector[B]{
		buf:   buffer.New(capacity, alloc),
		index: make(map[reflect.Type]uint32),
	}
}

// HeaderSize is the number of bytes in front of every element.
func (v *Vector[B]) HeaderSize() int { return headerSize }

func objectSize[T any]() int {
	size, _ := layout.Of[T]()
	return max(int(size), layout.Align)
}

func register[T PlainData, B any](v *Vector[B]) uint32 {
	typ := reflect.TypeFor[T]()
	if k, ok := v.index[typ]; ok {
		return k
	}

	if !layout.PointerFreeOf[T]() {
		logging.Fatalf("vso: %v holds pointers", typ)
	}
	if _, align := layout.Of[T](); align > layout.Align {
		logging.Fatal("vso: element alignment too large",
			zap.Stringer("type", typ), zap.Uintptr("align", align))
	}
	if _, ok := any((*T)(nil)).(B); !ok {
		logging.Fatalf("vso: %v does not implement %v", reflect.TypeFor[*T](), reflect.TypeFor[B]())
	}

	k := uint32(len(v.kinds))
	v.kinds = append(v.kinds, kind[B]{
		typ:  typ,
		size: objectSize[T](),
		view: func(p unsafe.Pointer) B { return any((*T)(p)).(B) },
	})
	v.index[typ] = k
	return k
}

func (v *Vector[B]) reserve(n int) int {
	if uint64(v.buf.Pos())+uint64(n) > math.MaxUint32-1 {
		logging.Fatal("vso: vector too large", zap.Int("used", v.buf.Pos()), zap.Int("size", n))
	}
	v.buf = v.buf.Grow(n)
	off := v.buf.Pos()
	v.buf = v.buf.Advance(n)
	return off
}

func (v *Vector[B]) header(off int) *header {
	return (*header)(v.buf.At(off))
}

// PushBack copies obj into the vector followed by extraBytes zeroed bytes
// and returns its Ref.
func PushBack[T PlainData, B any](v *Vector[B], obj T, extraBytes int) Ref {
	k := register[T](v)
	size := layout.RoundUp(headerSize+objectSize[T]()+extraBytes, layout.Align)

	off := v.reserve(size)
	*v.header(off) = header{size: uint32(size), kind: k}
	*(*T)(v.buf.At(off + headerSize)) = obj
	clear(v.buf.Bytes(off+headerSize+objectSize[T](), size-headerSize-objectSize[T]()))

	ref := refAt(off)
	v.n++
	if !v.first.IsSet() {
		v.first = ref
	}
	v.last = ref
	return ref
}

// EmplaceBack is PushBack with no extra bytes.
func EmplaceBack[T PlainData, B any](v *Vector[B], obj T) Ref {
	return PushBack(v, obj, 0)
}

// OOBPushBackEmpty reserves n bytes of out of band data, rounded up to
// layout.Align, and returns their Ref. The bytes extend the span of the
// last element so iteration steps over them.
func (v *Vector[B]) OOBPushBackEmpty(n int) Ref {
	aligned := layout.RoundUp(n, layout.Align)
	off := v.reserve(aligned)
	clear(v.buf.Bytes(off, aligned))
	if v.last.IsSet() {
		v.header(v.last.Offset()).size += uint32(aligned)
	}
	return refAt(off)
}

// OOBPushBack copies data into out of band storage.
func (v *Vector[B]) OOBPushBack(data []byte) Ref {
	ref := v.OOBPushBackEmpty(len(data))
	copy(v.buf.Bytes(ref.Offset(), len(data)), data)
	return ref
}

// OOBPushBackOf copies items into out of band storage. T must hold no
// pointers.
func OOBPushBackOf[T, B any](v *Vector[B], items []T) Ref {
	checkOOBType[T]()
	n := len(items) * int(unsafe.Sizeof(*new(T)))
	ref := v.OOBPushBackEmpty(n)
	if n > 0 {
		copy(v.buf.Bytes(ref.Offset(), n), unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(items))), n))
	}
	return ref
}

func checkOOBType[T any]() {
	if !layout.PointerFreeOf[T]() {
		logging.Fatalf("vso: %v holds pointers", reflect.TypeFor[T]())
	}
	if _, align := layout.Of[T](); align > layout.Align {
		logging.Fatalf("vso: %v alignment too large", reflect.TypeFor[T]())
	}
}

func (v *Vector[B]) check(ref Ref, n int) int {
	off := ref.Offset()
	if off+n > v.buf.Pos() {
		logging.Fatal("vso: ref out of bounds",
			zap.Int("offset", off), zap.Int("size", n), zap.Int("used", v.buf.Pos()))
	}
	return off
}

func (v *Vector[B]) element(ref Ref) (int, *header) {
	off := v.check(ref, headerSize)
	h := v.header(off)
	if profile.Checks() && (int(h.kind) >= len(v.kinds) || off+int(h.size) > v.buf.Pos()) {
		logging.Fatal("vso: ref does not address an element", zap.Int("offset", off))
	}
	return off, h
}

// At returns the element ref addresses. The view is invalidated by the
// next insertion that grows the vector.
func (v *Vector[B]) At(ref Ref) B {
	off, h := v.element(ref)
	return v.kinds[h.kind].view(v.buf.At(off + headerSize))
}

// AtAs returns the element ref addresses as a *T. It is fatal if the
// element is not a T.
func AtAs[T PlainData, B any](v *Vector[B], ref Ref) *T {
	off, h := v.element(ref)
	if k := v.kinds[h.kind]; k.typ != reflect.TypeFor[T]() {
		logging.Fatalf("vso: element is a %v, not a %v", k.typ, reflect.TypeFor[T]())
	}
	return (*T)(v.buf.At(off + headerSize))
}

// Extra returns the bytes between the object ref addresses and the next
// element, which includes any out of band data pushed after it.
func (v *Vector[B]) Extra(ref Ref) []byte {
	off, h := v.element(ref)
	start := off + headerSize + v.kinds[h.kind].size
	return v.buf.Bytes(start, off+int(h.size)-start)
}

// OOBAt returns the n bytes at ref.
func (v *Vector[B]) OOBAt(ref Ref, n int) []byte {
	off := v.check(ref, n)
	return v.buf.Bytes(off, n)
}

// OOBAtAs returns the n values of type T at ref.
func OOBAtAs[T, B any](v *Vector[B], ref Ref, n int) []T {
	checkOOBType[T]()
	off := v.check(ref, n*int(unsafe.Sizeof(*new(T))))
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(v.buf.At(off)), n)
}

// Len returns the number of elements.
func (v *Vector[B]) Len() int { return v.n }

func (v *Vector[B]) Capacity() int     { return v.buf.Cap() }
func (v *Vector[B]) UsedCapacity() int { return v.buf.Pos() }
func (v *Vector[B]) FreeCapacity() int { return v.buf.Remaining() }

// Size returns the memory footprint of the vector.
func (v *Vector[B]) Size() uint64 {
	return 0 +
		/* buf   */ 48 + uint64(v.buf.Cap()) +
		/* refs  */ 16 +
		/* kinds */ sizeof.Slice(v.kinds) +
		/* index */ sizeof.Map(v.index) +
		0
}

// BeginRef returns the Ref of the first element, or EndRef if there is
// none.
func (v *Vector[B]) BeginRef() Ref {
	if v.first.IsSet() {
		return v.first
	}
	return v.EndRef()
}

// EndRef returns the Ref one past the last element.
func (v *Vector[B]) EndRef() Ref { return refAt(v.buf.Pos()) }

// Next returns the Ref of the element after ref.
func (v *Vector[B]) Next(ref Ref) Ref {
	off, h := v.element(ref)
	return refAt(off + int(h.size))
}

// Iterator walks the elements in insertion order.
type Iterator[B any] struct {
	v   *Vector[B]
	off int
}

func (v *Vector[B]) Begin() Iterator[B] { return v.RefToIterator(v.BeginRef()) }
func (v *Vector[B]) End() Iterator[B]   { return Iterator[B]{v: v, off: v.buf.Pos()} }

func (it Iterator[B]) Valid() bool { return it.off < it.v.buf.Pos() }
func (it *Iterator[B]) Next()      { it.off += int(it.v.header(it.off).size) }
func (it Iterator[B]) Get() B      { return it.v.At(refAt(it.off)) }
func (it Iterator[B]) Ref() Ref    { return refAt(it.off) }

func (v *Vector[B]) IteratorToRef(it Iterator[B]) Ref { return refAt(it.off) }

func (v *Vector[B]) RefToIterator(ref Ref) Iterator[B] {
	return Iterator[B]{v: v, off: ref.Offset()}
}

// All yields every element in insertion order.
func (v *Vector[B]) All() iter.Seq[B] {
	return func(yield func(B) bool) {
		for it := v.Begin(); it.Valid(); it.Next() {
			if !yield(it.Get()) {
				return
			}
		}
	}
}

// Clear forgets every element. The memory is kept.
func (v *Vector[B]) Clear() {
	v.buf = v.buf.Reset()
	v.n = 0
	v.first, v.last = Ref{}, Ref{}
}

// ClearWith calls fn on every element before clearing.
func (v *Vector[B]) ClearWith(fn func(B)) {
	for x := range v.All() {
		fn(x)
	}
	v.Clear()
}

// Release clears the vector and frees its memory.
func (v *Vector[B]) Release() {
	v.Clear()
	v.buf = v.buf.Release()
}
