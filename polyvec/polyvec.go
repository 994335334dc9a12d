// Package polyvec stores values of many types that share an interface in
// chunked memory. Elements never move once added and are only removed all
// at once by Clear. Out of band bytes, such as strings, can be stored next
// to the elements that use them.
package polyvec

import (
	"iter"
	"reflect"
	"unsafe"

	"go.uber.org/zap"

	"github.com/histdb/memcore/arena"
	"github.com/histdb/memcore/chunk"
	"github.com/histdb/memcore/heap"
	"github.com/histdb/memcore/layout"
	"github.com/histdb/memcore/logging"
	"github.com/histdb/memcore/sizeof"
)

// Destroyer is implemented by elements that need to run code when the
// vector is cleared.
type Destroyer interface {
	Destroy()
}

// Config controls how a Vector sizes its chunks.
type Config struct {
	// ChunkCapacity is the capacity of the first chunk. Zero defers the
	// first allocation to the first insertion.
	ChunkCapacity int

	// BaseSize is the size of the smallest element. Every chunk can hold at
	// least one such element. Zero uses layout.Align.
	BaseSize int

	// Allocator provides chunk memory. Nil uses heap.Default.
	Allocator heap.Allocator
}

// slabber is the type erased view of an arena.T.
type slabber interface {
	Reset()
	Size() uint64
}

// Vector holds elements viewed through B, which is usually an interface.
// It is not safe for concurrent use.
type Vector[B any] struct {
	_ [0]func() // no equality

	chain *chunk.Chain
	objs  []B
	slabs map[reflect.Type]slabber
}

// New returns a Vector whose first chunk holds chunkCapacity bytes.
func New[B any](chunkCapacity int) *Vector[B] {
	return NewConfig[B](Config{ChunkCapacity: chunkCapacity})
}

func NewConfig[B any](cfg Config) *Vector[B] {
	if cfg.BaseSize <= 0 {
		cfg.BaseSize = layout.Align
	}
	unit := chunk.HeaderSize + layout.RoundUp(cfg.BaseSize, layout.Align)
	v := &Vector[B]{
		chain: chunk.New(unit*1024, unit, cfg.Allocator),
		slabs: make(map[reflect.Type]slabber),
	}
	if cfg.ChunkCapacity > 0 {
		v.chain.Reset(cfg.ChunkCapacity)
	}
	return v
}

// Span returns the number of bytes an element of type D takes in a chunk,
// header included.
func Span[D any]() int {
	size, _ := layout.Of[D]()
	return chunk.HeaderSize + max(int(size), layout.Align)
}

func slab[D, B any](v *Vector[B]) *arena.T[D] {
	typ := reflect.TypeFor[D]()
	s, ok := v.slabs[typ]
	if !ok {
		s = new(arena.T[D])
		v.slabs[typ] = s
	}
	return s.(*arena.T[D])
}

// Emplace adds d to the vector and returns a pointer to the stored copy,
// valid until the vector is cleared. *D must implement B and D must not
// need more than layout.Align alignment.
//
// Pointer free values are stored in the chunk itself. Values holding
// pointers are kept in a slab owned by the vector so the garbage collector
// can see them; their chunk unit still reserves the full size so capacity
// accounting does not depend on the element type.
func Emplace[D, B any](v *Vector[B], d D) *D {
	size, align := layout.Of[D]()
	if align > layout.Align {
		logging.Fatal("polyvec: element alignment too large",
			zap.Stringer("type", reflect.TypeFor[D]()), zap.Uintptr("align", align))
	}
	if _, ok := any((*D)(nil)).(B); !ok {
		logging.Fatalf("polyvec: %v does not implement %v", reflect.TypeFor[*D](), reflect.TypeFor[B]())
	}

	h, body := v.chain.GetSpace(max(int(size), layout.Align))
	h.Slot = uint32(len(v.objs))

	var p *D
	if layout.PointerFreeOf[D]() {
		p = (*D)(unsafe.Pointer(unsafe.SliceData(body)))
	} else {
		s := slab[D](v)
		p = s.Get(s.New())
	}
	*p = d

	v.objs = append(v.objs, any(p).(B))
	return p
}

// ReserveOOB reserves n bytes of out of band data, nil if n is zero. The
// bytes are invisible to iteration and valid until the vector is cleared.
func (v *Vector[B]) ReserveOOB(n int) []byte { return v.chain.ReserveOOB(n) }

// PushOOB copies data into out of band storage.
func (v *Vector[B]) PushOOB(data []byte) []byte {
	b := v.chain.ReserveOOB(len(data))
	copy(b, data)
	return b
}

// PushOOBString copies s into out of band storage and returns the stored
// string.
func (v *Vector[B]) PushOOBString(s string) string {
	if len(s) == 0 {
		return ""
	}
	b := v.chain.ReserveOOB(len(s))
	copy(b, s)
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// PushOOBCString stores s followed by a NUL byte and returns the stored
// bytes, terminator included.
func (v *Vector[B]) PushOOBCString(s string) []byte {
	b := v.chain.ReserveOOB(len(s) + 1)
	copy(b, s)
	b[len(s)] = 0
	return b
}

// Len returns the number of elements.
func (v *Vector[B]) Len() int { return len(v.objs) }

// Capacity returns the used and total bytes across all chunks.
func (v *Vector[B]) Capacity() (used, total int) { return v.chain.Capacity() }

func (v *Vector[B]) Chunks() []chunk.Stats { return v.chain.Chunks() }

// Size returns the memory footprint of the vector.
func (v *Vector[B]) Size() uint64 {
	var slabs uint64
	for _, s := range v.slabs {
		slabs += s.Size()
	}
	return 0 +
		/* chain */ v.chain.Size() +
		/* objs  */ sizeof.Slice(v.objs) +
		/* slabs */ sizeof.Map(v.slabs) + slabs +
		0
}

// Dump renders the chunk layout for debugging.
func (v *Vector[B]) Dump() string { return v.chain.Dump() }

// Iterator walks the elements in insertion order.
type Iterator[B any] struct {
	v   *Vector[B]
	cur chunk.Cursor
}

func (v *Vector[B]) Begin() Iterator[B] {
	return Iterator[B]{v: v, cur: v.chain.Begin()}
}

func (it Iterator[B]) Valid() bool { return it.cur.Valid() }
func (it *Iterator[B]) Next()      { it.cur.Next() }
func (it Iterator[B]) Get() B      { return it.v.objs[it.cur.Header().Slot] }

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

// Clear destroys every element in insertion order and empties the vector.
// A non-zero resetToOneChunk leaves a single chunk of at least that many
// bytes, which is how a caller sizes the next round from Capacity.
func (v *Vector[B]) Clear(resetToOneChunk int) {
	for it := v.Begin(); it.Valid(); it.Next() {
		if d, ok := any(it.Get()).(Destroyer); ok {
			d.Destroy()
		}
	}
	for _, s := range v.slabs {
		s.Reset()
	}
	clear(v.objs)
	v.objs = v.objs[:0]
	v.chain.Reset(resetToOneChunk)
}

// Release clears the vector and frees all of its memory. The vector can
// still be used afterwards.
func (v *Vector[B]) Release() {
	v.Clear(0)
	v.chain.Release()
	v.objs = nil
	clear(v.slabs)
}
