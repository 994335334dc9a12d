// Package block allocates the metadata blocks behind shared handles: the
// reference counts and an object stored together in one allocation.
//
// Handles keep a *Meta and a typed view of the object side by side, so
// nothing ever needs to recover the metadata from an object address.
package block

import (
	"unsafe"

	"go.uber.org/zap"

	"github.com/histdb/memcore/layout"
	"github.com/histdb/memcore/lifetime"
	"github.com/histdb/memcore/logging"
	"github.com/histdb/memcore/profile"
)

// Destroyer is implemented by objects that need to run code when their
// last strong reference goes away.
type Destroyer interface {
	Destroy()
}

type object interface {
	destroy()
}

// Meta is the bookkeeping header of a block. It is not safe for
// concurrent use.
type Meta struct {
	_ [0]func() // no equality

	strong uint32
	weak   uint32
	size   uintptr
	addr   unsafe.Pointer
	diag   *lifetime.Record
	self   object
	freed  bool
}

// Block is a Meta followed by the storage of one V.
type Block[V any] struct {
	Meta
	obj V
}

var live int64

// Live returns the number of blocks allocated and not yet freed.
func Live() int64 { return live }

// Alloc returns a block whose object storage is zeroed and not yet
// constructed, with both counts at zero. skip is the number of callers
// above the caller of Alloc to leave out of the creation trace.
func Alloc[V any](skip int) *Block[V] {
	b := new(Block[V])
	b.size = unsafe.Sizeof(b.obj)
	b.addr = unsafe.Pointer(&b.obj)
	b.self = b
	if lifetime.Enabled[V]() {
		b.diag = lifetime.NewRecord(skip + 1)
	}
	live++
	return b
}

// Storage returns the object storage, constructed or not.
func (b *Block[V]) Storage() *V { return &b.obj }

// Object returns the object while it is alive, nil otherwise.
func (b *Block[V]) Object() *V {
	if b.strong == 0 {
		return nil
	}
	return &b.obj
}

func (b *Block[V]) destroy() {
	if d, ok := any(&b.obj).(Destroyer); ok {
		d.Destroy()
	}

	// pointer free objects keep their bytes until the block is freed, so
	// a stale raw pointer keeps reading them unless they are poisoned.
	// objects holding pointers are always zeroed so they stop keeping
	// their referents reachable.
	if layout.PointerFreeOf[V]() {
		if profile.Poison() {
			layout.Fill(layout.Bytes(unsafe.Pointer(&b.obj), b.size), profile.PoisonByte)
		}
	} else {
		var zero V
		b.obj = zero
	}
}

func (m *Meta) Strong() uint32                { return m.strong }
func (m *Meta) Weak() uint32                  { return m.weak }
func (m *Meta) Size() uintptr                 { return m.size }
func (m *Meta) Addr() unsafe.Pointer          { return m.addr }
func (m *Meta) Freed() bool                   { return m.freed }
func (m *Meta) Diagnostics() *lifetime.Record { return m.diag }

func (m *Meta) IncStrong() {
	logging.Check(!m.freed, "block: strong reference to a freed block")
	m.strong++
}

func (m *Meta) IncWeak() {
	logging.Check(!m.freed, "block: weak reference to a freed block")
	m.weak++
}

// DecStrong drops a strong reference. The transition to zero destroys the
// object, and frees the block if there are no weak references either.
func (m *Meta) DecStrong() {
	if m.strong == 0 {
		logging.Fatal("block: strong count underflow", zap.Uint32("weak", m.weak))
	}
	if m.strong == 1 {
		m.self.destroy()
	}
	m.strong--
	if m.strong == 0 && m.weak == 0 {
		m.free()
	}
}

// DecWeak drops a weak reference, freeing the block if it was the last
// reference of any kind.
func (m *Meta) DecWeak() {
	if m.weak == 0 {
		logging.Fatal("block: weak count underflow", zap.Uint32("strong", m.strong))
	}
	m.weak--
	if m.weak == 0 && m.strong == 0 {
		m.free()
	}
}

func (m *Meta) free() {
	logging.Check(!m.freed, "block: double free", zap.Uintptr("size", m.size))
	m.freed = true
	m.diag = nil
	m.self = nil
	live--
}

// Track registers a reference of the given kind with the diagnostics of
// the block, if any.
func (m *Meta) Track(kind lifetime.Kind, skip int) lifetime.Handle {
	if m.diag == nil {
		return lifetime.Handle{}
	}
	return m.diag.Add(kind, skip+1)
}

// Untrack removes a reference registered by Track.
func (m *Meta) Untrack(h lifetime.Handle) {
	if m.diag != nil {
		m.diag.Remove(h)
	}
}

// Traces returns the diagnostics snapshot of the block. It is empty if
// the block is not tracked.
func (m *Meta) Traces() lifetime.Traces {
	if m.diag == nil {
		return lifetime.Traces{}
	}
	return m.diag.Traces()
}
