// Package chunk implements a chain of memory chunks carved into strided
// units. Every unit starts with a Header whose stride is the distance to
// the next unit, so the chain can be walked without knowing what was
// stored. Units are never moved once written.
package chunk

import (
	"math"
	"unsafe"

	"go.uber.org/zap"

	"github.com/histdb/memcore/heap"
	"github.com/histdb/memcore/layout"
	"github.com/histdb/memcore/logging"
	"github.com/histdb/memcore/profile"
	"github.com/histdb/memcore/sizeof"
)

// HeaderSize is the number of bytes in front of every unit.
const HeaderSize = int(unsafe.Sizeof(Header{}))

// Header precedes every unit. Slot is not used by the chain.
type Header struct {
	Stride uint32
	Slot   uint32
}

type chunk struct {
	mem       []byte
	used      int
	skipFirst bool // the first unit is out of band data
	next      *chunk
}

func (c *chunk) header(pos int) *Header {
	return (*Header)(unsafe.Pointer(&c.mem[pos]))
}

// Chain is a singly linked list of chunks. The zero value is not usable;
// construct one with New.
type Chain struct {
	_ [0]func() // no equality

	alloc   heap.Allocator
	head    *chunk
	tail    *chunk
	last    *Header // header out of band data may be merged into
	initial int
	unit    int
}

// New returns an empty chain. initial is the capacity of the first chunk
// allocated when the chain has none, and unit is the smallest capacity
// any chunk is given. A nil allocator uses heap.Default.
func New(initial, unit int, alloc heap.Allocator) *Chain {
	if alloc == nil {
		alloc = heap.Default()
	}
	if unit < HeaderSize {
		unit = HeaderSize
	}
	return &Chain{
		alloc:   alloc,
		initial: initial,
		unit:    unit,
	}
}

func (ch *Chain) newChunk(capacity int) *chunk {
	mem := ch.alloc.Alloc(capacity)
	logging.Check(heap.Aligned(mem), "chunk: allocator returned unaligned memory")
	if profile.ClearMem() {
		layout.Fill(mem, profile.FreshByte)
	}
	logging.Debugf("chunk: allocated %d bytes", capacity)
	return &chunk{mem: mem}
}

// getFreeChunk makes the tail a chunk with at least capacity free bytes,
// reusing empty chunks after the tail before appending a new one.
func (ch *Chain) getFreeChunk(capacity int) {
	capacity = layout.RoundUp(max(ch.unit, capacity), layout.Align)
	ch.last = nil

	if ch.tail == nil {
		ch.head = ch.newChunk(capacity)
		ch.tail = ch.head
		return
	}

	for ch.tail.next != nil {
		ch.tail = ch.tail.next
		logging.Check(ch.tail.used == 0, "chunk: chunk after the tail is in use")
		if len(ch.tail.mem) >= capacity {
			return
		}
	}

	ch.tail.next = ch.newChunk(capacity)
	ch.tail = ch.tail.next
}

// GetSpace appends a unit with room for size bytes, rounded up to
// layout.Align, and returns its header and body.
func (ch *Chain) GetSpace(size int) (*Header, []byte) {
	size = layout.RoundUp(size, layout.Align)
	total := HeaderSize + size
	if uint64(total) > math.MaxUint32 {
		logging.Fatal("chunk: unit too large", zap.Int("size", size))
	}

	switch {
	case ch.tail == nil:
		ch.getFreeChunk(max(total, ch.initial))
	case ch.tail.used+total > len(ch.tail.mem):
		ch.getFreeChunk(max(total, len(ch.tail.mem)))
	}

	c := ch.tail
	pos := c.used
	h := c.header(pos)
	*h = Header{Stride: uint32(total)}
	c.used += total
	ch.last = h

	body := pos + HeaderSize
	return h, c.mem[body : body+size : body+size]
}

// ReserveOOB reserves size bytes of out of band data and returns them,
// nil if size is zero. The bytes are added to the stride of the last unit
// when they fit in the tail chunk. Otherwise they get a unit of their own
// which always starts a chunk and is skipped by cursors.
func (ch *Chain) ReserveOOB(size int) []byte {
	if size == 0 {
		return nil
	}
	aligned := layout.RoundUp(size, layout.Align)

	if ch.last != nil && ch.tail.used+aligned <= len(ch.tail.mem) &&
		uint64(ch.last.Stride)+uint64(aligned) <= math.MaxUint32 {
		c := ch.tail
		pos := c.used
		ch.last.Stride += uint32(aligned)
		c.used += aligned
		return c.mem[pos : pos+size : pos+aligned]
	}

	_, body := ch.GetSpace(aligned)
	logging.Check(ch.tail.used == HeaderSize+aligned, "chunk: out of band unit is not first in its chunk")
	ch.tail.skipFirst = true
	return body[:size]
}

// Reset empties every chunk and rewinds to the head. A non-zero hint
// leaves exactly one chunk with at least hint bytes, keeping the current
// one when it is the only chunk and already large enough.
func (ch *Chain) Reset(hint int) {
	for c := ch.head; c != nil; c = c.next {
		c.used = 0
		c.skipFirst = false
		if profile.ClearMem() {
			layout.Fill(c.mem, profile.ClearedByte)
		}
	}
	ch.tail = ch.head
	ch.last = nil

	if hint > 0 {
		if ch.head != nil && ch.head.next == nil && len(ch.head.mem) >= hint {
			return
		}
		ch.Release()
		ch.getFreeChunk(hint)
	}
}

// Release returns every chunk to the allocator. The chain stays usable.
func (ch *Chain) Release() {
	for c := ch.head; c != nil; {
		next := c.next
		ch.alloc.Free(c.mem)
		c.mem, c.next = nil, nil
		c = next
	}
	ch.head, ch.tail, ch.last = nil, nil, nil
}

// Size returns the memory footprint of the chain, chunk memory included.
func (ch *Chain) Size() uint64 {
	var chunks uint64
	for c := ch.head; c != nil; c = c.next {
		chunks += sizeof.Of[chunk]() + uint64(len(c.mem))
	}
	return 0 +
		/* alloc   */ 16 +
		/* list    */ 24 +
		/* sizes   */ 16 +
		/* chunks  */ chunks +
		0
}

// Capacity returns the used and total bytes across all chunks.
func (ch *Chain) Capacity() (used, total int) {
	for c := ch.head; c != nil; c = c.next {
		used += c.used
		total += len(c.mem)
	}
	return used, total
}

// Stats describes one chunk.
type Stats struct {
	Used int
	Cap  int
}

// Chunks returns the stats of every chunk in chain order.
func (ch *Chain) Chunks() (out []Stats) {
	for c := ch.head; c != nil; c = c.next {
		out = append(out, Stats{Used: c.used, Cap: len(c.mem)})
	}
	return out
}

// Counts returns the number of chunks holding data and the number of
// empty ones.
func (ch *Chain) Counts() (withData, empty int) {
	for c := ch.head; c != nil; c = c.next {
		if c.used > 0 {
			withData++
		} else {
			empty++
		}
	}
	return withData, empty
}

// Tail returns the stats of the chunk units are currently appended to.
func (ch *Chain) Tail() Stats {
	if ch.tail == nil {
		return Stats{}
	}
	return Stats{Used: ch.tail.used, Cap: len(ch.tail.mem)}
}
