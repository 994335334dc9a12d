// Package buffer is a growable byte region with a write position. Growing
// relocates the bytes, so anything kept across a Grow must be an offset,
// not a pointer.
package buffer

import (
	"math"
	"unsafe"

	"go.uber.org/zap"

	"github.com/histdb/memcore/heap"
	"github.com/histdb/memcore/layout"
	"github.com/histdb/memcore/logging"
)

type ptr = unsafe.Pointer

type T struct {
	alloc heap.Allocator
	mem   []byte
	pos   int
}

// New returns a buffer holding capacity bytes from alloc. A nil alloc uses
// heap.Default.
func New(capacity int, alloc heap.Allocator) T {
	if alloc == nil {
		alloc = heap.Default()
	}
	buf := T{alloc: alloc}
	if capacity > 0 {
		buf.mem = alloc.Alloc(capacity)
	}
	return buf
}

func (buf T) Pos() int       { return buf.pos }
func (buf T) Cap() int       { return len(buf.mem) }
func (buf T) Remaining() int { return len(buf.mem) - buf.pos }

// Prefix returns the written bytes.
func (buf T) Prefix() []byte { return buf.mem[:buf.pos] }

// Suffix returns the bytes after the write position.
func (buf T) Suffix() []byte { return buf.mem[buf.pos:] }

// At returns a pointer to the byte at off. off must be in bounds.
func (buf T) At(off int) ptr {
	return unsafe.Add(ptr(unsafe.SliceData(buf.mem)), off)
}

// Bytes returns the n bytes at off.
func (buf T) Bytes(off, n int) []byte {
	return buf.mem[off : off+n : off+n]
}

//go:noinline
func (buf T) grow(n int) T {
	size := layout.RoundPow2(uint64(buf.pos) + uint64(n))
	if size > math.MaxUint32 {
		logging.Fatal("buffer: capacity overflow", zap.Uint64("size", size))
	}
	nb := buf.alloc.Alloc(int(size))
	copy(nb, buf.Prefix())
	if buf.mem != nil {
		buf.alloc.Free(buf.mem)
	}
	logging.Debugf("buffer: grew from %d to %d bytes", len(buf.mem), size)
	buf.mem = nb
	return buf
}

// Grow makes room for n more bytes, relocating to the next power of two
// that fits when there is not enough.
func (buf T) Grow(n int) T {
	if buf.alloc == nil {
		buf.alloc = heap.Default()
	}
	if buf.Remaining() < n {
		return buf.grow(n)
	}
	return buf
}

func (buf T) Advance(n int) T {
	buf.pos += n
	return buf
}

func (buf T) Reset() T {
	buf.pos = 0
	return buf
}

// Release returns the memory to the allocator and empties the buffer.
func (buf T) Release() T {
	if buf.mem != nil {
		buf.alloc.Free(buf.mem)
	}
	buf.mem, buf.pos = nil, 0
	return buf
}
