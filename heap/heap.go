// Package heap is the raw allocate/free pair the arena containers get their
// memory from. Hosts can substitute their own Allocator.
package heap

import (
	"unsafe"

	"go.uber.org/zap"

	"github.com/histdb/memcore/layout"
	"github.com/histdb/memcore/logging"
)

// Allocator hands out zeroed, layout.Align aligned byte regions.
type Allocator interface {
	Alloc(n int) []byte
	Free(b []byte)
}

// Go allocates from the Go heap. Memory is backed by []uint64 so that every
// region is word aligned. Free drops the region for the collector.
type Go struct{}

func (Go) Alloc(n int) []byte {
	if n < 0 {
		logging.Fatal("heap: negative allocation", zap.Int("size", n))
	}
	if n == 0 {
		return nil
	}
	words := make([]uint64, (n+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), n)
}

func (Go) Free(b []byte) {}

var def Allocator = Go{}

// Default returns the allocator used when a container is not given one.
func Default() Allocator { return def }

// SetDefault replaces the default allocator and returns the previous one.
// A nil a restores the Go allocator.
func SetDefault(a Allocator) (prev Allocator) {
	if a == nil {
		a = Go{}
	}
	prev, def = def, a
	return prev
}

// Aligned reports if b starts on a layout.Align boundary.
func Aligned(b []byte) bool {
	return len(b) == 0 || uintptr(unsafe.Pointer(&b[0]))%layout.Align == 0
}
