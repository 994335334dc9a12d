package heap

import (
	"go.uber.org/zap"

	"github.com/histdb/memcore/logging"
)

// Stats summarizes the traffic through a Counting allocator.
type Stats struct {
	Allocs    uint64
	Frees     uint64
	LiveBytes int64
	PeakBytes int64
}

// Live is the number of regions allocated and not yet freed.
func (s Stats) Live() int64 { return int64(s.Allocs) - int64(s.Frees) }

// Counting wraps an Allocator and tracks what goes through it. It catches
// frees of regions it does not know about.
type Counting struct {
	_ [0]func() // no equality

	under Allocator
	stats Stats
	live  map[*byte]int
}

// NewCounting wraps under. A nil under uses the Go allocator.
func NewCounting(under Allocator) *Counting {
	if under == nil {
		under = Go{}
	}
	return &Counting{
		under: under,
		live:  make(map[*byte]int),
	}
}

func (c *Counting) Alloc(n int) []byte {
	b := c.under.Alloc(n)
	if len(b) == 0 {
		return b
	}
	c.live[&b[0]] = n
	c.stats.Allocs++
	c.stats.LiveBytes += int64(n)
	if c.stats.LiveBytes > c.stats.PeakBytes {
		c.stats.PeakBytes = c.stats.LiveBytes
	}
	return b
}

func (c *Counting) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	n, ok := c.live[&b[0]]
	if !ok {
		logging.Fatal("heap: free of unknown region", zap.Int("size", len(b)))
	}
	delete(c.live, &b[0])
	c.stats.Frees++
	c.stats.LiveBytes -= int64(n)
	c.under.Free(b)
}

func (c *Counting) Stats() Stats { return c.stats }
