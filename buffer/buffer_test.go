package buffer

import (
	"testing"

	"github.com/zeebo/assert"

	"github.com/histdb/memcore/heap"
)

func TestGrow(t *testing.T) {
	counting := heap.NewCounting(nil)
	buf := New(2, counting)
	assert.Equal(t, buf.Cap(), 2)

	buf = buf.Grow(2)
	assert.Equal(t, buf.Cap(), 2)
	copy(buf.Suffix(), "ab")
	buf = buf.Advance(2)

	buf = buf.Grow(3)
	assert.Equal(t, buf.Cap(), 8)
	assert.Equal(t, string(buf.Prefix()), "ab")
	assert.Equal(t, counting.Stats().Live(), int64(1))

	copy(buf.Bytes(buf.Pos(), 3), "cde")
	buf = buf.Advance(3)
	assert.Equal(t, *(*byte)(buf.At(4)), byte('e'))
	assert.Equal(t, buf.Remaining(), 3)

	buf = buf.Reset()
	assert.Equal(t, buf.Pos(), 0)
	assert.Equal(t, buf.Cap(), 8)

	buf = buf.Release()
	assert.Equal(t, buf.Cap(), 0)
	assert.Equal(t, counting.Stats().Live(), int64(0))
}

func TestZeroValue(t *testing.T) {
	var buf T
	buf = buf.Grow(5)
	assert.Equal(t, buf.Cap(), 8)
	buf = buf.Release()
}
