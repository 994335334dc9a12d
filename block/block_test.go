package block

import (
	"testing"
	"unsafe"

	"github.com/zeebo/assert"

	"github.com/histdb/memcore/lifetime"
	"github.com/histdb/memcore/profile"
	"github.com/histdb/memcore/testhelp"
)

type counted struct {
	destroyed *int
	name      string
}

func (c *counted) Destroy() { *c.destroyed++ }

type raw struct {
	a, b uint64
}

func TestAlloc(t *testing.T) {
	before := Live()

	b := Alloc[raw](0)
	assert.Equal(t, Live(), before+1)
	assert.Equal(t, b.Strong(), uint32(0))
	assert.Equal(t, b.Weak(), uint32(0))
	assert.Equal(t, b.Size(), unsafe.Sizeof(raw{}))
	assert.That(t, b.Addr() == unsafe.Pointer(b.Storage()))
	assert.That(t, b.Object() == nil)
	assert.Equal(t, *b.Storage(), raw{})

	b.Storage().a = 1
	b.IncStrong()
	assert.Equal(t, b.Object().a, uint64(1))

	b.DecStrong()
	assert.That(t, b.Freed())
	assert.Equal(t, Live(), before)
}

func TestDestroyOnce(t *testing.T) {
	before := Live()
	destroyed := 0

	b := Alloc[counted](0)
	*b.Storage() = counted{destroyed: &destroyed, name: "x"}
	b.IncStrong()
	b.IncStrong()
	b.IncWeak()

	b.DecStrong()
	assert.Equal(t, destroyed, 0)
	b.DecStrong()
	assert.Equal(t, destroyed, 1)
	assert.That(t, !b.Freed())
	assert.That(t, b.Object() == nil)

	// objects holding pointers are zeroed on destruction
	assert.Equal(t, b.Storage().name, "")
	assert.That(t, b.Storage().destroyed == nil)

	b.DecWeak()
	assert.Equal(t, destroyed, 1)
	assert.That(t, b.Freed())
	assert.Equal(t, Live(), before)
}

func TestPoison(t *testing.T) {
	prev := profile.Set(profile.Settings{Poison: true})
	defer profile.Set(prev)

	b := Alloc[raw](0)
	*b.Storage() = raw{a: 1, b: 2}
	b.IncStrong()
	b.IncWeak()

	stale := b.Storage()
	b.DecStrong()
	assert.Equal(t, stale.a, uint64(0xDDDDDDDDDDDDDDDD))
	assert.Equal(t, stale.b, uint64(0xDDDDDDDDDDDDDDDD))

	profile.Set(profile.Settings{})
	c := Alloc[raw](0)
	*c.Storage() = raw{a: 1, b: 2}
	c.IncStrong()
	c.IncWeak()
	c.DecStrong()
	assert.Equal(t, *c.Storage(), raw{a: 1, b: 2})

	b.DecWeak()
	c.DecWeak()
}

func TestUnderflow(t *testing.T) {
	b := Alloc[raw](0)
	assert.That(t, testhelp.Violates(b.DecStrong))
	assert.That(t, testhelp.Violates(b.DecWeak))

	b.IncWeak()
	b.DecWeak()
	assert.That(t, b.Freed())
	assert.That(t, testhelp.Violates(b.IncStrong))
	assert.That(t, testhelp.Violates(b.IncWeak))
}

type tracked struct{ v int }

func (tracked) TrackLifetime() bool { return true }

func TestTrack(t *testing.T) {
	prev := profile.Set(profile.Settings{Traces: true})
	defer profile.Set(prev)

	b := Alloc[tracked](0)
	assert.That(t, b.Diagnostics() != nil)

	h := b.Track(lifetime.Strong, 0)
	b.IncStrong()
	assert.Equal(t, len(b.Traces().Strong), 1)

	b.Untrack(h)
	b.DecStrong()
	assert.That(t, b.Diagnostics() == nil)
	assert.Equal(t, len(b.Traces().Strong), 0)

	c := Alloc[raw](0)
	assert.That(t, c.Diagnostics() == nil)
	assert.Equal(t, c.Track(lifetime.Weak, 0), lifetime.Handle{})
	c.Untrack(lifetime.Handle{})
	c.IncWeak()
	c.DecWeak()
}
