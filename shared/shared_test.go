package shared

import (
	"strings"
	"testing"

	"github.com/zeebo/assert"

	"github.com/histdb/memcore/block"
	"github.com/histdb/memcore/lifetime"
	"github.com/histdb/memcore/profile"
	"github.com/histdb/memcore/testhelp"
)

type shape interface {
	Area() int
}

type square struct {
	side int
	c    *testhelp.Counter
	id   int
}

func (s *square) Area() int { return s.side * s.side }
func (s *square) Destroy() {
	if s.c != nil {
		s.c.Destroy(s.id)
	}
}

type circle struct{ r int }

func (c *circle) Area() int { return 3 * c.r * c.r }

func newSquare(c *testhelp.Counter, side int) Ptr[*square] {
	return Make(square{side: side, c: c, id: c.New()})
}

func TestMake(t *testing.T) {
	var c testhelp.Counter
	live := block.Live()

	p := newSquare(&c, 2)
	assert.That(t, p.Valid())
	assert.Equal(t, p.UseCount(), uint32(1))
	assert.That(t, p.Unique())
	assert.Equal(t, p.Get().Area(), 4)
	assert.Equal(t, block.Live(), live+1)

	q := p.Clone()
	assert.Equal(t, p.UseCount(), uint32(2))
	assert.That(t, Equal(p, q))

	p.Reset()
	assert.That(t, p.IsNil())
	assert.Equal(t, c.Destroyed(), 0)
	assert.Equal(t, q.UseCount(), uint32(1))

	q.Reset()
	assert.Equal(t, c.Destroyed(), 1)
	assert.Equal(t, block.Live(), live)
	c.Balanced(t)
}

func TestNew(t *testing.T) {
	p := New(func(s *square) { s.side = 3 })
	assert.Equal(t, p.Get().side, 3)
	p.Reset()

	z := New[circle](nil)
	assert.Equal(t, z.Get().r, 0)
	z.Reset()
}

func TestMakeInterface(t *testing.T) {
	assert.That(t, testhelp.Violates(func() { Make[shape](&circle{}) }))
}

func TestFromBlock(t *testing.T) {
	b := block.Alloc[circle](0)
	b.Storage().r = 5
	p := FromBlock(b)
	assert.Equal(t, p.Get().r, 5)
	assert.That(t, testhelp.Violates(func() { FromBlock(b) }))
	p.Reset()
	assert.That(t, b.Freed())
}

func TestMoveAssignSwap(t *testing.T) {
	var c testhelp.Counter
	a := newSquare(&c, 1)
	b := newSquare(&c, 2)

	m := a.Move()
	assert.That(t, a.IsNil())
	assert.Equal(t, m.UseCount(), uint32(1))

	m.Swap(&b)
	assert.Equal(t, m.Get().side, 2)
	assert.Equal(t, b.Get().side, 1)

	b.Assign(m)
	assert.Equal(t, c.Destroyed(), 1)
	assert.Equal(t, m.UseCount(), uint32(2))
	assert.That(t, Equal(m, b))

	b.Assign(b)
	assert.Equal(t, b.UseCount(), uint32(2))

	m.Reset()
	b.Reset()
	c.Balanced(t)

	var null Ptr[*square]
	n := null.Clone()
	assert.That(t, n.IsNil())
	n.Reset()
}

func TestWeak(t *testing.T) {
	var c testhelp.Counter
	live := block.Live()

	p := newSquare(&c, 2)
	w := WeakOf(p)
	assert.Equal(t, p.WeakCount(), uint32(1))
	assert.That(t, !w.Expired())

	l := w.Lock()
	assert.Equal(t, l.UseCount(), uint32(2))
	assert.Equal(t, l.Get().Area(), 4)
	l.Reset()

	p.Reset()
	assert.That(t, w.Expired())
	assert.Equal(t, c.Destroyed(), 1)
	assert.That(t, w.Lock().IsNil())
	assert.Equal(t, block.Live(), live+1)

	w2 := w.Clone()
	assert.Equal(t, w2.WeakCount(), uint32(2))
	w.Reset()
	w2.Reset()
	assert.Equal(t, block.Live(), live)

	var empty Weak[*square]
	assert.That(t, empty.Expired())
	assert.That(t, empty.Lock().IsNil())
}

func TestObserver(t *testing.T) {
	live := block.Live()

	p := Make(circle{r: 1})
	o := ObserverOf(p)
	w := WeakOf(p)
	assert.Equal(t, p.WeakCount(), uint32(2))

	v, ok := o.TryGet()
	assert.That(t, ok)
	assert.Equal(t, v.r, 1)

	p.Reset()
	_, ok = o.TryGet()
	assert.That(t, !ok)
	assert.Equal(t, w.WeakCount(), uint32(1))

	// the weak reference still keeps the block, the observer stays empty
	_, ok = o.TryGet()
	assert.That(t, !ok)
	assert.Equal(t, w.WeakCount(), uint32(1))

	w.Reset()
	assert.Equal(t, block.Live(), live)
}

func TestObserverFromWeak(t *testing.T) {
	p := Make(circle{r: 2})
	w := WeakOf(p)
	o := ObserverFromWeak(w)
	assert.Equal(t, p.WeakCount(), uint32(2))

	v, ok := o.TryGet()
	assert.That(t, ok && v.r == 2)

	o2 := o.Clone()
	o.Reset()
	o2.Reset()
	w.Reset()
	assert.Equal(t, p.WeakCount(), uint32(0))
	p.Reset()
}

func TestObserverMoveAssignSwap(t *testing.T) {
	p := Make(circle{r: 3})
	q := Make(circle{r: 4})

	o := ObserverOf(p)
	m := o.Move()
	_, ok := o.TryGet()
	assert.That(t, !ok)
	assert.Equal(t, p.WeakCount(), uint32(1))

	o.Assign(m)
	assert.Equal(t, p.WeakCount(), uint32(2))
	v, ok := o.TryGet()
	assert.That(t, ok && v.r == 3)

	n := ObserverOf(q)
	o.Assign(n)
	assert.Equal(t, p.WeakCount(), uint32(1))
	assert.Equal(t, q.WeakCount(), uint32(2))

	m.Swap(&n)
	v, ok = m.TryGet()
	assert.That(t, ok && v.r == 4)
	v, ok = n.TryGet()
	assert.That(t, ok && v.r == 3)

	o.Reset()
	m.Reset()
	n.Reset()
	assert.Equal(t, p.WeakCount(), uint32(0))
	assert.Equal(t, q.WeakCount(), uint32(0))
	p.Reset()
	q.Reset()
}

func TestRef(t *testing.T) {
	var null Ptr[*circle]
	_, err := NewRef(null)
	assert.That(t, err != nil)
	assert.That(t, testhelp.Violates(func() { MustRef(null) }))
	assert.That(t, testhelp.Violates(func() { null.ToRef() }))

	r := MakeRef(circle{r: 3})
	assert.That(t, r.Unique())
	assert.Equal(t, r.Get().r, 3)

	p := r.Ptr()
	assert.Equal(t, r.UseCount(), uint32(2))

	r2, err := NewRef(p)
	assert.NoError(t, err)
	assert.Equal(t, r.UseCount(), uint32(3))

	o := MakeRef(circle{r: 4})
	r2.Assign(o)
	assert.Equal(t, r.UseCount(), uint32(2))
	assert.Equal(t, o.UseCount(), uint32(2))

	r.Swap(&r2)
	assert.Equal(t, r.Get().r, 4)

	r.Release()
	r2.Release()
	o.Release()
	p.Reset()

	var unset Ref[*circle]
	assert.That(t, testhelp.Violates(func() { unset.Get() }))
}

func TestCast(t *testing.T) {
	var c testhelp.Counter
	p := newSquare(&c, 3)

	s := Cast[shape](p)
	assert.Equal(t, s.Get().Area(), 9)
	assert.Equal(t, p.UseCount(), uint32(2))
	assert.That(t, Equal(p, s))

	back := Cast[*square](s)
	assert.Equal(t, back.Get().side, 3)
	assert.That(t, testhelp.Violates(func() { Cast[*circle](s) }))

	w := WeakOf(p)
	ws := WeakCast[shape](w)
	w.Reset()
	assert.That(t, !ws.Expired())

	r := p.ToRef()
	rs := CastRef[shape](r)
	r.Release()
	assert.Equal(t, rs.Get().Area(), 9)

	p.Reset()
	s.Reset()
	back.Reset()
	assert.Equal(t, c.Destroyed(), 0)
	rs.Release()
	assert.Equal(t, c.Destroyed(), 1)
	assert.That(t, ws.Expired())
	ws.Reset()
}

func TestCompare(t *testing.T) {
	a, b := Make(circle{}), Make(circle{})
	var null Ptr[*circle]

	assert.Equal(t, Compare(a, a), 0)
	assert.Equal(t, Compare(a, b), -Compare(b, a))
	assert.Equal(t, Compare(null, a), -1)
	assert.That(t, Equal(null, Ptr[shape]{}))
	assert.That(t, !Equal(a, b))

	a.Reset()
	b.Reset()
}

type traced struct{ v int }

func (traced) TrackLifetime() bool { return true }

func TestTraces(t *testing.T) {
	prev := profile.Set(profile.Settings{Traces: true})
	defer profile.Set(prev)

	p := Make(traced{v: 1})
	q := p.Clone()
	w := WeakOf(p)

	tr := p.Traces()
	assert.Equal(t, len(tr.Strong), 2)
	assert.Equal(t, len(tr.Weak), 1)
	assert.That(t, strings.Contains(tr.Creation.String(), "TestTraces"))
	assert.Equal(t, tr.Creation.Kind, lifetime.Creation)

	q.Reset()
	assert.Equal(t, len(p.Traces().Strong), 1)

	w.Reset()
	assert.Equal(t, len(p.Traces().Weak), 0)
	p.Reset()

	untracked := Make(circle{})
	assert.Equal(t, len(untracked.Traces().Strong), 0)
	untracked.Reset()
}

func TestPoisonedAfterDestroy(t *testing.T) {
	prev := profile.Set(profile.Settings{Poison: true})
	defer profile.Set(prev)

	p := Make(circle{r: 7})
	raw := p.Get()
	w := WeakOf(p)
	p.Reset()
	assert.Equal(t, uint64(raw.r), uint64(0xdddddddddddddddd))
	w.Reset()
}

func BenchmarkClone(b *testing.B) {
	p := Make(circle{})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		q := p.Clone()
		q.Reset()
	}
}
