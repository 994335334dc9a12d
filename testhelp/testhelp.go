// Package testhelp has instrumentation shared by the memcore tests.
package testhelp

import (
	"testing"

	"github.com/histdb/memcore/logging"
)

// Counter counts constructions and destructions and remembers the order
// objects were destroyed in.
type Counter struct {
	constructed int
	destroyed   int
	order       []int
}

// New records a construction and returns the id of the new object.
func (c *Counter) New() int {
	c.constructed++
	return c.constructed - 1
}

// Destroy records the destruction of the object with the given id.
func (c *Counter) Destroy(id int) {
	c.destroyed++
	c.order = append(c.order, id)
}

func (c *Counter) Constructed() int { return c.constructed }
func (c *Counter) Destroyed() int   { return c.destroyed }
func (c *Counter) Live() int        { return c.constructed - c.destroyed }
func (c *Counter) Order() []int     { return c.order }

// InOrder reports if objects were destroyed exactly once each, in the
// order they were constructed.
func (c *Counter) InOrder() bool {
	if len(c.order) != c.constructed {
		return false
	}
	for i, id := range c.order {
		if id != i {
			return false
		}
	}
	return true
}

// Balanced fails tb if some constructed object was not destroyed.
func (c *Counter) Balanced(tb testing.TB) {
	tb.Helper()
	if c.constructed != c.destroyed {
		tb.Fatalf("constructed %d objects but destroyed %d", c.constructed, c.destroyed)
	}
}

// Violation runs fn and returns the invariant violation it raised, if any.
// Other panics are propagated.
func Violation(fn func()) (v *logging.Violation) {
	defer func() {
		if r := recover(); r != nil {
			var ok bool
			if v, ok = r.(*logging.Violation); !ok {
				panic(r)
			}
		}
	}()
	fn()
	return nil
}

// Violates reports if fn raised an invariant violation.
func Violates(fn func()) bool { return Violation(fn) != nil }

// Rng is the subset of *mwc.T the generators use.
type Rng interface {
	Uint64n(n uint64) uint64
}

const letters = "abcdefghijklmnopqrstuvwxyz0123456789"

// String returns a random string of up to max bytes.
func String(rng Rng, max int) string {
	b := make([]byte, rng.Uint64n(uint64(max)+1))
	for i := range b {
		b[i] = letters[rng.Uint64n(uint64(len(letters)))]
	}
	return string(b)
}
