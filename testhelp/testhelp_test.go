package testhelp

import (
	"testing"

	"github.com/zeebo/assert"
	"github.com/zeebo/mwc"

	"github.com/histdb/memcore/logging"
)

func TestCounter(t *testing.T) {
	var c Counter
	a, b := c.New(), c.New()
	assert.Equal(t, c.Live(), 2)

	c.Destroy(a)
	c.Destroy(b)
	assert.Equal(t, c.Live(), 0)
	assert.That(t, c.InOrder())
	assert.DeepEqual(t, c.Order(), []int{0, 1})
	c.Balanced(t)

	var d Counter
	d.New()
	d.New()
	d.Destroy(1)
	d.Destroy(0)
	assert.That(t, !d.InOrder())
}

func TestViolation(t *testing.T) {
	assert.That(t, Violates(func() { logging.Fatal("boom") }))
	assert.That(t, !Violates(func() {}))
	assert.Equal(t, Violation(func() { logging.Fatal("boom") }).Msg, "boom")
}

func TestString(t *testing.T) {
	rng := mwc.New(1, 1)
	for range 100 {
		assert.That(t, len(String(rng, 8)) <= 8)
	}
}
