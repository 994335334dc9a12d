package layout

import (
	"reflect"
	"testing"

	"github.com/zeebo/assert"
)

func TestRounding(t *testing.T) {
	assert.Equal(t, RoundUp(0, 8), 0)
	assert.Equal(t, RoundUp(1, 8), 8)
	assert.Equal(t, RoundUp(8, 8), 8)
	assert.Equal(t, RoundUp(9, 8), 16)
	assert.Equal(t, RoundUp(7, 0), 7)

	assert.That(t, !IsMultipleOf(0, 8))
	assert.That(t, IsMultipleOf(16, 8))
	assert.That(t, !IsMultipleOf(12, 8))

	assert.That(t, !IsPow2(0))
	assert.That(t, IsPow2(1))
	assert.That(t, IsPow2(64))
	assert.That(t, !IsPow2(96))
}

func TestPow2(t *testing.T) {
	assert.Equal(t, RoundPow2(0), uint64(1))
	assert.Equal(t, RoundPow2(1), uint64(1))
	assert.Equal(t, RoundPow2(3), uint64(4))
	assert.Equal(t, RoundPow2(8), uint64(8))
	assert.Equal(t, RoundPow2(9), uint64(16))

	assert.Equal(t, NextPow2(0), uint64(1))
	assert.Equal(t, NextPow2(8), uint64(16))
	assert.Equal(t, NextPow2(9), uint64(16))
}

func TestPointerFree(t *testing.T) {
	type plain struct {
		a int64
		b [4]uint8
		c struct{ f float64 }
	}
	type withString struct {
		a int
		s string
	}
	type withFunc struct{ fn func() }

	assert.That(t, PointerFree(reflect.TypeFor[plain]()))
	assert.That(t, PointerFree(reflect.TypeFor[[0]*int]()))
	assert.That(t, !PointerFree(reflect.TypeFor[withString]()))
	assert.That(t, !PointerFree(reflect.TypeFor[withFunc]()))
	assert.That(t, !PointerFree(reflect.TypeFor[*int]()))
	assert.That(t, !PointerFree(reflect.TypeFor[[]byte]()))
	assert.That(t, !PointerFree(reflect.TypeFor[any]()))

	assert.That(t, PointerFreeOf[plain]())
	assert.That(t, PointerFreeOf[plain]())
	assert.That(t, !PointerFreeOf[withString]())
}

func TestOf(t *testing.T) {
	size, align := Of[struct {
		a uint32
		b uint8
	}]()
	assert.Equal(t, size, uintptr(8))
	assert.Equal(t, align, uintptr(4))
}
