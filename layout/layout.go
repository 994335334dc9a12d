// Package layout holds the alignment arithmetic and the plain-data type
// check shared by the arena containers.
package layout

import (
	"math/bits"
	"reflect"
	"sync"
	"unsafe"
)

// Align is the alignment of every unit stored in an arena container. Types
// placed in arena memory must not require more.
const Align = 8

type Int interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64 | ~uintptr
}

// IsPow2 reports if x is a power of two. 0 is not.
func IsPow2[T Int](x T) bool { return x != 0 && x&(x-1) == 0 }

// IsMultipleOf reports if a is a multiple of b. 0 is not considered a
// multiple of anything.
func IsMultipleOf[T Int](a, b T) bool { return a != 0 && a%b == 0 }

// RoundUp returns a rounded up to a multiple of b. A zero b leaves a as is.
func RoundUp[T Int](a, b T) T {
	if b == 0 {
		return a
	}
	return ((a + b - 1) / b) * b
}

// RoundPow2 returns the lowest power of two greater or equal to n. 0 is not
// a power of two, so RoundPow2(0) == 1.
func RoundPow2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	return 1 << (64 - bits.LeadingZeros64(n-1))
}

// NextPow2 returns the lowest power of two strictly greater than n.
func NextPow2(n uint64) uint64 {
	return 1 << (64 - bits.LeadingZeros64(n))
}

// Bytes views n bytes starting at p.
func Bytes(p unsafe.Pointer, n uintptr) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

// Fill sets every byte of b to v.
func Fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

// PointerFree reports if values of typ hold no Go pointers, which is what
// makes them safe to relocate by raw byte copy and to place in byte memory
// the garbage collector does not scan.
func PointerFree(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return true

	case reflect.Array:
		return typ.Len() == 0 || PointerFree(typ.Elem())

	case reflect.Struct:
		for i := range typ.NumField() {
			if !PointerFree(typ.Field(i).Type) {
				return false
			}
		}
		return true

	default:
		return false
	}
}

var pointerFree sync.Map // reflect.Type -> bool

// PointerFreeOf is PointerFree for T, cached per type.
func PointerFreeOf[T any]() bool {
	typ := reflect.TypeFor[T]()
	if v, ok := pointerFree.Load(typ); ok {
		return v.(bool)
	}
	pf := PointerFree(typ)
	pointerFree.Store(typ, pf)
	return pf
}

// Of returns the size, rounded up to Align, and the alignment of T.
func Of[T any]() (size, align uintptr) {
	var zero T
	return RoundUp(unsafe.Sizeof(zero), Align), unsafe.Alignof(zero)
}
