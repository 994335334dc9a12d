package sizeof

import "unsafe"

func Slice[T any](v []T) uint64 {
	return 24 + uint64(unsafe.Sizeof(*new(T)))*uint64(cap(v))
}

func Of[T any]() uint64 {
	return uint64(unsafe.Sizeof(*new(T)))
}

func Map[K comparable, V any](m map[K]V) uint64 {
	return 48 + uint64(len(m))*(Of[K]()+Of[V]()+1)
}
