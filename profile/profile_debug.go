//go:build memcore_debug

package profile

const Debug = true

var defaults = Settings{
	Poison:   true,
	Traces:   true,
	ClearMem: false,
	Checks:   true,
}
