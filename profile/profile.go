// Package profile holds the build profile switches of the debug
// instrumentation layers. The defaults come from the memcore_debug build
// tag and can be overridden at runtime.
package profile

// Settings toggles the instrumentation layers.
type Settings struct {
	// Poison fills destroyed shared objects with PoisonByte so that a
	// dereference after destruction is easy to spot.
	Poison bool

	// Traces compiles lifetime diagnostics in. Types still have to opt in.
	Traces bool

	// ClearMem fills fresh chunks with FreshByte and cleared chunks with
	// ClearedByte.
	ClearMem bool

	// Checks enables bounds and kind assertions that are otherwise left
	// unchecked.
	Checks bool
}

const (
	PoisonByte  = 0xDD
	FreshByte   = 0xAA
	ClearedByte = 0xCC
)

var current = defaults

// Current returns the active settings.
func Current() Settings { return current }

// Set replaces the active settings and returns the previous ones.
func Set(s Settings) (prev Settings) {
	prev, current = current, s
	return prev
}

// Default returns the settings selected by the build profile.
func Default() Settings { return defaults }

func Poison() bool   { return current.Poison }
func Traces() bool   { return current.Traces }
func ClearMem() bool { return current.ClearMem }
func Checks() bool   { return current.Checks }
