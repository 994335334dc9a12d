// Package lifetime records where shared objects were created and where each
// outstanding reference to them was taken. It is meant for tracking down
// leaks and dangling weak references, and costs a stack capture per event,
// so types opt in individually.
package lifetime

import (
	"fmt"
	"runtime"
	"strings"
	"time"
	"unsafe"

	"github.com/zeebo/xxh3"

	"github.com/histdb/memcore/profile"
)

type Kind uint8

const (
	Creation Kind = iota
	Strong
	Weak
)

func (k Kind) String() string {
	switch k {
	case Creation:
		return "creation"
	case Strong:
		return "strong"
	case Weak:
		return "weak"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Tracked is implemented by types that want to decide for themselves if
// diagnostics are recorded for them.
type Tracked interface {
	TrackLifetime() bool
}

var trackDefault = false

// SetDefault sets if types that do not implement Tracked are recorded.
func SetDefault(on bool) (prev bool) {
	prev, trackDefault = trackDefault, on
	return prev
}

// Enabled reports if diagnostics are recorded for V.
func Enabled[V any]() bool {
	if !profile.Traces() {
		return false
	}
	var zero V
	if tr, ok := any(zero).(Tracked); ok {
		return tr.TrackLifetime()
	}
	if tr, ok := any(&zero).(Tracked); ok {
		return tr.TrackLifetime()
	}
	return trackDefault
}

var frame uint64

// AdvanceFrame bumps the frame counter stamped on every entry. Hosts that
// run in cycles call it once per cycle.
func AdvanceFrame() uint64 {
	frame++
	return frame
}

// Frame returns the current frame counter.
func Frame() uint64 { return frame }

const maxDepth = 32

// Entry is one captured event.
type Entry struct {
	Kind  Kind
	Time  time.Time
	Frame uint64
	PCs   []uintptr
	Hash  uint64

	seq uint64
}

func capture(kind Kind, skip int) Entry {
	pcs := make([]uintptr, maxDepth)
	pcs = pcs[:runtime.Callers(skip+2, pcs)]

	var hash uint64
	if len(pcs) > 0 {
		hash = xxh3.Hash(unsafe.Slice((*byte)(unsafe.Pointer(&pcs[0])), len(pcs)*int(unsafe.Sizeof(pcs[0]))))
	}

	return Entry{
		Kind:  kind,
		Time:  time.Now(),
		Frame: frame,
		PCs:   pcs,
		Hash:  hash,
	}
}

// Frames resolves the captured program counters.
func (e Entry) Frames() (out []runtime.Frame) {
	if len(e.PCs) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(e.PCs)
	for {
		f, more := frames.Next()
		out = append(out, f)
		if !more {
			return out
		}
	}
}

func (e Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %s (frame %d)\n", e.Kind, e.Time.Format(time.RFC3339Nano), e.Frame)
	for _, f := range e.Frames() {
		fmt.Fprintf(&b, "\t%s\n\t\t%s:%d\n", f.Function, f.File, f.Line)
	}
	return b.String()
}
