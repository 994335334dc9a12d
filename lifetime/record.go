package lifetime

import (
	"cmp"
	"slices"

	"github.com/histdb/memcore/arena1"
)

// Traces is a snapshot of a Record.
type Traces struct {
	// Creation is where the object was created. It does not stand for a
	// live reference and outlives every strong and weak entry.
	Creation Entry
	Strong   []Entry
	Weak     []Entry
}

// Handle names an entry registered in a Record. The zero Handle names
// nothing and can be removed safely.
type Handle struct {
	p arena1.P[Entry]
}

// Record owns the diagnostics of one metadata block: the creation entry
// plus a registry of the references currently outstanding.
type Record struct {
	_ [0]func() // no equality

	creation Entry
	reg      arena1.T[Entry]
	seq      uint64
}

// NewRecord captures the creation entry. skip is the number of callers
// above the caller of NewRecord to leave out of the trace.
func NewRecord(skip int) *Record {
	return &Record{creation: capture(Creation, skip+1)}
}

// Add registers an outstanding reference.
func (r *Record) Add(kind Kind, skip int) Handle {
	p := r.reg.New()
	e := r.reg.Get(p)
	*e = capture(kind, skip+1)
	r.seq++
	e.seq = r.seq
	return Handle{p: p}
}

// Remove drops the entry of a released reference.
func (r *Record) Remove(h Handle) {
	if h.p.Valid() {
		r.reg.Free(h.p)
	}
}

// Len is the number of outstanding references.
func (r *Record) Len() int { return r.reg.Len() }

// Traces returns the creation entry and the outstanding entries in the
// order they were taken.
func (r *Record) Traces() (tr Traces) {
	tr.Creation = r.creation

	var all []Entry
	r.reg.Each(func(_ arena1.P[Entry], e *Entry) bool {
		all = append(all, *e)
		return true
	})
	slices.SortFunc(all, func(a, b Entry) int { return cmp.Compare(a.seq, b.seq) })

	for _, e := range all {
		switch e.Kind {
		case Strong:
			tr.Strong = append(tr.Strong, e)
		case Weak:
			tr.Weak = append(tr.Weak, e)
		}
	}
	return tr
}

// Site groups outstanding references taken from the same call stack.
type Site struct {
	Kind   Kind
	Hash   uint64
	Count  int
	Sample Entry
}

// Summarize groups the outstanding references of tr by call stack, in the
// order each stack was first seen.
func Summarize(tr Traces) (sites []Site) {
	type key struct {
		kind Kind
		hash uint64
	}
	idx := make(map[key]int)

	add := func(entries []Entry) {
		for _, e := range entries {
			k := key{e.Kind, e.Hash}
			if i, ok := idx[k]; ok {
				sites[i].Count++
				continue
			}
			idx[k] = len(sites)
			sites = append(sites, Site{Kind: e.Kind, Hash: e.Hash, Count: 1, Sample: e})
		}
	}
	add(tr.Strong)
	add(tr.Weak)

	return sites
}
