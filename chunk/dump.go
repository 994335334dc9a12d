package chunk

import (
	"github.com/histdb/memcore/hexx"
)

// Dump renders every chunk and the headers of its units in hex, one line
// per unit. Out of band units are marked with "oob".
func (ch *Chain) Dump() string {
	var out []byte
	n := 0
	for c := ch.head; c != nil; c = c.next {
		out = append(out, "chunk "...)
		out = hexx.Append32(out, uint32(n))
		out = append(out, " used="...)
		out = hexx.Append32(out, uint32(c.used))
		out = append(out, " cap="...)
		out = hexx.Append32(out, uint32(len(c.mem)))
		out = append(out, '\n')

		for pos := 0; pos < c.used; {
			h := c.header(pos)
			out = append(out, "  "...)
			out = hexx.Append32(out, uint32(pos))
			out = append(out, " stride="...)
			out = hexx.Append32(out, h.Stride)
			out = append(out, " slot="...)
			out = hexx.Append32(out, h.Slot)
			if pos == 0 && c.skipFirst {
				out = append(out, " oob"...)
			}
			out = append(out, '\n')
			pos += int(h.Stride)
		}
		n++
	}
	return string(out)
}
