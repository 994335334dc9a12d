package chunk

import "unsafe"

type state uint8

const (
	stateValid state = iota
	stateSkipOOB
	stateCrossChunk
	stateEnd
)

// Cursor walks the element units of a chain, skipping out of band units
// and empty chunks. The zero value is at the end.
type Cursor struct {
	c   *chunk
	pos int
}

// Begin returns a cursor on the first element unit.
func (ch *Chain) Begin() Cursor {
	cur := Cursor{c: ch.head}
	cur.settle()
	return cur
}

func (cur *Cursor) state() state {
	switch {
	case cur.c == nil:
		return stateEnd
	case cur.pos >= cur.c.used:
		return stateCrossChunk
	case cur.pos == 0 && cur.c.skipFirst:
		return stateSkipOOB
	default:
		return stateValid
	}
}

func (cur *Cursor) settle() {
	for {
		switch cur.state() {
		case stateValid, stateEnd:
			return
		case stateSkipOOB:
			cur.pos += int(cur.c.header(0).Stride)
		case stateCrossChunk:
			cur.c, cur.pos = cur.c.next, 0
		}
	}
}

// Valid reports if the cursor is on an element unit.
func (cur Cursor) Valid() bool { return cur.c != nil }

// Next advances to the next element unit.
func (cur *Cursor) Next() {
	cur.pos += int(cur.c.header(cur.pos).Stride)
	cur.settle()
}

func (cur Cursor) Header() *Header { return cur.c.header(cur.pos) }

// Body returns a pointer to the bytes after the header of the unit.
func (cur Cursor) Body() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(cur.c.mem[cur.pos+HeaderSize:]))
}

// Bytes returns the n bytes after the header of the unit.
func (cur Cursor) Bytes(n int) []byte {
	body := cur.pos + HeaderSize
	return cur.c.mem[body : body+n : body+n]
}
