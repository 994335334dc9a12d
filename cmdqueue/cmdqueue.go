// Package cmdqueue records commands for later execution. Commands are kept
// in chunked storage so recording a frame of work does not allocate once
// the chunks are warm.
package cmdqueue

import (
	"github.com/histdb/memcore/chunk"
	"github.com/histdb/memcore/polyvec"
)

// Cmd is a recorded command.
type Cmd interface {
	Exec()
}

type funcCmd struct{ fn func() }

func (c *funcCmd) Exec() { c.fn() }

type argCmd[A any] struct {
	arg A
	fn  func(A)
}

func (c *argCmd[A]) Exec() { c.fn(c.arg) }

// Queue is a list of commands executed in the order they were pushed. It
// is not safe for concurrent use.
type Queue struct {
	_ [0]func() // no equality

	cmds *polyvec.Vector[Cmd]
}

// New returns a Queue whose first chunk holds chunkCapacity bytes. Passing
// the Capacity of a previous typical run sizes it to hold all commands in
// one chunk.
func New(chunkCapacity int) *Queue {
	return &Queue{
		cmds: polyvec.NewConfig[Cmd](polyvec.Config{
			ChunkCapacity: chunkCapacity,
			BaseSize:      polyvec.Span[funcCmd]() - chunk.HeaderSize,
		}),
	}
}

// Push records fn.
func (q *Queue) Push(fn func()) {
	polyvec.Emplace[funcCmd, Cmd](q.cmds, funcCmd{fn: fn})
}

// PushWith records a call of fn with arg. arg is stored by value next to
// the command.
func PushWith[A any](q *Queue, arg A, fn func(A)) {
	polyvec.Emplace[argCmd[A], Cmd](q.cmds, argCmd[A]{arg: arg, fn: fn})
}

// PushOOBString stores s next to the commands and returns the stored copy,
// which stays valid until the queue is cleared.
func (q *Queue) PushOOBString(s string) string {
	return q.cmds.PushOOBString(s)
}

// ExecuteAll runs every command in order and returns how many ran. The
// commands are kept; use Clear to remove them.
func (q *Queue) ExecuteAll() int {
	for cmd := range q.cmds.All() {
		cmd.Exec()
	}
	return q.cmds.Len()
}

// Clear removes every command. A non-zero resetToOneChunk leaves a single
// chunk of at least that many bytes.
func (q *Queue) Clear(resetToOneChunk int) { q.cmds.Clear(resetToOneChunk) }

// Release removes every command and frees the memory.
func (q *Queue) Release() { q.cmds.Release() }

// Len returns the number of recorded commands.
func (q *Queue) Len() int { return q.cmds.Len() }

// Capacity returns the number of bytes used by the recorded commands.
func (q *Queue) Capacity() int {
	used, _ := q.cmds.Capacity()
	return used
}

func (q *Queue) Chunks() []chunk.Stats { return q.cmds.Chunks() }
