package profile

import (
	"testing"

	"github.com/zeebo/assert"
)

func TestSet(t *testing.T) {
	prev := Set(Settings{Poison: true, Checks: true})
	defer Set(prev)

	assert.That(t, Poison())
	assert.That(t, Checks())
	assert.That(t, !Traces())
	assert.That(t, !ClearMem())

	Set(Default())
	assert.Equal(t, Current(), Default())
	assert.Equal(t, Poison(), Debug)
}
