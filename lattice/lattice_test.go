package lattice

import (
	"testing"

	"github.com/magiconair/properties/assert"
)

func TestJoinLaws(t *testing.T) {
	a := NewSet(1, 2)
	b := NewSet(2, 3)
	c := NewSet(5)

	assert.Equal(t, true, Join(a, b).Equal(Join(b, a)))
	assert.Equal(t, true, Join(Join(a, b), c).Equal(Join(a, Join(b, c))))
	assert.Equal(t, true, Join(a, a).Equal(a))
}

func TestOrderInducedByJoin(t *testing.T) {
	a := NewSet(1)
	b := NewSet(1, 2)

	// a ≤ b iff join(a,b) = b.
	assert.Equal(t, true, a.Leq(b))
	assert.Equal(t, true, Join(a, b).Equal(b))
	assert.Equal(t, false, b.Leq(a))
	assert.Equal(t, true, a.Lt(b))
	assert.Equal(t, false, a.Lt(a))

	// {1,2} and {2,3} are incomparable.
	c := NewSet(2, 3)
	assert.Equal(t, false, b.Leq(c))
	assert.Equal(t, false, c.Leq(b))
}

func TestBottom(t *testing.T) {
	var bottom Set
	a := NewSet(7)

	assert.Equal(t, true, bottom.Leq(a))
	assert.Equal(t, true, bottom.Equal(NewSet()))
	assert.Equal(t, 0, bottom.Size())
	assert.Equal(t, true, Join(bottom, a).Equal(a))

	bottom.Insert(9)
	assert.Equal(t, true, bottom.Contains(9))
	assert.Equal(t, 1, bottom.Size())
}

func TestCloneIsolation(t *testing.T) {
	a := NewSet(1)
	b := a.Clone()
	b.Insert(2)
	assert.Equal(t, false, a.Contains(2))
	assert.Equal(t, true, b.Contains(1))
}

func TestJoinAll(t *testing.T) {
	v := []Set{NewSet(1), NewSet(2), NewSet(), NewSet(1, 3)}
	assert.Equal(t, true, JoinAll(v).Equal(NewSet(1, 2, 3)))
	assert.Equal(t, "{1,2,3}", JoinAll(v).String())
}
