// Package lattice provides the join-semilattice the agreement protocols
// operate on, together with its one concrete instance: a finite set of
// 64-bit unsigned integers ordered by inclusion.
package lattice

import (
	"sort"
	"strconv"
	"strings"

	set "github.com/deckarep/golang-set"
)

// Set is a join-semilattice element: join is set union and the induced
// partial order is the subset relation. The zero value is bottom (the
// empty set). Set is not safe for concurrent use, every protocol
// instance guards its lattices with its own latch.
type Set struct {
	inner set.Set
}

func NewSet(elems ...uint64) Set {
	s := set.NewThreadUnsafeSet()
	for _, e := range elems {
		s.Add(e)
	}
	return Set{inner: s}
}

func (s *Set) Insert(elem uint64) {
	if s.inner == nil {
		s.inner = set.NewThreadUnsafeSet()
	}
	s.inner.Add(elem)
}

// Join returns the least upper bound of a and b. Neither input is mutated.
func Join(a, b Set) Set {
	res := set.NewThreadUnsafeSet()
	if a.inner != nil {
		a.inner.Each(func(e interface{}) bool {
			res.Add(e)
			return false
		})
	}
	if b.inner != nil {
		b.inner.Each(func(e interface{}) bool {
			res.Add(e)
			return false
		})
	}
	return Set{inner: res}
}

// Leq reports whether s ≤ o in the lattice order, i.e. join(s,o) = o.
func (s Set) Leq(o Set) bool {
	if s.inner == nil {
		return true
	}
	if o.inner == nil {
		return s.inner.Cardinality() == 0
	}
	return s.inner.IsSubset(o.inner)
}

// Lt reports s ≤ o and s ≠ o.
func (s Set) Lt(o Set) bool {
	return s.Leq(o) && !s.Equal(o)
}

func (s Set) Equal(o Set) bool {
	return s.Leq(o) && o.Leq(s)
}

func (s Set) Size() int {
	if s.inner == nil {
		return 0
	}
	return s.inner.Cardinality()
}

func (s Set) Contains(elem uint64) bool {
	if s.inner == nil {
		return false
	}
	return s.inner.Contains(elem)
}

func (s Set) Clone() Set {
	if s.inner == nil {
		return NewSet()
	}
	return Set{inner: s.inner.Clone()}
}

// Elems returns the elements in unspecified order.
func (s Set) Elems() []uint64 {
	if s.inner == nil {
		return nil
	}
	res := make([]uint64, 0, s.inner.Cardinality())
	s.inner.Each(func(e interface{}) bool {
		res = append(res, e.(uint64))
		return false
	})
	return res
}

func (s Set) String() string {
	elems := s.Elems()
	sort.Slice(elems, func(i, j int) bool { return elems[i] < elems[j] })
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = strconv.FormatUint(e, 10)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// JoinAll folds Join over a vector of lattices.
func JoinAll(v []Set) Set {
	res := NewSet()
	for _, elem := range v {
		res = Join(res, elem)
	}
	return res
}
