package generalized

import (
	"sync"

	"github.com/deffrian/lattice-agreement/configs"
	"github.com/deffrian/lattice-agreement/lattice"
)

// Learner tallies acks per (proposer, proposal number). When one pair
// reaches a majority with a value strictly above the learnt value, the
// learnt value advances and every waiter is woken.
type Learner struct {
	n           uint64
	learntValue lattice.Set
	ackCount    map[uint64]map[uint64]uint64

	latch sync.Mutex
	cond  *sync.Cond
}

func NewLearner(n uint64) *Learner {
	res := &Learner{
		n:           n,
		learntValue: lattice.NewSet(),
		ackCount:    make(map[uint64]map[uint64]uint64),
	}
	res.cond = sync.NewCond(&res.latch)
	return res
}

func (l *Learner) ProcessAck(proposalNumber uint64, value lattice.Set, proposerID uint64) {
	l.latch.Lock()
	defer l.latch.Unlock()
	counts, ok := l.ackCount[proposerID]
	if !ok {
		counts = make(map[uint64]uint64)
		l.ackCount[proposerID] = counts
	}
	counts[proposalNumber]++
	configs.ProcPrint(proposerID, "learner tally %v for proposal %v", counts[proposalNumber], proposalNumber)
	if counts[proposalNumber] >= (l.n+2)/2 && l.learntValue.Lt(value) {
		l.learntValue = value.Clone()
		l.cond.Broadcast()
	}
}

// LearnValue blocks until the learnt value dominates the proposal, then
// returns it. The learnt value only ever grows.
func (l *Learner) LearnValue(proposal lattice.Set) lattice.Set {
	l.latch.Lock()
	defer l.latch.Unlock()
	for !proposal.Leq(l.learntValue) {
		l.cond.Wait()
	}
	return l.learntValue.Clone()
}

// LearntValue snapshots the current learnt value without blocking.
func (l *Learner) LearntValue() lattice.Set {
	l.latch.Lock()
	defer l.latch.Unlock()
	return l.learntValue.Clone()
}
