package generalized

import (
	lock "github.com/viney-shih/go-lock"

	"github.com/deffrian/lattice-agreement/lattice"
)

// Acceptor mirrors the single-shot acceptor; the only difference is the
// reply routing, which fans acks out to the learners (see SendResponse).
type Acceptor struct {
	acceptedValue lattice.Set

	protocol *Protocol
	latch    lock.Mutex
}

func NewAcceptor(protocol *Protocol) *Acceptor {
	return &Acceptor{
		acceptedValue: lattice.NewSet(),
		protocol:      protocol,
		latch:         lock.NewCASMutex(),
	}
}

func (a *Acceptor) ProcessProposal(proposalNumber uint64, proposedValue lattice.Set, proposerID uint64) {
	a.latch.Lock()
	defer a.latch.Unlock()
	if a.acceptedValue.Leq(proposedValue) {
		a.acceptedValue = proposedValue.Clone()
		a.protocol.SendResponse(proposerID, true, proposalNumber, proposedValue, proposerID)
	} else {
		a.acceptedValue = lattice.Join(a.acceptedValue, proposedValue)
		a.protocol.SendResponse(proposerID, false, proposalNumber, a.acceptedValue, proposerID)
	}
}

func (a *Acceptor) AcceptedValue() lattice.Set {
	a.latch.Lock()
	defer a.latch.Unlock()
	return a.acceptedValue.Clone()
}
