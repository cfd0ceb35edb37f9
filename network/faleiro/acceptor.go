package faleiro

import (
	lock "github.com/viney-shih/go-lock"

	"github.com/deffrian/lattice-agreement/configs"
	"github.com/deffrian/lattice-agreement/lattice"
)

// Acceptor holds the monotone accepted value of one process. The
// accepted value only ever moves up the lattice.
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
	configs.ProcPrint(proposerID, "<< proposal %v received: %v", proposalNumber, proposedValue.String())
	if a.acceptedValue.Leq(proposedValue) {
		a.acceptedValue = proposedValue.Clone()
		a.protocol.SendResponse(proposerID, true, proposalNumber, proposedValue, proposerID)
	} else {
		a.acceptedValue = lattice.Join(a.acceptedValue, proposedValue)
		a.protocol.SendResponse(proposerID, false, proposalNumber, a.acceptedValue, proposerID)
	}
}

// AcceptedValue snapshots the current accepted value.
func (a *Acceptor) AcceptedValue() lattice.Set {
	a.latch.Lock()
	defer a.latch.Unlock()
	return a.acceptedValue.Clone()
}
