package generalized

import (
	"sync"

	"github.com/deffrian/lattice-agreement/configs"
	"github.com/deffrian/lattice-agreement/lattice"
)

type Status uint8

const (
	Passive Status = iota
	Active
)

// Proposer runs sequential agreement instances over the values it has
// buffered. A new instance starts only when joining the buffered values
// into the last proposed value strictly increases it, so idempotent
// joins never spin the refinement loop.
type Proposer struct {
	uid                  uint64
	n                    uint64
	status               Status
	ackCount             uint64
	nackCount            uint64
	activeProposalNumber uint64
	proposedValue        lattice.Set
	bufferedValues       lattice.Set

	protocol *Protocol

	latch  sync.Mutex
	notify chan struct{}
}

func NewProposer(protocol *Protocol, uid uint64, n uint64) *Proposer {
	return &Proposer{
		uid:            uid,
		n:              n,
		status:         Passive,
		proposedValue:  lattice.NewSet(),
		bufferedValues: lattice.NewSet(),
		protocol:       protocol,
		notify:         make(chan struct{}, 1),
	}
}

// ReceiveValue feeds one locally received value: broadcast to the other
// proposers, then buffer it here.
func (p *Proposer) ReceiveValue(value lattice.Set) {
	p.latch.Lock()
	defer p.latch.Unlock()
	p.protocol.SendInternalReceive(value, p.uid)
	p.bufferedValues = lattice.Join(value, p.bufferedValues)
	configs.ProcPrint(p.uid, "buffered values now %v", p.bufferedValues.String())
}

// Start proposes the buffered values and returns once the running
// instance decides. If there is nothing new to propose and no instance
// is in flight, it returns the last decided value immediately.
func (p *Proposer) Start() lattice.Set {
	p.latch.Lock()
	p.propose()
	if p.status == Passive {
		result := p.proposedValue.Clone()
		p.latch.Unlock()
		return result
	}
	for {
		p.latch.Unlock()
		<-p.notify
		p.latch.Lock()
		if result, ok := p.decide(); ok {
			p.latch.Unlock()
			return result
		}
		p.refine()
	}
}

func (p *Proposer) propose() {
	tmp := lattice.Join(p.proposedValue, p.bufferedValues)
	if p.status == Passive && p.proposedValue.Lt(tmp) {
		p.proposedValue = tmp
		p.status = Active
		p.activeProposalNumber++
		p.ackCount = 0
		p.nackCount = 0
		p.protocol.SendProposal(p.proposedValue, p.activeProposalNumber, p.uid)
		p.bufferedValues = lattice.NewSet()
	}
}

func (p *Proposer) ProcessInternalReceive(value lattice.Set) {
	p.latch.Lock()
	defer p.latch.Unlock()
	p.bufferedValues = lattice.Join(value, p.bufferedValues)
}

func (p *Proposer) ProcessAck(proposalNumber uint64) {
	p.latch.Lock()
	defer p.latch.Unlock()
	if proposalNumber == p.activeProposalNumber {
		p.ackCount++
		p.signal()
	}
}

func (p *Proposer) ProcessNack(proposalNumber uint64, value lattice.Set) {
	p.latch.Lock()
	defer p.latch.Unlock()
	if proposalNumber == p.activeProposalNumber {
		p.proposedValue = lattice.Join(p.proposedValue, value)
		p.nackCount++
		p.signal()
	}
}

func (p *Proposer) refine() {
	if p.status == Active && p.nackCount > 0 &&
		p.nackCount+p.ackCount >= (p.n+2)/2 {
		p.activeProposalNumber++
		p.ackCount = 0
		p.nackCount = 0
		p.protocol.SendProposal(p.proposedValue, p.activeProposalNumber, p.uid)
	}
}

func (p *Proposer) decide() (lattice.Set, bool) {
	if p.status == Active && p.ackCount >= (p.n+2)/2 {
		p.status = Passive
		result := p.proposedValue.Clone()
		// Values buffered during the instance start the next one.
		p.propose()
		return result, true
	}
	return lattice.Set{}, false
}

func (p *Proposer) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}
