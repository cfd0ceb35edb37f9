package faleiro

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

// Proposer runs the refinement loop of one process. The agreement
// goroutine blocks in Start while the transport callbacks feed acks and
// nacks through the latch and wake it via the notify channel.
type Proposer struct {
	uid                  uint64
	n                    uint64
	status               Status
	ackCount             uint64
	nackCount            uint64
	activeProposalNumber uint64
	proposedValue        lattice.Set

	protocol *Protocol

	latch  sync.Mutex
	notify chan struct{}
}

func NewProposer(protocol *Protocol, uid uint64, n uint64) *Proposer {
	return &Proposer{
		uid:      uid,
		n:        n,
		status:   Passive,
		protocol: protocol,
		notify:   make(chan struct{}, 1),
	}
}

// Start proposes the initial value and returns the decided value once a
// majority has acked one refinement.
func (p *Proposer) Start(initialValue lattice.Set) lattice.Set {
	p.latch.Lock()
	p.propose(initialValue)
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

func (p *Proposer) propose(initialValue lattice.Set) {
	if p.activeProposalNumber == 0 {
		p.proposedValue = initialValue.Clone()
		p.status = Active
		p.activeProposalNumber++
		p.protocol.SendProposal(p.proposedValue, p.activeProposalNumber, p.uid)
	}
}

func (p *Proposer) ProcessAck(proposalNumber uint64) {
	p.latch.Lock()
	defer p.latch.Unlock()
	if proposalNumber == p.activeProposalNumber {
		configs.ProcPrint(p.uid, "<< ack received for %v", proposalNumber)
		p.ackCount++
		p.signal()
	}
}

func (p *Proposer) ProcessNack(proposalNumber uint64, value lattice.Set) {
	p.latch.Lock()
	defer p.latch.Unlock()
	if proposalNumber == p.activeProposalNumber {
		configs.ProcPrint(p.uid, "<< nack received for %v", proposalNumber)
		p.proposedValue = lattice.Join(p.proposedValue, value)
		p.nackCount++
		p.signal()
	}
}

// refine rebroadcasts the merged value under a fresh proposal number
// once a majority has replied but not acked unanimously.
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
		return p.proposedValue, true
	}
	return lattice.Set{}, false
}

func (p *Proposer) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}
