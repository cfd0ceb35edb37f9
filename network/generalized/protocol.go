// Package generalized implements generalized lattice agreement: a
// sequence of single-shot instances per process with value buffering,
// internal-receive broadcast, and a learner that tallies acks per
// (proposer, proposal number) into a monotone learnt value.
package generalized

import (
	"github.com/deffrian/lattice-agreement/configs"
	"github.com/deffrian/lattice-agreement/lattice"
	"github.com/deffrian/lattice-agreement/network"
)

// Recipient bytes of the message envelope.
const (
	ToAcceptor uint8 = 0
	ToProposer uint8 = 1
	ToLearner  uint8 = 2
)

// Sub-type bytes of proposer messages.
const (
	Accept          uint8 = 0
	NAccept         uint8 = 1
	InternalReceive uint8 = 2
)

type AcceptorCallback interface {
	ProcessProposal(proposalNumber uint64, proposedValue lattice.Set, proposerID uint64)
}

type ProposerCallback interface {
	ProcessAck(proposalNumber uint64)
	ProcessNack(proposalNumber uint64, value lattice.Set)
	ProcessInternalReceive(value lattice.Set)
}

type LearnerCallback interface {
	ProcessAck(proposalNumber uint64, value lattice.Set, proposerID uint64)
}

type Protocol struct {
	comm     *network.Comm
	peers    map[uint64]network.ProcessDescriptor
	acceptor AcceptorCallback
	proposer ProposerCallback
	learner  LearnerCallback
}

func NewProtocol(address string) *Protocol {
	res := &Protocol{peers: make(map[uint64]network.ProcessDescriptor)}
	res.comm = network.NewComm(address, res)
	return res
}

func (p *Protocol) AddProcess(d network.ProcessDescriptor) {
	p.peers[d.ID] = d
}

func (p *Protocol) Start(acceptor AcceptorCallback, proposer ProposerCallback, learner LearnerCallback) {
	p.acceptor = acceptor
	p.proposer = proposer
	p.learner = learner
	go p.comm.Run()
}

func (p *Protocol) Stop() {
	p.comm.Stop()
}

func (p *Protocol) SendProposal(proposedValue lattice.Set, proposalNumber uint64, proposerID uint64) {
	for _, peer := range p.peers {
		msg := network.NewMessage()
		msg.PutByte(ToAcceptor)
		msg.PutUint(proposalNumber)
		msg.PutLattice(proposedValue)
		msg.PutUint(proposerID)
		p.comm.Send(peer, msg)
	}
}

// SendResponse routes an acceptor reply: Accept and NAccept go to the
// proposer; an Accept is additionally forwarded to every learner, the
// local one included.
func (p *Protocol) SendResponse(to uint64, isAck bool, proposalNumber uint64, value lattice.Set, proposerID uint64) {
	peer, ok := p.peers[to]
	if !configs.Warn(ok, "response for an unknown proposer") {
		return
	}
	msg := network.NewMessage()
	msg.PutByte(ToProposer)
	if isAck {
		msg.PutByte(Accept)
	} else {
		msg.PutByte(NAccept)
	}
	msg.PutUint(proposalNumber)
	msg.PutUint(proposerID)
	msg.PutLattice(value)
	p.comm.Send(peer, msg)

	if !isAck {
		return
	}
	for _, learner := range p.peers {
		ack := network.NewMessage()
		ack.PutByte(ToLearner)
		ack.PutUint(proposalNumber)
		ack.PutLattice(value)
		ack.PutUint(proposerID)
		p.comm.Send(learner, ack)
	}
}

// SendInternalReceive tells every other proposer to buffer the value.
func (p *Protocol) SendInternalReceive(value lattice.Set, except uint64) {
	for _, peer := range p.peers {
		if peer.ID == except {
			continue
		}
		msg := network.NewMessage()
		msg.PutByte(ToProposer)
		msg.PutByte(InternalReceive)
		msg.PutLattice(value)
		p.comm.Send(peer, msg)
	}
}

func (p *Protocol) OnMessageReceived(m *network.Message) {
	recipient, err := m.ReadByte()
	if err != nil {
		configs.Warn(false, "dropping unreadable message: "+err.Error())
		return
	}
	switch recipient {
	case ToAcceptor:
		p.dispatchProposal(m)
	case ToProposer:
		p.dispatchResponse(m)
	case ToLearner:
		p.dispatchLearnerAck(m)
	default:
		configs.Warn(false, "unknown recipient discriminant")
	}
}

func (p *Protocol) dispatchProposal(m *network.Message) {
	proposalNumber, err := m.ReadUint()
	if err != nil {
		configs.Warn(false, "malformed proposal dropped")
		return
	}
	value, err := m.ReadLattice()
	if err != nil {
		configs.Warn(false, "malformed proposal dropped")
		return
	}
	proposerID, err := m.ReadUint()
	if err != nil {
		configs.Warn(false, "malformed proposal dropped")
		return
	}
	p.acceptor.ProcessProposal(proposalNumber, value, proposerID)
}

func (p *Protocol) dispatchResponse(m *network.Message) {
	subType, err := m.ReadByte()
	if err != nil {
		configs.Warn(false, "malformed response dropped")
		return
	}
	if subType == InternalReceive {
		value, err := m.ReadLattice()
		if err != nil {
			configs.Warn(false, "malformed internal receive dropped")
			return
		}
		p.proposer.ProcessInternalReceive(value)
		return
	}
	proposalNumber, err := m.ReadUint()
	if err != nil {
		configs.Warn(false, "malformed response dropped")
		return
	}
	if _, err = m.ReadUint(); err != nil { // proposer id, implied by the recipient
		configs.Warn(false, "malformed response dropped")
		return
	}
	value, err := m.ReadLattice()
	if err != nil {
		configs.Warn(false, "malformed response dropped")
		return
	}
	switch subType {
	case Accept:
		p.proposer.ProcessAck(proposalNumber)
	case NAccept:
		p.proposer.ProcessNack(proposalNumber, value)
	default:
		configs.Warn(false, "wrong proposer message sub-type")
	}
}

func (p *Protocol) dispatchLearnerAck(m *network.Message) {
	proposalNumber, err := m.ReadUint()
	if err != nil {
		configs.Warn(false, "malformed learner ack dropped")
		return
	}
	value, err := m.ReadLattice()
	if err != nil {
		configs.Warn(false, "malformed learner ack dropped")
		return
	}
	proposerID, err := m.ReadUint()
	if err != nil {
		configs.Warn(false, "malformed learner ack dropped")
		return
	}
	p.learner.ProcessAck(proposalNumber, value, proposerID)
}
