// Package faleiro implements single-shot lattice agreement with the
// proposer/acceptor refinement loop: proposals are broadcast, acceptors
// reply Ack or Nack with a merged value, and the proposer refines until
// a majority acks one proposal number.
package faleiro

import (
	"github.com/deffrian/lattice-agreement/configs"
	"github.com/deffrian/lattice-agreement/lattice"
	"github.com/deffrian/lattice-agreement/network"
)

// Recipient bytes of the message envelope.
const (
	ToAcceptor uint8 = 0
	ToProposer uint8 = 1
)

type AcceptorCallback interface {
	ProcessProposal(proposalNumber uint64, proposedValue lattice.Set, proposerID uint64)
}

type ProposerCallback interface {
	ProcessAck(proposalNumber uint64)
	ProcessNack(proposalNumber uint64, value lattice.Set)
}

// Protocol binds the two roles of one process to the transport and
// routes inbound envelopes to them.
type Protocol struct {
	comm     *network.Comm
	peers    map[uint64]network.ProcessDescriptor
	acceptor AcceptorCallback
	proposer ProposerCallback
}

func NewProtocol(address string) *Protocol {
	res := &Protocol{peers: make(map[uint64]network.ProcessDescriptor)}
	res.comm = network.NewComm(address, res)
	return res
}

// AddProcess registers a participant. Call before Start; the peer table
// is fixed for the lifetime of the instance.
func (p *Protocol) AddProcess(d network.ProcessDescriptor) {
	p.peers[d.ID] = d
}

func (p *Protocol) Start(acceptor AcceptorCallback, proposer ProposerCallback) {
	p.acceptor = acceptor
	p.proposer = proposer
	go p.comm.Run()
}

func (p *Protocol) Stop() {
	p.comm.Stop()
}

// SendProposal broadcasts the proposal to every participant, the local
// acceptor included.
func (p *Protocol) SendProposal(proposedValue lattice.Set, proposalNumber uint64, proposerID uint64) {
	for _, peer := range p.peers {
		configs.ProcPrint(proposerID, ">> sending propose to %v", peer.ID)
		msg := network.NewMessage()
		msg.PutByte(ToAcceptor)
		msg.PutUint(proposalNumber)
		msg.PutLattice(proposedValue)
		msg.PutUint(proposerID)
		p.comm.Send(peer, msg)
	}
}

// SendResponse replies Ack or Nack to the proposer that sent a proposal.
func (p *Protocol) SendResponse(to uint64, isAck bool, proposalNumber uint64, value lattice.Set, proposerID uint64) {
	peer, ok := p.peers[to]
	if !configs.Warn(ok, "response for an unknown proposer") {
		return
	}
	msg := network.NewMessage()
	msg.PutByte(ToProposer)
	if isAck {
		msg.PutByte(1)
	} else {
		msg.PutByte(0)
	}
	msg.PutUint(proposalNumber)
	msg.PutUint(proposerID)
	msg.PutLattice(value)
	p.comm.Send(peer, msg)
}

func (p *Protocol) OnMessageReceived(m *network.Message) {
	recipient, err := m.ReadByte()
	if err != nil {
		configs.Warn(false, "dropping unreadable message: "+err.Error())
		return
	}
	switch recipient {
	case ToAcceptor:
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
	case ToProposer:
		isAck, err := m.ReadByte()
		if err != nil {
			configs.Warn(false, "malformed response dropped")
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
		switch isAck {
		case 1:
			p.proposer.ProcessAck(proposalNumber)
		case 0:
			p.proposer.ProcessNack(proposalNumber, value)
		default:
			configs.Warn(false, "wrong isAck discriminant")
		}
	default:
		configs.Warn(false, "unknown recipient discriminant")
	}
}
