// Package zheng implements lattice agreement with the recursive
// classifier: after one round of value exchange, ⌈log₂ f⌉ classifier
// rounds refine a vector of lattices through read/write register
// operations until every non-faulty process holds a comparable join.
package zheng

import (
	"sync/atomic"

	"github.com/deffrian/lattice-agreement/configs"
	"github.com/deffrian/lattice-agreement/lattice"
	"github.com/deffrian/lattice-agreement/network"
)

// Message type bytes.
const (
	Write    uint8 = 0
	Read     uint8 = 1
	WriteAck uint8 = 2
	ReadAck  uint8 = 3
	Value    uint8 = 4
)

// AcceptEntry is one register record: the written vector and the
// classifier threshold it was written under.
type AcceptEntry struct {
	Vector []lattice.Set
	K      float64
}

func (e AcceptEntry) equal(o AcceptEntry) bool {
	if e.K != o.K || len(e.Vector) != len(o.Vector) {
		return false
	}
	for i := range e.Vector {
		if !e.Vector[i].Equal(o.Vector[i]) {
			return false
		}
	}
	return true
}

type Callback interface {
	ReceiveWriteAck(recVal []AcceptEntry, r uint64, messageID uint64)
	ReceiveReadAck(recVal []AcceptEntry, r uint64, messageID uint64)
	ReceiveValue(value []lattice.Set, messageID uint64)
	ReceiveWrite(value []lattice.Set, k float64, r uint64, from uint64, messageID uint64)
	ReceiveRead(r uint64, from uint64, messageID uint64)
}

// Protocol frames classifier messages onto the transport. Message ids
// are monotone per process and informational only.
type Protocol struct {
	comm      *network.Comm
	peers     map[uint64]network.ProcessDescriptor
	callback  Callback
	messageID uint64
}

func NewProtocol(address string, id uint64) *Protocol {
	res := &Protocol{
		peers:     make(map[uint64]network.ProcessDescriptor),
		messageID: id * 1000,
	}
	res.comm = network.NewComm(address, res)
	return res
}

func (p *Protocol) AddProcess(d network.ProcessDescriptor) {
	p.peers[d.ID] = d
}

func (p *Protocol) Start(callback Callback) {
	p.callback = callback
	go p.comm.Run()
}

func (p *Protocol) Stop() {
	p.comm.Stop()
}

func (p *Protocol) nextMessageID() uint64 {
	return atomic.AddUint64(&p.messageID, 1) - 1
}

func (p *Protocol) SendValue(v []lattice.Set, from uint64) {
	for _, peer := range p.peers {
		msg := network.NewMessage()
		msg.PutByte(Value)
		msg.PutUint(from)
		msg.PutUint(p.nextMessageID())
		msg.PutLatticeVec(v)
		p.comm.Send(peer, msg)
	}
}

func (p *Protocol) SendWrite(v []lattice.Set, k float64, r uint64, from uint64) {
	for _, peer := range p.peers {
		msg := network.NewMessage()
		msg.PutByte(Write)
		msg.PutUint(from)
		msg.PutUint(p.nextMessageID())
		msg.PutLatticeVec(v)
		msg.PutFloat(k)
		msg.PutUint(r)
		p.comm.Send(peer, msg)
	}
}

func (p *Protocol) SendRead(r uint64, from uint64) {
	for _, peer := range p.peers {
		msg := network.NewMessage()
		msg.PutByte(Read)
		msg.PutUint(from)
		msg.PutUint(p.nextMessageID())
		msg.PutUint(r)
		p.comm.Send(peer, msg)
	}
}

func (p *Protocol) SendWriteAck(to uint64, recVal []AcceptEntry, r uint64, from uint64, messageID uint64) {
	p.sendAck(WriteAck, to, recVal, r, from, messageID)
}

func (p *Protocol) SendReadAck(to uint64, recVal []AcceptEntry, r uint64, from uint64, messageID uint64) {
	p.sendAck(ReadAck, to, recVal, r, from, messageID)
}

func (p *Protocol) sendAck(messageType uint8, to uint64, recVal []AcceptEntry, r uint64, from uint64, messageID uint64) {
	peer, ok := p.peers[to]
	if !configs.Warn(ok, "ack for an unknown process") {
		return
	}
	msg := network.NewMessage()
	msg.PutByte(messageType)
	msg.PutUint(from)
	msg.PutUint(messageID)
	putAcceptList(msg, recVal)
	msg.PutUint(r)
	p.comm.Send(peer, msg)
}

func putAcceptList(m *network.Message, entries []AcceptEntry) {
	m.PutUint(uint64(len(entries)))
	for _, e := range entries {
		m.PutLatticeVec(e.Vector)
		m.PutFloat(e.K)
	}
}

func readAcceptList(m *network.Message) ([]AcceptEntry, error) {
	n, err := m.ReadUint()
	if err != nil {
		return nil, err
	}
	res := make([]AcceptEntry, n)
	for i := uint64(0); i < n; i++ {
		res[i].Vector, err = m.ReadLatticeVec()
		if err != nil {
			return nil, err
		}
		res[i].K, err = m.ReadFloat()
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (p *Protocol) OnMessageReceived(m *network.Message) {
	messageType, err := m.ReadByte()
	if err != nil {
		configs.Warn(false, "dropping unreadable message: "+err.Error())
		return
	}
	from, err := m.ReadUint()
	if err != nil {
		configs.Warn(false, "malformed message dropped")
		return
	}
	messageID, err := m.ReadUint()
	if err != nil {
		configs.Warn(false, "malformed message dropped")
		return
	}
	configs.ProcPrint(from, "<< message type %v id %v", messageType, messageID)
	switch messageType {
	case Value:
		value, err := m.ReadLatticeVec()
		if configs.Warn(err == nil, "malformed value dropped") {
			p.callback.ReceiveValue(value, messageID)
		}
	case Write:
		value, err := m.ReadLatticeVec()
		if err != nil {
			configs.Warn(false, "malformed write dropped")
			return
		}
		k, err := m.ReadFloat()
		if err != nil {
			configs.Warn(false, "malformed write dropped")
			return
		}
		r, err := m.ReadUint()
		if err != nil {
			configs.Warn(false, "malformed write dropped")
			return
		}
		p.callback.ReceiveWrite(value, k, r, from, messageID)
	case Read:
		r, err := m.ReadUint()
		if configs.Warn(err == nil, "malformed read dropped") {
			p.callback.ReceiveRead(r, from, messageID)
		}
	case WriteAck, ReadAck:
		recVal, err := readAcceptList(m)
		if err != nil {
			configs.Warn(false, "malformed ack dropped")
			return
		}
		r, err := m.ReadUint()
		if err != nil {
			configs.Warn(false, "malformed ack dropped")
			return
		}
		if messageType == WriteAck {
			p.callback.ReceiveWriteAck(recVal, r, messageID)
		} else {
			p.callback.ReceiveReadAck(recVal, r, messageID)
		}
	default:
		configs.Warn(false, "unknown message type discriminant")
	}
}
