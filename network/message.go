package network

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/deffrian/lattice-agreement/lattice"
)

// ErrShortMessage is returned when a read runs past the payload end.
var ErrShortMessage = errors.New("network: read past end of message")

// Message is a framed payload under construction or decoding. All
// integers are little-endian. On the wire a message is a u64 payload
// length followed by exactly that many payload bytes.
type Message struct {
	data []byte
	pos  int
}

func NewMessage() *Message {
	return &Message{data: make([]byte, 0, 64)}
}

func MessageFrom(payload []byte) *Message {
	return &Message{data: payload}
}

func (m *Message) Bytes() []byte {
	return m.data
}

func (m *Message) Len() int {
	return len(m.data)
}

func (m *Message) PutByte(b uint8) {
	m.data = append(m.data, b)
}

func (m *Message) PutUint(v uint64) {
	m.data = binary.LittleEndian.AppendUint64(m.data, v)
}

func (m *Message) PutFloat(v float64) {
	m.PutUint(math.Float64bits(v))
}

func (m *Message) PutString(s string) {
	m.PutUint(uint64(len(s)))
	m.data = append(m.data, s...)
}

// PutLattice writes the cardinality followed by the elements in the
// sender's iteration order; the receiver reconstructs by insertion.
func (m *Message) PutLattice(s lattice.Set) {
	elems := s.Elems()
	m.PutUint(uint64(len(elems)))
	for _, elem := range elems {
		m.PutUint(elem)
	}
}

func (m *Message) PutLatticeVec(v []lattice.Set) {
	m.PutUint(uint64(len(v)))
	for _, elem := range v {
		m.PutLattice(elem)
	}
}

func (m *Message) ReadByte() (uint8, error) {
	if m.pos+1 > len(m.data) {
		return 0, ErrShortMessage
	}
	b := m.data[m.pos]
	m.pos++
	return b, nil
}

func (m *Message) ReadUint() (uint64, error) {
	if m.pos+8 > len(m.data) {
		return 0, ErrShortMessage
	}
	v := binary.LittleEndian.Uint64(m.data[m.pos:])
	m.pos += 8
	return v, nil
}

func (m *Message) ReadFloat() (float64, error) {
	v, err := m.ReadUint()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (m *Message) ReadString() (string, error) {
	n, err := m.ReadUint()
	if err != nil {
		return "", err
	}
	if m.pos+int(n) > len(m.data) {
		return "", ErrShortMessage
	}
	s := string(m.data[m.pos : m.pos+int(n)])
	m.pos += int(n)
	return s, nil
}

func (m *Message) ReadLattice() (lattice.Set, error) {
	n, err := m.ReadUint()
	if err != nil {
		return lattice.Set{}, err
	}
	res := lattice.NewSet()
	for i := uint64(0); i < n; i++ {
		elem, err := m.ReadUint()
		if err != nil {
			return lattice.Set{}, err
		}
		res.Insert(elem)
	}
	return res, nil
}

func (m *Message) ReadLatticeVec() ([]lattice.Set, error) {
	n, err := m.ReadUint()
	if err != nil {
		return nil, err
	}
	res := make([]lattice.Set, n)
	for i := uint64(0); i < n; i++ {
		res[i], err = m.ReadLattice()
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// WriteFrame writes the u64 length prefix and the payload.
func WriteFrame(w io.Writer, m *Message) error {
	header := binary.LittleEndian.AppendUint64(make([]byte, 0, 8), uint64(len(m.data)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(m.data)
	return err
}

// ReadFrame reads one length-prefixed message. Any short read is an
// error; the caller closes the connection on failure.
func ReadFrame(r io.Reader) (*Message, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint64(header)
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return MessageFrom(payload), nil
}
