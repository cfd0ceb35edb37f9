package network

import (
	"bytes"
	"testing"

	"github.com/magiconair/properties/assert"
	"github.com/stretchr/testify/require"

	"github.com/deffrian/lattice-agreement/lattice"
)

func TestMessageRoundTrip(t *testing.T) {
	m := NewMessage()
	m.PutByte(1)
	m.PutUint(42)
	m.PutLattice(lattice.NewSet(7, 11, 13))
	m.PutUint(3)
	for _, v := range []uint64{1, 2, 3} {
		m.PutUint(v)
	}
	// pair(u64, lattice) is the two fields concatenated.
	m.PutUint(5)
	m.PutLattice(lattice.NewSet())

	dec := MessageFrom(m.Bytes())
	b, err := dec.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), b)
	n, err := dec.ReadUint()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)
	s, err := dec.ReadLattice()
	require.NoError(t, err)
	assert.Equal(t, true, s.Equal(lattice.NewSet(7, 11, 13)))
	cnt, err := dec.ReadUint()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cnt)
	for _, want := range []uint64{1, 2, 3} {
		v, err := dec.ReadUint()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	first, err := dec.ReadUint()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), first)
	second, err := dec.ReadLattice()
	require.NoError(t, err)
	assert.Equal(t, 0, second.Size())

	// Payload fully consumed.
	_, err = dec.ReadByte()
	assert.Equal(t, ErrShortMessage, err)
}

func TestMessageStringAndFloat(t *testing.T) {
	m := NewMessage()
	m.PutString("127.0.0.1")
	m.PutFloat(6.5)
	m.PutString("")

	dec := MessageFrom(m.Bytes())
	s, err := dec.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", s)
	f, err := dec.ReadFloat()
	require.NoError(t, err)
	assert.Equal(t, 6.5, f)
	s, err = dec.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "", s)
}

func TestMessageLatticeVec(t *testing.T) {
	v := []lattice.Set{lattice.NewSet(1), lattice.NewSet(), lattice.NewSet(2, 3)}
	m := NewMessage()
	m.PutLatticeVec(v)

	got, err := MessageFrom(m.Bytes()).ReadLatticeVec()
	require.NoError(t, err)
	require.Equal(t, 3, len(got))
	for i := range v {
		assert.Equal(t, true, got[i].Equal(v[i]))
	}
}

func TestMessageShortReads(t *testing.T) {
	dec := MessageFrom([]byte{1, 2, 3})
	_, err := dec.ReadUint()
	assert.Equal(t, ErrShortMessage, err)

	// Truncated lattice: claims two elements, carries none.
	m := NewMessage()
	m.PutUint(2)
	dec = MessageFrom(m.Bytes())
	_, err = dec.ReadLattice()
	assert.Equal(t, ErrShortMessage, err)
}

func TestFrameRoundTrip(t *testing.T) {
	m := NewMessage()
	m.PutByte(4)
	m.PutUint(99)

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, m))
	// u64 length prefix plus the 9 payload bytes.
	assert.Equal(t, 8+9, buf.Len())

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Bytes(), got.Bytes())
}

func TestFrameShortRead(t *testing.T) {
	m := NewMessage()
	m.PutUint(7)
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, m))

	truncated := bytes.NewBuffer(buf.Bytes()[:10])
	_, err := ReadFrame(truncated)
	require.Error(t, err)
}
