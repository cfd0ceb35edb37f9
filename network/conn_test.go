package network

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	got  []uint64
	done chan struct{}
	want int
}

func newRecorder(want int) *recorder {
	return &recorder{done: make(chan struct{}, 1), want: want}
}

func (r *recorder) OnMessageReceived(m *Message) {
	v, err := m.ReadUint()
	if err != nil {
		return
	}
	r.mu.Lock()
	r.got = append(r.got, v)
	n := len(r.got)
	r.mu.Unlock()
	if n == r.want {
		r.done <- struct{}{}
	}
}

func (r *recorder) wait(t *testing.T) []uint64 {
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for messages")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.got...)
}

func TestCommDelivers(t *testing.T) {
	recv := newRecorder(1)
	server := NewComm("127.0.0.1:7101", recv)
	go server.Run()
	defer server.Stop()

	client := NewComm("127.0.0.1:7102", newRecorder(0))
	go client.Run()
	defer client.Stop()

	msg := NewMessage()
	msg.PutUint(77)
	client.Send(ProcessDescriptor{IP: "127.0.0.1", ID: 1, Port: 7101}, msg)

	got := recv.wait(t)
	assert.Equal(t, []uint64{77}, got)
}

func TestCommDeliversEachMessageOncePerPeer(t *testing.T) {
	const total = 200
	recv := newRecorder(total)
	server := NewComm("127.0.0.1:7103", recv)
	go server.Run()
	defer server.Stop()

	client := NewComm("127.0.0.1:7104", newRecorder(0))
	go client.Run()
	defer client.Stop()

	dst := ProcessDescriptor{IP: "127.0.0.1", ID: 1, Port: 7103}
	for i := 0; i < total; i++ {
		msg := NewMessage()
		msg.PutUint(uint64(i))
		client.Send(dst, msg)
	}

	got := recv.wait(t)
	require.Equal(t, total, len(got))
	// One writer per peer keeps sends in FIFO order on the wire, but the
	// dispatch is concurrent, so arrival order is not checked here: every
	// value must arrive exactly once.
	seen := make(map[uint64]bool)
	for _, v := range got {
		assert.False(t, seen[v])
		seen[v] = true
	}
}

func TestCommSendToDeadPeerDoesNotBlock(t *testing.T) {
	client := NewComm("127.0.0.1:7105", newRecorder(0))
	go client.Run()
	defer client.Stop()

	msg := NewMessage()
	msg.PutUint(1)
	done := make(chan struct{})
	go func() {
		// Nothing listens on the target port; the writer retries and
		// drops, the caller never blocks.
		client.Send(ProcessDescriptor{IP: "127.0.0.1", ID: 9, Port: 7199}, msg)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send blocked on a dead peer")
	}
}
