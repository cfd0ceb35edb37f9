package generalized

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deffrian/lattice-agreement/lattice"
	"github.com/deffrian/lattice-agreement/network"
)

type node struct {
	protocol *Protocol
	proposer *Proposer
	acceptor *Acceptor
	learner  *Learner
}

func testKit(t *testing.T, n int, basePort uint64) []*node {
	descriptors := make([]network.ProcessDescriptor, n)
	for i := 0; i < n; i++ {
		descriptors[i] = network.ProcessDescriptor{IP: "127.0.0.1", ID: uint64(i), Port: basePort + uint64(i)}
	}
	nodes := make([]*node, n)
	for i := 0; i < n; i++ {
		protocol := NewProtocol(fmt.Sprintf("127.0.0.1:%d", basePort+uint64(i)))
		for _, d := range descriptors {
			protocol.AddProcess(d)
		}
		nodes[i] = &node{
			protocol: protocol,
			proposer: NewProposer(protocol, uint64(i), uint64(n)),
			acceptor: NewAcceptor(protocol),
			learner:  NewLearner(uint64(n)),
		}
		protocol.Start(nodes[i].acceptor, nodes[i].proposer, nodes[i].learner)
	}
	time.Sleep(100 * time.Millisecond)
	t.Cleanup(func() {
		for _, nd := range nodes {
			nd.protocol.Stop()
		}
	})
	return nodes
}

func TestSequentialProposals(t *testing.T) {
	nodes := testKit(t, 3, 7311)
	streams := [][]lattice.Set{
		{lattice.NewSet(10), lattice.NewSet(20)},
		{lattice.NewSet(30)},
		{lattice.NewSet(40)},
	}

	outputs := make([][]lattice.Set, len(nodes))
	wg := sync.WaitGroup{}
	for i := range nodes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for _, value := range streams[i] {
				nodes[i].proposer.ReceiveValue(value)
				nodes[i].proposer.Start()
				learnt := nodes[i].learner.LearnValue(value)
				outputs[i] = append(outputs[i], learnt)
			}
		}(i)
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(20 * time.Second):
		t.Fatal("generalized agreement did not terminate")
	}

	// Each output dominates the proposal that triggered it and each
	// per-process sequence is monotone.
	for i, outs := range outputs {
		require.Equal(t, len(streams[i]), len(outs))
		prev := lattice.NewSet()
		for j, y := range outs {
			assert.True(t, streams[i][j].Leq(y),
				"process %d output %d misses its proposal", i, j)
			assert.True(t, prev.Leq(y), "process %d output sequence decreased", i)
			prev = y
		}
	}

	// All learnt values across all processes are mutually comparable.
	all := make([]lattice.Set, 0)
	for _, outs := range outputs {
		all = append(all, outs...)
	}
	for i := range all {
		for j := range all {
			comparable := all[i].Leq(all[j]) || all[j].Leq(all[i])
			assert.True(t, comparable, "outputs %v and %v incomparable",
				all[i].String(), all[j].String())
		}
	}

	// Process 0 saw {10} before {10, 20}.
	assert.True(t, lattice.NewSet(10).Leq(outputs[0][0]))
	assert.True(t, lattice.NewSet(10, 20).Leq(outputs[0][1]))
}

func TestLearnerTally(t *testing.T) {
	learner := NewLearner(3)
	value := lattice.NewSet(5)

	learner.ProcessAck(1, value, 0)
	assert.Equal(t, 0, learner.LearntValue().Size())

	// Majority for (proposer 0, proposal 1) advances the learnt value.
	learner.ProcessAck(1, value, 0)
	assert.True(t, learner.LearntValue().Equal(value))

	// A duplicate majority for the same pair with the same value does
	// not regress or grow anything.
	learner.ProcessAck(1, value, 0)
	assert.True(t, learner.LearntValue().Equal(value))

	// Acks split across different proposers do not reach majority.
	bigger := lattice.NewSet(5, 6)
	learner.ProcessAck(2, bigger, 1)
	assert.True(t, learner.LearntValue().Equal(value))
	learner.ProcessAck(2, bigger, 1)
	assert.True(t, learner.LearntValue().Equal(bigger))
}

func TestLearnValueBlocksUntilDominated(t *testing.T) {
	learner := NewLearner(3)
	got := make(chan lattice.Set, 1)
	go func() {
		got <- learner.LearnValue(lattice.NewSet(1))
	}()
	select {
	case <-got:
		t.Fatal("LearnValue returned before anything was learnt")
	case <-time.After(50 * time.Millisecond):
	}

	learner.ProcessAck(1, lattice.NewSet(1, 2), 0)
	learner.ProcessAck(1, lattice.NewSet(1, 2), 0)
	select {
	case y := <-got:
		assert.True(t, y.Equal(lattice.NewSet(1, 2)))
	case <-time.After(5 * time.Second):
		t.Fatal("LearnValue did not wake after majority")
	}
}

func TestProposerSkipsIdempotentRepropose(t *testing.T) {
	protocol := NewProtocol("127.0.0.1:7321")
	go protocol.comm.Run()
	t.Cleanup(protocol.Stop)

	p := NewProposer(protocol, 0, 3)
	p.latch.Lock()
	p.bufferedValues = lattice.NewSet(1)
	p.propose()
	require.Equal(t, Active, p.status)
	require.Equal(t, uint64(1), p.activeProposalNumber)
	p.latch.Unlock()

	// Decide the instance, then buffer a value that adds nothing: no
	// new instance may start.
	p.ProcessAck(1)
	p.ProcessAck(1)
	p.latch.Lock()
	_, ok := p.decide()
	require.True(t, ok)
	require.Equal(t, Passive, p.status)
	p.bufferedValues = lattice.NewSet(1)
	p.propose()
	assert.Equal(t, Passive, p.status)
	assert.Equal(t, uint64(1), p.activeProposalNumber)
	p.latch.Unlock()
}
