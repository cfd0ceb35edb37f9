package faleiro

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
		}
		protocol.Start(nodes[i].acceptor, nodes[i].proposer)
	}
	time.Sleep(100 * time.Millisecond)
	t.Cleanup(func() {
		for _, nd := range nodes {
			nd.protocol.Stop()
		}
	})
	return nodes
}

func runAgreement(t *testing.T, nodes []*node, proposals []lattice.Set) []lattice.Set {
	results := make([]lattice.Set, len(nodes))
	wg := sync.WaitGroup{}
	for i := range nodes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = nodes[i].proposer.Start(proposals[i])
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
		t.Fatal("agreement did not terminate")
	}
	return results
}

func checkDecisions(t *testing.T, proposals, results []lattice.Set) {
	upper := lattice.JoinAll(proposals)
	for i, y := range results {
		// Each decision dominates its own proposal and never exceeds
		// the join of all inputs.
		assert.True(t, proposals[i].Leq(y), "decision %d below own proposal", i)
		assert.True(t, y.Leq(upper), "decision %d above the join of inputs", i)
	}
	for i := range results {
		for j := range results {
			comparable := results[i].Leq(results[j]) || results[j].Leq(results[i])
			assert.True(t, comparable, "decisions %d and %d incomparable: %v vs %v",
				i, j, results[i].String(), results[j].String())
		}
	}
}

func TestSingleShotThreeProcesses(t *testing.T) {
	nodes := testKit(t, 3, 7211)
	proposals := []lattice.Set{lattice.NewSet(1), lattice.NewSet(2), lattice.NewSet(3)}
	results := runAgreement(t, nodes, proposals)
	checkDecisions(t, proposals, results)
}

func TestRefinementFiveProcesses(t *testing.T) {
	nodes := testKit(t, 5, 7221)
	proposals := make([]lattice.Set, 5)
	for i := range proposals {
		proposals[i] = lattice.NewSet(uint64(i + 1))
	}
	results := runAgreement(t, nodes, proposals)
	checkDecisions(t, proposals, results)
}

func TestAcceptorMonotonicity(t *testing.T) {
	protocol := NewProtocol("127.0.0.1:7231")
	go protocol.comm.Run()
	t.Cleanup(protocol.Stop)
	acceptor := NewAcceptor(protocol)

	steps := []struct {
		proposal lattice.Set
		lower    lattice.Set
		upper    lattice.Set
	}{
		{lattice.NewSet(1), lattice.NewSet(1), lattice.NewSet(1)},
		{lattice.NewSet(2), lattice.NewSet(1, 2), lattice.NewSet(1, 2)},
		{lattice.NewSet(1, 3), lattice.NewSet(1, 2), lattice.NewSet(1, 2, 3)},
		{lattice.NewSet(2, 4), lattice.NewSet(1, 2, 3), lattice.NewSet(1, 2, 3, 4)},
	}
	prev := lattice.NewSet()
	for i, step := range steps {
		acceptor.ProcessProposal(uint64(i+1), step.proposal, 0)
		accepted := acceptor.AcceptedValue()
		require.True(t, step.lower.Leq(accepted), "step %d: accepted %v below %v",
			i, accepted.String(), step.lower.String())
		require.True(t, accepted.Leq(step.upper), "step %d: accepted %v above %v",
			i, accepted.String(), step.upper.String())
		require.True(t, prev.Leq(accepted), "step %d: accepted value decreased", i)
		prev = accepted
	}
}

func TestStaleResponsesIgnored(t *testing.T) {
	protocol := NewProtocol("127.0.0.1:7232")
	go protocol.comm.Run()
	t.Cleanup(protocol.Stop)

	p := NewProposer(protocol, 0, 3)
	p.latch.Lock()
	p.propose(lattice.NewSet(1))
	p.latch.Unlock()

	// Replies for an old proposal number neither count nor merge.
	p.ProcessAck(0)
	p.ProcessNack(0, lattice.NewSet(9))
	p.latch.Lock()
	assert.Equal(t, uint64(0), p.ackCount)
	assert.Equal(t, uint64(0), p.nackCount)
	assert.False(t, p.proposedValue.Contains(9))
	p.latch.Unlock()

	p.ProcessAck(1)
	p.latch.Lock()
	assert.Equal(t, uint64(1), p.ackCount)
	p.latch.Unlock()
}
