package benchmark

import (
	"github.com/deffrian/lattice-agreement/configs"
	"github.com/deffrian/lattice-agreement/lattice"
	"github.com/deffrian/lattice-agreement/network/coordinator"
	"github.com/deffrian/lattice-agreement/network/participant"
)

// RunSingleShot spins up a coordinator and n local participants running
// the named single-shot protocol, executes one test, and returns the
// results plus the verification verdict. Participants bind ports
// basePort, basePort+2, ... with the client port one above each.
func RunSingleShot(protocolName string, n, f uint64, basePort uint64, coordinatorAddress string,
	initialValue func(id uint64) lattice.Set) ([]coordinator.Result, bool) {
	ca := coordinator.NewCoordinator(n, f, coordinatorAddress)
	for i := uint64(0); i < n; i++ {
		ctx := participant.NewContext("127.0.0.1", basePort+2*i, basePort+2*i+1,
			coordinatorAddress, protocolName)
		go ctx.Run()
	}
	return ca.Run(initialValue)
}

// RunGeneralized does the same for the generalized protocol, feeding
// every participant a workload-generated proposal stream.
func RunGeneralized(n, f uint64, basePort uint64, coordinatorAddress string,
	streamLength int, seed int64) ([]coordinator.SequenceResult, bool) {
	streams := make(map[uint64][]lattice.Set)
	for i := uint64(0); i < n; i++ {
		streams[i] = NewWorkload(seed + int64(i)).Stream(streamLength)
	}

	ca := coordinator.NewGLACoordinator(n, f, coordinatorAddress)
	for i := uint64(0); i < n; i++ {
		ctx := participant.NewContext("127.0.0.1", basePort+2*i, basePort+2*i+1,
			coordinatorAddress, configs.FaleiroGLA)
		go ctx.Run()
	}
	return ca.Run(func(id uint64) []lattice.Set { return streams[id] })
}
