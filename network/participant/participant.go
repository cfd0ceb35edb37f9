// Package participant runs one benchmark process end to end: register
// with the coordinator, receive the test description, run the selected
// agreement protocol, report the result, and wait for the stop signal.
package participant

import (
	"fmt"
	"strconv"
	"time"

	"github.com/deffrian/lattice-agreement/configs"
	"github.com/deffrian/lattice-agreement/lattice"
	"github.com/deffrian/lattice-agreement/network/coordinator"
	"github.com/deffrian/lattice-agreement/network/faleiro"
	"github.com/deffrian/lattice-agreement/network/generalized"
	"github.com/deffrian/lattice-agreement/network/zheng"
	"github.com/deffrian/lattice-agreement/utils"
)

// Context records the statement context of one participant process.
type Context struct {
	ip           string
	protocolPort uint64
	clientPort   uint64
	protocolName string

	client *coordinator.Client
	stats  *utils.Stat

	myID uint64
}

func NewContext(ip string, protocolPort, clientPort uint64, coordinatorAddress, protocolName string) *Context {
	res := &Context{
		ip:           ip,
		protocolPort: protocolPort,
		clientPort:   clientPort,
		protocolName: protocolName,
	}
	res.client = coordinator.NewClient(
		fmt.Sprintf("%s:%d", ip, clientPort), coordinatorAddress)
	res.stats = utils.NewStat(fmt.Sprintf("%s:%d", ip, protocolPort))
	return res
}

// Run executes one full test for this process. It blocks until the
// coordinator sends Stop.
func (ctx *Context) Run() {
	ctx.myID = ctx.client.Register(ctx.protocolPort, ctx.clientPort, ctx.ip)
	configs.ProcPrint(ctx.myID, "registered")
	switch ctx.protocolName {
	case configs.FaleiroLA:
		ctx.runFaleiro()
	case configs.FaleiroGLA:
		ctx.runGeneralized()
	case configs.ZhengLA:
		ctx.runZheng()
	default:
		panic("unknown protocol " + ctx.protocolName)
	}
	ctx.stats.Log()
	ctx.client.Close()
}

func (ctx *Context) protocolAddress() string {
	return fmt.Sprintf("%s:%d", ctx.ip, ctx.protocolPort)
}

func (ctx *Context) runFaleiro() {
	n, _, initialValue, peers := ctx.client.WaitForTestInfo()

	protocol := faleiro.NewProtocol(ctx.protocolAddress())
	for _, peer := range peers {
		protocol.AddProcess(peer)
	}
	proposer := faleiro.NewProposer(protocol, ctx.myID, n)
	acceptor := faleiro.NewAcceptor(protocol)
	protocol.Start(acceptor, proposer)
	defer protocol.Stop()

	ctx.client.WaitForStart()
	begin := time.Now()
	y := proposer.Start(initialValue)
	elapsed := time.Since(begin)
	ctx.stats.Append(elapsed)
	configs.ProcPrint(ctx.myID, "decided %v in %v", y.String(), elapsed)

	ctx.client.SendTestComplete(uint64(elapsed.Microseconds()), y)
	ctx.client.WaitForStop()
}

func (ctx *Context) runGeneralized() {
	n, _, values, peers := ctx.client.WaitForTestInfoStream()

	protocol := generalized.NewProtocol(ctx.protocolAddress())
	for _, peer := range peers {
		protocol.AddProcess(peer)
	}
	proposer := generalized.NewProposer(protocol, ctx.myID, n)
	acceptor := generalized.NewAcceptor(protocol)
	learner := generalized.NewLearner(n)
	protocol.Start(acceptor, proposer, learner)
	defer protocol.Stop()

	ctx.client.WaitForStart()
	begin := time.Now()
	results := make([]lattice.Set, 0, len(values))
	for _, value := range values {
		runBegin := time.Now()
		proposer.ReceiveValue(value)
		proposer.Start()
		y := learner.LearnValue(value)
		results = append(results, y)
		ctx.stats.Append(time.Since(runBegin))
	}
	elapsed := time.Since(begin)
	configs.ProcPrint(ctx.myID, "learnt %v values in %v", len(results), elapsed)

	ctx.client.SendTestCompleteStream(uint64(elapsed.Microseconds()), results)
	ctx.client.WaitForStop()
}

func (ctx *Context) runZheng() {
	n, f, initialValue, peers := ctx.client.WaitForTestInfo()

	protocol := zheng.NewProtocol(ctx.protocolAddress(), ctx.myID)
	for _, peer := range peers {
		protocol.AddProcess(peer)
	}
	la := zheng.NewLA(f, n, ctx.myID, protocol)
	protocol.Start(la)
	defer protocol.Stop()

	ctx.client.WaitForStart()
	begin := time.Now()
	y := la.Start(initialValue)
	elapsed := time.Since(begin)
	ctx.stats.Append(elapsed)
	configs.ProcPrint(ctx.myID, "decided %v in %v", y.String(), elapsed)

	ctx.client.SendTestComplete(uint64(elapsed.Microseconds()), y)
	ctx.client.WaitForStop()
}

// Main starts a participant with the globally configured coordinator
// address and protocol selection.
func Main(ip string, protocolPort, clientPort uint64) {
	ctx := NewContext(ip, protocolPort, clientPort,
		configs.CoordinatorServerAddress, configs.SelectedProtocol)
	configs.TPrintf("participant up at " + ip + ":" + strconv.FormatUint(protocolPort, 10))
	ctx.Run()
}
