// Package coordinator orchestrates one benchmark run: it registers the
// participants, hands out the test description, fires the start signal,
// collects per-process completion times and final lattice values, and
// verifies the agreement properties over the results.
package coordinator

import (
	"net"
	"time"

	"github.com/deffrian/lattice-agreement/configs"
	"github.com/deffrian/lattice-agreement/lattice"
	"github.com/deffrian/lattice-agreement/network"
)

// Coordinator message bytes.
const (
	Register     uint8 = 0
	TestComplete uint8 = 1
	Start        uint8 = 2
	Stop         uint8 = 3
	TestInfo     uint8 = 4
)

// Result is one participant's outcome of a single-shot run.
type Result struct {
	ID            uint64      `json:"id"`
	ElapsedMicros uint64      `json:"elapsed_micros"`
	Value         lattice.Set `json:"-"`
	ValueString   string      `json:"value"`
}

// Coordinator drives a single-shot (LA or classifier) test.
type Coordinator struct {
	n uint64
	f uint64

	listener net.Listener

	knownPeers []network.ProcessDescriptor
	clients    []network.ProcessDescriptor
	clientConn []net.Conn

	journal *LogManager
}

func NewCoordinator(n, f uint64, address string) *Coordinator {
	configs.Assert(n > 2*f, "coordinator requires n > 2f")
	res := &Coordinator{n: n, f: f, journal: NewLogManager("la")}
	tcpAddr, err := net.ResolveTCPAddr("tcp4", address)
	configs.CheckError(err)
	res.listener, err = net.ListenTCP("tcp", tcpAddr)
	configs.CheckError(err)
	return res
}

// Run executes the whole test and returns the collected results plus
// the verification verdict. initialValue picks each participant's
// proposal; nil assigns the singleton of its id.
func (c *Coordinator) Run(initialValue func(id uint64) lattice.Set) ([]Result, bool) {
	if initialValue == nil {
		initialValue = func(id uint64) lattice.Set { return lattice.NewSet(id) }
	}
	c.waitForRegisters()
	c.sendTestInfo(initialValue)
	c.sendStart()
	results := c.collectResults()
	c.sendStop()
	ok := VerifyComparable(resultValues(results))
	configs.Warn(ok, "verification failed: incomparable results")
	c.journal.Close()
	configs.CheckError(c.listener.Close())
	return results, ok
}

func (c *Coordinator) waitForRegisters() {
	configs.TPrintf("waiting for %v registrations", c.n)
	for i := uint64(0); i < c.n; i++ {
		conn, err := c.listener.Accept()
		configs.CheckError(err)
		msg, err := network.ReadFrame(conn)
		configs.CheckError(err)
		messageType, err := msg.ReadByte()
		configs.CheckError(err)
		configs.Assert(messageType == Register, "wrong message in wait for registers")
		protocolPort, err := msg.ReadUint()
		configs.CheckError(err)
		clientPort, err := msg.ReadUint()
		configs.CheckError(err)
		ip, err := msg.ReadString()
		configs.CheckError(err)

		reply := network.NewMessage()
		reply.PutUint(i)
		configs.CheckError(network.WriteFrame(conn, reply))
		configs.CheckError(conn.Close())

		c.knownPeers = append(c.knownPeers, network.ProcessDescriptor{IP: ip, ID: i, Port: protocolPort})
		c.clients = append(c.clients, network.ProcessDescriptor{IP: ip, ID: i, Port: clientPort})
		configs.TPrintf("registered ip %v id %v port %v client port %v", ip, i, protocolPort, clientPort)
	}
}

func (c *Coordinator) sendTestInfo(initialValue func(id uint64) lattice.Set) {
	configs.TPrintf("sending test info")
	c.clientConn = make([]net.Conn, len(c.clients))
	for i, peer := range c.clients {
		conn, err := net.DialTimeout("tcp", peer.Address(), configs.RegisterTimeout)
		configs.CheckError(err)
		c.clientConn[i] = conn

		msg := network.NewMessage()
		msg.PutByte(TestInfo)
		msg.PutUint(c.n)
		msg.PutUint(c.f)
		msg.PutLattice(initialValue(peer.ID))
		for _, elem := range c.knownPeers {
			msg.PutUint(elem.Port)
			msg.PutString(elem.IP)
			msg.PutUint(elem.ID)
		}
		configs.CheckError(network.WriteFrame(conn, msg))

		ack, err := network.ReadFrame(conn)
		configs.CheckError(err)
		_, err = ack.ReadUint()
		configs.CheckError(err)
	}
}

func (c *Coordinator) sendStart() {
	configs.TPrintf("sending start")
	for _, conn := range c.clientConn {
		msg := network.NewMessage()
		msg.PutByte(Start)
		configs.CheckError(network.WriteFrame(conn, msg))
	}
}

func (c *Coordinator) collectResults() []Result {
	configs.TPrintf("waiting for results")
	results := make([]Result, 0, c.n)
	totalTime := uint64(0)
	for i := uint64(0); i < c.n; i++ {
		conn, err := c.listener.Accept()
		configs.CheckError(err)
		msg, err := network.ReadFrame(conn)
		configs.CheckError(err)
		messageType, err := msg.ReadByte()
		configs.CheckError(err)
		configs.Assert(messageType == TestComplete, "wrong message in wait for results")
		elapsed, err := msg.ReadUint()
		configs.CheckError(err)
		id, err := msg.ReadUint()
		configs.CheckError(err)
		value, err := msg.ReadLattice()
		configs.CheckError(err)
		configs.CheckError(conn.Close())

		res := Result{ID: id, ElapsedMicros: elapsed, Value: value, ValueString: value.String()}
		results = append(results, res)
		c.journal.WriteResult(res)
		totalTime += elapsed
		configs.TPrintf("result from %v: elapsed %vus value %v", id, elapsed, value.String())
	}
	configs.TPrintf("average time: %vus", float64(totalTime)/float64(c.n))
	return results
}

func (c *Coordinator) sendStop() {
	for _, conn := range c.clientConn {
		msg := network.NewMessage()
		msg.PutByte(Stop)
		if err := network.WriteFrame(conn, msg); err != nil {
			configs.Warn(false, "cannot stop participant: "+err.Error())
		}
		conn.Close()
	}
	// Give participants a beat to drain the stop before teardown.
	time.Sleep(10 * time.Millisecond)
}

func resultValues(results []Result) []lattice.Set {
	values := make([]lattice.Set, len(results))
	for i, res := range results {
		values[i] = res.Value
	}
	return values
}
