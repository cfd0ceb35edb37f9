package coordinator

import (
	"net"

	"github.com/deffrian/lattice-agreement/configs"
	"github.com/deffrian/lattice-agreement/lattice"
	"github.com/deffrian/lattice-agreement/network"
)

// SequenceResult is one participant's outcome of a generalized run: the
// learnt value after each of its proposals, in proposal order.
type SequenceResult struct {
	ID            uint64        `json:"id"`
	ElapsedMicros uint64        `json:"elapsed_micros"`
	Values        []lattice.Set `json:"-"`
	ValueStrings  []string      `json:"values"`
}

// GLACoordinator drives a generalized test where every participant
// proposes a stream of values and reports the learnt value sequence.
type GLACoordinator struct {
	n uint64
	f uint64

	listener net.Listener

	knownPeers []network.ProcessDescriptor
	clients    []network.ProcessDescriptor
	clientConn []net.Conn

	journal *LogManager
}

func NewGLACoordinator(n, f uint64, address string) *GLACoordinator {
	configs.Assert(n > 2*f, "coordinator requires n > 2f")
	res := &GLACoordinator{n: n, f: f, journal: NewLogManager("gla")}
	tcpAddr, err := net.ResolveTCPAddr("tcp4", address)
	configs.CheckError(err)
	res.listener, err = net.ListenTCP("tcp", tcpAddr)
	configs.CheckError(err)
	return res
}

// DefaultStream is the proposal stream handed to a participant when the
// caller does not provide one: values[i] = {i*n + id}, so every process
// proposes distinct singletons.
func DefaultStream(n, length uint64) func(id uint64) []lattice.Set {
	return func(id uint64) []lattice.Set {
		values := make([]lattice.Set, length)
		for i := uint64(0); i < length; i++ {
			values[i] = lattice.NewSet(i*n + id)
		}
		return values
	}
}

// Run executes the generalized test and verifies that every output
// sequence is monotone, dominates its proposals, and that all learnt
// values are mutually comparable.
func (c *GLACoordinator) Run(stream func(id uint64) []lattice.Set) ([]SequenceResult, bool) {
	if stream == nil {
		stream = DefaultStream(c.n, c.n)
	}
	c.waitForRegisters()
	proposals := c.sendTestInfo(stream)
	c.sendStart()
	results := c.collectResults()
	c.sendStop()
	ok := VerifySequences(results, proposals)
	configs.Warn(ok, "verification failed on generalized results")
	c.journal.Close()
	configs.CheckError(c.listener.Close())
	return results, ok
}

func (c *GLACoordinator) waitForRegisters() {
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
	}
}

func (c *GLACoordinator) sendTestInfo(stream func(id uint64) []lattice.Set) map[uint64][]lattice.Set {
	configs.TPrintf("sending test info")
	proposals := make(map[uint64][]lattice.Set)
	c.clientConn = make([]net.Conn, len(c.clients))
	for i, peer := range c.clients {
		conn, err := net.DialTimeout("tcp", peer.Address(), configs.RegisterTimeout)
		configs.CheckError(err)
		c.clientConn[i] = conn

		values := stream(peer.ID)
		proposals[peer.ID] = values

		msg := network.NewMessage()
		msg.PutByte(TestInfo)
		msg.PutUint(c.n)
		msg.PutUint(c.f)
		msg.PutLatticeVec(values)
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
	return proposals
}

func (c *GLACoordinator) sendStart() {
	configs.TPrintf("sending start")
	for _, conn := range c.clientConn {
		msg := network.NewMessage()
		msg.PutByte(Start)
		configs.CheckError(network.WriteFrame(conn, msg))
	}
}

func (c *GLACoordinator) collectResults() []SequenceResult {
	configs.TPrintf("waiting for results")
	results := make([]SequenceResult, 0, c.n)
	totalTime := uint64(0)
	for i := uint64(0); i < c.n; i++ {
		conn, err := c.listener.Accept()
		configs.CheckError(err)
		msg, err := network.ReadFrame(conn)
		if err != nil {
			configs.Warn(false, "unreadable result dropped: "+err.Error())
			conn.Close()
			continue
		}
		messageType, err := msg.ReadByte()
		configs.CheckError(err)
		configs.Assert(messageType == TestComplete, "wrong message in wait for results")
		elapsed, err := msg.ReadUint()
		configs.CheckError(err)
		id, err := msg.ReadUint()
		configs.CheckError(err)
		values, err := msg.ReadLatticeVec()
		configs.CheckError(err)
		configs.CheckError(conn.Close())

		res := SequenceResult{ID: id, ElapsedMicros: elapsed, Values: values}
		for _, v := range values {
			res.ValueStrings = append(res.ValueStrings, v.String())
		}
		results = append(results, res)
		c.journal.WriteSequenceResult(res)
		totalTime += elapsed
		configs.TPrintf("result from %v: elapsed %vus, %v outputs", id, elapsed, len(values))
	}
	configs.TPrintf("average time: %vus", float64(totalTime)/float64(c.n))
	return results
}

func (c *GLACoordinator) sendStop() {
	for _, conn := range c.clientConn {
		msg := network.NewMessage()
		msg.PutByte(Stop)
		if err := network.WriteFrame(conn, msg); err != nil {
			configs.Warn(false, "cannot stop participant: "+err.Error())
		}
		conn.Close()
	}
}
