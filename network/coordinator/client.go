package coordinator

import (
	"net"

	"github.com/deffrian/lattice-agreement/configs"
	"github.com/deffrian/lattice-agreement/lattice"
	"github.com/deffrian/lattice-agreement/network"
)

// Client is the participant-side end of the coordinator handshake. It
// listens on the client port for the coordinator's control connection
// and dials the coordinator for Register and TestComplete.
type Client struct {
	listener           net.Listener
	coordinatorAddress string

	myID uint64
	conn net.Conn
}

func NewClient(clientAddress string, coordinatorAddress string) *Client {
	res := &Client{coordinatorAddress: coordinatorAddress, myID: ^uint64(0)}
	tcpAddr, err := net.ResolveTCPAddr("tcp4", clientAddress)
	configs.CheckError(err)
	res.listener, err = net.ListenTCP("tcp", tcpAddr)
	configs.CheckError(err)
	return res
}

// Register announces this participant and returns its assigned id.
func (c *Client) Register(protocolPort uint64, clientPort uint64, ip string) uint64 {
	conn, err := net.DialTimeout("tcp", c.coordinatorAddress, configs.RegisterTimeout)
	configs.CheckError(err)
	defer conn.Close()

	msg := network.NewMessage()
	msg.PutByte(Register)
	msg.PutUint(protocolPort)
	msg.PutUint(clientPort)
	msg.PutString(ip)
	configs.CheckError(network.WriteFrame(conn, msg))

	reply, err := network.ReadFrame(conn)
	configs.CheckError(err)
	c.myID, err = reply.ReadUint()
	configs.CheckError(err)
	return c.myID
}

// readTestInfo accepts the coordinator's control connection and decodes
// the shared header; the value payload differs per protocol family.
func (c *Client) readTestInfo() (*network.Message, uint64, uint64) {
	conn, err := c.listener.Accept()
	configs.CheckError(err)
	c.conn = conn

	msg, err := network.ReadFrame(conn)
	configs.CheckError(err)
	messageType, err := msg.ReadByte()
	configs.CheckError(err)
	configs.Assert(messageType == TestInfo, "wrong message in wait for test info")
	n, err := msg.ReadUint()
	configs.CheckError(err)
	f, err := msg.ReadUint()
	configs.CheckError(err)
	return msg, n, f
}

func (c *Client) readPeers(msg *network.Message, n uint64) []network.ProcessDescriptor {
	peers := make([]network.ProcessDescriptor, 0, n)
	for i := uint64(0); i < n; i++ {
		port, err := msg.ReadUint()
		configs.CheckError(err)
		ip, err := msg.ReadString()
		configs.CheckError(err)
		id, err := msg.ReadUint()
		configs.CheckError(err)
		peers = append(peers, network.ProcessDescriptor{IP: ip, ID: id, Port: port})
	}
	ack := network.NewMessage()
	ack.PutUint(11)
	configs.CheckError(network.WriteFrame(c.conn, ack))
	return peers
}

// WaitForTestInfo blocks for the single-shot test description.
func (c *Client) WaitForTestInfo() (n, f uint64, initialValue lattice.Set, peers []network.ProcessDescriptor) {
	msg, n, f := c.readTestInfo()
	initialValue, err := msg.ReadLattice()
	configs.CheckError(err)
	peers = c.readPeers(msg, n)
	return n, f, initialValue, peers
}

// WaitForTestInfoStream blocks for the generalized test description.
func (c *Client) WaitForTestInfoStream() (n, f uint64, values []lattice.Set, peers []network.ProcessDescriptor) {
	msg, n, f := c.readTestInfo()
	values, err := msg.ReadLatticeVec()
	configs.CheckError(err)
	peers = c.readPeers(msg, n)
	return n, f, values, peers
}

func (c *Client) WaitForStart() {
	c.expectControl(Start, "wrong message in wait for start")
}

func (c *Client) WaitForStop() {
	c.expectControl(Stop, "wrong message in wait for stop")
}

func (c *Client) expectControl(want uint8, failure string) {
	msg, err := network.ReadFrame(c.conn)
	configs.CheckError(err)
	b, err := msg.ReadByte()
	configs.CheckError(err)
	configs.Assert(b == want, failure)
}

// SendTestComplete reports a single-shot result.
func (c *Client) SendTestComplete(elapsedMicros uint64, value lattice.Set) {
	conn, err := net.DialTimeout("tcp", c.coordinatorAddress, configs.RegisterTimeout)
	configs.CheckError(err)
	defer conn.Close()

	msg := network.NewMessage()
	msg.PutByte(TestComplete)
	msg.PutUint(elapsedMicros)
	msg.PutUint(c.myID)
	msg.PutLattice(value)
	configs.CheckError(network.WriteFrame(conn, msg))
}

// SendTestCompleteStream reports a generalized result sequence.
func (c *Client) SendTestCompleteStream(elapsedMicros uint64, values []lattice.Set) {
	conn, err := net.DialTimeout("tcp", c.coordinatorAddress, configs.RegisterTimeout)
	configs.CheckError(err)
	defer conn.Close()

	msg := network.NewMessage()
	msg.PutByte(TestComplete)
	msg.PutUint(elapsedMicros)
	msg.PutUint(c.myID)
	msg.PutLatticeVec(values)
	configs.CheckError(network.WriteFrame(conn, msg))
}

func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
	configs.CheckError(c.listener.Close())
}
