package network

import (
	"io"
	"math"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/deffrian/lattice-agreement/configs"
)

// Receiver handles inbound messages. It may be invoked concurrently
// from multiple connection handlers; implementations synchronize
// internally.
type Receiver interface {
	OnMessageReceived(m *Message)
}

// Comm is the asynchronous transport shared by all protocols. Inbound,
// it accepts framed messages and dispatches them to the receiver.
// Outbound, it keeps one writer per peer that drains a FIFO queue onto
// a single connection, redialing on failure.
type Comm struct {
	done     chan bool
	stopped  chan struct{}
	listener net.Listener
	recv     Receiver
	writers  *sync.Map
	sem      chan struct{}
	inbound  chan *Message
}

// NewComm binds the listening port. A port already in use is a fatal
// configuration error.
func NewComm(address string, recv Receiver) *Comm {
	res := &Comm{recv: recv}
	res.writers = &sync.Map{}
	res.done = make(chan bool, 1)
	res.stopped = make(chan struct{})
	res.inbound = make(chan *Message, configs.MaxMessageBacklog)
	tcpAddr, err := net.ResolveTCPAddr("tcp4", address)
	configs.CheckError(err)
	res.listener, err = net.ListenTCP("tcp", tcpAddr)
	configs.CheckError(err)
	return res
}

// Run accepts inbound connections until Stop. It blocks; callers start
// it on its own goroutine.
func (c *Comm) Run() {
	c.sem = make(chan struct{}, configs.MaxConnectionHandler)
	for i := 0; i < configs.MaxMessageHandler; i++ {
		go c.dispatchLoop()
	}
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
				configs.Warn(false, "accept failed: "+err.Error())
				continue
			}
		}
		c.sem <- struct{}{}
		go func() {
			defer func() {
				<-c.sem
			}()
			c.handleRequest(conn)
		}()
	}
}

// handleRequest drains frames from one inbound connection onto the
// dispatch queue. A framing error closes the socket; the peer redials
// on its next send. When the queue is full the read loop blocks here,
// which stops reading and lets TCP back-pressure throttle the peer.
func (c *Comm) handleRequest(conn net.Conn) {
	defer conn.Close()
	for {
		msg, err := ReadFrame(conn)
		if err == io.EOF {
			return
		}
		if err != nil {
			configs.Warn(false, "framing error, dropping connection: "+err.Error())
			return
		}
		select {
		case c.inbound <- msg:
		case <-c.stopped:
			return
		}
	}
}

// dispatchLoop is one worker of the bounded pool that invokes the
// protocol callback for queued inbound messages.
func (c *Comm) dispatchLoop() {
	for {
		select {
		case msg := <-c.inbound:
			c.recv.OnMessageReceived(msg)
		case <-c.stopped:
			return
		}
	}
}

// Send enqueues the message for the peer's writer. If the backlog is
// full the message is dropped; the protocols tolerate loss because
// every round is driven by threshold predicates and proposers re-send
// on refinement.
func (c *Comm) Send(to ProcessDescriptor, m *Message) {
	var w *peerWriter
	if cur, ok := c.writers.Load(to.ID); !ok {
		fin, loaded := c.writers.LoadOrStore(to.ID, newPeerWriter(to))
		w = fin.(*peerWriter)
		if !loaded {
			go w.run()
		}
	} else {
		w = cur.(*peerWriter)
	}
	select {
	case w.queue <- m:
	default:
		configs.Warn(false, "outbound backlog full, dropping message for "+to.Address())
	}
}

func (c *Comm) Stop() {
	c.done <- true
	close(c.stopped)
	c.writers.Range(func(key, value interface{}) bool {
		value.(*peerWriter).stop()
		return true
	})
	configs.CheckError(c.listener.Close())
}

// peerWriter owns the single outbound connection to one peer and
// serializes its messages in FIFO order.
type peerWriter struct {
	descriptor ProcessDescriptor
	queue      chan *Message
	done       chan struct{}
	once       sync.Once
	conn       net.Conn
}

func newPeerWriter(descriptor ProcessDescriptor) *peerWriter {
	return &peerWriter{
		descriptor: descriptor,
		queue:      make(chan *Message, configs.MaxMessageBacklog),
		done:       make(chan struct{}),
	}
}

func (p *peerWriter) run() {
	for {
		select {
		case <-p.done:
			if p.conn != nil {
				p.conn.Close()
			}
			return
		case msg := <-p.queue:
			maybeDelay()
			if err := p.write(msg); err != nil {
				// Drop the message; the connection is re-established
				// on the next send.
				configs.Warn(false, "write to "+p.descriptor.Address()+" failed: "+err.Error())
			}
		}
	}
}

func (p *peerWriter) write(msg *Message) error {
	if p.conn == nil {
		var err error
		for attempt := 0; attempt < configs.MaxDialRetry; attempt++ {
			p.conn, err = net.Dial("tcp", p.descriptor.Address())
			if err == nil {
				break
			}
			time.Sleep(configs.DialRetryInterval)
		}
		if err != nil {
			p.conn = nil
			return err
		}
	}
	if err := WriteFrame(p.conn, msg); err != nil {
		p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

func (p *peerWriter) stop() {
	p.once.Do(func() {
		close(p.done)
	})
}

// maybeDelay injects the configured artificial pre-send delay. This is
// purely a benchmark-realism feature and is skipped unless enabled.
func maybeDelay() {
	if !configs.SimulateNetworkDelay {
		return
	}
	var d time.Duration
	switch configs.Distribution {
	case configs.Normal:
		d = configs.DelayMean + time.Duration(rand.NormFloat64()*float64(configs.DelayStdDev))
	case configs.Exponential:
		d = time.Duration(math.Abs(rand.ExpFloat64() * float64(configs.DelayMean+configs.DelayStdDev)))
	case configs.Plain:
		d = configs.DelayMean
	default:
		panic("invalid distribution")
	}
	if d > 0 {
		time.Sleep(d)
	}
}
