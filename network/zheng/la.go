package zheng

import (
	"math"
	"sync"

	"github.com/deffrian/lattice-agreement/configs"
	"github.com/deffrian/lattice-agreement/lattice"
)

type Class uint8

const (
	Master Class = iota
	Slave
)

// LA is the classifier state machine of one process. Requires n > 2f.
// The threshold l is real-valued: after the first round delta becomes
// f/4, which is not an integer for odd f.
type LA struct {
	f uint64
	n uint64
	i uint64

	l    float64
	logF uint64
	r    uint64

	protocol *Protocol

	v []lattice.Set
	w []lattice.Set
	// acceptVal[r] is the append-only register for round r; entries are
	// unique by (vector, k) pair equality.
	acceptVal [][]AcceptEntry

	valueReceived    uint64
	readAckReceived  uint64
	writeAckReceived uint64
	buildW           bool
	buildWp          bool

	latch  sync.Mutex
	notify chan struct{}
}

func NewLA(f, n, i uint64, protocol *Protocol) *LA {
	configs.Assert(n > 2*f, "classifier agreement requires n > 2f")
	logF := uint64(0)
	if f > 1 {
		logF = uint64(math.Ceil(math.Log2(float64(f))))
	}
	res := &LA{
		f:        f,
		n:        n,
		i:        i,
		l:        float64(n) - float64(f)/2,
		logF:     logF,
		protocol: protocol,
		v:        make([]lattice.Set, n),
		notify:   make(chan struct{}, 1),
	}
	for j := range res.v {
		res.v[j] = lattice.NewSet()
	}
	res.acceptVal = make([][]AcceptEntry, res.logF+1)
	return res
}

// Start runs one agreement: a value-exchange phase, then the classifier
// loop, then the join of the refined vector.
func (z *LA) Start(x lattice.Set) lattice.Set {
	z.latch.Lock()
	defer z.latch.Unlock()

	z.v[z.i] = lattice.Join(z.v[z.i], x)
	z.protocol.SendValue(z.v, z.i)
	z.waitFor(func() bool { return z.valueReceived >= z.n-z.f })
	configs.ProcPrint(z.i, "value exchange complete")

	delta := float64(z.f) / 2
	for z.r = 1; z.r <= z.logF; z.r++ {
		c := z.classifier(z.l)
		delta /= 2
		if c == Master {
			z.v = z.w
			z.l += delta
		} else {
			z.l -= delta
		}
		configs.ProcPrint(z.i, "classifier round %v done, l=%v", z.r, z.l)
	}

	return lattice.JoinAll(z.v)
}

// classifier decides whether this process is a Master or a Slave for
// threshold k, refining w from the round's register contents.
func (z *LA) classifier(k float64) Class {
	z.w = make([]lattice.Set, z.n)
	for j := range z.w {
		z.w[j] = lattice.NewSet()
	}

	z.protocol.SendWrite(z.v, k, z.r, z.i)
	z.waitFor(func() bool { return z.writeAckReceived >= z.n-z.f })
	z.writeAckReceived = 0

	z.buildW = true
	z.protocol.SendRead(z.r, z.i)
	z.waitFor(func() bool { return z.readAckReceived >= z.n-z.f })
	z.readAckReceived = 0
	z.buildW = false

	h := uint64(0)
	for j := range z.w {
		if z.w[j].Size() != 0 {
			h++
		}
	}

	if float64(h) > k {
		z.buildWp = true
		z.protocol.SendWrite(z.w, k, z.r, z.i)
		z.waitFor(func() bool { return z.writeAckReceived >= z.n-z.f })
		z.writeAckReceived = 0
		z.buildWp = false
		return Master
	}
	return Slave
}

// waitFor blocks the agreement goroutine until the handlers satisfy the
// predicate. Called with the latch held.
func (z *LA) waitFor(cond func() bool) {
	for !cond() {
		z.latch.Unlock()
		<-z.notify
		z.latch.Lock()
	}
}

func (z *LA) signal() {
	select {
	case z.notify <- struct{}{}:
	default:
	}
}

// mergeMatching folds register entries written under the current
// threshold into w.
func (z *LA) mergeMatching(recVal []AcceptEntry) {
	for _, entry := range recVal {
		if entry.K != z.l {
			continue
		}
		for j := uint64(0); j < z.n && j < uint64(len(entry.Vector)); j++ {
			z.w[j] = lattice.Join(z.w[j], entry.Vector[j])
		}
	}
}

func (z *LA) ReceiveWriteAck(recVal []AcceptEntry, r uint64, messageID uint64) {
	z.latch.Lock()
	defer z.latch.Unlock()
	// A stale round never mutates w or the counters.
	if r != z.r {
		return
	}
	z.writeAckReceived++
	if z.buildWp {
		z.mergeMatching(recVal)
	}
	z.signal()
}

func (z *LA) ReceiveReadAck(recVal []AcceptEntry, r uint64, messageID uint64) {
	z.latch.Lock()
	defer z.latch.Unlock()
	if r != z.r {
		return
	}
	if z.buildW {
		z.mergeMatching(recVal)
	}
	z.readAckReceived++
	z.signal()
}

func (z *LA) ReceiveValue(value []lattice.Set, messageID uint64) {
	z.latch.Lock()
	defer z.latch.Unlock()
	if z.valueReceived >= z.n-z.f {
		return
	}
	for j := uint64(0); j < z.n && j < uint64(len(value)); j++ {
		z.v[j] = lattice.Join(z.v[j], value[j])
	}
	z.valueReceived++
	z.signal()
}

func (z *LA) ReceiveWrite(value []lattice.Set, k float64, r uint64, from uint64, messageID uint64) {
	z.latch.Lock()
	defer z.latch.Unlock()
	if !configs.Warn(r < uint64(len(z.acceptVal)), "write for an out-of-range round") {
		return
	}
	entry := AcceptEntry{Vector: value, K: k}
	exists := false
	for _, cur := range z.acceptVal[r] {
		if cur.equal(entry) {
			exists = true
			break
		}
	}
	if !exists {
		z.acceptVal[r] = append(z.acceptVal[r], entry)
	}
	z.protocol.SendWriteAck(from, z.acceptVal[r], r, z.i, messageID)
}

func (z *LA) ReceiveRead(r uint64, from uint64, messageID uint64) {
	z.latch.Lock()
	defer z.latch.Unlock()
	if !configs.Warn(r < uint64(len(z.acceptVal)), "read for an out-of-range round") {
		return
	}
	z.protocol.SendReadAck(from, z.acceptVal[r], r, z.i, messageID)
}
