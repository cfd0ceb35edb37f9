// Package benchmark generates lattice value workloads and drives
// in-process clusters for measurement.
package benchmark

import (
	"math/rand"

	"github.com/pingcap/go-ycsb/pkg/generator"

	"github.com/deffrian/lattice-agreement/configs"
	"github.com/deffrian/lattice-agreement/lattice"
)

// Workload produces skewed lattice values for generalized agreement
// streams: element popularity follows a zipfian distribution over the
// configured domain.
type Workload struct {
	r   *rand.Rand
	zip *generator.Zipfian
}

func NewWorkload(seed int64) *Workload {
	return &Workload{
		r:   rand.New(rand.NewSource(seed)),
		zip: generator.NewZipfianWithRange(0, configs.ElementDomain-1, configs.ValueSkewness),
	}
}

func (w *Workload) NextElement() uint64 {
	return uint64(w.zip.Next(w.r))
}

// NextValue returns a singleton lattice around the next element.
func (w *Workload) NextValue() lattice.Set {
	return lattice.NewSet(w.NextElement())
}

// Stream returns a proposal stream of the given length.
func (w *Workload) Stream(length int) []lattice.Set {
	res := make([]lattice.Set, length)
	for i := range res {
		res[i] = w.NextValue()
	}
	return res
}
