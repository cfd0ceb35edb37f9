package coordinator

import (
	"strconv"

	"github.com/deffrian/lattice-agreement/configs"
	"github.com/deffrian/lattice-agreement/lattice"
)

// VerifyComparable checks that every pair of decisions is comparable
// under the lattice order. Violations are logged and reported, not
// fatal.
func VerifyComparable(values []lattice.Set) bool {
	ok := true
	for i := range values {
		for j := range values {
			if !values[i].Leq(values[j]) && !values[j].Leq(values[i]) {
				configs.Warn(false, "invalid results: "+values[i].String()+" and "+values[j].String()+" incomparable")
				ok = false
			}
		}
	}
	return ok
}

// VerifySequences checks the generalized properties: each process's
// output sequence is monotone, each output dominates the proposal that
// triggered it, and all learnt values across processes are mutually
// comparable.
func VerifySequences(results []SequenceResult, proposals map[uint64][]lattice.Set) bool {
	ok := true
	allLearnt := make([]lattice.Set, 0)
	for _, res := range results {
		prev := lattice.NewSet()
		for i, value := range res.Values {
			allLearnt = append(allLearnt, value)
			if proposed, exists := proposals[res.ID]; exists && i < len(proposed) {
				if !proposed[i].Leq(value) {
					configs.Warn(false, "invalid result: proposal ignored by process "+strconv.FormatUint(res.ID, 10))
					ok = false
				}
			}
			if !prev.Leq(value) {
				configs.Warn(false, "invalid result: decreasing output sequence")
				ok = false
			}
			prev = value
		}
	}
	return VerifyComparable(allLearnt) && ok
}
