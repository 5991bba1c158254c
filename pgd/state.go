package pgd

import (
	"github.com/unixpickle/dist-gd/gdmath"
)

// readinessSet is a monotonic bitset of workers that have
// reported readiness.
type readinessSet struct {
	words []uint64
	size  int
	count int
}

func newReadinessSet(size int) *readinessSet {
	return &readinessSet{words: make([]uint64, (size+63)/64), size: size}
}

// Set marks a worker as ready and reports whether this
// changed anything.
func (r *readinessSet) Set(id int) bool {
	word, bit := id/64, uint64(1)<<(id%64)
	if r.words[word]&bit != 0 {
		return false
	}
	r.words[word] |= bit
	r.count++
	return true
}

func (r *readinessSet) Has(id int) bool {
	return r.words[id/64]&(uint64(1)<<(id%64)) != 0
}

func (r *readinessSet) Complete() bool {
	return r.count == r.size
}

// pendingAggregation collects one LocalSums per worker for
// the currently open epoch.
type pendingAggregation struct {
	epoch  uint64
	slots  []*LocalSums
	filled int
}

func newPendingAggregation(workers int) *pendingAggregation {
	return &pendingAggregation{slots: make([]*LocalSums, workers)}
}

// Reset empties every slot and opens a new epoch.
func (p *pendingAggregation) Reset(epoch uint64) {
	p.epoch = epoch
	for i := range p.slots {
		p.slots[i] = nil
	}
	p.filled = 0
}

// Offer stores a result in its worker's slot if the slot is
// empty, reporting whether the result was accepted.
//
// The caller is responsible for checking the epoch and the
// worker ID.
func (p *pendingAggregation) Offer(sums *LocalSums) bool {
	if p.slots[sums.WorkerID] != nil {
		return false
	}
	p.slots[sums.WorkerID] = sums
	p.filled++
	return true
}

func (p *pendingAggregation) Complete() bool {
	return p.filled == len(p.slots)
}

// Total adds up all slots in worker order, so the result
// does not depend on the order in which results arrived.
func (p *pendingAggregation) Total(dim int) (costSum float64, gradSum []float64) {
	gradSum = make([]float64, dim+1)
	for _, s := range p.slots {
		costSum += s.CostSum
		for i, x := range s.GradientSum {
			gradSum[i] += x
		}
	}
	return costSum, gradSum
}

// roundState is the optimizer state owned by whoever
// drives the rounds.
type roundState struct {
	iteration int

	// current holds the weights the next aggregated cost
	// and gradient belong to.
	current  []float64
	previous []float64

	// gradient is the gradient at previous.
	gradient []float64

	cost    float64
	hasCost bool
	step    float64
}

func newRoundState(dim int) *roundState {
	weights := make([]float64, dim+1)
	for i := range weights {
		weights[i] = 1
	}
	return &roundState{iteration: 1, current: weights, step: 1}
}

// Advance consumes the aggregated cost and gradient at the
// current weights. It returns true when the run has
// converged, in which case the current weights are final.
// Otherwise it takes a gradient step and returns the step
// size that was used.
func (r *roundState) Advance(cost float64, gradient []float64, epsilon float64) (bool, float64) {
	if r.hasCost && gdmath.Converged(r.cost, cost, epsilon) {
		r.cost = cost
		return true, 0
	}
	r.iteration++

	step := 1.0
	if r.previous != nil {
		if bb, ok := gdmath.StepSize(r.previous, r.current, r.gradient, gradient); ok {
			step = bb
		} else {
			step = r.step
		}
	}

	r.previous = r.current
	r.gradient = gradient
	r.cost, r.hasCost = cost, true
	r.step = step
	r.current = gdmath.Descend(r.previous, step, gradient)
	return false, step
}
