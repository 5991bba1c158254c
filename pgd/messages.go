package pgd

import "fmt"

// Message is the envelope for everything exchanged between
// the coordinator and its workers.
// Exactly one field is non-nil.
type Message struct {
	Readiness     *Readiness
	Weights       *Weights
	LocalSums     *LocalSums
	WorkerFailure *WorkerFailure
	Shutdown      *Shutdown
}

// Size approximates the encoded size of the message in
// bytes, which determines its transfer time.
func (m *Message) Size() int {
	headerSize := 1
	switch {
	case m.Readiness != nil:
		return headerSize + 8
	case m.Weights != nil:
		return headerSize + 8 + 8*len(m.Weights.Weights)
	case m.LocalSums != nil:
		return headerSize + 8*3 + 8*len(m.LocalSums.GradientSum)
	case m.WorkerFailure != nil:
		return headerSize + 8*2 + len(m.WorkerFailure.Err.Error())
	case m.Shutdown != nil:
		return headerSize
	}
	panic("unknown message type")
}

// Kind names the populated field, for logging.
func (m *Message) Kind() string {
	switch {
	case m.Readiness != nil:
		return "readiness"
	case m.Weights != nil:
		return "weights"
	case m.LocalSums != nil:
		return "local_sums"
	case m.WorkerFailure != nil:
		return "worker_failure"
	case m.Shutdown != nil:
		return "shutdown"
	}
	return "empty"
}

func (m *Message) String() string {
	return fmt.Sprintf("Message(%s)", m.Kind())
}

// Readiness is sent once by every worker as soon as it can
// accept weights.
type Readiness struct {
	WorkerID int
}

// Weights is broadcast by the coordinator to start a
// round.
type Weights struct {
	// Epoch identifies the round. Results for any other
	// epoch are stale.
	Epoch uint64

	// Weights has one entry per coordinate plus the bias.
	Weights []float64
}

// LocalSums is a worker's reply to Weights: unnormalized
// sums over the worker's partition.
type LocalSums struct {
	WorkerID    int
	Epoch       uint64
	CostSum     float64
	GradientSum []float64
}

// WorkerFailure reports a fatal error inside a worker.
type WorkerFailure struct {
	WorkerID int
	Epoch    uint64
	Err      error
}

// Shutdown tells a worker to exit.
type Shutdown struct{}
