package pgd

import (
	"errors"
	"fmt"

	"github.com/unixpickle/dist-gd/gdmath"
	"github.com/unixpickle/dist-gd/logging"
	"github.com/unixpickle/dist-gd/simulator"
)

// A Phase is a state of the coordinator.
type Phase int

const (
	AwaitingReadiness Phase = iota
	Dispatching
	AwaitingResults
	Terminal
)

func (p Phase) String() string {
	switch p {
	case AwaitingReadiness:
		return "awaiting_readiness"
	case Dispatching:
		return "dispatching"
	case AwaitingResults:
		return "awaiting_results"
	case Terminal:
		return "terminal"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// A RoundReport describes one aggregated round.
type RoundReport struct {
	Iteration int

	// Weights are the weights that Cost and Gradient were
	// measured at.
	Weights  []float64
	Cost     float64
	Gradient []float64

	// Step is the step size taken after this round. It is
	// zero when the round converged.
	Step      float64
	Converged bool

	// Time is the virtual time when the round finished.
	Time float64
}

// A RoundObserver is notified after every round.
//
// Observers run on the coordinator's Goroutine and must not
// modify the report's slices.
type RoundObserver interface {
	ObserveRound(r *RoundReport) error
}

// A Coordinator drives the optimization: it waits for all
// workers, broadcasts weights, aggregates local sums and
// decides when to stop.
//
// All of its state is private to the Goroutine running
// RunLoop.
type Coordinator struct {
	Comms

	// Workers holds every worker's port, indexed by
	// worker ID.
	Workers []*simulator.Port

	Dim        int
	TotalCount int
	Epsilon    float64

	Logger   *logging.Logger
	Observer RoundObserver

	phase   Phase
	state   *roundState
	ready   *readinessSet
	pending *pendingAggregation

	duplicates int
	stale      int
}

// RunLoop runs the coordinator until convergence or a
// fatal error. Either way, every worker is told to shut
// down before RunLoop returns.
func (c *Coordinator) RunLoop() (res *Result, err error) {
	if c.Logger == nil {
		c.Logger = logging.NopLogger()
	}
	c.phase = AwaitingReadiness
	c.state = newRoundState(c.Dim)
	c.ready = newReadinessSet(len(c.Workers))
	c.pending = newPendingAggregation(len(c.Workers))

	defer func() {
		c.Bcast(c.Workers, &Message{Shutdown: &Shutdown{}})
	}()

	for {
		switch c.phase {
		case AwaitingReadiness:
			err = c.awaitReadiness()
		case Dispatching:
			c.dispatch()
		case AwaitingResults:
			err = c.awaitResults()
		case Terminal:
			return c.result(), nil
		}
		if err != nil {
			c.Logger.WithStage(string(StageOf(err))).Error("optimization failed",
				"phase", c.phase.String(), "error", err)
			return nil, err
		}
	}
}

func (c *Coordinator) awaitReadiness() error {
	for !c.ready.Complete() {
		msg, src, err := c.recv(StageDispatch)
		if err != nil {
			return err
		}
		switch {
		case msg.Readiness != nil:
			id := msg.Readiness.WorkerID
			if err := c.checkSender(id, src); err != nil {
				return stageError(StageDispatch, err)
			}
			if !c.ready.Set(id) {
				c.Logger.Debug("duplicate readiness", "worker_id", id)
			}
		case msg.WorkerFailure != nil:
			return c.workerFailure(msg.WorkerFailure)
		default:
			c.Logger.Debug("ignoring message before barrier", "kind", msg.Kind())
		}
	}
	c.Logger.Info("all workers ready", "workers", len(c.Workers))
	c.phase = Dispatching
	return nil
}

func (c *Coordinator) dispatch() {
	epoch := uint64(c.state.iteration)
	c.pending.Reset(epoch)

	// Every worker gets its own copy of the weights.
	msgs := make([]*Message, len(c.Workers))
	for i := range msgs {
		msgs[i] = &Message{Weights: &Weights{
			Epoch:   epoch,
			Weights: append([]float64{}, c.state.current...),
		}}
	}
	c.SendEach(c.Workers, msgs)
	c.phase = AwaitingResults
}

func (c *Coordinator) awaitResults() error {
	for !c.pending.Complete() {
		msg, src, err := c.recv(StageAggregate)
		if err != nil {
			return err
		}
		switch {
		case msg.LocalSums != nil:
			if err := c.offer(msg.LocalSums, src); err != nil {
				return stageError(StageAggregate, err)
			}
		case msg.WorkerFailure != nil:
			return c.workerFailure(msg.WorkerFailure)
		case msg.Readiness != nil:
			c.Logger.Debug("ignoring late readiness", "worker_id", msg.Readiness.WorkerID)
		default:
			c.Logger.Debug("ignoring unexpected message", "kind", msg.Kind())
		}
	}
	return c.aggregate()
}

func (c *Coordinator) offer(sums *LocalSums, src *simulator.Port) error {
	if err := c.checkSender(sums.WorkerID, src); err != nil {
		return err
	}
	if sums.Epoch != c.pending.epoch {
		c.stale++
		c.Logger.Debug("discarding stale local sums", "worker_id", sums.WorkerID,
			"epoch", sums.Epoch, "open_epoch", c.pending.epoch)
		return nil
	}
	if len(sums.GradientSum) != c.Dim+1 {
		return fmt.Errorf("%w: worker %d sent a gradient of length %d (expected %d)",
			ErrInternalInvariant, sums.WorkerID, len(sums.GradientSum), c.Dim+1)
	}
	if !c.pending.Offer(sums) {
		c.duplicates++
		c.Logger.Debug("discarding duplicate local sums", "worker_id", sums.WorkerID,
			"epoch", sums.Epoch)
	}
	return nil
}

func (c *Coordinator) aggregate() error {
	costSum, gradSum := c.pending.Total(c.Dim)
	cost, gradient := gdmath.Mean(costSum, gradSum, c.TotalCount)

	report := &RoundReport{
		Iteration: c.state.iteration,
		Weights:   c.state.current,
		Cost:      cost,
		Gradient:  gradient,
		Time:      c.Handle.Time(),
	}
	report.Converged, report.Step = c.state.Advance(cost, gradient, c.Epsilon)
	c.Logger.Debug("round aggregated", "iteration", report.Iteration, "cost", cost,
		"step", report.Step)

	if c.Observer != nil {
		if err := c.Observer.ObserveRound(report); err != nil {
			c.Logger.Warn("round observer failed", "iteration", report.Iteration, "error", err)
		}
	}

	if report.Converged {
		c.Logger.Info("optimization converged", "iterations", c.state.iteration, "cost", cost)
		c.phase = Terminal
	} else {
		c.phase = Dispatching
	}
	return nil
}

func (c *Coordinator) recv(stage Stage) (*Message, *simulator.Port, error) {
	msg, src, err := c.Recv()
	if err == nil {
		return msg, src, nil
	}
	switch {
	case errors.Is(err, ErrInternalInvariant):
	case errors.Is(err, simulator.ErrDeadlock):
		err = fmt.Errorf("%w: %w", ErrInternalInvariant, err)
	default:
		err = fmt.Errorf("%w: %w", ErrAborted, err)
	}
	return nil, nil, stageError(stage, err)
}

func (c *Coordinator) checkSender(id int, src *simulator.Port) error {
	if id < 0 || id >= len(c.Workers) {
		return fmt.Errorf("%w: unknown worker id %d", ErrInternalInvariant, id)
	}
	if c.Workers[id] != src {
		return fmt.Errorf("%w: worker id %d claimed by another port", ErrInternalInvariant, id)
	}
	return nil
}

func (c *Coordinator) workerFailure(f *WorkerFailure) error {
	return stageError(StageDispatch, fmt.Errorf("worker %d failed in epoch %d: %w",
		f.WorkerID, f.Epoch, f.Err))
}

func (c *Coordinator) result() *Result {
	return &Result{
		Weights:     c.state.current,
		Cost:        c.state.cost,
		Iterations:  c.state.iteration,
		Workers:     len(c.Workers),
		VirtualTime: c.Handle.Time(),
		Duplicates:  c.duplicates,
		Stale:       c.stale,
	}
}
