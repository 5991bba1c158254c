package pgd

import (
	"fmt"

	"github.com/unixpickle/dist-gd/gdmath"
	"github.com/unixpickle/dist-gd/logging"
	"github.com/unixpickle/dist-gd/points"
	"github.com/unixpickle/dist-gd/simulator"
)

// A Worker computes local sums over one partition of the
// dataset whenever the coordinator broadcasts weights.
type Worker struct {
	Comms

	// ID is the worker's index, which selects its readiness
	// bit and aggregation slot on the coordinator.
	ID int

	Coordinator *simulator.Port

	// Points is the worker's partition. It is never
	// modified.
	Points []points.Point
	Dim    int

	// FlopTime, if non-zero, is the virtual time charged for
	// each floating-point operation.
	FlopTime float64

	Logger *logging.Logger
}

// RunLoop announces readiness and then answers weight
// broadcasts until it is told to shut down.
//
// A non-nil error means the worker stopped early, either
// because the loop was aborted or because it was handed an
// invalid weight vector. In the latter case the failure is
// also reported to the coordinator.
func (w *Worker) RunLoop() error {
	logger := w.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	w.Send(w.Coordinator, &Message{Readiness: &Readiness{WorkerID: w.ID}})

	for {
		msg, src, err := w.Recv()
		if err != nil {
			return err
		}
		if src != w.Coordinator {
			logger.Debug("ignoring message from unknown port", "kind", msg.Kind())
			continue
		}
		switch {
		case msg.Shutdown != nil:
			return nil
		case msg.Weights != nil:
			sums, err := w.Compute(msg.Weights)
			if err != nil {
				logger.Error("cannot compute local sums", "epoch", msg.Weights.Epoch,
					"error", err)
				w.Send(w.Coordinator, &Message{WorkerFailure: &WorkerFailure{
					WorkerID: w.ID,
					Epoch:    msg.Weights.Epoch,
					Err:      err,
				}})
				return err
			}
			if w.FlopTime > 0 {
				if err := w.Handle.Sleep(w.FlopTime * w.flops()); err != nil {
					return err
				}
			}
			w.Send(w.Coordinator, &Message{LocalSums: sums})
		default:
			logger.Debug("ignoring unexpected message", "kind", msg.Kind())
		}
	}
}

// Compute produces the worker's reply to a broadcast.
func (w *Worker) Compute(weights *Weights) (*LocalSums, error) {
	if len(weights.Weights) != w.Dim+1 {
		return nil, fmt.Errorf("%w: worker %d got %d weights for dimensionality %d",
			ErrInternalInvariant, w.ID, len(weights.Weights), w.Dim)
	}
	costSum, gradSum := gdmath.LocalSums(weights.Weights, w.Points)
	return &LocalSums{
		WorkerID:    w.ID,
		Epoch:       weights.Epoch,
		CostSum:     costSum,
		GradientSum: gradSum,
	}, nil
}

// flops estimates the work of one Compute call: a dot
// product and a scaled add per point.
func (w *Worker) flops() float64 {
	return float64(len(w.Points) * (w.Dim + 1) * 4)
}
