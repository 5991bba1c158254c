package pgd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/unixpickle/dist-gd/logging"
)

// A Result describes a finished run.
type Result struct {
	RunID string

	// Weights holds the feature weights followed by the
	// bias.
	Weights []float64

	// Cost is the mean cost of the last aggregated round.
	Cost float64

	Iterations int
	Workers    int

	// VirtualTime is the simulated time the run took, and
	// Elapsed is the wall-clock time.
	VirtualTime float64
	Elapsed     time.Duration

	// Duplicates and Stale count discarded LocalSums.
	Duplicates int
	Stale      int
}

// A Sink stores the final weights of a run.
type Sink interface {
	WriteWeights(weights []float64) error
}

// Publish writes the weights to sink.
//
// If sink is nil or fails, the weights are written to
// fallback instead; a sink failure is logged as a warning
// rather than returned. The returned error only reports a
// failure to write to fallback.
func (r *Result) Publish(sink Sink, fallback io.Writer, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if sink != nil {
		err := sink.WriteWeights(r.Weights)
		if err == nil {
			return nil
		}
		logger.Warn("writing weights to stdout instead",
			"error", fmt.Errorf("%w: %w", ErrSinkWrite, err))
	}
	return r.writeWeights(fallback)
}

// WriteSummary prints the statistics of the run, without
// the weights.
func (r *Result) WriteSummary(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Iterations: %d\nWorkers: %d\nVirtual time: %f\nElapsed: %v\n"+
		"Cost: %g\n", r.Iterations, r.Workers, r.VirtualTime, r.Elapsed, r.Cost)
	if err == nil && r.Duplicates+r.Stale > 0 {
		_, err = fmt.Fprintf(w, "Discarded results: %d duplicate, %d stale\n", r.Duplicates,
			r.Stale)
	}
	return err
}

func (r *Result) writeWeights(w io.Writer) error {
	if len(r.Weights) == 0 {
		return nil
	}
	d := len(r.Weights) - 1
	features := make([]string, d)
	for i, x := range r.Weights[:d] {
		features[i] = fmt.Sprint(x)
	}
	_, err := fmt.Fprintf(w, "Feature weights: %s\nConstant weight: %v\n",
		strings.Join(features, " "), r.Weights[d])
	return err
}
