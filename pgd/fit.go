package pgd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/unixpickle/dist-gd/gdmath"
	"github.com/unixpickle/dist-gd/logging"
	"github.com/unixpickle/dist-gd/points"
	"github.com/unixpickle/dist-gd/simulator"
)

const (
	// DefaultRate is the bytes per unit of virtual time of
	// the network used when Config.Network is nil.
	DefaultRate = 1e6

	// DefaultFlopTime is a realistic FlopTime.
	DefaultFlopTime = 1e-9
)

// Config controls a distributed run.
type Config struct {
	// Workers is the number of workers to split the data
	// between.
	Workers int

	// Epsilon is the convergence threshold on the change
	// of the mean cost between two rounds.
	Epsilon float64

	// Network connects the coordinator to the workers.
	// If nil, an OrderedNetwork with DefaultRate is used.
	Network simulator.Network

	// FlopTime is the virtual time workers spend on each
	// floating-point operation.
	FlopTime float64

	Logger   *logging.Logger
	Observer RoundObserver

	// RunID identifies the run in logs and history. A
	// random ID is generated if it is empty.
	RunID string
}

func (c *Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: worker count must be positive (got %d)", ErrConfiguration,
			c.Workers)
	}
	if !(c.Epsilon > 0) {
		return fmt.Errorf("%w: convergence threshold must be positive (got %v)",
			ErrConfiguration, c.Epsilon)
	}
	if c.FlopTime < 0 {
		return fmt.Errorf("%w: flop time must not be negative", ErrConfiguration)
	}
	return nil
}

// Fit runs distributed gradient descent on a dataset.
//
// The coordinator and every worker run in their own
// Goroutine on a fresh simulated network. When ctx is done
// before the run converges, Fit returns an error wrapping
// ErrAborted.
func Fit(ctx context.Context, ds *points.Dataset, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if ds == nil || ds.Len() == 0 {
		return nil, stageError(StageLoad, fmt.Errorf("%w: dataset is empty", ErrConfiguration))
	}
	ranges, err := Partition(ds.Len(), cfg.Workers)
	if err != nil {
		return nil, stageError(StagePartition, err)
	}

	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithRun(cfg.RunID)
	network := cfg.Network
	if network == nil {
		network = simulator.NewOrderedNetwork(DefaultRate, 0)
	}

	loop := simulator.NewEventLoop()
	coordPort := simulator.NewNode().Port(loop)
	workerPorts := make([]*simulator.Port, cfg.Workers)
	for i := range workerPorts {
		workerPorts[i] = simulator.NewNode().Port(loop)
	}

	for i, r := range ranges {
		worker := &Worker{
			ID:          i,
			Coordinator: coordPort,
			Points:      ds.Points[r.Start:r.End],
			Dim:         ds.Dim,
			FlopTime:    cfg.FlopTime,
			Logger:      logger.WithWorker(i),
		}
		worker.Port = workerPorts[i]
		worker.Network = network
		loop.Go(func(h *simulator.Handle) {
			worker.Handle = h
			if err := worker.RunLoop(); err != nil && loop.Aborted() == nil {
				worker.Logger.Debug("worker stopped early", "error", err)
			}
		})
	}

	var res *Result
	var coordErr error
	coord := &Coordinator{
		Workers:    workerPorts,
		Dim:        ds.Dim,
		TotalCount: ds.Len(),
		Epsilon:    cfg.Epsilon,
		Logger:     logger.With("role", "coordinator"),
		Observer:   cfg.Observer,
	}
	coord.Port = coordPort
	coord.Network = network
	loop.Go(func(h *simulator.Handle) {
		coord.Handle = h
		res, coordErr = coord.RunLoop()
	})

	logger.Info("starting run", "workers", cfg.Workers, "points", ds.Len(), "dim", ds.Dim)
	start := time.Now()
	runErr := loop.RunContext(ctx)
	if coordErr != nil {
		return nil, coordErr
	}
	if runErr != nil {
		// The coordinator finished but a worker never did.
		if errors.Is(runErr, simulator.ErrDeadlock) {
			return nil, stageError(StageAggregate, fmt.Errorf("%w: %w", ErrInternalInvariant,
				runErr))
		}
		return nil, stageError(StageAggregate, fmt.Errorf("%w: %w", ErrAborted, runErr))
	}
	res.RunID = cfg.RunID
	res.Elapsed = time.Since(start)
	logger.Info("run finished", "iterations", res.Iterations, "cost", res.Cost,
		"virtual_time", res.VirtualTime, "elapsed", res.Elapsed.String())
	return res, nil
}

// FitSequential runs the same optimization as Fit in the
// calling Goroutine, with no workers or network.
//
// Only the Epsilon, Logger, Observer and RunID fields of
// cfg are used. Reported round times are zero, since no
// virtual clock runs.
//
// It computes exactly what a single-worker Fit computes,
// which makes it a reference for the distributed version.
func FitSequential(ctx context.Context, ds *points.Dataset, cfg Config) (*Result, error) {
	if !(cfg.Epsilon > 0) {
		return nil, fmt.Errorf("%w: convergence threshold must be positive (got %v)",
			ErrConfiguration, cfg.Epsilon)
	}
	if ds == nil || ds.Len() == 0 {
		return nil, stageError(StageLoad, fmt.Errorf("%w: dataset is empty", ErrConfiguration))
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithRun(cfg.RunID)
	logger.Info("starting sequential run", "points", ds.Len(), "dim", ds.Dim)

	start := time.Now()
	state := newRoundState(ds.Dim)
	for {
		if err := ctx.Err(); err != nil {
			err = stageError(StageAggregate, fmt.Errorf("%w: %w", ErrAborted, err))
			logger.WithStage(string(StageAggregate)).Error("optimization failed", "error", err)
			return nil, err
		}
		costSum, gradSum := gdmath.LocalSums(state.current, ds.Points)
		cost, grad := gdmath.Mean(costSum, gradSum, ds.Len())
		report := &RoundReport{
			Iteration: state.iteration,
			Weights:   state.current,
			Cost:      cost,
			Gradient:  grad,
		}
		report.Converged, report.Step = state.Advance(cost, grad, cfg.Epsilon)
		logger.Debug("round aggregated", "iteration", report.Iteration, "cost", cost,
			"step", report.Step)
		if cfg.Observer != nil {
			if err := cfg.Observer.ObserveRound(report); err != nil {
				logger.Warn("round observer failed", "iteration", report.Iteration, "error", err)
			}
		}
		if report.Converged {
			break
		}
	}
	res := &Result{
		RunID:      cfg.RunID,
		Weights:    state.current,
		Cost:       state.cost,
		Iterations: state.iteration,
		Workers:    1,
		Elapsed:    time.Since(start),
	}
	logger.Info("run finished", "iterations", res.Iterations, "cost", res.Cost,
		"elapsed", res.Elapsed.String())
	return res, nil
}
