package pgd

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/dist-gd/gdmath"
	"github.com/unixpickle/dist-gd/logging"
	"github.com/unixpickle/dist-gd/points"
	"github.com/unixpickle/dist-gd/simulator"
)

func TestFitRecoversWeights(t *testing.T) {
	trueWeights := []float64{3, -2, 5}
	ds := points.Generate(rand.New(rand.NewSource(1337)), 10000, trueWeights, 100)

	for _, workers := range []int{1, 4, 7} {
		res, err := Fit(context.Background(), ds, Config{Workers: workers, Epsilon: 1e-6})
		require.NoError(t, err, "workers=%d", workers)
		require.Len(t, res.Weights, 3)
		for i, expected := range trueWeights {
			assert.InDelta(t, expected, res.Weights[i], math.Abs(expected)*0.01,
				"workers=%d weight %d", workers, i)
		}
		assert.Equal(t, workers, res.Workers)
		assert.Greater(t, res.Iterations, 1)
		assert.Greater(t, res.VirtualTime, 0.0)
		assert.NotEmpty(t, res.RunID)
	}
}

func TestFitSmallDataset(t *testing.T) {
	ds := &points.Dataset{Dim: 1, Points: []points.Point{
		{Coords: []float64{1}, Target: 4},
		{Coords: []float64{2}, Target: 6},
		{Coords: []float64{3}, Target: 8},
	}}
	res, err := Fit(context.Background(), ds, Config{Workers: 1, Epsilon: 1e-12})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Weights[0], 1e-3)
	assert.InDelta(t, 2.0, res.Weights[1], 1e-3)
}

func TestFitMatchesSequential(t *testing.T) {
	ds := points.Generate(rand.New(rand.NewSource(42)), 500, []float64{0.5, 1.5, -3, 2}, 10)
	expected, err := FitSequential(context.Background(), ds, Config{Epsilon: 1e-8})
	require.NoError(t, err)
	assert.NotEmpty(t, expected.RunID)

	actual, err := Fit(context.Background(), ds, Config{Workers: 1, Epsilon: 1e-8})
	require.NoError(t, err)
	assert.Equal(t, expected.Weights, actual.Weights)
	assert.Equal(t, expected.Iterations, actual.Iterations)
	assert.Equal(t, expected.Cost, actual.Cost)
}

// TestFitCostAcrossPartitions checks that summing local
// sums and dividing once gives the single-pass cost.
func TestFitCostAcrossPartitions(t *testing.T) {
	ds := points.Generate(rand.New(rand.NewSource(7)), 1000, []float64{1, 2, 3}, 50)
	weights := []float64{0.3, -0.7, 2}
	var direct float64
	for _, p := range ds.Points {
		direct += gdmath.Cost(weights, p)
	}
	direct /= float64(ds.Len())

	for _, workers := range []int{1, 2, 3, 8, 100} {
		ranges, err := Partition(ds.Len(), workers)
		require.NoError(t, err)
		var costSum float64
		for _, r := range ranges {
			c, _ := gdmath.LocalSums(weights, ds.Points[r.Start:r.End])
			costSum += c
		}
		assert.InEpsilon(t, direct, costSum/float64(ds.Len()), 1e-12, "workers=%d", workers)
	}
}

func TestFitDeterministicAcrossNetworks(t *testing.T) {
	ds := points.Generate(rand.New(rand.NewSource(3)), 300, []float64{2, -1, 0.5}, 20)
	expected, err := Fit(context.Background(), ds, Config{Workers: 5, Epsilon: 1e-8})
	require.NoError(t, err)

	network := &duplicatingNetwork{Network: simulator.RandomNetwork{}}
	actual, err := Fit(context.Background(), ds, Config{
		Workers: 5,
		Epsilon: 1e-8,
		Network: network,
	})
	require.NoError(t, err)
	assert.Equal(t, expected.Weights, actual.Weights)
	assert.Equal(t, expected.Iterations, actual.Iterations)
	assert.Greater(t, actual.Duplicates+actual.Stale, 0)
	assert.Zero(t, expected.Duplicates+expected.Stale)
}

func TestFitObserver(t *testing.T) {
	ds := points.Generate(rand.New(rand.NewSource(5)), 200, []float64{1, 1}, 5)
	observer := &recordingObserver{}
	res, err := Fit(context.Background(), ds, Config{
		Workers:  3,
		Epsilon:  1e-8,
		Observer: observer,
	})
	require.NoError(t, err)
	require.Len(t, observer.reports, res.Iterations)
	for i, r := range observer.reports {
		assert.Equal(t, i+1, r.Iteration)
		assert.Equal(t, i == len(observer.reports)-1, r.Converged)
	}
	last := observer.reports[len(observer.reports)-1]
	assert.Equal(t, res.Weights, last.Weights)
	assert.Equal(t, res.Cost, last.Cost)
}

func TestFitSequentialObserver(t *testing.T) {
	ds := points.Generate(rand.New(rand.NewSource(5)), 200, []float64{1, 1}, 5)
	distributed := &recordingObserver{}
	_, err := Fit(context.Background(), ds, Config{
		Workers:  1,
		Epsilon:  1e-8,
		Observer: distributed,
	})
	require.NoError(t, err)

	sequential := &recordingObserver{}
	var logs bytes.Buffer
	res, err := FitSequential(context.Background(), ds, Config{
		Epsilon:  1e-8,
		Observer: sequential,
		Logger:   logging.NewWriterLogger(&logs, logging.LevelInfo),
		RunID:    "sequential-run",
	})
	require.NoError(t, err)
	assert.Equal(t, "sequential-run", res.RunID)
	assert.Contains(t, logs.String(), "sequential-run")

	require.Len(t, sequential.reports, res.Iterations)
	require.Len(t, sequential.reports, len(distributed.reports))
	for i, r := range sequential.reports {
		d := distributed.reports[i]
		assert.Equal(t, d.Iteration, r.Iteration)
		assert.Equal(t, d.Weights, r.Weights)
		assert.Equal(t, d.Cost, r.Cost)
		assert.Equal(t, d.Step, r.Step)
		assert.Equal(t, d.Converged, r.Converged)
		assert.Zero(t, r.Time)
	}
}

func TestFitObserverFailure(t *testing.T) {
	ds := points.Generate(rand.New(rand.NewSource(5)), 200, []float64{1, 1}, 5)
	var logs bytes.Buffer
	_, err := Fit(context.Background(), ds, Config{
		Workers:  2,
		Epsilon:  1e-8,
		Observer: &recordingObserver{err: errors.New("disk full")},
		Logger:   logging.NewWriterLogger(&logs, logging.LevelWarn),
	})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "disk full")
}

func TestFitTimeout(t *testing.T) {
	// A NaN target keeps the cost at NaN forever, so the run
	// never converges.
	ds := &points.Dataset{Dim: 1, Points: []points.Point{
		{Coords: []float64{1}, Target: math.NaN()},
		{Coords: []float64{2}, Target: 1},
	}}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second/10)
	defer cancel()

	_, err := Fit(ctx, ds, Config{Workers: 2, Epsilon: 1e-3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEmpty(t, StageOf(err))
}

func TestFitInvalidConfig(t *testing.T) {
	ds := points.Generate(rand.New(rand.NewSource(1)), 10, []float64{1, 1}, 1)
	for _, cfg := range []Config{
		{Workers: 0, Epsilon: 1},
		{Workers: 2, Epsilon: 0},
		{Workers: 2, Epsilon: math.NaN()},
		{Workers: 2, Epsilon: 1, FlopTime: -1},
	} {
		_, err := Fit(context.Background(), ds, cfg)
		assert.ErrorIs(t, err, ErrConfiguration)
	}

	_, err := Fit(context.Background(), ds, Config{Workers: 7, Epsilon: 1})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, StagePartition, StageOf(err))

	_, err = Fit(context.Background(), &points.Dataset{}, Config{Workers: 1, Epsilon: 1})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, StageLoad, StageOf(err))
}

func TestResultPublish(t *testing.T) {
	res := &Result{Weights: []float64{1.5, -2, 0.25}}

	t.Run("Sink", func(t *testing.T) {
		sink := &memorySink{}
		var stdout bytes.Buffer
		require.NoError(t, res.Publish(sink, &stdout, nil))
		assert.Equal(t, res.Weights, sink.weights)
		assert.Empty(t, stdout.String())
	})

	t.Run("Fallback", func(t *testing.T) {
		sink := &memorySink{err: errors.New("permission denied")}
		var stdout, logs bytes.Buffer
		logger := logging.NewWriterLogger(&logs, logging.LevelWarn)
		require.NoError(t, res.Publish(sink, &stdout, logger))
		assert.Equal(t, "Feature weights: 1.5 -2\nConstant weight: 0.25\n", stdout.String())
		assert.Contains(t, logs.String(), ErrSinkWrite.Error())
		assert.Contains(t, logs.String(), "permission denied")
	})

	t.Run("NoSink", func(t *testing.T) {
		var stdout bytes.Buffer
		require.NoError(t, res.Publish(nil, &stdout, nil))
		assert.Equal(t, "Feature weights: 1.5 -2\nConstant weight: 0.25\n", stdout.String())
	})

	t.Run("Summary", func(t *testing.T) {
		var buf bytes.Buffer
		summary := &Result{Iterations: 12, Workers: 3, Stale: 2}
		require.NoError(t, summary.WriteSummary(&buf))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		assert.Equal(t, "Iterations: 12", lines[0])
		assert.Equal(t, "Discarded results: 0 duplicate, 2 stale", lines[len(lines)-1])
	})
}

type duplicatingNetwork struct {
	simulator.Network
}

// Send delivers every LocalSums message twice.
func (d *duplicatingNetwork) Send(h *simulator.Handle, msgs ...*simulator.Message) {
	var all []*simulator.Message
	for _, msg := range msgs {
		all = append(all, msg)
		if m, ok := msg.Message.(*Message); ok && m.LocalSums != nil {
			dup := *msg
			all = append(all, &dup)
		}
	}
	d.Network.Send(h, all...)
}

type recordingObserver struct {
	reports []RoundReport
	err     error
}

func (r *recordingObserver) ObserveRound(report *RoundReport) error {
	r.reports = append(r.reports, *report)
	return r.err
}

type memorySink struct {
	weights []float64
	err     error
}

func (m *memorySink) WriteWeights(weights []float64) error {
	if m.err != nil {
		return m.err
	}
	m.weights = append([]float64{}, weights...)
	return nil
}
