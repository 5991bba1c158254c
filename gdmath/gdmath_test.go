package gdmath

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/unixpickle/dist-gd/points"
)

func TestResidual(t *testing.T) {
	p := points.Point{Coords: []float64{1, 2}, Target: 10}
	weights := []float64{3, -1, 4}
	assert.Equal(t, 3.0-2.0+4.0-10.0, Residual(weights, p))
	assert.Equal(t, 25.0, Cost(weights, p))
}

func TestGradientContribution(t *testing.T) {
	p := points.Point{Coords: []float64{2, -3}, Target: 1}
	weights := []float64{1, 1, 1}
	r := Residual(weights, p)
	assert.Equal(t, r*2, GradientContribution(0, weights, p))
	assert.Equal(t, r*-3, GradientContribution(1, weights, p))
	assert.Equal(t, r, GradientContribution(2, weights, p))
}

func TestLocalSumsMatchesContributions(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ds := points.Generate(rng, 50, []float64{1, -2, 0.5, 3}, 10)
	weights := []float64{0.1, 0.2, 0.3, 0.4}

	costSum, gradSum := LocalSums(weights, ds.Points)
	var expectedCost float64
	expectedGrad := make([]float64, len(weights))
	for _, p := range ds.Points {
		expectedCost += Cost(weights, p)
		for k := range expectedGrad {
			expectedGrad[k] += GradientContribution(k, weights, p)
		}
	}
	assert.InEpsilon(t, expectedCost, costSum, 1e-12)
	assert.InEpsilonSlice(t, expectedGrad, gradSum, 1e-12)
}

func TestLocalSumsEmpty(t *testing.T) {
	costSum, gradSum := LocalSums([]float64{1, 2}, nil)
	assert.Zero(t, costSum)
	assert.Equal(t, []float64{0, 0}, gradSum)
}

func TestMean(t *testing.T) {
	grad := []float64{4, 8}
	cost, scaled := Mean(12, grad, 4)
	assert.Equal(t, 3.0, cost)
	assert.Equal(t, []float64{1, 2}, scaled)
}

func TestStepSize(t *testing.T) {
	step, ok := StepSize([]float64{0, 0}, []float64{1, 1}, []float64{0, 0}, []float64{2, 2})
	assert.True(t, ok)
	assert.Equal(t, 0.5, step)

	// The absolute value keeps the step positive.
	step, ok = StepSize([]float64{0, 0}, []float64{1, 1}, []float64{0, 0}, []float64{-2, -2})
	assert.True(t, ok)
	assert.Equal(t, 0.5, step)

	_, ok = StepSize([]float64{0, 0}, []float64{1, 1}, []float64{3, 3}, []float64{3, 3})
	assert.False(t, ok)

	_, ok = StepSize([]float64{0}, []float64{math.Inf(1)}, []float64{0}, []float64{1})
	assert.False(t, ok)
}

func TestConverged(t *testing.T) {
	assert.True(t, Converged(1, 1.0005, 1e-3))
	assert.True(t, Converged(1.0005, 1, 1e-3))
	assert.False(t, Converged(1, 1.002, 1e-3))
	assert.False(t, Converged(1, 1, 0))
	assert.False(t, Converged(math.NaN(), 1, 1))
}

func TestDescend(t *testing.T) {
	old := []float64{1, 2, 3}
	res := Descend(old, 0.5, []float64{2, 2, -2})
	assert.Equal(t, []float64{0, 1, 4}, res)
	assert.Equal(t, []float64{1, 2, 3}, old)
}
