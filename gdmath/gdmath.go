// Package gdmath implements the numeric core of linear
// regression by gradient descent.
//
// A weight vector for d-dimensional points has d+1
// entries. The last entry is the bias, which is paired
// with an implicit feature value of 1.
//
// None of the functions here keep state, so they are safe
// to call from any number of Goroutines at once.
package gdmath

import (
	"math"

	"github.com/unixpickle/dist-gd/points"
	"gonum.org/v1/gonum/floats"
)

// Residual computes the signed prediction error of the
// weights on a point.
func Residual(weights []float64, p points.Point) float64 {
	d := len(p.Coords)
	return floats.Dot(weights[:d], p.Coords) + weights[d] - p.Target
}

// Cost computes the squared residual of a point.
func Cost(weights []float64, p points.Point) float64 {
	r := Residual(weights, p)
	return r * r
}

// GradientContribution computes one point's contribution
// to the coordIndex-th component of the gradient.
func GradientContribution(coordIndex int, weights []float64, p points.Point) float64 {
	x := 1.0
	if coordIndex < len(p.Coords) {
		x = p.Coords[coordIndex]
	}
	return Residual(weights, p) * x
}

// LocalSums computes the unnormalized cost and gradient
// sums over a set of points.
//
// The gradient has the same length as weights, which must
// be one more than the dimensionality of every point.
func LocalSums(weights []float64, pts []points.Point) (costSum float64, gradSum []float64) {
	gradSum = make([]float64, len(weights))
	d := len(weights) - 1
	for _, p := range pts {
		r := Residual(weights, p)
		costSum += r * r
		floats.AddScaled(gradSum[:d], r, p.Coords)
		gradSum[d] += r
	}
	return costSum, gradSum
}

// Mean turns sums over total points into means, in place.
func Mean(costSum float64, gradSum []float64, total int) (float64, []float64) {
	scale := 1 / float64(total)
	floats.Scale(scale, gradSum)
	return costSum * scale, gradSum
}

// StepSize computes the Barzilai-Borwein step
//
//	|dot(newW-oldW, newG-oldG)| / ||newG-oldG||^2
//
// The second return value is false if the gradient did not
// change, in which case the step is undefined.
func StepSize(oldW, newW, oldG, newG []float64) (float64, bool) {
	dw := floats.SubTo(make([]float64, len(newW)), newW, oldW)
	dg := floats.SubTo(make([]float64, len(newG)), newG, oldG)
	denom := floats.Dot(dg, dg)
	if denom == 0 {
		return 0, false
	}
	step := math.Abs(floats.Dot(dw, dg)) / denom
	if math.IsNaN(step) || math.IsInf(step, 0) {
		return 0, false
	}
	return step, true
}

// Converged checks if two consecutive costs are within
// epsilon of each other.
func Converged(oldCost, newCost, epsilon float64) bool {
	return math.Abs(newCost-oldCost) < epsilon
}

// Descend computes oldW - step*grad into a new slice.
func Descend(oldW []float64, step float64, grad []float64) []float64 {
	return floats.AddScaledTo(make([]float64, len(oldW)), oldW, -step, grad)
}
