package points

import (
	"math/rand"
)

// MaxRandomDim bounds the dimensionality picked by
// RandomDim.
const MaxRandomDim = 10

// RandomDim picks a dimensionality uniformly from
// [1, MaxRandomDim).
func RandomDim(rng *rand.Rand) int {
	return rng.Intn(MaxRandomDim-1) + 1
}

// RandomWeights draws dim+1 weights uniformly from
// [0, maxWeight).
func RandomWeights(rng *rand.Rand, dim int, maxWeight float64) []float64 {
	res := make([]float64, dim+1)
	for i := range res {
		res[i] = rng.Float64() * maxWeight
	}
	return res
}

// Generate creates n points whose coordinates are uniform
// in [-maxCoord, maxCoord) and whose targets lie exactly on
// the hyperplane described by weights (the last weight is
// the bias).
func Generate(rng *rand.Rand, n int, weights []float64, maxCoord float64) *Dataset {
	dim := len(weights) - 1
	ds := &Dataset{Dim: dim, Points: make([]Point, n)}
	for i := range ds.Points {
		coords := make([]float64, dim)
		target := weights[dim]
		for j := range coords {
			coords[j] = (rng.Float64() - 0.5) * 2 * maxCoord
			target += weights[j] * coords[j]
		}
		ds.Points[i] = Point{Coords: coords, Target: target}
	}
	return ds
}
