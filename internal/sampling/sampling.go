// Package sampling draws actions from discrete probability distributions.
package sampling

import (
	"fmt"
	"math/rand"
)

const eps = 1e-3

// SampleOne returns the first element i of pv where sum(pv[:i+1]) > x.
// x must be drawn uniformly from [0, 1).
func SampleOne(pv []float64, x float64) int {
	var cumProb float64
	for i, p := range pv {
		cumProb += p
		if cumProb > x {
			return i
		}
	}

	if cumProb < 1.0-eps { // Leave room for floating point error.
		panic(fmt.Errorf("probability distribution sums to %v != 1: %v", cumProb, pv))
	}

	return len(pv) - 1
}

// Sample is SampleOne with x drawn from rng.
func Sample(rng *rand.Rand, pv []float64) int {
	return SampleOne(pv, rng.Float64())
}
