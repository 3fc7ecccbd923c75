package sim

import (
	"math/rand"

	"demesim/internal/model"
)

// choice returns one uniformly drawn element.
func choice(rng *rand.Rand, values []model.Allele) model.Allele {
	return values[rng.Intn(len(values))]
}

// weightedSample draws k values with replacement, weighted by the parallel
// weights slice. total must be the positive sum of weights.
func weightedSample(rng *rand.Rand, values []model.Allele, weights []float64, total float64, k int) []model.Allele {
	cumulative := make([]float64, len(weights))
	acc := 0.0
	for i, w := range weights {
		acc += w
		cumulative[i] = acc
	}

	out := make([]model.Allele, k)
	for i := 0; i < k; i++ {
		pick := rng.Float64() * total
		out[i] = values[searchCumulative(cumulative, pick)]
	}
	return out
}

func searchCumulative(cumulative []float64, pick float64) int {
	lo, hi := 0, len(cumulative)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if cumulative[mid] <= pick {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// sampleIndices draws k distinct indices from [0, n).
func sampleIndices(rng *rand.Rand, n, k int) []int {
	if k > n {
		k = n
	}
	return rng.Perm(n)[:k]
}
