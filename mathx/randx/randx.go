package randx

import (
	"math/rand/v2"

	"github.com/seehuhn/mt19937"
)

func NewPCG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func NewMt19937(seed int64) *rand.Rand {
	mt := mt19937.New()
	mt.Seed(seed)
	return rand.New(mt)
}

// Bernoulliは、確率pで1を返す。p >= U(0,1) の比較は一様乱数を1つだけ消費する。
func Bernoulli(p float32, rng *rand.Rand) float32 {
	if p >= rng.Float32() {
		return 1.0
	}
	return 0.0
}

func Uniform(lo, hi float32, rng *rand.Rand) float32 {
	return lo + (hi-lo)*rng.Float32()
}

func Normal(mean, std float32, rng *rand.Rand) float32 {
	return mean + std*float32(rng.NormFloat64())
}

// CumulativeIndex draws one index from the unnormalised weights ps by
// searching the cumulative sum for a single uniform draw scaled by the total.
// A degenerate distribution (total <= 0) and rounding past the end both
// resolve to the last index.
func CumulativeIndex(ps []float32, rng *rand.Rand) int {
	n := len(ps)
	if n == 0 {
		return -1
	}
	var total float32
	for _, p := range ps {
		total += p
	}
	u := rng.Float32() * total
	var cum float32
	for i, p := range ps {
		cum += p
		if u < cum {
			return i
		}
	}
	return n - 1
}
