package unit

import (
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/sw965/ebm/blas32/vector"
	"github.com/sw965/ebm/mathx"
	"gonum.org/v1/gonum/blas/blas32"
)

func SigmoidFunc(x blas32.Vector, _ *rand.Rand) blas32.Vector {
	return vector.Map(x, mathx.Sigmoid)
}

func TanhFunc(x blas32.Vector, _ *rand.Rand) blas32.Vector {
	return vector.Map(x, math32.Tanh)
}

func LinearFunc(x blas32.Vector, _ *rand.Rand) blas32.Vector {
	return vector.Clone(x)
}

// RectLinearFunc is the noisy rectifier max(0, x + N(0, sigmoid(x))).
func RectLinearFunc(x blas32.Vector, rng *rand.Rand) blas32.Vector {
	y := vector.NewZeros(x.N)
	for i, e := range x.Data[:x.N] {
		noise := mathx.Sigmoid(e) * float32(rng.NormFloat64())
		y.Data[i] = math32.Max(0.0, e+noise)
	}
	return y
}

func SoftmaxFunc(x blas32.Vector, _ *rand.Rand) blas32.Vector {
	y := vector.NewZeros(x.N)
	if x.N == 0 {
		return y
	}
	// オーバーフロー対策
	maxX := x.Data[0]
	for _, e := range x.Data[:x.N] {
		maxX = math32.Max(maxX, e)
	}
	var sum float32
	for i, e := range x.Data[:x.N] {
		y.Data[i] = math32.Exp(e - maxX)
		sum += y.Data[i]
	}
	for i := range y.Data {
		y.Data[i] /= sum
	}
	return y
}

func ThreshFunc(x blas32.Vector, _ *rand.Rand) blas32.Vector {
	return vector.Map(x, func(e float32) float32 {
		if e >= 0.5 {
			return 1.0
		}
		return 0.0
	})
}

func DetCatFunc(x blas32.Vector, _ *rand.Rand) blas32.Vector {
	y := vector.NewZeros(x.N)
	if idx := DetCatIndex(x); idx >= 0 {
		y.Data[idx] = 1.0
	}
	return y
}

func DetCatIndex(x blas32.Vector) int {
	return vector.Argmax(x)
}
