package mathx

import (
	"github.com/chewxy/math32"
	"golang.org/x/exp/constraints"
)

// LogFloorは、log(0)を避ける為の下限値。
const LogFloor float32 = 1e-8

// NumericalGradient perturbs xs in place one element at a time and restores it.
func NumericalGradient[X constraints.Float](xs []X, f func([]X) X) []X {
	h := X(0.0001)
	n := len(xs)
	grad := make([]X, n)
	for i := 0; i < n; i++ {
		tmp := xs[i]
		xs[i] = tmp + h
		y1 := f(xs)

		xs[i] = tmp - h
		y2 := f(xs)

		grad[i] = (y1 - y2) / (h * 2)
		xs[i] = tmp
	}
	return grad
}

func SafeLog(x float32) float32 {
	return math32.Log(x + LogFloor)
}

func Sigmoid(x float32) float32 {
	return 1.0 / (1.0 + math32.Exp(-x))
}

// Softplus is log(1 + e^x), evaluated without overflow for large x.
func Softplus(x float32) float32 {
	if x > 0 {
		return x + math32.Log1p(math32.Exp(-x))
	}
	return math32.Log1p(math32.Exp(x))
}

func Clamp[X constraints.Ordered](x, lo, hi X) X {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
