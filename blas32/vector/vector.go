package vector

import (
	"slices"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gorgonia.org/vecf32"
)

func New(data []float32) blas32.Vector {
	return blas32.Vector{
		N:    len(data),
		Inc:  1,
		Data: data,
	}
}

func NewZeros(n int) blas32.Vector {
	return blas32.Vector{
		N:    n,
		Inc:  1,
		Data: make([]float32, n),
	}
}

func NewZerosLike(vec blas32.Vector) blas32.Vector {
	return NewZeros(vec.N)
}

func NewOneHot(n, idx int) blas32.Vector {
	vec := NewZeros(n)
	vec.Data[idx] = 1.0
	return vec
}

func Clone(vec blas32.Vector) blas32.Vector {
	return blas32.Vector{
		N:    vec.N,
		Inc:  vec.Inc,
		Data: slices.Clone(vec.Data),
	}
}

func Clones(vs []blas32.Vector) []blas32.Vector {
	c := make([]blas32.Vector, len(vs))
	for i, v := range vs {
		c[i] = Clone(v)
	}
	return c
}

func Map(vec blas32.Vector, f func(float32) float32) blas32.Vector {
	y := NewZeros(vec.N)
	for i, e := range vec.Data[:vec.N] {
		y.Data[i] = f(e)
	}
	return y
}

// Affine returns w·x + b for w of shape len(b)×len(x).
func Affine(w blas32.General, x, b blas32.Vector) blas32.Vector {
	y := Clone(b)
	blas32.Gemv(blas.NoTrans, 1.0, w, x, 1.0, y)
	return y
}

// AffineTrans returns wᵀ·x + b for w of shape len(x)×len(b).
func AffineTrans(w blas32.General, x, b blas32.Vector) blas32.Vector {
	y := Clone(b)
	blas32.Gemv(blas.Trans, 1.0, w, x, 1.0, y)
	return y
}

// AddMulVec accumulates y += w·x.
func AddMulVec(y blas32.Vector, w blas32.General, x blas32.Vector) {
	blas32.Gemv(blas.NoTrans, 1.0, w, x, 1.0, y)
}

func Sub(x, y blas32.Vector) blas32.Vector {
	z := Clone(x)
	blas32.Axpy(-1.0, y, z)
	return z
}

// Mul returns the elementwise product of x and y.
func Mul(x, y blas32.Vector) blas32.Vector {
	z := Clone(x)
	vecf32.Mul(z.Data[:z.N], y.Data[:x.N])
	return z
}

func Scaled(alpha float32, x blas32.Vector) blas32.Vector {
	y := Clone(x)
	blas32.Scal(alpha, y)
	return y
}

func Sum(vec blas32.Vector) float32 {
	return vecf32.Sum(vec.Data[:vec.N])
}

func Argmax(vec blas32.Vector) int {
	if vec.N == 0 {
		return -1
	}
	idx := 0
	for i, e := range vec.Data[:vec.N] {
		if e > vec.Data[idx] {
			idx = i
		}
	}
	return idx
}
