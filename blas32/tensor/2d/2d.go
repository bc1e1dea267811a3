package tensor2d

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/sw965/ebm/mathx/randx"
	"gonum.org/v1/gonum/blas/blas32"
)

func NewZeros(rows, cols int) blas32.General {
	return blas32.General{
		Rows:   rows,
		Cols:   cols,
		Stride: cols,
		Data:   make([]float32, rows*cols),
	}
}

func NewZerosLike(gen blas32.General) blas32.General {
	return NewZeros(gen.Rows, gen.Cols)
}

func New(rows, cols int, data []float32) (blas32.General, error) {
	if len(data) != rows*cols {
		return blas32.General{}, fmt.Errorf("tensor2d.New: len(data) = %d, want %d×%d", len(data), rows, cols)
	}
	return blas32.General{
		Rows:   rows,
		Cols:   cols,
		Stride: cols,
		Data:   data,
	}, nil
}

func NewUniform(rows, cols int, lo, hi float32, rng *rand.Rand) blas32.General {
	gen := NewZeros(rows, cols)
	for i := range gen.Data {
		gen.Data[i] = randx.Uniform(lo, hi, rng)
	}
	return gen
}

func NewNormal(rows, cols int, mean, std float32, rng *rand.Rand) blas32.General {
	gen := NewZeros(rows, cols)
	for i := range gen.Data {
		gen.Data[i] = randx.Normal(mean, std, rng)
	}
	return gen
}

func N(gen blas32.General) int {
	return gen.Rows * gen.Cols
}

func Clone(gen blas32.General) blas32.General {
	return blas32.General{
		Rows:   gen.Rows,
		Cols:   gen.Cols,
		Stride: gen.Stride,
		Data:   slices.Clone(gen.Data),
	}
}

// At returns the index of (row, col) in gen.Data.
func At(gen blas32.General, row, col int) int {
	return row*gen.Stride + col
}

func Row(gen blas32.General, row int) []float32 {
	offset := row * gen.Stride
	return gen.Data[offset : offset+gen.Cols]
}

func SameShape(a, b blas32.General) bool {
	return a.Rows == b.Rows && a.Cols == b.Cols
}

func ToVector(gen blas32.General) blas32.Vector {
	return blas32.Vector{
		N:    N(gen),
		Inc:  1,
		Data: gen.Data,
	}
}

func Scal(alpha float32, gen blas32.General) {
	vec := ToVector(gen)
	blas32.Scal(alpha, vec)
}

func Axpy(alpha float32, x, y blas32.General) {
	xv := ToVector(x)
	yv := ToVector(y)
	blas32.Axpy(alpha, xv, yv)
}

// Ger accumulates gen += alpha · x ⊗ y.
func Ger(alpha float32, x, y blas32.Vector, gen blas32.General) {
	blas32.Ger(alpha, x, y, gen)
}

// SubRows subtracts v[r] from every element of row r.
func SubRows(gen blas32.General, v blas32.Vector) {
	for r := 0; r < gen.Rows; r++ {
		e := v.Data[r]
		row := Row(gen, r)
		for c := range row {
			row[c] -= e
		}
	}
}
