package model

import (
	"github.com/sw965/ebm/blas32/tensor/2d"
	"github.com/sw965/ebm/blas32/vector"
	"gonum.org/v1/gonum/blas/blas32"
)

// Parameter holds one weight matrix per visible-side layer and one bias
// vector per layer, the hidden bias last.
type Parameter struct {
	Weights []blas32.General
	Biases  []blas32.Vector
}

func (p Parameter) Clone() Parameter {
	ws := make([]blas32.General, len(p.Weights))
	for i, w := range p.Weights {
		ws[i] = tensor2d.Clone(w)
	}
	return Parameter{
		Weights: ws,
		Biases:  vector.Clones(p.Biases),
	}
}

func (p Parameter) NewZerosLike() Parameter {
	ws := make([]blas32.General, len(p.Weights))
	for i, w := range p.Weights {
		ws[i] = tensor2d.NewZerosLike(w)
	}
	bs := make([]blas32.Vector, len(p.Biases))
	for i, b := range p.Biases {
		bs[i] = vector.NewZerosLike(b)
	}
	return Parameter{
		Weights: ws,
		Biases:  bs,
	}
}

func (p Parameter) NewGradZerosLike() GradBuffer {
	return GradBuffer(p.NewZerosLike())
}

func (p Parameter) SameShape(other Parameter) bool {
	if len(p.Weights) != len(other.Weights) || len(p.Biases) != len(other.Biases) {
		return false
	}
	for i, w := range p.Weights {
		if !tensor2d.SameShape(w, other.Weights[i]) || len(w.Data) != len(other.Weights[i].Data) {
			return false
		}
	}
	for i, b := range p.Biases {
		if b.N != other.Biases[i].N || len(b.Data) != len(other.Biases[i].Data) {
			return false
		}
	}
	return true
}

func (p *Parameter) AxpyInPlace(alpha float32, x Parameter) {
	for i := range p.Weights {
		tensor2d.Axpy(alpha, x.Weights[i], p.Weights[i])
	}
	for i := range p.Biases {
		blas32.Axpy(alpha, x.Biases[i], p.Biases[i])
	}
}

func (p *Parameter) ScalInPlace(alpha float32) {
	for _, w := range p.Weights {
		tensor2d.Scal(alpha, w)
	}
	for _, b := range p.Biases {
		blas32.Scal(alpha, b)
	}
}

// GradBuffer accumulates gradients with the layout of a Parameter.
type GradBuffer struct {
	Weights []blas32.General
	Biases  []blas32.Vector
}

func (g GradBuffer) Clone() GradBuffer {
	return GradBuffer(Parameter(g).Clone())
}

func (g GradBuffer) NewZerosLike() GradBuffer {
	return GradBuffer(Parameter(g).NewZerosLike())
}

func (g *GradBuffer) AxpyInPlace(alpha float32, x GradBuffer) {
	p := Parameter(*g)
	p.AxpyInPlace(alpha, Parameter(x))
}

func (g *GradBuffer) ScalInPlace(alpha float32) {
	p := Parameter(*g)
	p.ScalInPlace(alpha)
}

// AddOuter accumulates Weights[i] += alpha · h ⊗ x.
func (g *GradBuffer) AddOuter(i int, alpha float32, h, x blas32.Vector) {
	tensor2d.Ger(alpha, h, x, g.Weights[i])
}

// AddBias accumulates Biases[i] += alpha · x.
func (g *GradBuffer) AddBias(i int, alpha float32, x blas32.Vector) {
	blas32.Axpy(alpha, x, g.Biases[i])
}
