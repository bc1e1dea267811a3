// Package optimizer holds the update step shared by every trainer:
// regularize the gradient, scale it into a delta, carry momentum and apply.
package optimizer

import (
	"github.com/sw965/ebm/blas32/tensor/2d"
	"github.com/sw965/ebm/blas32/vector"
	"github.com/sw965/ebm/model"
	"gonum.org/v1/gonum/blas/blas32"
)

type Momentum struct {
	LearningRate float32
	MomentumRate float32
}

// Delta returns lr·grad, plus MomentumRate·prev when carry is set.
func (opt Momentum) Delta(grad model.GradBuffer, prev model.Parameter, carry bool) model.Parameter {
	delta := model.Parameter(grad.Clone())
	delta.ScalInPlace(opt.LearningRate)
	if carry {
		delta.AxpyInPlace(opt.MomentumRate, prev)
	}
	return delta
}

// Step adds the delta to param in place and returns the delta.
func (opt Momentum) Step(param *model.Parameter, grad model.GradBuffer, prev model.Parameter, carry bool) model.Parameter {
	delta := opt.Delta(grad, prev, carry)
	param.AxpyInPlace(1.0, delta)
	return delta
}

// ApplyL2 subtracts lambda·W from every weight gradient. Biases are never
// regularized.
func ApplyL2(grad *model.GradBuffer, param model.Parameter, lambda float32) {
	for i, w := range param.Weights {
		tensor2d.Axpy(-lambda, w, grad.Weights[i])
	}
}

// Sparsity tracks the exponentially decayed mean activation q of a hidden
// layer and turns it into the penalty Penalty·(q − Target).
type Sparsity struct {
	Penalty float32
	Target  float32
	Decay   float32
	q       blas32.Vector
}

func NewSparsity(n int, penalty, target, decay float32) *Sparsity {
	return &Sparsity{
		Penalty: penalty,
		Target:  target,
		Decay:   decay,
		q:       vector.NewZeros(n),
	}
}

// Q returns a copy of the running mean.
func (s *Sparsity) Q() blas32.Vector {
	return vector.Clone(s.q)
}

func (s *Sparsity) Reset() {
	s.q = vector.NewZerosLike(s.q)
}

// Term updates q ← Decay·q + (1−Decay)·h and returns the penalty of the new q.
func (s *Sparsity) Term(h blas32.Vector) blas32.Vector {
	for i, e := range h.Data[:h.N] {
		s.q.Data[i] = s.Decay*s.q.Data[i] + (1.0-s.Decay)*e
	}
	return s.BatchTerm(s.q)
}

// BatchTerm returns the penalty of a batch mean activation; q is untouched.
func (s *Sparsity) BatchTerm(mean blas32.Vector) blas32.Vector {
	return vector.Map(mean, func(e float32) float32 {
		return s.Penalty * (e - s.Target)
	})
}
