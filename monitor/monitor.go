// Package monitor computes training diagnostics and logs them. Nothing in
// the trainers depends on it.
package monitor

import (
	"log"
	"math/rand/v2"

	"github.com/pkg/errors"
	"github.com/sw965/ebm/mathx"
	"github.com/sw965/ebm/model"
	"github.com/sw965/ebm/model/autoencoder"
	"gonum.org/v1/gonum/blas/blas32"
)

// CrossEntropy is −Σ x·log v + (1−x)·log(1−v), with v clamped to [0, 1] and
// every log floored at mathx.LogFloor.
func CrossEntropy(x, v blas32.Vector) float32 {
	var sum float32
	for i, e := range x.Data[:x.N] {
		p := mathx.Clamp(v.Data[i], 0, 1)
		sum -= e*mathx.SafeLog(p) + (1.0-e)*mathx.SafeLog(1.0-p)
	}
	return sum
}

func SquaredError(x, v blas32.Vector) float32 {
	var sum float32
	for i, e := range x.Data[:x.N] {
		d := e - v.Data[i]
		sum += d * d
	}
	return sum
}

type Reconstructor interface {
	Reconstruct(v blas32.Vector, rng *rand.Rand) (blas32.Vector, error)
}

type FreeEnergyModel interface {
	FreeEnergy(v blas32.Vector) (float32, error)
}

// Stack is a recursive model that encodes a sequence into its context and
// decodes it back in reverse.
type Stack interface {
	Push(x blas32.Vector, rng *rand.Rand) error
	Pop(rng *rand.Rand) (blas32.Vector, error)
	Reset()
}

type AutoEncoder struct {
	*autoencoder.AutoEncoder
}

func (a AutoEncoder) Reconstruct(v blas32.Vector, rng *rand.Rand) (blas32.Vector, error) {
	return a.FF(v, rng)
}

// RecursiveStack exposes a recursive autoencoder as a Stack.
type RecursiveStack struct {
	*autoencoder.Recursive
}

func (s RecursiveStack) Push(x blas32.Vector, rng *rand.Rand) error {
	_, err := s.Recursive.Push(x, rng)
	return err
}

func (s RecursiveStack) Pop(rng *rand.Rand) (blas32.Vector, error) {
	return s.Recursive.Pop(rng)
}

type Monitor struct {
	logger *log.Logger
}

// New returns a Monitor writing to logger, or to log.Default() when logger
// is nil.
func New(logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.Default()
	}
	return &Monitor{logger: logger}
}

func emptyErr(what string) error {
	return errors.Wrapf(model.ErrDimension, "monitor: empty %s", what)
}

// Reconstruction logs and returns the mean cross entropy between every
// sample of X and its reconstruction.
func (m *Monitor) Reconstruction(epoch int, r Reconstructor, X []blas32.Vector, rng *rand.Rand) (float32, error) {
	if len(X) == 0 {
		return 0, emptyErr("dataset")
	}
	var sum float32
	for _, x := range X {
		v, err := r.Reconstruct(x, rng)
		if err != nil {
			return 0, err
		}
		sum += CrossEntropy(x, v)
	}
	mean := sum / float32(len(X))
	m.logger.Printf("epoch %d: reconstruction cross entropy %.6f", epoch, mean)
	return mean, nil
}

func (m *Monitor) FreeEnergy(epoch int, f FreeEnergyModel, X []blas32.Vector) (float32, error) {
	if len(X) == 0 {
		return 0, emptyErr("dataset")
	}
	var sum float32
	for _, x := range X {
		e, err := f.FreeEnergy(x)
		if err != nil {
			return 0, err
		}
		sum += e
	}
	mean := sum / float32(len(X))
	m.logger.Printf("epoch %d: free energy %.6f", epoch, mean)
	return mean, nil
}

// Sequence resets s, pushes seq, pops it back and returns the mean squared
// error per element. s is reset again before returning.
func (m *Monitor) Sequence(epoch int, s Stack, seq []blas32.Vector, rng *rand.Rand) (float32, error) {
	if len(seq) == 0 {
		return 0, emptyErr("sequence")
	}
	s.Reset()
	defer s.Reset()
	for _, x := range seq {
		if err := s.Push(x, rng); err != nil {
			return 0, err
		}
	}
	var sum float32
	for i := len(seq) - 1; i >= 0; i-- {
		v, err := s.Pop(rng)
		if err != nil {
			return 0, err
		}
		sum += SquaredError(seq[i], v)
	}
	mean := sum / float32(len(seq))
	m.logger.Printf("epoch %d: sequence error %.6f", epoch, mean)
	return mean, nil
}
