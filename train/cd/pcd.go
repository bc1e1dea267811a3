package cd

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"github.com/sw965/ebm/blas32/vector"
	"github.com/sw965/ebm/model"
	"gonum.org/v1/gonum/blas/blas32"
)

// PcdTrainer keeps a pool of persistent Markov chains. Every update draws
// K chains with replacement, advances each by one Gibbs step and uses the
// mean of their statistics as the negative phase.
type PcdTrainer struct {
	engine
	chains [][]blas32.Vector
}

func NewPcdTrainer(m Model, nchains int, cfg Config) (*PcdTrainer, error) {
	if nchains < 1 {
		return nil, errors.Wrapf(model.ErrConfig, "nchains = %d", nchains)
	}
	e, err := newEngine(m, cfg)
	if err != nil {
		return nil, err
	}
	layers := m.Layers()
	chains := make([][]blas32.Vector, nchains)
	for i := range chains {
		chain := make([]blas32.Vector, len(layers))
		for j, l := range layers {
			chain[j] = vector.NewZeros(l.Size)
		}
		chains[i] = chain
	}
	return &PcdTrainer{engine: e, chains: chains}, nil
}

func (t *PcdTrainer) NumChains() int {
	return len(t.chains)
}

// Chains returns a copy of every chain state.
func (t *PcdTrainer) Chains() [][]blas32.Vector {
	c := make([][]blas32.Vector, len(t.chains))
	for i, chain := range t.chains {
		c[i] = vector.Clones(chain)
	}
	return c
}

// ResetChains zeroes each chain with probability p.
func (t *PcdTrainer) ResetChains(p float32, rng *rand.Rand) {
	for _, chain := range t.chains {
		if rng.Float32() < p {
			for j, x := range chain {
				chain[j] = vector.NewZerosLike(x)
			}
		}
	}
}

// step advances K drawn chains and accumulates their mean statistics
// into grad with a negative sign.
func (t *PcdTrainer) step(m Model, grad *model.GradBuffer, rng *rand.Rand) error {
	hb := m.HiddenBias()
	neg := grad.NewZerosLike()
	for i := 0; i < t.cfg.K; i++ {
		idx := rng.IntN(len(t.chains))
		nvs := t.chains[idx]
		nh, err := m.Forward(m.SampleLayers(nvs, false, rng), rng)
		if err != nil {
			return err
		}
		next, err := m.Backward(m.SampleHidden(nh, rng), rng)
		if err != nil {
			return err
		}
		t.chains[idx] = next
		accumulate(&neg, hb, nh, nvs, 1.0)
	}
	grad.AxpyInPlace(-1.0/float32(t.cfg.K), neg)
	return nil
}

func (t *PcdTrainer) positivePhase(m Model, data []blas32.Vector, grad *model.GradBuffer, rng *rand.Rand) (blas32.Vector, error) {
	pos, err := t.positive(m, data)
	if err != nil {
		return blas32.Vector{}, err
	}
	ph, err := t.forward(m, pos, true, rng)
	if err != nil {
		return blas32.Vector{}, err
	}
	accumulate(grad, m.HiddenBias(), ph, pos, 1.0)
	return ph, nil
}

func (t *PcdTrainer) Learn(m Model, x blas32.Vector, opts Options, rng *rand.Rand) error {
	return t.LearnLayers(m, []blas32.Vector{x}, opts, rng)
}

func (t *PcdTrainer) LearnLayers(m Model, data []blas32.Vector, opts Options, rng *rand.Rand) error {
	grad := m.Parameter().NewGradZerosLike()
	ph, err := t.positivePhase(m, data, &grad, rng)
	if err != nil {
		return err
	}
	if err := t.step(m, &grad, rng); err != nil {
		return err
	}
	var term blas32.Vector
	if opts.Sparsity {
		term = t.sparsity.Term(ph)
	}
	if err := t.apply(m, grad, 1, term, opts); err != nil {
		return err
	}
	return t.advance(m, data, ph, rng)
}

// BatchLearn advances K chains per example and applies the mean update.
func (t *PcdTrainer) BatchLearn(m Model, X []blas32.Vector, opts Options, rng *rand.Rand) error {
	batch := singles(X)
	if err := t.checkBatch(m, batch); err != nil {
		return err
	}
	if r, ok := m.(Recurrent); ok && t.cfg.ResetBatch {
		r.Reset()
	}
	grad := m.Parameter().NewGradZerosLike()
	sum := vector.NewZeros(m.NumHidden())
	for _, data := range batch {
		ph, err := t.positivePhase(m, data, &grad, rng)
		if err != nil {
			return err
		}
		if err := t.step(m, &grad, rng); err != nil {
			return err
		}
		blas32.Axpy(1.0, ph, sum)
		if err := t.advance(m, data, ph, rng); err != nil {
			return err
		}
	}
	var term blas32.Vector
	if opts.Sparsity {
		term = t.sparsity.BatchTerm(vector.Scaled(1.0/float32(len(X)), sum))
	}
	return t.apply(m, grad, len(X), term, opts)
}
