package cd

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/blas/blas32"
)

// CdkTrainer runs CD-k starting every negative chain at the data.
type CdkTrainer struct {
	engine
}

func NewCdkTrainer(m Model, cfg Config) (*CdkTrainer, error) {
	e, err := newEngine(m, cfg)
	if err != nil {
		return nil, err
	}
	return &CdkTrainer{engine: e}, nil
}

// Learn applies one update for x. Recursive models advance their context
// afterwards.
func (t *CdkTrainer) Learn(m Model, x blas32.Vector, opts Options, rng *rand.Rand) error {
	return t.learn(m, []blas32.Vector{x}, opts, rng)
}

// LearnLayers applies one update for a configuration given layer by layer,
// excluding the context of recursive models.
func (t *CdkTrainer) LearnLayers(m Model, data []blas32.Vector, opts Options, rng *rand.Rand) error {
	return t.learn(m, data, opts, rng)
}

// BatchLearn applies the mean update of X. For recursive models X is a
// sequence and the context advances after every element.
func (t *CdkTrainer) BatchLearn(m Model, X []blas32.Vector, opts Options, rng *rand.Rand) error {
	return t.batchLearn(m, singles(X), opts, rng)
}
