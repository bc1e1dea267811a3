// Package backprop trains autoencoders by error back-propagation with the
// same momentum, L2 and sparsity update as the contrastive divergence
// trainers.
package backprop

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"github.com/sw965/ebm/blas32/vector"
	"github.com/sw965/ebm/model"
	"github.com/sw965/ebm/optimizer"
	"github.com/sw965/ebm/unit"
	"gonum.org/v1/gonum/blas/blas32"
)

type Config struct {
	LearningRate    float32
	Momentum        float32
	L2              float32
	SparsityPenalty float32
	SparsityTarget  float32
	SparsityDecay   float32
	// Sparse subtracts the sparsity term from the back-propagated hidden
	// error.
	Sparse bool
}

func DefaultConfig() Config {
	return Config{
		LearningRate:    0.1,
		Momentum:        0.9,
		L2:              0.0001,
		SparsityPenalty: 0.0001,
		SparsityTarget:  0.1,
		SparsityDecay:   0.9,
	}
}

func SparseConfig() Config {
	c := DefaultConfig()
	c.Sparse = true
	return c
}

func (c Config) Validate() error {
	switch {
	case c.LearningRate <= 0:
		return errors.Wrapf(model.ErrConfig, "learning rate %v", c.LearningRate)
	case c.Momentum < 0:
		return errors.Wrapf(model.ErrConfig, "momentum %v", c.Momentum)
	case c.L2 < 0:
		return errors.Wrapf(model.ErrConfig, "l2 %v", c.L2)
	case c.SparsityPenalty < 0:
		return errors.Wrapf(model.ErrConfig, "sparsity penalty %v", c.SparsityPenalty)
	case c.SparsityTarget < 0 || c.SparsityTarget > 1:
		return errors.Wrapf(model.ErrConfig, "sparsity target %v", c.SparsityTarget)
	case c.SparsityDecay < 0 || c.SparsityDecay >= 1:
		return errors.Wrapf(model.ErrConfig, "sparsity decay %v", c.SparsityDecay)
	}
	return nil
}

type Options struct {
	Momentum bool
	L2       bool
}

func AllOptions() Options {
	return Options{Momentum: true, L2: true}
}

// Model is an autoencoder whose every input port is also a reconstruction
// target. Forward draws from rng only for stochastic units.
type Model interface {
	Forward(xs []blas32.Vector, rng *rand.Rand) (blas32.Vector, []blas32.Vector, error)
	Derivatives() (unit.Derivative, []unit.Derivative)
	NumHidden() int
	NumPorts() int
	EncoderIndex(i int) int
	DecoderIndex(i int) int
	OutputBias(i int) int
	HiddenBias() int
	Parameter() model.Parameter
	Delta() model.Parameter
	Update(param, delta model.Parameter) error
}

// Recurrent models feed their context as the last input port and take the
// new hidden state as the context after every example.
type Recurrent interface {
	Model
	Context() blas32.Vector
	SetContext(h blas32.Vector) error
}

type Trainer struct {
	cfg      Config
	opt      optimizer.Momentum
	sparsity *optimizer.Sparsity
}

func NewTrainer(m Model, cfg Config) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Trainer{
		cfg: cfg,
		opt: optimizer.Momentum{LearningRate: cfg.LearningRate, MomentumRate: cfg.Momentum},
		sparsity: optimizer.NewSparsity(
			m.NumHidden(), cfg.SparsityPenalty, cfg.SparsityTarget, cfg.SparsityDecay,
		),
	}, nil
}

func (t *Trainer) Config() Config {
	return t.cfg
}

func (t *Trainer) Q() blas32.Vector {
	return t.sparsity.Q()
}

type pass struct {
	xs   []blas32.Vector
	h    blas32.Vector
	outs []blas32.Vector
}

func (t *Trainer) forward(m Model, x blas32.Vector, rng *rand.Rand) (pass, error) {
	xs := []blas32.Vector{x}
	r, recurrent := m.(Recurrent)
	if recurrent {
		xs = append(xs, r.Context())
	}
	h, outs, err := m.Forward(xs, rng)
	if err != nil {
		return pass{}, err
	}
	if recurrent {
		if err := r.SetContext(h); err != nil {
			return pass{}, err
		}
	}
	return pass{xs: xs, h: h, outs: outs}, nil
}

// backward accumulates the gradient of one pass:
// eo_i = d_o(o_i)·(x_i − o_i), eh = d_h(h)·(Σ Wo_iᵀ·eo_i − sparse).
func backward(m Model, p pass, param model.Parameter, sparse blas32.Vector, grad *model.GradBuffer) {
	hder, oders := m.Derivatives()
	back := vector.NewZeros(m.NumHidden())
	for i, x := range p.xs {
		eo := vector.Mul(oders[i](p.outs[i]), vector.Sub(x, p.outs[i]))
		dec := m.DecoderIndex(i)
		grad.AddOuter(dec, 1.0, eo, p.h)
		grad.AddBias(m.OutputBias(i), 1.0, eo)
		back = vector.AffineTrans(param.Weights[dec], eo, back)
	}
	if sparse.N > 0 {
		blas32.Axpy(-1.0, sparse, back)
	}
	eh := vector.Mul(hder(p.h), back)
	for i, x := range p.xs {
		grad.AddOuter(m.EncoderIndex(i), 1.0, eh, x)
	}
	grad.AddBias(m.HiddenBias(), 1.0, eh)
}

func (t *Trainer) apply(m Model, param model.Parameter, grad model.GradBuffer, n int, opts Options) error {
	if n > 1 {
		grad.ScalInPlace(1.0 / float32(n))
	}
	if opts.L2 {
		optimizer.ApplyL2(&grad, param, t.cfg.L2)
	}
	delta := t.opt.Step(&param, grad, m.Delta(), opts.Momentum)
	return m.Update(param, delta)
}

func (t *Trainer) Learn(m Model, x blas32.Vector, opts Options, rng *rand.Rand) error {
	p, err := t.forward(m, x, rng)
	if err != nil {
		return err
	}
	var sparse blas32.Vector
	if t.cfg.Sparse {
		sparse = t.sparsity.Term(p.h)
	}
	param := m.Parameter()
	grad := param.NewGradZerosLike()
	backward(m, p, param, sparse, &grad)
	return t.apply(m, param, grad, 1, opts)
}

// BatchLearn applies the mean update of X. The sparsity term comes from the
// mean hidden activation over the whole batch. A failing example leaves the
// context of a Recurrent model where it was before the batch.
func (t *Trainer) BatchLearn(m Model, X []blas32.Vector, opts Options, rng *rand.Rand) error {
	if len(X) == 0 {
		return errors.Wrap(model.ErrDimension, "empty batch")
	}
	r, recurrent := m.(Recurrent)
	var c0 blas32.Vector
	if recurrent {
		c0 = r.Context()
	}
	passes := make([]pass, len(X))
	sum := vector.NewZeros(m.NumHidden())
	for i, x := range X {
		p, err := t.forward(m, x, rng)
		if err != nil {
			if recurrent {
				if rerr := r.SetContext(c0); rerr != nil {
					return rerr
				}
			}
			return err
		}
		passes[i] = p
		blas32.Axpy(1.0, p.h, sum)
	}
	var sparse blas32.Vector
	if t.cfg.Sparse {
		sparse = t.sparsity.BatchTerm(vector.Scaled(1.0/float32(len(X)), sum))
	}
	param := m.Parameter()
	grad := param.NewGradZerosLike()
	for _, p := range passes {
		backward(m, p, param, sparse, &grad)
	}
	return t.apply(m, param, grad, len(X), opts)
}
