// Package cd trains energy models by contrastive divergence. One engine
// serves the plain, persistent and discriminative trainers, for flat and
// recursive models alike.
package cd

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"github.com/sw965/ebm/blas32/tensor/2d"
	"github.com/sw965/ebm/blas32/vector"
	"github.com/sw965/ebm/model"
	"github.com/sw965/ebm/optimizer"
	"gonum.org/v1/gonum/blas/blas32"
)

// Model is a layered energy model. *model.Machine and every type embedding
// it satisfy Model.
type Model interface {
	Forward(xs []blas32.Vector, rng *rand.Rand) (blas32.Vector, error)
	Backward(h blas32.Vector, rng *rand.Rand) ([]blas32.Vector, error)
	HiddenInput(xs []blas32.Vector) (blas32.Vector, error)
	SampleHidden(h blas32.Vector, rng *rand.Rand) blas32.Vector
	SampleLayers(xs []blas32.Vector, latentOnly bool, rng *rand.Rand) []blas32.Vector
	CheckLayers(xs []blas32.Vector) error
	Layers() []model.Layer
	NumHidden() int
	HiddenBias() int
	Parameter() model.Parameter
	Delta() model.Parameter
	Update(param, delta model.Parameter) error
}

// Recurrent models append their context to the data layers of every
// positive configuration.
type Recurrent interface {
	Model
	Context() blas32.Vector
	SetContext(h blas32.Vector) error
	Push(x blas32.Vector, rng *rand.Rand) error
	Reset()
}

type engine struct {
	cfg      Config
	opt      optimizer.Momentum
	sparsity *optimizer.Sparsity
}

func newEngine(m Model, cfg Config) (engine, error) {
	if err := cfg.Validate(); err != nil {
		return engine{}, err
	}
	return engine{
		cfg: cfg,
		opt: optimizer.Momentum{LearningRate: cfg.LearningRate, MomentumRate: cfg.Momentum},
		sparsity: optimizer.NewSparsity(
			m.NumHidden(), cfg.SparsityPenalty, cfg.SparsityTarget, cfg.SparsityDecay,
		),
	}, nil
}

func (e *engine) Config() Config {
	return e.cfg
}

// Q returns the decayed mean hidden activation of the single example path.
func (e *engine) Q() blas32.Vector {
	return e.sparsity.Q()
}

func (e *engine) positive(m Model, data []blas32.Vector) ([]blas32.Vector, error) {
	pos := data
	if r, ok := m.(Recurrent); ok {
		pos = append(append([]blas32.Vector(nil), data...), r.Context())
	}
	if err := m.CheckLayers(pos); err != nil {
		return nil, err
	}
	return pos, nil
}

// advance moves the context of a recursive model past data.
func (e *engine) advance(m Model, data []blas32.Vector, ph blas32.Vector, rng *rand.Rand) error {
	r, ok := m.(Recurrent)
	if !ok {
		return nil
	}
	if e.cfg.ContextUpdate == ContextPositive {
		return r.SetContext(ph)
	}
	return r.Push(data[0], rng)
}

func (e *engine) forward(m Model, xs []blas32.Vector, latentOnly bool, rng *rand.Rand) (blas32.Vector, error) {
	if e.cfg.Sampling == Stochastic {
		xs = m.SampleLayers(xs, latentOnly, rng)
	}
	return m.Forward(xs, rng)
}

func (e *engine) backward(m Model, h blas32.Vector, rng *rand.Rand) ([]blas32.Vector, error) {
	if e.cfg.Sampling == Stochastic {
		h = m.SampleHidden(h, rng)
	}
	return m.Backward(h, rng)
}

// gibbs runs the positive phase and k alternating steps. The returned
// statistics are the unsampled activations.
func (e *engine) gibbs(m Model, pos []blas32.Vector, rng *rand.Rand) (ph blas32.Vector, nvs []blas32.Vector, nh blas32.Vector, err error) {
	ph, err = e.forward(m, pos, true, rng)
	if err != nil {
		return
	}
	nh = ph
	for i := 0; i < e.cfg.K; i++ {
		nvs, err = e.backward(m, nh, rng)
		if err != nil {
			return
		}
		nh, err = e.forward(m, nvs, false, rng)
		if err != nil {
			return
		}
	}
	return
}

// accumulate adds alpha times the statistics of one configuration:
// h ⊗ x_i to every weight, x_i to every layer bias and h to the hidden bias.
func accumulate(grad *model.GradBuffer, hb int, h blas32.Vector, xs []blas32.Vector, alpha float32) {
	for i, x := range xs {
		grad.AddOuter(i, alpha, h, x)
		grad.AddBias(i, alpha, x)
	}
	grad.AddBias(hb, alpha, h)
}

func (e *engine) sparsify(grad *model.GradBuffer, hb int, term blas32.Vector) {
	for _, w := range grad.Weights {
		tensor2d.SubRows(w, term)
	}
	sign := float32(-1.0)
	if e.cfg.SparsitySign == SparsityAscend {
		sign = 1.0
	}
	blas32.Axpy(sign, term, grad.Biases[hb])
}

// apply turns the summed gradient of n examples into an update: divide by
// n, then L2, sparsity, learning rate and momentum, in that order.
func (e *engine) apply(m Model, grad model.GradBuffer, n int, term blas32.Vector, opts Options) error {
	param := m.Parameter()
	if n > 1 {
		grad.ScalInPlace(1.0 / float32(n))
	}
	if opts.L2 {
		optimizer.ApplyL2(&grad, param, e.cfg.L2)
	}
	if opts.Sparsity {
		e.sparsify(&grad, m.HiddenBias(), term)
	}
	delta := e.opt.Step(&param, grad, m.Delta(), opts.Momentum)
	return m.Update(param, delta)
}

func (e *engine) learn(m Model, data []blas32.Vector, opts Options, rng *rand.Rand) error {
	pos, err := e.positive(m, data)
	if err != nil {
		return err
	}
	ph, nvs, nh, err := e.gibbs(m, pos, rng)
	if err != nil {
		return err
	}
	hb := m.HiddenBias()
	grad := m.Parameter().NewGradZerosLike()
	accumulate(&grad, hb, ph, pos, 1.0)
	accumulate(&grad, hb, nh, nvs, -1.0)

	var term blas32.Vector
	if opts.Sparsity {
		term = e.sparsity.Term(ph)
	}
	if err := e.apply(m, grad, 1, term, opts); err != nil {
		return err
	}
	return e.advance(m, data, ph, rng)
}

var errEmptyBatch = errors.Wrap(model.ErrDimension, "empty batch")

// checkBatch validates every example before a batch touches the context or
// the chains.
func (e *engine) checkBatch(m Model, batch [][]blas32.Vector) error {
	if len(batch) == 0 {
		return errEmptyBatch
	}
	for i, data := range batch {
		if _, err := e.positive(m, data); err != nil {
			return errors.Wrapf(err, "example %d", i)
		}
	}
	return nil
}

func (e *engine) batchLearn(m Model, batch [][]blas32.Vector, opts Options, rng *rand.Rand) error {
	if err := e.checkBatch(m, batch); err != nil {
		return err
	}
	if r, ok := m.(Recurrent); ok && e.cfg.ResetBatch {
		r.Reset()
	}
	hb := m.HiddenBias()
	grad := m.Parameter().NewGradZerosLike()
	sum := vector.NewZeros(m.NumHidden())
	for _, data := range batch {
		pos, err := e.positive(m, data)
		if err != nil {
			return err
		}
		ph, nvs, nh, err := e.gibbs(m, pos, rng)
		if err != nil {
			return err
		}
		accumulate(&grad, hb, ph, pos, 1.0)
		accumulate(&grad, hb, nh, nvs, -1.0)
		blas32.Axpy(1.0, ph, sum)
		if err := e.advance(m, data, ph, rng); err != nil {
			return err
		}
	}

	var term blas32.Vector
	if opts.Sparsity {
		term = e.sparsity.BatchTerm(vector.Scaled(1.0/float32(len(batch)), sum))
	}
	return e.apply(m, grad, len(batch), term, opts)
}

func singles(X []blas32.Vector) [][]blas32.Vector {
	batch := make([][]blas32.Vector, len(X))
	for i, x := range X {
		batch[i] = []blas32.Vector{x}
	}
	return batch
}

func pairs(X, Y []blas32.Vector) ([][]blas32.Vector, error) {
	if len(X) != len(Y) {
		return nil, errors.Wrapf(model.ErrDimension, "%d inputs, %d labels", len(X), len(Y))
	}
	batch := make([][]blas32.Vector, len(X))
	for i := range X {
		batch[i] = []blas32.Vector{X[i], Y[i]}
	}
	return batch, nil
}
