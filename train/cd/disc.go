package cd

import (
	"math/rand/v2"

	"github.com/sw965/ebm/blas32/vector"
	"github.com/sw965/ebm/model"
	"github.com/sw965/ebm/unit"
	"gonum.org/v1/gonum/blas/blas32"
)

// Discriminative is a joint model over a visible layer (0) and a label
// layer (1) that can evaluate p(y|v).
type Discriminative interface {
	Model
	PClass(v blas32.Vector) (blas32.Vector, error)
}

// DiscCdkTrainer trains a label model either discriminatively, following
// the exact gradient of log p(y|x), or generatively by CD-k on [x, y].
type DiscCdkTrainer struct {
	engine
}

func NewDiscCdkTrainer(m Discriminative, cfg Config) (*DiscCdkTrainer, error) {
	e, err := newEngine(m, cfg)
	if err != nil {
		return nil, err
	}
	return &DiscCdkTrainer{engine: e}, nil
}

// discGrad adds the gradient of log p(y|x). The negative phase is the
// expectation over every class c of p(c|x)·sigmoid(Whv·x + Who·e_c + hb).
func discGrad(m Discriminative, x, y blas32.Vector, grad *model.GradBuffer) error {
	hb := m.HiddenBias()
	pre, err := m.HiddenInput([]blas32.Vector{x, y})
	if err != nil {
		return err
	}
	pos := unit.SigmoidFunc(pre, nil)
	pclass, err := m.PClass(x)
	if err != nil {
		return err
	}
	grad.AddOuter(0, 1.0, pos, x)
	grad.AddOuter(1, 1.0, pos, y)
	grad.AddBias(hb, 1.0, pos)
	grad.AddBias(1, 1.0, y)

	nout := y.N
	for c := 0; c < nout; c++ {
		ec := vector.NewOneHot(nout, c)
		pre, err := m.HiddenInput([]blas32.Vector{x, ec})
		if err != nil {
			return err
		}
		neg := vector.Scaled(pclass.Data[c], unit.SigmoidFunc(pre, nil))
		grad.AddOuter(0, -1.0, neg, x)
		grad.AddOuter(1, -1.0, neg, ec)
		grad.AddBias(hb, -1.0, neg)
	}
	grad.AddBias(1, -1.0, pclass)
	return nil
}

// DiscLearn applies one discriminative update. The visible bias does not
// enter p(y|x) and is left unchanged apart from momentum; sparsity is not
// used.
func (t *DiscCdkTrainer) DiscLearn(m Discriminative, x, y blas32.Vector, opts Options) error {
	grad := m.Parameter().NewGradZerosLike()
	if err := discGrad(m, x, y, &grad); err != nil {
		return err
	}
	opts.Sparsity = false
	return t.apply(m, grad, 1, blas32.Vector{}, opts)
}

func (t *DiscCdkTrainer) BatchDiscLearn(m Discriminative, X, Y []blas32.Vector, opts Options) error {
	if _, err := pairs(X, Y); err != nil {
		return err
	}
	if len(X) == 0 {
		return errEmptyBatch
	}
	grad := m.Parameter().NewGradZerosLike()
	for i := range X {
		if err := discGrad(m, X[i], Y[i], &grad); err != nil {
			return err
		}
	}
	opts.Sparsity = false
	return t.apply(m, grad, len(X), blas32.Vector{}, opts)
}

// IterDiscLearn applies the mean-field update that replaces the class
// expectation of DiscLearn by a single hidden activation driven by p(y|x):
// neg = sigmoid(Whv·x + Who·p(y|x) + hb). Only Whv and Who change.
func (t *DiscCdkTrainer) IterDiscLearn(m Discriminative, x, y blas32.Vector, opts Options) error {
	pre, err := m.HiddenInput([]blas32.Vector{x, y})
	if err != nil {
		return err
	}
	pclass, err := m.PClass(x)
	if err != nil {
		return err
	}
	negPre, err := m.HiddenInput([]blas32.Vector{x, pclass})
	if err != nil {
		return err
	}
	pos := unit.SigmoidFunc(pre, nil)
	neg := unit.SigmoidFunc(negPre, nil)

	grad := m.Parameter().NewGradZerosLike()
	grad.AddOuter(0, 1.0, pos, x)
	grad.AddOuter(0, -1.0, neg, x)
	grad.AddOuter(1, 1.0, pos, y)
	grad.AddOuter(1, -1.0, neg, pclass)
	opts.Sparsity = false
	return t.apply(m, grad, 1, blas32.Vector{}, opts)
}

// GenLearn applies CD-k to the joint configuration [x, y].
func (t *DiscCdkTrainer) GenLearn(m Discriminative, x, y blas32.Vector, opts Options, rng *rand.Rand) error {
	return t.learn(m, []blas32.Vector{x, y}, opts, rng)
}

func (t *DiscCdkTrainer) BatchLearn(m Discriminative, X, Y []blas32.Vector, opts Options, rng *rand.Rand) error {
	batch, err := pairs(X, Y)
	if err != nil {
		return err
	}
	return t.batchLearn(m, batch, opts, rng)
}
