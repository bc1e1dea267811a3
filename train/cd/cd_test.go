package cd_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw965/ebm/blas32/tensor/2d"
	"github.com/sw965/ebm/blas32/vector"
	"github.com/sw965/ebm/mathx/randx"
	"github.com/sw965/ebm/model"
	"github.com/sw965/ebm/model/rbm"
	"github.com/sw965/ebm/model/srrbm"
	"github.com/sw965/ebm/train/cd"
	"github.com/sw965/ebm/unit"
	"gonum.org/v1/gonum/blas/blas32"
)

// halfSource makes every Float32 draw return exactly 0.5.
type halfSource struct{}

func (halfSource) Uint64() uint64 { return 1 << 55 }

func newHalfRand() *rand.Rand {
	return rand.New(halfSource{})
}

var fixedW = []float32{
	0.1, -0.2, 0.3, 0.05,
	-0.1, 0.4, -0.3, 0.2,
	0.25, 0.1, -0.15, -0.05,
}

func newFixedRbm(t *testing.T) *rbm.Rbm {
	t.Helper()
	r, err := rbm.NewDefault(4, 3, randx.NewPCG(1))
	require.NoError(t, err)
	param := r.Parameter()
	copy(param.Weights[0].Data, fixedW)
	require.NoError(t, r.Update(param, r.Delta()))
	return r
}

func cloneRbm(t *testing.T, r *rbm.Rbm) *rbm.Rbm {
	t.Helper()
	c, err := rbm.Restore(r.State())
	require.NoError(t, err)
	return c
}

func sigmoid64(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func TestLearnHandComputed(t *testing.T) {
	r := newFixedRbm(t)
	cfg := cd.DefaultConfig()
	cfg.LearningRate = 0.1
	trainer, err := cd.NewCdkTrainer(r, cfg)
	require.NoError(t, err)

	x := []float64{1, 0, 1, 0}
	w := func(i, j int) float64 { return float64(fixedW[i*4+j]) }

	ph := make([]float64, 3)
	for i := range ph {
		var s float64
		for j := range x {
			s += w(i, j) * x[j]
		}
		ph[i] = sigmoid64(s)
	}
	// pthresh against a uniform draw of 0.5 fires when the input is >= 0
	nv := make([]float64, 4)
	for j := range nv {
		var s float64
		for i := range ph {
			s += w(i, j) * ph[i]
		}
		if sigmoid64(s) >= 0.5 {
			nv[j] = 1
		}
	}
	nh := make([]float64, 3)
	for i := range nh {
		var s float64
		for j := range nv {
			s += w(i, j) * nv[j]
		}
		nh[i] = sigmoid64(s)
	}

	err = trainer.Learn(r, vector.New([]float32{1, 0, 1, 0}), cd.Options{}, newHalfRand())
	require.NoError(t, err)

	param := r.Parameter()
	delta := r.Delta()
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			d := 0.1 * (ph[i]*x[j] - nh[i]*nv[j])
			at := tensor2d.At(param.Weights[0], i, j)
			assert.InDelta(t, w(i, j)+d, param.Weights[0].Data[at], 1e-6)
			assert.InDelta(t, d, delta.Weights[0].Data[at], 1e-6)
		}
	}
	for j := 0; j < 4; j++ {
		assert.InDelta(t, 0.1*(x[j]-nv[j]), param.Biases[0].Data[j], 1e-6)
	}
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 0.1*(ph[i]-nh[i]), param.Biases[1].Data[i], 1e-6)
	}
}

func TestMomentumCarry(t *testing.T) {
	r := newFixedRbm(t)
	cfg := cd.DefaultConfig()
	warm, err := cd.NewCdkTrainer(r, cfg)
	require.NoError(t, err)
	x := vector.New([]float32{1, 1, 0, 1})
	require.NoError(t, warm.Learn(r, x, cd.Options{}, randx.NewPCG(7)))
	prev := r.Delta()

	a, b := cloneRbm(t, r), cloneRbm(t, r)
	ta, err := cd.NewCdkTrainer(a, cfg)
	require.NoError(t, err)
	tb, err := cd.NewCdkTrainer(b, cfg)
	require.NoError(t, err)
	require.NoError(t, ta.Learn(a, x, cd.Options{Momentum: true, L2: true}, randx.NewPCG(8)))
	require.NoError(t, tb.Learn(b, x, cd.Options{L2: true}, randx.NewPCG(8)))

	da, db := a.Delta(), b.Delta()
	for i := range da.Weights {
		for j, e := range da.Weights[i].Data {
			carry := float32(cfg.Momentum * prev.Weights[i].Data[j])
			assert.Equal(t, db.Weights[i].Data[j]+carry, e)
		}
	}
	for i := range da.Biases {
		for j, e := range da.Biases[i].Data {
			carry := float32(cfg.Momentum * prev.Biases[i].Data[j])
			assert.Equal(t, db.Biases[i].Data[j]+carry, e)
		}
	}
}

func TestBatchOfOneMatchesLearn(t *testing.T) {
	r := newFixedRbm(t)
	cfg := cd.DefaultConfig()
	cfg.K = 3
	warm, err := cd.NewCdkTrainer(r, cfg)
	require.NoError(t, err)
	require.NoError(t, warm.Learn(r, vector.New([]float32{0, 1, 1, 0}), cd.AllOptions(), randx.NewPCG(3)))

	a, b := cloneRbm(t, r), cloneRbm(t, r)
	ta, err := cd.NewCdkTrainer(a, cfg)
	require.NoError(t, err)
	tb, err := cd.NewCdkTrainer(b, cfg)
	require.NoError(t, err)

	opts := cd.Options{Momentum: true, L2: true}
	x := vector.New([]float32{1, 0, 1, 1})
	require.NoError(t, ta.Learn(a, x, opts, randx.NewPCG(4)))
	require.NoError(t, tb.BatchLearn(b, []blas32.Vector{x}, opts, randx.NewPCG(4)))
	assert.Equal(t, a.Parameter(), b.Parameter())
	assert.Equal(t, a.Delta(), b.Delta())
}

func assertSameShape(t *testing.T, want, got model.Parameter) {
	t.Helper()
	assert.True(t, want.SameShape(got))
}

func TestShapesInvariantRecursive(t *testing.T) {
	rng := randx.NewPCG(11)
	s, err := srrbm.NewDefault(5, 4, rng)
	require.NoError(t, err)
	shape := s.Parameter()

	for _, cfg := range []cd.Config{cd.RecursiveConfig(), cd.StochasticConfig()} {
		cfg.K = 2
		trainer, err := cd.NewCdkTrainer(s, cfg)
		require.NoError(t, err)
		seq := []blas32.Vector{
			vector.New([]float32{1, 0, 0, 1, 0}),
			vector.New([]float32{0, 1, 0, 0, 1}),
			vector.New([]float32{1, 1, 1, 0, 0}),
		}
		for _, x := range seq {
			require.NoError(t, trainer.Learn(s, x, cd.AllOptions(), rng))
			assertSameShape(t, shape, s.Parameter())
			assertSameShape(t, shape, s.Delta())
			assert.Equal(t, 4, s.Context().N)
		}
		require.NoError(t, trainer.BatchLearn(s, seq, cd.AllOptions(), rng))
		assertSameShape(t, shape, s.Parameter())
		assertSameShape(t, shape, s.Delta())
	}
}

func TestLearnAdvancesContext(t *testing.T) {
	s, err := srrbm.New(3, 2, unit.Sigmoid, unit.Sigmoid, randx.NewPCG(5))
	require.NoError(t, err)
	trainer, err := cd.NewCdkTrainer(s, cd.RecursiveConfig())
	require.NoError(t, err)
	x := vector.New([]float32{1, 0, 1})
	require.NoError(t, trainer.Learn(s, x, cd.AllOptions(), nil))

	// the context is pushed with the updated weights
	want, err := s.FF(x, vector.NewZeros(2), nil)
	require.NoError(t, err)
	assert.Equal(t, want.Data, s.Context().Data)
}

func TestDimensionErrors(t *testing.T) {
	r := newFixedRbm(t)
	trainer, err := cd.NewCdkTrainer(r, cd.DefaultConfig())
	require.NoError(t, err)
	before := r.Parameter()

	err = trainer.Learn(r, vector.NewZeros(5), cd.AllOptions(), randx.NewPCG(1))
	assert.True(t, errors.Is(err, model.ErrDimension))
	err = trainer.BatchLearn(r, nil, cd.AllOptions(), randx.NewPCG(1))
	assert.True(t, errors.Is(err, model.ErrDimension))
	assert.Equal(t, before, r.Parameter())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, cd.DefaultConfig().Validate())
	require.NoError(t, cd.StochasticConfig().Validate())

	bad := []func(*cd.Config){
		func(c *cd.Config) { c.LearningRate = 0 },
		func(c *cd.Config) { c.K = 0 },
		func(c *cd.Config) { c.SparsityDecay = 1 },
		func(c *cd.Config) { c.Sampling = cd.Sampling(5) },
		func(c *cd.Config) { c.SparsitySign = cd.SparsitySign(-1) },
	}
	r := newFixedRbm(t)
	for _, f := range bad {
		cfg := cd.DefaultConfig()
		f(&cfg)
		assert.True(t, errors.Is(cfg.Validate(), model.ErrConfig))
		_, err := cd.NewCdkTrainer(r, cfg)
		assert.Error(t, err)
	}
}

func TestSparsitySign(t *testing.T) {
	r := newFixedRbm(t)
	a, b := cloneRbm(t, r), cloneRbm(t, r)
	cfg := cd.DefaultConfig()
	cfg.SparsityPenalty = 0.5
	ta, err := cd.NewCdkTrainer(a, cfg)
	require.NoError(t, err)
	cfg.SparsitySign = cd.SparsityAscend
	tb, err := cd.NewCdkTrainer(b, cfg)
	require.NoError(t, err)

	x := vector.New([]float32{1, 0, 1, 0})
	opts := cd.Options{Sparsity: true}
	require.NoError(t, ta.Learn(a, x, opts, newHalfRand()))
	require.NoError(t, tb.Learn(b, x, opts, newHalfRand()))

	// weights agree, the hidden bias moves by ±lr·term
	assert.Equal(t, a.Parameter().Weights, b.Parameter().Weights)
	q := ta.Q()
	for i, e := range q.Data {
		term := cfg.SparsityPenalty * (e - cfg.SparsityTarget)
		diff := b.Parameter().Biases[1].Data[i] - a.Parameter().Biases[1].Data[i]
		assert.InDelta(t, 2*cfg.LearningRate*term, diff, 1e-6)
	}
}
