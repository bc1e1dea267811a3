package backprop_test

import (
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw965/ebm/blas32/vector"
	"github.com/sw965/ebm/mathx/randx"
	"github.com/sw965/ebm/model"
	"github.com/sw965/ebm/model/autoencoder"
	"github.com/sw965/ebm/train/backprop"
	"github.com/sw965/ebm/unit"
	"gonum.org/v1/gonum/blas/blas32"
)

const lr = 0.1

func plainConfig() backprop.Config {
	cfg := backprop.DefaultConfig()
	cfg.LearningRate = lr
	return cfg
}

// zeroNoiseSource makes NormFloat64 return exactly 0, so rectlinear units
// reduce to max(0, x).
type zeroNoiseSource struct{}

func (zeroNoiseSource) Uint64() uint64 { return 1 << 55 }

func zeroNoise() *rand.Rand {
	return rand.New(zeroNoiseSource{})
}

// squaredError is ½Σ‖x_i − o_i‖², whose negative gradient the trainer follows.
func squaredError(t *testing.T, m backprop.Model, xs []blas32.Vector) float64 {
	t.Helper()
	_, outs, err := m.Forward(xs, zeroNoise())
	require.NoError(t, err)
	var sum float64
	for i, x := range xs {
		for j, e := range x.Data {
			d := float64(e - outs[i].Data[j])
			sum += 0.5 * d * d
		}
	}
	return sum
}

// checkGradient compares the delta applied by one plain step with the
// central difference of squaredError taken on the untouched model before.
func checkGradient(t *testing.T, before, after backprop.Model, xs []blas32.Vector) {
	t.Helper()
	const eps = 1e-2
	param := before.Parameter()
	delta := after.Delta()
	compare := func(data []float32, i int, got float32) {
		orig := data[i]
		data[i] = orig + eps
		require.NoError(t, before.Update(param, before.Delta()))
		up := squaredError(t, before, xs)
		data[i] = orig - eps
		require.NoError(t, before.Update(param, before.Delta()))
		down := squaredError(t, before, xs)
		data[i] = orig
		want := -(up - down) / (2 * eps)
		assert.InDelta(t, want, float64(got)/lr, 2e-3)
	}
	for k, w := range param.Weights {
		for i := range w.Data {
			compare(w.Data, i, delta.Weights[k].Data[i])
		}
	}
	for k, b := range param.Biases {
		for i := range b.Data {
			compare(b.Data, i, delta.Biases[k].Data[i])
		}
	}
}

func cloneAE(t *testing.T, a *autoencoder.AutoEncoder) *autoencoder.AutoEncoder {
	t.Helper()
	c, err := autoencoder.Restore(a.State())
	require.NoError(t, err)
	return c
}

func cloneRecursive(t *testing.T, r *autoencoder.Recursive) *autoencoder.Recursive {
	t.Helper()
	c, err := autoencoder.RestoreRecursive(r.State())
	require.NoError(t, err)
	return c
}

func TestLearnFollowsGradient(t *testing.T) {
	a, err := autoencoder.NewDefault(4, 3, randx.NewPCG(1))
	require.NoError(t, err)
	before := cloneAE(t, a)
	tr, err := backprop.NewTrainer(a, plainConfig())
	require.NoError(t, err)

	x := vector.New([]float32{1, 0, 1, 0.5})
	require.NoError(t, tr.Learn(a, x, backprop.Options{}, nil))
	checkGradient(t, before, a, []blas32.Vector{x})
}

func TestRectLinearLearnFollowsGradient(t *testing.T) {
	a, err := autoencoder.New(3, 3, unit.RectLinear, unit.Sigmoid, randx.NewPCG(11))
	require.NoError(t, err)
	param := a.Parameter()
	// Pre-activations 0.725, -1.075 and 0.5 stay clear of the kink at 0.
	copy(param.Weights[a.EncoderIndex(0)].Data, []float32{
		0.5, -0.25, 1,
		-1, 0.5, -0.5,
		0.3, 0.4, -0.2,
	})
	copy(param.Biases[a.HiddenBias()].Data, []float32{0.1, -0.2, 0.05})
	require.NoError(t, a.Update(param, a.Delta()))
	before := cloneAE(t, a)
	tr, err := backprop.NewTrainer(a, plainConfig())
	require.NoError(t, err)

	x := vector.New([]float32{1, 0.5, 0.25})
	h, err := before.Encode(x, zeroNoise())
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.725, 0, 0.5}, h.Data, 1e-6)

	require.NoError(t, tr.Learn(a, x, backprop.Options{}, zeroNoise()))
	checkGradient(t, before, a, []blas32.Vector{x})
	// The dead unit passes no error back to its encoder row.
	dw := a.Delta().Weights[a.EncoderIndex(0)]
	assert.Equal(t, []float32{0, 0, 0}, dw.Data[3:6])
	assert.Equal(t, float32(0), a.Delta().Biases[a.HiddenBias()].Data[1])
}

func TestRecursiveLearnFollowsGradientAndAdvances(t *testing.T) {
	r, err := autoencoder.NewDefaultRecursive(3, 2, randx.NewPCG(2))
	require.NoError(t, err)
	c := vector.New([]float32{0.3, -0.2})
	require.NoError(t, r.SetContext(c))
	before := cloneRecursive(t, r)
	tr, err := backprop.NewTrainer(r, plainConfig())
	require.NoError(t, err)

	x := vector.New([]float32{0, 1, 1})
	wantH, _, err := before.Forward([]blas32.Vector{x, c}, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Learn(r, x, backprop.Options{}, nil))
	assert.Equal(t, wantH.Data, r.Context().Data)
	checkGradient(t, before, r, []blas32.Vector{x, c})
}

func TestMomentumCarry(t *testing.T) {
	a, err := autoencoder.NewDefault(4, 3, randx.NewPCG(3))
	require.NoError(t, err)
	cfg := plainConfig()
	tr, err := backprop.NewTrainer(a, cfg)
	require.NoError(t, err)
	opts := backprop.Options{Momentum: true}
	require.NoError(t, tr.Learn(a, vector.New([]float32{1, 1, 0, 0}), opts, nil))
	prev := a.Delta()

	b := cloneAE(t, a)
	x := vector.New([]float32{0, 1, 0, 1})
	require.NoError(t, tr.Learn(a, x, opts, nil))
	require.NoError(t, tr.Learn(b, x, backprop.Options{}, nil))
	got, plain := a.Delta(), b.Delta()
	for k, w := range got.Weights {
		for i, e := range w.Data {
			assert.InDelta(t, plain.Weights[k].Data[i]+cfg.Momentum*prev.Weights[k].Data[i], e, 1e-6)
		}
	}
	for k, v := range got.Biases {
		for i, e := range v.Data {
			assert.InDelta(t, plain.Biases[k].Data[i]+cfg.Momentum*prev.Biases[k].Data[i], e, 1e-6)
		}
	}
}

func TestL2TouchesWeightsOnly(t *testing.T) {
	a, err := autoencoder.NewDefault(4, 3, randx.NewPCG(4))
	require.NoError(t, err)
	b := cloneAE(t, a)
	cfg := plainConfig()
	cfg.L2 = 0.5
	tr, err := backprop.NewTrainer(a, cfg)
	require.NoError(t, err)
	x := vector.New([]float32{1, 0, 0, 1})
	w0 := a.Parameter()
	require.NoError(t, tr.Learn(a, x, backprop.Options{L2: true}, nil))
	require.NoError(t, tr.Learn(b, x, backprop.Options{}, nil))

	got, plain := a.Delta(), b.Delta()
	for k, w := range got.Weights {
		for i, e := range w.Data {
			assert.InDelta(t, plain.Weights[k].Data[i]-lr*cfg.L2*w0.Weights[k].Data[i], e, 1e-6)
		}
	}
	assert.Equal(t, plain.Biases, got.Biases)
}

func TestBatchOfOneMatchesLearn(t *testing.T) {
	a, err := autoencoder.NewDefaultRecursive(3, 2, randx.NewPCG(5))
	require.NoError(t, err)
	b := cloneRecursive(t, a)
	ta, err := backprop.NewTrainer(a, backprop.DefaultConfig())
	require.NoError(t, err)
	tb, err := backprop.NewTrainer(b, backprop.DefaultConfig())
	require.NoError(t, err)

	for _, x := range [][]float32{{1, 0, 0}, {0, 1, 1}} {
		require.NoError(t, ta.Learn(a, vector.New(x), backprop.AllOptions(), nil))
		require.NoError(t, tb.BatchLearn(b, []blas32.Vector{vector.New(x)}, backprop.AllOptions(), nil))
	}
	assert.Equal(t, a.Parameter(), b.Parameter())
	assert.Equal(t, a.Context().Data, b.Context().Data)
}

func TestBatchAveragesGradient(t *testing.T) {
	a, err := autoencoder.NewDefault(3, 2, randx.NewPCG(6))
	require.NoError(t, err)
	X := []blas32.Vector{vector.New([]float32{1, 0, 0}), vector.New([]float32{0, 1, 1})}
	tr, err := backprop.NewTrainer(a, plainConfig())
	require.NoError(t, err)

	var singles []model.Parameter
	for _, x := range X {
		c := cloneAE(t, a)
		require.NoError(t, tr.Learn(c, x, backprop.Options{}, nil))
		singles = append(singles, c.Delta())
	}
	require.NoError(t, tr.BatchLearn(a, X, backprop.Options{}, nil))
	got := a.Delta()
	for k, w := range got.Weights {
		for i, e := range w.Data {
			mean := (singles[0].Weights[k].Data[i] + singles[1].Weights[k].Data[i]) / 2
			assert.InDelta(t, mean, e, 1e-6)
		}
	}
}

func TestSparsityPullsHiddenBias(t *testing.T) {
	a, err := autoencoder.NewDefault(3, 2, randx.NewPCG(7))
	require.NoError(t, err)
	b := cloneAE(t, a)
	cfg := backprop.SparseConfig()
	cfg.SparsityPenalty = 1
	sparse, err := backprop.NewTrainer(a, cfg)
	require.NoError(t, err)
	plain, err := backprop.NewTrainer(b, plainConfig())
	require.NoError(t, err)

	x := vector.New([]float32{1, 1, 1})
	h, err := a.Encode(x, nil)
	require.NoError(t, err)
	require.NoError(t, sparse.Learn(a, x, backprop.Options{}, nil))
	require.NoError(t, plain.Learn(b, x, backprop.Options{}, nil))

	q := sparse.Q()
	hb := a.HiddenBias()
	for i, e := range h.Data {
		assert.InDelta(t, (1-cfg.SparsityDecay)*e, q.Data[i], 1e-6)
		term := cfg.SparsityPenalty * (q.Data[i] - cfg.SparsityTarget)
		want := b.Delta().Biases[hb].Data[i] - cfg.LearningRate*(1-e*e)*term
		assert.InDelta(t, want, a.Delta().Biases[hb].Data[i], 1e-6)
	}
}

func TestErrors(t *testing.T) {
	a, err := autoencoder.NewDefault(3, 2, randx.NewPCG(8))
	require.NoError(t, err)
	tr, err := backprop.NewTrainer(a, backprop.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, errors.Is(tr.Learn(a, vector.NewZeros(4), backprop.AllOptions(), nil), model.ErrDimension))
	assert.True(t, errors.Is(tr.BatchLearn(a, nil, backprop.AllOptions(), nil), model.ErrDimension))

	cfg := backprop.DefaultConfig()
	cfg.LearningRate = 0
	_, err = backprop.NewTrainer(a, cfg)
	assert.True(t, errors.Is(err, model.ErrConfig))
	cfg = backprop.DefaultConfig()
	cfg.SparsityDecay = 1
	assert.True(t, errors.Is(cfg.Validate(), model.ErrConfig))
}

func TestBadBatchKeepsContext(t *testing.T) {
	r, err := autoencoder.NewDefaultRecursive(3, 2, randx.NewPCG(9))
	require.NoError(t, err)
	c := vector.New([]float32{0.4, -0.1})
	require.NoError(t, r.SetContext(c))
	before := r.Parameter()
	tr, err := backprop.NewTrainer(r, backprop.DefaultConfig())
	require.NoError(t, err)

	X := []blas32.Vector{vector.New([]float32{1, 0, 1}), vector.NewZeros(2)}
	err = tr.BatchLearn(r, X, backprop.AllOptions(), nil)
	assert.True(t, errors.Is(err, model.ErrDimension))
	assert.Equal(t, c.Data, r.Context().Data)
	assert.Equal(t, before, r.Parameter())
}
