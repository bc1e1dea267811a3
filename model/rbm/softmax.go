package rbm

import (
	"math/rand/v2"

	"github.com/sw965/ebm/model"
	"github.com/sw965/ebm/unit"
	"gonum.org/v1/gonum/blas/blas32"
)

const KindSoftmaxRbm = "softmaxrbm"

// SoftmaxRbm has sigmoid visible units and a single categorical hidden
// variable.
type SoftmaxRbm struct {
	Rbm
}

func NewSoftmax(nvis, nhid int, rng *rand.Rand) (*SoftmaxRbm, error) {
	return newSoftmax(nvis, nhid, model.UniformInit(InitLow, InitHigh, rng))
}

func newSoftmax(nvis, nhid int, init model.Initializer) (*SoftmaxRbm, error) {
	m, err := model.NewMachine(
		hiddenLayer(nhid, unit.Softmax),
		[]model.Layer{visibleLayer(nvis, unit.Sigmoid, "W")},
		init,
	)
	if err != nil {
		return nil, err
	}
	return &SoftmaxRbm{Rbm: Rbm{Machine: m}}, nil
}

// HidSampleIndex draws the index of the active hidden unit.
func (r *SoftmaxRbm) HidSampleIndex(h blas32.Vector, rng *rand.Rand) int {
	return unit.CatIndex(h, rng)
}

// HidSampleDet activates the most probable hidden unit.
func (r *SoftmaxRbm) HidSampleDet(h blas32.Vector) blas32.Vector {
	return unit.DetCatFunc(h, nil)
}

// Reconstruct returns vis_sample(fb(hid_sample(ff(v)))).
func (r *SoftmaxRbm) Reconstruct(v blas32.Vector, rng *rand.Rand) (blas32.Vector, error) {
	h, err := r.FF(v, rng)
	if err != nil {
		return blas32.Vector{}, err
	}
	nv, err := r.FB(r.HidSample(h, rng), rng)
	if err != nil {
		return blas32.Vector{}, err
	}
	return r.VisSample(nv, rng), nil
}

func (r *SoftmaxRbm) Energy(v, h blas32.Vector) (float32, error) {
	return r.Machine.Energy([]blas32.Vector{v}, h)
}

func (r *SoftmaxRbm) State() model.State {
	s := r.Rbm.State()
	s.Kind = KindSoftmaxRbm
	return s
}

func RestoreSoftmax(s model.State) (*SoftmaxRbm, error) {
	if err := s.CheckKind(KindSoftmaxRbm); err != nil {
		return nil, err
	}
	nvis, err := s.Int("nvis")
	if err != nil {
		return nil, err
	}
	nhid, err := s.Int("nhid")
	if err != nil {
		return nil, err
	}
	r, err := newSoftmax(nvis, nhid, model.ZerosInit)
	if err != nil {
		return nil, err
	}
	if err := r.Import(s); err != nil {
		return nil, err
	}
	return r, nil
}
