// Package rbm implements restricted Boltzmann machines with a single hidden
// layer: the plain Rbm, the softmax-hidden SoftmaxRbm and the joint
// visible/label Drbm.
package rbm

import (
	"math/rand/v2"

	"github.com/sw965/ebm/model"
	"github.com/sw965/ebm/unit"
	"gonum.org/v1/gonum/blas/blas32"
)

const (
	InitLow  = -0.2
	InitHigh = 0.2
)

const KindRbm = "rbm"

func visibleLayer(n int, k unit.Kind, weight string) model.Layer {
	return model.Layer{Name: "v", Size: n, Unit: k, Sample: k.Sampler(), Weight: weight, Bias: "vb"}
}

func hiddenLayer(n int, k unit.Kind) model.Layer {
	return model.Layer{Name: "h", Size: n, Unit: k, Sample: k.Sampler(), Bias: "hb"}
}

type Rbm struct {
	*model.Machine
}

// New returns an Rbm with weights drawn from U(-0.2, 0.2) and zero biases.
func New(nvis, nhid int, vtype, htype unit.Kind, rng *rand.Rand) (*Rbm, error) {
	return newRbm(nvis, nhid, vtype, htype, model.UniformInit(InitLow, InitHigh, rng))
}

// NewDefault uses pthresh visible and sigmoid hidden units.
func NewDefault(nvis, nhid int, rng *rand.Rand) (*Rbm, error) {
	return New(nvis, nhid, unit.PThresh, unit.Sigmoid, rng)
}

func newRbm(nvis, nhid int, vtype, htype unit.Kind, init model.Initializer) (*Rbm, error) {
	m, err := model.NewMachine(
		hiddenLayer(nhid, htype),
		[]model.Layer{visibleLayer(nvis, vtype, "w")},
		init,
	)
	if err != nil {
		return nil, err
	}
	return &Rbm{Machine: m}, nil
}

func (r *Rbm) NumVisible() int {
	return r.Layers()[0].Size
}

func (r *Rbm) FF(v blas32.Vector, rng *rand.Rand) (blas32.Vector, error) {
	return r.Forward([]blas32.Vector{v}, rng)
}

func (r *Rbm) FB(h blas32.Vector, rng *rand.Rand) (blas32.Vector, error) {
	vs, err := r.Backward(h, rng)
	if err != nil {
		return blas32.Vector{}, err
	}
	return vs[0], nil
}

func (r *Rbm) FreeEnergy(v blas32.Vector) (float32, error) {
	return r.Machine.FreeEnergy([]blas32.Vector{v})
}

// Reconstruct returns fb(ff(v)).
func (r *Rbm) Reconstruct(v blas32.Vector, rng *rand.Rand) (blas32.Vector, error) {
	h, err := r.FF(v, rng)
	if err != nil {
		return blas32.Vector{}, err
	}
	return r.FB(h, rng)
}

func (r *Rbm) HidSample(h blas32.Vector, rng *rand.Rand) blas32.Vector {
	return r.SampleHidden(h, rng)
}

func (r *Rbm) VisSample(v blas32.Vector, rng *rand.Rand) blas32.Vector {
	return r.SampleLayers([]blas32.Vector{v}, false, rng)[0]
}

func (r *Rbm) State() model.State {
	s := model.NewState(KindRbm)
	s.Ints["nvis"] = r.NumVisible()
	s.Ints["nhid"] = r.NumHidden()
	r.Export(&s)
	return s
}

func Restore(s model.State) (*Rbm, error) {
	if err := s.CheckKind(KindRbm); err != nil {
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
	vtype, err := s.Unit("vtype")
	if err != nil {
		return nil, err
	}
	htype, err := s.Unit("htype")
	if err != nil {
		return nil, err
	}
	r, err := newRbm(nvis, nhid, vtype, htype, model.ZerosInit)
	if err != nil {
		return nil, err
	}
	if err := r.Import(s); err != nil {
		return nil, err
	}
	return r, nil
}
