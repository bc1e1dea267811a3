package autoencoder

import (
	"math/rand/v2"

	"github.com/sw965/ebm/model"
	"github.com/sw965/ebm/unit"
	"gonum.org/v1/gonum/blas/blas32"
)

const KindAutoEncoder = "autoencoder"

type AutoEncoder struct {
	*Net
}

// New draws every weight from N(0, 0.2²).
func New(nin, nhid int, htype, otype unit.Kind, rng *rand.Rand) (*AutoEncoder, error) {
	return newAutoEncoder(nin, nhid, htype, otype, normalInit(rng))
}

// NewDefault uses tanh hidden and sigmoid output units.
func NewDefault(nin, nhid int, rng *rand.Rand) (*AutoEncoder, error) {
	return New(nin, nhid, unit.Tanh, unit.Sigmoid, rng)
}

func newAutoEncoder(nin, nhid int, htype, otype unit.Kind, init model.Initializer) (*AutoEncoder, error) {
	n, err := newNet(nhid, htype, []Port{
		{Size: nin, Out: otype, Enc: "whi", Dec: "woh", OutKey: "ob"},
	}, init)
	if err != nil {
		return nil, err
	}
	return &AutoEncoder{Net: n}, nil
}

func (a *AutoEncoder) NumInputs() int {
	return a.ports[0].Size
}

// FF returns the reconstruction of x.
func (a *AutoEncoder) FF(x blas32.Vector, rng *rand.Rand) (blas32.Vector, error) {
	_, outs, err := a.Forward([]blas32.Vector{x}, rng)
	if err != nil {
		return blas32.Vector{}, err
	}
	return outs[0], nil
}

func (a *AutoEncoder) Encode(x blas32.Vector, rng *rand.Rand) (blas32.Vector, error) {
	return a.Net.Encode([]blas32.Vector{x}, rng)
}

func (a *AutoEncoder) Decode(h blas32.Vector, rng *rand.Rand) (blas32.Vector, error) {
	outs, err := a.Net.Decode(h, rng)
	if err != nil {
		return blas32.Vector{}, err
	}
	return outs[0], nil
}

func (a *AutoEncoder) State() model.State {
	s := a.export(KindAutoEncoder)
	s.Ints["nin"] = a.NumInputs()
	s.Units["otype"] = a.ports[0].Out.String()
	return s
}

func Restore(s model.State) (*AutoEncoder, error) {
	if err := s.CheckKind(KindAutoEncoder); err != nil {
		return nil, err
	}
	nin, err := s.Int("nin")
	if err != nil {
		return nil, err
	}
	nhid, err := s.Int("nhid")
	if err != nil {
		return nil, err
	}
	htype, err := s.Unit("htype")
	if err != nil {
		return nil, err
	}
	otype, err := s.Unit("otype")
	if err != nil {
		return nil, err
	}
	a, err := newAutoEncoder(nin, nhid, htype, otype, model.ZerosInit)
	if err != nil {
		return nil, err
	}
	if err := a.restore(s); err != nil {
		return nil, err
	}
	return a, nil
}
