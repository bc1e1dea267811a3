package rbm

import (
	"math/rand/v2"

	"github.com/sw965/ebm/blas32/vector"
	"github.com/sw965/ebm/model"
	"github.com/sw965/ebm/unit"
	"gonum.org/v1/gonum/blas/blas32"
)

const KindDrbm = "drbm"

// Drbm models visible vectors jointly with a label layer. Layer 0 is the
// visible layer and layer 1 the output layer.
type Drbm struct {
	*model.Machine
}

func NewDrbm(nvis, nout, nhid int, vtype, htype, otype unit.Kind, rng *rand.Rand) (*Drbm, error) {
	return newDrbm(nvis, nout, nhid, vtype, htype, otype, model.UniformInit(InitLow, InitHigh, rng))
}

// NewDefaultDrbm uses pthresh visible and hidden units and a softmax output.
func NewDefaultDrbm(nvis, nout, nhid int, rng *rand.Rand) (*Drbm, error) {
	return NewDrbm(nvis, nout, nhid, unit.PThresh, unit.PThresh, unit.Softmax, rng)
}

func newDrbm(nvis, nout, nhid int, vtype, htype, otype unit.Kind, init model.Initializer) (*Drbm, error) {
	m, err := model.NewMachine(
		hiddenLayer(nhid, htype),
		[]model.Layer{
			visibleLayer(nvis, vtype, "Whv"),
			{Name: "o", Size: nout, Unit: otype, Sample: otype.Sampler(), Weight: "Who", Bias: "ob"},
		},
		init,
	)
	if err != nil {
		return nil, err
	}
	return &Drbm{Machine: m}, nil
}

func (d *Drbm) NumVisible() int {
	return d.Layers()[0].Size
}

func (d *Drbm) NumOutputs() int {
	return d.Layers()[1].Size
}

func (d *Drbm) FF(v, o blas32.Vector, rng *rand.Rand) (blas32.Vector, error) {
	return d.Forward([]blas32.Vector{v, o}, rng)
}

func (d *Drbm) FB(h blas32.Vector, rng *rand.Rand) (blas32.Vector, blas32.Vector, error) {
	xs, err := d.Backward(h, rng)
	if err != nil {
		return blas32.Vector{}, blas32.Vector{}, err
	}
	return xs[0], xs[1], nil
}

func (d *Drbm) FreeEnergy(v, o blas32.Vector) (float32, error) {
	return d.Machine.FreeEnergy([]blas32.Vector{v, o})
}

// PClass returns p(y|v) for every class y, p ∝ exp(−F(v, e_y)).
func (d *Drbm) PClass(v blas32.Vector) (blas32.Vector, error) {
	nout := d.NumOutputs()
	negF := vector.NewZeros(nout)
	for c := 0; c < nout; c++ {
		f, err := d.FreeEnergy(v, vector.NewOneHot(nout, c))
		if err != nil {
			return blas32.Vector{}, err
		}
		negF.Data[c] = -f
	}
	return unit.SoftmaxFunc(negF, nil), nil
}

// Output returns the one-hot vector of the most probable class.
func (d *Drbm) Output(v blas32.Vector) (blas32.Vector, error) {
	idx, err := d.OutputIndex(v)
	if err != nil {
		return blas32.Vector{}, err
	}
	return vector.NewOneHot(d.NumOutputs(), idx), nil
}

func (d *Drbm) OutputIndex(v blas32.Vector) (int, error) {
	p, err := d.PClass(v)
	if err != nil {
		return -1, err
	}
	return vector.Argmax(p), nil
}

func (d *Drbm) State() model.State {
	s := model.NewState(KindDrbm)
	s.Ints["nvis"] = d.NumVisible()
	s.Ints["nout"] = d.NumOutputs()
	s.Ints["nhid"] = d.NumHidden()
	d.Export(&s)
	return s
}

func RestoreDrbm(s model.State) (*Drbm, error) {
	if err := s.CheckKind(KindDrbm); err != nil {
		return nil, err
	}
	var ints [3]int
	for i, key := range []string{"nvis", "nout", "nhid"} {
		n, err := s.Int(key)
		if err != nil {
			return nil, err
		}
		ints[i] = n
	}
	var kinds [3]unit.Kind
	for i, key := range []string{"vtype", "htype", "otype"} {
		k, err := s.Unit(key)
		if err != nil {
			return nil, err
		}
		kinds[i] = k
	}
	d, err := newDrbm(ints[0], ints[1], ints[2], kinds[0], kinds[1], kinds[2], model.ZerosInit)
	if err != nil {
		return nil, err
	}
	if err := d.Import(s); err != nil {
		return nil, err
	}
	return d, nil
}
