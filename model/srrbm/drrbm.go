package srrbm

import (
	"math"
	"math/rand/v2"

	"github.com/sw965/ebm/blas32/vector"
	"github.com/sw965/ebm/model"
	"github.com/sw965/ebm/unit"
	"gonum.org/v1/gonum/blas/blas32"
)

const KindDrrbm = "drrbm"

// Drrbm is a recursive machine over one-hot symbols: softmax visible units,
// sigmoid hidden and context units. The context is sampled before it is
// propagated.
type Drrbm struct {
	Srrbm
}

func NewDrrbm(nvis, nhid int, rng *rand.Rand) (*Drrbm, error) {
	return newDrrbm(nvis, nhid, model.UniformInit(InitLow, InitHigh, rng))
}

func newDrrbm(nvis, nhid int, init model.Initializer) (*Drrbm, error) {
	m, err := model.NewMachine(
		model.Layer{Name: "h", Size: nhid, Unit: unit.Sigmoid, Sample: unit.RThresh, Bias: "hb"},
		[]model.Layer{
			{Name: "v", Size: nvis, Unit: unit.Softmax, Sample: unit.Cat, Weight: "Whv", Bias: "vb"},
			{Name: "c", Size: nhid, Unit: unit.Sigmoid, Sample: unit.RThresh, Latent: true, Weight: "Whc", Bias: "cb"},
		},
		init,
	)
	if err != nil {
		return nil, err
	}
	return &Drrbm{Srrbm: Srrbm{Machine: m, h: vector.NewZeros(nhid), sampled: true}}, nil
}

// OutputIndex returns the symbol whose one-hot vector has the lowest free
// energy given the current context.
func (d *Drrbm) OutputIndex() (int, error) {
	nvis := d.NumVisible()
	idx := -1
	minF := float32(math.Inf(1))
	for i := 0; i < nvis; i++ {
		f, err := d.FreeEnergy(vector.NewOneHot(nvis, i))
		if err != nil {
			return -1, err
		}
		if f < minF {
			minF = f
			idx = i
		}
	}
	return idx, nil
}

func (d *Drrbm) Output() (blas32.Vector, error) {
	idx, err := d.OutputIndex()
	if err != nil {
		return blas32.Vector{}, err
	}
	return vector.NewOneHot(d.NumVisible(), idx), nil
}

// VisSample turns the visible distribution v into a one-hot symbol: its
// argmax when det is set, a categorical draw otherwise.
func (d *Drrbm) VisSample(v blas32.Vector, det bool, rng *rand.Rand) blas32.Vector {
	if det {
		return unit.DetCatFunc(v, nil)
	}
	return unit.CatFunc(v, rng)
}

// VisSampleIndex is VisSample returning the index of the symbol.
func (d *Drrbm) VisSampleIndex(v blas32.Vector, det bool, rng *rand.Rand) int {
	if det {
		return unit.DetCatIndex(v)
	}
	return unit.CatIndex(v, rng)
}

func (d *Drrbm) State() model.State {
	return d.export(KindDrrbm)
}

func RestoreDrrbm(st model.State) (*Drrbm, error) {
	if err := st.CheckKind(KindDrrbm); err != nil {
		return nil, err
	}
	nvis, nhid, err := dims(st)
	if err != nil {
		return nil, err
	}
	d, err := newDrrbm(nvis, nhid, model.ZerosInit)
	if err != nil {
		return nil, err
	}
	if err := d.importContext(st); err != nil {
		return nil, err
	}
	return d, nil
}
