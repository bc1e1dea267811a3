// Package srrbm implements recursive restricted Boltzmann machines. The
// hidden state of the previous step is fed back as a context layer, so a
// sequence can be pushed element by element and popped back in reverse.
package srrbm

import (
	"math/rand/v2"

	"github.com/sw965/ebm/blas32/vector"
	"github.com/sw965/ebm/model"
	"github.com/sw965/ebm/unit"
	"gonum.org/v1/gonum/blas/blas32"
)

const (
	InitLow  = -0.2
	InitHigh = 0.2
)

const KindSrrbm = "srrbm"

// Srrbm has a visible layer (0) and a context layer (1) the size of the
// hidden layer.
type Srrbm struct {
	*model.Machine
	h blas32.Vector
	// sampled contexts are drawn through the context sampler before
	// they are propagated by Push and Pop.
	sampled bool
}

func New(nvis, nhid int, vtype, htype unit.Kind, rng *rand.Rand) (*Srrbm, error) {
	return newSrrbm(nvis, nhid, vtype, htype, model.UniformInit(InitLow, InitHigh, rng))
}

// NewDefault uses pthresh visible and sigmoid hidden units.
func NewDefault(nvis, nhid int, rng *rand.Rand) (*Srrbm, error) {
	return New(nvis, nhid, unit.PThresh, unit.Sigmoid, rng)
}

func newSrrbm(nvis, nhid int, vtype, htype unit.Kind, init model.Initializer) (*Srrbm, error) {
	m, err := model.NewMachine(
		model.Layer{Name: "h", Size: nhid, Unit: htype, Sample: htype.Sampler(), Bias: "hb"},
		[]model.Layer{
			{Name: "v", Size: nvis, Unit: vtype, Sample: vtype.Sampler(), Weight: "wv", Bias: "vb"},
			{Name: "c", Size: nhid, Unit: htype, Sample: htype.Sampler(), Latent: true, Weight: "wc", Bias: "cb"},
		},
		init,
	)
	if err != nil {
		return nil, err
	}
	return &Srrbm{Machine: m, h: vector.NewZeros(nhid)}, nil
}

func (s *Srrbm) NumVisible() int {
	return s.Layers()[0].Size
}

func (s *Srrbm) FF(x, c blas32.Vector, rng *rand.Rand) (blas32.Vector, error) {
	return s.Forward([]blas32.Vector{x, c}, rng)
}

// FB returns the visible and context reconstructions of h.
func (s *Srrbm) FB(h blas32.Vector, rng *rand.Rand) (blas32.Vector, blas32.Vector, error) {
	xs, err := s.Backward(h, rng)
	if err != nil {
		return blas32.Vector{}, blas32.Vector{}, err
	}
	return xs[0], xs[1], nil
}

func (s *Srrbm) context(rng *rand.Rand) blas32.Vector {
	if s.sampled {
		return s.SampleHidden(s.h, rng)
	}
	return s.h
}

// Push advances the context to ff(x, context).
func (s *Srrbm) Push(x blas32.Vector, rng *rand.Rand) error {
	h, err := s.FF(x, s.context(rng), rng)
	if err != nil {
		return err
	}
	s.h = h
	return nil
}

// Pop reconstructs the last pushed element and rewinds the context.
func (s *Srrbm) Pop(rng *rand.Rand) (blas32.Vector, error) {
	v, c, err := s.FB(s.context(rng), rng)
	if err != nil {
		return blas32.Vector{}, err
	}
	s.h = c
	return v, nil
}

func (s *Srrbm) Reset() {
	s.h = vector.NewZeros(s.NumHidden())
}

func (s *Srrbm) Context() blas32.Vector {
	return vector.Clone(s.h)
}

func (s *Srrbm) SetContext(h blas32.Vector) error {
	if err := s.CheckHidden(h); err != nil {
		return err
	}
	s.h = vector.Clone(h)
	return nil
}

// FreeEnergy of v given the current context.
func (s *Srrbm) FreeEnergy(v blas32.Vector) (float32, error) {
	return s.Machine.FreeEnergy([]blas32.Vector{v, s.h})
}

func (s *Srrbm) export(kind string) model.State {
	st := model.NewState(kind)
	st.Ints["nvis"] = s.NumVisible()
	st.Ints["nhid"] = s.NumHidden()
	s.Export(&st)
	st.Arrays["h"] = vector.Clone(s.h).Data
	return st
}

func (s *Srrbm) State() model.State {
	return s.export(KindSrrbm)
}

func (s *Srrbm) importContext(st model.State) error {
	if err := s.Import(st); err != nil {
		return err
	}
	h, err := st.Array("h", s.NumHidden())
	if err != nil {
		return err
	}
	s.h = vector.New(h)
	return nil
}

func dims(st model.State) (int, int, error) {
	nvis, err := st.Int("nvis")
	if err != nil {
		return 0, 0, err
	}
	nhid, err := st.Int("nhid")
	return nvis, nhid, err
}

func Restore(st model.State) (*Srrbm, error) {
	if err := st.CheckKind(KindSrrbm); err != nil {
		return nil, err
	}
	nvis, nhid, err := dims(st)
	if err != nil {
		return nil, err
	}
	vtype, err := st.Unit("vtype")
	if err != nil {
		return nil, err
	}
	htype, err := st.Unit("htype")
	if err != nil {
		return nil, err
	}
	s, err := newSrrbm(nvis, nhid, vtype, htype, model.ZerosInit)
	if err != nil {
		return nil, err
	}
	if err := s.importContext(st); err != nil {
		return nil, err
	}
	return s, nil
}
