package autoencoder

import (
	"math/rand/v2"

	"github.com/sw965/ebm/blas32/vector"
	"github.com/sw965/ebm/model"
	"github.com/sw965/ebm/unit"
	"gonum.org/v1/gonum/blas/blas32"
)

const KindRecursive = "srautoencoder"

// Recursive encodes an input together with the previous hidden state and
// learns to reconstruct both, so that Pop undoes Push.
type Recursive struct {
	*Net
	h blas32.Vector
}

func NewRecursive(nin, nhid int, htype, otype unit.Kind, rng *rand.Rand) (*Recursive, error) {
	return newRecursive(nin, nhid, htype, otype, normalInit(rng))
}

// NewDefaultRecursive uses tanh hidden and sigmoid output units.
func NewDefaultRecursive(nin, nhid int, rng *rand.Rand) (*Recursive, error) {
	return NewRecursive(nin, nhid, unit.Tanh, unit.Sigmoid, rng)
}

func newRecursive(nin, nhid int, htype, otype unit.Kind, init model.Initializer) (*Recursive, error) {
	n, err := newNet(nhid, htype, []Port{
		{Size: nin, Out: otype, Enc: "whi", Dec: "woih", OutKey: "oib"},
		{Size: nhid, Out: htype, Enc: "whc", Dec: "woch", OutKey: "ocb"},
	}, init)
	if err != nil {
		return nil, err
	}
	return &Recursive{Net: n, h: vector.NewZeros(nhid)}, nil
}

func (r *Recursive) NumInputs() int {
	return r.ports[0].Size
}

// FF returns the reconstructions of x and c.
func (r *Recursive) FF(x, c blas32.Vector, rng *rand.Rand) (blas32.Vector, blas32.Vector, error) {
	_, outs, err := r.Forward([]blas32.Vector{x, c}, rng)
	if err != nil {
		return blas32.Vector{}, blas32.Vector{}, err
	}
	return outs[0], outs[1], nil
}

// Push encodes x with the current context and makes the code the new
// context.
func (r *Recursive) Push(x blas32.Vector, rng *rand.Rand) (blas32.Vector, error) {
	h, err := r.Encode([]blas32.Vector{x, r.h}, rng)
	if err != nil {
		return blas32.Vector{}, err
	}
	r.h = h
	return vector.Clone(h), nil
}

// Pop decodes the current context into the last input and the previous
// context.
func (r *Recursive) Pop(rng *rand.Rand) (blas32.Vector, error) {
	outs, err := r.Decode(r.h, rng)
	if err != nil {
		return blas32.Vector{}, err
	}
	r.h = outs[1]
	return outs[0], nil
}

func (r *Recursive) Reset() {
	r.h = vector.NewZeros(r.nhid)
}

func (r *Recursive) Context() blas32.Vector {
	return vector.Clone(r.h)
}

func (r *Recursive) SetContext(h blas32.Vector) error {
	if err := model.CheckLen("context", h.Data, r.nhid); err != nil {
		return err
	}
	r.h = vector.Clone(h)
	return nil
}

func (r *Recursive) State() model.State {
	s := r.export(KindRecursive)
	s.Ints["nin"] = r.NumInputs()
	s.Units["otype"] = r.ports[0].Out.String()
	s.Arrays["hstate"] = vector.Clone(r.h).Data
	return s
}

func RestoreRecursive(s model.State) (*Recursive, error) {
	if err := s.CheckKind(KindRecursive); err != nil {
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
	r, err := newRecursive(nin, nhid, htype, otype, model.ZerosInit)
	if err != nil {
		return nil, err
	}
	if err := r.restore(s); err != nil {
		return nil, err
	}
	h, err := s.Array("hstate", nhid)
	if err != nil {
		return nil, err
	}
	r.h = vector.New(h)
	return r, nil
}
