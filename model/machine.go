// Package model holds the layered energy core shared by every restricted
// Boltzmann machine variant, and the named-array state used to persist it.
package model

import (
	"math/rand/v2"

	"github.com/sw965/ebm/blas32/tensor/2d"
	"github.com/sw965/ebm/blas32/vector"
	"github.com/sw965/ebm/mathx"
	"github.com/sw965/ebm/unit"
	"gonum.org/v1/gonum/blas/blas32"
)

// Layer describes one group of units. Weight and Bias name the arrays of the
// layer in a State.
type Layer struct {
	Name   string
	Size   int
	Unit   unit.Kind
	Sample unit.Kind
	// Latent layers are sampled before the positive phase of stochastic CD.
	Latent bool
	Weight string
	Bias   string
}

func (l Layer) validate() error {
	if l.Size <= 0 {
		return configf("layer %q: size = %d", l.Name, l.Size)
	}
	return nil
}

// funcs resolves the activation and the sampler of l.
func (l Layer) funcs() (unit.Func, unit.Func, error) {
	act, err := l.Unit.Func()
	if err != nil {
		return nil, nil, configf("layer %q: unit: %v", l.Name, err)
	}
	sample, err := l.Sample.Func()
	if err != nil {
		return nil, nil, configf("layer %q: sampler: %v", l.Name, err)
	}
	return act, sample, nil
}

// Initializer allocates a rows×cols weight matrix.
type Initializer func(rows, cols int) blas32.General

func UniformInit(lo, hi float32, rng *rand.Rand) Initializer {
	return func(rows, cols int) blas32.General {
		return tensor2d.NewUniform(rows, cols, lo, hi, rng)
	}
}

func NormalInit(mean, std float32, rng *rand.Rand) Initializer {
	return func(rows, cols int) blas32.General {
		return tensor2d.NewNormal(rows, cols, mean, std, rng)
	}
}

func ZerosInit(rows, cols int) blas32.General {
	return tensor2d.NewZeros(rows, cols)
}

// Machine is a bipartite energy model: one hidden layer connected to any
// number of visible-side layers.
type Machine struct {
	hidden Layer
	layers []Layer

	param Parameter
	delta Parameter

	hact     unit.Func
	hsample  unit.Func
	acts     []unit.Func
	samplers []unit.Func
}

func NewMachine(hidden Layer, layers []Layer, init Initializer) (*Machine, error) {
	if len(layers) == 0 {
		return nil, configf("no visible layers")
	}
	if err := hidden.validate(); err != nil {
		return nil, err
	}
	m := &Machine{
		hidden:   hidden,
		layers:   append([]Layer(nil), layers...),
		acts:     make([]unit.Func, len(layers)),
		samplers: make([]unit.Func, len(layers)),
	}
	var err error
	if m.hact, m.hsample, err = hidden.funcs(); err != nil {
		return nil, err
	}

	ws := make([]blas32.General, len(layers))
	bs := make([]blas32.Vector, len(layers)+1)
	for i, l := range layers {
		if err := l.validate(); err != nil {
			return nil, err
		}
		if m.acts[i], m.samplers[i], err = l.funcs(); err != nil {
			return nil, err
		}
		ws[i] = init(hidden.Size, l.Size)
		if ws[i].Rows != hidden.Size || ws[i].Cols != l.Size {
			return nil, configf("layer %q: initializer returned %d×%d", l.Name, ws[i].Rows, ws[i].Cols)
		}
		bs[i] = vector.NewZeros(l.Size)
	}
	bs[len(layers)] = vector.NewZeros(hidden.Size)
	m.param = Parameter{Weights: ws, Biases: bs}
	m.delta = m.param.NewZerosLike()
	return m, nil
}

func (m *Machine) Hidden() Layer {
	return m.hidden
}

func (m *Machine) Layers() []Layer {
	return append([]Layer(nil), m.layers...)
}

func (m *Machine) NumHidden() int {
	return m.hidden.Size
}

// HiddenBias is the index of the hidden bias in Parameter.Biases.
func (m *Machine) HiddenBias() int {
	return len(m.layers)
}

func (m *Machine) Parameter() Parameter {
	return m.param.Clone()
}

func (m *Machine) Delta() Parameter {
	return m.delta.Clone()
}

// Update replaces the parameters and the stored delta. The machine takes
// ownership of both bundles.
func (m *Machine) Update(param, delta Parameter) error {
	if !m.param.SameShape(param) {
		return dimensionf("Update: parameter shape differs")
	}
	if !m.param.SameShape(delta) {
		return dimensionf("Update: delta shape differs")
	}
	m.param = param
	m.delta = delta
	return nil
}

func (m *Machine) CheckLayers(xs []blas32.Vector) error {
	if len(xs) != len(m.layers) {
		return dimensionf("got %d layers, want %d", len(xs), len(m.layers))
	}
	for i, l := range m.layers {
		if xs[i].N != l.Size || len(xs[i].Data) < l.Size {
			return dimensionf("layer %q: len = %d, want %d", l.Name, xs[i].N, l.Size)
		}
	}
	return nil
}

func (m *Machine) CheckHidden(h blas32.Vector) error {
	if h.N != m.hidden.Size || len(h.Data) < m.hidden.Size {
		return dimensionf("hidden: len = %d, want %d", h.N, m.hidden.Size)
	}
	return nil
}

// HiddenInput returns Σ W_i·x_i + hb.
func (m *Machine) HiddenInput(xs []blas32.Vector) (blas32.Vector, error) {
	if err := m.CheckLayers(xs); err != nil {
		return blas32.Vector{}, err
	}
	pre := vector.Clone(m.param.Biases[len(m.layers)])
	for i, x := range xs {
		vector.AddMulVec(pre, m.param.Weights[i], x)
	}
	return pre, nil
}

func (m *Machine) Forward(xs []blas32.Vector, rng *rand.Rand) (blas32.Vector, error) {
	pre, err := m.HiddenInput(xs)
	if err != nil {
		return blas32.Vector{}, err
	}
	return m.hact(pre, rng), nil
}

// Backward propagates h to every visible-side layer, in layer order.
func (m *Machine) Backward(h blas32.Vector, rng *rand.Rand) ([]blas32.Vector, error) {
	if err := m.CheckHidden(h); err != nil {
		return nil, err
	}
	xs := make([]blas32.Vector, len(m.layers))
	for i := range m.layers {
		pre := vector.AffineTrans(m.param.Weights[i], h, m.param.Biases[i])
		xs[i] = m.acts[i](pre, rng)
	}
	return xs, nil
}

func (m *Machine) SampleHidden(h blas32.Vector, rng *rand.Rand) blas32.Vector {
	return m.hsample(h, rng)
}

// SampleLayers passes every layer through its sampler. With latentOnly set
// the non-latent layers are copied unchanged.
func (m *Machine) SampleLayers(xs []blas32.Vector, latentOnly bool, rng *rand.Rand) []blas32.Vector {
	ys := make([]blas32.Vector, len(xs))
	for i, x := range xs {
		if latentOnly && !m.layers[i].Latent {
			ys[i] = vector.Clone(x)
			continue
		}
		ys[i] = m.samplers[i](x, rng)
	}
	return ys
}

// FreeEnergy is −Σ x_i·b_i − Σ_j softplus((Σ W_i·x_i + hb)_j).
func (m *Machine) FreeEnergy(xs []blas32.Vector) (float32, error) {
	pre, err := m.HiddenInput(xs)
	if err != nil {
		return 0, err
	}
	var f float32
	for i, x := range xs {
		f -= blas32.Dot(x, m.param.Biases[i])
	}
	for _, e := range pre.Data[:pre.N] {
		f -= mathx.Softplus(e)
	}
	return f, nil
}

// Energy is −Σ x_i·b_i − h·hb − Σ hᵀ·W_i·x_i.
func (m *Machine) Energy(xs []blas32.Vector, h blas32.Vector) (float32, error) {
	if err := m.CheckLayers(xs); err != nil {
		return 0, err
	}
	if err := m.CheckHidden(h); err != nil {
		return 0, err
	}
	e := -blas32.Dot(h, m.param.Biases[len(m.layers)])
	for i, x := range xs {
		e -= blas32.Dot(x, m.param.Biases[i])
		wx := vector.NewZeros(m.hidden.Size)
		vector.AddMulVec(wx, m.param.Weights[i], x)
		e -= blas32.Dot(h, wx)
	}
	return e, nil
}
