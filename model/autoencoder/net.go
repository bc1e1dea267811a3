// Package autoencoder implements single hidden layer autoencoders: the plain
// AutoEncoder and the simple recursive Recursive, which also reconstructs
// its previous hidden state.
package autoencoder

import (
	"math/rand/v2"
	"slices"

	"github.com/pkg/errors"
	"github.com/sw965/ebm/blas32/vector"
	"github.com/sw965/ebm/model"
	"github.com/sw965/ebm/unit"
	"gonum.org/v1/gonum/blas/blas32"
)

const InitStd = 0.2

// Port is one input layer and the output layer that reconstructs it.
type Port struct {
	Size int
	// Out is the output unit of the reconstruction.
	Out    unit.Kind
	Enc    string
	Dec    string
	OutKey string
}

// Net encodes every input port into one hidden layer and decodes the hidden
// layer back into each port. Weights hold the encoders followed by the
// decoders; Biases hold the hidden bias followed by the output biases.
type Net struct {
	ports []Port
	nhid  int
	htype unit.Kind

	param model.Parameter
	delta model.Parameter

	hact  unit.Func
	hder  unit.Derivative
	oacts []unit.Func
	oders []unit.Derivative
}

func resolve(k unit.Kind) (unit.Func, unit.Derivative, error) {
	f, err := k.Func()
	if err != nil {
		return nil, nil, errors.Wrapf(model.ErrConfig, "autoencoder: %v", err)
	}
	d, err := k.Derivative()
	if err != nil {
		return nil, nil, errors.Wrapf(model.ErrConfig, "autoencoder: %v", err)
	}
	return f, d, nil
}

func newNet(nhid int, htype unit.Kind, ports []Port, init model.Initializer) (*Net, error) {
	if nhid <= 0 {
		return nil, errors.Wrapf(model.ErrConfig, "autoencoder: nhid = %d", nhid)
	}
	n := &Net{
		ports: ports,
		nhid:  nhid,
		htype: htype,
		oacts: make([]unit.Func, len(ports)),
		oders: make([]unit.Derivative, len(ports)),
	}
	var err error
	if n.hact, n.hder, err = resolve(htype); err != nil {
		return nil, err
	}
	ws := make([]blas32.General, 2*len(ports))
	bs := make([]blas32.Vector, 1+len(ports))
	bs[0] = vector.NewZeros(nhid)
	for i, p := range ports {
		if p.Size <= 0 {
			return nil, errors.Wrapf(model.ErrConfig, "autoencoder: port %d size = %d", i, p.Size)
		}
		if n.oacts[i], n.oders[i], err = resolve(p.Out); err != nil {
			return nil, err
		}
		ws[i] = init(nhid, p.Size)
		bs[1+i] = vector.NewZeros(p.Size)
	}
	for i, p := range ports {
		ws[len(ports)+i] = init(p.Size, nhid)
	}
	n.param = model.Parameter{Weights: ws, Biases: bs}
	n.delta = n.param.NewZerosLike()
	return n, nil
}

func (n *Net) NumHidden() int {
	return n.nhid
}

func (n *Net) NumPorts() int {
	return len(n.ports)
}

func (n *Net) Parameter() model.Parameter {
	return n.param.Clone()
}

func (n *Net) Delta() model.Parameter {
	return n.delta.Clone()
}

func (n *Net) Update(param, delta model.Parameter) error {
	if !n.param.SameShape(param) || !n.param.SameShape(delta) {
		return errors.Wrap(model.ErrDimension, "autoencoder: Update: shape differs")
	}
	n.param = param
	n.delta = delta
	return nil
}

// EncoderIndex and DecoderIndex locate the weights of port i.
func (n *Net) EncoderIndex(i int) int { return i }
func (n *Net) DecoderIndex(i int) int { return len(n.ports) + i }

// OutputBias and HiddenBias locate biases in Parameter.Biases.
func (n *Net) OutputBias(i int) int { return 1 + i }
func (n *Net) HiddenBias() int      { return 0 }

func (n *Net) checkInputs(xs []blas32.Vector) error {
	if len(xs) != len(n.ports) {
		return errors.Wrapf(model.ErrDimension, "autoencoder: %d inputs, want %d", len(xs), len(n.ports))
	}
	for i, p := range n.ports {
		if xs[i].N != p.Size {
			return errors.Wrapf(model.ErrDimension, "autoencoder: input %d len = %d, want %d", i, xs[i].N, p.Size)
		}
	}
	return nil
}

// Encode returns hact(Σ W_i·x_i + hb). rng is only drawn from by
// stochastic units such as rectlinear and may be nil otherwise.
func (n *Net) Encode(xs []blas32.Vector, rng *rand.Rand) (blas32.Vector, error) {
	if err := n.checkInputs(xs); err != nil {
		return blas32.Vector{}, err
	}
	pre := vector.Clone(n.param.Biases[0])
	for i, x := range xs {
		vector.AddMulVec(pre, n.param.Weights[i], x)
	}
	return n.hact(pre, rng), nil
}

// Decode reconstructs every port from h.
func (n *Net) Decode(h blas32.Vector, rng *rand.Rand) ([]blas32.Vector, error) {
	if h.N != n.nhid {
		return nil, errors.Wrapf(model.ErrDimension, "autoencoder: hidden len = %d, want %d", h.N, n.nhid)
	}
	outs := make([]blas32.Vector, len(n.ports))
	for i := range n.ports {
		pre := vector.Affine(n.param.Weights[n.DecoderIndex(i)], h, n.param.Biases[n.OutputBias(i)])
		outs[i] = n.oacts[i](pre, rng)
	}
	return outs, nil
}

func (n *Net) Forward(xs []blas32.Vector, rng *rand.Rand) (blas32.Vector, []blas32.Vector, error) {
	h, err := n.Encode(xs, rng)
	if err != nil {
		return blas32.Vector{}, nil, err
	}
	outs, err := n.Decode(h, rng)
	return h, outs, err
}

// Derivatives returns the derivative of the hidden unit and of every
// output unit.
func (n *Net) Derivatives() (unit.Derivative, []unit.Derivative) {
	return n.hder, n.oders
}

func (n *Net) weightKeys() []string {
	keys := make([]string, 0, 2*len(n.ports))
	for _, p := range n.ports {
		keys = append(keys, p.Enc)
	}
	for _, p := range n.ports {
		keys = append(keys, p.Dec)
	}
	return keys
}

func (n *Net) biasKeys() []string {
	keys := []string{"hb"}
	for _, p := range n.ports {
		keys = append(keys, p.OutKey)
	}
	return keys
}

func (n *Net) export(kind string) model.State {
	s := model.NewState(kind)
	s.Ints["nhid"] = n.nhid
	s.Units["htype"] = n.htype.String()
	for i, key := range n.weightKeys() {
		w := n.param.Weights[i]
		s.Arrays[key] = slices.Clone(w.Data)
		s.Arrays["d"+key] = slices.Clone(n.delta.Weights[i].Data)
		s.Shapes[key] = []int{w.Rows, w.Cols}
	}
	for i, key := range n.biasKeys() {
		s.Arrays[key] = slices.Clone(n.param.Biases[i].Data)
		s.Arrays["d"+key] = slices.Clone(n.delta.Biases[i].Data)
	}
	return s
}

func (n *Net) restore(s model.State) error {
	param := n.param.NewZerosLike()
	delta := n.delta.NewZerosLike()
	for i, key := range n.weightKeys() {
		size := len(param.Weights[i].Data)
		w, err := s.Array(key, size)
		if err != nil {
			return err
		}
		dw, err := s.Array("d"+key, size)
		if err != nil {
			return err
		}
		param.Weights[i].Data, delta.Weights[i].Data = w, dw
	}
	for i, key := range n.biasKeys() {
		size := param.Biases[i].N
		b, err := s.Array(key, size)
		if err != nil {
			return err
		}
		db, err := s.Array("d"+key, size)
		if err != nil {
			return err
		}
		param.Biases[i].Data, delta.Biases[i].Data = b, db
	}
	return n.Update(param, delta)
}

func normalInit(rng *rand.Rand) model.Initializer {
	return model.NormalInit(0, InitStd, rng)
}
