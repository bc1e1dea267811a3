// Package unit implements the transfer functions and samplers used by the
// layers of energy based models, and their derivatives given the output.
package unit

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas/blas32"
)

var ErrUnknown = errors.New("unit: unknown unit type")

// Func maps a pre-activation vector to a new activation vector. Deterministic
// units ignore rng.
type Func func(x blas32.Vector, rng *rand.Rand) blas32.Vector

type Kind int

const (
	Sigmoid Kind = iota
	Tanh
	RectLinear
	Linear
	Softmax
	PThresh
	RThresh
	Cat
	Thresh
	DetCat
	kindCount
)

var names = [...]string{
	Sigmoid:    "sigmoid",
	Tanh:       "tanh",
	RectLinear: "rectlinear",
	Linear:     "linear",
	Softmax:    "softmax",
	PThresh:    "pthresh",
	RThresh:    "rthresh",
	Cat:        "cat",
	Thresh:     "thresh",
	DetCat:     "detcat",
}

var funcs = [...]Func{
	Sigmoid:    SigmoidFunc,
	Tanh:       TanhFunc,
	RectLinear: RectLinearFunc,
	Linear:     LinearFunc,
	Softmax:    SoftmaxFunc,
	PThresh:    PThreshFunc,
	RThresh:    RThreshFunc,
	Cat:        CatFunc,
	Thresh:     ThreshFunc,
	DetCat:     DetCatFunc,
}

func (k Kind) Valid() bool {
	return k >= 0 && k < kindCount
}

func (k Kind) String() string {
	if !k.Valid() {
		return "unknown"
	}
	return names[k]
}

// Stochastic reports whether the unit consumes random numbers.
func (k Kind) Stochastic() bool {
	switch k {
	case RectLinear, PThresh, RThresh, Cat:
		return true
	}
	return false
}

func (k Kind) Func() (Func, error) {
	if !k.Valid() {
		return nil, errors.Wrapf(ErrUnknown, "kind %d", int(k))
	}
	return funcs[k], nil
}

func Parse(name string) (Kind, error) {
	for k, n := range names {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknown, "%q", name)
}

// Sampler returns the unit that draws a state from the output of k.
// Softmax layers draw a category, probabilities draw Bernoulli states and
// real-valued units pass through unchanged.
func (k Kind) Sampler() Kind {
	switch k {
	case Softmax, Cat, DetCat:
		return Cat
	case Sigmoid, PThresh, RThresh, Thresh:
		return RThresh
	}
	return Linear
}
