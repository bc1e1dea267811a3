package unit

import (
	"github.com/pkg/errors"
	"github.com/sw965/ebm/blas32/vector"
	"gonum.org/v1/gonum/blas/blas32"
)

// Derivative maps the OUTPUT y of a unit to its local derivative.
type Derivative func(y blas32.Vector) blas32.Vector

func SigmoidDerivative(y blas32.Vector) blas32.Vector {
	return vector.Map(y, func(e float32) float32 { return e * (1.0 - e) })
}

func TanhDerivative(y blas32.Vector) blas32.Vector {
	return vector.Map(y, func(e float32) float32 { return 1.0 - e*e })
}

func RectLinearDerivative(y blas32.Vector) blas32.Vector {
	return vector.Map(y, func(e float32) float32 {
		if e > 0 {
			return 1.0
		}
		return 0.0
	})
}

func LinearDerivative(y blas32.Vector) blas32.Vector {
	return vector.Map(y, func(float32) float32 { return 1.0 })
}

var ErrNoDerivative = errors.New("unit: no derivative")

// Derivative returns the derivative for k. Softmax shares the linear
// derivative: the error is assumed to come from a cross entropy loss.
func (k Kind) Derivative() (Derivative, error) {
	switch k {
	case Sigmoid:
		return SigmoidDerivative, nil
	case Tanh:
		return TanhDerivative, nil
	case RectLinear:
		return RectLinearDerivative, nil
	case Linear, Softmax:
		return LinearDerivative, nil
	}
	return nil, errors.Wrapf(ErrNoDerivative, "%s", k)
}
