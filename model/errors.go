package model

import (
	"github.com/pkg/errors"
)

var (
	ErrConfig    = errors.New("model: invalid configuration")
	ErrDimension = errors.New("model: dimension mismatch")
)

func dimensionf(format string, args ...any) error {
	return errors.Wrapf(ErrDimension, format, args...)
}

func configf(format string, args ...any) error {
	return errors.Wrapf(ErrConfig, format, args...)
}

// CheckLen returns ErrDimension unless vec holds exactly n elements.
func CheckLen(name string, vec []float32, n int) error {
	if len(vec) != n {
		return dimensionf("%s: len = %d, want %d", name, len(vec), n)
	}
	return nil
}
