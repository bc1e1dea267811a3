package cd

import (
	"github.com/pkg/errors"
	"github.com/sw965/ebm/model"
)

// Sampling selects whether Gibbs steps propagate mean activations or
// sampled states.
type Sampling int

const (
	// Mean propagates activations as returned by Forward and Backward.
	Mean Sampling = iota
	// Stochastic draws the hidden layer before every Backward and the
	// visible-side layers before every Forward. Latent layers of the
	// positive configuration are drawn as well.
	Stochastic
)

// SparsitySign selects how the sparsity term enters the hidden bias
// gradient. Weight gradients always subtract it.
type SparsitySign int

const (
	SparsityPenalize SparsitySign = iota
	SparsityAscend
)

// ContextUpdate selects how recursive models advance their context after
// each example.
type ContextUpdate int

const (
	// ContextPush calls Push(x).
	ContextPush ContextUpdate = iota
	// ContextPositive sets the context to the positive hidden activation.
	ContextPositive
)

type Config struct {
	LearningRate    float32
	Momentum        float32
	L2              float32
	SparsityPenalty float32
	SparsityTarget  float32
	SparsityDecay   float32
	// K is the number of Gibbs steps, or the number of chains drawn by
	// persistent CD.
	K             int
	Sampling      Sampling
	SparsitySign  SparsitySign
	ContextUpdate ContextUpdate
	// ResetBatch resets recursive models before every batch.
	ResetBatch bool
}

func DefaultConfig() Config {
	return Config{
		LearningRate:    0.01,
		Momentum:        0.9,
		L2:              0.0001,
		SparsityPenalty: 0.001,
		SparsityTarget:  0.1,
		SparsityDecay:   0.96,
		K:               1,
	}
}

// RecursiveConfig trains a Srrbm with lighter momentum and heavier L2.
func RecursiveConfig() Config {
	c := DefaultConfig()
	c.Momentum = 0.4
	c.L2 = 0.001
	return c
}

// StochasticConfig trains a Drrbm: sampled Gibbs steps, the positive hidden
// activation as the next context and a reset before every batch.
func StochasticConfig() Config {
	c := DefaultConfig()
	c.Sampling = Stochastic
	c.ContextUpdate = ContextPositive
	c.ResetBatch = true
	return c
}

func (c Config) Validate() error {
	switch {
	case c.LearningRate <= 0:
		return errors.Wrapf(model.ErrConfig, "learning rate %v", c.LearningRate)
	case c.Momentum < 0:
		return errors.Wrapf(model.ErrConfig, "momentum %v", c.Momentum)
	case c.L2 < 0:
		return errors.Wrapf(model.ErrConfig, "l2 %v", c.L2)
	case c.SparsityPenalty < 0:
		return errors.Wrapf(model.ErrConfig, "sparsity penalty %v", c.SparsityPenalty)
	case c.SparsityTarget < 0 || c.SparsityTarget > 1:
		return errors.Wrapf(model.ErrConfig, "sparsity target %v", c.SparsityTarget)
	case c.SparsityDecay < 0 || c.SparsityDecay >= 1:
		return errors.Wrapf(model.ErrConfig, "sparsity decay %v", c.SparsityDecay)
	case c.K < 1:
		return errors.Wrapf(model.ErrConfig, "k = %d", c.K)
	case c.Sampling != Mean && c.Sampling != Stochastic:
		return errors.Wrapf(model.ErrConfig, "sampling %d", c.Sampling)
	case c.SparsitySign != SparsityPenalize && c.SparsitySign != SparsityAscend:
		return errors.Wrapf(model.ErrConfig, "sparsity sign %d", c.SparsitySign)
	case c.ContextUpdate != ContextPush && c.ContextUpdate != ContextPositive:
		return errors.Wrapf(model.ErrConfig, "context update %d", c.ContextUpdate)
	}
	return nil
}

// Options toggles the terms of a single update.
type Options struct {
	Momentum bool
	L2       bool
	Sparsity bool
}

func AllOptions() Options {
	return Options{Momentum: true, L2: true, Sparsity: true}
}
