// Package approximator implements the actor and critic function
// approximators of a deterministic actor-critic agent as multi-layered
// perceptrons on Gorgonia computational graphs.
package approximator

import (
	"fmt"

	"github.com/samuelfneumann/ddpg/initwfn"
	"github.com/samuelfneumann/ddpg/network"
	"github.com/samuelfneumann/ddpg/solver"
)

// Config describes the network architecture and optimizer of an
// approximator.
//
// Hidden layer i has HiddenSizes[i] units, a bias unit if Biases[i] is
// true, and activation Activations[i]. Solver may be nil, in which case
// the approximator can predict but cannot be trained; this is the case
// for target networks.
type Config struct {
	StateDims  int
	ActionDims int

	// BatchSize is the number of samples in each training batch
	BatchSize int

	HiddenSizes []int
	Biases      []bool
	Activations []*network.Activation

	InitWFn *initwfn.InitWFn
	Solver  *solver.Solver
}

// Validate checks a Config to ensure it is a valid configuration
func (c Config) Validate() error {
	if c.StateDims < 1 {
		return fmt.Errorf("state dimensions must be >= 1 \n\thave(%v)",
			c.StateDims)
	}
	if c.ActionDims < 1 {
		return fmt.Errorf("action dimensions must be >= 1 \n\thave(%v)",
			c.ActionDims)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("cannot have batch size %v < 1", c.BatchSize)
	}
	if len(c.HiddenSizes) != len(c.Biases) ||
		len(c.HiddenSizes) != len(c.Activations) {
		return fmt.Errorf("must have one bias and one activation per "+
			"hidden layer \n\thave(layers: %v, biases: %v, activations: %v)",
			len(c.HiddenSizes), len(c.Biases), len(c.Activations))
	}
	for i, act := range c.Activations {
		if act == nil {
			return fmt.Errorf("activation of hidden layer %v is nil", i)
		}
	}
	if c.InitWFn == nil {
		return fmt.Errorf("no weight initializer given")
	}
	return nil
}

// WithoutSolver returns a copy of the Config with no solver, suitable
// for constructing target networks
func (c Config) WithoutSolver() Config {
	c.Solver = nil
	return c
}
