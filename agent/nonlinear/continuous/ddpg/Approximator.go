package ddpg

import (
	"gorgonia.org/tensor"
)

// Approximator is a function approximator whose parameters can be read
// and overwritten. Target networks are kept in sync with their online
// counterparts through this interface.
type Approximator interface {
	// Weights returns copies of the parameters in a fixed order
	Weights() []*tensor.Dense

	// SetWeights copies the given parameters into the approximator.
	// It must accept the output of Weights of a structurally identical
	// approximator.
	SetWeights([]*tensor.Dense) error
}

// Actor is a deterministic policy μ(s). Each component of a predicted
// action lies in [-1, 1].
type Actor interface {
	Approximator

	// Predict returns the (n, actionDims) actions for (n, stateDims)
	// states
	Predict(states *tensor.Dense) (*tensor.Dense, error)

	// Minimize takes one gradient step that increases Q(s, μ(s)), where
	// actionGrads holds ∇ₐQ(s, a) evaluated at a = μ(s)
	Minimize(states, actionGrads *tensor.Dense) error
}

// Critic is an action value function Q(s, a)
type Critic interface {
	Approximator

	// Predict returns the (n, 1) action values of (n, stateDims) states
	// and (n, actionDims) actions
	Predict(states, actions *tensor.Dense) (*tensor.Dense, error)

	// ActionGrad returns ∇ₐQ(s, a) with shape (n, actionDims)
	ActionGrad(states, actions *tensor.Dense) (*tensor.Dense, error)

	// Minimize takes one gradient step on the mean squared error
	// between Q(s, a) and targets and returns the loss before the step.
	// The targets are constants.
	Minimize(states, actions, targets *tensor.Dense) (float64, error)
}
