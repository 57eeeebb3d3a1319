// Package agent defines the interfaces of agents that learn from
// interaction with an environment.
package agent

import (
	"github.com/samuelfneumann/ddpg/timestep"
	"gonum.org/v1/gonum/mat"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses actions in each state. The Policy chooses which actions
// are taken, and the Learner uses these actions to update the Policy.
type Agent interface {
	Learner
	Policy
}

// A Closer is an agent that must be closed after it is done learning
type Closer interface {
	Agent
	Close() error
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Step performs a single update to the learner
	Step() error

	// Observe records that an action lead to some timestep
	Observe(action mat.Vector, nextObs timestep.TimeStep) error

	// ObserveFirst records the first timestep in an episode
	ObserveFirst(timestep.TimeStep) error

	// EndEpisode performs cleanup at the end of an episode
	EndEpisode()
}

// Policy represents a policy that an agent can have.
//
// Policies determine how agents select actions. In evaluation mode a
// policy acts without exploration.
type Policy interface {
	SelectAction(t timestep.TimeStep) (*mat.VecDense, error)
	SetEval(eval bool) // Switch between evaluation and training mode
	IsEval() bool      // Indicates if in evaluation mode
}

// Checkpointer is an agent whose learned state can be saved and
// restored. The returned bytes are opaque to callers.
type Checkpointer interface {
	Agent
	MarshalCheckpoint() ([]byte, error)
	UnmarshalCheckpoint([]byte) error
}
