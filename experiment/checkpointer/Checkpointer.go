// Package checkpointer implements periodic checkpointing of agents
// during an experiment
package checkpointer

import (
	ts "github.com/samuelfneumann/ddpg/timestep"
)

// Serializable is an object whose state can be encoded and restored
type Serializable interface {
	MarshalCheckpoint() ([]byte, error)
	UnmarshalCheckpoint([]byte) error
}

// SaveFunc stores an encoded checkpoint taken after a number of
// environment steps
type SaveFunc func(step int, data []byte) error

// Checkpointer checkpoints/saves serializable objects based on
// timestep.TimeSteps
type Checkpointer interface {
	Checkpoint(ts.TimeStep) error
}
