// Package experiment implements functionality for running an experiment
package experiment

import (
	"context"
	"fmt"

	"github.com/samuelfneumann/ddpg/agent"
	"github.com/samuelfneumann/ddpg/environment/envconfig"
	"github.com/samuelfneumann/ddpg/experiment/checkpointer"
	"github.com/samuelfneumann/ddpg/experiment/tracker"
)

// Experiment outlines structs that can run experiments. The Run()
// method runs all episodes until the maximum timestep limit is reached
// or the context is cancelled. The RunEpisode() method runs a single
// episode.
//
// Experiments send each TimeStep to Trackers, which determine which
// data generated during the experiment is saved, and to Checkpointers,
// which periodically save the agent. Save() saves the data of all
// Trackers.
type Experiment interface {
	Run(ctx context.Context) error

	// RunEpisode returns whether or not the step limit was reached
	RunEpisode(ctx context.Context) (bool, error)

	// Save all tracked data
	Save() error

	// Register adds a new tracker.Tracker to the (possibly already
	// running) experiment
	Register(t tracker.Tracker)

	// RegisterCheckpointer adds a checkpointer to the experiment
	RegisterCheckpointer(c checkpointer.Checkpointer)

	// Agent returns the agent being run
	Agent() agent.Agent
}

// Type is a type of experiment
type Type string

const (
	OnlineExp Type = "OnlineExperiment"
)

// Config represents a configuration of an experiment.
type Config struct {
	Type
	MaxSteps  uint
	EnvConf   envconfig.Config
	AgentConf agent.TypedConfig
}

// Validate checks a Config to ensure it is a valid configuration
func (c Config) Validate() error {
	if c.Type != OnlineExp {
		return fmt.Errorf("no such experiment type %q", c.Type)
	}
	if c.MaxSteps == 0 {
		return fmt.Errorf("maximum number of steps must be positive")
	}
	if err := c.EnvConf.Validate(); err != nil {
		return fmt.Errorf("invalid environment: %v", err)
	}
	if c.AgentConf.Config == nil {
		return fmt.Errorf("no agent configuration given")
	}
	if err := c.AgentConf.Validate(); err != nil {
		return fmt.Errorf("invalid agent: %v", err)
	}
	return nil
}

// CreateExp creates the experiment described by the Config, with the
// environment and agent seeded by seed
func (c Config) CreateExp(seed uint64) (Experiment, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}

	env, _, err := c.EnvConf.Create(seed)
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create environment: %v",
			err)
	}
	a, err := c.AgentConf.CreateAgent(env, seed)
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create agent: %v", err)
	}

	return NewOnline(env, a, c.MaxSteps, nil, nil), nil
}
