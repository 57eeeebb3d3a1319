package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samuelfneumann/ddpg/agent"
	env "github.com/samuelfneumann/ddpg/environment"
	"github.com/samuelfneumann/ddpg/experiment/checkpointer"
	"github.com/samuelfneumann/ddpg/experiment/tracker"
	ts "github.com/samuelfneumann/ddpg/timestep"
)

// Online is an Experiment that runs an agent online only. No offline
// evaluation is performed.
type Online struct {
	env.Environment
	agent         agent.Agent
	maxSteps      uint
	currentSteps  uint
	episodes      int
	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
	logger        *slog.Logger
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for. Trackers determine what
// data is saved and checkpointers periodically save the agent.
func NewOnline(e env.Environment, a agent.Agent, steps uint,
	t []tracker.Tracker, c []checkpointer.Checkpointer) *Online {
	return &Online{
		Environment:   e,
		agent:         a,
		maxSteps:      steps,
		trackers:      t,
		checkpointers: c,
		logger:        slog.Default().With("component", "experiment"),
	}
}

// SetLogger sets the logger that episode summaries are written to
func (o *Online) SetLogger(l *slog.Logger) {
	o.logger = l.With("component", "experiment")
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RegisterCheckpointer registers a checkpointer with the experiment
func (o *Online) RegisterCheckpointer(c checkpointer.Checkpointer) {
	o.checkpointers = append(o.checkpointers, c)
}

// Agent returns the agent run by the experiment
func (o *Online) Agent() agent.Agent {
	return o.agent
}

// Steps returns the number of environment steps taken so far,
// including those of earlier sessions passed to Resume
func (o *Online) Steps() uint {
	return o.currentSteps
}

// Resume continues a run whose earlier sessions took steps environment
// steps and finished episodes episodes. The step limit counts the
// earlier steps.
func (o *Online) Resume(steps uint, episodes int) {
	o.currentSteps = steps
	o.episodes = episodes
}

// RunEpisode runs a single episode of the experiment
func (o *Online) RunEpisode(ctx context.Context) (bool, error) {
	step, err := o.Environment.Reset()
	if err != nil {
		return false, fmt.Errorf("runEpisode: could not reset environment: "+
			"%v", err)
	}
	if err := o.agent.ObserveFirst(step); err != nil {
		return false, fmt.Errorf("runEpisode: %v", err)
	}
	if err := o.track(step); err != nil {
		return false, err
	}

	episodeReturn := 0.0
	for !step.Last() && o.currentSteps < o.maxSteps {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		o.currentSteps++

		// Select action, step in environment
		action, err := o.agent.SelectAction(step)
		if err != nil {
			return false, fmt.Errorf("runEpisode: %v", err)
		}
		step, _, err = o.Environment.Step(action)
		if err != nil {
			return false, fmt.Errorf("runEpisode: could not step "+
				"environment: %v", err)
		}
		episodeReturn += step.Reward

		if err := o.track(step); err != nil {
			return false, err
		}

		// Observe the timestep and step the agent
		if err := o.agent.Observe(action, step); err != nil {
			return false, fmt.Errorf("runEpisode: %v", err)
		}
		if err := o.agent.Step(); err != nil {
			return false, fmt.Errorf("runEpisode: %v", err)
		}

		if err := o.checkpoint(step); err != nil {
			return false, err
		}
	}
	o.agent.EndEpisode()

	if step.Last() {
		o.logger.Info("episode finished", "episode", o.episodes,
			"return", episodeReturn, "steps", step.Number,
			"end", step.EndType(), "totalSteps", o.currentSteps)
		o.episodes++
	}

	// Return whether or not the max timestep limit has been reached
	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run(ctx context.Context) error {
	for {
		ended, err := o.RunEpisode(ctx)
		if err != nil {
			return err
		}
		if ended {
			return nil
		}
	}
}

// Save saves all the data cached by the Trackers
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}
	return nil
}

// track tracks the current timestep by caching its data in each tracker
func (o *Online) track(t ts.TimeStep) error {
	for _, tr := range o.trackers {
		if err := tr.Track(t); err != nil {
			return fmt.Errorf("track: %v", err)
		}
	}
	return nil
}

// checkpoint passes the current timestep to each checkpointer
func (o *Online) checkpoint(t ts.TimeStep) error {
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(t); err != nil {
			return fmt.Errorf("checkpoint: %v", err)
		}
	}
	return nil
}
