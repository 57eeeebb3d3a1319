// Package trackers implements Trackers of episodic data
package trackers

import (
	"fmt"

	"github.com/samuelfneumann/ddpg/experiment/tracker"
	ts "github.com/samuelfneumann/ddpg/timestep"
)

// episode accumulates the return of the current episode from
// sequential timesteps
type episode struct {
	lastTimeStep  int
	currentReturn float64
}

func newEpisode() episode {
	return episode{lastTimeStep: -1}
}

// track adds the reward of step to the return and reports whether the
// episode ended with step
func (e *episode) track(step ts.TimeStep) (bool, error) {
	// Episodes restart from their first timestep
	if step.First() {
		*e = newEpisode()
	}
	if e.lastTimeStep+1 != step.Number {
		return false, fmt.Errorf("track: last two timesteps tracked are "+
			"not sequential: timestep %v --> timestep %v", e.lastTimeStep,
			step.Number)
	}

	e.currentReturn += step.Reward
	e.lastTimeStep = step.Number
	return step.Last(), nil
}

// Return tracks and saves the episodic return in an experiment. When
// an environment returns a TimeStep, this Tracker will extract the
// reward and accumulate the return for each episode in the experiment.
//
// Note: An episode must finish for this Tracker to save its data.
// If the last episode in an experiment does not finish, that episode's
// return will not be saved.
type Return struct {
	episode
	episodeReturns []float64
	filename       string
}

// NewReturn creates and returns a new *Return Tracker that saves the
// gob encoded returns to filename
func NewReturn(filename string) *Return {
	return &Return{episode: newEpisode(), filename: filename}
}

// Track tracks the rewards seen on a timestep. Timesteps of an episode
// must be tracked in order.
func (r *Return) Track(step ts.TimeStep) error {
	last, err := r.track(step)
	if err != nil {
		return err
	}
	if last {
		r.episodeReturns = append(r.episodeReturns, r.currentReturn)
		r.episode = newEpisode()
	}
	return nil
}

// Returns returns the returns of all finished episodes
func (r *Return) Returns() []float64 {
	return append([]float64(nil), r.episodeReturns...)
}

// Save saves the data tracked by the Return Tracker to disk
func (r *Return) Save() error {
	return tracker.SaveData(r.filename, r.episodeReturns)
}
