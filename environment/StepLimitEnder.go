package environment

import "github.com/samuelfneumann/ddpg/timestep"

// StepLimit implements the Ender interface to end episodes at specific
// timestep limits. An episode cut off by a StepLimit ends with
// timestep.Timeout, since the state it ends in is not terminal.
type StepLimit struct {
	episodeSteps int
}

// NewStepLimit creates and returns a new step limit
func NewStepLimit(episodeSteps int) *StepLimit {
	return &StepLimit{episodeSteps}
}

// End determines whether or not the current episode should be ended,
// returning a boolean to indicate episode termination.
func (s *StepLimit) End(t *timestep.TimeStep) bool {
	if t.Number >= s.episodeSteps {
		t.StepType = timestep.Last
		t.SetEnd(timestep.Timeout)
		return true
	}
	return false
}
