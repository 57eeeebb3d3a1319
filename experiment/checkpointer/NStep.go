package checkpointer

import (
	"fmt"

	ts "github.com/samuelfneumann/ddpg/timestep"
)

// nStep implements checkpointing every N steps
type nStep struct {
	interval int
	steps    int
	object   Serializable // Object to save

	// save stores each checkpoint. To save each checkpoint to its own
	// file use FileSaver, e.g.:
	//
	// n := NewNStep(10, object, FileSaver(FilenameEnumerator(0, "ckpt", ".bin")))
	save SaveFunc
}

// NewNStep returns a checkpointer that checkpoints every n steps.
func NewNStep(n int, object Serializable, save SaveFunc) (Checkpointer,
	error) {
	return NewNStepFrom(n, 0, object, save)
}

// NewNStepFrom returns a checkpointer that checkpoints every n steps
// and continues counting from start, the number of steps already taken
// by an earlier session of the same run.
func NewNStepFrom(n, start int, object Serializable, save SaveFunc) (
	Checkpointer, error) {
	if n < 1 {
		return nil, fmt.Errorf("newNStep: checkpoint interval must be "+
			"positive \n\thave(%v)", n)
	}
	if start < 0 {
		return nil, fmt.Errorf("newNStep: start step must be "+
			"non-negative \n\thave(%v)", start)
	}
	return &nStep{
		interval: n,
		steps:    start,
		object:   object,
		save:     save,
	}, nil
}

// Checkpoint counts environment steps and saves the tracked object
// every interval steps. The timestep itself is not inspected since
// timestep numbers restart each episode.
func (n *nStep) Checkpoint(ts.TimeStep) error {
	n.steps++
	if n.steps%n.interval != 0 {
		return nil
	}

	data, err := n.object.MarshalCheckpoint()
	if err != nil {
		return fmt.Errorf("checkpoint: %v", err)
	}
	if err := n.save(n.steps, data); err != nil {
		return fmt.Errorf("checkpoint: could not save step %d: %v", n.steps,
			err)
	}
	return nil
}
