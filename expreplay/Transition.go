package expreplay

import "fmt"

// Transition is a single (S, A, R, S', done) tuple of experience.
type Transition struct {
	State     []float64
	Action    []float64
	Reward    float64
	NextState []float64
	Done      bool
}

// Clone returns a deep copy of the Transition
func (t Transition) Clone() Transition {
	return Transition{
		State:     append([]float64(nil), t.State...),
		Action:    append([]float64(nil), t.Action...),
		Reward:    t.Reward,
		NextState: append([]float64(nil), t.NextState...),
		Done:      t.Done,
	}
}

func (t Transition) String() string {
	return fmt.Sprintf("Transition{S: %v, A: %v, R: %v, S': %v, Done: %v}",
		t.State, t.Action, t.Reward, t.NextState, t.Done)
}

// Batch holds a batch of transitions stacked field by field in row
// major order. A Batch is meant to be allocated once and refilled by
// Buffer.SampleInto on every training step.
type Batch struct {
	States     []float64 // Size × stateDims
	Actions    []float64 // Size × actionDims
	Rewards    []float64 // Size
	NextStates []float64 // Size × stateDims
	Dones      []float64 // Size, 1.0 if the transition ended the episode

	size       int
	stateDims  int
	actionDims int
}

// NewBatch allocates a Batch of n transitions
func NewBatch(n, stateDims, actionDims int) *Batch {
	return &Batch{
		States:     make([]float64, n*stateDims),
		Actions:    make([]float64, n*actionDims),
		Rewards:    make([]float64, n),
		NextStates: make([]float64, n*stateDims),
		Dones:      make([]float64, n),
		size:       n,
		stateDims:  stateDims,
		actionDims: actionDims,
	}
}

// Size returns the number of transitions in the batch
func (b *Batch) Size() int { return b.size }

// StateDims returns the length of each state in the batch
func (b *Batch) StateDims() int { return b.stateDims }

// ActionDims returns the length of each action in the batch
func (b *Batch) ActionDims() int { return b.actionDims }

// Zero clears all data held in the batch
func (b *Batch) Zero() {
	for _, s := range [][]float64{b.States, b.Actions, b.Rewards,
		b.NextStates, b.Dones} {
		for i := range s {
			s[i] = 0
		}
	}
}
