// Package expreplay implements a fixed-capacity experience replay
// buffer with uniform random sampling.
package expreplay

import (
	"fmt"
)

// Buffer implements an experience replay buffer of fixed capacity.
//
// Transitions are stored in flat caches, one per field, allocated once
// at construction so that memory use is bounded by the capacity no
// matter how many transitions are added. Until the buffer is full,
// transitions are appended. Afterwards each new transition overwrites
// the slot under the write cursor and the cursor advances by one,
// wrapping around at the capacity, so the oldest transition is evicted
// first.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	stateCache     []float64
	actionCache    []float64
	rewardCache    []float64
	nextStateCache []float64
	doneCache      []bool

	cursor int // Next slot to overwrite once full
	size   int

	// Outlines how data is sampled
	sampler Selector

	capacity   int
	stateDims  int
	actionDims int
}

// New returns a new Buffer holding at most capacity transitions with
// states of length stateDims and actions of length actionDims. Samples
// are drawn uniformly using the given seed.
func New(capacity, stateDims, actionDims int, seed uint64) (*Buffer, error) {
	return NewWithSelector(NewUniformSelector(seed), capacity, stateDims,
		actionDims)
}

// NewWithSelector returns a new Buffer whose samples are chosen by
// sampler.
func NewWithSelector(sampler Selector, capacity, stateDims,
	actionDims int) (*Buffer, error) {
	if capacity < 1 {
		return nil, wrap("new", ErrInvalidArgument,
			fmt.Sprintf("capacity must be >= 1 \n\twant(>=1)\n\thave(%v)",
				capacity))
	}
	if stateDims < 1 || actionDims < 1 {
		return nil, wrap("new", ErrInvalidArgument,
			fmt.Sprintf("state and action dimensions must be >= 1 "+
				"\n\thave(%v, %v)", stateDims, actionDims))
	}

	return &Buffer{
		stateCache:     make([]float64, capacity*stateDims),
		actionCache:    make([]float64, capacity*actionDims),
		rewardCache:    make([]float64, capacity),
		nextStateCache: make([]float64, capacity*stateDims),
		doneCache:      make([]bool, capacity),

		sampler: sampler,

		capacity:   capacity,
		stateDims:  stateDims,
		actionDims: actionDims,
	}, nil
}

// Add adds a transition to the buffer, evicting the oldest transition
// if the buffer is full. The transition's data is copied.
func (b *Buffer) Add(t Transition) error {
	if len(t.State) != b.stateDims || len(t.NextState) != b.stateDims {
		return wrap("add", ErrShapeMismatch,
			fmt.Sprintf("invalid state size \n\twant(%v)\n\thave(%v, %v)",
				b.stateDims, len(t.State), len(t.NextState)))
	}
	if len(t.Action) != b.actionDims {
		return wrap("add", ErrShapeMismatch,
			fmt.Sprintf("invalid action size \n\twant(%v)\n\thave(%v)",
				b.actionDims, len(t.Action)))
	}

	var index int
	if b.size < b.capacity {
		index = b.size
		b.size++
	} else {
		index = b.cursor
		b.cursor = (b.cursor + 1) % b.capacity
	}

	// Copy states
	stateInd := index * b.stateDims
	copy(b.stateCache[stateInd:stateInd+b.stateDims], t.State)
	copy(b.nextStateCache[stateInd:stateInd+b.stateDims], t.NextState)

	// Copy actions
	actionInd := index * b.actionDims
	copy(b.actionCache[actionInd:actionInd+b.actionDims], t.Action)

	b.rewardCache[index] = t.Reward
	b.doneCache[index] = t.Done

	return nil
}

// choose validates a request for n samples and selects the slots
func (b *Buffer) choose(op string, n int) ([]int, error) {
	if n < 0 {
		return nil, wrap(op, ErrInvalidArgument,
			fmt.Sprintf("batch size must be >= 0 \n\thave(%v)", n))
	}
	if n == 0 {
		return []int{}, nil
	}
	if n > b.size {
		return nil, wrap(op, ErrInvalidArgument,
			fmt.Sprintf("sample size (%v) is greater than buffer size (%v)",
				n, b.size))
	}
	return b.sampler.choose(n, b.size), nil
}

// Sample returns n distinct transitions drawn uniformly at random
// from the buffer. The order of the returned transitions carries no
// meaning. Sample(0) returns an empty slice. Sample returns an error
// satisfying IsInvalidArgument if n is negative or exceeds the number
// of stored transitions.
func (b *Buffer) Sample(n int) ([]Transition, error) {
	indices, err := b.choose("sample", n)
	if err != nil {
		return nil, err
	}

	transitions := make([]Transition, len(indices))
	for i, index := range indices {
		transitions[i] = b.at(index)
	}
	return transitions, nil
}

// SampleInto draws batch.Size() distinct transitions uniformly at
// random and writes them into batch, overwriting its contents.
func (b *Buffer) SampleInto(batch *Batch) error {
	if batch.stateDims != b.stateDims || batch.actionDims != b.actionDims {
		return wrap("sampleInto", ErrShapeMismatch,
			fmt.Sprintf("batch dimensions (%v, %v) do not match buffer "+
				"dimensions (%v, %v)", batch.stateDims, batch.actionDims,
				b.stateDims, b.actionDims))
	}

	indices, err := b.choose("sampleInto", batch.Size())
	if err != nil {
		return err
	}

	for i, index := range indices {
		batchStartInd := i * b.stateDims
		expStartInd := index * b.stateDims
		copy(batch.States[batchStartInd:batchStartInd+b.stateDims],
			b.stateCache[expStartInd:expStartInd+b.stateDims],
		)
		copy(batch.NextStates[batchStartInd:batchStartInd+b.stateDims],
			b.nextStateCache[expStartInd:expStartInd+b.stateDims],
		)

		batchStartInd = i * b.actionDims
		expStartInd = index * b.actionDims
		copy(batch.Actions[batchStartInd:batchStartInd+b.actionDims],
			b.actionCache[expStartInd:expStartInd+b.actionDims],
		)

		batch.Rewards[i] = b.rewardCache[index]
		if b.doneCache[index] {
			batch.Dones[i] = 1.0
		} else {
			batch.Dones[i] = 0.0
		}
	}
	return nil
}

// At returns a copy of the transition stored at slot
func (b *Buffer) At(slot int) (Transition, error) {
	if slot < 0 || slot >= b.size {
		return Transition{}, wrap("at", ErrInvalidArgument,
			fmt.Sprintf("slot %v out of range [0, %v)", slot, b.size))
	}
	return b.at(slot), nil
}

// at returns a copy of the transition at index
func (b *Buffer) at(index int) Transition {
	stateInd := index * b.stateDims
	actionInd := index * b.actionDims

	t := Transition{
		State:     make([]float64, b.stateDims),
		Action:    make([]float64, b.actionDims),
		Reward:    b.rewardCache[index],
		NextState: make([]float64, b.stateDims),
		Done:      b.doneCache[index],
	}
	copy(t.State, b.stateCache[stateInd:stateInd+b.stateDims])
	copy(t.NextState, b.nextStateCache[stateInd:stateInd+b.stateDims])
	copy(t.Action, b.actionCache[actionInd:actionInd+b.actionDims])

	return t
}

// Len returns the current number of transitions in the buffer
func (b *Buffer) Len() int {
	return b.size
}

// Capacity returns the maximum number of transitions allowed in the
// buffer
func (b *Buffer) Capacity() int {
	return b.capacity
}

// StateDims returns the length of states stored in the buffer
func (b *Buffer) StateDims() int {
	return b.stateDims
}

// ActionDims returns the length of actions stored in the buffer
func (b *Buffer) ActionDims() int {
	return b.actionDims
}

// String returns the string representation of the buffer
func (b *Buffer) String() string {
	baseStr := "Size: %v/%v \nCursor: %v \nStates: %v \nActions: %v " +
		"\nRewards: %v \nNext States: %v \nDones: %v"
	return fmt.Sprintf(baseStr, b.size, b.capacity, b.cursor,
		b.stateCache[:b.size*b.stateDims], b.actionCache[:b.size*b.actionDims],
		b.rewardCache[:b.size], b.nextStateCache[:b.size*b.stateDims],
		b.doneCache[:b.size])
}
