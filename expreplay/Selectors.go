package expreplay

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Selector implements functionality for choosing which slots of an
// experience replay buffer should be sampled
type Selector interface {
	// choose selects n distinct slots in [0, size)
	choose(n, size int) []int
}

// uniformSelector is a Selector which selects slots uniformly randomly
// without replacement
type uniformSelector struct {
	src rand.Source
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly, without replacement, from an experience replay buffer
func NewUniformSelector(seed uint64) Selector {
	return &uniformSelector{src: rand.NewSource(seed)}
}

// choose selects n distinct slots uniformly from [0, size). Every slot
// currently in the buffer can be selected, not only the first n.
func (u *uniformSelector) choose(n, size int) []int {
	selected := make([]int, n)
	sampleuv.WithoutReplacement(selected, size, u.src)
	return selected
}

// fifoSelector is a Selector which always selects the n lowest slots.
// It is deterministic and is used to test code that consumes batches.
type fifoSelector struct{}

// NewFifoSelector returns a new Selector which selects the first n
// slots of the buffer in order
func NewFifoSelector() Selector {
	return fifoSelector{}
}

func (fifoSelector) choose(n, _ int) []int {
	selected := make([]int, n)
	for i := range selected {
		selected[i] = i
	}
	return selected
}
