package ddpg

import (
	"github.com/samuelfneumann/ddpg/expreplay"
	"gorgonia.org/tensor"
)

// scope holds the intermediate values of a single training step. All
// tensors created or received during the step are tracked and returned
// to the tensor pool by release, and the batch arena is cleared.
type scope struct {
	batch   *expreplay.Batch
	targets []float64
	tensors []*tensor.Dense
}

func newScope(batchSize, stateDims, actionDims int) *scope {
	return &scope{
		batch:   expreplay.NewBatch(batchSize, stateDims, actionDims),
		targets: make([]float64, batchSize),
		tensors: make([]*tensor.Dense, 0, 16),
	}
}

// dense returns a (rows, cols) tensor backed by data and tracks it
func (s *scope) dense(rows, cols int, data []float64) *tensor.Dense {
	t := tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(data))
	s.tensors = append(s.tensors, t)
	return t
}

// track registers tensors created elsewhere during the step and
// returns the first one
func (s *scope) track(ts ...*tensor.Dense) *tensor.Dense {
	for _, t := range ts {
		if t != nil {
			s.tensors = append(s.tensors, t)
		}
	}
	if len(ts) == 0 {
		return nil
	}
	return ts[0]
}

// live returns the number of tensors currently held by the scope
func (s *scope) live() int {
	return len(s.tensors)
}

// release returns all tracked tensors and clears the arena
func (s *scope) release() {
	for i, t := range s.tensors {
		tensor.ReturnTensor(t)
		s.tensors[i] = nil
	}
	s.tensors = s.tensors[:0]

	s.batch.Zero()
	for i := range s.targets {
		s.targets[i] = 0
	}
}
