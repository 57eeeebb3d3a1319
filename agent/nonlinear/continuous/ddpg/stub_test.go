package ddpg

import (
	"errors"
	"fmt"

	"gorgonia.org/tensor"
)

// callLog records the order in which approximator methods are called
type callLog struct {
	calls []string
}

func (l *callLog) record(name, method string) {
	if l != nil {
		l.calls = append(l.calls, name+"."+method)
	}
}

// index returns the position of the first call, or -1
func (l *callLog) index(call string) int {
	for i, c := range l.calls {
		if c == call {
			return i
		}
	}
	return -1
}

func weightTensor(rows, cols int, w []float64) []*tensor.Dense {
	return []*tensor.Dense{tensor.New(
		tensor.WithShape(rows, cols),
		tensor.WithBacking(append([]float64(nil), w...)),
	)}
}

func setWeight(w []float64, weights []*tensor.Dense) error {
	if len(weights) != 1 || len(weights[0].Data().([]float64)) != len(w) {
		return fmt.Errorf("setWeights: %w", ErrShapeMismatch)
	}
	copy(w, weights[0].Data().([]float64))
	return nil
}

// linearActor is the policy μ(s) = Ws trained by gradient descent with
// hand-computed gradients
type linearActor struct {
	name       string
	w          []float64 // actionDims × stateDims
	stateDims  int
	actionDims int
	stepSize   float64
	log        *callLog
}

func newLinearActor(name string, stateDims, actionDims int, log *callLog,
	w ...float64) *linearActor {
	return &linearActor{
		name:       name,
		w:          w,
		stateDims:  stateDims,
		actionDims: actionDims,
		stepSize:   0.1,
		log:        log,
	}
}

func (a *linearActor) StateDims() int  { return a.stateDims }
func (a *linearActor) ActionDims() int { return a.actionDims }

func (a *linearActor) Weights() []*tensor.Dense {
	return weightTensor(a.actionDims, a.stateDims, a.w)
}

func (a *linearActor) SetWeights(weights []*tensor.Dense) error {
	a.log.record(a.name, "setWeights")
	return setWeight(a.w, weights)
}

func (a *linearActor) Predict(states *tensor.Dense) (*tensor.Dense, error) {
	a.log.record(a.name, "predict")
	s := states.Data().([]float64)
	n := len(s) / a.stateDims
	out := make([]float64, n*a.actionDims)
	for i := 0; i < n; i++ {
		for k := 0; k < a.actionDims; k++ {
			for j := 0; j < a.stateDims; j++ {
				out[i*a.actionDims+k] += a.w[k*a.stateDims+j] *
					s[i*a.stateDims+j]
			}
		}
	}
	return tensor.New(tensor.WithShape(n, a.actionDims),
		tensor.WithBacking(out)), nil
}

// Minimize descends L = -(1/n) Σᵢ gᵢ · Wsᵢ, whose gradient is
// -(1/n) Σᵢ gᵢsᵢᵀ
func (a *linearActor) Minimize(states, actionGrads *tensor.Dense) error {
	a.log.record(a.name, "minimize")
	s := states.Data().([]float64)
	g := actionGrads.Data().([]float64)
	n := len(s) / a.stateDims
	for k := 0; k < a.actionDims; k++ {
		for j := 0; j < a.stateDims; j++ {
			grad := 0.0
			for i := 0; i < n; i++ {
				grad -= g[i*a.actionDims+k] * s[i*a.stateDims+j]
			}
			a.w[k*a.stateDims+j] -= a.stepSize * grad / float64(n)
		}
	}
	return nil
}

// linearCritic is the action value function Q(s, a) = w · [s, a]
type linearCritic struct {
	name       string
	w          []float64 // stateDims + actionDims
	stateDims  int
	actionDims int
	stepSize   float64
	log        *callLog

	fail error // Returned by Minimize if not nil

	// Arguments of the last Minimize call
	lastActions []float64
	lastTargets []float64
}

func newLinearCritic(name string, stateDims, actionDims int, log *callLog,
	w ...float64) *linearCritic {
	return &linearCritic{
		name:       name,
		w:          w,
		stateDims:  stateDims,
		actionDims: actionDims,
		stepSize:   0.1,
		log:        log,
	}
}

func (c *linearCritic) Weights() []*tensor.Dense {
	return weightTensor(1, len(c.w), c.w)
}

func (c *linearCritic) SetWeights(weights []*tensor.Dense) error {
	c.log.record(c.name, "setWeights")
	return setWeight(c.w, weights)
}

// features returns row i of [states, actions]
func (c *linearCritic) features(i int, s, a []float64) []float64 {
	x := append([]float64(nil), s[i*c.stateDims:(i+1)*c.stateDims]...)
	return append(x, a[i*c.actionDims:(i+1)*c.actionDims]...)
}

func (c *linearCritic) q(x []float64) float64 {
	q := 0.0
	for j := range x {
		q += c.w[j] * x[j]
	}
	return q
}

func (c *linearCritic) Predict(states, actions *tensor.Dense) (*tensor.Dense,
	error) {
	c.log.record(c.name, "predict")
	s := states.Data().([]float64)
	a := actions.Data().([]float64)
	n := len(s) / c.stateDims
	if len(a) != n*c.actionDims {
		return nil, fmt.Errorf("predict: %w", ErrShapeMismatch)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = c.q(c.features(i, s, a))
	}
	return tensor.New(tensor.WithShape(n, 1), tensor.WithBacking(out)), nil
}

func (c *linearCritic) ActionGrad(states, actions *tensor.Dense) (
	*tensor.Dense, error) {
	c.log.record(c.name, "actionGrad")
	n := len(states.Data().([]float64)) / c.stateDims
	out := make([]float64, 0, n*c.actionDims)
	for i := 0; i < n; i++ {
		out = append(out, c.w[c.stateDims:]...)
	}
	return tensor.New(tensor.WithShape(n, c.actionDims),
		tensor.WithBacking(out)), nil
}

// Minimize descends the mean squared error, whose gradient is
// (2/n) Σᵢ (Q(xᵢ) - yᵢ)xᵢ
func (c *linearCritic) Minimize(states, actions, targets *tensor.Dense) (
	float64, error) {
	c.log.record(c.name, "minimize")
	if c.fail != nil {
		return 0, c.fail
	}
	s := states.Data().([]float64)
	a := actions.Data().([]float64)
	y := targets.Data().([]float64)
	c.lastActions = append([]float64(nil), a...)
	c.lastTargets = append([]float64(nil), y...)

	n := len(y)
	grad := make([]float64, len(c.w))
	loss := 0.0
	for i := 0; i < n; i++ {
		x := c.features(i, s, a)
		diff := c.q(x) - y[i]
		loss += diff * diff / float64(n)
		for j := range grad {
			grad[j] += 2 * diff * x[j] / float64(n)
		}
	}
	for j := range c.w {
		c.w[j] -= c.stepSize * grad[j]
	}
	return loss, nil
}

var errStub = errors.New("stub failure")
