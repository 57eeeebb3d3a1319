package approximator

import (
	"fmt"

	"github.com/samuelfneumann/ddpg/network"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Actor implements a deterministic policy μ(s) as an MLP with a tanh
// output layer, so that each action component lies in [-1, 1].
//
// The Actor is trained with the deterministic policy gradient. Given
// the gradient g = ∇ₐQ(s, a) of a critic at a = μ(s), Minimize descends
// the surrogate loss
//
//	L = -(1/n) Σᵢ gᵢ · μ(sᵢ)
//
// whose gradient with respect to the actor's weights equals the
// gradient of -mean Q(s, μ(s)). The critic is never touched by the
// actor's update.
//
// Training uses a graph with a fixed batch size. Predictions for other
// batch sizes run on separate graphs that are created when first needed
// and whose weights are copied from the training graph before each run.
type Actor struct {
	stateDims  int
	actionDims int
	batchSize  int

	// Training graph
	net         *network.MLP
	states      *G.Node
	actionGrads *G.Node
	loss        *G.Node
	vm          G.VM
	solver      G.Solver

	predictors map[int]*actorPredictor
}

// actorPredictor is a copy of an actor's network used for prediction
// with a specific batch size
type actorPredictor struct {
	net    *network.MLP
	states *G.Node
	vm     G.VM
}

// NewActor returns a new Actor
func NewActor(c Config) (*Actor, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newActor: %v", err)
	}

	g := G.NewGraph()
	states := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(c.BatchSize, c.StateDims),
		G.WithName("states"),
		G.WithInit(G.Zeroes()),
	)

	net, err := network.NewMLP([]*G.Node{states}, c.ActionDims,
		c.HiddenSizes, c.Biases, c.Activations, network.TanH(),
		c.InitWFn.InitWFn())
	if err != nil {
		return nil, fmt.Errorf("newActor: could not create policy "+
			"network: %v", err)
	}

	a := &Actor{
		stateDims:  c.StateDims,
		actionDims: c.ActionDims,
		batchSize:  c.BatchSize,
		net:        net,
		states:     states,
		predictors: make(map[int]*actorPredictor),
	}

	if c.Solver == nil {
		a.vm = G.NewTapeMachine(g)
		return a, nil
	}

	// Deterministic policy gradient surrogate loss
	actionGrads := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(c.BatchSize, c.ActionDims),
		G.WithName("actionGradients"),
		G.WithInit(G.Zeroes()),
	)
	loss := G.Must(G.HadamardProd(actionGrads, net.Prediction()))
	loss = G.Must(G.Sum(loss))
	loss = G.Must(G.Mul(loss, G.NewConstant(-1.0/float64(c.BatchSize))))

	if _, err := G.Grad(loss, net.Learnables()...); err != nil {
		return nil, fmt.Errorf("newActor: could not compute policy "+
			"gradient: %v", err)
	}

	a.actionGrads = actionGrads
	a.loss = loss
	a.solver = c.Solver.Create()
	a.vm = G.NewTapeMachine(g, G.BindDualValues(net.Learnables()...))

	return a, nil
}

// predictor returns the prediction graph for batches of n states
func (a *Actor) predictor(n int) (*actorPredictor, error) {
	if p, ok := a.predictors[n]; ok {
		return p, nil
	}

	g := G.NewGraph()
	states := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(n, a.stateDims),
		G.WithName("states"),
		G.WithInit(G.Zeroes()),
	)
	net, err := a.net.CloneTo([]*G.Node{states})
	if err != nil {
		return nil, err
	}

	p := &actorPredictor{net: net, states: states, vm: G.NewTapeMachine(g)}
	a.predictors[n] = p
	return p, nil
}

// Predict returns the actions μ(s) for a (n, stateDims) batch of
// states as a new (n, actionDims) tensor
func (a *Actor) Predict(states *tensor.Dense) (*tensor.Dense, error) {
	if err := checkShape("predict", "states", states, -1,
		a.stateDims); err != nil {
		return nil, err
	}
	n := states.Shape()[0]

	p, err := a.predictor(n)
	if err != nil {
		return nil, fmt.Errorf("predict: could not create predictor: %v", err)
	}
	if err := p.net.Set(a.net); err != nil {
		return nil, fmt.Errorf("predict: %v", err)
	}

	if err := G.Let(p.states, states); err != nil {
		return nil, fmt.Errorf("predict: could not set states: %v", err)
	}
	defer p.vm.Reset()
	if err := p.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("predict: %v", err)
	}

	return copyValue(p.net.Output(), n, a.actionDims), nil
}

// Minimize takes one solver step on the deterministic policy gradient
// surrogate loss, where actionGrads holds ∇ₐQ(s, a) at a = μ(s) for
// each of the states.
func (a *Actor) Minimize(states, actionGrads *tensor.Dense) error {
	if a.solver == nil {
		return fmt.Errorf("minimize: actor has no solver")
	}
	if err := checkShape("minimize", "states", states, a.batchSize,
		a.stateDims); err != nil {
		return err
	}
	if err := checkShape("minimize", "action gradients", actionGrads,
		a.batchSize, a.actionDims); err != nil {
		return err
	}

	if err := G.Let(a.states, states); err != nil {
		return fmt.Errorf("minimize: could not set states: %v", err)
	}
	if err := G.Let(a.actionGrads, actionGrads); err != nil {
		return fmt.Errorf("minimize: could not set action gradients: %v",
			err)
	}

	defer a.vm.Reset()
	if err := a.vm.RunAll(); err != nil {
		return fmt.Errorf("minimize: %v", err)
	}
	if err := a.solver.Step(a.net.Model()); err != nil {
		return fmt.Errorf("minimize: could not step solver: %v", err)
	}
	return nil
}

// Weights returns copies of the actor's weights
func (a *Actor) Weights() []*tensor.Dense {
	return a.net.Weights()
}

// SetWeights sets the actor's weights. The argument must have the
// layout returned by Weights of an actor with the same architecture.
func (a *Actor) SetWeights(weights []*tensor.Dense) error {
	return a.net.SetWeights(weights)
}

// StateDims returns the number of state features the actor takes
func (a *Actor) StateDims() int { return a.stateDims }

// ActionDims returns the number of action components the actor outputs
func (a *Actor) ActionDims() int { return a.actionDims }

// BatchSize returns the batch size accepted by Minimize
func (a *Actor) BatchSize() int { return a.batchSize }

// Close releases the actor's VMs
func (a *Actor) Close() error {
	var firstErr error
	for _, vm := range a.vms() {
		if err := vm.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *Actor) vms() []G.VM {
	vms := []G.VM{a.vm}
	for _, p := range a.predictors {
		vms = append(vms, p.vm)
	}
	return vms
}

// copyValue copies a Gorgonia value into a new (rows, cols) tensor
func copyValue(v G.Value, rows, cols int) *tensor.Dense {
	data := make([]float64, rows*cols)
	copy(data, v.Data().([]float64))
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(data))
}
