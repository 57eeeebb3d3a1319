package approximator

import (
	"fmt"

	"github.com/samuelfneumann/ddpg/network"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Critic implements an action value function Q(s, a) as an MLP with a
// single linear output. States and actions are concatenated at the
// input layer.
//
// Minimize takes one solver step on the mean squared error between
// Q(s, a) and externally computed targets, which are treated as
// constants. ActionGrad returns ∇ₐQ(s, a), which an Actor uses as its
// policy gradient signal.
type Critic struct {
	stateDims  int
	actionDims int
	batchSize  int

	// Training graph
	net     *network.MLP
	states  *G.Node
	actions *G.Node
	targets *G.Node
	loss    *G.Node
	lossVal G.Value
	vm      G.VM
	solver  G.Solver

	evaluators map[int]*criticEvaluator
}

// criticEvaluator is a copy of a critic's network used to compute
// action values and their gradients with respect to the action for a
// specific batch size
type criticEvaluator struct {
	net        *network.MLP
	states     *G.Node
	actions    *G.Node
	actionGrad G.Value
	vm         G.VM
}

// NewCritic returns a new Critic
func NewCritic(c Config) (*Critic, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newCritic: %v", err)
	}

	g := G.NewGraph()
	states, actions := criticInputs(g, c.BatchSize, c.StateDims,
		c.ActionDims)

	net, err := network.NewMLP([]*G.Node{states, actions}, 1, c.HiddenSizes,
		c.Biases, c.Activations, network.Identity(), c.InitWFn.InitWFn())
	if err != nil {
		return nil, fmt.Errorf("newCritic: could not create action value "+
			"network: %v", err)
	}

	critic := &Critic{
		stateDims:  c.StateDims,
		actionDims: c.ActionDims,
		batchSize:  c.BatchSize,
		net:        net,
		states:     states,
		actions:    actions,
		evaluators: make(map[int]*criticEvaluator),
	}

	if c.Solver == nil {
		critic.vm = G.NewTapeMachine(g)
		return critic, nil
	}

	// Mean squared error to the targets
	targets := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(net.Prediction().Shape()...),
		G.WithName("targets"),
		G.WithInit(G.Zeroes()),
	)
	loss := G.Must(G.Sub(net.Prediction(), targets))
	loss = G.Must(G.Square(loss))
	loss = G.Must(G.Mean(loss))
	G.Read(loss, &critic.lossVal)

	if _, err := G.Grad(loss, net.Learnables()...); err != nil {
		return nil, fmt.Errorf("newCritic: could not compute action value "+
			"gradient: %v", err)
	}

	critic.targets = targets
	critic.loss = loss
	critic.solver = c.Solver.Create()
	critic.vm = G.NewTapeMachine(g, G.BindDualValues(net.Learnables()...))

	return critic, nil
}

// criticInputs adds the state and action input nodes of a critic to g
func criticInputs(g *G.ExprGraph, batch, stateDims,
	actionDims int) (*G.Node, *G.Node) {
	states := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, stateDims),
		G.WithName("states"),
		G.WithInit(G.Zeroes()),
	)
	actions := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, actionDims),
		G.WithName("actions"),
		G.WithInit(G.Zeroes()),
	)
	return states, actions
}

// evaluator returns the evaluation graph for batches of n samples
func (c *Critic) evaluator(n int) (*criticEvaluator, error) {
	if e, ok := c.evaluators[n]; ok {
		return e, nil
	}

	g := G.NewGraph()
	states, actions := criticInputs(g, n, c.stateDims, c.actionDims)
	net, err := c.net.CloneTo([]*G.Node{states, actions})
	if err != nil {
		return nil, err
	}

	// Summing over the batch leaves each sample's gradient unchanged
	// since samples do not interact
	sum := G.Must(G.Sum(net.Prediction()))
	grads, err := G.Grad(sum, actions)
	if err != nil {
		return nil, fmt.Errorf("could not compute action gradient: %v", err)
	}

	e := &criticEvaluator{
		net:     net,
		states:  states,
		actions: actions,
	}

	// The read must be in the graph before the tape is compiled
	G.Read(grads[0], &e.actionGrad)
	e.vm = G.NewTapeMachine(g)

	c.evaluators[n] = e
	return e, nil
}

// run evaluates the critic on a batch and returns the evaluator, whose
// values are valid until its VM is reset
func (c *Critic) run(op string, states, actions *tensor.Dense) (
	*criticEvaluator, error) {
	if err := checkShape(op, "states", states, -1, c.stateDims); err != nil {
		return nil, err
	}
	n := states.Shape()[0]
	if err := checkShape(op, "actions", actions, n,
		c.actionDims); err != nil {
		return nil, err
	}

	e, err := c.evaluator(n)
	if err != nil {
		return nil, fmt.Errorf("%s: could not create evaluator: %v", op, err)
	}
	if err := e.net.Set(c.net); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	if err := G.Let(e.states, states); err != nil {
		return nil, fmt.Errorf("%s: could not set states: %v", op, err)
	}
	if err := G.Let(e.actions, actions); err != nil {
		return nil, fmt.Errorf("%s: could not set actions: %v", op, err)
	}
	if err := e.vm.RunAll(); err != nil {
		e.vm.Reset()
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return e, nil
}

// Predict returns Q(s, a) for (n, stateDims) states and (n, actionDims)
// actions as a new (n, 1) tensor
func (c *Critic) Predict(states, actions *tensor.Dense) (*tensor.Dense,
	error) {
	e, err := c.run("predict", states, actions)
	if err != nil {
		return nil, err
	}
	defer e.vm.Reset()

	return copyValue(e.net.Output(), states.Shape()[0], 1), nil
}

// ActionGrad returns ∇ₐQ(s, a) for (n, stateDims) states and
// (n, actionDims) actions as a new (n, actionDims) tensor
func (c *Critic) ActionGrad(states, actions *tensor.Dense) (*tensor.Dense,
	error) {
	e, err := c.run("actionGrad", states, actions)
	if err != nil {
		return nil, err
	}
	defer e.vm.Reset()

	return copyValue(e.actionGrad, states.Shape()[0], c.actionDims), nil
}

// Minimize takes one solver step on the mean squared error between
// Q(states, actions) and targets, and returns the loss before the step.
// Targets must have shape (batch, 1).
func (c *Critic) Minimize(states, actions, targets *tensor.Dense) (float64,
	error) {
	if c.solver == nil {
		return 0, fmt.Errorf("minimize: critic has no solver")
	}
	if err := checkShape("minimize", "states", states, c.batchSize,
		c.stateDims); err != nil {
		return 0, err
	}
	if err := checkShape("minimize", "actions", actions, c.batchSize,
		c.actionDims); err != nil {
		return 0, err
	}
	if err := checkShape("minimize", "targets", targets, c.batchSize,
		1); err != nil {
		return 0, err
	}

	if err := G.Let(c.states, states); err != nil {
		return 0, fmt.Errorf("minimize: could not set states: %v", err)
	}
	if err := G.Let(c.actions, actions); err != nil {
		return 0, fmt.Errorf("minimize: could not set actions: %v", err)
	}
	if err := G.Let(c.targets, targets); err != nil {
		return 0, fmt.Errorf("minimize: could not set targets: %v", err)
	}

	defer c.vm.Reset()
	if err := c.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("minimize: %v", err)
	}
	loss := c.lossVal.Data().(float64)

	if err := c.solver.Step(c.net.Model()); err != nil {
		return 0, fmt.Errorf("minimize: could not step solver: %v", err)
	}
	return loss, nil
}

// Weights returns copies of the critic's weights
func (c *Critic) Weights() []*tensor.Dense {
	return c.net.Weights()
}

// SetWeights sets the critic's weights. The argument must have the
// layout returned by Weights of a critic with the same architecture.
func (c *Critic) SetWeights(weights []*tensor.Dense) error {
	return c.net.SetWeights(weights)
}

// StateDims returns the number of state features the critic takes
func (c *Critic) StateDims() int { return c.stateDims }

// ActionDims returns the number of action components the critic takes
func (c *Critic) ActionDims() int { return c.actionDims }

// BatchSize returns the batch size accepted by Minimize
func (c *Critic) BatchSize() int { return c.batchSize }

// Close releases the critic's VMs
func (c *Critic) Close() error {
	var firstErr error
	if err := c.vm.Close(); err != nil {
		firstErr = err
	}
	for _, e := range c.evaluators {
		if err := e.vm.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
