// Package network implements feed forward neural networks on Gorgonia
// computational graphs.
package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MLP implements a multi-layered perceptron. The MLP reads a batch of
// inputs from one or more matrix input nodes, which are concatenated
// along the feature dimension, and produces a (batch, outputs) matrix.
//
// The weights of an MLP live in its graph. CloneTo copies the network
// into another graph, and Set or SetWeights copy weights between
// networks of the same architecture.
type MLP struct {
	g          *G.ExprGraph
	layers     []*fcLayer
	input      *G.Node
	numInputs  int
	numOutputs int
	batchSize  int

	hiddenSizes      []int
	biases           []bool
	activations      []*Activation
	outputActivation *Activation

	learnables G.Nodes

	prediction *G.Node
	predVal    G.Value
}

// NewMLP creates and returns a new multi-layered perceptron that reads
// its inputs from the given input nodes and has outputs output nodes.
// All input nodes must be matrices in the same graph with the same
// batch size. The graph of the inputs is populated with the MLP.
//
// The MLP has len(hiddenSizes) + 1 layers. For index i, hiddenSizes[i]
// is the number of nodes in hidden layer i, biases[i] is true if the
// hidden layer has a bias unit, and activations[i] is the activation
// function of hidden layer i. A final layer of size outputs with a
// bias unit and activation outputActivation is always added. The
// parameter init determines the weight initialization scheme; biases
// are initialized to zero.
func NewMLP(inputs []*G.Node, outputs int, hiddenSizes []int,
	biases []bool, activations []*Activation, outputActivation *Activation,
	init G.InitWFn) (*MLP, error) {
	// Ensure we have one activation per layer
	if len(hiddenSizes) != len(activations) {
		msg := "newMLP: invalid number of activations\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}

	// Ensure one bias bool per layer
	if len(hiddenSizes) != len(biases) {
		msg := "newMLP: invalid number of biases\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}

	for i, size := range hiddenSizes {
		if size < 1 {
			return nil, fmt.Errorf("newMLP: hidden layer %d has size %d",
				i, size)
		}
	}
	if outputs < 1 {
		return nil, fmt.Errorf("newMLP: outputs must be >= 1\n\thave(%d)",
			outputs)
	}
	if outputActivation == nil {
		outputActivation = Identity()
	}

	input, err := concatInputs(inputs)
	if err != nil {
		return nil, fmt.Errorf("newMLP: %v", err)
	}
	features := input.Shape()[1]

	sizes := append(append([]int{}, hiddenSizes...), outputs)
	layerBiases := append(append([]bool{}, biases...), true)
	layerActivations := append(append([]*Activation{}, activations...),
		outputActivation)

	layers := addfcLayers(input.Graph(), features, sizes, layerBiases,
		layerActivations, init, uniquePrefix(input.Graph()))

	network := &MLP{
		g:                input.Graph(),
		layers:           layers,
		input:            input,
		numInputs:        features,
		numOutputs:       outputs,
		batchSize:        input.Shape()[0],
		hiddenSizes:      hiddenSizes,
		biases:           biases,
		activations:      activations,
		outputActivation: outputActivation,
	}

	if _, err := network.fwd(input); err != nil {
		return nil, fmt.Errorf("newMLP: could not compute forward pass: %v",
			err)
	}
	return network, nil
}

// concatInputs checks that all inputs are matrices of the same graph
// and batch size and concatenates them along the feature dimension
func concatInputs(inputs []*G.Node) (*G.Node, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input nodes")
	}

	g := inputs[0].Graph()
	batch := -1
	for i, input := range inputs {
		if input.Graph() != g {
			return nil, fmt.Errorf("not all inputs have the same graph")
		}
		if !input.IsMatrix() {
			return nil, fmt.Errorf("input %d must be a matrix", i)
		}
		if batch >= 0 && input.Shape()[0] != batch {
			return nil, fmt.Errorf("inputs have different batch sizes "+
				"\n\twant(%d)\n\thave(%d)", batch, input.Shape()[0])
		}
		batch = input.Shape()[0]
	}

	if len(inputs) == 1 {
		return inputs[0], nil
	}
	return G.Concat(1, inputs...)
}

// uniquePrefix returns a node name prefix not yet used by an MLP in g
func uniquePrefix(g *G.ExprGraph) string {
	for i := 0; ; i++ {
		prefix := fmt.Sprintf("mlp%d", i)
		if g.ByName(prefix+"L0W").Len() == 0 {
			return prefix
		}
	}
}

// CloneTo clones the MLP into the graph of the given input nodes. The
// inputs may have a different batch size than the MLP being cloned, but
// must have the same total number of features. The clone starts with a
// copy of the MLP's current weights.
func (m *MLP) CloneTo(inputs []*G.Node) (*MLP, error) {
	input, err := concatInputs(inputs)
	if err != nil {
		return nil, fmt.Errorf("cloneTo: %v", err)
	}
	if input.Graph() == m.g {
		return nil, fmt.Errorf("cloneTo: cannot clone into the same graph")
	}
	if features := input.Shape()[1]; features != m.numInputs {
		return nil, fmt.Errorf("cloneTo: invalid number of input features"+
			"\n\twant(%d)\n\thave(%d)", m.numInputs, features)
	}

	layers := make([]*fcLayer, len(m.layers))
	for i := range m.layers {
		layers[i] = m.layers[i].cloneTo(input.Graph())
	}

	network := &MLP{
		g:                input.Graph(),
		layers:           layers,
		input:            input,
		numInputs:        m.numInputs,
		numOutputs:       m.numOutputs,
		batchSize:        input.Shape()[0],
		hiddenSizes:      m.hiddenSizes,
		biases:           m.biases,
		activations:      m.activations,
		outputActivation: m.outputActivation,
	}
	if _, err := network.fwd(input); err != nil {
		return nil, fmt.Errorf("cloneTo: could not compute forward pass: %v",
			err)
	}

	// Node.CloneTo does not guarantee independent values, so copy
	// weights explicitly
	if err := network.Set(m); err != nil {
		return nil, fmt.Errorf("cloneTo: %v", err)
	}
	return network, nil
}

// Graph returns the computational graph of the MLP
func (m *MLP) Graph() *G.ExprGraph {
	return m.g
}

// BatchSize returns the batch size of inputs to the MLP
func (m *MLP) BatchSize() int {
	return m.batchSize
}

// Features returns the total number of input features of the MLP
func (m *MLP) Features() int {
	return m.numInputs
}

// Outputs returns the number of outputs of the MLP
func (m *MLP) Outputs() int {
	return m.numOutputs
}

// Learnables returns the learnable nodes of the MLP, ordered by layer
// with each layer's weights before its bias
func (m *MLP) Learnables() G.Nodes {
	// Lazy instantiation
	if m.learnables == nil {
		learnables := make([]*G.Node, 0, 2*len(m.layers))
		for _, l := range m.layers {
			learnables = append(learnables, l.weights)
			if l.bias != nil {
				learnables = append(learnables, l.bias)
			}
		}
		m.learnables = G.Nodes(learnables)
	}
	return m.learnables
}

// Model returns the learnable nodes with their gradients. Only valid
// once a VM has bound dual values to the learnables.
func (m *MLP) Model() []G.ValueGrad {
	return G.NodesToValueGrads(m.Learnables())
}

// Weights returns copies of the current values of the learnables, in
// the order of Learnables
func (m *MLP) Weights() []*tensor.Dense {
	learnables := m.Learnables()
	weights := make([]*tensor.Dense, len(learnables))
	for i, node := range learnables {
		weights[i] = node.Value().(*tensor.Dense).Clone().(*tensor.Dense)
	}
	return weights
}

// SetWeights copies the given weights into the learnables of the MLP.
// The weights must match the MLP's learnables in number and shape, as
// returned by Weights.
func (m *MLP) SetWeights(weights []*tensor.Dense) error {
	learnables := m.Learnables()
	if len(weights) != len(learnables) {
		return fmt.Errorf("setWeights: invalid number of weights"+
			"\n\twant(%d)\n\thave(%d)", len(learnables), len(weights))
	}

	for i, node := range learnables {
		if !node.Shape().Eq(weights[i].Shape()) {
			return fmt.Errorf("setWeights: invalid shape for weight %d"+
				"\n\twant(%v)\n\thave(%v)", i, node.Shape(),
				weights[i].Shape())
		}
	}

	for i, node := range learnables {
		dst := node.Value().Data().([]float64)
		copy(dst, weights[i].Data().([]float64))
	}
	return nil
}

// Set sets the weights of the MLP to be equal to the weights of
// another MLP of the same architecture
func (m *MLP) Set(source *MLP) error {
	sourceNodes := source.Learnables()
	nodes := m.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: source has %d learnables, expected %d",
			len(sourceNodes), len(nodes))
	}

	for i := range nodes {
		if !nodes[i].Shape().Eq(sourceNodes[i].Shape()) {
			return fmt.Errorf("set: invalid shape for learnable %d"+
				"\n\twant(%v)\n\thave(%v)", i, nodes[i].Shape(),
				sourceNodes[i].Shape())
		}
		dst := nodes[i].Value().Data().([]float64)
		copy(dst, sourceNodes[i].Value().Data().([]float64))
	}
	return nil
}

// fwd performs the forward pass of the MLP on the input node
func (m *MLP) fwd(input *G.Node) (*G.Node, error) {
	pred := input
	var err error
	for i, l := range m.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	m.prediction = pred
	G.Read(m.prediction, &m.predVal)

	return pred, nil
}

// Output returns the value of the MLP's prediction from the last run
// of a VM on its graph
func (m *MLP) Output() G.Value {
	return m.predVal
}

// Prediction returns the node of the computational graph that stores
// the output of the MLP
func (m *MLP) Prediction() *G.Node {
	return m.prediction
}

// String implements the fmt.Stringer interface
func (m *MLP) String() string {
	return fmt.Sprintf("MLP{features: %d, hidden: %v, activations: %v, "+
		"outputs: %d (%v), batch: %d}", m.numInputs, m.hiddenSizes,
		m.activations, m.numOutputs, m.outputActivation, m.batchSize)
}
