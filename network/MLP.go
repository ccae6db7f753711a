package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// mlp implements a multi-layered perceptron with one output node per
// action. Hidden layers use their configured activation and the final
// layer is always linear with a bias unit.
type mlp struct {
	g          *G.ExprGraph
	layers     []*fcLayer
	input      *G.Node
	numOutputs int
	numInputs  int
	batchSize  int

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// newMLP creates a new mlp on the graph g which takes batchSize
// observations of features features each and predicts outputs values
// per observation.
//
// For index i, hiddenSizes[i] is the number of nodes in hidden layer i
// and activations[i] is the activation function of hidden layer i.
func newMLP(g *G.ExprGraph, features, batchSize, outputs int,
	hiddenSizes []int, activations []*Activation, weightInit,
	biasInit G.InitWFn) (*mlp, error) {
	if len(hiddenSizes) != len(activations) {
		msg := "newmlp: invalid number of activations\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if features <= 0 || outputs <= 0 || batchSize <= 0 {
		return nil, fmt.Errorf("newmlp: features (%d), outputs (%d) and "+
			"batch size (%d) must be positive", features, outputs, batchSize)
	}

	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batchSize, features),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)

	layers := make([]*fcLayer, 0, len(hiddenSizes)+1)
	in := features
	for i, size := range hiddenSizes {
		if size <= 0 {
			return nil, fmt.Errorf("newmlp: hidden layer %d has size %d", i,
				size)
		}
		layers = append(layers, newFCLayer(g, in, size, activations[i],
			weightInit, biasInit, i))
		in = size
	}
	layers = append(layers, newFCLayer(g, in, outputs, Identity(),
		weightInit, biasInit, len(hiddenSizes)))

	net := &mlp{
		g:          g,
		layers:     layers,
		input:      input,
		numOutputs: outputs,
		numInputs:  features,
		batchSize:  batchSize,
	}

	if _, err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("newmlp: could not compute forward pass: %v",
			err)
	}

	return net, nil
}

// setInput sets the value of the input node before running the forward
// pass.
func (m *mlp) setInput(input []float64) error {
	if len(input) != m.numInputs*m.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", m.numInputs*m.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(m.input.Shape()...),
	)
	return G.Let(m.input, inputTensor)
}

// Learnables returns the learnable nodes in an mlp
func (m *mlp) Learnables() G.Nodes {
	// Lazy instantiation
	if m.learnables == nil {
		m.learnables = make(G.Nodes, 0, 2*len(m.layers))
		for _, l := range m.layers {
			m.learnables = append(m.learnables, l.learnables()...)
		}
	}
	return m.learnables
}

// Model returns the learnables nodes with their gradients.
func (m *mlp) Model() []G.ValueGrad {
	if m.model == nil {
		for _, node := range m.Learnables() {
			m.model = append(m.model, node)
		}
	}
	return m.model
}

// params returns the backing slices of the learnable tensors. Writes
// to the returned slices modify the network in place.
func (m *mlp) params() [][]float64 {
	learnables := m.Learnables()
	out := make([][]float64, len(learnables))
	for i, node := range learnables {
		out[i] = node.Value().Data().([]float64)
	}
	return out
}

// fwd performs the forward pass of the mlp on the input node
func (m *mlp) fwd(input *G.Node) (*G.Node, error) {
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

// output returns a copy of the last computed prediction
func (m *mlp) output() []float64 {
	data := m.predVal.Data().([]float64)
	out := make([]float64, len(data))
	copy(out, data)
	return out
}
