package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/autoracer/initwfn"
	"github.com/samuelfneumann/autoracer/utils/floatutils"
)

// Config describes the architecture of a QNetwork
type Config struct {
	Features    int
	Actions     int
	BatchSize   int
	HiddenSizes []int
	Activations []*Activation

	// WeightInit and BiasInit default to GlorotU(1) and Zeroes
	WeightInit *initwfn.InitWFn
	BiasInit   *initwfn.InitWFn

	Seed uint64
}

// QNetwork is a QFunction represented by a multi-layered perceptron.
//
// A QNetwork holds two graphs over the same architecture: a batch 1
// graph used to act and a batch BatchSize() graph which also holds the
// mean squared TD loss and its gradient. The parameters of the
// training graph are authoritative; the acting graph copies them the
// next time it is run after they change.
type QNetwork struct {
	features  int
	actions   int
	batchSize int

	act   *mlp
	actVM G.VM
	stale bool

	train           *mlp
	selectedActions *G.Node
	targets         *G.Node
	rowWeights      *G.Node
	loss            *G.Node
	lossVal         G.Value
	trainVM         G.VM
}

// NewQNetwork returns a new QNetwork whose parameters are initialized
// deterministically from c.Seed.
func NewQNetwork(c Config) (*QNetwork, error) {
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("newqnetwork: batch size must be positive, "+
			"have(%d)", c.BatchSize)
	}

	weightInit, biasInit := c.WeightInit, c.BiasInit
	var err error
	if weightInit == nil {
		if weightInit, err = initwfn.NewGlorotU(1.0); err != nil {
			return nil, fmt.Errorf("newqnetwork: %v", err)
		}
	}
	if biasInit == nil {
		if biasInit, err = initwfn.NewZeroes(); err != nil {
			return nil, fmt.Errorf("newqnetwork: %v", err)
		}
	}

	// One random stream per initializer, each seeded from c.Seed
	wInit := weightInit.InitWFn(c.Seed)
	bInit := biasInit.InitWFn(c.Seed + 1)

	trainGraph := G.NewGraph()
	train, err := newMLP(trainGraph, c.Features, c.BatchSize, c.Actions,
		c.HiddenSizes, c.Activations, wInit, bInit)
	if err != nil {
		return nil, fmt.Errorf("newqnetwork: could not create training "+
			"network: %v", err)
	}

	actGraph := G.NewGraph()
	act, err := newMLP(actGraph, c.Features, 1, c.Actions, c.HiddenSizes,
		c.Activations, G.Zeroes(), G.Zeroes())
	if err != nil {
		return nil, fmt.Errorf("newqnetwork: could not create acting "+
			"network: %v", err)
	}

	// One-hot encoding of the action taken in each row
	selectedActions := G.NewMatrix(
		trainGraph,
		tensor.Float64,
		G.WithShape(c.BatchSize, c.Actions),
		G.WithName("selectedActions"),
		G.WithInit(G.Zeroes()),
	)

	targets := G.NewVector(
		trainGraph,
		tensor.Float64,
		G.WithShape(c.BatchSize),
		G.WithName("targets"),
		G.WithInit(G.Zeroes()),
	)

	// Rows beyond the size of a short batch have weight 0, all other
	// rows have weight 1/n
	rowWeights := G.NewVector(
		trainGraph,
		tensor.Float64,
		G.WithShape(c.BatchSize),
		G.WithName("rowWeights"),
		G.WithInit(G.Zeroes()),
	)

	selectedValues := G.Must(G.HadamardProd(train.prediction,
		selectedActions))
	selectedValues = G.Must(G.Sum(selectedValues, 1))
	losses := G.Must(G.Sub(selectedValues, targets))
	losses = G.Must(G.Square(losses))
	losses = G.Must(G.HadamardProd(losses, rowWeights))
	loss := G.Must(G.Sum(losses))

	if _, err = G.Grad(loss, train.Learnables()...); err != nil {
		return nil, fmt.Errorf("newqnetwork: could not compute gradient: %v",
			err)
	}

	q := &QNetwork{
		features:        c.Features,
		actions:         c.Actions,
		batchSize:       c.BatchSize,
		act:             act,
		actVM:           G.NewTapeMachine(actGraph),
		stale:           true,
		train:           train,
		selectedActions: selectedActions,
		targets:         targets,
		rowWeights:      rowWeights,
		loss:            loss,
	}
	G.Read(loss, &q.lossVal)
	q.trainVM = G.NewTapeMachine(trainGraph,
		G.BindDualValues(train.Learnables()...))

	return q, nil
}

// Features returns the size of a single observation
func (q *QNetwork) Features() int {
	return q.features
}

// Actions returns the number of actions valued by the network
func (q *QNetwork) Actions() int {
	return q.actions
}

// BatchSize returns the largest batch accepted by ForwardBatch and
// GradientStep
func (q *QNetwork) BatchSize() int {
	return q.batchSize
}

// Forward returns the action values of a single observation
func (q *QNetwork) Forward(obs []float64) ([]float64, error) {
	if len(obs) != q.features {
		return nil, fmt.Errorf("forward: invalid observation size\n\t"+
			"want(%d)\n\thave(%d)", q.features, len(obs))
	}

	if q.stale {
		copyParams(q.act.params(), q.train.params())
		q.stale = false
	}

	if err := q.act.setInput(copyOf(obs)); err != nil {
		return nil, fmt.Errorf("forward: %v", err)
	}
	defer q.actVM.Reset()
	if err := q.actVM.RunAll(); err != nil {
		return nil, fmt.Errorf("forward: %v", err)
	}

	return q.act.output(), nil
}

// ForwardBatch returns the row-major action values of the observations
// stored row-major in obs. At most BatchSize() observations may be
// given.
func (q *QNetwork) ForwardBatch(obs []float64) ([]float64, error) {
	n, err := q.rows(len(obs))
	if err != nil {
		return nil, fmt.Errorf("forwardbatch: %v", err)
	}

	if err := q.setTrainInputs(Batch{States: obs}, n, false); err != nil {
		return nil, fmt.Errorf("forwardbatch: %v", err)
	}
	defer q.trainVM.Reset()
	if err := q.trainVM.RunAll(); err != nil {
		return nil, fmt.Errorf("forwardbatch: %v", err)
	}

	return q.train.output()[:n*q.actions], nil
}

// GradientStep performs a single gradient descent step with solver s
// on the mean squared error between the value of each row's action and
// its target. Batches may hold between 1 and BatchSize() rows.
//
// A zero loss gives zero gradients, which leaves the parameters
// unchanged only if s carries no momentum from earlier steps.
//
// If the loss or any gradient is not finite, the update is skipped,
// gradients are cleared and ErrNonFinite is returned.
func (q *QNetwork) GradientStep(b Batch, s G.Solver) (float64, error) {
	n := b.Size()
	if n == 0 || n > q.batchSize {
		return 0, fmt.Errorf("gradientstep: batch size must be in [1, %d], "+
			"have(%d)", q.batchSize, n)
	}
	if len(b.States) != n*q.features || len(b.Targets) != n {
		return 0, fmt.Errorf("gradientstep: inconsistent batch: %d actions, "+
			"%d targets, %d state values", n, len(b.Targets), len(b.States))
	}
	for _, a := range b.Actions {
		if a < 0 || a >= q.actions {
			return 0, fmt.Errorf("gradientstep: action %d out of range "+
				"[0, %d)", a, q.actions)
		}
	}

	if err := q.setTrainInputs(b, n, true); err != nil {
		return 0, fmt.Errorf("gradientstep: %v", err)
	}
	defer q.trainVM.Reset()
	if err := q.trainVM.RunAll(); err != nil {
		return 0, fmt.Errorf("gradientstep: %v", err)
	}

	loss := q.lossVal.Data().(float64)
	if !floatutils.IsFinite(loss) || !q.gradsFinite() {
		q.zeroGrads()
		return loss, ErrNonFinite
	}

	if err := s.Step(q.train.Model()); err != nil {
		return loss, fmt.Errorf("gradientstep: could not step solver: %v",
			err)
	}
	q.stale = true

	return loss, nil
}

// CloneParametersInto copies the parameters of q into other
func (q *QNetwork) CloneParametersInto(other QFunction) error {
	if err := other.SetParams(q.train.params()); err != nil {
		return fmt.Errorf("cloneparametersinto: %v", err)
	}
	return nil
}

// Polyak sets the parameters of q to a polyak average of its own
// parameters and those of source: θ ← (1-tau)θ + tau θ_source
func (q *QNetwork) Polyak(source QFunction, tau float64) error {
	if tau < 0 || tau > 1 {
		return fmt.Errorf("polyak: tau must be in [0, 1], have(%v)", tau)
	}

	sourceParams := source.Params()
	params := q.train.params()
	if err := checkParamShapes(params, sourceParams); err != nil {
		return fmt.Errorf("polyak: %v", err)
	}

	for i := range params {
		for j := range params[i] {
			params[i][j] = (1-tau)*params[i][j] + tau*sourceParams[i][j]
		}
	}
	q.stale = true

	return nil
}

// Params returns a copy of the parameters of the network, ordered
// layer by layer with each layer's weights before its bias
func (q *QNetwork) Params() [][]float64 {
	params := q.train.params()
	out := make([][]float64, len(params))
	for i := range params {
		out[i] = copyOf(params[i])
	}
	return out
}

// SetParams sets the parameters of the network to a copy of params
func (q *QNetwork) SetParams(params [][]float64) error {
	dest := q.train.params()
	if err := checkParamShapes(dest, params); err != nil {
		return fmt.Errorf("setparams: %v", err)
	}
	copyParams(dest, params)
	q.stale = true

	return nil
}

// rows returns the number of observations in a row-major slice of
// length size
func (q *QNetwork) rows(size int) (int, error) {
	if size == 0 || size%q.features != 0 {
		return 0, fmt.Errorf("observation data of length %d is not a "+
			"positive multiple of %d features", size, q.features)
	}
	n := size / q.features
	if n > q.batchSize {
		return 0, fmt.Errorf("%d observations exceed batch size %d", n,
			q.batchSize)
	}
	return n, nil
}

// setTrainInputs sets the input nodes of the training graph to the
// first n rows of b, padding the remaining rows with zeroes. When
// weighted is false every row has weight 0 and the loss is unused.
func (q *QNetwork) setTrainInputs(b Batch, n int, weighted bool) error {
	states := make([]float64, q.batchSize*q.features)
	copy(states, b.States)
	if err := q.train.setInput(states); err != nil {
		return err
	}

	selected := make([]float64, q.batchSize*q.actions)
	targets := make([]float64, q.batchSize)
	weights := make([]float64, q.batchSize)
	if weighted {
		for i := 0; i < n; i++ {
			selected[i*q.actions+b.Actions[i]] = 1.0
			targets[i] = b.Targets[i]
			weights[i] = 1.0 / float64(n)
		}
	}

	selectedTensor := tensor.New(
		tensor.WithBacking(selected),
		tensor.WithShape(q.batchSize, q.actions),
	)
	if err := G.Let(q.selectedActions, selectedTensor); err != nil {
		return err
	}

	targetTensor := tensor.New(
		tensor.WithBacking(targets),
		tensor.WithShape(q.batchSize),
	)
	if err := G.Let(q.targets, targetTensor); err != nil {
		return err
	}

	weightTensor := tensor.New(
		tensor.WithBacking(weights),
		tensor.WithShape(q.batchSize),
	)
	return G.Let(q.rowWeights, weightTensor)
}

// gradsFinite returns whether every gradient of the training graph is
// finite
func (q *QNetwork) gradsFinite() bool {
	for _, node := range q.train.Learnables() {
		grad, err := node.Grad()
		if err != nil {
			return false
		}
		if !floatutils.AllFinite(grad.Data().([]float64)) {
			return false
		}
	}
	return true
}

// zeroGrads clears the gradients of the training graph
func (q *QNetwork) zeroGrads() {
	for _, node := range q.train.Learnables() {
		if grad, err := node.Grad(); err == nil {
			if z, ok := grad.(interface{ Zero() }); ok {
				z.Zero()
			}
		}
	}
}

func checkParamShapes(dest, src [][]float64) error {
	if len(dest) != len(src) {
		return fmt.Errorf("invalid number of parameter tensors\n\twant(%d)"+
			"\n\thave(%d)", len(dest), len(src))
	}
	for i := range dest {
		if len(dest[i]) != len(src[i]) {
			return fmt.Errorf("invalid size of parameter tensor %d\n\t"+
				"want(%d)\n\thave(%d)", i, len(dest[i]), len(src[i]))
		}
	}
	return nil
}

func copyParams(dest, src [][]float64) {
	for i := range dest {
		copy(dest[i], src[i])
	}
}

func copyOf(s []float64) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	return out
}
