// Package nn implements the fixed-shape feed-forward network used as a car's brain.
//
// A Network is an ordered list of dense layers. Each layer computes
// activation(W·x + b) where W has one row per output and one column per input.
package nn

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when layer sizes or input lengths do not line up.
var ErrShapeMismatch = errors.New("network shape mismatch")

// Init bounds the uniform distributions used for fresh weights and biases.
type Init struct {
	WeightMin, WeightMax float64
	BiasMin, BiasMax     float64
}

// DefaultInit draws every parameter from [-1, 1].
func DefaultInit() Init {
	return Init{WeightMin: -1, WeightMax: 1, BiasMin: -1, BiasMax: 1}
}

// Layer is a single dense layer.
type Layer struct {
	Weights    *mat.Dense    // rows = outputs, cols = inputs
	Biases     *mat.VecDense // len = outputs
	Activation string        // name from ActivationFunctions, "" means identity
}

// NewLayer creates a layer with all weights and biases set to zero.
func NewLayer(inputs, outputs int, activation string) (*Layer, error) {
	if inputs <= 0 || outputs <= 0 {
		return nil, fmt.Errorf("%w: layer size %dx%d must be positive", ErrShapeMismatch, outputs, inputs)
	}
	if _, err := GetActivation(activation); err != nil {
		return nil, err
	}
	return &Layer{
		Weights:    mat.NewDense(outputs, inputs, nil),
		Biases:     mat.NewVecDense(outputs, nil),
		Activation: activation,
	}, nil
}

// NewRandomLayer creates a layer with parameters drawn uniformly from the init bounds.
func NewRandomLayer(inputs, outputs int, activation string, init Init, rng *rand.Rand) (*Layer, error) {
	l, err := NewLayer(inputs, outputs, activation)
	if err != nil {
		return nil, err
	}
	weights := l.WeightData()
	for i := range weights {
		weights[i] = uniform(rng, init.WeightMin, init.WeightMax)
	}
	biases := l.BiasData()
	for i := range biases {
		biases[i] = uniform(rng, init.BiasMin, init.BiasMax)
	}
	return l, nil
}

// InputSize returns the number of inputs the layer expects.
func (l *Layer) InputSize() int {
	_, c := l.Weights.Dims()
	return c
}

// OutputSize returns the number of values the layer produces.
func (l *Layer) OutputSize() int {
	r, _ := l.Weights.Dims()
	return r
}

// WeightData returns the row-major flattened weights. The slice aliases the
// layer, writes to it change the layer.
func (l *Layer) WeightData() []float64 {
	return l.Weights.RawMatrix().Data
}

// BiasData returns the biases. The slice aliases the layer.
func (l *Layer) BiasData() []float64 {
	return l.Biases.RawVector().Data
}

// Copy creates a deep copy of the layer.
func (l *Layer) Copy() *Layer {
	return &Layer{
		Weights:    mat.DenseCopyOf(l.Weights),
		Biases:     mat.VecDenseCopyOf(l.Biases),
		Activation: l.Activation,
	}
}

// forward applies the layer to in and returns a freshly allocated result.
func (l *Layer) forward(in *mat.VecDense) (*mat.VecDense, error) {
	fn, err := GetActivation(l.Activation)
	if err != nil {
		return nil, err
	}
	out := mat.NewVecDense(l.OutputSize(), nil)
	out.MulVec(l.Weights, in)
	out.AddVec(out, l.Biases)
	raw := out.RawVector().Data
	for i := range raw {
		raw[i] = fn(raw[i])
	}
	return out, nil
}

// Network is an ordered stack of layers.
type Network struct {
	Layers []*Layer
}

// NewNetwork creates an empty network. Layers are appended with AddLayer.
func NewNetwork() *Network {
	return &Network{}
}

// New builds a network whose layer sizes follow sizes (inputs first, outputs
// last). Hidden layers use hiddenActivation, the final layer outputActivation.
func New(sizes []int, hiddenActivation, outputActivation string, init Init, rng *rand.Rand) (*Network, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("%w: need at least an input and an output size, got %v", ErrShapeMismatch, sizes)
	}
	net := NewNetwork()
	for i := 0; i+1 < len(sizes); i++ {
		activation := hiddenActivation
		if i+2 == len(sizes) {
			activation = outputActivation
		}
		l, err := NewRandomLayer(sizes[i], sizes[i+1], activation, init, rng)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if err := net.AddLayer(l); err != nil {
			return nil, err
		}
	}
	return net, nil
}

// AddLayer appends l, rejecting it when its input size does not match the
// current output size.
func (n *Network) AddLayer(l *Layer) error {
	if len(n.Layers) > 0 && n.OutputSize() != l.InputSize() {
		return fmt.Errorf("%w: layer %d expects %d inputs but previous layer produces %d",
			ErrShapeMismatch, len(n.Layers), l.InputSize(), n.OutputSize())
	}
	n.Layers = append(n.Layers, l)
	return nil
}

// InputSize returns the length of the input vector Activate expects.
func (n *Network) InputSize() int {
	if len(n.Layers) == 0 {
		return 0
	}
	return n.Layers[0].InputSize()
}

// OutputSize returns the length of the vector Activate produces.
func (n *Network) OutputSize() int {
	if len(n.Layers) == 0 {
		return 0
	}
	return n.Layers[len(n.Layers)-1].OutputSize()
}

// Shape returns the layer sizes, inputs first.
func (n *Network) Shape() []int {
	if len(n.Layers) == 0 {
		return nil
	}
	shape := []int{n.InputSize()}
	for _, l := range n.Layers {
		shape = append(shape, l.OutputSize())
	}
	return shape
}

// NumParams counts every weight and bias.
func (n *Network) NumParams() int {
	total := 0
	for _, l := range n.Layers {
		total += len(l.WeightData()) + len(l.BiasData())
	}
	return total
}

// SameShape reports whether n and other have identical layer sizes.
func (n *Network) SameShape(other *Network) bool {
	if len(n.Layers) != len(other.Layers) {
		return false
	}
	for i, l := range n.Layers {
		o := other.Layers[i]
		if l.InputSize() != o.InputSize() || l.OutputSize() != o.OutputSize() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy that shares no parameters with n.
func (n *Network) Clone() *Network {
	c := &Network{Layers: make([]*Layer, len(n.Layers))}
	for i, l := range n.Layers {
		c.Layers[i] = l.Copy()
	}
	return c
}

// Activate computes the network's output for a given slice of input values.
// The input slice must match the input size of the first layer.
func (n *Network) Activate(inputs []float64) ([]float64, error) {
	if len(n.Layers) == 0 {
		return nil, fmt.Errorf("%w: network has no layers", ErrShapeMismatch)
	}
	if len(inputs) != n.InputSize() {
		return nil, fmt.Errorf("%w: got %d inputs, network expects %d", ErrShapeMismatch, len(inputs), n.InputSize())
	}

	values := mat.NewVecDense(len(inputs), append([]float64(nil), inputs...))
	for i, l := range n.Layers {
		out, err := l.forward(values)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		values = out
	}
	return values.RawVector().Data, nil
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
