package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildsRequestedShape(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	net, err := New([]int{18, 8, 5, 3}, ActivationIdentity, ActivationSigmoid, DefaultInit(), rng)
	require.NoError(t, err)

	assert.Equal(t, []int{18, 8, 5, 3}, net.Shape())
	assert.Equal(t, 18, net.InputSize())
	assert.Equal(t, 3, net.OutputSize())
	assert.Equal(t, 18*8+8+8*5+5+5*3+3, net.NumParams())
	assert.Equal(t, ActivationIdentity, net.Layers[0].Activation)
	assert.Equal(t, ActivationIdentity, net.Layers[1].Activation)
	assert.Equal(t, ActivationSigmoid, net.Layers[2].Activation)
}

func TestNewRejectsBadShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := New([]int{4}, "", ActivationSigmoid, DefaultInit(), rng)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = New([]int{4, 0, 2}, "", ActivationSigmoid, DefaultInit(), rng)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = New([]int{4, 2}, "", "softmaxish", DefaultInit(), rng)
	assert.Error(t, err)
}

func TestAddLayerRejectsMismatch(t *testing.T) {
	net := NewNetwork()
	first, err := NewLayer(3, 4, "")
	require.NoError(t, err)
	require.NoError(t, net.AddLayer(first))

	bad, err := NewLayer(5, 2, "")
	require.NoError(t, err)
	assert.ErrorIs(t, net.AddLayer(bad), ErrShapeMismatch)
	assert.Len(t, net.Layers, 1)
}

func TestRandomParametersStayInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	init := Init{WeightMin: -0.5, WeightMax: 0.25, BiasMin: 2, BiasMax: 3}
	l, err := NewRandomLayer(10, 10, "", init, rng)
	require.NoError(t, err)
	for _, w := range l.WeightData() {
		assert.GreaterOrEqual(t, w, -0.5)
		assert.Less(t, w, 0.25)
	}
	for _, b := range l.BiasData() {
		assert.GreaterOrEqual(t, b, 2.0)
		assert.Less(t, b, 3.0)
	}
}

func TestActivateZeroInputDependsOnlyOnBiases(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	net, err := New([]int{6, 4, 2}, ActivationIdentity, ActivationIdentity, DefaultInit(), rng)
	require.NoError(t, err)

	// With a zero input the first layer outputs its biases, so the result
	// must equal W2·b1 + b2 no matter what W1 holds.
	want := make([]float64, 2)
	b1 := net.Layers[0].BiasData()
	w2 := net.Layers[1].WeightData()
	b2 := net.Layers[1].BiasData()
	for i := range want {
		sum := b2[i]
		for j := range b1 {
			sum += w2[i*len(b1)+j] * b1[j]
		}
		want[i] = sum
	}

	got, err := net.Activate(make([]float64, 6))
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)

	weights := net.Layers[0].WeightData()
	for i := range weights {
		weights[i] = rng.Float64() * 100
	}
	again, err := net.Activate(make([]float64, 6))
	require.NoError(t, err)
	assert.InDeltaSlice(t, got, again, 1e-12)
}

func TestActivateKnownValues(t *testing.T) {
	net := NewNetwork()
	l, err := NewLayer(2, 1, ActivationSigmoid)
	require.NoError(t, err)
	copy(l.WeightData(), []float64{1, -2})
	l.BiasData()[0] = 0.5
	require.NoError(t, net.AddLayer(l))

	out, err := net.Activate([]float64{3, 1})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 1/(1+math.Exp(-1.5)), out[0], 1e-12)
}

func TestAllZeroNetworkOutputsHalf(t *testing.T) {
	net := NewNetwork()
	for _, l := range []struct {
		in, out int
		act     string
	}{{18, 8, ""}, {8, 5, ""}, {5, 3, ActivationSigmoid}} {
		layer, err := NewLayer(l.in, l.out, l.act)
		require.NoError(t, err)
		require.NoError(t, net.AddLayer(layer))
	}
	out, err := net.Activate(make([]float64, 18))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, out)
}

func TestActivateInputMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	net, err := New([]int{3, 2}, "", ActivationSigmoid, DefaultInit(), rng)
	require.NoError(t, err)
	_, err = net.Activate([]float64{1, 2})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = NewNetwork().Activate(nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCloneIsIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	net, err := New([]int{4, 3, 2}, "", ActivationSigmoid, DefaultInit(), rng)
	require.NoError(t, err)

	clone := net.Clone()
	assert.True(t, net.SameShape(clone))
	assert.Equal(t, net.Layers[0].WeightData(), clone.Layers[0].WeightData())

	before := net.Layers[0].WeightData()[0]
	clone.Layers[0].WeightData()[0] = before + 10
	clone.Layers[1].BiasData()[0] = 42
	assert.Equal(t, before, net.Layers[0].WeightData()[0])
	assert.NotEqual(t, 42.0, net.Layers[1].BiasData()[0])
}

func TestActivateDoesNotMutateInput(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	net, err := New([]int{3, 3}, "", ActivationSigmoid, DefaultInit(), rng)
	require.NoError(t, err)
	in := []float64{1, 2, 3}
	_, err = net.Activate(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, in)
}

func TestGetActivation(t *testing.T) {
	fn, err := GetActivation("")
	require.NoError(t, err)
	assert.Equal(t, 2.5, fn(2.5))

	fn, err = GetActivation(ActivationSigmoid)
	require.NoError(t, err)
	assert.Equal(t, 0.5, fn(0))

	_, err = GetActivation("nope")
	assert.Error(t, err)
}
