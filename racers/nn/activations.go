package nn

import (
	"fmt"
	"math"
)

// ActivationType defines the type for activation functions.
type ActivationType func(x float64) float64

// Activation names understood by layers and the config file.
const (
	ActivationIdentity = "identity"
	ActivationSigmoid  = "sigmoid"
)

// ActivationFunctions maps function names to the actual activation functions.
// This allows configuration to specify activations by name.
var ActivationFunctions = map[string]ActivationType{
	ActivationIdentity: Identity,
	ActivationSigmoid:  Sigmoid,
	"tanh":             Tanh,
	"relu":             ReLU,
	"clamped":          Clamped,
	"linear":           Identity, // Alias for identity
}

// GetActivation retrieves an activation function by name.
// An empty name selects the identity function.
func GetActivation(name string) (ActivationType, error) {
	if name == "" {
		return Identity, nil
	}
	if fn, ok := ActivationFunctions[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("unknown activation function: %s", name)
}

// Sigmoid is the logistic function 1 / (1 + e^-x), mapping into (0, 1).
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Tanh activation function.
func Tanh(x float64) float64 {
	return math.Tanh(x)
}

// ReLU (Rectified Linear Unit) activation function.
func ReLU(x float64) float64 {
	return math.Max(0, x)
}

// Identity activation function (linear).
func Identity(x float64) float64 {
	return x
}

// Clamped activation function (clamps output between -1 and 1).
func Clamped(x float64) float64 {
	return math.Max(-1.0, math.Min(x, 1.0))
}
