// Package classifier implements the small dense genre classifier: model
// specification, CPU forward/backward passes, Adam optimization and the
// batch training loop with early stopping.
package classifier

import "fmt"

// LayerType represents the type of neural network layer.
type LayerType int

const (
	Dense LayerType = iota
	ReLU
	Dropout
	Softmax
)

func (lt LayerType) String() string {
	switch lt {
	case Dense:
		return "Dense"
	case ReLU:
		return "ReLU"
	case Dropout:
		return "Dropout"
	case Softmax:
		return "Softmax"
	default:
		return "Unknown"
	}
}

// LayerSpec defines layer configuration. This is pure configuration - no
// execution logic; the Network executes a compiled spec.
type LayerSpec struct {
	Type  LayerType `json:"type"`
	Name  string    `json:"name"`
	Units int       `json:"units,omitempty"` // Dense output width
	Rate  float32   `json:"rate,omitempty"`  // Dropout probability

	// Shape information (computed during compilation)
	InputSize  int `json:"input_size,omitempty"`
	OutputSize int `json:"output_size,omitempty"`
}

// ModelSpec defines a complete network as an ordered layer configuration.
type ModelSpec struct {
	InputDim int         `json:"input_dim"`
	Layers   []LayerSpec `json:"layers"`

	// Compiled model information
	OutputDim       int   `json:"output_dim"`
	TotalParameters int64 `json:"total_parameters"`
	Compiled        bool  `json:"compiled"`
}

// DenseLayers returns the dense layers of a compiled spec in order.
func (ms *ModelSpec) DenseLayers() []LayerSpec {
	var out []LayerSpec
	for _, l := range ms.Layers {
		if l.Type == Dense {
			out = append(out, l)
		}
	}
	return out
}

// ModelBuilder helps construct network specifications.
type ModelBuilder struct {
	inputDim int
	layers   []LayerSpec
}

// NewModelBuilder creates a builder for a network taking inputDim features.
func NewModelBuilder(inputDim int) *ModelBuilder {
	return &ModelBuilder{inputDim: inputDim}
}

// AddDense adds a fully connected layer with the given output width.
func (mb *ModelBuilder) AddDense(units int, name string) *ModelBuilder {
	mb.layers = append(mb.layers, LayerSpec{Type: Dense, Name: name, Units: units})
	return mb
}

// AddReLU adds a ReLU activation.
func (mb *ModelBuilder) AddReLU(name string) *ModelBuilder {
	mb.layers = append(mb.layers, LayerSpec{Type: ReLU, Name: name})
	return mb
}

// AddDropout adds a dropout layer with the given drop probability.
func (mb *ModelBuilder) AddDropout(rate float32, name string) *ModelBuilder {
	mb.layers = append(mb.layers, LayerSpec{Type: Dropout, Name: name, Rate: rate})
	return mb
}

// AddSoftmax adds a softmax output activation.
func (mb *ModelBuilder) AddSoftmax(name string) *ModelBuilder {
	mb.layers = append(mb.layers, LayerSpec{Type: Softmax, Name: name})
	return mb
}

// Compile validates the layer sequence and computes per-layer shapes and
// the parameter count.
func (mb *ModelBuilder) Compile() (*ModelSpec, error) {
	if mb.inputDim <= 0 {
		return nil, fmt.Errorf("invalid input dimension: %d", mb.inputDim)
	}
	if len(mb.layers) == 0 {
		return nil, fmt.Errorf("model has no layers")
	}

	spec := &ModelSpec{
		InputDim: mb.inputDim,
		Layers:   make([]LayerSpec, len(mb.layers)),
	}
	copy(spec.Layers, mb.layers)

	size := mb.inputDim
	var params int64
	for i := range spec.Layers {
		layer := &spec.Layers[i]
		layer.InputSize = size

		switch layer.Type {
		case Dense:
			if layer.Units <= 0 {
				return nil, fmt.Errorf("dense layer %s has invalid units %d", layer.Name, layer.Units)
			}
			params += int64(layer.Units)*int64(size) + int64(layer.Units)
			size = layer.Units
		case Dropout:
			if layer.Rate < 0 || layer.Rate >= 1 {
				return nil, fmt.Errorf("dropout layer %s has invalid rate %f", layer.Name, layer.Rate)
			}
		case ReLU, Softmax:
			// Shape-preserving, no parameters.
		default:
			return nil, fmt.Errorf("unsupported layer type: %s", layer.Type)
		}
		layer.OutputSize = size
	}

	spec.OutputDim = size
	spec.TotalParameters = params
	spec.Compiled = true
	return spec, nil
}

// NewGenreSpec builds the fixed classifier architecture used by the genre
// trainer: inputDim -> 256 ReLU -> dropout 0.3 -> 128 ReLU -> dropout 0.2
// -> numClasses softmax.
func NewGenreSpec(inputDim, numClasses int) (*ModelSpec, error) {
	return NewModelBuilder(inputDim).
		AddDense(256, "dense_1").
		AddReLU("relu_1").
		AddDropout(0.3, "dropout_1").
		AddDense(128, "dense_2").
		AddReLU("relu_2").
		AddDropout(0.2, "dropout_2").
		AddDense(numClasses, "genre_output").
		AddSoftmax("softmax").
		Compile()
}
