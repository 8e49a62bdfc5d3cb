package classifier

import (
	"fmt"
	"math"
	"math/rand"
)

// Network holds the learnable state for a compiled ModelSpec and executes
// forward and backward passes on the CPU. Activations are flat row-major
// [batch, dim] float32 slices.
type Network struct {
	Spec *ModelSpec

	// One entry per dense layer. Weights are row-major [units, inputSize],
	// matching the layout the exporters expect.
	Weights [][]float32
	Biases  [][]float32

	// Per-layer caches from the last training-mode forward pass, indexed
	// by spec layer position.
	inputs    [][]float32 // layer input activations
	dropMasks [][]float32 // scaled keep masks for dropout layers
	lastBatch int

	// Gradients from the last backward pass, parallel to Weights/Biases.
	wGrads [][]float32
	bGrads [][]float32

	rng *rand.Rand
}

// NewNetwork allocates a network for spec with Glorot-uniform initialized
// weights and zero biases.
func NewNetwork(spec *ModelSpec, seed int64) (*Network, error) {
	if spec == nil || !spec.Compiled {
		return nil, fmt.Errorf("model spec must be compiled")
	}

	net := &Network{
		Spec: spec,
		rng:  rand.New(rand.NewSource(seed)),
	}

	for _, layer := range spec.Layers {
		if layer.Type != Dense {
			continue
		}
		w := make([]float32, layer.Units*layer.InputSize)
		limit := float32(math.Sqrt(6.0 / float64(layer.InputSize+layer.Units)))
		for i := range w {
			w[i] = (net.rng.Float32()*2 - 1) * limit
		}
		net.Weights = append(net.Weights, w)
		net.Biases = append(net.Biases, make([]float32, layer.Units))
		net.wGrads = append(net.wGrads, make([]float32, len(w)))
		net.bGrads = append(net.bGrads, make([]float32, layer.Units))
	}

	return net, nil
}

// Forward runs a batch through the network and returns the output
// activations ([batch, OutputDim]). In training mode dropout is active and
// the intermediate activations are cached for Backward.
func (n *Network) Forward(x []float32, batch int, training bool) ([]float32, error) {
	if batch <= 0 || len(x) != batch*n.Spec.InputDim {
		return nil, fmt.Errorf("input length %d does not match batch %d x dim %d", len(x), batch, n.Spec.InputDim)
	}

	if training {
		n.inputs = make([][]float32, len(n.Spec.Layers))
		n.dropMasks = make([][]float32, len(n.Spec.Layers))
		n.lastBatch = batch
	}

	act := x
	dense := 0
	for li, layer := range n.Spec.Layers {
		if training {
			n.inputs[li] = act
		}

		switch layer.Type {
		case Dense:
			act = n.forwardDense(act, batch, layer, dense)
			dense++

		case ReLU:
			out := make([]float32, len(act))
			for i, v := range act {
				if v > 0 {
					out[i] = v
				}
			}
			act = out

		case Dropout:
			if !training {
				continue
			}
			keep := 1 - layer.Rate
			mask := make([]float32, len(act))
			out := make([]float32, len(act))
			for i := range act {
				if n.rng.Float32() < keep {
					mask[i] = 1 / keep
					out[i] = act[i] * mask[i]
				}
			}
			n.dropMasks[li] = mask
			act = out

		case Softmax:
			act = softmaxRows(act, batch, layer.InputSize)
		}
	}

	return act, nil
}

func (n *Network) forwardDense(in []float32, batch int, layer LayerSpec, dense int) []float32 {
	w := n.Weights[dense]
	b := n.Biases[dense]
	out := make([]float32, batch*layer.Units)
	for bi := 0; bi < batch; bi++ {
		row := in[bi*layer.InputSize : (bi+1)*layer.InputSize]
		for j := 0; j < layer.Units; j++ {
			sum := b[j]
			wRow := w[j*layer.InputSize : (j+1)*layer.InputSize]
			for i, v := range row {
				sum += v * wRow[i]
			}
			out[bi*layer.Units+j] = sum
		}
	}
	return out
}

// Backward propagates the gradient of the loss with respect to the softmax
// *input* (logits) through the network, accumulating parameter gradients.
// The softmax layer itself is folded into the cross-entropy gradient, so
// dLogits must come from CrossEntropy.Backward.
func (n *Network) Backward(dLogits []float32, batch int) error {
	if batch != n.lastBatch {
		return fmt.Errorf("backward batch %d does not match forward batch %d", batch, n.lastBatch)
	}

	grad := dLogits
	dense := len(n.Weights)
	for li := len(n.Spec.Layers) - 1; li >= 0; li-- {
		layer := n.Spec.Layers[li]

		switch layer.Type {
		case Softmax:
			// Combined with cross-entropy; gradient passes through.

		case Dropout:
			mask := n.dropMasks[li]
			out := make([]float32, len(grad))
			for i, g := range grad {
				out[i] = g * mask[i]
			}
			grad = out

		case ReLU:
			in := n.inputs[li]
			out := make([]float32, len(grad))
			for i, g := range grad {
				if in[i] > 0 {
					out[i] = g
				}
			}
			grad = out

		case Dense:
			dense--
			grad = n.backwardDense(grad, batch, layer, dense)
		}
	}

	return nil
}

func (n *Network) backwardDense(dOut []float32, batch int, layer LayerSpec, dense int) []float32 {
	in := n.inputs[layerIndexOfDense(n.Spec, dense)]
	w := n.Weights[dense]
	dW := n.wGrads[dense]
	dB := n.bGrads[dense]
	for i := range dW {
		dW[i] = 0
	}
	for i := range dB {
		dB[i] = 0
	}

	dIn := make([]float32, batch*layer.InputSize)
	for bi := 0; bi < batch; bi++ {
		inRow := in[bi*layer.InputSize : (bi+1)*layer.InputSize]
		dInRow := dIn[bi*layer.InputSize : (bi+1)*layer.InputSize]
		for j := 0; j < layer.Units; j++ {
			g := dOut[bi*layer.Units+j]
			if g == 0 {
				continue
			}
			dB[j] += g
			wRow := w[j*layer.InputSize : (j+1)*layer.InputSize]
			dWRow := dW[j*layer.InputSize : (j+1)*layer.InputSize]
			for i, v := range inRow {
				dWRow[i] += g * v
				dInRow[i] += g * wRow[i]
			}
		}
	}
	return dIn
}

// layerIndexOfDense maps the k-th dense layer back to its spec position.
func layerIndexOfDense(spec *ModelSpec, k int) int {
	seen := 0
	for li, layer := range spec.Layers {
		if layer.Type == Dense {
			if seen == k {
				return li
			}
			seen++
		}
	}
	return -1
}

// Params returns the learnable tensors in optimizer order: weight and bias
// of each dense layer, first to last.
func (n *Network) Params() [][]float32 {
	out := make([][]float32, 0, 2*len(n.Weights))
	for i := range n.Weights {
		out = append(out, n.Weights[i], n.Biases[i])
	}
	return out
}

// Gradients returns gradients parallel to Params.
func (n *Network) Gradients() [][]float32 {
	out := make([][]float32, 0, 2*len(n.wGrads))
	for i := range n.wGrads {
		out = append(out, n.wGrads[i], n.bGrads[i])
	}
	return out
}

// Snapshot deep-copies the current weights, for best-epoch restoration.
func (n *Network) Snapshot() [][]float32 {
	params := n.Params()
	out := make([][]float32, len(params))
	for i, p := range params {
		out[i] = make([]float32, len(p))
		copy(out[i], p)
	}
	return out
}

// Restore copies a snapshot taken from this network back into place.
func (n *Network) Restore(snapshot [][]float32) error {
	params := n.Params()
	if len(snapshot) != len(params) {
		return fmt.Errorf("snapshot has %d tensors, network has %d", len(snapshot), len(params))
	}
	for i, p := range params {
		if len(snapshot[i]) != len(p) {
			return fmt.Errorf("snapshot tensor %d has length %d, want %d", i, len(snapshot[i]), len(p))
		}
		copy(p, snapshot[i])
	}
	return nil
}

// Predict runs a single example in inference mode.
func (n *Network) Predict(x []float32) ([]float32, error) {
	return n.Forward(x, 1, false)
}

// softmaxRows applies a numerically stable softmax to each row of a
// [rows, cols] matrix.
func softmaxRows(x []float32, rows, cols int) []float32 {
	out := make([]float32, len(x))
	for r := 0; r < rows; r++ {
		row := x[r*cols : (r+1)*cols]
		max := row[0]
		for _, v := range row[1:] {
			if v > max {
				max = v
			}
		}
		var sum float32
		outRow := out[r*cols : (r+1)*cols]
		for i, v := range row {
			e := float32(math.Exp(float64(v - max)))
			outRow[i] = e
			sum += e
		}
		for i := range outRow {
			outRow[i] /= sum
		}
	}
	return out
}
