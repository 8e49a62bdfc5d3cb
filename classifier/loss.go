package classifier

import (
	"fmt"
	"math"
)

// logEps guards log(0) for saturated predictions.
const logEps = 1e-7

// CrossEntropy is sparse categorical cross-entropy over softmax outputs
// with integer class labels.
type CrossEntropy struct{}

// Forward computes the mean negative log-likelihood of the true classes.
// probs is [batch, classes] row-major softmax output.
func (CrossEntropy) Forward(probs []float32, labels []int, classes int) (float32, error) {
	if classes <= 0 || len(labels) == 0 || len(probs) != len(labels)*classes {
		return 0, fmt.Errorf("probs length %d does not match %d labels x %d classes", len(probs), len(labels), classes)
	}

	var total float64
	for bi, label := range labels {
		if label < 0 || label >= classes {
			return 0, fmt.Errorf("label %d out of range [0, %d)", label, classes)
		}
		p := float64(probs[bi*classes+label])
		if p < logEps {
			p = logEps
		}
		total -= math.Log(p)
	}
	return float32(total / float64(len(labels))), nil
}

// Backward returns the gradient of the mean cross-entropy loss with respect
// to the softmax *logits*: (probs - onehot) / batch. Combining softmax and
// cross-entropy keeps the gradient simple and numerically stable.
func (CrossEntropy) Backward(probs []float32, labels []int, classes int) []float32 {
	grad := make([]float32, len(probs))
	inv := 1 / float32(len(labels))
	for bi, label := range labels {
		row := probs[bi*classes : (bi+1)*classes]
		gRow := grad[bi*classes : (bi+1)*classes]
		for c, p := range row {
			gRow[c] = p * inv
		}
		gRow[label] -= inv
	}
	return grad
}

// Accuracy is the fraction of rows whose argmax matches the label.
func Accuracy(probs []float32, labels []int, classes int) float32 {
	if len(labels) == 0 {
		return 0
	}
	correct := 0
	for bi, label := range labels {
		if Argmax(probs[bi*classes:(bi+1)*classes]) == label {
			correct++
		}
	}
	return float32(correct) / float32(len(labels))
}

// Argmax returns the index of the largest element.
func Argmax(x []float32) int {
	best := 0
	for i, v := range x {
		if v > x[best] {
			best = i
		}
	}
	return best
}
