package classifier

import (
	"fmt"
	"math"
)

// AdamConfig holds configuration for the Adam optimizer.
type AdamConfig struct {
	LearningRate float32
	Beta1        float32 // Momentum decay (typically 0.9)
	Beta2        float32 // Variance decay (typically 0.999)
	Epsilon      float32 // Small constant to prevent division by zero
	WeightDecay  float32 // L2 regularization coefficient
}

// DefaultAdamConfig returns the standard Adam hyperparameters used by the
// genre trainer.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0.0,
	}
}

// Adam maintains first- and second-moment estimates for each parameter
// tensor and applies bias-corrected updates in place.
type Adam struct {
	Config AdamConfig

	momentum [][]float32 // first moment per parameter tensor
	variance [][]float32 // second moment per parameter tensor
	step     uint64
}

// NewAdam creates an optimizer sized for the given parameter tensors.
func NewAdam(config AdamConfig, params [][]float32) (*Adam, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("no parameter tensors provided")
	}

	adam := &Adam{Config: config}
	for _, p := range params {
		adam.momentum = append(adam.momentum, make([]float32, len(p)))
		adam.variance = append(adam.variance, make([]float32, len(p)))
	}
	return adam, nil
}

// Step applies one Adam update. params and grads must be parallel to the
// tensors the optimizer was created with.
func (a *Adam) Step(params, grads [][]float32) error {
	if len(params) != len(a.momentum) || len(grads) != len(a.momentum) {
		return fmt.Errorf("tensor count mismatch: %d params, %d grads, optimizer has %d", len(params), len(grads), len(a.momentum))
	}

	a.step++
	c1 := 1 - math.Pow(float64(a.Config.Beta1), float64(a.step))
	c2 := 1 - math.Pow(float64(a.Config.Beta2), float64(a.step))

	for ti, p := range params {
		g := grads[ti]
		if len(g) != len(p) {
			return fmt.Errorf("gradient tensor %d has length %d, want %d", ti, len(g), len(p))
		}
		m := a.momentum[ti]
		v := a.variance[ti]
		for i := range p {
			grad := g[i]
			if a.Config.WeightDecay > 0 {
				grad += a.Config.WeightDecay * p[i]
			}
			m[i] = a.Config.Beta1*m[i] + (1-a.Config.Beta1)*grad
			v[i] = a.Config.Beta2*v[i] + (1-a.Config.Beta2)*grad*grad

			mHat := float64(m[i]) / c1
			vHat := float64(v[i]) / c2
			p[i] -= a.Config.LearningRate * float32(mHat/(math.Sqrt(vHat)+float64(a.Config.Epsilon)))
		}
	}
	return nil
}

// StepCount returns the number of updates applied so far.
func (a *Adam) StepCount() uint64 {
	return a.step
}
