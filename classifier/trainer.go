package classifier

import (
	"fmt"
	"math"
	"math/rand"
)

// TrainerConfig holds the fixed training recipe.
type TrainerConfig struct {
	Epochs    int // maximum passes over the training set
	BatchSize int
	Patience  int // epochs without validation improvement before stopping
	Adam      AdamConfig
	Seed      int64
}

// DefaultTrainerConfig returns the genre trainer recipe: up to 50 epochs in
// batches of 32 with early stopping after 10 stagnant epochs.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Epochs:    50,
		BatchSize: 32,
		Patience:  10,
		Adam:      DefaultAdamConfig(),
		Seed:      1,
	}
}

// EpochStats records one epoch of training progress.
type EpochStats struct {
	Epoch       int
	TrainLoss   float32
	ValLoss     float32
	ValAccuracy float32
}

// History is the full training record returned by Fit.
type History struct {
	Epochs    []EpochStats
	BestEpoch int // 1-based epoch with the lowest validation loss
	Stopped   bool
}

// Trainer runs the supervised training loop: mini-batch gradient descent
// with Adam, monitoring validation loss, halting once it fails to improve
// for Patience consecutive epochs and restoring the best-observed weights.
type Trainer struct {
	net  *Network
	opt  *Adam
	loss CrossEntropy
	cfg  TrainerConfig
	rng  *rand.Rand
}

// NewTrainer creates a trainer for net.
func NewTrainer(net *Network, cfg TrainerConfig) (*Trainer, error) {
	if cfg.Epochs <= 0 || cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("invalid trainer config: epochs %d, batch size %d", cfg.Epochs, cfg.BatchSize)
	}

	opt, err := NewAdam(cfg.Adam, net.Params())
	if err != nil {
		return nil, err
	}

	return &Trainer{
		net: net,
		opt: opt,
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Fit trains on train while monitoring val each epoch.
func (t *Trainer) Fit(train, val Dataset) (*History, error) {
	if train.Len() == 0 {
		return nil, fmt.Errorf("training set is empty")
	}
	if val.Len() == 0 {
		return nil, fmt.Errorf("validation set is empty")
	}

	dim := t.net.Spec.InputDim
	classes := t.net.Spec.OutputDim

	history := &History{}
	bestLoss := float32(math.Inf(1))
	var bestWeights [][]float32
	wait := 0

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		perm := t.rng.Perm(train.Len())

		var trainLoss float64
		batches := 0
		for start := 0; start < len(perm); start += t.cfg.BatchSize {
			end := start + t.cfg.BatchSize
			if end > len(perm) {
				end = len(perm)
			}
			x, labels := train.flatten(perm[start:end], dim)
			batch := end - start

			probs, err := t.net.Forward(x, batch, true)
			if err != nil {
				return nil, fmt.Errorf("forward pass failed: %v", err)
			}
			loss, err := t.loss.Forward(probs, labels, classes)
			if err != nil {
				return nil, fmt.Errorf("loss computation failed: %v", err)
			}
			if err := t.net.Backward(t.loss.Backward(probs, labels, classes), batch); err != nil {
				return nil, fmt.Errorf("backward pass failed: %v", err)
			}
			if err := t.opt.Step(t.net.Params(), t.net.Gradients()); err != nil {
				return nil, fmt.Errorf("optimizer step failed: %v", err)
			}

			trainLoss += float64(loss)
			batches++
		}

		valLoss, valAcc, err := t.Evaluate(val)
		if err != nil {
			return nil, fmt.Errorf("validation failed: %v", err)
		}

		stats := EpochStats{
			Epoch:       epoch,
			TrainLoss:   float32(trainLoss / float64(batches)),
			ValLoss:     valLoss,
			ValAccuracy: valAcc,
		}
		history.Epochs = append(history.Epochs, stats)
		fmt.Printf("Epoch %d/%d - loss: %.4f - val_loss: %.4f - val_accuracy: %.4f\n",
			epoch, t.cfg.Epochs, stats.TrainLoss, valLoss, valAcc)

		if valLoss < bestLoss {
			bestLoss = valLoss
			history.BestEpoch = epoch
			bestWeights = t.net.Snapshot()
			wait = 0
			continue
		}

		wait++
		if wait >= t.cfg.Patience {
			fmt.Printf("Early stopping at epoch %d, restoring weights from epoch %d\n", epoch, history.BestEpoch)
			history.Stopped = true
			if err := t.net.Restore(bestWeights); err != nil {
				return nil, fmt.Errorf("failed to restore best weights: %v", err)
			}
			break
		}
	}

	return history, nil
}

// Evaluate computes loss and accuracy over a dataset in inference mode.
func (t *Trainer) Evaluate(ds Dataset) (float32, float32, error) {
	dim := t.net.Spec.InputDim
	classes := t.net.Spec.OutputDim

	idx := make([]int, ds.Len())
	for i := range idx {
		idx[i] = i
	}

	var totalLoss float64
	var totalAcc float64
	for start := 0; start < len(idx); start += t.cfg.BatchSize {
		end := start + t.cfg.BatchSize
		if end > len(idx) {
			end = len(idx)
		}
		x, labels := ds.flatten(idx[start:end], dim)

		probs, err := t.net.Forward(x, end-start, false)
		if err != nil {
			return 0, 0, err
		}
		loss, err := t.loss.Forward(probs, labels, classes)
		if err != nil {
			return 0, 0, err
		}
		totalLoss += float64(loss) * float64(end-start)
		totalAcc += float64(Accuracy(probs, labels, classes)) * float64(end-start)
	}

	n := float64(ds.Len())
	return float32(totalLoss / n), float32(totalAcc / n), nil
}
