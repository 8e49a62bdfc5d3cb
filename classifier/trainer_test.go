package classifier

import (
	"math/rand"
	"testing"
)

// separableDataset builds the synthetic scenario from the training recipe's
// acceptance check: ten examples per class whose embeddings are one-hot-like
// vectors with a little noise, trivially separable.
func separableDataset(t *testing.T, rng *rand.Rand, perClass int) Dataset {
	t.Helper()
	var ds Dataset
	for class := 0; class < 10; class++ {
		for i := 0; i < perClass; i++ {
			emb := make([]float32, 10)
			for j := range emb {
				emb[j] = rng.Float32() * 0.1
			}
			emb[class] = 1
			ds.Embeddings = append(ds.Embeddings, emb)
			ds.Labels = append(ds.Labels, class)
		}
	}
	return ds
}

func TestTrainerFit(t *testing.T) {
	t.Run("Learns a separable synthetic dataset", func(t *testing.T) {
		rng := rand.New(rand.NewSource(11))
		train := separableDataset(t, rng, 10)
		val := separableDataset(t, rng, 3)

		spec, err := NewGenreSpec(10, 10)
		if err != nil {
			t.Fatalf("NewGenreSpec failed: %v", err)
		}
		net, err := NewNetwork(spec, 11)
		if err != nil {
			t.Fatalf("NewNetwork failed: %v", err)
		}

		cfg := DefaultTrainerConfig()
		cfg.Epochs = 30
		trainer, err := NewTrainer(net, cfg)
		if err != nil {
			t.Fatalf("NewTrainer failed: %v", err)
		}

		history, err := trainer.Fit(train, val)
		if err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		if len(history.Epochs) == 0 || history.BestEpoch == 0 {
			t.Fatalf("History not recorded: %+v", history)
		}

		_, acc, err := trainer.Evaluate(val)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		// Anything at or below 10% is the random-guess baseline.
		if acc <= 0.1 {
			t.Errorf("Accuracy %.3f does not beat the trivial baseline", acc)
		}
	})

	t.Run("Early stopping halts on stagnant validation loss", func(t *testing.T) {
		rng := rand.New(rand.NewSource(5))
		var train, val Dataset
		// Random embeddings with random labels: nothing to learn, so
		// validation loss stops improving quickly.
		for i := 0; i < 60; i++ {
			emb := make([]float32, 8)
			for j := range emb {
				emb[j] = rng.Float32()
			}
			train.Embeddings = append(train.Embeddings, emb)
			train.Labels = append(train.Labels, rng.Intn(10))
		}
		for i := 0; i < 20; i++ {
			emb := make([]float32, 8)
			for j := range emb {
				emb[j] = rng.Float32()
			}
			val.Embeddings = append(val.Embeddings, emb)
			val.Labels = append(val.Labels, rng.Intn(10))
		}

		spec, err := NewGenreSpec(8, 10)
		if err != nil {
			t.Fatalf("NewGenreSpec failed: %v", err)
		}
		net, err := NewNetwork(spec, 5)
		if err != nil {
			t.Fatalf("NewNetwork failed: %v", err)
		}

		cfg := DefaultTrainerConfig()
		cfg.Epochs = 200
		cfg.Patience = 3
		trainer, err := NewTrainer(net, cfg)
		if err != nil {
			t.Fatalf("NewTrainer failed: %v", err)
		}

		history, err := trainer.Fit(train, val)
		if err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		if !history.Stopped {
			t.Fatal("Expected early stopping on unlearnable data")
		}
		if len(history.Epochs) >= cfg.Epochs {
			t.Errorf("Ran all %d epochs despite early stopping", cfg.Epochs)
		}
		if history.BestEpoch > len(history.Epochs) {
			t.Errorf("BestEpoch %d beyond recorded epochs %d", history.BestEpoch, len(history.Epochs))
		}
	})

	t.Run("Empty datasets rejected", func(t *testing.T) {
		spec, _ := NewGenreSpec(8, 10)
		net, _ := NewNetwork(spec, 1)
		trainer, err := NewTrainer(net, DefaultTrainerConfig())
		if err != nil {
			t.Fatalf("NewTrainer failed: %v", err)
		}
		if _, err := trainer.Fit(Dataset{}, Dataset{}); err == nil {
			t.Error("Expected error for empty training set")
		}
	})
}

func TestAdam(t *testing.T) {
	t.Run("Converges on a quadratic", func(t *testing.T) {
		// Minimize (x-3)^2 elementwise; gradient is 2(x-3).
		params := [][]float32{{0, 10}}
		adam, err := NewAdam(AdamConfig{LearningRate: 0.1, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}, params)
		if err != nil {
			t.Fatalf("NewAdam failed: %v", err)
		}

		for step := 0; step < 500; step++ {
			grads := [][]float32{{2 * (params[0][0] - 3), 2 * (params[0][1] - 3)}}
			if err := adam.Step(params, grads); err != nil {
				t.Fatalf("Step failed: %v", err)
			}
		}

		for i, v := range params[0] {
			if v < 2.9 || v > 3.1 {
				t.Errorf("Parameter %d = %f, want ~3", i, v)
			}
		}
	})

	t.Run("Tensor count mismatch rejected", func(t *testing.T) {
		adam, _ := NewAdam(DefaultAdamConfig(), [][]float32{{0}})
		if err := adam.Step([][]float32{{0}, {0}}, [][]float32{{0}, {0}}); err == nil {
			t.Error("Expected error for mismatched tensor count")
		}
	})
}
