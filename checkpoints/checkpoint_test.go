package checkpoints

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/soundml/genre-trainer/classifier"
)

func trainedNetwork(t *testing.T) *classifier.Network {
	t.Helper()
	spec, err := classifier.NewGenreSpec(16, 10)
	if err != nil {
		t.Fatalf("NewGenreSpec failed: %v", err)
	}
	net, err := classifier.NewNetwork(spec, 99)
	if err != nil {
		t.Fatalf("NewNetwork failed: %v", err)
	}
	return net
}

func TestCheckpointRoundTrip(t *testing.T) {
	net := trainedNetwork(t)
	state := TrainingState{
		Epochs:       23,
		BestEpoch:    13,
		LearningRate: 0.001,
		BestLoss:     0.42,
		TestAccuracy: 0.77,
	}

	checkpoint, err := FromNetwork(net, state)
	if err != nil {
		t.Fatalf("FromNetwork failed: %v", err)
	}
	if len(checkpoint.Weights) != 6 {
		t.Fatalf("Expected 6 weight tensors (3 dense layers), got %d", len(checkpoint.Weights))
	}

	path := filepath.Join(t.TempDir(), "genre_classifier.json")
	if err := checkpoint.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.TrainingState != state {
		t.Errorf("TrainingState = %+v, want %+v", loaded.TrainingState, state)
	}
	if loaded.ModelSpec.TotalParameters != net.Spec.TotalParameters {
		t.Errorf("TotalParameters = %d, want %d", loaded.ModelSpec.TotalParameters, net.Spec.TotalParameters)
	}

	// Rebuild a fresh network from the loaded spec and confirm it
	// reproduces the original predictions exactly.
	restored, err := classifier.NewNetwork(loaded.ModelSpec, 1)
	if err != nil {
		t.Fatalf("NewNetwork from loaded spec failed: %v", err)
	}
	if err := loaded.LoadIntoNetwork(restored); err != nil {
		t.Fatalf("LoadIntoNetwork failed: %v", err)
	}

	x := make([]float32, 16)
	for i := range x {
		x[i] = float32(i) / 16
	}
	want, err := net.Predict(x)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	got, err := restored.Predict(x)
	if err != nil {
		t.Fatalf("Predict on restored network failed: %v", err)
	}
	for i := range want {
		if math.Abs(float64(want[i]-got[i])) > 1e-6 {
			t.Errorf("Prediction %d: %f, want %f", i, got[i], want[i])
		}
	}
}

func TestLoadIntoNetworkValidation(t *testing.T) {
	net := trainedNetwork(t)
	checkpoint, err := FromNetwork(net, TrainingState{})
	if err != nil {
		t.Fatalf("FromNetwork failed: %v", err)
	}

	t.Run("Wrong architecture rejected", func(t *testing.T) {
		spec, _ := classifier.NewGenreSpec(32, 10)
		other, _ := classifier.NewNetwork(spec, 1)
		if err := checkpoint.LoadIntoNetwork(other); err == nil {
			t.Error("Expected error for mismatched input dim")
		}
	})

	t.Run("Missing tensors rejected", func(t *testing.T) {
		broken := *checkpoint
		broken.Weights = checkpoint.Weights[:4]
		fresh, _ := classifier.NewNetwork(net.Spec, 2)
		if err := broken.LoadIntoNetwork(fresh); err == nil {
			t.Error("Expected error for truncated weights")
		}
	})
}
