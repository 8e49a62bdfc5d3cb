// Package checkpoints serializes the trained classifier - architecture,
// weights and training state - in a full-precision JSON form meant for
// later reuse or retraining. The compact mobile form lives in the tflite
// package; this one keeps everything.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/soundml/genre-trainer/classifier"
)

// Checkpoint represents a complete model state including weights and
// training metadata.
type Checkpoint struct {
	ModelSpec *classifier.ModelSpec `json:"model_spec"`
	Weights   []WeightTensor        `json:"weights"`

	TrainingState TrainingState `json:"training_state"`

	Metadata CheckpointMetadata `json:"metadata"`
}

// WeightTensor represents a model parameter tensor with its data.
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
	Layer string    `json:"layer"`
	Type  string    `json:"type"` // "weight" or "bias"
}

// TrainingState captures where training ended up.
type TrainingState struct {
	Epochs       int     `json:"epochs"`
	BestEpoch    int     `json:"best_epoch"`
	LearningRate float32 `json:"learning_rate"`
	BestLoss     float32 `json:"best_loss"`
	TestAccuracy float32 `json:"test_accuracy"`
}

// CheckpointMetadata contains checkpoint provenance.
type CheckpointMetadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// FromNetwork extracts a checkpoint from a trained network.
func FromNetwork(net *classifier.Network, state TrainingState) (*Checkpoint, error) {
	weights, err := extractWeights(net)
	if err != nil {
		return nil, err
	}

	return &Checkpoint{
		ModelSpec:     net.Spec,
		Weights:       weights,
		TrainingState: state,
		Metadata: CheckpointMetadata{
			Version:   "1.0.0",
			Framework: "genre-trainer",
			CreatedAt: time.Now(),
		},
	}, nil
}

func extractWeights(net *classifier.Network) ([]WeightTensor, error) {
	dense := net.Spec.DenseLayers()
	if len(dense) != len(net.Weights) || len(dense) != len(net.Biases) {
		return nil, fmt.Errorf("network has %d weight tensors for %d dense layers", len(net.Weights), len(dense))
	}

	var weights []WeightTensor
	for i, layer := range dense {
		weights = append(weights, WeightTensor{
			Name:  fmt.Sprintf("%s.weight", layer.Name),
			Shape: []int{layer.Units, layer.InputSize},
			Data:  net.Weights[i],
			Layer: layer.Name,
			Type:  "weight",
		})
		weights = append(weights, WeightTensor{
			Name:  fmt.Sprintf("%s.bias", layer.Name),
			Shape: []int{layer.Units},
			Data:  net.Biases[i],
			Layer: layer.Name,
			Type:  "bias",
		})
	}
	return weights, nil
}

// LoadIntoNetwork copies checkpoint weights back into a network built from
// the same spec.
func (c *Checkpoint) LoadIntoNetwork(net *classifier.Network) error {
	dense := net.Spec.DenseLayers()
	if len(c.Weights) != 2*len(dense) {
		return fmt.Errorf("checkpoint has %d tensors, network expects %d", len(c.Weights), 2*len(dense))
	}

	byName := make(map[string]WeightTensor, len(c.Weights))
	for _, w := range c.Weights {
		byName[w.Name] = w
	}

	for i, layer := range dense {
		w, ok := byName[fmt.Sprintf("%s.weight", layer.Name)]
		if !ok {
			return fmt.Errorf("checkpoint missing weight for layer %s", layer.Name)
		}
		if len(w.Data) != len(net.Weights[i]) {
			return fmt.Errorf("weight %s has %d values, network expects %d", w.Name, len(w.Data), len(net.Weights[i]))
		}
		copy(net.Weights[i], w.Data)

		b, ok := byName[fmt.Sprintf("%s.bias", layer.Name)]
		if !ok {
			return fmt.Errorf("checkpoint missing bias for layer %s", layer.Name)
		}
		if len(b.Data) != len(net.Biases[i]) {
			return fmt.Errorf("bias %s has %d values, network expects %d", b.Name, len(b.Data), len(net.Biases[i]))
		}
		copy(net.Biases[i], b.Data)
	}
	return nil
}

// Save writes the checkpoint as indented JSON. The write is a plain
// overwrite with no atomicity, acceptable for a one-shot offline tool.
func (c *Checkpoint) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}
	return nil
}

// Load reads a checkpoint written by Save.
func Load(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %v", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %v", err)
	}
	return &checkpoint, nil
}
