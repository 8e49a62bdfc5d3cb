// Package embedding turns raw waveforms into fixed-length feature vectors
// using a pretrained audio-event model. The pretrained model is an opaque
// external function behind the Extractor interface; nothing in this
// repository depends on its internals.
package embedding

import "fmt"

// Dim is the embedding width produced by the pretrained model. It is a
// property of the model, not of the input: every track maps to exactly
// Dim floats regardless of duration.
const Dim = 1024

// Extractor produces one fixed-length vector per waveform.
type Extractor interface {
	// Extract computes the embedding for a waveform sampled at the
	// model's required rate. The returned slice always has length Dim.
	Extract(samples []float32) ([]float32, error)

	Close() error
}

// MeanPool reduces a [rows, cols] frame-level embedding matrix (flattened
// row-major) to a single cols-length vector by arithmetic mean over rows.
func MeanPool(frames []float32, rows, cols int) ([]float32, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid pooling shape [%d, %d]", rows, cols)
	}
	if len(frames) != rows*cols {
		return nil, fmt.Errorf("frame data length %d does not match shape [%d, %d]", len(frames), rows, cols)
	}

	out := make([]float32, cols)
	for r := 0; r < rows; r++ {
		row := frames[r*cols : (r+1)*cols]
		for c, v := range row {
			out[c] += v
		}
	}
	inv := 1.0 / float32(rows)
	for c := range out {
		out[c] *= inv
	}
	return out, nil
}
