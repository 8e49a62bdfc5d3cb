package embedding

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/mattn/go-tflite"

	"github.com/soundml/genre-trainer/audio"
)

// ModelURL is the published TFLite build of YAMNet on the TF Hub.
const ModelURL = "https://tfhub.dev/google/lite-model/yamnet/tflite/1?lite-format=tflite"

// YAMNet runs the pretrained YAMNet audio-event model through the TFLite C
// runtime. The model maps a 16 kHz waveform to per-frame class scores,
// per-frame 1024-dim embeddings and a spectrogram; Extract keeps only the
// embeddings, averaged across frames.
type YAMNet struct {
	model   *tflite.Model
	options *tflite.InterpreterOptions
	interp  *tflite.Interpreter
}

// Download fetches the YAMNet model file into dir unless already cached and
// returns its local path.
func Download(dir string) (string, error) {
	local := filepath.Join(dir, "yamnet.tflite")
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	resp, err := http.Get(ModelURL)
	if err != nil {
		return "", fmt.Errorf("failed to download YAMNet: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download YAMNet: unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(local)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(local)
		return "", fmt.Errorf("failed to write YAMNet model: %v", err)
	}
	return local, f.Close()
}

// Load opens a YAMNet model file and prepares an interpreter for it.
func Load(path string) (*YAMNet, error) {
	model := tflite.NewModelFromFile(path)
	if model == nil {
		return nil, fmt.Errorf("failed to load YAMNet model from %s", path)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(4)

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("failed to create YAMNet interpreter")
	}

	return &YAMNet{model: model, options: options, interp: interp}, nil
}

// Extract runs one waveform through YAMNet and returns the time-averaged
// embedding. Integer-scaled input is brought into [-1, 1] first; the model
// requires normalized float amplitudes.
func (y *YAMNet) Extract(samples []float32) ([]float32, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty waveform")
	}

	samples = audio.Normalize(samples)

	// YAMNet takes a dynamic-length waveform, so the input tensor is
	// resized per track before allocation.
	if status := y.interp.ResizeInputTensor(0, []int32{int32(len(samples))}); status != tflite.OK {
		return nil, fmt.Errorf("failed to resize input tensor to %d samples", len(samples))
	}
	if status := y.interp.AllocateTensors(); status != tflite.OK {
		return nil, fmt.Errorf("failed to allocate tensors")
	}

	input := y.interp.GetInputTensor(0)
	if input == nil {
		return nil, fmt.Errorf("missing input tensor")
	}
	if status := input.SetFloat32s(samples); status != tflite.OK {
		return nil, fmt.Errorf("failed to write waveform into input tensor")
	}

	if status := y.interp.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("inference failed")
	}

	// Outputs: 0 = class scores, 1 = embeddings, 2 = spectrogram. Only
	// the embeddings matter here.
	if y.interp.GetOutputTensorCount() < 2 {
		return nil, fmt.Errorf("unexpected output count %d", y.interp.GetOutputTensorCount())
	}
	emb := y.interp.GetOutputTensor(1)
	shape := emb.Shape()
	if len(shape) != 2 || shape[1] != Dim {
		return nil, fmt.Errorf("unexpected embedding shape %v", shape)
	}

	frames := make([]float32, shape[0]*shape[1])
	copy(frames, emb.Float32s())

	return MeanPool(frames, shape[0], shape[1])
}

// Close releases the interpreter and model.
func (y *YAMNet) Close() error {
	y.interp.Delete()
	y.options.Delete()
	y.model.Delete()
	return nil
}

// RuntimeVersion reports the TFLite C runtime version linked into this
// binary, used by the startup environment check.
func RuntimeVersion() string {
	return tflite.Version()
}
