package tflite

import "fmt"

// FullyConnectedOpVersion is the operator version the exporter emits.
// Float32 FULLY_CONNECTED without shuffled weights or keep_num_dims is
// version 1, which every Android TFLite runtime supports. Newer TensorFlow
// converters emit version 12 of the same operator, which requires TFLite
// 2.17+ on device; avoiding that is the whole point of exporting from here
// with a fixed operator set.
const FullyConnectedOpVersion = 1

// CompatibilityNotes describes the exported model's runtime requirements,
// printed by the environment check at startup. Warnings only; nothing here
// blocks the run.
func CompatibilityNotes() []string {
	return []string{
		fmt.Sprintf("Export target: TFLite schema v%d, builtin ops only", SchemaVersion),
		fmt.Sprintf("FULLY_CONNECTED emitted at op version %d - compatible with all Android TFLite runtimes", FullyConnectedOpVersion),
		"No post-training quantization: weights stay float32 to avoid op-version incompatibilities on older runtimes",
	}
}
