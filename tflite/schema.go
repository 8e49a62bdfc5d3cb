// Package tflite serializes the trained classifier as a TensorFlow Lite
// flatbuffer and can read one back for verification. Only the small
// operator subset the classifier needs is supported: FULLY_CONNECTED with
// an optional fused ReLU, and SOFTMAX, all in float32. Restricting the
// exported graph to these low-version builtin operators keeps the file
// loadable on old mobile TFLite runtimes.
package tflite

// FileIdentifier is the flatbuffer file identifier of TFLite models.
const FileIdentifier = "TFL3"

// SchemaVersion is the TFLite schema version written into the model.
const SchemaVersion = 3

// TensorType values (schema enum TensorType).
const tensorTypeFloat32 = 0

// BuiltinOperator values (schema enum BuiltinOperator).
const (
	OpFullyConnected = 9
	OpSoftmax        = 25
)

// BuiltinOptions union discriminators (schema union BuiltinOptions).
const (
	optionsFullyConnected = 8
	optionsSoftmax        = 9
)

// ActivationFunctionType values (schema enum ActivationFunctionType).
const (
	ActivationNone = 0
	ActivationRelu = 1
)

// Flatbuffer vtable slots per schema table. A field's vtable byte offset
// is 4 + 2*slot; these mirror schema.fbs field order.
const (
	modelVersion       = 0
	modelOperatorCodes = 1
	modelSubgraphs     = 2
	modelDescription   = 3
	modelBuffers       = 4

	subgraphTensors   = 0
	subgraphInputs    = 1
	subgraphOutputs   = 2
	subgraphOperators = 3
	subgraphName      = 4

	tensorShape  = 0
	tensorType   = 1
	tensorBuffer = 2
	tensorName   = 3

	opcodeDeprecatedBuiltin = 0
	opcodeVersion           = 2
	opcodeBuiltin           = 3

	operatorOpcodeIndex = 0
	operatorInputs      = 1
	operatorOutputs     = 2
	operatorOptionsType = 3
	operatorOptions     = 4

	bufferData = 0

	fullyConnectedFusedActivation = 0

	softmaxBeta = 0
)
