package tflite

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/soundml/genre-trainer/classifier"
)

// fcOp is one FULLY_CONNECTED node in the export plan: a dense layer with
// its activation fused in. Dropout layers vanish at export time (they are
// identity at inference) and ReLU folds into the preceding dense node.
type fcOp struct {
	name            string
	units           int
	inputSize       int
	weights         []float32
	bias            []float32
	fusedActivation byte
}

// Export serializes a trained network to path as a float32 TFLite model.
// No quantization is applied: full float32 precision is preserved
// intentionally so the file only needs version-1 builtin operators.
func Export(net *classifier.Network, path string) error {
	data, err := Marshal(net)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write TFLite model: %v", err)
	}
	return nil
}

// Marshal builds the TFLite flatbuffer for a trained network.
func Marshal(net *classifier.Network) ([]byte, error) {
	plan, err := buildPlan(net)
	if err != nil {
		return nil, err
	}

	b := flatbuffers.NewBuilder(1024)

	// Buffer 0 is the conventional empty sentinel; activation tensors
	// reference it. Each weight and bias tensor gets its own buffer.
	bufferOffs := []flatbuffers.UOffsetT{writeBuffer(b, nil)}
	for _, op := range plan {
		bufferOffs = append(bufferOffs, writeBuffer(b, floatBytes(op.weights)))
		bufferOffs = append(bufferOffs, writeBuffer(b, floatBytes(op.bias)))
	}

	// Tensor table: 0 is the model input, then weight/bias/output triples
	// per dense node, then the softmax output.
	inputDim := net.Spec.InputDim
	tensorOffs := []flatbuffers.UOffsetT{
		writeTensor(b, "embedding_input", []int32{1, int32(inputDim)}, 0),
	}
	bufIdx := uint32(1)
	prev := 0 // tensor index feeding the next node
	var ops []plannedOperator
	for _, op := range plan {
		wIdx := len(tensorOffs)
		tensorOffs = append(tensorOffs, writeTensor(b,
			op.name+"/weights", []int32{int32(op.units), int32(op.inputSize)}, bufIdx))
		bufIdx++

		bIdx := len(tensorOffs)
		tensorOffs = append(tensorOffs, writeTensor(b,
			op.name+"/bias", []int32{int32(op.units)}, bufIdx))
		bufIdx++

		outIdx := len(tensorOffs)
		tensorOffs = append(tensorOffs, writeTensor(b,
			op.name+"/output", []int32{1, int32(op.units)}, 0))

		ops = append(ops, plannedOperator{
			opcode:          OpFullyConnected,
			inputs:          []int32{int32(prev), int32(wIdx), int32(bIdx)},
			outputs:         []int32{int32(outIdx)},
			fusedActivation: op.fusedActivation,
		})
		prev = outIdx
	}

	softmaxOut := len(tensorOffs)
	classes := plan[len(plan)-1].units
	tensorOffs = append(tensorOffs, writeTensor(b,
		"genre_output", []int32{1, int32(classes)}, 0))
	ops = append(ops, plannedOperator{
		opcode:  OpSoftmax,
		inputs:  []int32{int32(prev)},
		outputs: []int32{int32(softmaxOut)},
	})

	// Operator codes: index 0 = FULLY_CONNECTED, 1 = SOFTMAX.
	opcodeOffs := []flatbuffers.UOffsetT{
		writeOperatorCode(b, OpFullyConnected),
		writeOperatorCode(b, OpSoftmax),
	}

	var operatorOffs []flatbuffers.UOffsetT
	for _, op := range ops {
		operatorOffs = append(operatorOffs, writeOperator(b, op))
	}

	subgraphOff := writeSubgraph(b, tensorOffs, operatorOffs,
		[]int32{0}, []int32{int32(softmaxOut)})

	modelOff := writeModel(b, opcodeOffs, subgraphOff, bufferOffs)
	b.FinishWithFileIdentifier(modelOff, []byte(FileIdentifier))
	return b.FinishedBytes(), nil
}

// buildPlan flattens the model spec into fused FULLY_CONNECTED nodes and
// validates that the architecture is expressible with the supported ops.
func buildPlan(net *classifier.Network) ([]fcOp, error) {
	if net == nil || net.Spec == nil || !net.Spec.Compiled {
		return nil, fmt.Errorf("network spec must be compiled")
	}

	var plan []fcOp
	layers := net.Spec.Layers
	dense := 0
	for i := 0; i < len(layers); i++ {
		switch layers[i].Type {
		case classifier.Dense:
			op := fcOp{
				name:            layers[i].Name,
				units:           layers[i].Units,
				inputSize:       layers[i].InputSize,
				weights:         net.Weights[dense],
				bias:            net.Biases[dense],
				fusedActivation: ActivationNone,
			}
			dense++
			if i+1 < len(layers) && layers[i+1].Type == classifier.ReLU {
				op.fusedActivation = ActivationRelu
				i++
			}
			plan = append(plan, op)

		case classifier.Dropout:
			// Identity at inference; nothing to emit.

		case classifier.Softmax:
			if i != len(layers)-1 {
				return nil, fmt.Errorf("softmax must be the final layer")
			}

		default:
			return nil, fmt.Errorf("layer %s (%s) is not exportable", layers[i].Name, layers[i].Type)
		}
	}

	if len(plan) == 0 {
		return nil, fmt.Errorf("model has no dense layers")
	}
	if layers[len(layers)-1].Type != classifier.Softmax {
		return nil, fmt.Errorf("model must end with a softmax output")
	}
	return plan, nil
}

type plannedOperator struct {
	opcode          int32
	inputs          []int32
	outputs         []int32
	fusedActivation byte
}

func writeBuffer(b *flatbuffers.Builder, data []byte) flatbuffers.UOffsetT {
	var dataOff flatbuffers.UOffsetT
	if len(data) > 0 {
		dataOff = b.CreateByteVector(data)
	}
	b.StartObject(1)
	if len(data) > 0 {
		b.PrependUOffsetTSlot(bufferData, dataOff, 0)
	}
	return b.EndObject()
}

func writeTensor(b *flatbuffers.Builder, name string, shape []int32, buffer uint32) flatbuffers.UOffsetT {
	nameOff := b.CreateString(name)
	shapeOff := writeInt32Vector(b, shape)

	b.StartObject(4)
	b.PrependUOffsetTSlot(tensorShape, shapeOff, 0)
	b.PrependByteSlot(tensorType, tensorTypeFloat32, 0)
	b.PrependUint32Slot(tensorBuffer, buffer, 0)
	b.PrependUOffsetTSlot(tensorName, nameOff, 0)
	return b.EndObject()
}

func writeOperatorCode(b *flatbuffers.Builder, code int32) flatbuffers.UOffsetT {
	b.StartObject(4)
	// Both the deprecated int8 field and the current int32 field are
	// written so old and new runtimes agree on the operator.
	b.PrependInt8Slot(opcodeDeprecatedBuiltin, int8(code), 0)
	b.PrependInt32Slot(opcodeVersion, 1, 1)
	b.PrependInt32Slot(opcodeBuiltin, code, 0)
	return b.EndObject()
}

func writeOperator(b *flatbuffers.Builder, op plannedOperator) flatbuffers.UOffsetT {
	inputsOff := writeInt32Vector(b, op.inputs)
	outputsOff := writeInt32Vector(b, op.outputs)

	var optionsOff flatbuffers.UOffsetT
	var optionsType byte
	var opcodeIndex uint32
	switch op.opcode {
	case OpFullyConnected:
		b.StartObject(4)
		b.PrependByteSlot(fullyConnectedFusedActivation, op.fusedActivation, 0)
		optionsOff = b.EndObject()
		optionsType = optionsFullyConnected
		opcodeIndex = 0
	case OpSoftmax:
		b.StartObject(1)
		b.PrependFloat32Slot(softmaxBeta, 1.0, 0.0)
		optionsOff = b.EndObject()
		optionsType = optionsSoftmax
		opcodeIndex = 1
	}

	b.StartObject(5)
	b.PrependUint32Slot(operatorOpcodeIndex, opcodeIndex, 0)
	b.PrependUOffsetTSlot(operatorInputs, inputsOff, 0)
	b.PrependUOffsetTSlot(operatorOutputs, outputsOff, 0)
	b.PrependByteSlot(operatorOptionsType, optionsType, 0)
	b.PrependUOffsetTSlot(operatorOptions, optionsOff, 0)
	return b.EndObject()
}

func writeSubgraph(b *flatbuffers.Builder, tensors, operators []flatbuffers.UOffsetT, inputs, outputs []int32) flatbuffers.UOffsetT {
	tensorsOff := writeOffsetVector(b, tensors)
	inputsOff := writeInt32Vector(b, inputs)
	outputsOff := writeInt32Vector(b, outputs)
	operatorsOff := writeOffsetVector(b, operators)
	nameOff := b.CreateString("genre_classifier")

	b.StartObject(5)
	b.PrependUOffsetTSlot(subgraphTensors, tensorsOff, 0)
	b.PrependUOffsetTSlot(subgraphInputs, inputsOff, 0)
	b.PrependUOffsetTSlot(subgraphOutputs, outputsOff, 0)
	b.PrependUOffsetTSlot(subgraphOperators, operatorsOff, 0)
	b.PrependUOffsetTSlot(subgraphName, nameOff, 0)
	return b.EndObject()
}

func writeModel(b *flatbuffers.Builder, opcodes []flatbuffers.UOffsetT, subgraph flatbuffers.UOffsetT, buffers []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	opcodesOff := writeOffsetVector(b, opcodes)
	subgraphsOff := writeOffsetVector(b, []flatbuffers.UOffsetT{subgraph})
	buffersOff := writeOffsetVector(b, buffers)
	descOff := b.CreateString("genre-trainer dense classifier over audio embeddings")

	b.StartObject(5)
	b.PrependUint32Slot(modelVersion, SchemaVersion, 0)
	b.PrependUOffsetTSlot(modelOperatorCodes, opcodesOff, 0)
	b.PrependUOffsetTSlot(modelSubgraphs, subgraphsOff, 0)
	b.PrependUOffsetTSlot(modelDescription, descOff, 0)
	b.PrependUOffsetTSlot(modelBuffers, buffersOff, 0)
	return b.EndObject()
}

func writeInt32Vector(b *flatbuffers.Builder, values []int32) flatbuffers.UOffsetT {
	b.StartVector(4, len(values), 4)
	for i := len(values) - 1; i >= 0; i-- {
		b.PrependInt32(values[i])
	}
	return b.EndVector(len(values))
}

func writeOffsetVector(b *flatbuffers.Builder, offs []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	b.StartVector(4, len(offs), 4)
	for i := len(offs) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offs[i])
	}
	return b.EndVector(len(offs))
}

func floatBytes(values []float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}
