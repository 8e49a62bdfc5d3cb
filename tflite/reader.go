package tflite

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	flatbuffers "github.com/google/flatbuffers/go"
)

// Model is a parsed TFLite flatbuffer, restricted to the operator subset
// this package exports. It doubles as a lightweight interpreter: Invoke
// evaluates the graph on the CPU, which is how the export round-trip is
// verified without a mobile runtime.
type Model struct {
	Description string

	tensors []tensorInfo
	buffers [][]byte
	ops     []operatorInfo
	opcodes []int32
	inputs  []int
	outputs []int
}

type tensorInfo struct {
	name   string
	shape  []int
	buffer int
}

type operatorInfo struct {
	opcode          int32
	inputs          []int
	outputs         []int
	fusedActivation byte
}

// Load reads and parses a TFLite model file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %v", err)
	}
	return Parse(data)
}

// Parse decodes a TFLite flatbuffer from memory.
func Parse(data []byte) (*Model, error) {
	if len(data) < 8 || string(data[4:8]) != FileIdentifier {
		return nil, fmt.Errorf("not a TFLite model: missing %q identifier", FileIdentifier)
	}

	root := flatbuffers.Table{Bytes: data, Pos: flatbuffers.GetUOffsetT(data)}

	if v := tableUint32(root, modelVersion); v != SchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %d", v)
	}

	m := &Model{Description: tableString(root, modelDescription)}

	for i, n := 0, tableVectorLen(root, modelOperatorCodes); i < n; i++ {
		oc, err := tableVectorTable(root, modelOperatorCodes, i)
		if err != nil {
			return nil, err
		}
		code := tableInt32(oc, opcodeBuiltin)
		if code == 0 {
			code = int32(tableInt8(oc, opcodeDeprecatedBuiltin))
		}
		m.opcodes = append(m.opcodes, code)
	}

	for i, n := 0, tableVectorLen(root, modelBuffers); i < n; i++ {
		buf, err := tableVectorTable(root, modelBuffers, i)
		if err != nil {
			return nil, err
		}
		m.buffers = append(m.buffers, tableByteVector(buf, bufferData))
	}

	if tableVectorLen(root, modelSubgraphs) != 1 {
		return nil, fmt.Errorf("expected exactly one subgraph, got %d", tableVectorLen(root, modelSubgraphs))
	}
	sg, err := tableVectorTable(root, modelSubgraphs, 0)
	if err != nil {
		return nil, err
	}

	for i, n := 0, tableVectorLen(sg, subgraphTensors); i < n; i++ {
		tt, err := tableVectorTable(sg, subgraphTensors, i)
		if err != nil {
			return nil, err
		}
		if tableByte(tt, tensorType) != tensorTypeFloat32 {
			return nil, fmt.Errorf("tensor %d is not float32", i)
		}
		m.tensors = append(m.tensors, tensorInfo{
			name:   tableString(tt, tensorName),
			shape:  tableInt32VectorAsInts(tt, tensorShape),
			buffer: int(tableUint32(tt, tensorBuffer)),
		})
	}

	m.inputs = tableInt32VectorAsInts(sg, subgraphInputs)
	m.outputs = tableInt32VectorAsInts(sg, subgraphOutputs)

	for i, n := 0, tableVectorLen(sg, subgraphOperators); i < n; i++ {
		ot, err := tableVectorTable(sg, subgraphOperators, i)
		if err != nil {
			return nil, err
		}
		idx := int(tableUint32(ot, operatorOpcodeIndex))
		if idx < 0 || idx >= len(m.opcodes) {
			return nil, fmt.Errorf("operator %d references unknown opcode %d", i, idx)
		}
		op := operatorInfo{
			opcode:  m.opcodes[idx],
			inputs:  tableInt32VectorAsInts(ot, operatorInputs),
			outputs: tableInt32VectorAsInts(ot, operatorOutputs),
		}
		if op.opcode == OpFullyConnected {
			if opts, err := tableSubTable(ot, operatorOptions); err == nil {
				op.fusedActivation = tableByte(opts, fullyConnectedFusedActivation)
			}
		}
		m.ops = append(m.ops, op)
	}

	if len(m.inputs) != 1 || len(m.outputs) != 1 {
		return nil, fmt.Errorf("expected one input and one output tensor, got %d/%d", len(m.inputs), len(m.outputs))
	}
	return m, nil
}

// InputShape returns the shape of the model's input tensor.
func (m *Model) InputShape() []int {
	return append([]int(nil), m.tensors[m.inputs[0]].shape...)
}

// OutputShape returns the shape of the model's output tensor.
func (m *Model) OutputShape() []int {
	return append([]int(nil), m.tensors[m.outputs[0]].shape...)
}

// Invoke runs one forward pass. The input length must match the input
// tensor's element count; the output tensor's values are returned.
func (m *Model) Invoke(input []float32) ([]float32, error) {
	want := elemCount(m.tensors[m.inputs[0]].shape)
	if len(input) != want {
		return nil, fmt.Errorf("input has %d values, model expects %d", len(input), want)
	}

	values := make(map[int][]float32, len(m.tensors))
	for i, t := range m.tensors {
		if t.buffer > 0 && t.buffer < len(m.buffers) && len(m.buffers[t.buffer]) > 0 {
			values[i] = bytesToFloats(m.buffers[t.buffer])
		}
	}
	values[m.inputs[0]] = input

	for i, op := range m.ops {
		switch op.opcode {
		case OpFullyConnected:
			if err := m.invokeFullyConnected(op, values); err != nil {
				return nil, fmt.Errorf("operator %d: %v", i, err)
			}
		case OpSoftmax:
			in, ok := values[op.inputs[0]]
			if !ok {
				return nil, fmt.Errorf("operator %d: missing input tensor %d", i, op.inputs[0])
			}
			values[op.outputs[0]] = softmax(in)
		default:
			return nil, fmt.Errorf("operator %d: unsupported builtin op %d", i, op.opcode)
		}
	}

	out, ok := values[m.outputs[0]]
	if !ok {
		return nil, fmt.Errorf("graph produced no value for output tensor %d", m.outputs[0])
	}
	return out, nil
}

func (m *Model) invokeFullyConnected(op operatorInfo, values map[int][]float32) error {
	if len(op.inputs) != 3 {
		return fmt.Errorf("expected 3 inputs, got %d", len(op.inputs))
	}
	in := values[op.inputs[0]]
	w := values[op.inputs[1]]
	bias := values[op.inputs[2]]
	if in == nil || w == nil || bias == nil {
		return fmt.Errorf("missing input tensors")
	}

	wShape := m.tensors[op.inputs[1]].shape
	if len(wShape) != 2 {
		return fmt.Errorf("weights must be rank 2, got %v", wShape)
	}
	units, inputSize := wShape[0], wShape[1]
	if len(in) != inputSize || len(bias) != units {
		return fmt.Errorf("shape mismatch: input %d, weights %v, bias %d", len(in), wShape, len(bias))
	}

	out := make([]float32, units)
	for j := 0; j < units; j++ {
		sum := bias[j]
		row := w[j*inputSize : (j+1)*inputSize]
		for i, v := range in {
			sum += v * row[i]
		}
		if op.fusedActivation == ActivationRelu && sum < 0 {
			sum = 0
		}
		out[j] = sum
	}
	values[op.outputs[0]] = out
	return nil
}

func softmax(x []float32) []float32 {
	max := x[0]
	for _, v := range x[1:] {
		if v > max {
			max = v
		}
	}
	out := make([]float32, len(x))
	var sum float32
	for i, v := range x {
		e := float32(math.Exp(float64(v - max)))
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func elemCount(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func bytesToFloats(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return out
}

// Flatbuffer field helpers. Field slots follow schema.go; offsets returned
// by Table.Offset are zero when a field is absent, in which case the
// schema default applies.

func fieldOffset(t flatbuffers.Table, slot int) flatbuffers.UOffsetT {
	return flatbuffers.UOffsetT(t.Offset(flatbuffers.VOffsetT(4 + 2*slot)))
}

func tableUint32(t flatbuffers.Table, slot int) uint32 {
	if o := fieldOffset(t, slot); o != 0 {
		return t.GetUint32(o + t.Pos)
	}
	return 0
}

func tableInt32(t flatbuffers.Table, slot int) int32 {
	if o := fieldOffset(t, slot); o != 0 {
		return t.GetInt32(o + t.Pos)
	}
	return 0
}

func tableInt8(t flatbuffers.Table, slot int) int8 {
	if o := fieldOffset(t, slot); o != 0 {
		return t.GetInt8(o + t.Pos)
	}
	return 0
}

func tableByte(t flatbuffers.Table, slot int) byte {
	if o := fieldOffset(t, slot); o != 0 {
		return t.GetByte(o + t.Pos)
	}
	return 0
}

func tableString(t flatbuffers.Table, slot int) string {
	if o := fieldOffset(t, slot); o != 0 {
		return string(t.ByteVector(o + t.Pos))
	}
	return ""
}

func tableByteVector(t flatbuffers.Table, slot int) []byte {
	if o := fieldOffset(t, slot); o != 0 {
		return t.ByteVector(o + t.Pos)
	}
	return nil
}

func tableVectorLen(t flatbuffers.Table, slot int) int {
	if o := fieldOffset(t, slot); o != 0 {
		return t.VectorLen(o)
	}
	return 0
}

func tableVectorTable(t flatbuffers.Table, slot, i int) (flatbuffers.Table, error) {
	o := fieldOffset(t, slot)
	if o == 0 || i >= t.VectorLen(o) {
		return flatbuffers.Table{}, fmt.Errorf("table vector element %d out of range", i)
	}
	pos := t.Vector(o) + flatbuffers.UOffsetT(i*4)
	return flatbuffers.Table{Bytes: t.Bytes, Pos: t.Indirect(pos)}, nil
}

// tableSubTable resolves a table-typed field, used for the builtin
// options union payload.
func tableSubTable(t flatbuffers.Table, slot int) (flatbuffers.Table, error) {
	o := fieldOffset(t, slot)
	if o == 0 {
		return flatbuffers.Table{}, fmt.Errorf("options table absent")
	}
	return flatbuffers.Table{Bytes: t.Bytes, Pos: t.Indirect(o + t.Pos)}, nil
}

func tableInt32VectorAsInts(t flatbuffers.Table, slot int) []int {
	o := fieldOffset(t, slot)
	if o == 0 {
		return nil
	}
	n := t.VectorLen(o)
	base := t.Vector(o)
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = int(t.GetInt32(base + flatbuffers.UOffsetT(i*4)))
	}
	return out
}
