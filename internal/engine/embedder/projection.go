package embedder

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Activation names accepted by loadProjection.
const (
	ActivationIdentity = "identity"
	ActivationTanh     = "tanh"
)

// projection holds a dense layer loaded from a sentence-transformers
// safetensors file: out = act(W·x + b). The bias is optional.
type projection struct {
	weights []float32 // row-major [outDim, inDim]
	bias    []float32 // [outDim] or nil
	inDim   int
	outDim  int
	tanh    bool
}

type tensorMeta struct {
	Dtype       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// loadProjection reads a safetensors file containing a "linear.weight"
// tensor and, optionally, a "linear.bias" tensor, both of dtype F32.
func loadProjection(path, activation string) (*projection, error) {
	var useTanh bool
	switch activation {
	case "", ActivationIdentity:
	case ActivationTanh:
		useTanh = true
	default:
		return nil, fmt.Errorf("projection: unsupported activation %q", activation)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("projection: file too small: %d bytes", len(data))
	}

	// Safetensors header: 8-byte LE uint64 header length, then JSON.
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if uint64(len(data)) < 8+headerLen {
		return nil, fmt.Errorf("projection: header length %d exceeds file size", headerLen)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("projection: failed to parse header: %w", err)
	}
	body := data[8+headerLen:]

	raw, ok := header["linear.weight"]
	if !ok {
		return nil, fmt.Errorf("projection: tensor 'linear.weight' not found in header")
	}
	weights, shape, err := readTensor(raw, body)
	if err != nil {
		return nil, fmt.Errorf("projection: linear.weight: %w", err)
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("projection: expected 2D weight tensor, got shape %v", shape)
	}

	p := &projection{weights: weights, outDim: shape[0], inDim: shape[1], tanh: useTanh}

	if raw, ok := header["linear.bias"]; ok {
		bias, shape, err := readTensor(raw, body)
		if err != nil {
			return nil, fmt.Errorf("projection: linear.bias: %w", err)
		}
		if len(shape) != 1 || shape[0] != p.outDim {
			return nil, fmt.Errorf("projection: bias shape %v doesn't match output dim %d", shape, p.outDim)
		}
		p.bias = bias
	}
	return p, nil
}

// readTensor decodes one F32 tensor from the safetensors data section.
func readTensor(raw json.RawMessage, body []byte) ([]float32, []int, error) {
	var meta tensorMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, nil, fmt.Errorf("failed to parse tensor metadata: %w", err)
	}
	if meta.Dtype != "F32" {
		return nil, nil, fmt.Errorf("expected dtype F32, got %s", meta.Dtype)
	}

	numFloats := 1
	for _, d := range meta.Shape {
		numFloats *= d
	}
	start, end := meta.DataOffsets[0], meta.DataOffsets[1]
	if end-start != numFloats*4 {
		return nil, nil, fmt.Errorf("data size %d doesn't match shape %v", end-start, meta.Shape)
	}
	if start < 0 || end > len(body) {
		return nil, nil, fmt.Errorf("data range [%d:%d] exceeds file size", start, end)
	}

	out := make([]float32, numFloats)
	for i := range out {
		bits := binary.LittleEndian.Uint32(body[start+i*4 : start+i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, meta.Shape, nil
}

// apply projects a single vector from inDim to outDim.
func (p *projection) apply(vec []float32) []float32 {
	out := make([]float32, p.outDim)
	for i := 0; i < p.outDim; i++ {
		row := p.weights[i*p.inDim : (i+1)*p.inDim]
		var sum float32
		for j, w := range row {
			sum += w * vec[j]
		}
		if p.bias != nil {
			sum += p.bias[i]
		}
		if p.tanh {
			sum = float32(math.Tanh(float64(sum)))
		}
		out[i] = sum
	}
	return out
}
