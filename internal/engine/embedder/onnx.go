package embedder

import (
	"fmt"
	"runtime"
	"slices"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Safe to call multiple
// times; only the first call has any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// Input roles of a token model.
const (
	roleIDs = iota
	roleMask
	roleTypes
)

// onnxSession wraps a DynamicAdvancedSession for either a token model
// (BERT-style text encoder) or a pixel model (vision tower).
type onnxSession struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	inputRoles []int
	outputName string
	outputRank int
	embedDim   int64
}

// newSession initializes the runtime and inspects the model. inputs picks
// and orders the input names; preferredOutputs are tried before falling
// back to the first output of an accepted rank.
func newSession(libPath, modelPath string, inputs func([]ort.InputOutputInfo) ([]string, []int, error), preferredOutputs []string, ranks ...int) (*onnxSession, error) {
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inInfo, outInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}

	names, roles, err := inputs(inInfo)
	if err != nil {
		return nil, err
	}

	out, err := pickOutput(outInfo, preferredOutputs, ranks)
	if err != nil {
		return nil, err
	}
	dims := out.Dimensions
	embedDim := dims[len(dims)-1]
	if embedDim <= 0 {
		return nil, fmt.Errorf("onnx: output %q has dynamic embedding dim %v", out.Name, dims)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(min(4, runtime.NumCPU()))
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(modelPath, names, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &onnxSession{
		session:    session,
		inputNames: names,
		inputRoles: roles,
		outputName: out.Name,
		outputRank: len(dims),
		embedDim:   embedDim,
	}, nil
}

// newTextSession loads a BERT-style model. input_ids is required (a model
// with a single input of any name is accepted as ids-only); attention_mask
// and token_type_ids are fed when the model declares them.
func newTextSession(libPath, modelPath string, preferredOutputs ...string) (*onnxSession, error) {
	return newSession(libPath, modelPath, textInputs, preferredOutputs, 2, 3)
}

// newImageSession loads a vision tower taking a single [batch, 3, H, W] tensor.
func newImageSession(libPath, modelPath string, preferredOutputs ...string) (*onnxSession, error) {
	return newSession(libPath, modelPath, imageInputs, preferredOutputs, 2)
}

func textInputs(inputs []ort.InputOutputInfo) ([]string, []int, error) {
	nameSet := make(map[string]bool, len(inputs))
	for _, inp := range inputs {
		nameSet[inp.Name] = true
	}

	switch {
	case nameSet["input_ids"]:
		names, roles := []string{"input_ids"}, []int{roleIDs}
		if nameSet["attention_mask"] {
			names, roles = append(names, "attention_mask"), append(roles, roleMask)
		}
		if nameSet["token_type_ids"] {
			names, roles = append(names, "token_type_ids"), append(roles, roleTypes)
		}
		return names, roles, nil
	case len(inputs) == 1:
		return []string{inputs[0].Name}, []int{roleIDs}, nil
	default:
		return nil, nil, fmt.Errorf("onnx: model missing required input %q", "input_ids")
	}
}

func imageInputs(inputs []ort.InputOutputInfo) ([]string, []int, error) {
	if len(inputs) != 1 {
		return nil, nil, fmt.Errorf("onnx: vision model must have exactly one input, got %d", len(inputs))
	}
	if dims := inputs[0].Dimensions; len(dims) != 4 {
		return nil, nil, fmt.Errorf("onnx: expected 4D pixel input, got %v", dims)
	}
	return []string{inputs[0].Name}, []int{roleIDs}, nil
}

func pickOutput(outputs []ort.InputOutputInfo, preferred []string, ranks []int) (ort.InputOutputInfo, error) {
	if len(outputs) == 0 {
		return ort.InputOutputInfo{}, fmt.Errorf("onnx: model has no outputs")
	}
	for _, name := range preferred {
		for _, o := range outputs {
			if o.Name == name && slices.Contains(ranks, len(o.Dimensions)) {
				return o, nil
			}
		}
	}
	for _, o := range outputs {
		if slices.Contains(ranks, len(o.Dimensions)) {
			return o, nil
		}
	}
	return ort.InputOutputInfo{}, fmt.Errorf("onnx: no output of rank %v, got %v", ranks, outputs[0].Dimensions)
}

// inferTokens runs a token model. For rank-3 outputs the result is flat
// [batchSize * seqLen * embedDim] hidden states; for rank-2 outputs it is
// flat [batchSize * embedDim] pooled vectors.
func (s *onnxSession) inferTokens(b tokenized) ([]float32, error) {
	shape := ort.NewShape(b.batchSize, b.seqLen)

	values := make([]ort.Value, 0, len(s.inputRoles))
	defer func() {
		for _, v := range values {
			v.Destroy()
		}
	}()
	for i, role := range s.inputRoles {
		var data []int64
		switch role {
		case roleIDs:
			data = b.inputIDs
		case roleMask:
			data = b.attentionMask
		default:
			data = b.tokenTypeIDs
		}
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("onnx: failed to create %s tensor: %w", s.inputNames[i], err)
		}
		values = append(values, t)
	}

	outShape := ort.NewShape(b.batchSize, s.embedDim)
	if s.outputRank == 3 {
		outShape = ort.NewShape(b.batchSize, b.seqLen, s.embedDim)
	}
	return s.run(values, outShape)
}

// inferPixels runs a vision model on flat [batchSize * 3 * size * size]
// pixel values and returns flat [batchSize * embedDim] embeddings.
func (s *onnxSession) inferPixels(pixels []float32, batchSize, size int64) ([]float32, error) {
	t, err := ort.NewTensor(ort.NewShape(batchSize, 3, size, size), pixels)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create %s tensor: %w", s.inputNames[0], err)
	}
	defer t.Destroy()
	return s.run([]ort.Value{t}, ort.NewShape(batchSize, s.embedDim))
}

func (s *onnxSession) run(inputs []ort.Value, outShape ort.Shape) ([]float32, error) {
	tOut, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer tOut.Destroy()

	if err := s.session.Run(inputs, []ort.Value{tOut}); err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}

	// Copy data out before tensor is destroyed.
	src := tOut.GetData()
	result := make([]float32, len(src))
	copy(result, src)
	return result, nil
}

// close releases the ONNX session resources.
func (s *onnxSession) close() error {
	return s.session.Destroy()
}
