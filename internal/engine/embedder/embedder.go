package embedder

import (
	"fmt"

	"github.com/crimson-sun/hazardscope/internal/model"
)

// Embedder produces vector embeddings from text.
type Embedder interface {
	Embed(text string) ([]float32, error)
	EmbedBatch(texts []string) ([][]float32, error)
	Close() error
}

// Options locate the files of a sentence embedding model.
type Options struct {
	LibraryPath    string // ONNX Runtime shared library
	ModelPath      string
	VocabPath      string
	ProjectionPath string // optional Dense layer; empty disables projection
	Activation     string // projection activation: "identity" or "tanh"
	Lowercase      bool   // uncased vocabulary
	MaxSeqLen      int
}

// ONNXEmbedder wraps the ONNX runtime, tokenizer, and optional projection
// layer for local sentence-embedding inference.
type ONNXEmbedder struct {
	session *onnxSession
	tok     *tokenizer
	proj    *projection
}

// New creates an ONNXEmbedder by loading the ONNX model, vocabulary, and
// projection weights. The embedding pipeline is:
// tokenize → ONNX inference → mean pool → dense projection.
// Models that already emit pooled [batch, dim] vectors skip pooling.
func New(opts Options) (*ONNXEmbedder, error) {
	sess, err := newTextSession(opts.LibraryPath, opts.ModelPath, "last_hidden_state", "token_embeddings", "sentence_embedding")
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	tok, err := newTokenizer(opts.VocabPath, opts.MaxSeqLen, opts.Lowercase)
	if err != nil {
		sess.close()
		return nil, fmt.Errorf("embedder: %w", err)
	}

	var proj *projection
	if opts.ProjectionPath != "" {
		proj, err = loadProjection(opts.ProjectionPath, opts.Activation)
		if err != nil {
			sess.close()
			return nil, fmt.Errorf("embedder: %w", err)
		}
		if int(sess.embedDim) != proj.inDim {
			sess.close()
			return nil, fmt.Errorf("embedder: ONNX output dim %d != projection input dim %d",
				sess.embedDim, proj.inDim)
		}
	}

	return &ONNXEmbedder{session: sess, tok: tok, proj: proj}, nil
}

// EmbedDim returns the final embedding dimensionality (after projection).
func (e *ONNXEmbedder) EmbedDim() int {
	if e.proj != nil {
		return e.proj.outDim
	}
	return int(e.session.embedDim)
}

// Embed produces a single embedding vector for the given text.
func (e *ONNXEmbedder) Embed(text string) ([]float32, error) {
	vecs, err := e.EmbedBatch([]string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch produces embedding vectors for multiple texts in one inference
// call, padded to the longest text.
func (e *ONNXEmbedder) EmbedBatch(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := e.tok.tokenizeBatch(texts, false)

	out, err := e.session.inferTokens(batch)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w: %w", model.ErrEmbedding, err)
	}

	dim := e.session.embedDim
	pooled := out
	if e.session.outputRank == 3 {
		pooled = meanPool(out, batch.attentionMask, batch.batchSize, batch.seqLen, dim)
	}

	results := make([][]float32, batch.batchSize)
	for i := int64(0); i < batch.batchSize; i++ {
		vec := pooled[i*dim : (i+1)*dim]
		if e.proj != nil {
			results[i] = e.proj.apply(vec)
		} else {
			results[i] = append([]float32(nil), vec...)
		}
	}
	return results, nil
}

// Close releases ONNX Runtime resources.
func (e *ONNXEmbedder) Close() error {
	if e.session != nil {
		return e.session.close()
	}
	return nil
}
