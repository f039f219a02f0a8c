package embedder

import (
	"fmt"
	"image"

	"github.com/crimson-sun/hazardscope/internal/model"
)

// CLIPOptions locate a joint image/text model exported as two ONNX towers.
type CLIPOptions struct {
	LibraryPath    string
	ImageModelPath string
	TextModelPath  string
	VocabPath      string // WordPiece vocabulary of the text tower
	ContextLength  int    // static text length, e.g. 52
	ImageSize      int    // square input side, e.g. 224
}

// CLIP embeds images and texts into a shared space. All returned vectors
// are L2-normalized. Safe for concurrent use.
type CLIP struct {
	image *onnxSession
	text  *onnxSession
	tok   *tokenizer
	size  int
}

// NewCLIP loads both towers and checks they agree on the embedding dimension.
func NewCLIP(opts CLIPOptions) (*CLIP, error) {
	size := opts.ImageSize
	if size <= 0 {
		size = 224
	}

	img, err := newImageSession(opts.LibraryPath, opts.ImageModelPath, "image_embeds", "unnorm_image_features", "image_features")
	if err != nil {
		return nil, fmt.Errorf("clip: image tower: %w", err)
	}

	txt, err := newTextSession(opts.LibraryPath, opts.TextModelPath, "text_embeds", "unnorm_text_features", "text_features")
	if err != nil {
		img.close()
		return nil, fmt.Errorf("clip: text tower: %w", err)
	}
	if txt.outputRank != 2 {
		img.close()
		txt.close()
		return nil, fmt.Errorf("clip: text tower must emit pooled [batch, dim] features")
	}
	if img.embedDim != txt.embedDim {
		img.close()
		txt.close()
		return nil, fmt.Errorf("clip: image dim %d != text dim %d", img.embedDim, txt.embedDim)
	}

	tok, err := newTokenizer(opts.VocabPath, opts.ContextLength, true)
	if err != nil {
		img.close()
		txt.close()
		return nil, fmt.Errorf("clip: %w", err)
	}

	return &CLIP{image: img, text: txt, tok: tok, size: size}, nil
}

// Dim returns the shared embedding dimensionality.
func (c *CLIP) Dim() int {
	return int(c.image.embedDim)
}

// EmbedImage returns the normalized embedding of img.
func (c *CLIP) EmbedImage(img image.Image) ([]float32, error) {
	out, err := c.image.inferPixels(pixelValues(img, c.size), 1, int64(c.size))
	if err != nil {
		return nil, fmt.Errorf("clip: %w: %w", model.ErrEmbedding, err)
	}
	return Normalize(out), nil
}

// EmbedTexts returns one normalized embedding per text.
func (c *CLIP) EmbedTexts(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batch := c.tok.tokenizeBatch(texts, true)
	out, err := c.text.inferTokens(batch)
	if err != nil {
		return nil, fmt.Errorf("clip: %w: %w", model.ErrEmbedding, err)
	}

	dim := c.text.embedDim
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = Normalize(out[int64(i)*dim : int64(i+1)*dim])
	}
	return vecs, nil
}

// Close releases both sessions.
func (c *CLIP) Close() error {
	err := c.image.close()
	if terr := c.text.close(); err == nil {
		err = terr
	}
	return err
}
