package similarity

import (
	"fmt"
	"sort"

	"github.com/crimson-sun/hazardscope/internal/engine/embedder"
	"github.com/crimson-sun/hazardscope/internal/model"
)

// TextEmbedder embeds texts with a sentence model.
type TextEmbedder interface {
	EmbedBatch(texts []string) ([][]float32, error)
}

// Semantic scores a text against a category's standard description by
// sentence-embedding cosine. Standard vectors are computed once.
type Semantic struct {
	enc      TextEmbedder
	standard map[string][]float32
}

// NewSemantic embeds every standard description in one batch.
func NewSemantic(enc TextEmbedder, standard map[string]string) (*Semantic, error) {
	ids := make([]string, 0, len(standard))
	for id := range standard {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	texts := make([]string, len(ids))
	for i, id := range ids {
		texts[i] = standard[id]
	}

	s := &Semantic{enc: enc, standard: make(map[string][]float32, len(ids))}
	if len(ids) == 0 {
		return s, nil
	}
	vecs, err := enc.EmbedBatch(texts)
	if err != nil {
		return nil, fmt.Errorf("embedding standard descriptions: %w", err)
	}
	if len(vecs) != len(ids) {
		return nil, fmt.Errorf("%w: got %d vectors for %d descriptions", model.ErrEmbedding, len(vecs), len(ids))
	}
	for i, id := range ids {
		s.standard[id] = vecs[i]
	}
	return s, nil
}

// Score compares text with the standard description of categoryID.
func (s *Semantic) Score(text, categoryID string) (float64, error) {
	ref, ok := s.standard[categoryID]
	if !ok {
		return 0, nil
	}
	vecs, err := s.enc.EmbedBatch([]string{text})
	if err != nil {
		return 0, err
	}
	if len(vecs) != 1 {
		return 0, fmt.Errorf("%w: got %d vectors", model.ErrEmbedding, len(vecs))
	}
	return clamp(embedder.Cosine(vecs[0], ref)), nil
}
