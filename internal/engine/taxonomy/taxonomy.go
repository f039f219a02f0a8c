package taxonomy

import (
	"fmt"

	"github.com/crimson-sun/hazardscope/internal/model"
)

// TextEncoder embeds category descriptions into the joint image/text space.
type TextEncoder interface {
	EmbedTexts(texts []string) ([][]float32, error)
}

// Taxonomy holds the hazard categories and their pre-embedded prototype
// vectors. Immutable after New; safe for concurrent reads.
type Taxonomy struct {
	categories []model.HazardCategory
	byID       map[string]model.HazardCategory
	labels     []model.EmbeddedLabel
}

// New creates a Taxonomy and pre-embeds every category description in one
// batch. A nil encoder builds a taxonomy without prototypes, for components
// that only need the reference text.
func New(categories []model.HazardCategory, enc TextEncoder) (*Taxonomy, error) {
	t := &Taxonomy{
		categories: categories,
		byID:       make(map[string]model.HazardCategory, len(categories)),
	}
	for _, c := range categories {
		t.byID[c.ID] = c
	}
	if enc == nil || len(categories) == 0 {
		return t, nil
	}

	texts := make([]string, len(categories))
	for i, c := range categories {
		texts[i] = c.Description
	}
	vecs, err := enc.EmbedTexts(texts)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: embedding prototypes: %w", err)
	}
	if len(vecs) != len(categories) {
		return nil, fmt.Errorf("taxonomy: got %d prototype vectors for %d categories", len(vecs), len(categories))
	}

	t.labels = make([]model.EmbeddedLabel, len(categories))
	for i, c := range categories {
		t.labels[i] = model.EmbeddedLabel{ID: c.ID, Vector: vecs[i]}
	}
	return t, nil
}

// Labels returns the pre-embedded category prototypes in category order.
func (t *Taxonomy) Labels() []model.EmbeddedLabel {
	return t.labels
}

// Categories returns all categories in load order.
func (t *Taxonomy) Categories() []model.HazardCategory {
	return t.categories
}

// Get returns the category with the given id.
func (t *Taxonomy) Get(id string) (model.HazardCategory, bool) {
	c, ok := t.byID[id]
	return c, ok
}

// Description returns the standard description of id, or "" if unknown.
func (t *Taxonomy) Description(id string) string {
	return t.byID[id].Description
}

// Remediation returns the default remediation for id, falling back to
// GenericRemediation.
func (t *Taxonomy) Remediation(id string) string {
	if c, ok := t.byID[id]; ok && c.Remediation != "" {
		return c.Remediation
	}
	return GenericRemediation(id)
}

// StandardDescriptions returns id → standard description.
func (t *Taxonomy) StandardDescriptions() map[string]string {
	out := make(map[string]string, len(t.categories))
	for _, c := range t.categories {
		out[c.ID] = c.Description
	}
	return out
}
