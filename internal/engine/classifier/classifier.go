package classifier

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/crimson-sun/hazardscope/internal/engine/embedder"
	"github.com/crimson-sun/hazardscope/internal/engine/taxonomy"
	"github.com/crimson-sun/hazardscope/internal/logging"
	"github.com/crimson-sun/hazardscope/internal/model"
)

// ImageEncoder embeds an image into the joint image/text space.
type ImageEncoder interface {
	EmbedImage(img image.Image) ([]float32, error)
}

// ExemplarSource is read access to the persisted case library.
type ExemplarSource interface {
	// Cases returns every exemplar with its embedding, in insertion order.
	Cases(ctx context.Context) ([]model.ExemplarCase, error)
	// CaseIDs returns the ids of every exemplar.
	CaseIDs(ctx context.Context) ([]uint, error)
	// CasesByID returns the exemplars with the given ids, without embeddings.
	CasesByID(ctx context.Context, ids []uint) ([]model.ExemplarCase, error)
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger used for degraded classifications.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) { c.log = l }
}

// WithRand sets the random source used by SampleExemplars.
func WithRand(src rand.Source) Option {
	return func(c *Classifier) { c.rng = rand.New(src) }
}

// Classifier scores images against pre-embedded hazard category prototypes
// and retrieves visually similar exemplars.
type Classifier struct {
	enc      ImageEncoder
	taxonomy *taxonomy.Taxonomy
	store    ExemplarSource
	log      *slog.Logger

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// New creates a Classifier over the taxonomy prototypes and exemplar store.
func New(enc ImageEncoder, tax *taxonomy.Taxonomy, store ExemplarSource, opts ...Option) *Classifier {
	c := &Classifier{
		enc:      enc,
		taxonomy: tax,
		store:    store,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDefault(c.log)
	return c
}

// Embed returns the L2-normalized embedding of img.
func (c *Classifier) Embed(img image.Image) ([]float32, error) {
	vec, err := c.enc.EmbedImage(img)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w: %w", model.ErrEmbedding, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("classifier: %w: empty embedding", model.ErrEmbedding)
	}
	return embedder.Normalize(vec), nil
}

// Classify embeds img and picks the best-matching category. Failures
// degrade to a zero-confidence "unknown" verdict.
func (c *Classifier) Classify(img image.Image) model.Classification {
	vec, err := c.Embed(img)
	if err != nil {
		c.log.Warn("zero-shot classification degraded", "error", err)
		return Degraded(err)
	}
	return c.ClassifyVector(vec)
}

// ClassifyVector scores a normalized embedding against every prototype.
// Confidence is the winning cosine similarity, unscaled.
func (c *Classifier) ClassifyVector(vec []float32) model.Classification {
	labels := c.taxonomy.Labels()
	if len(labels) == 0 || len(vec) == 0 {
		return Degraded(fmt.Errorf("no prototypes to score against"))
	}

	scores := make(map[string]float64, len(labels))
	best := -1
	bestScore := 0.0
	for i, lbl := range labels {
		sim := embedder.Cosine(vec, lbl.Vector)
		scores[lbl.ID] = sim
		if best < 0 || sim > bestScore {
			best, bestScore = i, sim
		}
	}

	id := labels[best].ID
	return model.Classification{
		CategoryID:  id,
		Description: c.taxonomy.Description(id),
		Confidence:  bestScore,
		AllScores:   scores,
	}
}

// Degraded is the classification returned when scoring is impossible.
func Degraded(err error) model.Classification {
	return model.Classification{
		CategoryID:  model.UnknownCategory,
		Description: fmt.Sprintf("classification failed: %v", err),
		Confidence:  0,
		AllScores:   map[string]float64{},
	}
}

// RetrieveSimilar embeds img and returns the k most similar exemplars.
func (c *Classifier) RetrieveSimilar(ctx context.Context, img image.Image, k int) ([]model.ExemplarCase, error) {
	vec, err := c.Embed(img)
	if err != nil {
		return nil, err
	}
	return c.RetrieveByVector(ctx, vec, k)
}

// RetrieveByVector returns the k exemplars most similar to a normalized
// query vector. An empty store yields an empty list.
func (c *Classifier) RetrieveByVector(ctx context.Context, vec []float32, k int) ([]model.ExemplarCase, error) {
	if k <= 0 {
		return nil, nil
	}
	cases, err := c.store.Cases(ctx)
	if err != nil {
		return nil, fmt.Errorf("classifier: retrieve: %w", err)
	}
	return TopK(cases, vec, k), nil
}

// TopK ranks cases by dot-product similarity to query (cosine, given
// normalized vectors) and returns the best k. Ties keep input order.
// Cases without an embedding are skipped.
func TopK(cases []model.ExemplarCase, query []float32, k int) []model.ExemplarCase {
	type scored struct {
		idx int
		sim float64
	}
	ranked := make([]scored, 0, len(cases))
	for i, cs := range cases {
		if len(cs.Embedding) != len(query) || len(query) == 0 {
			continue
		}
		ranked = append(ranked, scored{idx: i, sim: embedder.Dot(query, cs.Embedding)})
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].sim > ranked[b].sim })

	n := min(k, len(ranked))
	out := make([]model.ExemplarCase, n)
	for i := 0; i < n; i++ {
		out[i] = cases[ranked[i].idx]
	}
	return out
}

// SampleExemplars returns min(n, store size) distinct exemplars chosen
// uniformly at random.
func (c *Classifier) SampleExemplars(ctx context.Context, n int) ([]model.ExemplarCase, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := c.store.CaseIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("classifier: sample: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	picked := c.sample(ids, n)
	cases, err := c.store.CasesByID(ctx, picked)
	if err != nil {
		return nil, fmt.Errorf("classifier: sample: %w", err)
	}

	// Keep the random order of the draw.
	byID := make(map[uint]model.ExemplarCase, len(cases))
	for _, cs := range cases {
		byID[cs.ID] = cs
	}
	out := make([]model.ExemplarCase, 0, len(picked))
	for _, id := range picked {
		if cs, ok := byID[id]; ok {
			out = append(out, cs)
		}
	}
	return out, nil
}

// sample draws min(n, len(ids)) ids without replacement (partial Fisher-Yates).
func (c *Classifier) sample(ids []uint, n int) []uint {
	pool := append([]uint(nil), ids...)
	n = min(n, len(pool))

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < n; i++ {
		j := i + c.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
