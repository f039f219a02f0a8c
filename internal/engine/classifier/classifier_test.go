package classifier

import (
	"context"
	"errors"
	"image"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/hazardscope/internal/engine/taxonomy"
	"github.com/crimson-sun/hazardscope/internal/model"
)

// fixedEncoder returns the same vector for every image.
type fixedEncoder struct {
	vec []float32
	err error
}

func (f fixedEncoder) EmbedImage(image.Image) ([]float32, error) { return f.vec, f.err }

// oneHotEncoder embeds category descriptions as one-hot vectors.
type oneHotEncoder struct{}

func (oneHotEncoder) EmbedTexts(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, len(texts))
		v[i] = 1
		out[i] = v
	}
	return out, nil
}

type memStore struct {
	cases []model.ExemplarCase
	err   error
}

func (m *memStore) Cases(context.Context) ([]model.ExemplarCase, error) { return m.cases, m.err }

func (m *memStore) CaseIDs(context.Context) ([]uint, error) {
	if m.err != nil {
		return nil, m.err
	}
	ids := make([]uint, len(m.cases))
	for i, c := range m.cases {
		ids[i] = c.ID
	}
	return ids, nil
}

func (m *memStore) CasesByID(_ context.Context, ids []uint) ([]model.ExemplarCase, error) {
	want := map[uint]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []model.ExemplarCase
	for _, c := range m.cases {
		if want[c.ID] {
			c.Embedding = nil
			out = append(out, c)
		}
	}
	return out, nil
}

func testTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.New(taxonomy.DefaultCategories(), oneHotEncoder{})
	require.NoError(t, err)
	return tax
}

func unit(v ...float32) []float32 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	n := float32(math.Sqrt(s))
	for i := range v {
		v[i] /= n
	}
	return v
}

func blank() image.Image { return image.NewRGBA(image.Rect(0, 0, 4, 4)) }

func TestClassifyPicksArgMax(t *testing.T) {
	vec := make([]float32, 15)
	vec[2] = 0.9 // category 3
	vec[8] = 0.3 // category 9
	c := New(fixedEncoder{vec: vec}, testTaxonomy(t), &memStore{})

	got := c.Classify(blank())

	assert.Equal(t, "3", got.CategoryID)
	assert.Equal(t, "配电箱未及时锁闭", got.Description)
	assert.InDelta(t, 0.9/math.Sqrt(0.81+0.09), got.Confidence, 1e-6)
	assert.Len(t, got.AllScores, 15)
	assert.InDelta(t, 0.3/math.Sqrt(0.81+0.09), got.AllScores["9"], 1e-6)
	assert.Zero(t, got.AllScores["1"])
}

func TestClassifyKeepsRawCosineScale(t *testing.T) {
	vec := make([]float32, 15)
	for i := range vec {
		vec[i] = -1
	}
	vec[4] = -0.5
	c := New(fixedEncoder{vec: vec}, testTaxonomy(t), &memStore{})

	got := c.Classify(blank())
	assert.Equal(t, "5", got.CategoryID)
	assert.Less(t, got.Confidence, 0.0)
}

func TestClassifyDegradesOnEncoderFailure(t *testing.T) {
	c := New(fixedEncoder{err: errors.New("session crashed")}, testTaxonomy(t), &memStore{})

	got := c.Classify(blank())

	assert.Equal(t, model.UnknownCategory, got.CategoryID)
	assert.Zero(t, got.Confidence)
	assert.Contains(t, got.Description, "session crashed")
	assert.NotNil(t, got.AllScores)
}

func TestClassifyDegradesWithoutPrototypes(t *testing.T) {
	tax, err := taxonomy.New(taxonomy.DefaultCategories(), nil)
	require.NoError(t, err)
	c := New(fixedEncoder{vec: []float32{1}}, tax, &memStore{})

	assert.Equal(t, model.UnknownCategory, c.Classify(blank()).CategoryID)
}

func TestEmbedErrors(t *testing.T) {
	c := New(fixedEncoder{err: errors.New("boom")}, testTaxonomy(t), &memStore{})
	_, err := c.Embed(blank())
	require.ErrorIs(t, err, model.ErrEmbedding)

	c = New(fixedEncoder{vec: nil}, testTaxonomy(t), &memStore{})
	_, err = c.Embed(blank())
	require.ErrorIs(t, err, model.ErrEmbedding)
}

func TestEmbedNormalizes(t *testing.T) {
	c := New(fixedEncoder{vec: []float32{3, 4}}, testTaxonomy(t), &memStore{})
	vec, err := c.Embed(blank())
	require.NoError(t, err)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)
}

func TestRetrieveSimilarTopThree(t *testing.T) {
	// Query along x; exemplars at known angles from it.
	query := unit(1, 0, 0)
	store := &memStore{cases: []model.ExemplarCase{
		{ID: 1, Filename: "a.jpg", Embedding: unit(0, 1, 0)},     // cos 0
		{ID: 2, Filename: "b.jpg", Embedding: unit(1, 1, 0)},     // cos 0.707
		{ID: 3, Filename: "c.jpg", Embedding: unit(1, 0, 0)},     // cos 1
		{ID: 4, Filename: "d.jpg", Embedding: unit(-1, 0, 0)},    // cos -1
		{ID: 5, Filename: "e.jpg", Embedding: unit(1, 0.2, 0.1)}, // cos 0.976
	}}
	c := New(fixedEncoder{vec: query}, testTaxonomy(t), store)

	got, err := c.RetrieveSimilar(context.Background(), blank(), 3)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "c.jpg", got[0].Filename)
	assert.Equal(t, "e.jpg", got[1].Filename)
	assert.Equal(t, "b.jpg", got[2].Filename)
}

func TestTopKStableTies(t *testing.T) {
	query := unit(1, 0)
	cases := []model.ExemplarCase{
		{ID: 1, Filename: "first", Embedding: unit(1, 1)},
		{ID: 2, Filename: "second", Embedding: unit(1, 1)},
		{ID: 3, Filename: "best", Embedding: unit(1, 0)},
		{ID: 4, Filename: "third", Embedding: unit(1, 1)},
		{ID: 5, Filename: "no-vector"},
	}

	got := TopK(cases, query, 10)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"best", "first", "second", "third"},
		[]string{got[0].Filename, got[1].Filename, got[2].Filename, got[3].Filename})
}

func TestRetrieveEmptyStore(t *testing.T) {
	c := New(fixedEncoder{vec: unit(1, 0)}, testTaxonomy(t), &memStore{})

	got, err := c.RetrieveByVector(context.Background(), unit(1, 0), 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = c.RetrieveByVector(context.Background(), unit(1, 0), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieveStoreError(t *testing.T) {
	c := New(fixedEncoder{vec: unit(1, 0)}, testTaxonomy(t), &memStore{err: errors.New("db down")})
	_, err := c.RetrieveByVector(context.Background(), unit(1, 0), 3)
	require.Error(t, err)
}

func TestSampleExemplars(t *testing.T) {
	store := &memStore{}
	for i := uint(1); i <= 10; i++ {
		store.cases = append(store.cases, model.ExemplarCase{ID: i, Description: "case", Embedding: []float32{1}})
	}
	c := New(fixedEncoder{}, testTaxonomy(t), store, WithRand(rand.NewPCG(1, 2)))

	got, err := c.SampleExemplars(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	seen := map[uint]bool{}
	for _, cs := range got {
		assert.False(t, seen[cs.ID], "duplicate exemplar %d", cs.ID)
		seen[cs.ID] = true
	}

	all, err := c.SampleExemplars(context.Background(), 50)
	require.NoError(t, err)
	assert.Len(t, all, 10)

	none, err := c.SampleExemplars(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSampleExemplarsIsUniform(t *testing.T) {
	store := &memStore{}
	for i := uint(1); i <= 4; i++ {
		store.cases = append(store.cases, model.ExemplarCase{ID: i})
	}
	c := New(fixedEncoder{}, testTaxonomy(t), store, WithRand(rand.NewPCG(7, 11)))

	counts := map[uint]int{}
	const rounds = 4000
	for i := 0; i < rounds; i++ {
		got, err := c.SampleExemplars(context.Background(), 1)
		require.NoError(t, err)
		counts[got[0].ID]++
	}
	for id := uint(1); id <= 4; id++ {
		assert.InDelta(t, rounds/4, counts[id], rounds/10, "exemplar %d drawn %d times", id, counts[id])
	}
}

func TestSampleExemplarsEmptyStore(t *testing.T) {
	c := New(fixedEncoder{}, testTaxonomy(t), &memStore{})
	got, err := c.SampleExemplars(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}
