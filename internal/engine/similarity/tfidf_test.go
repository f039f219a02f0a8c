package similarity

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fieldsAnalyzer splits on whitespace.
type fieldsAnalyzer struct{}

func (fieldsAnalyzer) Analyze(text string) ([]string, error) {
	return strings.Fields(strings.ToLower(text)), nil
}

// brittleAnalyzer fails on any text containing "boom".
type brittleAnalyzer struct{}

func (brittleAnalyzer) Analyze(text string) ([]string, error) {
	if strings.Contains(text, "boom") {
		return nil, errors.New("segmenter crashed")
	}
	return strings.Fields(text), nil
}

type errAnalyzer struct{}

func (errAnalyzer) Analyze(string) ([]string, error) { return nil, errors.New("no dictionary") }

func TestVectorizerFitIDF(t *testing.T) {
	v := NewVectorizer(fieldsAnalyzer{}, 1, 0)
	require.NoError(t, v.Fit([]string{"a b", "a c"}))

	assert.Equal(t, 3, v.VocabularySize())
	assert.InDelta(t, 1.0, v.idf[v.vocab["a"]], 1e-12)
	assert.InDelta(t, math.Log(1.5)+1, v.idf[v.vocab["b"]], 1e-12)
}

func TestVectorizerMaxDFPrunesUbiquitousTerms(t *testing.T) {
	v := NewVectorizer(fieldsAnalyzer{}, 0.95, 0)
	require.NoError(t, v.Fit([]string{"a b", "a c"}))

	_, ok := v.vocab["a"]
	assert.False(t, ok)
	assert.Equal(t, 2, v.VocabularySize())
}

func TestVectorizerMaxFeatures(t *testing.T) {
	v := NewVectorizer(fieldsAnalyzer{}, 1, 2)
	require.NoError(t, v.Fit([]string{"x x x y y z", "x y w"}))

	assert.Equal(t, 2, v.VocabularySize())
	assert.Contains(t, v.vocab, "x")
	assert.Contains(t, v.vocab, "y")
}

func TestVectorizerEmptyVocabulary(t *testing.T) {
	v := NewVectorizer(fieldsAnalyzer{}, 0.95, 0)
	assert.ErrorIs(t, v.Fit([]string{"same", "same"}), ErrEmptyVocabulary)
	assert.ErrorIs(t, v.Fit(nil), ErrEmptyVocabulary)
	assert.False(t, v.Fitted())

	_, err := v.Transform("same")
	assert.Error(t, err)
}

func TestVectorizerTransformNormalized(t *testing.T) {
	v := NewVectorizer(fieldsAnalyzer{}, 1, 0)
	require.NoError(t, v.Fit([]string{"a b b", "c d"}))

	vec, err := v.Transform("a b b unseen")
	require.NoError(t, err)
	var sum float64
	for _, w := range vec {
		sum += w * w
	}
	assert.InDelta(t, 1.0, sum, 1e-12)

	same, err := v.Transform("a b b")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sparseCosine(vec, same), 1e-12)

	other, err := v.Transform("c d")
	require.NoError(t, err)
	assert.Equal(t, 0.0, sparseCosine(vec, other))

	empty, err := v.Transform("nothing known")
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, 0.0, sparseCosine(empty, vec))
}

func TestCharAnalyzer(t *testing.T) {
	terms, err := DefaultCharAnalyzer.Analyze("电缆  破")
	require.NoError(t, err)
	assert.Equal(t, []string{"电", "缆", " ", "破", "电缆", "缆 ", " 破"}, terms)

	terms, err = DefaultCharAnalyzer.Analyze("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, terms)

	terms, err = DefaultCharAnalyzer.Analyze("")
	require.NoError(t, err)
	assert.Empty(t, terms)
}

func TestWordNgrams(t *testing.T) {
	got := wordNgrams([]string{"配电箱", " ", "未", "上锁", "\t"}, 1, 2)
	assert.Equal(t, []string{"配电箱", "未", "上锁", "配电箱 未", "未 上锁"}, got)
	assert.Empty(t, wordNgrams(nil, 1, 2))
}
