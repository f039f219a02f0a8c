package similarity

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrEmptyVocabulary is returned by Fit when no term survives pruning.
var ErrEmptyVocabulary = errors.New("empty vocabulary after pruning")

// Vectorizer is a TF-IDF model with smoothed idf and l2-normalized
// output. It is immutable after Fit.
type Vectorizer struct {
	analyzer    Analyzer
	maxDF       float64 // fraction of documents; terms above it are dropped
	maxFeatures int     // 0 keeps every term

	vocab map[string]int
	idf   []float64
}

// NewVectorizer creates an unfitted vectorizer.
func NewVectorizer(analyzer Analyzer, maxDF float64, maxFeatures int) *Vectorizer {
	return &Vectorizer{analyzer: analyzer, maxDF: maxDF, maxFeatures: maxFeatures}
}

// Fit learns the vocabulary and idf weights from docs.
func (v *Vectorizer) Fit(docs []string) error {
	df := make(map[string]int)
	total := make(map[string]int)
	for _, d := range docs {
		terms, err := v.analyzer.Analyze(d)
		if err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
		seen := make(map[string]bool, len(terms))
		for _, t := range terms {
			total[t]++
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	maxDocs := float64(len(docs))
	if v.maxDF > 0 && v.maxDF < 1 {
		maxDocs = v.maxDF * float64(len(docs))
	}
	kept := make([]string, 0, len(df))
	for t, n := range df {
		if float64(n) <= maxDocs {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return ErrEmptyVocabulary
	}

	if v.maxFeatures > 0 && len(kept) > v.maxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if total[kept[i]] != total[kept[j]] {
				return total[kept[i]] > total[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:v.maxFeatures]
	}
	sort.Strings(kept)

	n := float64(len(docs))
	v.vocab = make(map[string]int, len(kept))
	v.idf = make([]float64, len(kept))
	for i, t := range kept {
		v.vocab[t] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return nil
}

// Fitted reports whether Fit succeeded.
func (v *Vectorizer) Fitted() bool { return len(v.vocab) > 0 }

// VocabularySize returns the number of learned terms.
func (v *Vectorizer) VocabularySize() int { return len(v.vocab) }

// Transform returns the sparse l2-normalized tf-idf vector of text.
// Terms outside the vocabulary are ignored.
func (v *Vectorizer) Transform(text string) (map[int]float64, error) {
	if !v.Fitted() {
		return nil, errors.New("vectorizer not fitted")
	}
	terms, err := v.analyzer.Analyze(text)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	vec := make(map[int]float64)
	for _, t := range terms {
		if i, ok := v.vocab[t]; ok {
			vec[i]++
		}
	}
	var norm float64
	for i, tf := range vec {
		w := tf * v.idf[i]
		vec[i] = w
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// sparseCosine assumes both vectors are l2-normalized.
func sparseCosine(a, b map[int]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for i, x := range a {
		dot += x * b[i]
	}
	return dot
}
