package similarity

import (
	"log/slog"
	"sort"

	"github.com/crimson-sun/hazardscope/internal/logging"
)

const (
	lexicalMaxDF       = 0.95
	lexicalMaxFeatures = 5000
)

// Lexical scores a text against a category's standard description by
// TF-IDF cosine. The vectorizer is fit once over every standard
// description.
type Lexical struct {
	vec      *Vectorizer
	texts    map[string]string
	standard map[string]map[int]float64
}

// NewLexical fits the vectorizer over the standard descriptions with the
// word analyzer, or with character n-grams when word is nil or yields no
// usable vocabulary.
func NewLexical(standard map[string]string, word Analyzer, log *slog.Logger) *Lexical {
	log = logging.OrDefault(log)
	ids := make([]string, 0, len(standard))
	for id := range standard {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	docs := make([]string, len(ids))
	for i, id := range ids {
		docs[i] = standard[id]
	}

	var vec *Vectorizer
	if word != nil {
		vec = NewVectorizer(word, lexicalMaxDF, lexicalMaxFeatures)
		if err := vec.Fit(docs); err != nil {
			log.Warn("tf-idf word vectorizer failed, using character n-grams", "error", err)
			vec = nil
		}
	}
	if vec == nil {
		vec = NewVectorizer(DefaultCharAnalyzer, 1, lexicalMaxFeatures)
		if err := vec.Fit(docs); err != nil {
			log.Warn("tf-idf character vectorizer not fitted", "error", err)
		}
	}

	l := &Lexical{vec: vec, texts: standard, standard: make(map[string]map[int]float64, len(ids))}
	if vec.Fitted() {
		for i, id := range ids {
			if v, err := vec.Transform(docs[i]); err == nil {
				l.standard[id] = v
			}
		}
	}
	log.Info("tf-idf vectorizer ready", "vocabulary", vec.VocabularySize(), "categories", len(l.standard))
	return l
}

// Score compares text with the standard description of categoryID.
// When the fitted vectorizer cannot handle the text, a character
// vectorizer fit on just the two texts is used instead.
func (l *Lexical) Score(text, categoryID string) (float64, error) {
	reference, ok := l.texts[categoryID]
	if !ok {
		return 0, nil
	}
	if b, ok := l.standard[categoryID]; ok {
		if a, err := l.vec.Transform(text); err == nil {
			return clamp(sparseCosine(a, b)), nil
		}
	}

	pair := NewVectorizer(DefaultCharAnalyzer, 1, lexicalMaxFeatures)
	if err := pair.Fit([]string{text, reference}); err != nil {
		return 0, err
	}
	a, err := pair.Transform(text)
	if err != nil {
		return 0, err
	}
	b, err := pair.Transform(reference)
	if err != nil {
		return 0, err
	}
	return clamp(sparseCosine(a, b)), nil
}
