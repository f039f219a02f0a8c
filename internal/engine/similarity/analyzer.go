package similarity

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-ego/gse"
)

// Analyzer turns a document into the terms counted by a Vectorizer.
type Analyzer interface {
	Analyze(text string) ([]string, error)
}

// SegmentAnalyzer produces word unigrams and bigrams from Chinese word
// segmentation. Bigrams are the two words joined by a space.
type SegmentAnalyzer struct {
	mu  sync.Mutex
	seg gse.Segmenter
}

// NewSegmentAnalyzer loads the embedded segmentation dictionary.
func NewSegmentAnalyzer() (*SegmentAnalyzer, error) {
	a := &SegmentAnalyzer{}
	if err := a.seg.LoadDictEmbed(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *SegmentAnalyzer) Analyze(text string) ([]string, error) {
	a.mu.Lock()
	words := a.seg.Cut(strings.ToLower(text), true)
	a.mu.Unlock()
	return wordNgrams(words, 1, 2), nil
}

func wordNgrams(words []string, minN, maxN int) []string {
	var tokens []string
	for _, w := range words {
		if strings.TrimFunc(w, unicode.IsSpace) != "" {
			tokens = append(tokens, w)
		}
	}
	var out []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

var whitespaceRun = regexp.MustCompile(`\s\s+`)

// CharAnalyzer produces character n-grams of the lowercased text with
// whitespace runs collapsed to one space.
type CharAnalyzer struct {
	MinN, MaxN int
}

// DefaultCharAnalyzer counts character unigrams and bigrams.
var DefaultCharAnalyzer = CharAnalyzer{MinN: 1, MaxN: 2}

func (a CharAnalyzer) Analyze(text string) ([]string, error) {
	runes := []rune(whitespaceRun.ReplaceAllString(strings.ToLower(text), " "))
	var out []string
	for n := a.MinN; n <= a.MaxN && n <= len(runes); n++ {
		for i := 0; i+n <= len(runes); i++ {
			out = append(out, string(runes[i:i+n]))
		}
	}
	return out, nil
}
