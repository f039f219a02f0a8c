package model

import "time"

// Analysis method tags.
const (
	MethodFused                = "fused"
	MethodDirectClassification = "direct-classification"
	MethodFallback             = "fallback"
)

// AnalysisResult is the terminal, similarity-scored hazard verdict.
// SemanticSimilarity and LexicalSimilarity are always serialized.
type AnalysisResult struct {
	ID                  string    `json:"id"`
	CategoryID          string    `json:"type"`
	Description         string    `json:"description"`
	Suggestion          string    `json:"suggestion"`
	Confidence          float64   `json:"confidence"`
	SimilarCases        []string  `json:"similar_cases"`
	AnalysisMethod      string    `json:"analysis_method"`
	Model               string    `json:"model"`
	SemanticSimilarity  float64   `json:"bert_similarity"`
	LexicalSimilarity   float64   `json:"tfidf_similarity"`
	StandardDescription string    `json:"standard_description"`
	CreatedAt           time.Time `json:"created_at"`
}

// MaxSimilarCases bounds AnalysisResult.SimilarCases.
const MaxSimilarCases = 3

// SimilarityPair is the per-backend similarity injected into analyze responses.
type SimilarityPair struct {
	Semantic float64 `json:"bert"`
	Lexical  float64 `json:"tfidf"`
}

// CacheStats summarizes the result cache.
type CacheStats struct {
	Total   int64            `json:"total"`
	ByModel map[string]int64 `json:"by_model"`
}

// SimilarityAverage is the mean similarity over qualifying cache entries
// for one backend.
type SimilarityAverage struct {
	SemanticAvg float64 `json:"bert_avg"`
	LexicalAvg  float64 `json:"tfidf_avg"`
	Count       int64   `json:"count"`
}
