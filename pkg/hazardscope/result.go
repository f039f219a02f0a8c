package hazardscope

import "time"

// Result is the analysis of one image. This is the stable public type;
// internal representations may evolve without breaking consumers.
type Result struct {
	ID                  string    `json:"id"`
	Type                string    `json:"type"`            // hazard category id
	Description         string    `json:"description"`     // what is wrong in the image
	Suggestion          string    `json:"suggestion"`      // remediation advice
	Confidence          float64   `json:"confidence"`      // 0..1
	SimilarCases        []string  `json:"similar_cases"`   // filenames of retrieved exemplars
	AnalysisMethod      string    `json:"analysis_method"` // fused, direct-classification, fallback
	Model               string    `json:"model"`
	SemanticSimilarity  float64   `json:"bert_similarity"`
	LexicalSimilarity   float64   `json:"tfidf_similarity"`
	StandardDescription string    `json:"standard_description"`
	CreatedAt           time.Time `json:"created_at"`
	ImageHash           string    `json:"image_hash"`
	CacheHit            bool      `json:"cache_hit"`
}

// Category is one entry of the hazard category set.
type Category struct {
	ID          string
	Description string
	Remediation string
}

// IngestStats counts the outcome of an exemplar ingestion run.
type IngestStats struct {
	Loaded  int
	Updated int
	Skipped int
	Failed  int
}
