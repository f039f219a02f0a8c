package model

// UnknownCategory is the category id carried by a degraded classification.
const UnknownCategory = "unknown"

// HazardCategory is one of the fixed safety-defect classes.
type HazardCategory struct {
	ID          string // stable code, "1".."15"
	Description string // canonical standard description
	Remediation string // default remediation text
}

// EmbeddedLabel is a hazard category with its pre-computed prototype vector.
type EmbeddedLabel struct {
	ID     string
	Vector []float32
}

// ExemplarCase is a previously embedded, labeled image used for retrieval
// and few-shot prompting.
type ExemplarCase struct {
	ID                  uint
	Filename            string
	CategoryID          string
	SequenceID          string
	Embedding           []float32 // L2-normalized
	Description         string
	CategoryDescription string
	Suggestion          string
	ImagePath           string
	FileSize            int64
	FileType            string
}

// Classification is the zero-shot verdict of the embedding classifier.
// Confidence is the winning raw cosine similarity and may be negative.
type Classification struct {
	CategoryID  string             `json:"type"`
	Description string             `json:"description"`
	Confidence  float64            `json:"confidence"`
	AllScores   map[string]float64 `json:"all_scores,omitempty"`
}
