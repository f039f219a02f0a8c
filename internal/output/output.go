package output

import (
	"context"

	"github.com/crimson-sun/hazardscope/internal/model"
)

// Record is one analyzed image as delivered to an Output.
type Record struct {
	model.AnalysisResult
	Source    string `json:"source"`
	ImageHash string `json:"image_hash"`
	CacheHit  bool   `json:"cache_hit"`
}

// Output defines the interface for analysis record destinations.
type Output interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}
