package store

import (
	"time"

	"github.com/crimson-sun/hazardscope/internal/model"
)

// CaseRecord is one labeled exemplar image.
type CaseRecord struct {
	ID                  uint   `gorm:"primaryKey"`
	Filename            string `gorm:"size:255;not null;uniqueIndex"`
	CategoryID          string `gorm:"size:32;not null;uniqueIndex:idx_cases_category_sequence;index"`
	SequenceID          string `gorm:"size:32;not null;uniqueIndex:idx_cases_category_sequence"`
	Embedding           Vector
	Description         string `gorm:"type:text"`
	CategoryDescription string `gorm:"type:text"`
	Suggestion          string `gorm:"type:text"`
	ImagePath           string `gorm:"size:1024"`
	FileSize            int64
	FileType            string `gorm:"size:16"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName pins the table name.
func (CaseRecord) TableName() string { return "cases" }

func (r CaseRecord) toModel() model.ExemplarCase {
	return model.ExemplarCase{
		ID:                  r.ID,
		Filename:            r.Filename,
		CategoryID:          r.CategoryID,
		SequenceID:          r.SequenceID,
		Embedding:           r.Embedding,
		Description:         r.Description,
		CategoryDescription: r.CategoryDescription,
		Suggestion:          r.Suggestion,
		ImagePath:           r.ImagePath,
		FileSize:            r.FileSize,
		FileType:            r.FileType,
	}
}

func caseFromModel(c model.ExemplarCase) CaseRecord {
	return CaseRecord{
		ID:                  c.ID,
		Filename:            c.Filename,
		CategoryID:          c.CategoryID,
		SequenceID:          c.SequenceID,
		Embedding:           c.Embedding,
		Description:         c.Description,
		CategoryDescription: c.CategoryDescription,
		Suggestion:          c.Suggestion,
		ImagePath:           c.ImagePath,
		FileSize:            c.FileSize,
		FileType:            c.FileType,
	}
}

// CacheRecord is one cached analysis result. The similarity columns
// duplicate fields of Result so averages can be computed in SQL.
type CacheRecord struct {
	ID                 uint   `gorm:"primaryKey"`
	ImageHash          string `gorm:"size:64;not null;uniqueIndex:idx_cache_hash_model"`
	Model              string `gorm:"size:32;not null;uniqueIndex:idx_cache_hash_model;index"`
	Result             string `gorm:"type:text;not null"`
	SemanticSimilarity float64
	LexicalSimilarity  float64
	CreatedAt          time.Time `gorm:"index"`
	UpdatedAt          time.Time
}

// TableName pins the table name.
func (CacheRecord) TableName() string { return "analysis_cache" }
