package store

import (
	"context"
	"encoding/json"

	"gorm.io/gorm/clause"

	"github.com/crimson-sun/hazardscope/internal/model"
)

// PutResult upserts the result cached under (hash, backend).
func (s *Store) PutResult(ctx context.Context, hash, backend string, r model.AnalysisResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return persistence("encode result", err)
	}
	rec := CacheRecord{
		ImageHash:          hash,
		Model:              backend,
		Result:             string(data),
		SemanticSimilarity: r.SemanticSimilarity,
		LexicalSimilarity:  r.LexicalSimilarity,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "image_hash"}, {Name: "model"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return persistence("put result", err)
	}
	return nil
}

// GetResult returns the result cached under (hash, backend).
func (s *Store) GetResult(ctx context.Context, hash, backend string) (model.AnalysisResult, bool, error) {
	var rec CacheRecord
	tx := s.db.WithContext(ctx).
		Where("image_hash = ? AND model = ?", hash, backend).
		Limit(1).
		Find(&rec)
	if tx.Error != nil {
		return model.AnalysisResult{}, false, persistence("get result", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return model.AnalysisResult{}, false, nil
	}

	var r model.AnalysisResult
	if err := json.Unmarshal([]byte(rec.Result), &r); err != nil {
		return model.AnalysisResult{}, false, persistence("decode result", err)
	}
	return r, true, nil
}

// CountResults returns the number of cached results per backend.
func (s *Store) CountResults(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Model string
		N     int64
	}
	err := s.db.WithContext(ctx).Model(&CacheRecord{}).
		Select("model, COUNT(*) AS n").
		Group("model").
		Scan(&rows).Error
	if err != nil {
		return nil, persistence("count results", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Model] = r.N
	}
	return out, nil
}

// SimilarityAverages returns per-backend similarity means over cached
// results where either similarity is positive.
func (s *Store) SimilarityAverages(ctx context.Context) (map[string]model.SimilarityAverage, error) {
	var rows []struct {
		Model       string
		SemanticAvg float64
		LexicalAvg  float64
		N           int64
	}
	err := s.db.WithContext(ctx).Model(&CacheRecord{}).
		Select("model, AVG(semantic_similarity) AS semantic_avg, AVG(lexical_similarity) AS lexical_avg, COUNT(*) AS n").
		Where("semantic_similarity > 0 OR lexical_similarity > 0").
		Group("model").
		Scan(&rows).Error
	if err != nil {
		return nil, persistence("similarity averages", err)
	}
	out := make(map[string]model.SimilarityAverage, len(rows))
	for _, r := range rows {
		out[r.Model] = model.SimilarityAverage{SemanticAvg: r.SemanticAvg, LexicalAvg: r.LexicalAvg, Count: r.N}
	}
	return out, nil
}
