package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/crimson-sun/hazardscope/internal/model"
)

// UpsertCase inserts the exemplar or replaces the one with the same
// filename. It reports whether an existing row was replaced.
func (s *Store) UpsertCase(ctx context.Context, c model.ExemplarCase) (updated bool, err error) {
	rec := caseFromModel(c)
	rec.ID = 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&CaseRecord{}).Where("filename = ?", rec.Filename).Count(&n).Error; err != nil {
			return err
		}
		updated = n > 0
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "filename"}},
			UpdateAll: true,
		}).Create(&rec).Error
	})
	if err != nil {
		return false, persistence("upsert case", err)
	}
	return updated, nil
}

// Cases returns every exemplar with its embedding, in insertion order.
func (s *Store) Cases(ctx context.Context) ([]model.ExemplarCase, error) {
	var recs []CaseRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, persistence("list cases", err)
	}
	out := make([]model.ExemplarCase, len(recs))
	for i, r := range recs {
		out[i] = r.toModel()
	}
	return out, nil
}

// CaseIDs returns the ids of every exemplar.
func (s *Store) CaseIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&CaseRecord{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, persistence("list case ids", err)
	}
	return ids, nil
}

// CasesByID returns the exemplars with the given ids, without embeddings.
func (s *Store) CasesByID(ctx context.Context, ids []uint) ([]model.ExemplarCase, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var recs []CaseRecord
	err := s.db.WithContext(ctx).Omit("embedding").Where("id IN ?", ids).Order("id").Find(&recs).Error
	if err != nil {
		return nil, persistence("get cases", err)
	}
	out := make([]model.ExemplarCase, len(recs))
	for i, r := range recs {
		out[i] = r.toModel()
	}
	return out, nil
}

// CountCases returns the number of exemplars per category.
func (s *Store) CountCases(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		CategoryID string
		N          int64
	}
	err := s.db.WithContext(ctx).Model(&CaseRecord{}).
		Select("category_id, COUNT(*) AS n").
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, persistence("count cases", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.CategoryID] = r.N
	}
	return out, nil
}
