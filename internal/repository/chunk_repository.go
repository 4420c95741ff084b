package repository

import (
	"fmt"

	"gorm.io/gorm"

	"lexrag/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) CreateBatch(chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.Create(&chunks).Error; err != nil {
		return fmt.Errorf("create chunks batch failed: %w", err)
	}
	return nil
}

// ListAll loads every chunk with its embedding. Retrieval scores the
// whole candidate set in process, so this is the search working set.
func (r *ChunkRepository) ListAll() ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) DeleteBySource(source string) (int64, error) {
	res := r.db.Where("source = ?", source).Delete(&model.Chunk{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete chunks by source failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *ChunkRepository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&model.Chunk{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count chunks failed: %w", err)
	}
	return count, nil
}

func (r *ChunkRepository) ListSources() ([]string, error) {
	var sources []string
	if err := r.db.Model(&model.Chunk{}).Distinct("source").Order("source ASC").Pluck("source", &sources).Error; err != nil {
		return nil, fmt.Errorf("list chunk sources failed: %w", err)
	}
	return sources, nil
}
