package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lexrag/internal/model"
	"lexrag/internal/repository"
)

func newTestChunkRepo(t *testing.T) *repository.ChunkRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Chunk{}))
	return repository.NewChunkRepository(db)
}

func TestMySQLStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMySQLStore(&fakeEmbedder{}, newTestChunkRepo(t))

	require.NoError(t, store.Add(ctx, []model.Chunk{
		{DocumentID: 1, Source: "lease.txt", ChunkIndex: 0, Content: "the lease covers the office floor"},
		{DocumentID: 1, Source: "lease.txt", ChunkIndex: 1, Content: "lease renewal requires notice"},
		{DocumentID: 2, Source: "merger.txt", ChunkIndex: 0, Content: "merger due diligence checklist"},
	}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	hits, err := store.Search(ctx, "lease notice period", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "lease.txt", hits[0].Chunk.Source)

	sources, err := store.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lease.txt", "merger.txt"}, sources)

	deleted, err := store.DeleteBySource(ctx, "lease.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestMySQLStoreEmbeddingsPersisted(t *testing.T) {
	ctx := context.Background()
	repo := newTestChunkRepo(t)
	store := NewMySQLStore(&fakeEmbedder{}, repo)

	require.NoError(t, store.Add(ctx, []model.Chunk{
		{DocumentID: 1, Source: "lease.txt", Content: "lease clause"},
	}))

	stored, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, []float32{1, 0, 0}, stored[0].EmbeddingVector())
}
