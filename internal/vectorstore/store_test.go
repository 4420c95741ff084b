package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexrag/internal/model"
)

// fakeEmbedder maps keywords to fixed unit vectors so retrieval order
// is deterministic.
type fakeEmbedder struct {
	batchSizes []int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return keywordVector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batchSizes = append(f.batchSizes, len(texts))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = keywordVector(t)
	}
	return out, nil
}

func keywordVector(text string) []float32 {
	switch {
	case strings.Contains(text, "lease"):
		return []float32{1, 0, 0}
	case strings.Contains(text, "merger"):
		return []float32{0, 1, 0}
	default:
		return []float32{0, 0, 1}
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)

	// Degenerate inputs score zero instead of panicking.
	assert.Zero(t, cosineSimilarity(nil, []float32{1}))
	assert.Zero(t, cosineSimilarity([]float32{1, 2}, []float32{1}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestRankTopK(t *testing.T) {
	candidates := make([]model.Chunk, 3)
	candidates[0].SetEmbedding([]float32{1, 0, 0})
	candidates[0].Content = "exact"
	candidates[1].SetEmbedding([]float32{0.7, 0.7, 0})
	candidates[1].Content = "partial"
	candidates[2].SetEmbedding([]float32{0, 0, 1})
	candidates[2].Content = "orthogonal"

	top := rankTopK([]float32{1, 0, 0}, candidates, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "exact", top[0].Chunk.Content)
	assert.Equal(t, "partial", top[1].Chunk.Content)
	assert.Greater(t, top[0].Score, top[1].Score)

	// k larger than the candidate set is clamped.
	assert.Len(t, rankTopK([]float32{1, 0, 0}, candidates, 10), 3)
	assert.Nil(t, rankTopK([]float32{1, 0, 0}, candidates, 0))
	assert.Nil(t, rankTopK([]float32{1, 0, 0}, nil, 5))
}

func TestEmbedInBatches(t *testing.T) {
	emb := &fakeEmbedder{}
	texts := make([]string, 25)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
	}

	vectors, err := embedInBatches(context.Background(), emb, texts)
	require.NoError(t, err)
	assert.Len(t, vectors, 25)
	assert.Equal(t, []int{10, 10, 5}, emb.batchSizes)
}

func TestMemoryStoreAddAndSearch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(&fakeEmbedder{})

	chunks := []model.Chunk{
		{Source: "lease.txt", ChunkIndex: 0, Content: "the lease term is five years"},
		{Source: "merger.txt", ChunkIndex: 0, Content: "the merger closes in June"},
		{Source: "misc.txt", ChunkIndex: 0, Content: "unrelated filler text"},
	}
	require.NoError(t, store.Add(ctx, chunks))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	hits, err := store.Search(ctx, "what does the lease say", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "lease.txt", hits[0].Chunk.Source)
	assert.InDelta(t, 1.0, float64(hits[0].Score), 1e-6)
}

func TestMemoryStoreSearchEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(&fakeEmbedder{})

	hits, err := store.Search(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryStoreDeleteBySource(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(&fakeEmbedder{})

	require.NoError(t, store.Add(ctx, []model.Chunk{
		{Source: "lease.txt", Content: "lease part one"},
		{Source: "lease.txt", Content: "lease part two"},
		{Source: "merger.txt", Content: "merger terms"},
	}))

	deleted, err := store.DeleteBySource(ctx, "lease.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	sources, err := store.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"merger.txt"}, sources)

	// Deleting an unknown source is a no-op.
	deleted, err = store.DeleteBySource(ctx, "ghost.txt")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestMemoryStoreSourcesSorted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(&fakeEmbedder{})

	require.NoError(t, store.Add(ctx, []model.Chunk{
		{Source: "zeta.txt", Content: "z"},
		{Source: "alpha.txt", Content: "a"},
		{Source: "zeta.txt", Content: "z again"},
	}))

	sources, err := store.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha.txt", "zeta.txt"}, sources)
}

func TestNewFactory(t *testing.T) {
	store, err := New("memory", &fakeEmbedder{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", store.Backend())

	_, err = New("mysql", &fakeEmbedder{}, nil)
	assert.Error(t, err)

	_, err = New("faiss", &fakeEmbedder{}, nil)
	assert.Error(t, err)
}
