// Package vectorstore indexes document chunks by embedding and serves
// nearest-neighbor queries. Both backends delegate vectorization to the
// hosted embedding API and score candidates with cosine similarity in
// process; there is no approximate index.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"lexrag/internal/model"
	"lexrag/internal/repository"
)

// Batch size for embedding calls; hosted APIs commonly cap array input.
const embeddingBatchSize = 10

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ScoredChunk is one retrieval hit.
type ScoredChunk struct {
	Chunk model.Chunk `json:"chunk"`
	Score float32     `json:"score"`
}

type Store interface {
	// Add embeds the chunks and indexes them. Chunk embeddings are set
	// by the store; callers fill content and metadata only.
	Add(ctx context.Context, chunks []model.Chunk) error
	// Search returns up to k chunks nearest to the query, best first.
	Search(ctx context.Context, query string, k int) ([]ScoredChunk, error)
	// DeleteBySource removes every chunk of the named source document
	// and reports how many were dropped.
	DeleteBySource(ctx context.Context, source string) (int64, error)
	Count(ctx context.Context) (int64, error)
	Sources(ctx context.Context) ([]string, error)
	// Backend names the active implementation for stats reporting.
	Backend() string
}

// New builds the backend selected by configuration.
func New(backend string, embedder Embedder, chunkRepo *repository.ChunkRepository) (Store, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(embedder), nil
	case "mysql":
		if chunkRepo == nil {
			return nil, fmt.Errorf("mysql vector store requires a chunk repository")
		}
		return NewMySQLStore(embedder, chunkRepo), nil
	default:
		return nil, fmt.Errorf("unsupported vector store backend %q (use \"memory\" or \"mysql\")", backend)
	}
}

func embedInBatches(ctx context.Context, embedder Embedder, texts []string) ([][]float32, error) {
	var embeddings [][]float32
	for i := 0; i < len(texts); i += embeddingBatchSize {
		end := i + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := embedder.EmbedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batch...)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(embeddings), len(texts))
	}
	return embeddings, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// rankTopK scores every candidate against the query vector and returns
// the k best, highest score first.
func rankTopK(query []float32, candidates []model.Chunk, k int) []ScoredChunk {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	scored := make([]ScoredChunk, len(candidates))
	for i := range candidates {
		scored[i] = ScoredChunk{
			Chunk: candidates[i],
			Score: cosineSimilarity(query, candidates[i].EmbeddingVector()),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}
