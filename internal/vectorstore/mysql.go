package vectorstore

import (
	"context"
	"strings"

	"lexrag/internal/model"
	"lexrag/internal/repository"
)

// MySQLStore persists chunks and their embeddings in the chunks table.
// Embeddings survive restarts; search loads the candidate set and
// scores it in process.
type MySQLStore struct {
	embedder  Embedder
	chunkRepo *repository.ChunkRepository
}

func NewMySQLStore(embedder Embedder, chunkRepo *repository.ChunkRepository) *MySQLStore {
	return &MySQLStore{embedder: embedder, chunkRepo: chunkRepo}
}

func (s *MySQLStore) Backend() string { return "mysql" }

func (s *MySQLStore) Add(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}
	embeddings, err := embedInBatches(ctx, s.embedder, texts)
	if err != nil {
		return err
	}
	for i := range chunks {
		chunks[i].SetEmbedding(embeddings[i])
	}
	return s.chunkRepo.CreateBatch(chunks)
}

func (s *MySQLStore) Search(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" || k <= 0 {
		return nil, nil
	}

	candidates, err := s.chunkRepo.ListAll()
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return rankTopK(queryVec, candidates, k), nil
}

func (s *MySQLStore) DeleteBySource(ctx context.Context, source string) (int64, error) {
	return s.chunkRepo.DeleteBySource(source)
}

func (s *MySQLStore) Count(ctx context.Context) (int64, error) {
	return s.chunkRepo.Count()
}

func (s *MySQLStore) Sources(ctx context.Context) ([]string, error) {
	return s.chunkRepo.ListSources()
}
