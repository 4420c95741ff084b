package vectorstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"lexrag/internal/model"
)

// MemoryStore keeps chunks in process. Contents live only for the
// lifetime of the server, which matches the demo/"faiss without a disk"
// configuration.
type MemoryStore struct {
	embedder Embedder

	mu     sync.RWMutex
	chunks []model.Chunk
	nextID uint
}

func NewMemoryStore(embedder Embedder) *MemoryStore {
	return &MemoryStore{embedder: embedder, nextID: 1}
}

func (s *MemoryStore) Backend() string { return "memory" }

func (s *MemoryStore) Add(ctx context.Context, chunks []model.Chunk) error {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range chunks {
		chunks[i].SetEmbedding(embeddings[i])
		chunks[i].ID = s.nextID
		s.nextID++
		s.chunks = append(s.chunks, chunks[i])
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" || k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	empty := len(s.chunks) == 0
	s.mu.RUnlock()
	if empty {
		return nil, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	candidates := make([]model.Chunk, len(s.chunks))
	copy(candidates, s.chunks)
	s.mu.RUnlock()

	return rankTopK(queryVec, candidates, k), nil
}

func (s *MemoryStore) DeleteBySource(ctx context.Context, source string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[:0]
	var deleted int64
	for _, c := range s.chunks {
		if c.Source == source {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	s.chunks = kept
	return deleted, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chunks)), nil
}

func (s *MemoryStore) Sources(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var sources []string
	for _, c := range s.chunks {
		if _, ok := seen[c.Source]; ok {
			continue
		}
		seen[c.Source] = struct{}{}
		sources = append(sources, c.Source)
	}
	sort.Strings(sources)
	return sources, nil
}
