package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"lexrag/internal/document"
	"lexrag/internal/model"
	"lexrag/internal/repository"
	"lexrag/internal/vectorstore"
)

var ErrDocumentNotFound = errors.New("document not found")

// DocumentService owns the upload pipeline: validate, extract and chunk
// the file, embed the chunks into the vector store, and keep the
// document record and the saved file in sync with the index.
type DocumentService struct {
	docRepo   *repository.DocumentRepository
	store     vectorstore.Store
	processor *document.Processor
	logger    *zap.Logger

	uploadDir         string
	maxUploadBytes    int64
	allowedExtensions []string
	embeddingModel    string
	topK              int
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	store vectorstore.Store,
	processor *document.Processor,
	logger *zap.Logger,
	uploadDir string,
	maxUploadBytes int64,
	allowedExtensions []string,
	embeddingModel string,
	topK int,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		docRepo:           docRepo,
		store:             store,
		processor:         processor,
		logger:            logger,
		uploadDir:         uploadDir,
		maxUploadBytes:    maxUploadBytes,
		allowedExtensions: allowedExtensions,
		embeddingModel:    embeddingModel,
		topK:              topK,
	}
}

type UploadInput struct {
	UserID   uint
	Filename string
	Data     []byte
}

type UploadResult struct {
	Document   model.Document `json:"document"`
	ChunkCount int            `json:"chunk_count"`
	Replaced   bool           `json:"replaced"`
}

// Upload ingests one file. Re-uploading a file with the same name
// replaces its previous chunks, so the index never holds two versions
// of the same document.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	name := filepath.Base(strings.TrimSpace(input.Filename))
	if name == "" || name == "." {
		return nil, ErrInvalidInput
	}

	if err := document.ValidateUpload(name, int64(len(input.Data)), s.maxUploadBytes, s.allowedExtensions); err != nil {
		return nil, err
	}

	chunks, err := s.processor.Process(name, input.Data)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, document.ErrEmptyDocument
	}

	replaced, err := s.removeExisting(ctx, name)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.uploadDir, name)
	if err := os.WriteFile(path, input.Data, 0o644); err != nil {
		return nil, fmt.Errorf("save upload failed: %w", err)
	}

	doc := &model.Document{
		UserID:    input.UserID,
		Name:      name,
		Path:      path,
		SizeBytes: int64(len(input.Data)),
		Extension: strings.ToLower(filepath.Ext(name)),
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, err
	}

	records := make([]model.Chunk, len(chunks))
	for i, content := range chunks {
		records[i] = model.Chunk{
			DocumentID: doc.ID,
			Source:     name,
			ChunkIndex: i,
			Content:    content,
		}
	}
	if err := s.store.Add(ctx, records); err != nil {
		// Keep record and index consistent on a failed embed.
		_ = s.docRepo.DeleteByID(doc.ID)
		_ = os.Remove(path)
		return nil, err
	}

	doc.ChunkCount = len(records)
	if err := s.docRepo.UpdateChunkCount(doc.ID, doc.ChunkCount); err != nil {
		return nil, err
	}

	s.logger.Info("document indexed",
		zap.String("name", name),
		zap.Int("chunks", doc.ChunkCount),
		zap.Bool("replaced", replaced))

	return &UploadResult{Document: *doc, ChunkCount: doc.ChunkCount, Replaced: replaced}, nil
}

// removeExisting drops the previous version of a same-named document:
// its vectors, its saved file, and its record.
func (s *DocumentService) removeExisting(ctx context.Context, name string) (bool, error) {
	existing, err := s.docRepo.GetByName(name)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	if _, err := s.store.DeleteBySource(ctx, existing.Name); err != nil {
		return false, err
	}
	if existing.Path != "" {
		_ = os.Remove(existing.Path)
	}
	if err := s.docRepo.DeleteByID(existing.ID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *DocumentService) List() ([]model.Document, error) {
	return s.docRepo.List()
}

// Delete removes a document from the index, the filesystem and the
// database. The document base is firm-wide, so any authenticated user
// may delete.
func (s *DocumentService) Delete(ctx context.Context, documentID uint) error {
	if documentID == 0 {
		return ErrInvalidInput
	}
	doc, err := s.docRepo.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}

	deleted, err := s.store.DeleteBySource(ctx, doc.Name)
	if err != nil {
		return err
	}
	if doc.Path != "" {
		_ = os.Remove(doc.Path)
	}
	if err := s.docRepo.DeleteByID(doc.ID); err != nil {
		return err
	}

	s.logger.Info("document removed",
		zap.String("name", doc.Name),
		zap.Int64("chunks_deleted", deleted))
	return nil
}

type Stats struct {
	TotalChunks    int64    `json:"total_chunks"`
	TotalSources   int      `json:"total_sources"`
	Sources        []string `json:"sources"`
	Status         string   `json:"status"`
	Backend        string   `json:"backend"`
	EmbeddingModel string   `json:"embedding_model"`
	TopK           int      `json:"top_k"`
}

// GetStats reports the state of the index for the admin page.
func (s *DocumentService) GetStats(ctx context.Context) (*Stats, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	sources, err := s.store.Sources(ctx)
	if err != nil {
		return nil, err
	}

	status := "ready"
	if count == 0 {
		status = "empty"
	}
	return &Stats{
		TotalChunks:    count,
		TotalSources:   len(sources),
		Sources:        sources,
		Status:         status,
		Backend:        s.store.Backend(),
		EmbeddingModel: s.embeddingModel,
		TopK:           s.topK,
	}, nil
}
