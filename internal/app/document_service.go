package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"founderos-api/internal/chunker"
	"founderos-api/internal/extract"
	"founderos-api/internal/model"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrEmptyFile           = errors.New("file is empty")
)

// DocumentStore is the persistence surface the service needs for documents.
type DocumentStore interface {
	Create(doc *model.Document) error
	ListByWorkspace(workspaceID uuid.UUID) ([]model.Document, error)
	GetByIDAndWorkspace(id, workspaceID uuid.UUID) (*model.Document, error)
	GetByID(id uuid.UUID) (*model.Document, error)
	SetProcessing(id uuid.UUID) error
	CompleteWithChunks(id uuid.UUID, chunks []model.DocumentChunk) error
	Fail(id uuid.UUID, message string) error
	Delete(id uuid.UUID) error
}

type ChunkStore interface {
	ListByDocumentID(documentID uuid.UUID) ([]model.DocumentChunk, error)
}

type FileStore interface {
	Save(workspaceID, documentID uuid.UUID, filename string, data []byte) (string, error)
	Remove(path string) error
}

// ProcessQueue hands a document id to the background processing worker.
type ProcessQueue interface {
	Publish(ctx context.Context, documentID uuid.UUID) error
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type DocumentService struct {
	docs     DocumentStore
	chunks   ChunkStore
	files    FileStore
	queue    ProcessQueue
	embedder Embedder
	chunker  *chunker.Chunker

	maxUploadBytes int64
	targetTokens   int
	overlapTokens  int
}

func NewDocumentService(
	docs DocumentStore,
	chunks ChunkStore,
	files FileStore,
	queue ProcessQueue,
	embedder Embedder,
	chk *chunker.Chunker,
	maxUploadBytes int64,
	targetTokens, overlapTokens int,
) *DocumentService {
	return &DocumentService{
		docs:           docs,
		chunks:         chunks,
		files:          files,
		queue:          queue,
		embedder:       embedder,
		chunker:        chk,
		maxUploadBytes: maxUploadBytes,
		targetTokens:   targetTokens,
		overlapTokens:  overlapTokens,
	}
}

type UploadInput struct {
	WorkspaceID uuid.UUID
	UploadedBy  uuid.UUID
	Filename    string
	Data        []byte
}

// Upload validates and stores the file, records a queued document, and
// enqueues it for background processing. The document row survives an
// enqueue failure so a later retry can pick it up.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*model.Document, error) {
	fileType := strings.ToLower(strings.TrimPrefix(filepath.Ext(in.Filename), "."))
	if !model.AllowedFileTypes[fileType] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, fileType)
	}
	if len(in.Data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(in.Data)) > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, len(in.Data), s.maxUploadBytes)
	}

	doc := &model.Document{
		ID:            uuid.New(),
		WorkspaceID:   in.WorkspaceID,
		UploadedBy:    in.UploadedBy,
		Title:         strings.TrimSuffix(in.Filename, filepath.Ext(in.Filename)),
		FileSizeBytes: int64(len(in.Data)),
		FileType:      fileType,
		Status:        model.DocumentStatusQueued,
	}

	path, err := s.files.Save(in.WorkspaceID, doc.ID, in.Filename, in.Data)
	if err != nil {
		return nil, err
	}
	doc.FilePath = path

	if err := s.docs.Create(doc); err != nil {
		_ = s.files.Remove(path)
		return nil, err
	}

	if err := s.queue.Publish(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("enqueue document processing failed: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) List(workspaceID uuid.UUID) ([]model.Document, error) {
	return s.docs.ListByWorkspace(workspaceID)
}

func (s *DocumentService) Get(id, workspaceID uuid.UUID) (*model.Document, error) {
	doc, err := s.docs.GetByIDAndWorkspace(id, workspaceID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) ListChunks(id, workspaceID uuid.UUID) ([]model.DocumentChunk, error) {
	if _, err := s.Get(id, workspaceID); err != nil {
		return nil, err
	}
	return s.chunks.ListByDocumentID(id)
}

// Delete removes the document row (chunks cascade) and its stored file.
func (s *DocumentService) Delete(id, workspaceID uuid.UUID) error {
	doc, err := s.Get(id, workspaceID)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(doc.ID); err != nil {
		return err
	}
	if err := s.files.Remove(doc.FilePath); err != nil {
		log.Printf("document %s: remove stored file: %v", doc.ID, err)
	}
	return nil
}

// Process runs the full extract, chunk and embed pipeline for a queued
// document. Pipeline failures are recorded on the document row instead of
// being returned, so the queue consumer always acks; only an unknown id is
// a silent no-op.
func (s *DocumentService) Process(ctx context.Context, id uuid.UUID) error {
	doc, err := s.docs.GetByID(id)
	if err != nil {
		return err
	}
	if doc == nil {
		log.Printf("document %s: not found, skipping processing", id)
		return nil
	}

	if err := s.docs.SetProcessing(doc.ID); err != nil {
		return err
	}

	if err := s.process(ctx, doc); err != nil {
		log.Printf("document %s: processing failed: %v", doc.ID, err)
		if failErr := s.docs.Fail(doc.ID, err.Error()); failErr != nil {
			return failErr
		}
	}
	return nil
}

func (s *DocumentService) process(ctx context.Context, doc *model.Document) error {
	text, err := extract.Extract(doc.FilePath, doc.FileType)
	if err != nil {
		return err
	}

	pieces, err := s.chunker.Chunk(text, s.targetTokens, s.overlapTokens)
	if err != nil {
		return err
	}
	if len(pieces) == 0 {
		return fmt.Errorf("document produced no chunks")
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	chunks := make([]model.DocumentChunk, len(pieces))
	for i, p := range pieces {
		vec := model.NewVector(vectors[i])
		chunks[i] = model.DocumentChunk{
			DocumentID: doc.ID,
			ChunkIndex: i,
			Content:    p.Text,
			TokenCount: p.TokenCount,
			Embedding:  vec,
			Metadata:   datatypes.JSONMap{"method": p.Method},
		}
	}
	return s.docs.CompleteWithChunks(doc.ID, chunks)
}
