package repository

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"founderos-api/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) CreateBatch(chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.Create(&chunks).Error; err != nil {
		return fmt.Errorf("create chunks batch failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) ListByDocumentID(documentID uuid.UUID) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	if err := r.db.Where("document_id = ?", documentID).Order("chunk_index ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) DeleteByDocumentID(documentID uuid.UUID) error {
	if err := r.db.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks failed: %w", err)
	}
	return nil
}

// ChunkSearchResult is one retrieval hit with its parent document and the
// cosine similarity to the query vector.
type ChunkSearchResult struct {
	ChunkID       uuid.UUID `gorm:"column:chunk_id"`
	Content       string    `gorm:"column:content"`
	DocumentID    uuid.UUID `gorm:"column:document_id"`
	DocumentTitle string    `gorm:"column:document_title"`
	Similarity    float64   `gorm:"column:similarity"`
}

// SearchSimilar returns the limit most similar embedded chunks from ready
// documents in the workspace, best match first. Ties are broken by chunk id
// so results are deterministic.
func (r *ChunkRepository) SearchSimilar(workspaceID uuid.UUID, embedding []float32, limit int) ([]ChunkSearchResult, error) {
	vec := pgvector.NewVector(embedding)
	var results []ChunkSearchResult
	err := r.db.Raw(`
		SELECT c.id AS chunk_id,
		       c.content AS content,
		       d.id AS document_id,
		       d.title AS document_title,
		       1 - (c.embedding <=> ?) AS similarity
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.workspace_id = ?
		  AND d.status = ?
		  AND c.embedding IS NOT NULL
		ORDER BY c.embedding <=> ?, c.id
		LIMIT ?`,
		vec, workspaceID, model.DocumentStatusReady, vec, limit,
	).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("search chunks failed: %w", err)
	}
	return results, nil
}
