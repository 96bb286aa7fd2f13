package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentChunk is one bounded slice of a document's extracted text.
// Embedding is nil until the pipeline's embed stage completes; the vector
// dimension matches the configured embedding model (1536 for
// text-embedding-3-small).
type DocumentChunk struct {
	ID         uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID          `gorm:"type:uuid;not null;index" json:"document_id"`
	ChunkIndex int                `gorm:"not null" json:"chunk_index"`
	Content    string             `gorm:"type:text;not null" json:"content"`
	TokenCount int                `gorm:"not null" json:"token_count"`
	Embedding  *pgvector.Vector   `gorm:"type:vector(1536)" json:"-"`
	Metadata   datatypes.JSONMap  `gorm:"type:jsonb" json:"metadata"`
	CreatedAt  time.Time          `json:"created_at"`
}

// NewVector wraps raw embedding values for assignment to the nullable
// Embedding column.
func NewVector(values []float32) *pgvector.Vector {
	v := pgvector.NewVector(values)
	return &v
}

func (c *DocumentChunk) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
