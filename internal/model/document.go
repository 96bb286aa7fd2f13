package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document processing statuses. Transitions move forward only:
// queued -> processing -> ready | failed.
const (
	DocumentStatusQueued     = "queued"
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

// AllowedFileTypes are the upload extensions accepted by the knowledge base.
var AllowedFileTypes = map[string]bool{
	"pdf":  true,
	"md":   true,
	"txt":  true,
	"csv":  true,
	"json": true,
	"html": true,
	"htm":  true,
	"yaml": true,
	"yml":  true,
	"log":  true,
	"rst":  true,
	"xml":  true,
}

// Document is an uploaded file in a workspace's knowledge base.
// ChunkCount stays nil until processing succeeds; ErrorMessage is set
// only on the failed status.
type Document struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"workspace_id"`
	UploadedBy    uuid.UUID       `gorm:"type:uuid;not null" json:"uploaded_by"`
	Title         string          `gorm:"size:255;not null" json:"title"`
	FilePath      string          `gorm:"type:text;not null" json:"file_path"`
	FileSizeBytes int64           `gorm:"not null" json:"file_size_bytes"`
	FileType      string          `gorm:"size:10;not null" json:"file_type"`
	ChunkCount    *int            `json:"chunk_count"`
	Status        string          `gorm:"size:20;not null;default:queued;index" json:"status"`
	ErrorMessage  *string         `gorm:"type:text" json:"error_message"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Chunks        []DocumentChunk `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (d *Document) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
