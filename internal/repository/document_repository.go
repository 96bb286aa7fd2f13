package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"founderos-api/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ListByWorkspace(workspaceID uuid.UUID) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.Where("workspace_id = ?", workspaceID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

func (r *DocumentRepository) GetByIDAndWorkspace(id, workspaceID uuid.UUID) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ? AND workspace_id = ?", id, workspaceID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByID(id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// SetProcessing moves a document into the processing state and clears any
// error left by a previous attempt.
func (r *DocumentRepository) SetProcessing(id uuid.UUID) error {
	updates := map[string]interface{}{
		"status":        model.DocumentStatusProcessing,
		"error_message": nil,
	}
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("mark document processing failed: %w", err)
	}
	return nil
}

// CompleteWithChunks replaces the document's chunks and marks it ready in a
// single transaction, so readers never observe a ready document with a
// partial chunk set.
func (r *DocumentRepository) CompleteWithChunks(id uuid.UUID, chunks []model.DocumentChunk) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.DocumentChunk{}).Error; err != nil {
			return fmt.Errorf("clear previous chunks failed: %w", err)
		}
		if len(chunks) > 0 {
			if err := tx.Create(&chunks).Error; err != nil {
				return fmt.Errorf("create chunks failed: %w", err)
			}
		}
		count := len(chunks)
		updates := map[string]interface{}{
			"status":        model.DocumentStatusReady,
			"chunk_count":   count,
			"error_message": nil,
		}
		if err := tx.Model(&model.Document{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("mark document ready failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("complete document failed: %w", err)
	}
	return nil
}

// Error messages are truncated so a huge upstream error cannot bloat the
// status endpoint.
const maxErrorMessageLen = 500

// Fail marks a document failed and records the truncated cause.
func (r *DocumentRepository) Fail(id uuid.UUID, message string) error {
	if runes := []rune(message); len(runes) > maxErrorMessageLen {
		message = string(runes[:maxErrorMessageLen])
	}
	updates := map[string]interface{}{
		"status":        model.DocumentStatusFailed,
		"error_message": message,
	}
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("mark document failed failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Delete(id uuid.UUID) error {
	if err := r.db.Where("id = ?", id).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}
