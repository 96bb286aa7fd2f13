package repository

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"founderos-api/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(msg *model.Message) error {
	if err := r.db.Create(msg).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListByConversationID(conversationID uuid.UUID) ([]model.Message, error) {
	var list []model.Message
	if err := r.db.Where("conversation_id = ?", conversationID).Order("created_at ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return list, nil
}

func (r *MessageRepository) CountByConversationID(conversationID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Message{}).Where("conversation_id = ?", conversationID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count messages failed: %w", err)
	}
	return count, nil
}
