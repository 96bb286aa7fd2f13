package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Source links an assistant answer back to the chunk it was grounded in.
type Source struct {
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title"`
	ChunkID       string `json:"chunk_id"`
	Snippet       string `json:"snippet"`
}

// Message is a single user or assistant turn in a conversation. Sources is
// null except on assistant messages that used retrieved context.
type Message struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID      `gorm:"type:uuid;not null;index" json:"conversation_id"`
	Role           string         `gorm:"size:10;not null" json:"role"`
	Content        string         `gorm:"type:text;not null" json:"content"`
	Sources        datatypes.JSON `gorm:"type:jsonb" json:"sources"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// SetSources marshals the citation list into the JSONB column. A nil or
// empty list leaves Sources null.
func (m *Message) SetSources(sources []Source) error {
	if len(sources) == 0 {
		m.Sources = nil
		return nil
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return err
	}
	m.Sources = datatypes.JSON(raw)
	return nil
}

// SourceList parses the JSONB citation column; nil when the message carried
// no sources.
func (m *Message) SourceList() []Source {
	if len(m.Sources) == 0 {
		return nil
	}
	var sources []Source
	if err := json.Unmarshal(m.Sources, &sources); err != nil {
		return nil
	}
	return sources
}
