package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	MessageTypeText     = "text"
	MessageTypeQuery    = "query"
	MessageTypeResponse = "response"

	MaxMessageLength = 10000
)

type DocumentReference struct {
	DocumentID   uint   `json:"document_id"`
	DocumentName string `json:"document_name"`
	ChunkIndex   int    `json:"chunk_index"`
}

type MessageMetadata struct {
	Sources            []string            `json:"sources,omitempty"`
	DocumentReferences []DocumentReference `json:"document_references,omitempty"`
	ProcessingTimeMs   int64               `json:"processing_time_ms"`
	Model              string              `json:"model,omitempty"`
}

type Message struct {
	ID        uint                                `gorm:"primaryKey" json:"id"`
	ChatID    uint                                `gorm:"not null;index:idx_messages_chat_created,priority:1" json:"chat_id"`
	UserID    uint                                `gorm:"not null;index" json:"user_id"`
	Role      string                              `gorm:"size:16;not null;index" json:"role"`
	Type      string                              `gorm:"column:message_type;size:16;not null;default:text;index" json:"message_type"`
	Content   string                              `gorm:"type:text;not null" json:"content"`
	Metadata  datatypes.JSONType[MessageMetadata] `json:"metadata"`
	CreatedAt time.Time                           `gorm:"index:idx_messages_chat_created,priority:2" json:"created_at"`
}
