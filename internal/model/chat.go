package model

import "time"

type Chat struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index:idx_chats_user_last,priority:1" json:"user_id"`
	Name          string    `gorm:"size:100;not null" json:"name"`
	Description   string    `gorm:"size:500" json:"description"`
	MessageCount  int       `gorm:"not null;default:0" json:"message_count"`
	LastMessageAt time.Time `gorm:"index:idx_chats_user_last,priority:2" json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
