package model

import "time"

const (
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusError      = "error"
)

// Document is an uploaded PDF. Status leaves processing exactly once.
type Document struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index:idx_documents_user_uploaded,priority:1" json:"user_id"`
	OriginalName string     `gorm:"size:255;not null" json:"original_name"`
	StoredName   string     `gorm:"size:128;not null" json:"filename"`
	FilePath     string     `gorm:"size:512;not null" json:"-"`
	FileSize     int64      `gorm:"not null" json:"file_size"`
	MimeType     string     `gorm:"size:128;not null" json:"mime_type"`
	Status       string     `gorm:"size:16;not null;index;default:processing" json:"status"`
	Chunks       int        `gorm:"not null;default:0" json:"chunks"`
	Error        string     `gorm:"type:text" json:"error,omitempty"`
	UploadedAt   time.Time  `gorm:"autoCreateTime;index:idx_documents_user_uploaded,priority:2" json:"uploaded_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (d *Document) Terminal() bool {
	return d.Status == DocumentStatusCompleted || d.Status == DocumentStatusError
}
