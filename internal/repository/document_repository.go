package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"studybot/internal/model"
)

// ErrNotProcessing is returned when a status transition targets a document
// that already reached a terminal state.
var ErrNotProcessing = errors.New("document is not processing")

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if doc.Status == "" {
		doc.Status = model.DocumentStatusProcessing
	}
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ListByUserID(ctx context.Context, userID uint) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("uploaded_at DESC, id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) DeleteByIDAndUserID(ctx context.Context, id, userID uint) error {
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) MarkCompleted(ctx context.Context, id uint, chunks int, processedAt time.Time) error {
	return r.transition(ctx, id, map[string]any{
		"status":       model.DocumentStatusCompleted,
		"chunks":       chunks,
		"error":        "",
		"processed_at": processedAt,
	})
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id uint, reason string, processedAt time.Time) error {
	return r.transition(ctx, id, map[string]any{
		"status":       model.DocumentStatusError,
		"error":        reason,
		"processed_at": processedAt,
	})
}

func (r *DocumentRepository) transition(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND status = ?", id, model.DocumentStatusProcessing).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update document status failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotProcessing
	}
	return nil
}

type DocumentCounts struct {
	Total      int64 `json:"total"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Chunks     int64 `json:"chunks"`
}

func (r *DocumentRepository) CountByUserID(ctx context.Context, userID uint) (DocumentCounts, error) {
	var rows []struct {
		Status string
		N      int64
		Chunks int64
	}
	err := r.db.WithContext(ctx).Model(&model.Document{}).
		Select("status, COUNT(*) AS n, COALESCE(SUM(chunks), 0) AS chunks").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return DocumentCounts{}, fmt.Errorf("count documents failed: %w", err)
	}

	var out DocumentCounts
	for _, row := range rows {
		out.Total += row.N
		out.Chunks += row.Chunks
		switch row.Status {
		case model.DocumentStatusProcessing:
			out.Processing = row.N
		case model.DocumentStatusCompleted:
			out.Completed = row.N
		case model.DocumentStatusError:
			out.Failed = row.N
		}
	}
	return out, nil
}
