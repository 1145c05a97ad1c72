package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm"

	"studybot/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) CreateBatch(ctx context.Context, messages []model.Message) error {
	if len(messages) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&messages).Error; err != nil {
		return fmt.Errorf("create messages failed: %w", err)
	}
	return nil
}

// ListByChatID returns one page of a chat's history counted back from the
// newest message. The page itself is in chronological order.
func (r *MessageRepository) ListByChatID(ctx context.Context, chatID uint, p Page) ([]model.Message, int64, error) {
	p = p.Normalize()
	q := r.db.WithContext(ctx).Model(&model.Message{}).Where("chat_id = ?", chatID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count chat messages failed: %w", err)
	}
	var messages []model.Message
	if err := q.Order("created_at DESC, id DESC").Offset(p.offset()).Limit(p.Size).Find(&messages).Error; err != nil {
		return nil, 0, fmt.Errorf("list messages failed: %w", err)
	}
	slices.Reverse(messages)
	return messages, total, nil
}

type MessageCounts struct {
	Total   int64 `json:"total_messages"`
	Queries int64 `json:"total_queries"`
}

func (r *MessageRepository) CountByUserID(ctx context.Context, userID uint) (MessageCounts, error) {
	var out MessageCounts
	base := r.db.WithContext(ctx).Model(&model.Message{})
	if err := base.Where("user_id = ?", userID).Count(&out.Total).Error; err != nil {
		return out, fmt.Errorf("count messages failed: %w", err)
	}
	if err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("user_id = ? AND role = ?", userID, model.RoleUser).
		Count(&out.Queries).Error; err != nil {
		return out, fmt.Errorf("count queries failed: %w", err)
	}
	return out, nil
}

// Search matches message content case-insensitively, newest first. chatID 0
// searches every chat of the user.
func (r *MessageRepository) Search(ctx context.Context, userID, chatID uint, term string, p Page) ([]model.Message, int64, error) {
	p = p.Normalize()
	q := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("user_id = ? AND LOWER(content) LIKE ?", userID, "%"+strings.ToLower(term)+"%")
	if chatID != 0 {
		q = q.Where("chat_id = ?", chatID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count message search failed: %w", err)
	}
	var messages []model.Message
	if err := q.Order("created_at DESC, id DESC").Offset(p.offset()).Limit(p.Size).Find(&messages).Error; err != nil {
		return nil, 0, fmt.Errorf("search messages failed: %w", err)
	}
	return messages, total, nil
}
