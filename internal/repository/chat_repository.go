package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"studybot/internal/model"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Create(ctx context.Context, chat *model.Chat) error {
	if err := r.db.WithContext(ctx).Create(chat).Error; err != nil {
		return fmt.Errorf("create chat failed: %w", err)
	}
	return nil
}

func (r *ChatRepository) ListByUserID(ctx context.Context, userID uint) ([]model.Chat, error) {
	var chats []model.Chat
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("last_message_at DESC, id DESC").Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("list chats failed: %w", err)
	}
	return chats, nil
}

func (r *ChatRepository) GetByIDAndUserID(ctx context.Context, chatID, userID uint) (*model.Chat, error) {
	var chat model.Chat
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", chatID, userID).First(&chat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat failed: %w", err)
	}
	return &chat, nil
}

// DeleteByIDAndUserID removes the chat and its messages.
func (r *ChatRepository) DeleteByIDAndUserID(ctx context.Context, chatID, userID uint) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", chatID, userID).Delete(&model.Chat{})
		if res.Error != nil {
			return fmt.Errorf("delete chat failed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		if err := tx.Where("chat_id = ?", chatID).Delete(&model.Message{}).Error; err != nil {
			return fmt.Errorf("delete chat messages failed: %w", err)
		}
		return nil
	})
	return deleted, err
}

func (r *ChatRepository) Save(ctx context.Context, chat *model.Chat) error {
	if err := r.db.WithContext(ctx).Save(chat).Error; err != nil {
		return fmt.Errorf("save chat failed: %w", err)
	}
	return nil
}

// Touch bumps the message counter after messages were stored.
func (r *ChatRepository) Touch(ctx context.Context, chatID uint, added int, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Chat{}).Where("id = ?", chatID).Updates(map[string]any{
		"message_count":   gorm.Expr("message_count + ?", added),
		"last_message_at": at,
	}).Error
	if err != nil {
		return fmt.Errorf("touch chat failed: %w", err)
	}
	return nil
}

func (r *ChatRepository) CountByUserID(ctx context.Context, userID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Chat{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chats failed: %w", err)
	}
	return n, nil
}

func (r *ChatRepository) RecentByUserID(ctx context.Context, userID uint, limit int) ([]model.Chat, error) {
	if limit <= 0 {
		limit = 5
	}
	var chats []model.Chat
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("last_message_at DESC, id DESC").Limit(limit).Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("list recent chats failed: %w", err)
	}
	return chats, nil
}
