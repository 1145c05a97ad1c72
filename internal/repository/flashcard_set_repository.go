package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"studybot/internal/model"
)

type FlashCardSetFilter struct {
	Bookmarked *bool
	Tags       []string
	SortBy     string
}

var flashCardSetSorts = map[string]string{
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"name":         "name",
	"total_cards":  "stats_total_cards",
	"last_studied": "stats_last_studied",
}

type FlashCardSetRepository struct {
	db *gorm.DB
}

func NewFlashCardSetRepository(db *gorm.DB) *FlashCardSetRepository {
	return &FlashCardSetRepository{db: db}
}

func (r *FlashCardSetRepository) Create(ctx context.Context, set *model.FlashCardSet) error {
	if err := r.db.WithContext(ctx).Create(set).Error; err != nil {
		return fmt.Errorf("create flashcard set failed: %w", err)
	}
	return nil
}

func (r *FlashCardSetRepository) activeScope(ctx context.Context, userID uint) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.FlashCardSet{}).Where("user_id = ? AND is_active = ?", userID, true)
}

func (r *FlashCardSetRepository) List(ctx context.Context, userID uint, f FlashCardSetFilter, p Page) ([]model.FlashCardSet, int64, error) {
	p = p.Normalize()
	q := r.activeScope(ctx, userID)
	if f.Bookmarked != nil {
		q = q.Where("is_bookmarked = ?", *f.Bookmarked)
	}
	q = withTags(q, f.Tags)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count flashcard sets failed: %w", err)
	}

	var sets []model.FlashCardSet
	order := orderClause(f.SortBy, flashCardSetSorts, "updated_at DESC")
	if err := q.Order(order).Order("id DESC").Offset(p.offset()).Limit(p.Size).Find(&sets).Error; err != nil {
		return nil, 0, fmt.Errorf("list flashcard sets failed: %w", err)
	}
	return sets, total, nil
}

func (r *FlashCardSetRepository) GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.FlashCardSet, error) {
	var set model.FlashCardSet
	if err := r.activeScope(ctx, userID).Where("id = ?", id).First(&set).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get flashcard set failed: %w", err)
	}
	return &set, nil
}

// Save writes the whole set; BeforeSave recomputes the card total.
func (r *FlashCardSetRepository) Save(ctx context.Context, set *model.FlashCardSet) error {
	if err := r.db.WithContext(ctx).Save(set).Error; err != nil {
		return fmt.Errorf("save flashcard set failed: %w", err)
	}
	return nil
}

func (r *FlashCardSetRepository) SoftDelete(ctx context.Context, id, userID uint) (bool, error) {
	res := r.activeScope(ctx, userID).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return false, fmt.Errorf("delete flashcard set failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
