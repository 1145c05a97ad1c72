package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"studybot/internal/model"
)

type FlashCardFilter struct {
	Difficulty string
	DocumentID uint
	Bookmarked *bool
	Tags       []string
	SortBy     string
}

var flashCardSorts = map[string]string{
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"difficulty":   "difficulty",
	"review_count": "review_review_count",
	"next_review":  "review_next_review",
}

type FlashCardStats struct {
	TotalCards   int64            `json:"total_cards"`
	TotalReviews int64            `json:"total_reviews"`
	TotalCorrect int64            `json:"total_correct"`
	Bookmarked   int64            `json:"bookmarked_cards"`
	ByDifficulty map[string]int64 `json:"difficulty_distribution"`
}

func (s FlashCardStats) Accuracy() float64 {
	if s.TotalReviews == 0 {
		return 0
	}
	return float64(s.TotalCorrect) / float64(s.TotalReviews) * 100
}

type FlashCardRepository struct {
	db *gorm.DB
}

func NewFlashCardRepository(db *gorm.DB) *FlashCardRepository {
	return &FlashCardRepository{db: db}
}

// CreateWithSet stores generated cards and the set that groups them in one
// transaction. The set's card list is filled with the new ids.
func (r *FlashCardRepository) CreateWithSet(ctx context.Context, cards []*model.FlashCard, set *model.FlashCardSet) error {
	if len(cards) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&cards).Error; err != nil {
			return fmt.Errorf("create flashcards failed: %w", err)
		}
		if set == nil {
			return nil
		}
		ids := make([]uint, 0, len(cards))
		for _, c := range cards {
			ids = append(ids, c.ID)
		}
		set.SetCardIDs(ids)
		if err := tx.Create(set).Error; err != nil {
			return fmt.Errorf("create flashcard set failed: %w", err)
		}
		return nil
	})
	return err
}

func (r *FlashCardRepository) activeScope(ctx context.Context, userID uint) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.FlashCard{}).Where("user_id = ? AND is_active = ?", userID, true)
}

func (r *FlashCardRepository) List(ctx context.Context, userID uint, f FlashCardFilter, p Page) ([]model.FlashCard, int64, error) {
	p = p.Normalize()
	q := r.activeScope(ctx, userID)
	if f.Difficulty != "" {
		q = q.Where("difficulty = ?", f.Difficulty)
	}
	if f.DocumentID != 0 {
		q = q.Where("document_id = ?", f.DocumentID)
	}
	if f.Bookmarked != nil {
		q = q.Where("is_bookmarked = ?", *f.Bookmarked)
	}
	q = withTags(q, f.Tags)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count flashcards failed: %w", err)
	}

	var cards []model.FlashCard
	order := orderClause(f.SortBy, flashCardSorts, "created_at DESC")
	if err := q.Order(order).Order("id DESC").Offset(p.offset()).Limit(p.Size).Find(&cards).Error; err != nil {
		return nil, 0, fmt.Errorf("list flashcards failed: %w", err)
	}
	return cards, total, nil
}

func (r *FlashCardRepository) GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.FlashCard, error) {
	var card model.FlashCard
	if err := r.activeScope(ctx, userID).Where("id = ?", id).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get flashcard failed: %w", err)
	}
	return &card, nil
}

// ListByIDs returns the caller's active cards among ids, in the order given.
func (r *FlashCardRepository) ListByIDs(ctx context.Context, userID uint, ids []uint) ([]model.FlashCard, error) {
	if len(ids) == 0 {
		return []model.FlashCard{}, nil
	}
	var found []model.FlashCard
	if err := r.activeScope(ctx, userID).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("list flashcards by ids failed: %w", err)
	}
	byID := make(map[uint]model.FlashCard, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	out := make([]model.FlashCard, 0, len(found))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
			delete(byID, id)
		}
	}
	return out, nil
}

func (r *FlashCardRepository) Save(ctx context.Context, card *model.FlashCard) error {
	if err := r.db.WithContext(ctx).Save(card).Error; err != nil {
		return fmt.Errorf("save flashcard failed: %w", err)
	}
	return nil
}

// SoftDelete deactivates a card. It reports false when no active card matched.
func (r *FlashCardRepository) SoftDelete(ctx context.Context, id, userID uint) (bool, error) {
	res := r.activeScope(ctx, userID).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return false, fmt.Errorf("delete flashcard failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *FlashCardRepository) Stats(ctx context.Context, userID uint) (FlashCardStats, error) {
	var totals struct {
		Cards      int64
		Reviews    int64
		Correct    int64
		Bookmarked int64
	}
	err := r.activeScope(ctx, userID).
		Select("COUNT(*) AS cards, " +
			"COALESCE(SUM(review_review_count), 0) AS reviews, " +
			"COALESCE(SUM(review_correct_count), 0) AS correct, " +
			"COALESCE(SUM(CASE WHEN is_bookmarked THEN 1 ELSE 0 END), 0) AS bookmarked").
		Scan(&totals).Error
	if err != nil {
		return FlashCardStats{}, fmt.Errorf("flashcard stats failed: %w", err)
	}

	var rows []struct {
		Difficulty string
		N          int64
	}
	if err := r.activeScope(ctx, userID).Select("difficulty, COUNT(*) AS n").Group("difficulty").Scan(&rows).Error; err != nil {
		return FlashCardStats{}, fmt.Errorf("flashcard difficulty stats failed: %w", err)
	}

	stats := FlashCardStats{
		TotalCards:   totals.Cards,
		TotalReviews: totals.Reviews,
		TotalCorrect: totals.Correct,
		Bookmarked:   totals.Bookmarked,
		ByDifficulty: map[string]int64{
			model.DifficultyEasy:   0,
			model.DifficultyMedium: 0,
			model.DifficultyHard:   0,
		},
	}
	for _, row := range rows {
		stats.ByDifficulty[row.Difficulty] = row.N
	}
	return stats, nil
}
