package model

import (
	"math"
	"time"

	"gorm.io/datatypes"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"

	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
	DefaultInterval   = 1

	// fixed grade used by the review rule
	reviewQuality = 4
)

func ValidDifficulty(d string) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type FlashCardMetadata struct {
	PageNumber      int     `json:"page_number"`
	ChunkIndex      int     `json:"chunk_index"`
	ConfidenceScore float64 `json:"confidence_score"`
	Source          string  `json:"source,omitempty"`
}

type ReviewStats struct {
	ReviewCount  int        `gorm:"not null;default:0" json:"review_count"`
	CorrectCount int        `gorm:"not null;default:0" json:"correct_count"`
	LastReviewed *time.Time `json:"last_reviewed,omitempty"`
	NextReview   *time.Time `json:"next_review,omitempty"`
	EaseFactor   float64    `gorm:"not null;default:2.5" json:"ease_factor"`
	Interval     int        `gorm:"not null;default:1" json:"interval"`
}

type FlashCard struct {
	ID            uint                                  `gorm:"primaryKey" json:"id"`
	UserID        uint                                  `gorm:"not null;index:idx_flashcards_user_active,priority:1" json:"user_id"`
	DocumentID    uint                                  `gorm:"not null;index" json:"document_id"`
	Question      string                                `gorm:"type:text;not null" json:"question"`
	Answer        string                                `gorm:"type:text;not null" json:"answer"`
	Difficulty    string                                `gorm:"size:16;not null;default:medium;index" json:"difficulty"`
	Tags          datatypes.JSONType[[]string]          `json:"tags"`
	SourceExcerpt string                                `gorm:"type:text" json:"source_chunk"`
	Metadata      datatypes.JSONType[FlashCardMetadata] `json:"metadata"`
	Review        ReviewStats                           `gorm:"embedded;embeddedPrefix:review_" json:"review_stats"`
	IsBookmarked  bool                                  `gorm:"not null;default:false" json:"is_bookmarked"`
	IsActive      bool                                  `gorm:"not null;default:true;index:idx_flashcards_user_active,priority:2" json:"is_active"`
	CreatedAt     time.Time                             `json:"created_at"`
	UpdatedAt     time.Time                             `json:"updated_at"`
}

// NewFlashCard returns an active card with fresh review stats.
func NewFlashCard(userID, documentID uint, question, answer, difficulty string, tags []string) *FlashCard {
	if !ValidDifficulty(difficulty) {
		difficulty = DifficultyMedium
	}
	if tags == nil {
		tags = []string{}
	}
	return &FlashCard{
		UserID:     userID,
		DocumentID: documentID,
		Question:   question,
		Answer:     answer,
		Difficulty: difficulty,
		Tags:       datatypes.NewJSONType(tags),
		Review: ReviewStats{
			EaseFactor: DefaultEaseFactor,
			Interval:   DefaultInterval,
		},
		IsActive: true,
	}
}

func (c *FlashCard) TagList() []string {
	return c.Tags.Data()
}

// RecordReview applies the spaced-repetition update for one answer.
func (c *FlashCard) RecordReview(correct bool, now time.Time) {
	r := &c.Review
	if r.EaseFactor == 0 {
		r.EaseFactor = DefaultEaseFactor
	}
	if r.Interval <= 0 {
		r.Interval = DefaultInterval
	}

	r.ReviewCount++
	if correct {
		r.CorrectCount++
		r.Interval = int(math.Ceil(float64(r.Interval) * r.EaseFactor))
		q := float64(5 - reviewQuality)
		r.EaseFactor = math.Max(MinEaseFactor, r.EaseFactor+(0.1-q*(0.08+q*0.02)))
	} else {
		r.Interval = DefaultInterval
		r.EaseFactor = math.Max(MinEaseFactor, r.EaseFactor-0.2)
	}

	reviewed := now
	next := now.AddDate(0, 0, r.Interval)
	r.LastReviewed = &reviewed
	r.NextReview = &next
}

// Accuracy is the percentage of correct reviews, 0 when never reviewed.
func (r ReviewStats) Accuracy() float64 {
	if r.ReviewCount == 0 {
		return 0
	}
	return float64(r.CorrectCount) / float64(r.ReviewCount) * 100
}
