package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StudyModeStandard         = "standard"
	StudyModeSpacedRepetition = "spaced-repetition"
	StudyModeQuiz             = "quiz"
)

func ValidStudyMode(m string) bool {
	switch m {
	case StudyModeStandard, StudyModeSpacedRepetition, StudyModeQuiz:
		return true
	}
	return false
}

type SetSettings struct {
	StudyMode    string `json:"study_mode"`
	ShowAnswer   bool   `json:"show_answer"`
	ShuffleCards bool   `json:"shuffle_cards"`
	AutoAdvance  bool   `json:"auto_advance"`
}

func DefaultSetSettings() SetSettings {
	return SetSettings{StudyMode: StudyModeStandard, ShuffleCards: true}
}

type SetStats struct {
	TotalCards      int        `gorm:"not null;default:0" json:"total_cards"`
	StudySessions   int        `gorm:"not null;default:0" json:"study_sessions"`
	AverageAccuracy float64    `gorm:"not null;default:0" json:"average_accuracy"`
	LastStudied     *time.Time `json:"last_studied,omitempty"`
	TotalStudyTime  int64      `gorm:"not null;default:0" json:"total_study_time"`
}

type FlashCardSet struct {
	ID           uint                            `gorm:"primaryKey" json:"id"`
	UserID       uint                            `gorm:"not null;index:idx_sets_user_active,priority:1" json:"user_id"`
	Name         string                          `gorm:"size:100;not null" json:"name"`
	Description  string                          `gorm:"size:500" json:"description"`
	DocumentIDs  datatypes.JSONType[[]uint]      `json:"document_ids"`
	FlashCardIDs datatypes.JSONType[[]uint]      `json:"flashcard_ids"`
	Tags         datatypes.JSONType[[]string]    `json:"tags"`
	Settings     datatypes.JSONType[SetSettings] `json:"settings"`
	Stats        SetStats                        `gorm:"embedded;embeddedPrefix:stats_" json:"stats"`
	IsPublic     bool                            `gorm:"not null;default:false" json:"is_public"`
	IsBookmarked bool                            `gorm:"not null;default:false" json:"is_bookmarked"`
	IsActive     bool                            `gorm:"not null;default:true;index:idx_sets_user_active,priority:2" json:"is_active"`
	CreatedAt    time.Time                       `json:"created_at"`
	UpdatedAt    time.Time                       `json:"updated_at"`
}

func NewFlashCardSet(userID uint, name, description string) *FlashCardSet {
	return &FlashCardSet{
		UserID:       userID,
		Name:         name,
		Description:  description,
		DocumentIDs:  datatypes.NewJSONType([]uint{}),
		FlashCardIDs: datatypes.NewJSONType([]uint{}),
		Tags:         datatypes.NewJSONType([]string{}),
		Settings:     datatypes.NewJSONType(DefaultSetSettings()),
		IsActive:     true,
	}
}

// BeforeSave keeps TotalCards equal to the number of card ids.
func (s *FlashCardSet) BeforeSave(tx *gorm.DB) error {
	s.Stats.TotalCards = len(s.FlashCardIDs.Data())
	return nil
}

func (s *FlashCardSet) CardIDs() []uint {
	return s.FlashCardIDs.Data()
}

// SetCardIDs replaces the card list, dropping duplicates but keeping order.
func (s *FlashCardSet) SetCardIDs(ids []uint) {
	s.FlashCardIDs = datatypes.NewJSONType(uniqueIDs(nil, ids))
	s.Stats.TotalCards = len(s.FlashCardIDs.Data())
}

// AddCards appends ids not already in the set and reports how many were added.
func (s *FlashCardSet) AddCards(ids []uint) int {
	before := len(s.CardIDs())
	s.SetCardIDs(append(append([]uint{}, s.CardIDs()...), ids...))
	return len(s.CardIDs()) - before
}

// RemoveCards drops the given ids and reports how many were removed.
func (s *FlashCardSet) RemoveCards(ids []uint) int {
	drop := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	current := s.CardIDs()
	kept := make([]uint, 0, len(current))
	for _, id := range current {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	s.SetCardIDs(kept)
	return len(current) - len(kept)
}

func (s *FlashCardSet) AddDocument(id uint) {
	s.DocumentIDs = datatypes.NewJSONType(uniqueIDs(s.DocumentIDs.Data(), []uint{id}))
}

// RecordStudySession folds one session into the set stats. accuracy is
// ignored when nil.
func (s *FlashCardSet) RecordStudySession(studySeconds int64, accuracy *float64, now time.Time) {
	st := &s.Stats
	st.StudySessions++
	studied := now
	st.LastStudied = &studied
	if studySeconds > 0 {
		st.TotalStudyTime += studySeconds
	}
	if accuracy != nil {
		n := float64(st.StudySessions)
		st.AverageAccuracy = (st.AverageAccuracy*(n-1) + *accuracy) / n
	}
}

func uniqueIDs(base, extra []uint) []uint {
	seen := make(map[uint]struct{}, len(base)+len(extra))
	out := make([]uint, 0, len(base)+len(extra))
	for _, list := range [][]uint{base, extra} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
