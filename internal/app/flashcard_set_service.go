package app

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"studybot/internal/model"
	"studybot/internal/repository"
)

const (
	maxSetName        = 100
	maxSetDescription = 500
)

type FlashCardSetService struct {
	setRepo  *repository.FlashCardSetRepository
	cardRepo *repository.FlashCardRepository
	logger   *zap.Logger
	now      func() time.Time
}

type SettingsPatch struct {
	StudyMode    *string `json:"study_mode"`
	ShowAnswer   *bool   `json:"show_answer"`
	ShuffleCards *bool   `json:"shuffle_cards"`
	AutoAdvance  *bool   `json:"auto_advance"`
}

type CreateSetInput struct {
	UserID       uint
	Name         string
	Description  string
	FlashCardIDs []uint
	DocumentIDs  []uint
	Tags         []string
	Settings     *SettingsPatch
	IsPublic     bool
}

type UpdateSetInput struct {
	UserID       uint
	SetID        uint
	Name         *string
	Description  *string
	Tags         *[]string
	Settings     *SettingsPatch
	FlashCardIDs *[]uint
	IsBookmarked *bool
	IsPublic     *bool
}

type StudySessionInput struct {
	UserID    uint
	SetID     uint
	StudyTime int64
	Accuracy  *float64
}

type SetDetail struct {
	*model.FlashCardSet
	Cards []model.FlashCard `json:"cards"`
}

func NewFlashCardSetService(setRepo *repository.FlashCardSetRepository, cardRepo *repository.FlashCardRepository, logger *zap.Logger) *FlashCardSetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlashCardSetService{setRepo: setRepo, cardRepo: cardRepo, logger: logger, now: time.Now}
}

func (s *FlashCardSetService) Create(ctx context.Context, input CreateSetInput) (*model.FlashCardSet, error) {
	name := strings.TrimSpace(input.Name)
	description := strings.TrimSpace(input.Description)
	if input.UserID == 0 || name == "" ||
		utf8.RuneCountInString(name) > maxSetName ||
		utf8.RuneCountInString(description) > maxSetDescription {
		return nil, ErrInvalidInput
	}

	set := model.NewFlashCardSet(input.UserID, name, description)
	if err := s.assignCards(ctx, set, input.UserID, input.FlashCardIDs); err != nil {
		return nil, err
	}
	for _, id := range input.DocumentIDs {
		set.AddDocument(id)
	}
	set.Tags = datatypes.NewJSONType(cleanTags(input.Tags))
	if input.Settings != nil {
		settings, err := applySettings(set.Settings.Data(), *input.Settings)
		if err != nil {
			return nil, err
		}
		set.Settings = datatypes.NewJSONType(settings)
	}
	set.IsPublic = input.IsPublic

	if err := s.setRepo.Create(ctx, set); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *FlashCardSetService) List(ctx context.Context, userID uint, filter repository.FlashCardSetFilter, page repository.Page) ([]model.FlashCardSet, int64, error) {
	if userID == 0 {
		return nil, 0, ErrInvalidInput
	}
	return s.setRepo.List(ctx, userID, filter, page)
}

func (s *FlashCardSetService) get(ctx context.Context, userID, setID uint) (*model.FlashCardSet, error) {
	if userID == 0 || setID == 0 {
		return nil, ErrInvalidInput
	}
	set, err := s.setRepo.GetByIDAndUserID(ctx, setID, userID)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return nil, ErrFlashCardSetNotFound
	}
	return set, nil
}

// Get returns the set with its active cards in set order.
func (s *FlashCardSetService) Get(ctx context.Context, userID, setID uint) (*SetDetail, error) {
	set, err := s.get(ctx, userID, setID)
	if err != nil {
		return nil, err
	}
	cards, err := s.cardRepo.ListByIDs(ctx, userID, set.CardIDs())
	if err != nil {
		return nil, err
	}
	return &SetDetail{FlashCardSet: set, Cards: cards}, nil
}

func (s *FlashCardSetService) Update(ctx context.Context, input UpdateSetInput) (*model.FlashCardSet, error) {
	set, err := s.get(ctx, input.UserID, input.SetID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" || utf8.RuneCountInString(name) > maxSetName {
			return nil, ErrInvalidInput
		}
		set.Name = name
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if utf8.RuneCountInString(description) > maxSetDescription {
			return nil, ErrInvalidInput
		}
		set.Description = description
	}
	if input.Tags != nil {
		set.Tags = datatypes.NewJSONType(cleanTags(*input.Tags))
	}
	if input.Settings != nil {
		settings, err := applySettings(set.Settings.Data(), *input.Settings)
		if err != nil {
			return nil, err
		}
		set.Settings = datatypes.NewJSONType(settings)
	}
	if input.FlashCardIDs != nil {
		if err := s.assignCards(ctx, set, input.UserID, *input.FlashCardIDs); err != nil {
			return nil, err
		}
	}
	if input.IsBookmarked != nil {
		set.IsBookmarked = *input.IsBookmarked
	}
	if input.IsPublic != nil {
		set.IsPublic = *input.IsPublic
	}
	if err := s.setRepo.Save(ctx, set); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *FlashCardSetService) AddCards(ctx context.Context, userID, setID uint, ids []uint) (*model.FlashCardSet, error) {
	if len(ids) == 0 {
		return nil, ErrInvalidInput
	}
	set, err := s.get(ctx, userID, setID)
	if err != nil {
		return nil, err
	}
	if err := s.verifyCards(ctx, userID, ids); err != nil {
		return nil, err
	}
	set.AddCards(ids)
	if err := s.setRepo.Save(ctx, set); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *FlashCardSetService) RemoveCards(ctx context.Context, userID, setID uint, ids []uint) (*model.FlashCardSet, error) {
	if len(ids) == 0 {
		return nil, ErrInvalidInput
	}
	set, err := s.get(ctx, userID, setID)
	if err != nil {
		return nil, err
	}
	set.RemoveCards(ids)
	if err := s.setRepo.Save(ctx, set); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *FlashCardSetService) Delete(ctx context.Context, userID, setID uint) error {
	if userID == 0 || setID == 0 {
		return ErrInvalidInput
	}
	ok, err := s.setRepo.SoftDelete(ctx, setID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrFlashCardSetNotFound
	}
	return nil
}

func (s *FlashCardSetService) RecordStudySession(ctx context.Context, input StudySessionInput) (*model.FlashCardSet, error) {
	if input.StudyTime < 0 {
		return nil, ErrInvalidInput
	}
	if input.Accuracy != nil && (*input.Accuracy < 0 || *input.Accuracy > 100) {
		return nil, ErrInvalidInput
	}
	set, err := s.get(ctx, input.UserID, input.SetID)
	if err != nil {
		return nil, err
	}
	set.RecordStudySession(input.StudyTime, input.Accuracy, s.now())
	if err := s.setRepo.Save(ctx, set); err != nil {
		return nil, err
	}
	s.logger.Info("study session recorded",
		zap.Uint("set_id", set.ID),
		zap.Int("sessions", set.Stats.StudySessions),
	)
	return set, nil
}

func (s *FlashCardSetService) assignCards(ctx context.Context, set *model.FlashCardSet, userID uint, ids []uint) error {
	if err := s.verifyCards(ctx, userID, ids); err != nil {
		return err
	}
	set.SetCardIDs(ids)
	return nil
}

// verifyCards requires every id to be an active card of the user.
func (s *FlashCardSetService) verifyCards(ctx context.Context, userID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	unique := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	found, err := s.cardRepo.ListByIDs(ctx, userID, ids)
	if err != nil {
		return err
	}
	if len(found) != len(unique) {
		return ErrInvalidCards
	}
	return nil
}

func applySettings(base model.SetSettings, patch SettingsPatch) (model.SetSettings, error) {
	if patch.StudyMode != nil {
		if !model.ValidStudyMode(*patch.StudyMode) {
			return base, ErrInvalidInput
		}
		base.StudyMode = *patch.StudyMode
	}
	if patch.ShowAnswer != nil {
		base.ShowAnswer = *patch.ShowAnswer
	}
	if patch.ShuffleCards != nil {
		base.ShuffleCards = *patch.ShuffleCards
	}
	if patch.AutoAdvance != nil {
		base.AutoAdvance = *patch.AutoAdvance
	}
	return base, nil
}
