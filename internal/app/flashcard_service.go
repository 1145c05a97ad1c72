package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"studybot/internal/flashcard"
	"studybot/internal/model"
	"studybot/internal/repository"
)

// MaxGeneratedCards caps a single generation request regardless of the
// options the caller sent.
const MaxGeneratedCards = 6

type Generator interface {
	Generate(ctx context.Context, documentID, userID uint, opts flashcard.Options) ([]flashcard.Draft, error)
}

type FlashCardService struct {
	cardRepo  *repository.FlashCardRepository
	docRepo   *repository.DocumentRepository
	generator Generator
	logger    *zap.Logger
	now       func() time.Time
}

type GenerateInput struct {
	UserID     uint
	DocumentID uint
	Options    flashcard.Options
}

type GeneratedDocument struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type GenerateResult struct {
	Set              *model.FlashCardSet `json:"flashcard_set"`
	Cards            []*model.FlashCard  `json:"flashcards"`
	Count            int                 `json:"count"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
	Document         GeneratedDocument   `json:"document"`
}

type UpdateFlashCardInput struct {
	UserID       uint
	CardID       uint
	Question     *string
	Answer       *string
	Difficulty   *string
	Tags         *[]string
	IsBookmarked *bool
}

type FlashCardStats struct {
	TotalCards             int64            `json:"total_cards"`
	TotalReviews           int64            `json:"total_reviews"`
	TotalCorrect           int64            `json:"total_correct"`
	Accuracy               float64          `json:"accuracy"`
	BookmarkedCards        int64            `json:"bookmarked_cards"`
	DifficultyDistribution map[string]int64 `json:"difficulty_distribution"`
}

func NewFlashCardService(
	cardRepo *repository.FlashCardRepository,
	docRepo *repository.DocumentRepository,
	generator Generator,
	logger *zap.Logger,
) *FlashCardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlashCardService{
		cardRepo:  cardRepo,
		docRepo:   docRepo,
		generator: generator,
		logger:    logger,
		now:       time.Now,
	}
}

// Generate drafts cards from one of the user's documents and stores them
// together with a new set named after the generation time.
func (s *FlashCardService) Generate(ctx context.Context, input GenerateInput) (*GenerateResult, error) {
	if input.UserID == 0 || input.DocumentID == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUserID(ctx, input.DocumentID, input.UserID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	start := s.now()
	opts := input.Options
	opts.MaxCards = MaxGeneratedCards
	drafts, err := s.generator.Generate(ctx, doc.ID, input.UserID, opts)
	if err != nil {
		return nil, err
	}
	if len(drafts) > MaxGeneratedCards {
		drafts = drafts[:MaxGeneratedCards]
	}
	if len(drafts) == 0 {
		return nil, flashcard.ErrNoContent
	}

	cards := make([]*model.FlashCard, 0, len(drafts))
	for _, d := range drafts {
		card := model.NewFlashCard(input.UserID, doc.ID, d.Question, d.Answer, d.Difficulty, d.Tags)
		card.SourceExcerpt = d.SourceExcerpt
		card.Metadata = datatypes.NewJSONType(model.FlashCardMetadata{
			PageNumber:      d.Metadata.PageNumber,
			ChunkIndex:      d.Metadata.ChunkIndex,
			ConfidenceScore: d.Metadata.ConfidenceScore,
			Source:          doc.OriginalName,
		})
		cards = append(cards, card)
	}

	set := model.NewFlashCardSet(
		input.UserID,
		fmt.Sprintf("Flashcard Set - %s", start.Format("2006-01-02 15:04:05")),
		fmt.Sprintf("Generated from %s", doc.OriginalName),
	)
	set.AddDocument(doc.ID)
	if err := s.cardRepo.CreateWithSet(ctx, cards, set); err != nil {
		return nil, err
	}

	elapsed := s.now().Sub(start)
	s.logger.Info("flashcards generated",
		zap.Uint("user_id", input.UserID),
		zap.Uint("document_id", doc.ID),
		zap.Uint("set_id", set.ID),
		zap.Int("cards", len(cards)),
		zap.Duration("elapsed", elapsed),
	)
	return &GenerateResult{
		Set:              set,
		Cards:            cards,
		Count:            len(cards),
		ProcessingTimeMs: elapsed.Milliseconds(),
		Document:         GeneratedDocument{ID: doc.ID, Name: doc.OriginalName},
	}, nil
}

func (s *FlashCardService) List(ctx context.Context, userID uint, filter repository.FlashCardFilter, page repository.Page) ([]model.FlashCard, int64, error) {
	if userID == 0 {
		return nil, 0, ErrInvalidInput
	}
	if filter.Difficulty != "" && !model.ValidDifficulty(filter.Difficulty) {
		return nil, 0, ErrInvalidInput
	}
	return s.cardRepo.List(ctx, userID, filter, page)
}

func (s *FlashCardService) Get(ctx context.Context, userID, cardID uint) (*model.FlashCard, error) {
	if userID == 0 || cardID == 0 {
		return nil, ErrInvalidInput
	}
	card, err := s.cardRepo.GetByIDAndUserID(ctx, cardID, userID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, ErrFlashCardNotFound
	}
	return card, nil
}

func (s *FlashCardService) Update(ctx context.Context, input UpdateFlashCardInput) (*model.FlashCard, error) {
	card, err := s.Get(ctx, input.UserID, input.CardID)
	if err != nil {
		return nil, err
	}
	if input.Question != nil {
		q := strings.TrimSpace(*input.Question)
		if q == "" {
			return nil, ErrInvalidInput
		}
		card.Question = q
	}
	if input.Answer != nil {
		a := strings.TrimSpace(*input.Answer)
		if a == "" {
			return nil, ErrInvalidInput
		}
		card.Answer = a
	}
	if input.Difficulty != nil {
		if !model.ValidDifficulty(*input.Difficulty) {
			return nil, ErrInvalidInput
		}
		card.Difficulty = *input.Difficulty
	}
	if input.Tags != nil {
		card.Tags = datatypes.NewJSONType(cleanTags(*input.Tags))
	}
	if input.IsBookmarked != nil {
		card.IsBookmarked = *input.IsBookmarked
	}
	if err := s.cardRepo.Save(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *FlashCardService) Delete(ctx context.Context, userID, cardID uint) error {
	if userID == 0 || cardID == 0 {
		return ErrInvalidInput
	}
	ok, err := s.cardRepo.SoftDelete(ctx, cardID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrFlashCardNotFound
	}
	return nil
}

func (s *FlashCardService) Review(ctx context.Context, userID, cardID uint, correct bool) (*model.FlashCard, error) {
	card, err := s.Get(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	card.RecordReview(correct, s.now())
	if err := s.cardRepo.Save(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *FlashCardService) Stats(ctx context.Context, userID uint) (*FlashCardStats, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	st, err := s.cardRepo.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &FlashCardStats{
		TotalCards:             st.TotalCards,
		TotalReviews:           st.TotalReviews,
		TotalCorrect:           st.TotalCorrect,
		Accuracy:               math.Round(st.Accuracy()),
		BookmarkedCards:        st.Bookmarked,
		DifficultyDistribution: st.ByDifficulty,
	}, nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
