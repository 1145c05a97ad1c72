package app

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"studybot/internal/model"
	"studybot/internal/query"
	"studybot/internal/repository"
)

const (
	maxChatName        = 100
	maxChatDescription = 500
	recentChatLimit    = 5
)

type HistoryCache interface {
	Lookup(ctx context.Context, chatID uint, page repository.Page) ([]model.Message, int64, bool, error)
	Store(ctx context.Context, chatID uint, page repository.Page, messages []model.Message, total int64) error
	Invalidate(ctx context.Context, chatID uint) error
	Delete(ctx context.Context, chatID uint) error
}

type ChatService struct {
	chatRepo     *repository.ChatRepository
	messageRepo  *repository.MessageRepository
	publisher    TaskPublisher
	historyCache HistoryCache
	engine       Answerer
	modelName    string
	logger       *zap.Logger
}

type CreateChatInput struct {
	UserID      uint
	Name        string
	Description string
}

type UpdateChatInput struct {
	UserID      uint
	ChatID      uint
	Name        *string
	Description *string
}

type AskInput struct {
	UserID  uint
	ChatID  uint
	Content string
}

type AskResult struct {
	Messages         []model.Message     `json:"messages"`
	Answer           string              `json:"answer"`
	SourceCount      int                 `json:"source_count"`
	RelevantDocs     []query.RelevantDoc `json:"relevant_docs"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
}

type ChatActivity struct {
	ID            uint      `json:"id"`
	Name          string    `json:"name"`
	MessageCount  int       `json:"message_count"`
	LastMessageAt time.Time `json:"last_message_at"`
}

type ChatStats struct {
	TotalChats     int64          `json:"total_chats"`
	TotalMessages  int64          `json:"total_messages"`
	TotalQueries   int64          `json:"total_queries"`
	RecentActivity []ChatActivity `json:"recent_activity"`
}

func NewChatService(
	chatRepo *repository.ChatRepository,
	messageRepo *repository.MessageRepository,
	publisher TaskPublisher,
	historyCache HistoryCache,
	engine Answerer,
	modelName string,
	logger *zap.Logger,
) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		chatRepo:     chatRepo,
		messageRepo:  messageRepo,
		publisher:    publisher,
		historyCache: historyCache,
		engine:       engine,
		modelName:    modelName,
		logger:       logger,
	}
}

func (s *ChatService) CreateChat(ctx context.Context, input CreateChatInput) (*model.Chat, error) {
	name := strings.TrimSpace(input.Name)
	description := strings.TrimSpace(input.Description)
	if input.UserID == 0 || name == "" {
		return nil, ErrInvalidInput
	}
	if utf8.RuneCountInString(name) > maxChatName || utf8.RuneCountInString(description) > maxChatDescription {
		return nil, ErrInvalidInput
	}

	chat := &model.Chat{
		UserID:        input.UserID,
		Name:          name,
		Description:   description,
		LastMessageAt: time.Now(),
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *ChatService) ListChats(ctx context.Context, userID uint) ([]model.Chat, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.chatRepo.ListByUserID(ctx, userID)
}

func (s *ChatService) GetChat(ctx context.Context, userID, chatID uint) (*model.Chat, error) {
	if userID == 0 || chatID == 0 {
		return nil, ErrInvalidInput
	}
	chat, err := s.chatRepo.GetByIDAndUserID(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

func (s *ChatService) UpdateChat(ctx context.Context, input UpdateChatInput) (*model.Chat, error) {
	chat, err := s.GetChat(ctx, input.UserID, input.ChatID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" || utf8.RuneCountInString(name) > maxChatName {
			return nil, ErrInvalidInput
		}
		chat.Name = name
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if utf8.RuneCountInString(description) > maxChatDescription {
			return nil, ErrInvalidInput
		}
		chat.Description = description
	}
	if err := s.chatRepo.Save(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID uint) error {
	if userID == 0 || chatID == 0 {
		return ErrInvalidInput
	}
	deleted, err := s.chatRepo.DeleteByIDAndUserID(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrChatNotFound
	}
	if s.historyCache != nil {
		_ = s.historyCache.Delete(ctx, chatID)
	}
	return nil
}

// Ask answers a question inside a chat. The question and the answer are
// persisted asynchronously through the message queue.
func (s *ChatService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	if utf8.RuneCountInString(content) > model.MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	if _, err := s.GetChat(ctx, input.UserID, input.ChatID); err != nil {
		return nil, err
	}
	if s.publisher == nil {
		return nil, ErrMessageEnqueue
	}

	userMessage := model.Message{
		ChatID:    input.ChatID,
		UserID:    input.UserID,
		Role:      model.RoleUser,
		Type:      model.MessageTypeQuery,
		Content:   content,
		CreatedAt: time.Now(),
	}
	s.invalidateHistory(ctx, input.ChatID)
	if err := s.publisher.Publish(ctx, userMessage); err != nil {
		s.logger.Error("enqueue user message failed", zap.Uint("chat_id", input.ChatID), zap.Error(err))
		return nil, ErrMessageEnqueue
	}

	res, err := s.engine.Answer(ctx, content, input.UserID)
	if err != nil {
		return nil, err
	}

	assistantMessage := model.Message{
		ChatID:    input.ChatID,
		UserID:    input.UserID,
		Role:      model.RoleAssistant,
		Type:      model.MessageTypeResponse,
		Content:   truncateMessage(res.Answer),
		Metadata:  datatypes.NewJSONType(s.answerMetadata(res)),
		CreatedAt: time.Now(),
	}
	s.invalidateHistory(ctx, input.ChatID)
	if err := s.publisher.Publish(ctx, assistantMessage); err != nil {
		s.logger.Error("enqueue assistant message failed", zap.Uint("chat_id", input.ChatID), zap.Error(err))
		return nil, ErrMessageEnqueue
	}

	return &AskResult{
		Messages:         []model.Message{userMessage, assistantMessage},
		Answer:           res.Answer,
		SourceCount:      res.SourceCount,
		RelevantDocs:     res.RelevantDocs,
		ProcessingTimeMs: res.ProcessingTime.Milliseconds(),
	}, nil
}

func (s *ChatService) answerMetadata(res *query.Result) model.MessageMetadata {
	meta := model.MessageMetadata{
		Sources:            []string{},
		DocumentReferences: make([]model.DocumentReference, 0, len(res.RelevantDocs)),
		ProcessingTimeMs:   res.ProcessingTime.Milliseconds(),
		Model:              s.modelName,
	}
	seen := make(map[string]struct{})
	for _, d := range res.RelevantDocs {
		if _, ok := seen[d.Source]; !ok && d.Source != "" {
			seen[d.Source] = struct{}{}
			meta.Sources = append(meta.Sources, d.Source)
		}
		meta.DocumentReferences = append(meta.DocumentReferences, model.DocumentReference{
			DocumentID:   d.DocumentID,
			DocumentName: d.Source,
			ChunkIndex:   d.ChunkIndex,
		})
	}
	return meta
}

func (s *ChatService) invalidateHistory(ctx context.Context, chatID uint) {
	if s.historyCache == nil {
		return
	}
	if err := s.historyCache.Invalidate(ctx, chatID); err != nil {
		s.logger.Warn("invalidate history cache failed", zap.Uint("chat_id", chatID), zap.Error(err))
	}
}

// GetHistory pages back from the newest message. Pages are cached per window.
func (s *ChatService) GetHistory(ctx context.Context, userID, chatID uint, page repository.Page) ([]model.Message, int64, error) {
	if _, err := s.GetChat(ctx, userID, chatID); err != nil {
		return nil, 0, err
	}
	page = page.Normalize()

	if s.historyCache != nil {
		cached, total, hit, err := s.historyCache.Lookup(ctx, chatID, page)
		if err != nil {
			s.logger.Warn("lookup history cache failed", zap.Uint("chat_id", chatID), zap.Error(err))
		} else if hit {
			return cached, total, nil
		}
	}

	messages, total, err := s.messageRepo.ListByChatID(ctx, chatID, page)
	if err != nil {
		return nil, 0, err
	}
	if s.historyCache != nil {
		if err := s.historyCache.Store(ctx, chatID, page, messages, total); err != nil {
			s.logger.Warn("store history cache failed", zap.Uint("chat_id", chatID), zap.Error(err))
		}
	}
	return messages, total, nil
}

func (s *ChatService) SearchMessages(ctx context.Context, userID, chatID uint, term string, page repository.Page) ([]model.Message, int64, error) {
	term = strings.TrimSpace(term)
	if userID == 0 || term == "" {
		return nil, 0, ErrInvalidInput
	}
	return s.messageRepo.Search(ctx, userID, chatID, term, page)
}

func (s *ChatService) Stats(ctx context.Context, userID uint) (*ChatStats, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	total, err := s.chatRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.messageRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.chatRepo.RecentByUserID(ctx, userID, recentChatLimit)
	if err != nil {
		return nil, err
	}

	activity := make([]ChatActivity, 0, len(recent))
	for _, c := range recent {
		activity = append(activity, ChatActivity{
			ID:            c.ID,
			Name:          c.Name,
			MessageCount:  c.MessageCount,
			LastMessageAt: c.LastMessageAt,
		})
	}
	return &ChatStats{
		TotalChats:     total,
		TotalMessages:  counts.Total,
		TotalQueries:   counts.Queries,
		RecentActivity: activity,
	}, nil
}

func truncateMessage(s string) string {
	if utf8.RuneCountInString(s) <= model.MaxMessageLength {
		return s
	}
	return string([]rune(s)[:model.MaxMessageLength])
}
