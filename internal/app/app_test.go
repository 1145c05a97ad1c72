package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"studybot/internal/flashcard"
	"studybot/internal/ingestion"
	"studybot/internal/model"
	"studybot/internal/pkg/jwtutil"
	"studybot/internal/platform/sqlite"
	"studybot/internal/query"
	"studybot/internal/repository"
	"studybot/internal/vectorstore"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NoError(t, model.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type unitEmbedder struct{}

func (unitEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	payloads []any
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, payload)
	return nil
}

type stubAnswerer struct {
	result *query.Result
	err    error
}

func (s stubAnswerer) Answer(_ context.Context, q string, _ uint) (*query.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubGenerator struct {
	drafts []flashcard.Draft
	err    error
	opts   flashcard.Options
}

func (g *stubGenerator) Generate(_ context.Context, _, _ uint, opts flashcard.Options) ([]flashcard.Draft, error) {
	g.opts = opts
	return g.drafts, g.err
}

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func TestAuthRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(repository.NewUserRepository(newTestDB(t)), "secret", time.Hour, nil)
	fixed := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	session, err := svc.Register(ctx, RegisterInput{Email: " ADA@example.com ", Password: "longenough", FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "ada@example.com", session.User.Email)
	assert.Equal(t, "Ada Lovelace", session.DisplayName)
	assert.Equal(t, fixed.Add(time.Hour), session.ExpiresAt)

	claims, err := jwtutil.ParseToken("secret", session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)

	_, err = svc.Register(ctx, RegisterInput{Email: "ada@EXAMPLE.com", Password: "longenough"})
	assert.ErrorIs(t, err, ErrEmailExists)

	invalid := []RegisterInput{
		{Email: "bob@example.com", Password: "short"},
		{Email: "not-an-email", Password: "longenough"},
		{Email: "Bob <bob@example.com>", Password: "longenough"},
		{Email: "bob@example.com", Password: strings.Repeat("p", 73)},
	}
	for _, in := range invalid {
		_, err = svc.Register(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidInput, in.Email)
	}

	_, err = svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "longenough"})
	assert.ErrorIs(t, err, ErrInvalidCredential)

	login, err := svc.Login(ctx, LoginInput{Email: "Ada@Example.com", Password: "longenough"})
	require.NoError(t, err)
	require.NotNil(t, login.User.LastLoginAt)
	assert.True(t, login.User.LastLoginAt.Equal(fixed))

	profile, err := svc.Profile(ctx, login.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", profile.LastName)
	_, err = svc.Profile(ctx, login.User.ID+1)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestDisplayNameFallsBackToMailbox(t *testing.T) {
	assert.Equal(t, "grace", (&model.User{Email: "grace@example.com"}).DisplayName())
	assert.Equal(t, "Grace", (&model.User{Email: "g@example.com", FirstName: "Grace"}).DisplayName())
}

func TestDocumentUploadQueuesIngestion(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	pub := &recordingPublisher{}
	repo := repository.NewDocumentRepository(newTestDB(t))
	svc := NewDocumentService(repo, vectorstore.NewMemory(unitEmbedder{}, 2), pub, dir, 1<<20, nil)

	doc, err := svc.Upload(ctx, UploadInput{UserID: 7, FileName: "Biology Notes.pdf", Size: int64(len(pdfBytes)), Body: bytes.NewReader(pdfBytes)})
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusProcessing, doc.Status)
	assert.Equal(t, "Biology Notes.pdf", doc.OriginalName)
	assert.FileExists(t, doc.FilePath)
	assert.Equal(t, filepath.Join(dir, "7"), filepath.Dir(doc.FilePath))

	require.Len(t, pub.payloads, 1)
	task, ok := pub.payloads[0].(ingestion.Task)
	require.True(t, ok)
	assert.Equal(t, ingestion.Task{DocumentID: doc.ID, UserID: 7, FilePath: doc.FilePath, Source: "Biology Notes.pdf"}, task)
}

func TestDocumentUploadRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	svc := NewDocumentService(repository.NewDocumentRepository(newTestDB(t)), vectorstore.NewMemory(unitEmbedder{}, 2), &recordingPublisher{}, dir, 64, nil)

	_, err := svc.Upload(ctx, UploadInput{UserID: 1, FileName: "notes.txt", Body: bytes.NewReader([]byte("hi"))})
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = svc.Upload(ctx, UploadInput{UserID: 1, FileName: "fake.pdf", Body: bytes.NewReader([]byte("plain text pretending"))})
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	big := append(append([]byte{}, pdfBytes...), bytes.Repeat([]byte("x"), 100)...)
	_, err = svc.Upload(ctx, UploadInput{UserID: 1, FileName: "big.pdf", Size: 0, Body: bytes.NewReader(big)})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	entries, _ := os.ReadDir(filepath.Join(dir, "1"))
	assert.Empty(t, entries)
}

func TestDocumentUploadEnqueueFailureMarksError(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewDocumentRepository(newTestDB(t))
	svc := NewDocumentService(repo, vectorstore.NewMemory(unitEmbedder{}, 2), &recordingPublisher{err: errors.New("broker down")}, t.TempDir(), 1<<20, nil)

	_, err := svc.Upload(ctx, UploadInput{UserID: 1, FileName: "a.pdf", Body: bytes.NewReader(pdfBytes)})
	assert.ErrorIs(t, err, ErrIngestEnqueue)

	docs, err := repo.ListByUserID(ctx, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, model.DocumentStatusError, docs[0].Status)
}

func TestDocumentDeleteStatsAndPurge(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewDocumentRepository(newTestDB(t))
	store := vectorstore.NewMemory(unitEmbedder{}, 2)
	svc := NewDocumentService(repo, store, &recordingPublisher{}, t.TempDir(), 1<<20, nil)

	doc, err := svc.Upload(ctx, UploadInput{UserID: 3, FileName: "a.pdf", Body: bytes.NewReader(pdfBytes)})
	require.NoError(t, err)
	ns := vectorstore.Namespace(3)
	_, err = store.Upsert(ctx, ns, []vectorstore.Chunk{
		{Text: "a", Vector: []float32{1, 0}, Metadata: vectorstore.Metadata{UserID: 3, DocumentID: doc.ID, ChunkIndex: 0}},
		{Text: "b", Vector: []float32{1, 0}, Metadata: vectorstore.Metadata{UserID: 3, DocumentID: 999, ChunkIndex: 0}},
	})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalVectors)
	assert.EqualValues(t, 1, stats.Documents.Processing)

	_, err = svc.Get(ctx, 4, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	require.NoError(t, svc.Delete(ctx, 3, doc.ID))
	assert.NoFileExists(t, doc.FilePath)
	stats, err = svc.Stats(ctx, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalVectors)

	assert.ErrorIs(t, svc.PurgeVectors(ctx, 3, false), ErrConfirmRequired)
	require.NoError(t, svc.PurgeVectors(ctx, 3, true))
	stats, err = svc.Stats(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalVectors)
}

func TestQueryServiceAsk(t *testing.T) {
	svc := NewQueryService(stubAnswerer{result: &query.Result{Answer: "ok", SourceCount: 1, ProcessingTime: 1500 * time.Millisecond}}, nil)
	res, err := svc.Ask(context.Background(), 1, "what?")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Answer)
	assert.EqualValues(t, 1500, res.ProcessingTimeMs)

	failing := NewQueryService(stubAnswerer{err: query.ErrInvalidQuery}, nil)
	_, err = failing.Ask(context.Background(), 1, " ")
	assert.ErrorIs(t, err, query.ErrInvalidQuery)
}

func TestChatAskPublishesBothMessages(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	pub := &recordingPublisher{}
	answer := &query.Result{
		Answer:      "ATP stores energy.",
		SourceCount: 2,
		RelevantDocs: []query.RelevantDoc{
			{Content: "x...", Source: "bio.pdf", ChunkIndex: 1, DocumentID: 5},
			{Content: "y...", Source: "bio.pdf", ChunkIndex: 2, DocumentID: 5},
		},
		ProcessingTime: 20 * time.Millisecond,
	}
	svc := NewChatService(repository.NewChatRepository(db), repository.NewMessageRepository(db), pub, nil, stubAnswerer{result: answer}, "gpt-test", nil)

	chat, err := svc.CreateChat(ctx, CreateChatInput{UserID: 1, Name: "  Biology  "})
	require.NoError(t, err)
	assert.Equal(t, "Biology", chat.Name)

	_, err = svc.Ask(ctx, AskInput{UserID: 2, ChatID: chat.ID, Content: "hi"})
	assert.ErrorIs(t, err, ErrChatNotFound)
	_, err = svc.Ask(ctx, AskInput{UserID: 1, ChatID: chat.ID, Content: "   "})
	assert.ErrorIs(t, err, ErrMessageEmpty)

	res, err := svc.Ask(ctx, AskInput{UserID: 1, ChatID: chat.ID, Content: "What is ATP?"})
	require.NoError(t, err)
	assert.Equal(t, "ATP stores energy.", res.Answer)
	require.Len(t, pub.payloads, 2)

	userMsg := pub.payloads[0].(model.Message)
	assert.Equal(t, model.RoleUser, userMsg.Role)
	assert.Equal(t, model.MessageTypeQuery, userMsg.Type)

	botMsg := pub.payloads[1].(model.Message)
	assert.Equal(t, model.RoleAssistant, botMsg.Role)
	assert.Equal(t, model.MessageTypeResponse, botMsg.Type)
	meta := botMsg.Metadata.Data()
	assert.Equal(t, []string{"bio.pdf"}, meta.Sources)
	assert.Len(t, meta.DocumentReferences, 2)
	assert.Equal(t, "gpt-test", meta.Model)
	assert.EqualValues(t, 20, meta.ProcessingTimeMs)
}

func TestChatHistoryStatsAndDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	chats := repository.NewChatRepository(db)
	messages := repository.NewMessageRepository(db)
	svc := NewChatService(chats, messages, &recordingPublisher{}, nil, stubAnswerer{}, "m", nil)

	chat, err := svc.CreateChat(ctx, CreateChatInput{UserID: 1, Name: "Physics"})
	require.NoError(t, err)
	require.NoError(t, messages.CreateBatch(ctx, []model.Message{
		{ChatID: chat.ID, UserID: 1, Role: model.RoleUser, Type: model.MessageTypeQuery, Content: "q"},
		{ChatID: chat.ID, UserID: 1, Role: model.RoleAssistant, Type: model.MessageTypeResponse, Content: "a"},
	}))

	history, total, err := svc.GetHistory(ctx, 1, chat.ID, repository.Page{})
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.EqualValues(t, 2, total)

	stats, err := svc.Stats(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalChats)
	assert.EqualValues(t, 2, stats.TotalMessages)
	assert.EqualValues(t, 1, stats.TotalQueries)
	assert.Len(t, stats.RecentActivity, 1)

	renamed := "Physics II"
	updated, err := svc.UpdateChat(ctx, UpdateChatInput{UserID: 1, ChatID: chat.ID, Name: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "Physics II", updated.Name)

	require.NoError(t, svc.DeleteChat(ctx, 1, chat.ID))
	assert.ErrorIs(t, svc.DeleteChat(ctx, 1, chat.ID), ErrChatNotFound)
}

type mapHistoryCache struct {
	pages  map[string][]model.Message
	totals map[string]int64
	dirty  map[uint]bool
}

func newMapHistoryCache() *mapHistoryCache {
	return &mapHistoryCache{pages: map[string][]model.Message{}, totals: map[string]int64{}, dirty: map[uint]bool{}}
}

func (c *mapHistoryCache) key(chatID uint, page repository.Page) string {
	return fmt.Sprintf("%d/%d/%d", chatID, page.Number, page.Size)
}

func (c *mapHistoryCache) Lookup(_ context.Context, chatID uint, page repository.Page) ([]model.Message, int64, bool, error) {
	if c.dirty[chatID] {
		return nil, 0, false, nil
	}
	k := c.key(chatID, page)
	m, ok := c.pages[k]
	return m, c.totals[k], ok, nil
}

func (c *mapHistoryCache) Store(_ context.Context, chatID uint, page repository.Page, messages []model.Message, total int64) error {
	if !c.dirty[chatID] {
		k := c.key(chatID, page)
		c.pages[k] = messages
		c.totals[k] = total
	}
	return nil
}

func (c *mapHistoryCache) Invalidate(_ context.Context, chatID uint) error {
	c.dirty[chatID] = true
	return nil
}

func (c *mapHistoryCache) Delete(_ context.Context, chatID uint) error {
	delete(c.dirty, chatID)
	return nil
}

func TestChatHistoryWindowsDoNotShareCache(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	chats := repository.NewChatRepository(db)
	messages := repository.NewMessageRepository(db)
	svc := NewChatService(chats, messages, &recordingPublisher{}, newMapHistoryCache(), stubAnswerer{}, "m", nil)

	chat, err := svc.CreateChat(ctx, CreateChatInput{UserID: 1, Name: "History"})
	require.NoError(t, err)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	seeded := make([]model.Message, 5)
	for i := range seeded {
		seeded[i] = model.Message{
			ChatID: chat.ID, UserID: 1, Role: model.RoleUser, Type: model.MessageTypeQuery,
			Content:   fmt.Sprintf("m%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
	}
	require.NoError(t, messages.CreateBatch(ctx, seeded))

	contents := func(ms []model.Message) []string {
		out := make([]string, 0, len(ms))
		for _, m := range ms {
			out = append(out, m.Content)
		}
		return out
	}

	short, total, err := svc.GetHistory(ctx, 1, chat.ID, repository.Page{Number: 1, Size: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Equal(t, []string{"m3", "m4"}, contents(short))

	full, _, err := svc.GetHistory(ctx, 1, chat.ID, repository.Page{Number: 1, Size: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4"}, contents(full))

	again, total, err := svc.GetHistory(ctx, 1, chat.ID, repository.Page{Number: 1, Size: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Equal(t, []string{"m3", "m4"}, contents(again))

	older, _, err := svc.GetHistory(ctx, 1, chat.ID, repository.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, contents(older))
}

func seedDocument(t *testing.T, repo *repository.DocumentRepository, userID uint, name string) *model.Document {
	t.Helper()
	doc := &model.Document{UserID: userID, OriginalName: name, StoredName: "s.pdf", FilePath: "/tmp/s.pdf", MimeType: "application/pdf"}
	require.NoError(t, repo.Create(context.Background(), doc))
	return doc
}

func drafts(n int) []flashcard.Draft {
	out := make([]flashcard.Draft, n)
	for i := range out {
		out[i] = flashcard.Draft{
			Question:      "Question?",
			Answer:        "Answer.",
			Difficulty:    model.DifficultyMedium,
			Tags:          []string{"general"},
			SourceExcerpt: "excerpt",
			Metadata:      flashcard.DraftMetadata{ChunkIndex: i, ConfidenceScore: 0.8, PageNumber: 1},
		}
	}
	return out
}

func TestFlashCardGenerateCreatesCardsAndSet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	docs := repository.NewDocumentRepository(db)
	cards := repository.NewFlashCardRepository(db)
	gen := &stubGenerator{drafts: drafts(8)}
	svc := NewFlashCardService(cards, docs, gen, nil)
	doc := seedDocument(t, docs, 1, "cells.pdf")

	_, err := svc.Generate(ctx, GenerateInput{UserID: 2, DocumentID: doc.ID})
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	res, err := svc.Generate(ctx, GenerateInput{UserID: 1, DocumentID: doc.ID, Options: flashcard.Options{MaxCards: 20}})
	require.NoError(t, err)
	assert.Equal(t, MaxGeneratedCards, gen.opts.MaxCards)
	assert.Equal(t, 6, res.Count)
	assert.Equal(t, 6, res.Set.Stats.TotalCards)
	assert.Equal(t, "Generated from cells.pdf", res.Set.Description)
	assert.Contains(t, res.Set.Name, "Flashcard Set - ")
	assert.Equal(t, []uint{doc.ID}, res.Set.DocumentIDs.Data())
	assert.Equal(t, "cells.pdf", res.Cards[0].Metadata.Data().Source)

	sets := NewFlashCardSetService(repository.NewFlashCardSetRepository(db), cards, nil)
	detail, err := sets.Get(ctx, 1, res.Set.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Cards, 6)

	gen.drafts = nil
	_, err = svc.Generate(ctx, GenerateInput{UserID: 1, DocumentID: doc.ID})
	assert.ErrorIs(t, err, flashcard.ErrNoContent)
}

func TestFlashCardUpdateReviewDeleteStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	docs := repository.NewDocumentRepository(db)
	svc := NewFlashCardService(repository.NewFlashCardRepository(db), docs, &stubGenerator{drafts: drafts(2)}, nil)
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	doc := seedDocument(t, docs, 1, "a.pdf")

	res, err := svc.Generate(ctx, GenerateInput{UserID: 1, DocumentID: doc.ID})
	require.NoError(t, err)
	first := res.Cards[0]

	bad := "extreme"
	_, err = svc.Update(ctx, UpdateFlashCardInput{UserID: 1, CardID: first.ID, Difficulty: &bad})
	assert.ErrorIs(t, err, ErrInvalidInput)

	hard := model.DifficultyHard
	tags := []string{" cells ", "cells", ""}
	bookmark := true
	updated, err := svc.Update(ctx, UpdateFlashCardInput{UserID: 1, CardID: first.ID, Difficulty: &hard, Tags: &tags, IsBookmarked: &bookmark})
	require.NoError(t, err)
	assert.Equal(t, []string{"cells"}, updated.TagList())

	reviewed, err := svc.Review(ctx, 1, first.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 3, reviewed.Review.Interval)
	assert.Equal(t, fixed.AddDate(0, 0, 3), reviewed.Review.NextReview.UTC())
	_, err = svc.Review(ctx, 1, res.Cards[1].ID, false)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalCards)
	assert.EqualValues(t, 2, stats.TotalReviews)
	assert.InDelta(t, 50.0, stats.Accuracy, 1e-9)
	assert.EqualValues(t, 1, stats.BookmarkedCards)
	assert.EqualValues(t, 1, stats.DifficultyDistribution[model.DifficultyHard])

	require.NoError(t, svc.Delete(ctx, 1, first.ID))
	_, err = svc.Get(ctx, 1, first.ID)
	assert.ErrorIs(t, err, ErrFlashCardNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, 1, first.ID), ErrFlashCardNotFound)
}

func TestFlashCardSetLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cardRepo := repository.NewFlashCardRepository(db)
	svc := NewFlashCardSetService(repository.NewFlashCardSetRepository(db), cardRepo, nil)

	mine := []*model.FlashCard{
		model.NewFlashCard(1, 1, "q1", "a1", model.DifficultyEasy, nil),
		model.NewFlashCard(1, 1, "q2", "a2", model.DifficultyEasy, nil),
		model.NewFlashCard(1, 1, "q3", "a3", model.DifficultyEasy, nil),
	}
	theirs := []*model.FlashCard{model.NewFlashCard(2, 1, "q", "a", model.DifficultyEasy, nil)}
	require.NoError(t, cardRepo.CreateWithSet(ctx, mine, nil))
	require.NoError(t, cardRepo.CreateWithSet(ctx, theirs, nil))

	_, err := svc.Create(ctx, CreateSetInput{UserID: 1, Name: "Mixed", FlashCardIDs: []uint{mine[0].ID, theirs[0].ID}})
	assert.ErrorIs(t, err, ErrInvalidCards)

	quiz := model.StudyModeQuiz
	set, err := svc.Create(ctx, CreateSetInput{
		UserID:       1,
		Name:         "Cells",
		FlashCardIDs: []uint{mine[0].ID, mine[1].ID, mine[0].ID},
		Tags:         []string{"bio"},
		Settings:     &SettingsPatch{StudyMode: &quiz},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, set.Stats.TotalCards)
	assert.Equal(t, model.StudyModeQuiz, set.Settings.Data().StudyMode)
	assert.True(t, set.Settings.Data().ShuffleCards)

	set, err = svc.AddCards(ctx, 1, set.ID, []uint{mine[1].ID, mine[2].ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{mine[0].ID, mine[1].ID, mine[2].ID}, set.CardIDs())

	_, err = svc.AddCards(ctx, 1, set.ID, []uint{theirs[0].ID})
	assert.ErrorIs(t, err, ErrInvalidCards)

	set, err = svc.RemoveCards(ctx, 1, set.ID, []uint{mine[1].ID})
	require.NoError(t, err)
	assert.Equal(t, 2, set.Stats.TotalCards)

	acc := 90.0
	set, err = svc.RecordStudySession(ctx, StudySessionInput{UserID: 1, SetID: set.ID, StudyTime: 300, Accuracy: &acc})
	require.NoError(t, err)
	assert.Equal(t, 1, set.Stats.StudySessions)
	assert.InDelta(t, 90.0, set.Stats.AverageAccuracy, 1e-9)

	over := 120.0
	_, err = svc.RecordStudySession(ctx, StudySessionInput{UserID: 1, SetID: set.ID, Accuracy: &over})
	assert.ErrorIs(t, err, ErrInvalidInput)

	renamed := "Cell biology"
	bookmarked := true
	set, err = svc.Update(ctx, UpdateSetInput{UserID: 1, SetID: set.ID, Name: &renamed, IsBookmarked: &bookmarked})
	require.NoError(t, err)
	assert.Equal(t, "Cell biology", set.Name)

	list, total, err := svc.List(ctx, 1, repository.FlashCardSetFilter{Tags: []string{"bio"}}, repository.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.True(t, list[0].IsBookmarked)

	require.NoError(t, svc.Delete(ctx, 1, set.ID))
	_, err = svc.Get(ctx, 1, set.ID)
	assert.ErrorIs(t, err, ErrFlashCardSetNotFound)
}
