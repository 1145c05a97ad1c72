package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"studybot/internal/ingestion"
	"studybot/internal/model"
	"studybot/internal/repository"
	"studybot/internal/vectorstore"
)

const pdfMime = "application/pdf"

// TaskPublisher hands a payload to the background queue.
type TaskPublisher interface {
	Publish(ctx context.Context, payload any) error
}

type DocumentService struct {
	docRepo   *repository.DocumentRepository
	store     vectorstore.Store
	publisher TaskPublisher
	uploadDir string
	maxBytes  int64
	logger    *zap.Logger
}

type UploadInput struct {
	UserID   uint
	FileName string
	Size     int64
	Body     io.Reader
}

type DocumentStats struct {
	UserID       uint                      `json:"user_id"`
	TotalVectors int64                     `json:"total_vectors"`
	Documents    repository.DocumentCounts `json:"documents"`
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	store vectorstore.Store,
	publisher TaskPublisher,
	uploadDir string,
	maxBytes int64,
	logger *zap.Logger,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		docRepo:   docRepo,
		store:     store,
		publisher: publisher,
		uploadDir: uploadDir,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// Upload stores the file, records the document as processing and queues
// ingestion. It returns before any parsing happens.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*model.Document, error) {
	if input.UserID == 0 || input.Body == nil {
		return nil, ErrInvalidInput
	}
	name := filepath.Base(strings.TrimSpace(input.FileName))
	if name == "." || name == "" || !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return nil, ErrUnsupportedFile
	}
	if s.maxBytes > 0 && input.Size > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	path, written, err := s.saveFile(input)
	if err != nil {
		return nil, err
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil || !mt.Is(pdfMime) {
		_ = os.Remove(path)
		return nil, ErrUnsupportedFile
	}

	doc := &model.Document{
		UserID:       input.UserID,
		OriginalName: name,
		StoredName:   filepath.Base(path),
		FilePath:     path,
		FileSize:     written,
		MimeType:     pdfMime,
		Status:       model.DocumentStatusProcessing,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	task := ingestion.Task{
		DocumentID: doc.ID,
		UserID:     doc.UserID,
		FilePath:   doc.FilePath,
		Source:     doc.OriginalName,
	}
	if err := s.publisher.Publish(ctx, task); err != nil {
		s.logger.Error("enqueue ingestion failed", zap.Uint("document_id", doc.ID), zap.Error(err))
		if markErr := s.docRepo.MarkFailed(context.WithoutCancel(ctx), doc.ID, ErrIngestEnqueue.Error(), doc.UploadedAt); markErr != nil {
			s.logger.Warn("mark document failed", zap.Uint("document_id", doc.ID), zap.Error(markErr))
		}
		return nil, ErrIngestEnqueue
	}

	s.logger.Info("document uploaded",
		zap.Uint("document_id", doc.ID),
		zap.Uint("user_id", doc.UserID),
		zap.Int64("size", written),
	)
	return doc, nil
}

func (s *DocumentService) saveFile(input UploadInput) (string, int64, error) {
	dir := filepath.Join(s.uploadDir, fmt.Sprintf("%d", input.UserID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create upload dir failed: %w", err)
	}
	id, err := gonanoid.New()
	if err != nil {
		return "", 0, fmt.Errorf("generate file name failed: %w", err)
	}
	path := filepath.Join(dir, id+".pdf")

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file failed: %w", err)
	}
	body := input.Body
	if s.maxBytes > 0 {
		body = io.LimitReader(body, s.maxBytes+1)
	}
	written, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write upload file failed: %w", err)
	}
	if s.maxBytes > 0 && written > s.maxBytes {
		_ = os.Remove(path)
		return "", 0, ErrFileTooLarge
	}
	return path, written, nil
}

func (s *DocumentService) List(ctx context.Context, userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docRepo.ListByUserID(ctx, userID)
}

func (s *DocumentService) Get(ctx context.Context, userID, documentID uint) (*model.Document, error) {
	if userID == 0 || documentID == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUserID(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Delete removes the document's vectors, its file and its record.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID uint) error {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, vectorstore.Namespace(userID), doc.ID); err != nil {
		return fmt.Errorf("delete document vectors failed: %w", err)
	}
	if err := os.Remove(doc.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove upload file failed", zap.String("path", doc.FilePath), zap.Error(err))
	}
	return s.docRepo.DeleteByIDAndUserID(ctx, doc.ID, userID)
}

func (s *DocumentService) Stats(ctx context.Context, userID uint) (*DocumentStats, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	vs, err := s.store.DescribeStats(ctx, vectorstore.Namespace(userID))
	if err != nil {
		return nil, err
	}
	counts, err := s.docRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &DocumentStats{UserID: userID, TotalVectors: vs.VectorCount, Documents: counts}, nil
}

// PurgeVectors irreversibly drops every vector of the user. Document records
// are left in place.
func (s *DocumentService) PurgeVectors(ctx context.Context, userID uint, confirm bool) error {
	if userID == 0 {
		return ErrInvalidInput
	}
	if !confirm {
		return ErrConfirmRequired
	}
	if err := s.store.DeleteAll(ctx, vectorstore.Namespace(userID)); err != nil {
		return err
	}
	s.logger.Warn("user vectors purged", zap.Uint("user_id", userID))
	return nil
}
