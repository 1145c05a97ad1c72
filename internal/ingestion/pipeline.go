// Package ingestion turns an uploaded PDF into indexed chunks and records the
// outcome on the document.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"studybot/internal/metrics"
	"studybot/internal/pkg/pdfextract"
	"studybot/internal/splitter"
	"studybot/internal/vectorstore"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

var (
	ErrUnreadablePDF = errors.New("unreadable pdf")
	ErrNoText        = errors.New("no extractable text found in document")
	ErrInvalidTask   = errors.New("invalid ingestion task")

	// ErrInterrupted leaves the document processing so the task can run again.
	ErrInterrupted = errors.New("ingestion interrupted")
	// ErrStatusNotRecorded means neither terminal status could be written.
	ErrStatusNotRecorded = errors.New("ingestion status not recorded")
)

// Task is the queue message that starts an ingestion.
type Task struct {
	DocumentID uint   `json:"document_id"`
	UserID     uint   `json:"user_id"`
	FilePath   string `json:"file_path"`
	Source     string `json:"source"`
}

type Result struct {
	Chunks int    `json:"chunks"`
	Status string `json:"status"`
}

type PageLoader interface {
	LoadFile(path string) ([]pdfextract.Page, error)
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// StatusRecorder moves a document out of processing. Both calls must only
// affect a document that is still processing.
type StatusRecorder interface {
	MarkCompleted(ctx context.Context, documentID uint, chunks int, processedAt time.Time) error
	MarkFailed(ctx context.Context, documentID uint, reason string, processedAt time.Time) error
}

type Pipeline struct {
	loader   PageLoader
	splitter *splitter.Splitter
	embedder Embedder
	store    vectorstore.Store
	status   StatusRecorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewPipeline(
	loader PageLoader,
	sp *splitter.Splitter,
	embedder Embedder,
	store vectorstore.Store,
	status StatusRecorder,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sp == nil {
		sp = splitter.New()
	}
	return &Pipeline{
		loader:   loader,
		splitter: sp,
		embedder: embedder,
		store:    store,
		status:   status,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest processes the file synchronously and records the terminal status.
func (p *Pipeline) Ingest(ctx context.Context, filePath string, userID, documentID uint) (Result, error) {
	return p.run(ctx, Task{
		DocumentID: documentID,
		UserID:     userID,
		FilePath:   filePath,
		Source:     filepath.Base(filePath),
	})
}

// HandleTask is the queue consumer entry point.
func (p *Pipeline) HandleTask(ctx context.Context, task Task) error {
	if task.Source == "" {
		task.Source = filepath.Base(task.FilePath)
	}
	_, err := p.run(ctx, task)
	return err
}

func (p *Pipeline) run(ctx context.Context, task Task) (Result, error) {
	if task.DocumentID == 0 || task.UserID == 0 || task.FilePath == "" {
		return Result{Status: StatusError}, ErrInvalidTask
	}

	log := p.logger.With(
		zap.Uint("document_id", task.DocumentID),
		zap.Uint("user_id", task.UserID),
	)
	start := time.Now()

	n, procErr := p.process(ctx, task)
	if procErr != nil && ctx.Err() != nil {
		log.Warn("document ingestion interrupted", zap.Error(procErr), zap.Duration("elapsed", time.Since(start)))
		return Result{Status: StatusProcessing}, fmt.Errorf("%w: %w", ErrInterrupted, procErr)
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if procErr != nil {
		metrics.IngestionTotal.WithLabelValues(StatusError).Inc()
		log.Error("document ingestion failed", zap.Error(procErr), zap.Duration("elapsed", time.Since(start)))
		if err := p.status.MarkFailed(recordCtx, task.DocumentID, procErr.Error(), p.now()); err != nil {
			return Result{Status: StatusError}, errors.Join(procErr, fmt.Errorf("%w: %w", ErrStatusNotRecorded, err))
		}
		return Result{Status: StatusError}, procErr
	}

	if err := p.status.MarkCompleted(recordCtx, task.DocumentID, n, p.now()); err != nil {
		log.Error("record ingestion result failed", zap.Error(err))
		metrics.IngestionTotal.WithLabelValues(StatusError).Inc()
		completeErr := fmt.Errorf("record completion: %w", err)
		if ferr := p.status.MarkFailed(recordCtx, task.DocumentID, completeErr.Error(), p.now()); ferr != nil {
			return Result{Chunks: n, Status: StatusError}, errors.Join(completeErr, fmt.Errorf("%w: %w", ErrStatusNotRecorded, ferr))
		}
		return Result{Chunks: n, Status: StatusError}, completeErr
	}
	metrics.IngestionTotal.WithLabelValues(StatusCompleted).Inc()
	metrics.IngestionChunks.Observe(float64(n))
	log.Info("document ingested", zap.Int("chunks", n), zap.Duration("elapsed", time.Since(start)))
	return Result{Chunks: n, Status: StatusCompleted}, nil
}

func (p *Pipeline) process(ctx context.Context, task Task) (int, error) {
	pages, err := p.loader.LoadFile(task.FilePath)
	if err != nil {
		if errors.Is(err, pdfextract.ErrUnreadable) {
			return 0, fmt.Errorf("%w: %v", ErrUnreadablePDF, err)
		}
		return 0, fmt.Errorf("load document: %w", err)
	}

	input := make([]splitter.Page, len(pages))
	for i, pg := range pages {
		input[i] = splitter.Page{Text: pg.Text, PageNumber: pg.Number}
	}
	pieces := p.splitter.Split(input)
	if len(pieces) == 0 {
		return 0, ErrNoText
	}

	texts := make([]string, len(pieces))
	for i, c := range pieces {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(pieces) {
		return 0, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(pieces))
	}

	ns := vectorstore.Namespace(task.UserID)
	ts := p.now()
	chunks := make([]vectorstore.Chunk, len(pieces))
	for i, c := range pieces {
		chunks[i] = vectorstore.Chunk{
			ID:     vectorstore.ChunkID(ns, task.DocumentID, c.ChunkIndex),
			Text:   c.Text,
			Vector: vectors[i],
			Metadata: vectorstore.Metadata{
				UserID:     task.UserID,
				DocumentID: task.DocumentID,
				ChunkIndex: c.ChunkIndex,
				PageNumber: c.PageNumber,
				Source:     task.Source,
				Timestamp:  ts,
			},
		}
	}

	stored, err := p.store.Upsert(ctx, ns, chunks)
	if err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	return stored, nil
}

// LoaderFunc adapts a plain function to PageLoader.
type LoaderFunc func(path string) ([]pdfextract.Page, error)

func (f LoaderFunc) LoadFile(path string) ([]pdfextract.Page, error) {
	return f(path)
}
