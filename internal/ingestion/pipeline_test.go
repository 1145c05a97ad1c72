package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybot/internal/pkg/pdfextract"
	"studybot/internal/splitter"
	"studybot/internal/vectorstore"
)

const dim = 4

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, float32(i), 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

type statusCall struct {
	status string
	chunks int
	reason string
}

type fakeStatus struct {
	mu          sync.Mutex
	calls       map[uint][]statusCall
	completeErr error
	failErr     error
}

func newFakeStatus() *fakeStatus {
	return &fakeStatus{calls: make(map[uint][]statusCall)}
}

func (f *fakeStatus) MarkCompleted(ctx context.Context, id uint, chunks int, _ time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.completeErr != nil {
		return f.completeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id] = append(f.calls[id], statusCall{status: StatusCompleted, chunks: chunks})
	return nil
}

func (f *fakeStatus) MarkFailed(ctx context.Context, id uint, reason string, _ time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.failErr != nil {
		return f.failErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id] = append(f.calls[id], statusCall{status: StatusError, reason: reason})
	return nil
}

func pagesLoader(pages ...pdfextract.Page) LoaderFunc {
	return func(string) ([]pdfextract.Page, error) { return pages, nil }
}

func longText(words int) string {
	var b strings.Builder
	for i := 0; i < words; i++ {
		fmt.Fprintf(&b, "word%04d ", i)
	}
	return b.String()
}

func newPipeline(loader PageLoader, emb *fakeEmbedder, status *fakeStatus) (*Pipeline, *vectorstore.Memory) {
	store := vectorstore.NewMemory(emb, dim)
	return NewPipeline(loader, splitter.New(), emb, store, status, nil), store
}

func TestIngest_Completed(t *testing.T) {
	emb := &fakeEmbedder{}
	status := newFakeStatus()
	p, store := newPipeline(pagesLoader(
		pdfextract.Page{Number: 1, Text: longText(150)},
		pdfextract.Page{Number: 2, Text: "short second page"},
	), emb, status)

	res, err := p.Ingest(context.Background(), "/tmp/uploads/bio.pdf", 3, 10)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 3, res.Chunks)

	require.Len(t, status.calls[10], 1)
	assert.Equal(t, statusCall{status: StatusCompleted, chunks: 3}, status.calls[10][0])

	stats, err := store.DescribeStats(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.VectorCount)

	found, err := store.SimilaritySearch(context.Background(), "3", "anything", 10)
	require.NoError(t, err)
	for _, c := range found {
		assert.Equal(t, uint(3), c.Metadata.UserID)
		assert.Equal(t, uint(10), c.Metadata.DocumentID)
		assert.Equal(t, "bio.pdf", c.Metadata.Source)
		assert.Contains(t, []int{1, 2}, c.Metadata.PageNumber)
	}
}

func TestIngest_ReingestIsIdempotent(t *testing.T) {
	emb := &fakeEmbedder{}
	p, store := newPipeline(pagesLoader(pdfextract.Page{Number: 1, Text: longText(150)}), emb, newFakeStatus())

	for i := 0; i < 2; i++ {
		_, err := p.Ingest(context.Background(), "a.pdf", 1, 1)
		require.NoError(t, err)
	}
	stats, _ := store.DescribeStats(context.Background(), "1")
	assert.Equal(t, int64(2), stats.VectorCount)
}

func TestIngest_UnreadablePDF(t *testing.T) {
	emb := &fakeEmbedder{}
	status := newFakeStatus()
	loader := LoaderFunc(func(string) ([]pdfextract.Page, error) {
		return nil, fmt.Errorf("%w: invalid header", pdfextract.ErrUnreadable)
	})
	p, _ := newPipeline(loader, emb, status)

	res, err := p.Ingest(context.Background(), "x.pdf", 1, 2)
	assert.ErrorIs(t, err, ErrUnreadablePDF)
	assert.Equal(t, StatusError, res.Status)
	assert.Zero(t, emb.calls)

	require.Len(t, status.calls[2], 1)
	assert.Equal(t, StatusError, status.calls[2][0].status)
	assert.Contains(t, status.calls[2][0].reason, "unreadable pdf")
}

func TestIngest_EmbeddingFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	status := newFakeStatus()
	p, _ := newPipeline(pagesLoader(pdfextract.Page{Number: 1, Text: "some text"}), &fakeEmbedder{err: boom}, status)

	res, err := p.Ingest(context.Background(), "x.pdf", 1, 4)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusError, res.Status)
	require.Len(t, status.calls[4], 1)
	assert.Equal(t, StatusError, status.calls[4][0].status)
}

func TestIngest_NoText(t *testing.T) {
	status := newFakeStatus()
	p, _ := newPipeline(pagesLoader(), &fakeEmbedder{}, status)

	_, err := p.Ingest(context.Background(), "x.pdf", 1, 5)
	assert.ErrorIs(t, err, ErrNoText)
	require.Len(t, status.calls[5], 1)
	assert.Equal(t, StatusError, status.calls[5][0].status)
}

func TestHandleTask_InterruptedLeavesProcessing(t *testing.T) {
	status := newFakeStatus()
	emb := &fakeEmbedder{err: context.Canceled}
	p, _ := newPipeline(pagesLoader(pdfextract.Page{Number: 1, Text: "text"}), emb, status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.HandleTask(ctx, Task{DocumentID: 6, UserID: 1, FilePath: "/x/y.pdf"})
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, status.calls[6])
}

func TestHandleTask_DeadlineFromEmbedderStillFails(t *testing.T) {
	status := newFakeStatus()
	emb := &fakeEmbedder{err: context.DeadlineExceeded}
	p, _ := newPipeline(pagesLoader(pdfextract.Page{Number: 1, Text: "text"}), emb, status)

	err := p.HandleTask(context.Background(), Task{DocumentID: 8, UserID: 1, FilePath: "/x/y.pdf"})
	assert.NotErrorIs(t, err, ErrInterrupted)
	require.Len(t, status.calls[8], 1)
	assert.Equal(t, StatusError, status.calls[8][0].status)
}

func TestIngest_CompletionWriteFailureMarksError(t *testing.T) {
	status := newFakeStatus()
	status.completeErr = errors.New("deadlock")
	p, _ := newPipeline(pagesLoader(pdfextract.Page{Number: 1, Text: longText(50)}), &fakeEmbedder{}, status)

	res, err := p.Ingest(context.Background(), "x.pdf", 1, 9)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStatusNotRecorded)
	assert.Equal(t, StatusError, res.Status)
	require.Len(t, status.calls[9], 1)
	assert.Equal(t, StatusError, status.calls[9][0].status)
	assert.Contains(t, status.calls[9][0].reason, "deadlock")
}

func TestIngest_NoStatusWritableIsReported(t *testing.T) {
	status := newFakeStatus()
	status.completeErr = errors.New("db down")
	status.failErr = errors.New("db down")
	p, _ := newPipeline(pagesLoader(pdfextract.Page{Number: 1, Text: longText(50)}), &fakeEmbedder{}, status)

	_, err := p.Ingest(context.Background(), "x.pdf", 1, 10)
	assert.ErrorIs(t, err, ErrStatusNotRecorded)
	assert.Empty(t, status.calls[10])
}

func TestHandleTask_Invalid(t *testing.T) {
	status := newFakeStatus()
	p, _ := newPipeline(pagesLoader(), &fakeEmbedder{}, status)
	assert.ErrorIs(t, p.HandleTask(context.Background(), Task{UserID: 1}), ErrInvalidTask)
	assert.Empty(t, status.calls)
}
