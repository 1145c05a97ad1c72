// Package query answers questions from a user's indexed documents.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"studybot/internal/metrics"
	"studybot/internal/vectorstore"
)

const (
	DefaultTopK = 5

	// NoResultsAnswer is returned when the user's namespace has nothing relevant.
	NoResultsAnswer = "I couldn't find any relevant information in your uploaded documents to answer this question. " +
		"Please make sure you have uploaded documents that contain information related to your query."

	excerptRunes = 200
)

var ErrInvalidQuery = errors.New("query must not be empty")

const promptTemplate = `You are StudyBot, an AI assistant specialized in helping students learn from their uploaded documents.
Use the provided context to answer the question accurately and comprehensively.

Context:
{context}

Question: {question}

Instructions:
- Answer based primarily on the provided context
- If the context doesn't contain relevant information, say so politely
- Provide clear, well-structured responses
- Use examples from the context when helpful
- If asked about topics not in the context, acknowledge the limitation

Answer:`

// LLM is a prompt-in, text-out model.
type LLM interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

type Searcher interface {
	SimilaritySearch(ctx context.Context, namespace, query string, k int) ([]vectorstore.Chunk, error)
}

type RelevantDoc struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
	DocumentID uint   `json:"document_id"`
}

type Result struct {
	Answer         string        `json:"answer"`
	SourceCount    int           `json:"source_count"`
	RelevantDocs   []RelevantDoc `json:"relevant_docs"`
	ProcessingTime time.Duration `json:"-"`
}

type Engine struct {
	search Searcher
	llm    LLM
	topK   int
	logger *zap.Logger
}

func NewEngine(search Searcher, llm LLM, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{search: search, llm: llm, topK: DefaultTopK, logger: logger}
}

// Answer retrieves the closest chunks from the user's namespace and asks the
// model to answer from them. Finding nothing is not an error.
func (e *Engine) Answer(ctx context.Context, query string, userID uint) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}
	start := time.Now()
	defer func() { metrics.QueryDuration.Observe(time.Since(start).Seconds()) }()

	chunks, err := e.search.SimilaritySearch(ctx, vectorstore.Namespace(userID), query, e.topK)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("search documents: %w", err)
	}
	if len(chunks) == 0 {
		metrics.QueryTotal.WithLabelValues("no_results").Inc()
		return &Result{
			Answer:         NoResultsAnswer,
			RelevantDocs:   []RelevantDoc{},
			ProcessingTime: time.Since(start),
		}, nil
	}

	block := BuildContext(chunks)
	prompt := RenderPrompt(block, query)
	e.logger.Debug("rendered query prompt",
		zap.Uint("user_id", userID),
		zap.Int("sources", len(chunks)),
		zap.Int("context_len", len(block)),
	)

	answer, err := e.llm.Invoke(ctx, prompt)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	docs := make([]RelevantDoc, len(chunks))
	for i, c := range chunks {
		docs[i] = RelevantDoc{
			Content:    truncateRunes(c.Text, excerptRunes) + "...",
			Source:     c.Metadata.Source,
			ChunkIndex: c.Metadata.ChunkIndex,
			DocumentID: c.Metadata.DocumentID,
		}
	}
	metrics.QueryTotal.WithLabelValues("answered").Inc()
	return &Result{
		Answer:         answer,
		SourceCount:    len(docs),
		RelevantDocs:   docs,
		ProcessingTime: time.Since(start),
	}, nil
}

// BuildContext labels each chunk "[Document N]" and joins them with blank lines.
func BuildContext(chunks []vectorstore.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[Document %d]\n%s", i+1, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

func RenderPrompt(context, question string) string {
	return strings.NewReplacer("{context}", context, "{question}", question).Replace(promptTemplate)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
