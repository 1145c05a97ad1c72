// Package flashcard drafts study cards from a user's indexed documents.
package flashcard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"studybot/internal/metrics"
	"studybot/internal/vectorstore"
)

const (
	DefaultMaxCards   = 8
	DefaultDifficulty = "mixed"
	DifficultyEasy    = "easy"
	DifficultyMedium  = "medium"
	DifficultyHard    = "hard"
	DefaultTag        = "general"

	probeK          = 3
	minUniqueChunks = 5
	confidenceScore = 0.8
	probeParallel   = 3
)

var DefaultProbes = []string{
	"definition concept explanation",
	"important key main",
	"process method approach",
	"example case study",
	"theory principle rule",
}

var ErrNoContent = errors.New("no document content found for flashcard generation")

type LLM interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

type Searcher interface {
	SimilaritySearch(ctx context.Context, namespace, query string, k int) ([]vectorstore.Chunk, error)
}

type Options struct {
	MaxCards    int      `json:"max_cards"`
	Difficulty  string   `json:"difficulty"`
	FocusTopics []string `json:"focus_topics"`
}

type DraftMetadata struct {
	ChunkIndex      int     `json:"chunk_index"`
	ConfidenceScore float64 `json:"confidence_score"`
	PageNumber      int     `json:"page_number"`
}

type Draft struct {
	Question      string        `json:"question"`
	Answer        string        `json:"answer"`
	Difficulty    string        `json:"difficulty"`
	Tags          []string      `json:"tags"`
	SourceExcerpt string        `json:"source_chunk"`
	Metadata      DraftMetadata `json:"metadata"`
}

type Engine struct {
	search Searcher
	llm    LLM
	chain  Chain
	logger *zap.Logger
}

func NewEngine(search Searcher, llm LLM, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{search: search, llm: llm, chain: DefaultChain(), logger: logger}
}

// Generate drafts up to opts.MaxCards cards. Probe failures are logged and
// skipped; only an empty probe result is fatal.
func (e *Engine) Generate(ctx context.Context, documentID, userID uint, opts Options) ([]Draft, error) {
	opts = opts.withDefaults()
	log := e.logger.With(zap.Uint("document_id", documentID), zap.Uint("user_id", userID))
	start := time.Now()

	chunks := e.probe(ctx, vectorstore.Namespace(userID), opts, log)
	if len(chunks) == 0 {
		return nil, ErrNoContent
	}

	raw, err := e.llm.Invoke(ctx, RenderPrompt(BuildContent(chunks)))
	if err != nil {
		return nil, fmt.Errorf("generate flashcards: %w", err)
	}

	cards, stage := e.chain.Extract(raw, chunks)
	drafts := finalize(cards, chunks, opts.MaxCards)

	metrics.ExtractionStage.WithLabelValues(stage).Inc()
	metrics.FlashcardsGenerated.Add(float64(len(drafts)))
	log.Info("flashcards drafted",
		zap.String("stage", stage),
		zap.Int("chunks", len(chunks)),
		zap.Int("cards", len(drafts)),
		zap.String("difficulty", opts.Difficulty),
		zap.Duration("elapsed", time.Since(start)),
	)
	return drafts, nil
}

// probe runs the topic queries concurrently and merges their hits in query
// order, dropping repeated texts.
func (e *Engine) probe(ctx context.Context, ns string, opts Options, log *zap.Logger) []vectorstore.Chunk {
	queries := opts.FocusTopics
	if len(queries) == 0 {
		queries = DefaultProbes
	}

	results := make([][]vectorstore.Chunk, len(queries))
	var g errgroup.Group
	g.SetLimit(probeParallel)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			found, err := e.search.SimilaritySearch(ctx, ns, q, probeK)
			if err != nil {
				log.Warn("flashcard probe failed", zap.String("query", q), zap.Error(err))
				return nil
			}
			results[i] = found
			return nil
		})
	}
	_ = g.Wait()

	limit := (opts.MaxCards + 1) / 2
	if limit < minUniqueChunks {
		limit = minUniqueChunks
	}

	seen := make(map[string]struct{})
	var unique []vectorstore.Chunk
	for _, found := range results {
		for _, c := range found {
			if _, dup := seen[c.Text]; dup {
				continue
			}
			seen[c.Text] = struct{}{}
			unique = append(unique, c)
		}
	}
	if len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}

func finalize(cards []Card, chunks []vectorstore.Chunk, maxCards int) []Draft {
	drafts := make([]Draft, 0, len(cards))
	for _, c := range cards {
		q := strings.TrimSpace(c.Question)
		a := strings.TrimSpace(c.Answer)
		if q == "" || a == "" {
			continue
		}
		if len(drafts) == maxCards {
			break
		}

		i := len(drafts)
		src := chunks[i%len(chunks)]

		difficulty := strings.TrimSpace(c.Difficulty)
		if difficulty == "" {
			difficulty = DifficultyMedium
		}
		tags := trimTags(c.Tags)
		if len(tags) == 0 {
			tags = []string{DefaultTag}
		}
		excerpt := strings.TrimSpace(c.SourceChunk)
		if excerpt == "" {
			excerpt = truncateRunes(src.Text, excerptRunes)
		}
		page := src.Metadata.PageNumber
		if page <= 0 {
			page = 1
		}

		drafts = append(drafts, Draft{
			Question:      q,
			Answer:        a,
			Difficulty:    difficulty,
			Tags:          tags,
			SourceExcerpt: excerpt,
			Metadata: DraftMetadata{
				ChunkIndex:      i % len(chunks),
				ConfidenceScore: confidenceScore,
				PageNumber:      page,
			},
		})
	}
	return drafts
}

func trimTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (o Options) withDefaults() Options {
	if o.MaxCards <= 0 {
		o.MaxCards = DefaultMaxCards
	}
	if strings.TrimSpace(o.Difficulty) == "" {
		o.Difficulty = DefaultDifficulty
	}
	topics := make([]string, 0, len(o.FocusTopics))
	for _, t := range o.FocusTopics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	o.FocusTopics = topics
	return o
}
