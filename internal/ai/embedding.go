package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"studybot/internal/pkg/retry"
)

const embeddingService = "embedding"

// EmbeddingConfig holds settings for an OpenAI-compatible embeddings endpoint.
type EmbeddingConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	Dimension         int
	BatchSize         int
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             retry.Config
	HTTPClient        *http.Client
}

// EmbeddingClient turns text into fixed-length vectors.
type EmbeddingClient struct {
	client    *openai.Client
	model     string
	dim       int
	batchSize int
	guard     *guard
}

func NewEmbeddingClient(cfg EmbeddingConfig, logger *zap.Logger) *EmbeddingClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	return &EmbeddingClient{
		client:    openai.NewClientWithConfig(oc),
		model:     cfg.Model,
		dim:       cfg.Dimension,
		batchSize: cfg.BatchSize,
		guard:     newGuard(embeddingService, cfg.Timeout, cfg.RequestsPerSecond, cfg.Retry, logger),
	}
}

func (c *EmbeddingClient) Dimensions() int {
	return c.dim
}

// Embed returns the vector for a single text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	vectors, err := c.create(ctx, "embed", []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input, in input order. Inputs are sent in
// groups of at most BatchSize texts.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyInput)
		}
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := c.create(ctx, "embed_batch", texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *EmbeddingClient) create(ctx context.Context, op string, inputs []string) ([][]float32, error) {
	var vectors [][]float32
	err := c.guard.do(ctx, op, func(ctx context.Context) error {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: inputs,
			Model: openai.EmbeddingModel(c.model),
		})
		if err != nil {
			return err
		}
		vectors, err = c.collect(resp, len(inputs))
		return err
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (c *EmbeddingClient) collect(resp openai.EmbeddingResponse, want int) ([][]float32, error) {
	if len(resp.Data) != want {
		return nil, NewServiceError(embeddingService, KindUnknown,
			fmt.Errorf("%w: got %d embeddings for %d inputs", ErrMalformedResponse, len(resp.Data), want))
	}
	vectors := make([][]float32, want)
	for i, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= want || vectors[idx] != nil {
			idx = i
		}
		if c.dim > 0 && len(item.Embedding) != c.dim {
			return nil, NewServiceError(embeddingService, KindUnknown,
				fmt.Errorf("%w: embedding has %d dimensions, want %d", ErrMalformedResponse, len(item.Embedding), c.dim))
		}
		vectors[idx] = item.Embedding
	}
	return vectors, nil
}
