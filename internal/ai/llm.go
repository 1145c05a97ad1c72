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

const llmService = "llm"

type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	Retry       retry.Config
	HTTPClient  *http.Client
}

// LLMClient sends a single prompt to a chat completion endpoint.
type LLMClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	guard       *guard
}

func NewLLMClient(cfg LLMConfig, logger *zap.Logger) *LLMClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	return &LLMClient{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		guard:       newGuard(llmService, cfg.Timeout, 0, cfg.Retry, logger),
	}
}

// Invoke returns the model's text reply to prompt.
func (c *LLMClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyInput
	}

	var answer string
	err := c.guard.do(ctx, "invoke", func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return NewServiceError(llmService, KindUnknown, fmt.Errorf("%w: no choices", ErrMalformedResponse))
		}
		answer = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}
