package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybot/internal/pkg/retry"
)

type embeddingReq struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func vector(dim int, v float32) []float32 {
	out := make([]float32, dim)
	for i := range out {
		out[i] = v
	}
	return out
}

func embeddingServer(t *testing.T, dim int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		require.Equal(t, "/v1/embeddings", r.URL.Path)

		var req embeddingReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, 0, len(req.Input))
		// reply in reverse order to exercise index mapping
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": vector(dim, float32(len(req.Input[i]))),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
		})
	}))
}

func statusServer(status int, body string, calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func fastRetry(attempts int) retry.Config {
	return retry.Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestEmbeddingClient_EmbedBatchKeepsOrder(t *testing.T) {
	var calls int32
	srv := embeddingServer(t, 4, &calls)
	defer srv.Close()

	c := NewEmbeddingClient(EmbeddingConfig{
		BaseURL:   srv.URL + "/v1",
		APIKey:    "k",
		Model:     "m",
		Dimension: 4,
		BatchSize: 2,
		Retry:     fastRetry(1),
	}, nil)

	out, err := c.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, float32(1), out[0][0])
	assert.Equal(t, float32(2), out[1][0])
	assert.Equal(t, float32(3), out[2][0])
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 4, c.Dimensions())
}

func TestEmbeddingClient_EmptyInputMakesNoCall(t *testing.T) {
	var calls int32
	srv := embeddingServer(t, 4, &calls)
	defer srv.Close()

	c := NewEmbeddingClient(EmbeddingConfig{BaseURL: srv.URL + "/v1", Dimension: 4}, nil)

	_, err := c.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = c.EmbedBatch(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestEmbeddingClient_DimensionMismatch(t *testing.T) {
	var calls int32
	srv := embeddingServer(t, 3, &calls)
	defer srv.Close()

	c := NewEmbeddingClient(EmbeddingConfig{BaseURL: srv.URL + "/v1", Dimension: 768, Retry: fastRetry(3)}, nil)

	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "malformed responses are not retried")
}

func TestEmbeddingClient_AuthFailure(t *testing.T) {
	var calls int32
	srv := statusServer(http.StatusUnauthorized,
		`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, &calls)
	defer srv.Close()

	c := NewEmbeddingClient(EmbeddingConfig{BaseURL: srv.URL + "/v1", Dimension: 4, Retry: fastRetry(3)}, nil)

	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, KindAuth, KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEmbeddingClient_RetriesUnavailable(t *testing.T) {
	var calls int32
	srv := statusServer(http.StatusServiceUnavailable,
		`{"error":{"message":"overloaded","type":"server_error"}}`, &calls)
	defer srv.Close()

	c := NewEmbeddingClient(EmbeddingConfig{BaseURL: srv.URL + "/v1", Dimension: 4, Retry: fastRetry(3)}, nil)

	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestLLMClient_Invoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			MaxTokens int `json:"max_tokens"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, 1024, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "x",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "echo: " + req.Messages[0].Content},
			}},
		})
	}))
	defer srv.Close()

	c := NewLLMClient(LLMConfig{BaseURL: srv.URL + "/v1", Model: "m", Temperature: 0.7, MaxTokens: 1024}, nil)
	out, err := c.Invoke(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out)
}

func TestLLMClient_QuotaExceeded(t *testing.T) {
	var calls int32
	srv := statusServer(http.StatusTooManyRequests,
		`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`, &calls)
	defer srv.Close()

	c := NewLLMClient(LLMConfig{BaseURL: srv.URL + "/v1", Retry: fastRetry(3)}, nil)
	_, err := c.Invoke(context.Background(), "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.False(t, IsTransient(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, KindUnavailable},
		{"rate limit message", errors.New("Rate limit reached for requests"), KindRateLimited},
		{"api key message", errors.New("invalid API key"), KindAuth},
		{"unknown", errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify("svc", tt.err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.Nil(t, Classify("svc", nil))
}
