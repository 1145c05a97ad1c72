package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"studybot/internal/metrics"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CachedEmbedder memoizes query embeddings in redis. Cache failures are
// logged and fall through to the wrapped embedder.
type CachedEmbedder struct {
	next   Embedder
	client redisv9.Cmdable
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedEmbedder(next Embedder, client redisv9.Cmdable, model string, ttl time.Duration, logger *zap.Logger) *CachedEmbedder {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{next: next, client: client, model: model, ttl: ttl, logger: logger}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float32
		if jsonErr := json.Unmarshal(raw, &vec); jsonErr == nil && len(vec) > 0 {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			return vec, nil
		}
		c.logger.Warn("discarding corrupt cached embedding", zap.String("key", key))
	case errors.Is(err, redisv9.Nil):
	default:
		c.logger.Warn("embedding cache read failed", zap.Error(err))
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(vec)
	if err != nil {
		return vec, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(text)))
	return fmt.Sprintf("embedding:%s:%s", c.model, hex.EncodeToString(sum[:]))
}
