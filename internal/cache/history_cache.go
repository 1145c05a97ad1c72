package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"studybot/internal/metrics"
	"studybot/internal/model"
	"studybot/internal/repository"
)

// HistoryCache keeps short-lived copies of a chat's history pages. Every page
// window of a chat lives in one hash so a write drops them together, and a
// dirty marker sends readers to the database until queued messages land.
type HistoryCache struct {
	client         redisv9.Cmdable
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

type historyEntry struct {
	Messages []model.Message `json:"messages"`
	Total    int64           `json:"total"`
}

func NewHistoryCache(client redisv9.Cmdable, historyTTL, dirtyMarkerTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &HistoryCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

// Lookup returns the cached page. A dirty chat is reported as a miss.
func (c *HistoryCache) Lookup(ctx context.Context, chatID uint, page repository.Page) ([]model.Message, int64, bool, error) {
	var (
		dirty *redisv9.IntCmd
		raw   *redisv9.StringCmd
	)
	_, err := c.client.Pipelined(ctx, func(p redisv9.Pipeliner) error {
		dirty = p.Exists(ctx, c.dirtyKey(chatID))
		raw = p.HGet(ctx, c.historyKey(chatID), pageField(page))
		return nil
	})
	if err != nil && !errors.Is(err, redisv9.Nil) {
		return nil, 0, false, fmt.Errorf("redis lookup history failed: %w", err)
	}
	if dirty.Val() > 0 || errors.Is(raw.Err(), redisv9.Nil) {
		metrics.CacheMisses.WithLabelValues("history").Inc()
		return nil, 0, false, nil
	}

	var entry historyEntry
	if err := json.Unmarshal([]byte(raw.Val()), &entry); err != nil {
		return nil, 0, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	metrics.CacheHits.WithLabelValues("history").Inc()
	return entry.Messages, entry.Total, true, nil
}

// Store caches one page unless the chat turned dirty while it was read.
func (c *HistoryCache) Store(ctx context.Context, chatID uint, page repository.Page, messages []model.Message, total int64) error {
	dirty, err := c.client.Exists(ctx, c.dirtyKey(chatID)).Result()
	if err != nil {
		return fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	if dirty > 0 {
		return nil
	}

	payload, err := json.Marshal(historyEntry{Messages: messages, Total: total})
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	key := c.historyKey(chatID)
	_, err = c.client.TxPipelined(ctx, func(p redisv9.Pipeliner) error {
		p.HSet(ctx, key, pageField(page), payload)
		p.Expire(ctx, key, c.historyTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached copy and marks the chat dirty in one round trip.
func (c *HistoryCache) Invalidate(ctx context.Context, chatID uint) error {
	_, err := c.client.TxPipelined(ctx, func(p redisv9.Pipeliner) error {
		p.Set(ctx, c.dirtyKey(chatID), "1", c.dirtyMarkerTTL)
		p.Del(ctx, c.historyKey(chatID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) Delete(ctx context.Context, chatID uint) error {
	if err := c.client.Del(ctx, c.historyKey(chatID), c.dirtyKey(chatID)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) historyKey(chatID uint) string {
	return fmt.Sprintf("chat:history:%d", chatID)
}

func pageField(page repository.Page) string {
	page = page.Normalize()
	return fmt.Sprintf("%d:%d", page.Number, page.Size)
}

func (c *HistoryCache) dirtyKey(chatID uint) string {
	return fmt.Sprintf("chat:history:dirty:%d", chatID)
}
