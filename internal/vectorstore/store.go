// Package vectorstore keeps chunk vectors in a similarity index partitioned by
// namespace. Every user owns exactly one namespace and no operation crosses it.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNamespaceRequired = errors.New("namespace is required")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrNotReady          = errors.New("vector index is not ready")
)

type Metadata struct {
	UserID     uint      `json:"user_id"`
	DocumentID uint      `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	PageNumber int       `json:"page_number"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
}

// Chunk is the unit stored in and returned from the index. Score is only set
// on search results.
type Chunk struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata Metadata
	Score    float32
}

type Stats struct {
	VectorCount int64 `json:"vector_count"`
}

// Embedder is the part of the embedding client the store needs to turn a
// query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Store interface {
	Upsert(ctx context.Context, namespace string, chunks []Chunk) (int, error)
	SimilaritySearch(ctx context.Context, namespace, query string, k int) ([]Chunk, error)
	DescribeStats(ctx context.Context, namespace string) (Stats, error)
	DeleteAll(ctx context.Context, namespace string) error
	DeleteDocument(ctx context.Context, namespace string, documentID uint) error
}

// Namespace returns the namespace owned by a user.
func Namespace(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

// ChunkID is stable for a given namespace, document and position, so writing
// the same chunk twice replaces it.
func ChunkID(namespace string, documentID uint, chunkIndex int) string {
	name := fmt.Sprintf("%s/%d/%d", namespace, documentID, chunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func checkNamespace(namespace string) error {
	if strings.TrimSpace(namespace) == "" {
		return ErrNamespaceRequired
	}
	return nil
}

func checkVectors(chunks []Chunk, dim int) error {
	for i := range chunks {
		if len(chunks[i].Vector) != dim {
			return fmt.Errorf("chunk %d has %d dimensions, want %d: %w",
				i, len(chunks[i].Vector), dim, ErrDimensionMismatch)
		}
	}
	return nil
}

// withIDs fills in missing chunk ids.
func withIDs(namespace string, chunks []Chunk) []Chunk {
	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		if c.ID == "" {
			c.ID = ChunkID(namespace, c.Metadata.DocumentID, c.Metadata.ChunkIndex)
		}
		out[i] = c
	}
	return out
}
