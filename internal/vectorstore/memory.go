package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process index used in development and tests.
type Memory struct {
	embedder Embedder
	dim      int

	mu     sync.RWMutex
	spaces map[string]map[string]Chunk
}

func NewMemory(embedder Embedder, dim int) *Memory {
	return &Memory{
		embedder: embedder,
		dim:      dim,
		spaces:   make(map[string]map[string]Chunk),
	}
}

func (m *Memory) Upsert(ctx context.Context, namespace string, chunks []Chunk) (int, error) {
	if err := checkNamespace(namespace); err != nil {
		return 0, err
	}
	if err := checkVectors(chunks, m.dim); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	chunks = withIDs(namespace, chunks)

	m.mu.Lock()
	defer m.mu.Unlock()
	space, ok := m.spaces[namespace]
	if !ok {
		space = make(map[string]Chunk)
		m.spaces[namespace] = space
	}
	for _, c := range chunks {
		c.Vector = append([]float32(nil), c.Vector...)
		c.Score = 0
		space[c.ID] = c
	}
	return len(chunks), nil
}

func (m *Memory) SimilaritySearch(ctx context.Context, namespace, query string, k int) ([]Chunk, error) {
	if err := checkNamespace(namespace); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vec) != m.dim {
		return nil, ErrDimensionMismatch
	}

	m.mu.RLock()
	results := make([]Chunk, 0, len(m.spaces[namespace]))
	for _, c := range m.spaces[namespace] {
		c.Score = cosine(vec, c.Vector)
		results = append(results, c)
	}
	m.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Metadata.DocumentID != results[j].Metadata.DocumentID {
			return results[i].Metadata.DocumentID < results[j].Metadata.DocumentID
		}
		return results[i].Metadata.ChunkIndex < results[j].Metadata.ChunkIndex
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *Memory) DescribeStats(_ context.Context, namespace string) (Stats, error) {
	if err := checkNamespace(namespace); err != nil {
		return Stats{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{VectorCount: int64(len(m.spaces[namespace]))}, nil
}

func (m *Memory) DeleteAll(_ context.Context, namespace string) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.spaces, namespace)
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeleteDocument(_ context.Context, namespace string, documentID uint) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.spaces[namespace] {
		if c.Metadata.DocumentID == documentID {
			delete(m.spaces[namespace], id)
		}
	}
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
