package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"studybot/internal/ai"
	"studybot/internal/metrics"
)

const (
	serviceName = "vectorstore"

	fieldID         = "id"
	fieldVector     = "vector"
	fieldNamespace  = "namespace"
	fieldDocumentID = "document_id"
	fieldChunkIndex = "chunk_index"
	fieldPage       = "page"
	fieldSource     = "source"
	fieldText       = "text"
	fieldTimestamp  = "timestamp"

	maxTextBytes   = 8192
	maxSourceBytes = 512
)

var outputFields = []string{
	fieldID, fieldNamespace, fieldDocumentID, fieldChunkIndex,
	fieldPage, fieldSource, fieldText, fieldTimestamp,
}

type MilvusConfig struct {
	Collection   string
	Dimension    int
	Timeout      time.Duration
	PollInterval time.Duration
	ReadyTimeout time.Duration
}

// Milvus stores chunks in a single collection; the namespace is a scalar field
// every query filters on.
type Milvus struct {
	client   client.Client
	embedder Embedder
	cfg      MilvusConfig
	logger   *zap.Logger

	initMu sync.Mutex
	ready  bool
}

func NewMilvus(c client.Client, embedder Embedder, cfg MilvusConfig, logger *zap.Logger) *Milvus {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Milvus{client: c, embedder: embedder, cfg: cfg, logger: logger}
}

// EnsureReady creates the collection and its cosine index if missing and waits
// for it to load. It does the work once per process; later calls return at once.
func (m *Milvus) EnsureReady(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	if m.ready {
		return nil
	}

	start := time.Now()
	err := m.createIfMissing(ctx)
	if err == nil {
		err = m.waitLoaded(ctx)
	}
	metrics.ObserveExternalCall(serviceName, "ensure_ready", time.Since(start), err)
	if err != nil {
		return ai.Classify(serviceName, err)
	}

	m.ready = true
	m.logger.Info("vector index ready",
		zap.String("collection", m.cfg.Collection),
		zap.Int("dimension", m.cfg.Dimension),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (m *Milvus) createIfMissing(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.cfg.Collection)
	if err != nil {
		return fmt.Errorf("check collection failed: %w", err)
	}
	if has {
		return nil
	}

	m.logger.Info("creating vector collection", zap.String("collection", m.cfg.Collection))
	if err := m.client.CreateCollection(ctx, m.schema(), entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("create collection failed: %w", err)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, 16, 200)
	if err != nil {
		return fmt.Errorf("build index params failed: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.cfg.Collection, fieldVector, idx, false); err != nil {
		return fmt.Errorf("create index failed: %w", err)
	}
	return nil
}

func (m *Milvus) waitLoaded(ctx context.Context) error {
	if err := m.client.LoadCollection(ctx, m.cfg.Collection, true); err != nil {
		return fmt.Errorf("load collection failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ReadyTimeout)
	defer cancel()
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		state, err := m.client.GetLoadState(ctx, m.cfg.Collection, nil)
		if err != nil {
			return fmt.Errorf("get load state failed: %w", err)
		}
		if state == entity.LoadStateLoaded {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for collection load: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (m *Milvus) schema() *entity.Schema {
	varchar := func(name string, maxLen int) *entity.Field {
		return &entity.Field{
			Name:       name,
			DataType:   entity.FieldTypeVarChar,
			TypeParams: map[string]string{"max_length": strconv.Itoa(maxLen)},
		}
	}
	id := varchar(fieldID, 64)
	id.PrimaryKey = true

	return &entity.Schema{
		CollectionName: m.cfg.Collection,
		Description:    "studybot document chunks",
		Fields: []*entity.Field{
			id,
			{
				Name:       fieldVector,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(m.cfg.Dimension)},
			},
			varchar(fieldNamespace, 64),
			{Name: fieldDocumentID, DataType: entity.FieldTypeInt64},
			{Name: fieldChunkIndex, DataType: entity.FieldTypeInt64},
			{Name: fieldPage, DataType: entity.FieldTypeInt64},
			varchar(fieldSource, maxSourceBytes),
			varchar(fieldText, maxTextBytes),
			{Name: fieldTimestamp, DataType: entity.FieldTypeInt64},
		},
	}
}

func (m *Milvus) Upsert(ctx context.Context, namespace string, chunks []Chunk) (int, error) {
	if err := checkNamespace(namespace); err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := checkVectors(chunks, m.cfg.Dimension); err != nil {
		return 0, err
	}
	if err := m.EnsureReady(ctx); err != nil {
		return 0, err
	}

	cols := buildColumns(namespace, m.cfg.Dimension, withIDs(namespace, chunks))
	err := m.call(ctx, "upsert", func(ctx context.Context) error {
		_, err := m.client.Upsert(ctx, m.cfg.Collection, "", cols...)
		return err
	})
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (m *Milvus) SimilaritySearch(ctx context.Context, namespace, query string, k int) ([]Chunk, error) {
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
	if len(vec) != m.cfg.Dimension {
		return nil, ErrDimensionMismatch
	}
	if err := m.EnsureReady(ctx); err != nil {
		return nil, err
	}

	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, fmt.Errorf("build search params failed: %w", err)
	}

	var results []client.SearchResult
	err = m.call(ctx, "search", func(ctx context.Context) error {
		var err error
		results, err = m.client.Search(
			ctx,
			m.cfg.Collection,
			nil,
			namespaceExpr(namespace),
			outputFields,
			[]entity.Vector{entity.FloatVector(vec)},
			fieldVector,
			entity.COSINE,
			k,
			sp,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return decodeResults(results)
}

func (m *Milvus) DescribeStats(ctx context.Context, namespace string) (Stats, error) {
	if err := checkNamespace(namespace); err != nil {
		return Stats{}, err
	}
	if err := m.EnsureReady(ctx); err != nil {
		return Stats{}, err
	}

	var rs client.ResultSet
	err := m.call(ctx, "stats", func(ctx context.Context) error {
		var err error
		rs, err = m.client.Query(ctx, m.cfg.Collection, nil, namespaceExpr(namespace), []string{"count(*)"})
		return err
	})
	if err != nil {
		return Stats{}, err
	}

	col := rs.GetColumn("count(*)")
	if col == nil || col.Len() == 0 {
		return Stats{}, nil
	}
	v, err := col.Get(0)
	if err != nil {
		return Stats{}, fmt.Errorf("read count failed: %w", err)
	}
	n, _ := v.(int64)
	return Stats{VectorCount: n}, nil
}

func (m *Milvus) DeleteAll(ctx context.Context, namespace string) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	if err := m.EnsureReady(ctx); err != nil {
		return err
	}
	return m.call(ctx, "delete_all", func(ctx context.Context) error {
		return m.client.Delete(ctx, m.cfg.Collection, "", namespaceExpr(namespace))
	})
}

func (m *Milvus) DeleteDocument(ctx context.Context, namespace string, documentID uint) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	if err := m.EnsureReady(ctx); err != nil {
		return err
	}
	expr := fmt.Sprintf("%s && %s == %d", namespaceExpr(namespace), fieldDocumentID, documentID)
	return m.call(ctx, "delete_document", func(ctx context.Context) error {
		return m.client.Delete(ctx, m.cfg.Collection, "", expr)
	})
}

func (m *Milvus) Close() error {
	return m.client.Close()
}

func (m *Milvus) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil {
		err = ai.Classify(serviceName, fmt.Errorf("%s failed: %w", op, err))
	}
	metrics.ObserveExternalCall(serviceName, op, time.Since(start), err)
	return err
}

func namespaceExpr(namespace string) string {
	return fmt.Sprintf("%s == %s", fieldNamespace, strconv.Quote(namespace))
}

func buildColumns(namespace string, dim int, chunks []Chunk) []entity.Column {
	n := len(chunks)
	var (
		ids        = make([]string, n)
		vectors    = make([][]float32, n)
		namespaces = make([]string, n)
		docIDs     = make([]int64, n)
		indexes    = make([]int64, n)
		pages      = make([]int64, n)
		sources    = make([]string, n)
		texts      = make([]string, n)
		timestamps = make([]int64, n)
	)
	for i, c := range chunks {
		ids[i] = c.ID
		vectors[i] = c.Vector
		namespaces[i] = namespace
		docIDs[i] = int64(c.Metadata.DocumentID)
		indexes[i] = int64(c.Metadata.ChunkIndex)
		pages[i] = int64(c.Metadata.PageNumber)
		sources[i] = truncateBytes(c.Metadata.Source, maxSourceBytes)
		texts[i] = truncateBytes(c.Text, maxTextBytes)
		timestamps[i] = c.Metadata.Timestamp.UnixMilli()
	}
	return []entity.Column{
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldVector, dim, vectors),
		entity.NewColumnVarChar(fieldNamespace, namespaces),
		entity.NewColumnInt64(fieldDocumentID, docIDs),
		entity.NewColumnInt64(fieldChunkIndex, indexes),
		entity.NewColumnInt64(fieldPage, pages),
		entity.NewColumnVarChar(fieldSource, sources),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnInt64(fieldTimestamp, timestamps),
	}
}

func decodeResults(results []client.SearchResult) ([]Chunk, error) {
	var out []Chunk
	for _, sr := range results {
		if sr.Err != nil {
			return nil, ai.Classify(serviceName, sr.Err)
		}
		for i := 0; i < sr.ResultCount; i++ {
			var c Chunk
			var err error
			if c.ID, err = stringAt(sr.Fields, fieldID, i); err != nil {
				return nil, err
			}
			if c.Text, err = stringAt(sr.Fields, fieldText, i); err != nil {
				return nil, err
			}
			ns, err := stringAt(sr.Fields, fieldNamespace, i)
			if err != nil {
				return nil, err
			}
			userID, _ := strconv.ParseUint(ns, 10, 64)
			c.Metadata.UserID = uint(userID)
			if c.Metadata.Source, err = stringAt(sr.Fields, fieldSource, i); err != nil {
				return nil, err
			}
			docID, err := int64At(sr.Fields, fieldDocumentID, i)
			if err != nil {
				return nil, err
			}
			c.Metadata.DocumentID = uint(docID)
			idx, err := int64At(sr.Fields, fieldChunkIndex, i)
			if err != nil {
				return nil, err
			}
			c.Metadata.ChunkIndex = int(idx)
			page, err := int64At(sr.Fields, fieldPage, i)
			if err != nil {
				return nil, err
			}
			c.Metadata.PageNumber = int(page)
			ts, err := int64At(sr.Fields, fieldTimestamp, i)
			if err != nil {
				return nil, err
			}
			c.Metadata.Timestamp = time.UnixMilli(ts)
			if i < len(sr.Scores) {
				c.Score = sr.Scores[i]
			}
			out = append(out, c)
		}
	}
	return out, nil
}

func stringAt(rs client.ResultSet, field string, i int) (string, error) {
	col := rs.GetColumn(field)
	if col == nil {
		return "", fmt.Errorf("search result missing field %q", field)
	}
	v, err := col.Get(i)
	if err != nil {
		return "", fmt.Errorf("read field %q failed: %w", field, err)
	}
	s, _ := v.(string)
	return s, nil
}

func int64At(rs client.ResultSet, field string, i int) (int64, error) {
	col := rs.GetColumn(field)
	if col == nil {
		return 0, fmt.Errorf("search result missing field %q", field)
	}
	v, err := col.Get(i)
	if err != nil {
		return 0, fmt.Errorf("read field %q failed: %w", field, err)
	}
	n, _ := v.(int64)
	return n, nil
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
