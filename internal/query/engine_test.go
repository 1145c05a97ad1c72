package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybot/internal/ai"
	"studybot/internal/vectorstore"
)

type fakeSearcher struct {
	chunks     []vectorstore.Chunk
	err        error
	calls      int
	namespaces []string
	k          int
}

func (f *fakeSearcher) SimilaritySearch(_ context.Context, ns, _ string, k int) ([]vectorstore.Chunk, error) {
	f.calls++
	f.namespaces = append(f.namespaces, ns)
	f.k = k
	return f.chunks, f.err
}

type fakeLLM struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (f *fakeLLM) Invoke(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func TestAnswer_EmptyQueryMakesNoCalls(t *testing.T) {
	s, llm := &fakeSearcher{}, &fakeLLM{}
	e := NewEngine(s, llm, nil)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := e.Answer(context.Background(), q, 1)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	}
	assert.Zero(t, s.calls)
	assert.Zero(t, llm.calls)
}

func TestAnswer_NoResults(t *testing.T) {
	s, llm := &fakeSearcher{}, &fakeLLM{}
	e := NewEngine(s, llm, nil)

	res, err := e.Answer(context.Background(), "photosynthesis", 7)
	require.NoError(t, err)
	assert.Equal(t, NoResultsAnswer, res.Answer)
	assert.Zero(t, res.SourceCount)
	assert.Empty(t, res.RelevantDocs)
	assert.Zero(t, llm.calls)
	assert.Equal(t, []string{"7"}, s.namespaces)
}

func TestAnswer_BuildsGroundedPrompt(t *testing.T) {
	long := strings.Repeat("é", 250)
	s := &fakeSearcher{chunks: []vectorstore.Chunk{
		{Text: "Chlorophyll absorbs light.", Metadata: vectorstore.Metadata{Source: "bio.pdf", ChunkIndex: 2, DocumentID: 4}},
		{Text: long, Metadata: vectorstore.Metadata{Source: "bio.pdf", ChunkIndex: 5, DocumentID: 4}},
	}}
	llm := &fakeLLM{reply: "Plants use chlorophyll."}
	e := NewEngine(s, llm, nil)

	res, err := e.Answer(context.Background(), "  what absorbs light? ", 3)
	require.NoError(t, err)

	assert.Equal(t, DefaultTopK, s.k)
	assert.Equal(t, "Plants use chlorophyll.", res.Answer)
	assert.Equal(t, 2, res.SourceCount)
	require.Len(t, res.RelevantDocs, 2)
	assert.Equal(t, "Chlorophyll absorbs light....", res.RelevantDocs[0].Content)
	assert.Equal(t, strings.Repeat("é", 200)+"...", res.RelevantDocs[1].Content)
	assert.Equal(t, 5, res.RelevantDocs[1].ChunkIndex)
	assert.Equal(t, "bio.pdf", res.RelevantDocs[1].Source)

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "[Document 1]\nChlorophyll absorbs light.\n\n[Document 2]\n")
	assert.Contains(t, prompt, "Question: what absorbs light?\n")
	assert.NotContains(t, prompt, "{context}")
	assert.NotContains(t, prompt, "{question}")
}

func TestAnswer_PropagatesServiceErrors(t *testing.T) {
	authErr := ai.NewServiceError("llm", ai.KindAuth, errors.New("bad key"))
	s := &fakeSearcher{chunks: []vectorstore.Chunk{{Text: "x"}}}
	e := NewEngine(s, &fakeLLM{err: authErr}, nil)

	_, err := e.Answer(context.Background(), "q", 1)
	assert.ErrorIs(t, err, ai.ErrAuth)

	unavailable := ai.NewServiceError("embedding", ai.KindUnavailable, context.DeadlineExceeded)
	e = NewEngine(&fakeSearcher{err: unavailable}, &fakeLLM{}, nil)
	_, err = e.Answer(context.Background(), "q", 1)
	assert.ErrorIs(t, err, ai.ErrServiceUnavailable)
}

func TestAnswer_AgainstMemoryStoreIsolatesUsers(t *testing.T) {
	emb := constEmbedder{}
	store := vectorstore.NewMemory(emb, 2)
	ctx := context.Background()
	_, err := store.Upsert(ctx, vectorstore.Namespace(1), []vectorstore.Chunk{{
		Text: "user one notes", Vector: []float32{1, 0},
		Metadata: vectorstore.Metadata{UserID: 1, DocumentID: 1},
	}})
	require.NoError(t, err)

	llm := &fakeLLM{reply: "ok"}
	e := NewEngine(store, llm, nil)

	res, err := e.Answer(ctx, "notes", 2)
	require.NoError(t, err)
	assert.Zero(t, res.SourceCount)

	res, err = e.Answer(ctx, "notes", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SourceCount)
}

type constEmbedder struct{}

func (constEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil }
