package knowledge

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/tutord/internal/config"
	"github.com/fyrsmithlabs/tutord/internal/domain"
	"github.com/fyrsmithlabs/tutord/internal/events"
	"github.com/fyrsmithlabs/tutord/internal/llm"
	"github.com/fyrsmithlabs/tutord/internal/store"
	"github.com/fyrsmithlabs/tutord/internal/vectorindex"
)

const testDim = 8

type capturePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *capturePublisher) Publish(subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *capturePublisher) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

type fixture struct {
	svc      *Service
	store    *store.Store
	index    *vectorindex.Index
	embedder *llm.StubEmbedder
	bus      *capturePublisher
}

func newFixture(t *testing.T, cfg config.KnowledgeConfig) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	st, err := store.Open("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	idx, err := vectorindex.New(vectorindex.Config{Dimension: testDim}, logger)
	require.NoError(t, err)

	embedder := &llm.StubEmbedder{Dim: testDim}
	bus := &capturePublisher{}
	return &fixture{
		svc:      New(st, idx, embedder, bus, cfg, logger),
		store:    st,
		index:    idx,
		embedder: embedder,
		bus:      bus,
	}
}

func defaultCfg() config.KnowledgeConfig {
	return config.KnowledgeConfig{
		ChunkSize:        2000,
		ChunkOverlap:     0,
		DefaultTopK:      5,
		SweepMaxAttempts: 2,
	}
}

func TestSplitChunks(t *testing.T) {
	assert.Nil(t, splitChunks("   ", 100, 10))
	assert.Equal(t, []string{"short text"}, splitChunks("short text", 100, 10))

	chunks := splitChunks(strings.Repeat("word ", 200), 120, 20)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 120)
		assert.NotEmpty(t, c)
	}
	// Deterministic for identical input.
	assert.Equal(t, chunks, splitChunks(strings.Repeat("word ", 200), 120, 20))
}

func TestAdd_SingleChunk(t *testing.T) {
	f := newFixture(t, defaultCfg())
	ctx := context.Background()

	entries, err := f.svc.Add(ctx, AddRequest{
		ProjectID: "proj-1",
		Title:     "Postgres indexing",
		Content:   "B-tree indexes suit range scans.",
		Tags:      []string{"database"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EntryReady, entries[0].Status)
	assert.Len(t, entries[0].Embedding, testDim)

	stored, err := f.store.GetEntry(ctx, entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryReady, stored.Status)
	assert.Equal(t, entries[0].Embedding, stored.Embedding)
	assert.Equal(t, 1, f.index.Count())

	assert.Equal(t, []string{events.SubjectKnowledgeAdded}, f.bus.seen())
}

func TestAdd_Validation(t *testing.T) {
	f := newFixture(t, defaultCfg())
	ctx := context.Background()

	_, err := f.svc.Add(ctx, AddRequest{Title: "", Content: "text"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = f.svc.Add(ctx, AddRequest{Title: "t", Content: "   "})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

// A document that fails to embed partway through leaves a precise
// trail: earlier chunks ready, the failing chunk pending, later chunks
// never written. The sweep then finishes the job.
func TestAdd_MidChunkEmbedFailure(t *testing.T) {
	cfg := defaultCfg()
	cfg.ChunkSize = 12
	f := newFixture(t, cfg)
	ctx := context.Background()

	content := "alpha beta gamma delta epsilon zeta"
	chunks := splitChunks(content, cfg.ChunkSize, cfg.ChunkOverlap)
	require.GreaterOrEqual(t, len(chunks), 3)

	boom := domain.NewError(domain.KindUpstreamUnavailable, "embed backend down")
	f.embedder.FailOn = map[string]error{chunks[1]: boom}

	entries, err := f.svc.Add(ctx, AddRequest{ProjectID: "proj-1", Title: "notes", Content: content})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindUpstreamUnavailable))
	require.Len(t, entries, 2, "failing chunk written pending, later chunks not attempted")

	first, err := f.store.GetEntry(ctx, entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryReady, first.Status)

	second, err := f.store.GetEntry(ctx, entries[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryPending, second.Status)

	assert.Equal(t, 1, f.index.Count())
	assert.Empty(t, f.bus.seen(), "no event for a partial ingest")

	// Backend recovers; the sweep promotes the pending chunk.
	f.embedder.FailOn = nil
	report, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Recovered)
	assert.Equal(t, 0, report.Purged)

	second, err = f.store.GetEntry(ctx, entries[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryReady, second.Status)
	assert.Equal(t, 2, f.index.Count())
}

func TestSweep_PurgesAfterMaxAttempts(t *testing.T) {
	cfg := defaultCfg()
	cfg.SweepMaxAttempts = 2
	f := newFixture(t, cfg)
	ctx := context.Background()

	boom := domain.NewError(domain.KindUpstreamUnavailable, "embed backend down")
	f.embedder.FailOn = map[string]error{"unembeddable": boom}

	entries, err := f.svc.Add(ctx, AddRequest{Title: "bad", Content: "unembeddable"})
	require.Error(t, err)
	require.Len(t, entries, 1)
	id := entries[0].ID

	// Two sweeps burn the attempt budget, the third purges.
	for i := 0; i < 2; i++ {
		report, err := f.svc.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.StillPending)
	}
	report, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Purged)

	_, err = f.svc.Get(ctx, id)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestSearch_ScopesAndStatus(t *testing.T) {
	f := newFixture(t, defaultCfg())
	ctx := context.Background()

	global, err := f.svc.Add(ctx, AddRequest{Title: "global fact", Content: "postgres indexing basics"})
	require.NoError(t, err)
	scoped, err := f.svc.Add(ctx, AddRequest{ProjectID: "proj-1", Title: "project fact", Content: "postgres indexing for this project"})
	require.NoError(t, err)
	other, err := f.svc.Add(ctx, AddRequest{ProjectID: "proj-2", Title: "other fact", Content: "postgres indexing elsewhere"})
	require.NoError(t, err)

	hits, err := f.svc.Search(ctx, "proj-1", "postgres indexing", 10)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, h := range hits {
		ids[h.Entry.ID] = true
	}
	assert.True(t, ids[global[0].ID], "global entries visible from any project")
	assert.True(t, ids[scoped[0].ID])
	assert.False(t, ids[other[0].ID], "other projects' entries stay invisible")

	// Tombstoning removes an entry from results immediately.
	require.NoError(t, f.svc.Remove(ctx, scoped[0].ID))
	hits, err = f.svc.Search(ctx, "proj-1", "postgres indexing", 10)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, scoped[0].ID, h.Entry.ID)
	}
}

func TestSearch_OrderedBySimilarity(t *testing.T) {
	f := newFixture(t, defaultCfg())
	ctx := context.Background()

	for _, content := range []string{
		"goroutine scheduling internals",
		"channel select semantics",
		"baking sourdough bread",
	} {
		_, err := f.svc.Add(ctx, AddRequest{Title: content, Content: content})
		require.NoError(t, err)
	}

	hits, err := f.svc.Search(ctx, "", "goroutine scheduling internals", 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "goroutine scheduling internals", hits[0].Entry.Content)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Similarity, hits[i].Similarity)
	}
}

func TestSearch_Validation(t *testing.T) {
	f := newFixture(t, defaultCfg())
	_, err := f.svc.Search(context.Background(), "proj-1", "  ", 5)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestRemove_NotFound(t *testing.T) {
	f := newFixture(t, defaultCfg())
	err := f.svc.Remove(context.Background(), "no-such-id")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

// Rebuild restores the index purely from stored embeddings. The
// embedding backend being down must not matter.
func TestRebuild_NoReembedding(t *testing.T) {
	f := newFixture(t, defaultCfg())
	ctx := context.Background()

	_, err := f.svc.Add(ctx, AddRequest{ProjectID: "proj-1", Title: "a", Content: "first entry"})
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, AddRequest{Title: "b", Content: "second entry"})
	require.NoError(t, err)
	removed, err := f.svc.Add(ctx, AddRequest{Title: "c", Content: "third entry"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Remove(ctx, removed[0].ID))

	f.svc.embedder = &llm.StubEmbedder{
		Err: domain.NewError(domain.KindUpstreamUnavailable, "embed backend down"),
	}

	restored, err := f.svc.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, restored, "tombstoned entries stay out of the rebuilt index")
	assert.Equal(t, 2, f.index.Count())
}

// Discard removes rows and vectors outright, pending rows included, so
// a rolled-back write leaves nothing for the sweep to resurrect.
func TestDiscard(t *testing.T) {
	f := newFixture(t, defaultCfg())
	ctx := context.Background()

	entries, err := f.svc.Add(ctx, AddRequest{Title: "Doc", Content: "searchable content"})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	pending := &domain.KnowledgeEntry{
		ID:        "stuck-1",
		Title:     "Half-written",
		Content:   "never embedded",
		Status:    domain.EntryPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.store.InsertEntry(ctx, pending))

	require.NoError(t, f.svc.Discard(ctx, entries[0].ID, pending.ID))

	assert.Zero(t, f.index.Count())
	_, err = f.store.GetEntry(ctx, entries[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.store.GetEntry(ctx, pending.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	report, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Recovered)
	assert.Zero(t, report.StillPending)
}
