// Package knowledge implements the hybrid knowledge store: structured
// records in SQLite paired with a derived semantic index. The
// structured store is authoritative; the vector index can always be
// rebuilt from it.
//
// Writes follow a fixed protocol so the ready invariant holds at every
// step: insert the row as pending, embed, index the vector, then flip
// the row to ready. A crash or embedding failure between steps leaves a
// pending row, never a dangling vector, and the sweep finishes or
// purges pending rows later.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tutord/internal/config"
	"github.com/fyrsmithlabs/tutord/internal/domain"
	"github.com/fyrsmithlabs/tutord/internal/events"
	"github.com/fyrsmithlabs/tutord/internal/llm"
	"github.com/fyrsmithlabs/tutord/internal/store"
	"github.com/fyrsmithlabs/tutord/internal/vectorindex"
)

// Publisher is the slice of the event bus the service needs. A nil
// publisher disables event emission.
type Publisher interface {
	Publish(subject string, payload any) error
}

// Service is the knowledge store facade used by agents.
type Service struct {
	store    *store.Store
	index    *vectorindex.Index
	embedder llm.Embedder
	bus      Publisher
	config   config.KnowledgeConfig
	logger   *zap.Logger
	now      func() time.Time
}

// AddRequest describes a document to ingest. An empty ProjectID makes
// the entries globally visible.
type AddRequest struct {
	ProjectID string
	Title     string
	Content   string
	Tags      []string
	Source    string
}

// SearchHit pairs a ready entry with its query similarity.
type SearchHit struct {
	Entry      *domain.KnowledgeEntry `json:"entry"`
	Similarity float32                `json:"similarity"`
}

// New creates the service. bus may be nil.
func New(st *store.Store, idx *vectorindex.Index, embedder llm.Embedder, bus Publisher, cfg config.KnowledgeConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    st,
		index:    idx,
		embedder: embedder,
		bus:      bus,
		config:   cfg,
		logger:   logger.Named("knowledge"),
		now:      time.Now,
	}
}

// Add ingests a document. Long content is chunked; each chunk becomes
// its own entry and is written pending, embedded, indexed, and marked
// ready in that order. On an embedding failure the current chunk stays
// pending for the sweep, later chunks are not attempted, and the
// entries written so far are returned alongside the error.
func (s *Service) Add(ctx context.Context, req AddRequest) ([]*domain.KnowledgeEntry, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, domain.NewError(domain.KindValidation, "knowledge entry title is required")
	}
	chunks := splitChunks(req.Content, s.config.ChunkSize, s.config.ChunkOverlap)
	if len(chunks) == 0 {
		return nil, domain.NewError(domain.KindValidation, "knowledge entry content is required")
	}

	entries := make([]*domain.KnowledgeEntry, 0, len(chunks))
	for i, chunk := range chunks {
		title := req.Title
		if len(chunks) > 1 {
			title = fmt.Sprintf("%s (%d/%d)", req.Title, i+1, len(chunks))
		}
		entry := &domain.KnowledgeEntry{
			ID:        uuid.NewString(),
			ProjectID: req.ProjectID,
			Title:     title,
			Content:   chunk,
			Tags:      req.Tags,
			Source:    req.Source,
			Status:    domain.EntryPending,
			CreatedAt: s.now().UTC(),
		}
		if err := s.store.InsertEntry(ctx, entry); err != nil {
			return entries, domain.WrapError(domain.KindStorage, err, "inserting knowledge entry")
		}
		entries = append(entries, entry)

		if err := s.embedAndIndex(ctx, entry); err != nil {
			s.logger.Warn("chunk left pending after embed failure",
				zap.String("entry_id", entry.ID),
				zap.Int("chunk", i+1),
				zap.Error(err))
			return entries, err
		}
	}

	s.publish(events.SubjectKnowledgeAdded, map[string]any{
		"project_id": req.ProjectID,
		"title":      req.Title,
		"entry_ids":  entryIDs(entries),
	})
	return entries, nil
}

// embedAndIndex completes the second half of the write protocol for one
// pending entry.
func (s *Service) embedAndIndex(ctx context.Context, entry *domain.KnowledgeEntry) error {
	vector, err := s.embedder.EmbedQuery(ctx, entry.Content)
	if err != nil {
		return err
	}
	if err := s.index.Add(ctx, entry.ID, entry.ProjectID, entry.Content, vector); err != nil {
		return domain.WrapError(domain.KindStorage, err, "indexing knowledge vector")
	}
	if err := s.store.MarkEntryReady(ctx, entry.ID, vector); err != nil {
		return domain.WrapError(domain.KindStorage, err, "marking knowledge entry ready")
	}
	entry.Embedding = vector
	entry.Status = domain.EntryReady
	return nil
}

// Search runs a semantic query. Results are ready entries only, ordered
// by similarity, with creation recency breaking ties. topK <= 0 falls
// back to the configured default.
func (s *Service) Search(ctx context.Context, projectID, query string, topK int) ([]SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewError(domain.KindValidation, "search query is required")
	}
	if topK <= 0 {
		topK = s.config.DefaultTopK
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	found, err := s.index.Query(ctx, vector, projectID, topK)
	if err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "querying semantic index")
	}

	hits := make([]SearchHit, 0, len(found))
	for _, h := range found {
		entry, err := s.store.GetEntry(ctx, h.ID)
		if errors.Is(err, store.ErrNotFound) {
			// Vector without a row: a stale index artifact. Skip it; a
			// rebuild clears these.
			continue
		}
		if err != nil {
			return nil, domain.WrapError(domain.KindStorage, err, "loading search result")
		}
		if entry.Status != domain.EntryReady {
			continue
		}
		hits = append(hits, SearchHit{Entry: entry, Similarity: h.Similarity})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Entry.CreatedAt.After(hits[j].Entry.CreatedAt)
	})
	return hits, nil
}

// Get returns one entry by id regardless of status.
func (s *Service) Get(ctx context.Context, id string) (*domain.KnowledgeEntry, error) {
	entry, err := s.store.GetEntry(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.Errorf(domain.KindValidation, "knowledge entry %s not found", id)
	}
	if err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "loading knowledge entry")
	}
	return entry, nil
}

// ListByProject returns ready entries for a project, newest first.
func (s *Service) ListByProject(ctx context.Context, projectID string, includeGlobal bool, limit int) ([]*domain.KnowledgeEntry, error) {
	entries, err := s.store.ListEntriesByProject(ctx, projectID, includeGlobal, limit)
	if err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "listing knowledge entries")
	}
	return entries, nil
}

// Remove tombstones an entry. The structured row is the source of
// truth, so the tombstone alone makes the entry unsearchable; the
// vector purge is best effort and the sweep clears any leftover.
func (s *Service) Remove(ctx context.Context, id string) error {
	err := s.store.MarkEntryTombstoned(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Errorf(domain.KindValidation, "knowledge entry %s not found", id)
	}
	if err != nil {
		return domain.WrapError(domain.KindStorage, err, "tombstoning knowledge entry")
	}
	if err := s.index.Delete(ctx, id); err != nil {
		s.logger.Warn("vector purge deferred to sweep",
			zap.String("entry_id", id), zap.Error(err))
	}
	return nil
}

// Discard hard-deletes entries and their vectors regardless of status.
// It is the rollback half of an all-or-nothing write: a caller whose
// request was cancelled mid-document takes back the chunks already
// persisted so no partial artifact survives.
func (s *Service) Discard(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.index.Delete(ctx, ids...); err != nil {
		s.logger.Warn("vector purge deferred to rebuild",
			zap.Strings("entry_ids", ids), zap.Error(err))
	}
	for _, id := range ids {
		if err := s.store.DeleteEntry(ctx, id); err != nil {
			return domain.WrapError(domain.KindStorage, err, "discarding knowledge entry")
		}
	}
	return nil
}

// Rebuild drops the semantic index and reloads it from ready entries'
// stored embeddings, without calling the embedding service. Returns the
// number of vectors restored.
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	ready, err := s.store.ListEntriesByStatus(ctx, domain.EntryReady)
	if err != nil {
		return 0, domain.WrapError(domain.KindStorage, err, "listing ready entries")
	}
	if err := s.index.Reset(); err != nil {
		return 0, domain.WrapError(domain.KindStorage, err, "resetting semantic index")
	}
	restored := 0
	for _, entry := range ready {
		if len(entry.Embedding) == 0 {
			s.logger.Warn("ready entry missing stored embedding, skipped",
				zap.String("entry_id", entry.ID))
			continue
		}
		if err := s.index.Add(ctx, entry.ID, entry.ProjectID, entry.Content, entry.Embedding); err != nil {
			return restored, domain.WrapError(domain.KindStorage, err, "reindexing entry")
		}
		restored++
	}
	s.logger.Info("semantic index rebuilt", zap.Int("vectors", restored))
	return restored, nil
}

func (s *Service) publish(subject string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(subject, payload); err != nil {
		s.logger.Warn("event emission failed", zap.String("subject", subject), zap.Error(err))
	}
}

func entryIDs(entries []*domain.KnowledgeEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
