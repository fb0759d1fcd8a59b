// Package vectorindex provides the derived semantic index over
// chromem-go. The index is never authoritative: it holds (id, vector)
// pairs derived from the structured store and can be dropped and
// rebuilt from structured records at any time.
package vectorindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const collectionName = "knowledge"

// Config holds index configuration.
type Config struct {
	// Path is the directory for persistent storage. Empty keeps the
	// index in memory, used by tests.
	Path string

	// Dimension is the expected embedding size. Vectors of any other
	// length are rejected before they reach the index.
	Dimension int
}

// Hit is a single similarity match.
type Hit struct {
	ID         string
	Similarity float32
}

// Index wraps a chromem-go collection of knowledge vectors.
type Index struct {
	db     *chromem.DB
	config Config
	logger *zap.Logger

	mu  sync.Mutex
	col *chromem.Collection
}

// New creates the index, loading persisted vectors if Path is set.
func New(cfg Config, logger *zap.Logger) (*Index, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", cfg.Dimension)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding index path: %w", err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("opening chromem db: %w", err)
		}
	}

	idx := &Index{db: db, config: cfg, logger: logger.Named("vectorindex")}
	col, err := idx.createCollection()
	if err != nil {
		return nil, err
	}
	idx.col = col

	logger.Info("semantic index opened",
		zap.String("path", cfg.Path),
		zap.Int("dimension", cfg.Dimension),
		zap.Int("vectors", col.Count()))
	return idx, nil
}

// noEmbedder rejects any attempt to embed inside the index. All vectors
// are computed at the embedding boundary and passed in precomputed.
func noEmbedder(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("vectorindex stores precomputed embeddings only")
}

func (x *Index) createCollection() (*chromem.Collection, error) {
	col, err := x.db.GetOrCreateCollection(collectionName, nil, noEmbedder)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", collectionName, err)
	}
	return col, nil
}

// Add indexes one vector. projectID is kept as payload metadata so
// scoped queries can filter on it; empty means globally visible.
func (x *Index) Add(ctx context.Context, id, projectID, content string, embedding []float32) error {
	if len(embedding) != x.config.Dimension {
		return fmt.Errorf("embedding dimension %d does not match index dimension %d",
			len(embedding), x.config.Dimension)
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	err := x.col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata:  map[string]string{"project_id": projectID},
	})
	if err != nil {
		return fmt.Errorf("indexing vector %s: %w", id, err)
	}
	return nil
}

// Query returns up to topK hits by descending similarity. With a
// projectID, both project-scoped and global vectors are searched;
// without one, only global vectors are.
func (x *Index) Query(ctx context.Context, embedding []float32, projectID string, topK int) ([]Hit, error) {
	if len(embedding) != x.config.Dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d",
			len(embedding), x.config.Dimension)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	scopes := []string{""}
	if projectID != "" {
		scopes = append(scopes, projectID)
	}

	var hits []Hit
	seen := make(map[string]struct{})
	for _, scope := range scopes {
		results, err := x.queryScope(ctx, embedding, scope, topK)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			hits = append(hits, Hit{ID: r.ID, Similarity: r.Similarity})
		}
	}

	// Similarity desc, then id for a stable order. The caller breaks
	// remaining ties by recency using structured records.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (x *Index) queryScope(ctx context.Context, embedding []float32, projectID string, topK int) ([]chromem.Result, error) {
	// chromem requires nResults <= document count.
	count := x.col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}
	results, err := x.col.QueryEmbedding(ctx, embedding, topK,
		map[string]string{"project_id": projectID}, nil)
	if err != nil {
		// A filter matching fewer documents than nResults is not an
		// error worth failing a search over.
		if strings.Contains(err.Error(), "nResults") {
			return nil, nil
		}
		return nil, fmt.Errorf("querying index: %w", err)
	}
	return results, nil
}

// Delete removes vectors by id. Missing ids are ignored.
func (x *Index) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}

// Reset drops every vector. Used before a rebuild from the structured
// store.
func (x *Index) Reset() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("dropping collection: %w", err)
	}
	col, err := x.createCollection()
	if err != nil {
		return err
	}
	x.col = col
	return nil
}

// Count returns the number of indexed vectors.
func (x *Index) Count() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.col.Count()
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
