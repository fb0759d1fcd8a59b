package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

const entryColumns = `id, project_id, title, content, tags, embedding, source, status, attempts, created_at`

// InsertEntry inserts a knowledge entry, typically in pending status.
func (s *Store) InsertEntry(ctx context.Context, e *domain.KnowledgeEntry) error {
	tags, err := json.Marshal(orEmptyList(e.Tags))
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO knowledge_entries (`+entryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProjectID, e.Title, e.Content, string(tags),
		vectorBytes(e.Embedding), e.Source, string(e.Status), e.Attempts,
		formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting knowledge entry %s: %w", e.ID, err)
	}
	return nil
}

// GetEntry fetches an entry by id. Returns ErrNotFound if absent.
func (s *Store) GetEntry(ctx context.Context, id string) (*domain.KnowledgeEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries WHERE id = ?`, id)
	return scanEntry(row)
}

// GetEntries fetches entries by id, skipping missing ids. Order follows
// the input id order.
func (s *Store) GetEntries(ctx context.Context, ids []string) ([]*domain.KnowledgeEntry, error) {
	out := make([]*domain.KnowledgeEntry, 0, len(ids))
	for _, id := range ids {
		e, err := s.GetEntry(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// MarkEntryReady stores the embedding and flips the entry to ready.
// Called only after the vector is indexed, keeping the ready invariant.
func (s *Store) MarkEntryReady(ctx context.Context, id string, embedding []float32) error {
	return s.setEntryState(ctx, id,
		`UPDATE knowledge_entries SET embedding = ?, status = ? WHERE id = ?`,
		vectorBytes(embedding), string(domain.EntryReady), id)
}

// MarkEntryTombstoned tombstones an entry. The vector purge happens
// asynchronously; the row itself is kept.
func (s *Store) MarkEntryTombstoned(ctx context.Context, id string) error {
	return s.setEntryState(ctx, id,
		`UPDATE knowledge_entries SET status = ? WHERE id = ?`,
		string(domain.EntryTombstoned), id)
}

// IncrementEntryAttempts bumps the embed attempt counter for a pending
// entry and returns the new count.
func (s *Store) IncrementEntryAttempts(ctx context.Context, id string) (int, error) {
	if err := s.setEntryState(ctx, id,
		`UPDATE knowledge_entries SET attempts = attempts + 1 WHERE id = ?`, id); err != nil {
		return 0, err
	}
	var attempts int
	err := s.db.QueryRowContext(ctx,
		`SELECT attempts FROM knowledge_entries WHERE id = ?`, id).Scan(&attempts)
	return attempts, err
}

// DeleteEntry physically removes a row. Used only by the sweep to purge
// pending entries that exhausted their embed attempts - ready entries
// are removed via tombstone.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting knowledge entry %s: %w", id, err)
	}
	return nil
}

// ListEntriesByStatus returns entries in a given status, oldest first.
func (s *Store) ListEntriesByStatus(ctx context.Context, status domain.EntryStatus) ([]*domain.KnowledgeEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries WHERE status = ? ORDER BY created_at`,
		string(status))
}

// ListEntriesByProject returns ready entries for a project (plus global
// entries when includeGlobal is set), newest first.
func (s *Store) ListEntriesByProject(ctx context.Context, projectID string, includeGlobal bool, limit int) ([]*domain.KnowledgeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM knowledge_entries WHERE status = ? AND (project_id = ?`
	args := []any{string(domain.EntryReady), projectID}
	if includeGlobal {
		query += ` OR project_id = ''`
	}
	query += `) ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryEntries(ctx, query, args...)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]*domain.KnowledgeEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge entries: %w", err)
	}
	defer rows.Close()

	var out []*domain.KnowledgeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row rowScanner) (*domain.KnowledgeEntry, error) {
	var e domain.KnowledgeEntry
	var tags, status, createdAt string
	var embedding []byte
	err := row.Scan(&e.ID, &e.ProjectID, &e.Title, &e.Content, &tags,
		&embedding, &e.Source, &status, &e.Attempts, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning knowledge entry: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	e.Status = domain.EntryStatus(status)
	e.Embedding = vectorFromBytes(embedding)
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) setEntryState(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating knowledge entry %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// vectorBytes encodes a float32 vector as little-endian bytes. Keeping
// the embedding in the structured row lets the semantic index be
// rebuilt without re-calling the embedding service.
func vectorBytes(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func vectorFromBytes(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func orEmptyList(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}
