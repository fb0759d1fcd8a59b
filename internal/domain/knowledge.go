package domain

import (
	"strings"
	"time"
)

// EntryStatus is the lifecycle state of a KnowledgeEntry.
type EntryStatus string

const (
	// EntryPending means the structured record exists but the vector is
	// not yet indexed. Pending entries are picked up by the sweep.
	EntryPending EntryStatus = "pending"

	// EntryReady means both the structured record and the indexed
	// vector exist. Only ready entries are searchable.
	EntryReady EntryStatus = "ready"

	// EntryTombstoned means the entry was removed. The row stays; the
	// vector is purged asynchronously.
	EntryTombstoned EntryStatus = "tombstoned"
)

// KnowledgeEntry is a stored, semantically searchable unit of reference
// text. ProjectID is empty for globally visible entries.
//
// Invariant: a ready entry always has both a structured record and an
// indexed vector. The structured store is authoritative for existence;
// the vector index is derived and rebuildable.
type KnowledgeEntry struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"project_id,omitempty"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Tags      []string    `json:"tags,omitempty"`
	Embedding []float32   `json:"-"`
	Source    string      `json:"source,omitempty"`
	Status    EntryStatus `json:"status"`
	Attempts  int         `json:"-"`
	CreatedAt time.Time   `json:"created_at"`
}

// Validate checks structural invariants.
func (e *KnowledgeEntry) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return NewError(KindValidation, "knowledge entry title is required")
	}
	if strings.TrimSpace(e.Content) == "" {
		return NewError(KindValidation, "knowledge entry content is required")
	}
	return nil
}
