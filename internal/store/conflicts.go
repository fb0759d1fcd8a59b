package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

// InsertConflicts records detected conflicts in one transaction.
func (s *Store) InsertConflicts(ctx context.Context, conflicts []domain.ConflictInfo) error {
	if len(conflicts) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, c := range conflicts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO conflicts (id, project_id, category, field, previous, proposed, severity, detected_at, resolution)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ID, c.ProjectID, c.Category, c.Field, c.Previous, c.Proposed,
				string(c.Severity), formatTime(c.DetectedAt), string(c.Resolution)); err != nil {
				return fmt.Errorf("inserting conflict %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// ListConflictsByProject returns a project's conflicts, newest first.
// When onlyOpen is set, resolved and dismissed conflicts are skipped.
func (s *Store) ListConflictsByProject(ctx context.Context, projectID string, onlyOpen bool) ([]domain.ConflictInfo, error) {
	query := `SELECT id, project_id, category, field, previous, proposed, severity, detected_at, resolution
		 FROM conflicts WHERE project_id = ?`
	args := []any{projectID}
	if onlyOpen {
		query += ` AND resolution = ?`
		args = append(args, string(domain.ResolutionOpen))
	}
	query += ` ORDER BY detected_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying conflicts: %w", err)
	}
	defer rows.Close()

	var out []domain.ConflictInfo
	for rows.Next() {
		var c domain.ConflictInfo
		var severity, detectedAt, resolution string
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Category, &c.Field,
			&c.Previous, &c.Proposed, &severity, &detectedAt, &resolution); err != nil {
			return nil, fmt.Errorf("scanning conflict: %w", err)
		}
		c.Severity = domain.Severity(severity)
		c.Resolution = domain.Resolution(resolution)
		if c.DetectedAt, err = parseTime(detectedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TransitionConflict moves a conflict to resolved or dismissed.
// Conflicts are never deleted.
func (s *Store) TransitionConflict(ctx context.Context, id string, resolution domain.Resolution) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conflicts SET resolution = ? WHERE id = ?`, string(resolution), id)
	if err != nil {
		return fmt.Errorf("transitioning conflict %s: %w", id, err)
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
