package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

const projectColumns = `id, owner_id, name, description, phase, tech_stack,
	requirements, goals, constraints, maturity, created_at, updated_at, archived`

// CreateProject inserts a project and its collaborator rows.
func (s *Store) CreateProject(ctx context.Context, p *domain.ProjectContext) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		tech, reqs, goals, cons, err := encodeProjectLists(p)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO projects (`+projectColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.OwnerID, p.Name, p.Description, int(p.Phase),
			tech, reqs, goals, cons, p.MaturityScore,
			formatTime(p.CreatedAt), formatTime(p.UpdatedAt), boolToInt(p.Archived))
		if err != nil {
			return fmt.Errorf("inserting project %s: %w", p.ID, err)
		}
		return replaceCollaborators(ctx, tx, p)
	})
}

// GetProject fetches a project by id. Returns ErrNotFound if absent.
// Archived projects are returned; callers decide whether they count.
func (s *Store) GetProject(ctx context.Context, id string) (*domain.ProjectContext, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadCollaborators(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProject overwrites all mutable fields and resyncs collaborators.
func (s *Store) UpdateProject(ctx context.Context, p *domain.ProjectContext) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		tech, reqs, goals, cons, err := encodeProjectLists(p)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE projects SET name = ?, description = ?, phase = ?, tech_stack = ?,
			 requirements = ?, goals = ?, constraints = ?, maturity = ?, updated_at = ?, archived = ?
			 WHERE id = ?`,
			p.Name, p.Description, int(p.Phase), tech, reqs, goals, cons,
			p.MaturityScore, formatTime(p.UpdatedAt), boolToInt(p.Archived), p.ID)
		if err != nil {
			return fmt.Errorf("updating project %s: %w", p.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return replaceCollaborators(ctx, tx, p)
	})
}

// SetArchived flips the archived flag. Projects are never physically
// deleted.
func (s *Store) SetArchived(ctx context.Context, id string, archived bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET archived = ? WHERE id = ?`, boolToInt(archived), id)
	if err != nil {
		return fmt.Errorf("archiving project %s: %w", id, err)
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

// ListProjectsByOwner returns the owner's projects, oldest first.
func (s *Store) ListProjectsByOwner(ctx context.Context, ownerID string, includeArchived bool) ([]*domain.ProjectContext, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE owner_id = ?`
	if !includeArchived {
		query += ` AND archived = 0`
	}
	query += ` ORDER BY created_at`
	return s.queryProjects(ctx, query, ownerID)
}

// ListProjectsByCollaborator returns active projects where username is
// a collaborator, oldest first. This is the membership query backing
// collaborator access checks.
func (s *Store) ListProjectsByCollaborator(ctx context.Context, username string) ([]*domain.ProjectContext, error) {
	return s.queryProjects(ctx,
		`SELECT `+projectColumnsPrefixed+` FROM projects p
		 JOIN project_collaborators c ON c.project_id = p.id
		 WHERE c.username = ? AND p.archived = 0
		 ORDER BY p.created_at`, username)
}

const projectColumnsPrefixed = `p.id, p.owner_id, p.name, p.description, p.phase, p.tech_stack,
	p.requirements, p.goals, p.constraints, p.maturity, p.created_at, p.updated_at, p.archived`

func (s *Store) queryProjects(ctx context.Context, query string, args ...any) ([]*domain.ProjectContext, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var out []*domain.ProjectContext
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range out {
		if err := s.loadCollaborators(ctx, p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*domain.ProjectContext, error) {
	var p domain.ProjectContext
	var phase, archived int
	var tech, reqs, goals, cons, createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &phase,
		&tech, &reqs, &goals, &cons, &p.MaturityScore, &createdAt, &updatedAt, &archived)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning project: %w", err)
	}

	p.Phase = domain.Phase(phase)
	p.Archived = archived != 0
	for dst, src := range map[*[]string]string{
		&p.TechStack: tech, &p.Requirements: reqs, &p.Goals: goals, &p.Constraints: cons,
	} {
		if err := json.Unmarshal([]byte(src), dst); err != nil {
			return nil, fmt.Errorf("decoding project list: %w", err)
		}
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) loadCollaborators(ctx context.Context, p *domain.ProjectContext) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, role FROM project_collaborators WHERE project_id = ?`, p.ID)
	if err != nil {
		return fmt.Errorf("querying collaborators: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var username, role string
		if err := rows.Scan(&username, &role); err != nil {
			return err
		}
		if p.Collaborators == nil {
			p.Collaborators = make(map[string]string)
		}
		p.Collaborators[username] = role
	}
	return rows.Err()
}

func replaceCollaborators(ctx context.Context, tx *sql.Tx, p *domain.ProjectContext) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM project_collaborators WHERE project_id = ?`, p.ID); err != nil {
		return fmt.Errorf("clearing collaborators: %w", err)
	}
	for username, role := range p.Collaborators {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO project_collaborators (project_id, username, role) VALUES (?, ?, ?)`,
			p.ID, username, role); err != nil {
			return fmt.Errorf("inserting collaborator %s: %w", username, err)
		}
	}
	return nil
}

func encodeProjectLists(p *domain.ProjectContext) (tech, reqs, goals, cons string, err error) {
	encode := func(list []string) (string, error) {
		if list == nil {
			list = []string{}
		}
		b, err := json.Marshal(list)
		return string(b), err
	}
	if tech, err = encode(p.TechStack); err != nil {
		return
	}
	if reqs, err = encode(p.Requirements); err != nil {
		return
	}
	if goals, err = encode(p.Goals); err != nil {
		return
	}
	cons, err = encode(p.Constraints)
	return
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
