package store

// Schema history:
// v1: users, projects (+collaborators), knowledge_entries, conflicts, token_usage
const schemaVersion = 1

var schema = []string{
	`CREATE TABLE IF NOT EXISTS schema_info (
		version INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id           TEXT PRIMARY KEY,
		username     TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		preferences  TEXT NOT NULL DEFAULT '{}',
		tier         TEXT NOT NULL DEFAULT 'free',
		created_at   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id           TEXT PRIMARY KEY,
		owner_id     TEXT NOT NULL,
		name         TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		phase        INTEGER NOT NULL DEFAULT 0,
		tech_stack   TEXT NOT NULL DEFAULT '[]',
		requirements TEXT NOT NULL DEFAULT '[]',
		goals        TEXT NOT NULL DEFAULT '[]',
		constraints  TEXT NOT NULL DEFAULT '[]',
		maturity     INTEGER NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL,
		archived     INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id)`,
	`CREATE TABLE IF NOT EXISTS project_collaborators (
		project_id TEXT NOT NULL,
		username   TEXT NOT NULL,
		role       TEXT NOT NULL DEFAULT 'viewer',
		PRIMARY KEY (project_id, username)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_collaborators_username ON project_collaborators(username)`,
	`CREATE TABLE IF NOT EXISTS knowledge_entries (
		id         TEXT PRIMARY KEY,
		project_id TEXT NOT NULL DEFAULT '',
		title      TEXT NOT NULL,
		content    TEXT NOT NULL,
		tags       TEXT NOT NULL DEFAULT '[]',
		embedding  BLOB,
		source     TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL DEFAULT 'pending',
		attempts   INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_project_status ON knowledge_entries(project_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_status ON knowledge_entries(status)`,
	`CREATE TABLE IF NOT EXISTS conflicts (
		id          TEXT PRIMARY KEY,
		project_id  TEXT NOT NULL,
		category    TEXT NOT NULL,
		field       TEXT NOT NULL,
		previous    TEXT NOT NULL DEFAULT '',
		proposed    TEXT NOT NULL DEFAULT '',
		severity    TEXT NOT NULL,
		detected_at TEXT NOT NULL,
		resolution  TEXT NOT NULL DEFAULT 'open'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conflicts_project ON conflicts(project_id, resolution)`,
	`CREATE TABLE IF NOT EXISTS token_usage (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		provider      TEXT NOT NULL,
		model         TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cost_usd      REAL NOT NULL DEFAULT 0,
		request_id    TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL
	)`,
}

func (s *Store) migrate() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_info LIMIT 1`).Scan(&version)
	switch {
	case err == nil:
		if version != schemaVersion {
			// Future versions add ALTER steps here.
			if _, err := s.db.Exec(`UPDATE schema_info SET version = ?`, schemaVersion); err != nil {
				return err
			}
		}
	default:
		if _, err := s.db.Exec(`INSERT INTO schema_info (version) VALUES (?)`, schemaVersion); err != nil {
			return err
		}
	}
	return nil
}
