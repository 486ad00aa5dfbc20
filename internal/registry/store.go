package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/raido/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS resources (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	aliases           TEXT NOT NULL DEFAULT '[]',
	schemas           TEXT NOT NULL DEFAULT '[]',
	location          TEXT NOT NULL DEFAULT '{}',
	cache_status      TEXT NOT NULL DEFAULT 'DISCOVERED',
	last_refreshed_at DATETIME,
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store is the SQLite discovery log. It persists discovered resources and
// their cache status so a restart can serve the last-known registry when the
// upstream host is unreachable or rate-limited.
type Store struct {
	conn *sql.DB
}

// OpenStore opens (or creates) the discovery log and applies the schema.
func OpenStore(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("registry: open store: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("registry: ping store: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("registry: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Upsert inserts or replaces one resource row.
func (s *Store) Upsert(r models.Resource) error {
	aliasesJSON, _ := json.Marshal(r.Aliases)
	schemasJSON, _ := json.Marshal(r.Schemas)
	locationJSON, _ := json.Marshal(r.Location)

	var refreshed any
	if r.LastRefreshedAt != nil {
		refreshed = r.LastRefreshedAt.UTC()
	}

	_, err := s.conn.Exec(`
		INSERT INTO resources (id, name, category, description, aliases, schemas, location, cache_status, last_refreshed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name              = excluded.name,
			category          = excluded.category,
			description       = excluded.description,
			aliases           = excluded.aliases,
			schemas           = excluded.schemas,
			location          = excluded.location,
			cache_status      = excluded.cache_status,
			last_refreshed_at = excluded.last_refreshed_at,
			updated_at        = excluded.updated_at
	`, r.ID, r.Name, r.Category, r.Description, string(aliasesJSON), string(schemasJSON),
		string(locationJSON), string(r.Status), refreshed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("registry: upsert resource: %w", err)
	}
	return nil
}

// UpdateStatus records a cache status transition for one resource.
func (s *Store) UpdateStatus(id string, status models.CacheStatus, refreshedAt *time.Time) error {
	var refreshed any
	if refreshedAt != nil {
		refreshed = refreshedAt.UTC()
	}
	_, err := s.conn.Exec(`
		UPDATE resources
		SET cache_status = ?, last_refreshed_at = COALESCE(?, last_refreshed_at), updated_at = ?
		WHERE id = ?
	`, string(status), refreshed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("registry: update status: %w", err)
	}
	return nil
}

// LoadAll returns every persisted resource ordered by id.
func (s *Store) LoadAll() ([]models.Resource, error) {
	rows, err := s.conn.Query(`
		SELECT id, name, category, description, aliases, schemas, location, cache_status, last_refreshed_at
		FROM resources ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("registry: load resources: %w", err)
	}
	defer rows.Close()

	var out []models.Resource
	for rows.Next() {
		var (
			r            models.Resource
			aliasesJSON  string
			schemasJSON  string
			locationJSON string
			status       string
			refreshed    sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Category, &r.Description,
			&aliasesJSON, &schemasJSON, &locationJSON, &status, &refreshed); err != nil {
			return nil, fmt.Errorf("registry: scan resource: %w", err)
		}
		_ = json.Unmarshal([]byte(aliasesJSON), &r.Aliases)
		_ = json.Unmarshal([]byte(schemasJSON), &r.Schemas)
		if err := json.Unmarshal([]byte(locationJSON), &r.Location); err != nil {
			return nil, fmt.Errorf("registry: decode location for %s: %w", r.ID, err)
		}
		r.Status = models.CacheStatus(status)
		if refreshed.Valid {
			t := refreshed.Time
			r.LastRefreshedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
