package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/cognicore/evolve/pkg/evolve/internalerr"
	"github.com/cognicore/evolve/pkg/evolve/store"
	"github.com/cognicore/evolve/pkg/evolve/taxonomy"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db      *sql.DB
	version string
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// taxonomy tables. version stamps the document while the database is empty.
func OpenSQLite(ctx context.Context, path, version string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if version == "" {
		version = taxonomy.DefaultVersion
	}
	return &sqliteStore{db: db, version: version}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS codes (
	id TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	keywords TEXT NOT NULL DEFAULT '[]',
	embedding_text TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created TEXT NOT NULL DEFAULT '',
	last_seen TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_codes_position ON codes(position);

CREATE TABLE IF NOT EXISTS evidence (
	code_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	source TEXT NOT NULL,
	description TEXT NOT NULL,
	date TEXT NOT NULL,
	PRIMARY KEY(code_id, seq),
	FOREIGN KEY(code_id) REFERENCES codes(id) ON DELETE CASCADE
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Load rebuilds the document from the meta, codes and evidence tables.
func (s *sqliteStore) Load(ctx context.Context) (*taxonomy.Document, error) {
	doc := taxonomy.NewDocument(s.version)

	version, ok, err := s.meta(ctx, "version")
	if err != nil {
		return nil, err
	}
	if ok {
		doc.Version = version
	}
	if doc.LastUpdated, _, err = s.meta(ctx, "last_updated"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, description, keywords, embedding_text, status, created, last_seen
FROM codes ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query codes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e        taxonomy.Entry
			keywords string
			status   string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &keywords, &e.EmbeddingText, &status, &e.Created, &e.LastSeen); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &e.Keywords); err != nil {
			return nil, fmt.Errorf("%w: code %s keywords: %v", internalerr.ErrMalformed, e.ID, err)
		}
		if e.Keywords == nil {
			e.Keywords = []string{}
		}
		e.Status = taxonomy.Status(status)
		if !e.Status.Valid() {
			return nil, fmt.Errorf("%w: code %s has unknown status %q", internalerr.ErrMalformed, e.ID, status)
		}
		e.Evidence = []taxonomy.Evidence{}
		entry := e
		doc.Codes.Set(entry.ID, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate codes: %w", err)
	}

	if err := s.loadEvidence(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *sqliteStore) loadEvidence(ctx context.Context, doc *taxonomy.Document) error {
	rows, err := s.db.QueryContext(ctx, `
SELECT code_id, source, description, date FROM evidence ORDER BY code_id, seq`)
	if err != nil {
		return fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var codeID string
		var ev taxonomy.Evidence
		if err := rows.Scan(&codeID, &ev.Source, &ev.Description, &ev.Date); err != nil {
			return fmt.Errorf("scan evidence: %w", err)
		}
		e, ok := doc.Get(codeID)
		if !ok {
			return fmt.Errorf("%w: evidence for unknown code %s", internalerr.ErrMalformed, codeID)
		}
		e.Evidence = append(e.Evidence, ev)
	}
	return rows.Err()
}

func (s *sqliteStore) meta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read meta %s: %w", key, err)
	}
	return value, true, nil
}

// Save replaces every row with the contents of doc in one transaction.
func (s *sqliteStore) Save(ctx context.Context, doc *taxonomy.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM evidence`, `DELETE FROM codes`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear tables: %w", err)
		}
	}

	upsertMeta := `INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`
	if _, err := tx.ExecContext(ctx, upsertMeta, "version", doc.Version); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertMeta, "last_updated", doc.LastUpdated); err != nil {
		return fmt.Errorf("write last_updated: %w", err)
	}

	codeStmt, err := tx.PrepareContext(ctx, `
INSERT INTO codes (id, position, name, description, keywords, embedding_text, status, created, last_seen)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare codes: %w", err)
	}
	defer codeStmt.Close()

	evStmt, err := tx.PrepareContext(ctx, `
INSERT INTO evidence (code_id, seq, source, description, date) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare evidence: %w", err)
	}
	defer evStmt.Close()

	for pos, e := range doc.Entries() {
		keywords := e.Keywords
		if keywords == nil {
			keywords = []string{}
		}
		kwJSON, err := json.Marshal(keywords)
		if err != nil {
			return fmt.Errorf("encode keywords for %s: %w", e.ID, err)
		}
		if _, err := codeStmt.ExecContext(ctx, e.ID, pos, e.Name, e.Description, string(kwJSON),
			e.EmbeddingText, string(e.Status), e.Created, e.LastSeen); err != nil {
			return fmt.Errorf("insert code %s: %w", e.ID, err)
		}
		for seq, ev := range e.Evidence {
			if _, err := evStmt.ExecContext(ctx, e.ID, seq, ev.Source, ev.Description, ev.Date); err != nil {
				return fmt.Errorf("insert evidence for %s: %w", e.ID, err)
			}
		}
	}

	return tx.Commit()
}
