package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chazu/xenoscript/graph"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS namespaces (
	name       TEXT PRIMARY KEY,
	document   TEXT NOT NULL,
	digest     TEXT NOT NULL,
	node_count INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteStore keeps one row per namespace holding its JSON document and a
// digest of it.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	// Wait on locks held by another process instead of failing.
	db.Exec("PRAGMA busy_timeout=5000")

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Load reads a namespace row.
func (s *SQLiteStore) Load(ctx context.Context, namespace string) (*graph.Graph, error) {
	if err := ValidateName(namespace); err != nil {
		return nil, err
	}
	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT document FROM namespaces WHERE name = ?", namespace).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, namespace)
		}
		return nil, fmt.Errorf("querying namespace %s: %w", namespace, err)
	}
	g := graph.New(namespace)
	if err := json.Unmarshal([]byte(doc), g); err != nil {
		return nil, fmt.Errorf("parsing namespace %s: %w", namespace, err)
	}
	return g, nil
}

// Save writes the namespace unless the stored digest already matches.
func (s *SQLiteStore) Save(ctx context.Context, g *graph.Graph) error {
	if err := ValidateName(g.Namespace()); err != nil {
		return err
	}
	data, err := json.Marshal(g.Document())
	if err != nil {
		return fmt.Errorf("encoding namespace %s: %w", g.Namespace(), err)
	}
	digest := Digest(data)

	var current string
	err = s.db.QueryRowContext(ctx, "SELECT digest FROM namespaces WHERE name = ?", g.Namespace()).Scan(&current)
	switch {
	case err == nil && current == digest:
		log.Debugf("namespace %s unchanged (%s)", g.Namespace(), digest[:12])
		return nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("querying namespace %s: %w", g.Namespace(), err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO namespaces (name, document, digest, node_count, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			document = excluded.document,
			digest = excluded.digest,
			node_count = excluded.node_count,
			updated_at = excluded.updated_at`,
		g.Namespace(), string(data), digest, g.Len(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("saving namespace %s: %w", g.Namespace(), err)
	}
	log.Debugf("saved %s to %s (%d nodes)", g.Namespace(), s.path, g.Len())
	return nil
}

// StoredDigest returns the digest recorded for namespace.
func (s *SQLiteStore) StoredDigest(ctx context.Context, namespace string) (string, error) {
	var digest string
	err := s.db.QueryRowContext(ctx, "SELECT digest FROM namespaces WHERE name = ?", namespace).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, namespace)
	}
	return digest, err
}

// List returns stored namespace names, sorted.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM namespaces ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning namespace: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes a namespace row.
func (s *SQLiteStore) Delete(ctx context.Context, namespace string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM namespaces WHERE name = ?", namespace)
	if err != nil {
		return fmt.Errorf("deleting namespace %s: %w", namespace, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, namespace)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
