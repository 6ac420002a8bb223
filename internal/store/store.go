package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"

	"github.com/sirupsen/logrus"
)

// Store wraps the two connection pools a single SQLite database file is
// opened with: one writer, serialized to avoid SQLITE_BUSY, and a small
// reader pool for concurrent lookups. Both point at the same file in WAL
// mode so readers never block on the writer's in-flight transaction.
type Store struct {
	writeDB *sql.DB
	readDB  *sql.DB
	log     *logrus.Entry
}

// Open creates the database file's parent directory if needed, opens the
// write and read pools, and applies the schema.
func Open(ctx context.Context, path string, log *logrus.Entry) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	writeDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open writer: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open reader pool: %w", err)
	}
	readDB.SetMaxOpenConns(4)

	if _, err := writeDB.ExecContext(ctx, schema); err != nil {
		writeDB.Close()
		readDB.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	log.WithField("path", path).Info("store opened")

	return &Store{writeDB: writeDB, readDB: readDB, log: log}, nil
}

// Close releases both connection pools.
func (s *Store) Close() error {
	werr := s.writeDB.Close()
	rerr := s.readDB.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Writer exposes the single-connection handle for statements that mutate
// state. Callers should not hold it across unrelated I/O.
func (s *Store) Writer() *sql.DB { return s.writeDB }

// Reader exposes the pooled read-only handle for queries.
func (s *Store) Reader() *sql.DB { return s.readDB }
