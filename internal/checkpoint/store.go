// Package checkpoint persists source watermarks in DuckDB so a restarted
// collector resumes where it stopped instead of re-reading its lookback.
package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/tinytelemetry/podtrail/internal/checkpoint/migrate"
	"github.com/tinytelemetry/podtrail/internal/model"
)

// Store holds the latest watermark of every tracked source.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// Open opens or creates the checkpoint database. An empty path uses an
// in-memory database.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	if err := migrate.NewRunner(db).Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate checkpoint db: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file, empty for in-memory stores.
func (s *Store) Path() string {
	return s.dbPath
}

// Load returns all persisted sources ordered by identity.
func (s *Store) Load(ctx context.Context) ([]model.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace, pod, container, selector, first_timestamp, last_timestamp
		FROM source_watermarks
		ORDER BY namespace, pod, container`)
	if err != nil {
		return nil, fmt.Errorf("query watermarks: %w", err)
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		var src model.Source
		if err := rows.Scan(&src.ID.Namespace, &src.ID.Pod, &src.ID.Container,
			&src.Selector, &src.FirstTimestamp, &src.LastTimestamp); err != nil {
			return nil, fmt.Errorf("scan watermark: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// Save replaces the stored set with sources. Sources no longer active are
// forgotten.
func (s *Store) Save(ctx context.Context, sources []model.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkpoint: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM source_watermarks"); err != nil {
		return fmt.Errorf("clear watermarks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO source_watermarks
			(namespace, pod, container, selector, first_timestamp, last_timestamp, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, current_timestamp)`)
	if err != nil {
		return fmt.Errorf("prepare watermark insert: %w", err)
	}
	defer stmt.Close()

	for _, src := range sources {
		if _, err := stmt.ExecContext(ctx, src.ID.Namespace, src.ID.Pod, src.ID.Container,
			src.Selector, src.FirstTimestamp, src.LastTimestamp); err != nil {
			return fmt.Errorf("insert watermark %s: %w", src.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}
