package migrate

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunCreatesWatermarkTable(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := NewRunner(db).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, table := range []string{"source_watermarks", "schema_migrations"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT table_name FROM information_schema.tables WHERE table_name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	r := NewRunner(db)

	if err := r.Run(ctx); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := r.Run(ctx); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	v, err := r.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != 1 {
		t.Errorf("Version = %d, want 1", v)
	}
}

func TestVersionOnEmptyDatabase(t *testing.T) {
	db := openTestDB(t)

	v, err := NewRunner(db).Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != 0 {
		t.Errorf("Version = %d, want 0", v)
	}
}
