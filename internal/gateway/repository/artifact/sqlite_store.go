package artifact

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
CREATE TABLE IF NOT EXISTS analysis_artifacts (
    run_id TEXT NOT NULL,
    name TEXT NOT NULL,
    content BLOB NOT NULL,
    content_type TEXT NOT NULL,
    size INTEGER NOT NULL,
    updated_at TIMESTAMP,
    PRIMARY KEY (run_id, name)
);
`,
	upsert: `
INSERT INTO analysis_artifacts (run_id, name, content, content_type, size, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (run_id, name)
DO UPDATE SET content=excluded.content, content_type=excluded.content_type, size=excluded.size, updated_at=excluded.updated_at
`,
	get:  `SELECT content, content_type FROM analysis_artifacts WHERE run_id=? AND name=?`,
	list: `SELECT name FROM analysis_artifacts WHERE run_id=? ORDER BY name`,
}

// NewSQLiteStore opens (creating if needed) a SQLite database file.
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection avoids SQLITE_BUSY between concurrent writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return openSQLStore(ctx, db, sqliteDialect)
}
