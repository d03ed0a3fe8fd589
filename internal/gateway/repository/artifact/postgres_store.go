package artifact

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var postgresDialect = dialect{
	name: "postgres",
	schema: `
CREATE TABLE IF NOT EXISTS analysis_artifacts (
    id SERIAL PRIMARY KEY,
    run_id TEXT NOT NULL,
    name TEXT NOT NULL,
    content BYTEA NOT NULL DEFAULT ''::bytea,
    content_type TEXT NOT NULL,
    size BIGINT NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    UNIQUE(run_id, name)
);
CREATE INDEX IF NOT EXISTS idx_analysis_artifacts_run_id ON analysis_artifacts(run_id);
`,
	upsert: `
INSERT INTO analysis_artifacts (run_id, name, content, content_type, size, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (run_id, name)
DO UPDATE SET content=EXCLUDED.content, content_type=EXCLUDED.content_type, size=EXCLUDED.size, updated_at=EXCLUDED.updated_at
`,
	get:  `SELECT content, content_type FROM analysis_artifacts WHERE run_id=$1 AND name=$2`,
	list: `SELECT name FROM analysis_artifacts WHERE run_id=$1 ORDER BY name`,
}

// NewPostgresStore opens dsn with the pgx driver and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return openSQLStore(ctx, db, postgresDialect)
}
