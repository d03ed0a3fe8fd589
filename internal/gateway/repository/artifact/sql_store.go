package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// dialect holds the statements that differ between SQL backends.
type dialect struct {
	name   string
	schema string
	upsert string
	get    string
	list   string
}

// SQLStore keeps artifacts in a single table of a database/sql database.
type SQLStore struct {
	db *sql.DB
	d  dialect

	schemaMu    sync.Mutex
	schemaReady bool
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	// A failed attempt is retried on the next call.
	if _, err := s.db.ExecContext(ctx, s.d.schema); err != nil {
		return fmt.Errorf("%s: create artifact schema: %w", s.d.name, err)
	}
	s.schemaReady = true
	return nil
}

func openSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, d: d}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Put(ctx context.Context, runID, name string, blob Blob) error {
	runID, name, err := normalizeKey(runID, name)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	data := blob.Data
	if data == nil {
		data = []byte{}
	}
	_, err = s.db.ExecContext(ctx, s.d.upsert, runID, name, data, blob.contentType(), int64(len(data)), time.Now().UTC())
	return err
}

func (s *SQLStore) Get(ctx context.Context, runID, name string) (Blob, error) {
	runID, name, err := normalizeKey(runID, name)
	if err != nil {
		return Blob{}, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return Blob{}, err
	}
	var blob Blob
	err = s.db.QueryRowContext(ctx, s.d.get, runID, name).Scan(&blob.Data, &blob.ContentType)
	if errors.Is(err, sql.ErrNoRows) {
		return Blob{}, ErrNotFound
	}
	if err != nil {
		return Blob{}, err
	}
	return blob, nil
}

func (s *SQLStore) List(ctx context.Context, runID string) ([]string, error) {
	runID, err := normalizeRunID(runID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.d.list, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// GetURL is unsupported: content lives in the database.
func (s *SQLStore) GetURL(context.Context, string, string) (string, error) {
	return "", nil
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
