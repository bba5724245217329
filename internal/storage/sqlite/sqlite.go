package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FranksOps/atra/internal/crawlresult"
	"github.com/FranksOps/atra/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

// The record column holds the canonical binary encoding of the slim
// result (crawlresult.Encode); status_code, mime and created_at are
// denormalized copies for querying without decoding every row.
const schema = `
CREATE TABLE IF NOT EXISTS crawl_results (
	url TEXT PRIMARY KEY,
	status_code INTEGER NOT NULL,
	mime TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	record BLOB NOT NULL
);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("context: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, result *crawlresult.Result) error {
	query := `
	INSERT INTO crawl_results (url, status_code, mime, created_at, record)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		status_code = excluded.status_code,
		mime = excluded.mime,
		created_at = excluded.created_at,
		record = excluded.record
	`

	_, err := b.db.ExecContext(ctx, query,
		result.URL,
		result.StatusCode,
		result.FileInfo.MIME,
		result.CreatedAt.UnixNano(),
		result.Encode(),
	)

	if err != nil {
		return fmt.Errorf("context: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Get(ctx context.Context, url string) (*crawlresult.Result, error) {
	var record []byte
	err := b.db.QueryRowContext(ctx, `SELECT record FROM crawl_results WHERE url = ?`, url).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	r, err := crawlresult.Decode(record)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	return &r, nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*crawlresult.Result, error) {
	query := `SELECT record FROM crawl_results WHERE 1=1`
	args := []any{}

	if filter.URL != "" {
		query += ` AND url = ?`
		args = append(args, filter.URL)
	}
	if filter.StatusCode != nil {
		query += ` AND status_code = ?`
		args = append(args, *filter.StatusCode)
	}
	if filter.MIME != "" {
		query += ` AND mime = ?`
		args = append(args, filter.MIME)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UnixNano())
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	defer rows.Close()

	var results []*crawlresult.Result
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("context: %w", err)
		}

		r, err := crawlresult.Decode(record)
		if err != nil {
			return nil, fmt.Errorf("context: %w", err)
		}
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
