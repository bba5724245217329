package postgres

import (
	"context"
	"fmt"

	"github.com/FranksOps/atra/internal/crawlresult"
	"github.com/FranksOps/atra/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

// Same layout as the sqlite backend: the canonical binary record plus
// denormalized query columns.
const schema = `
CREATE TABLE IF NOT EXISTS crawl_results (
	url TEXT PRIMARY KEY,
	status_code INTEGER NOT NULL,
	mime TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	record BYTEA NOT NULL
);
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("context: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, result *crawlresult.Result) error {
	query := `
	INSERT INTO crawl_results (url, status_code, mime, created_at, record)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (url) DO UPDATE SET
		status_code = EXCLUDED.status_code,
		mime = EXCLUDED.mime,
		created_at = EXCLUDED.created_at,
		record = EXCLUDED.record
	`

	_, err := b.pool.Exec(ctx, query,
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

func (b *postgresBackend) Get(ctx context.Context, url string) (*crawlresult.Result, error) {
	var record []byte
	err := b.pool.QueryRow(ctx, `SELECT record FROM crawl_results WHERE url = $1`, url).Scan(&record)
	if err == pgx.ErrNoRows {
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

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*crawlresult.Result, error) {
	query := `SELECT record FROM crawl_results WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.URL != "" {
		query += fmt.Sprintf(` AND url = $%d`, paramCount)
		args = append(args, filter.URL)
		paramCount++
	}
	if filter.StatusCode != nil {
		query += fmt.Sprintf(` AND status_code = $%d`, paramCount)
		args = append(args, *filter.StatusCode)
		paramCount++
	}
	if filter.MIME != "" {
		query += fmt.Sprintf(` AND mime = $%d`, paramCount)
		args = append(args, filter.MIME)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, filter.Since.UnixNano())
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
		paramCount++
	}

	rows, err := b.pool.Query(ctx, query, args...)
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

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
