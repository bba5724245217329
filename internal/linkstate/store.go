package linkstate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/FranksOps/atra/internal/atraurl"
)

const schema = `
CREATE TABLE IF NOT EXISTS link_state (
	url   TEXT PRIMARY KEY,
	state BLOB NOT NULL
);
`

// Store is the durable, conflict-free map from normalized URL to State.
// Concurrent writers race against each other; Upsert resolves the race with
// the merge rule rather than blindly overwriting, so concurrent writers
// converge on the same record regardless of write order.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or attaches to a sqlite-backed link-state store at dsn.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("context: opening link-state store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("context: migrating link-state store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get fetches the current state for url. The zero State and ok=false are
// returned when no record exists yet.
func (s *Store) Get(ctx context.Context, url string) (State, bool, error) {
	var buf []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM link_state WHERE url = ?`, url).Scan(&buf)
	if err == sql.ErrNoRows {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("context: reading link state for %q: %w", url, err)
	}
	st, err := Decode(buf)
	if err != nil {
		return State{}, false, fmt.Errorf("context: decoding link state for %q: %w", url, err)
	}
	return st, true, nil
}

// Upsert applies the merge rule against whatever state is
// currently stored for url, under a store-wide lock so the read-compare-
// write is atomic with respect to other Upserts. This is the Go-idiomatic
// substitute for a native storage-engine merge hook: there is no
// mutation-callback primitive in database/sql, so the lock does the job
// a merge operator would do in a purpose-built store.
func (s *Store) Upsert(ctx context.Context, url string, next State) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok, err := s.Get(ctx, url)
	if err != nil {
		return State{}, err
	}
	merged := next
	if ok {
		merged = merge(existing, next)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO link_state (url, state) VALUES (?, ?)
		 ON CONFLICT(url) DO UPDATE SET state = excluded.state`,
		url, merged.Encode(),
	); err != nil {
		return State{}, fmt.Errorf("context: writing link state for %q: %w", url, err)
	}
	return merged, nil
}

// merge implements the convergence rule:
//  1. If either timestamp is unreadable, this is handled by the caller
//     (both States here are already decoded, so this step is inherent to
//     Upsert/Get failing before merge is reached).
//  2. If next is older than existing, existing wins outright.
//  3. Otherwise next wins, but its LastSignificantKind is raised to the
//     highest significant kind observed so far.
func merge(existing, next State) State {
	if next.Timestamp.Before(existing.Timestamp) {
		slog.Debug("link state merge: keeping newer existing record",
			"existing_kind", existing.Kind, "discarded_kind", next.Kind)
		return existing
	}

	merged := next
	if existing.Kind.IsSignificant() {
		merged.LastSignificantKind = existing.Kind
		if existing.LastSignificantKind.IsSignificant() {
			merged.LastSignificantKind = Max(existing.Kind, existing.LastSignificantKind)
		}
	} else {
		merged.LastSignificantKind = existing.LastSignificantKind
	}
	return merged
}

// UpdateKind is a convenience wrapper: it
// upserts a bare kind transition at the given time with no payload change,
// preserving whatever payload is already stored.
func (s *Store) UpdateKind(ctx context.Context, url string, kind Kind, at time.Time) (State, error) {
	s.mu.Lock()
	existing, ok, err := s.Get(ctx, url)
	s.mu.Unlock()
	if err != nil {
		return State{}, err
	}
	var payload []byte
	var depth = existing.Depth
	if ok {
		payload = existing.Payload
	}
	return s.Upsert(ctx, url, New(kind, at, depth, payload))
}

// CountByKind reports how many URLs currently hold each kind value. It is
// used by the report summary and by metrics, and is a full table scan:
// callers should not call it on a hot path.
func (s *Store) CountByKind(ctx context.Context) (map[Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state FROM link_state`)
	if err != nil {
		return nil, fmt.Errorf("context: scanning link state: %w", err)
	}
	defer rows.Close()

	counts := make(map[Kind]int)
	for rows.Next() {
		var buf []byte
		if err := rows.Scan(&buf); err != nil {
			return nil, fmt.Errorf("context: scanning link state row: %w", err)
		}
		kind, err := ReadKind(buf)
		if err != nil {
			slog.Warn("skipping corrupt link state record", "error", err)
			continue
		}
		counts[kind]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("context: scanning link state: %w", err)
	}
	return counts, nil
}

// HasCrawlableLinks reports whether any stored URL is still in the
// Discovered state. The crawl loop uses this on startup when the durable
// queue is empty: a crash can leave Discovered rows that were never
// persisted to the queue file.
func (s *Store) HasCrawlableLinks(ctx context.Context) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM link_state WHERE substr(state, 1, 1) = ?)`,
		[]byte{byte(Discovered)},
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("context: checking for crawlable links: %w", err)
	}
	return exists == 1, nil
}

// CrawlableLink is one Discovered URL recovered from the store.
type CrawlableLink struct {
	URL   string
	Depth atraurl.Depth
}

// Crawlable returns up to limit URLs currently in the Discovered state
// with their recorded depth triples, used to rebuild the queue on resume.
// limit <= 0 means no limit.
func (s *Store) Crawlable(ctx context.Context, limit int) ([]CrawlableLink, error) {
	query := `SELECT url, state FROM link_state WHERE substr(state, 1, 1) = ?`
	args := []any{[]byte{byte(Discovered)}}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("context: scanning crawlable links: %w", err)
	}
	defer rows.Close()

	var out []CrawlableLink
	for rows.Next() {
		var url string
		var buf []byte
		if err := rows.Scan(&url, &buf); err != nil {
			return nil, fmt.Errorf("context: scanning crawlable link row: %w", err)
		}
		st, err := Decode(buf)
		if err != nil {
			slog.Warn("skipping corrupt link state record", "url", url, "error", err)
			continue
		}
		out = append(out, CrawlableLink{URL: url, Depth: st.Depth})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("context: scanning crawlable links: %w", err)
	}
	return out, nil
}
