// Package httpcache implements the single-file embedded key-value store
// keyed by URL with a global TTL, writers
// serialized by the store.
package httpcache

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultTTL is the global cache TTL when none is configured.
const DefaultTTL = 3600 * time.Second

// Entry is one cached HTTP response.
type Entry struct {
	URL      string
	Status   int
	Text     string
	StoredTS float64
}

// Store is a sqlite-backed cache keyed by URL. All writes are serialized
// through a mutex in addition to sqlite's own locking, matching the store's
// "concurrent writers are serialized by the store".
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	ttl time.Duration
}

// Open creates or opens the cache database at path.
func Open(path string, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("httpcache: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS http_cache (
		url TEXT PRIMARY KEY,
		status INTEGER NOT NULL,
		text TEXT NOT NULL,
		stored_ts REAL NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("httpcache: create table: %w", err)
	}
	return &Store{db: db, ttl: ttl}, nil
}

// openWithDB wraps an already-open *sql.DB in a Store without creating the
// schema, so tests can drive Store's query/exec error paths against a mock
// driver that would reject the real CREATE TABLE statement.
func openWithDB(db *sql.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, ttl: ttl}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached entry for url if present and not expired relative
// to now, and whether it was a hit.
func (s *Store) Get(url string, now time.Time) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var e Entry
	row := s.db.QueryRow(`SELECT url, status, text, stored_ts FROM http_cache WHERE url = ?`, url)
	if err := row.Scan(&e.URL, &e.Status, &e.Text, &e.StoredTS); err != nil {
		return Entry{}, false
	}
	age := now.Sub(time.Unix(int64(e.StoredTS), 0))
	if age > s.ttl {
		return Entry{}, false
	}
	return e, true
}

// Put upserts the entry for url, stamping stored_ts with now.
func (s *Store) Put(url string, status int, text string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO http_cache(url, status, text, stored_ts) VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET status = excluded.status, text = excluded.text, stored_ts = excluded.stored_ts`,
		url, status, text, float64(now.Unix()))
	if err != nil {
		return fmt.Errorf("httpcache: put %s: %w", url, err)
	}
	return nil
}
