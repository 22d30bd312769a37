// Package sqlitecache provides a CacheProvider backed by a local sqlite3
// database, grounded on the literal cache table spec.md §6 names and the
// adewale-rogue_planet pattern of driving database/sql directly against
// mattn/go-sqlite3 rather than through an ORM.
package sqlitecache

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mchtech/httpdispatch"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	key TEXT UNIQUE NOT NULL,
	value_string TEXT,
	value_bytes BLOB,
	created_at INTEGER NOT NULL,
	modified_at INTEGER NOT NULL,
	used_at INTEGER NOT NULL,
	ttl INTEGER,
	max_stale INTEGER,
	source_uri TEXT,
	etag TEXT,
	priority TEXT NOT NULL
)`

// Store is a CacheProvider with sqlite3 storage, using the cache table
// exactly as named in the specification: one row per key, values split
// across value_string/value_bytes so a caller can store either shape.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a sqlite3 database at path and ensures the cache
// table exists.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func durationToNullInt(d *time.Duration) sql.NullInt64 {
	if d == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*d), Valid: true}
}

func nullIntToDuration(n sql.NullInt64) *time.Duration {
	if !n.Valid {
		return nil
	}
	d := time.Duration(n.Int64)
	return &d
}

func (s *Store) Add(key string, value []byte, ttl, maxStale *time.Duration, etag, sourceURI string, priority httpdispatch.CachePriority) error {
	now := time.Now().UnixNano()
	_, err := s.db.Exec(`
		INSERT INTO cache (key, value_bytes, created_at, modified_at, used_at, ttl, max_stale, source_uri, etag, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value_bytes = excluded.value_bytes,
			modified_at = excluded.modified_at,
			used_at = excluded.used_at,
			ttl = excluded.ttl,
			max_stale = excluded.max_stale,
			source_uri = excluded.source_uri,
			etag = excluded.etag,
			priority = excluded.priority
	`, key, value, now, now, now, durationToNullInt(ttl), durationToNullInt(maxStale), sourceURI, etag, priority.String())
	return err
}

func (s *Store) scanRow(row *sql.Row) (*httpdispatch.CacheEntry, bool, error) {
	var (
		k                     string
		valueString           sql.NullString
		valueBytes            []byte
		createdAt, modifiedAt int64
		usedAt                int64
		ttl, maxStale         sql.NullInt64
		sourceURI, etag       sql.NullString
		priorityStr           string
	)
	err := row.Scan(&k, &valueString, &valueBytes, &createdAt, &modifiedAt, &usedAt, &ttl, &maxStale, &sourceURI, &etag, &priorityStr)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	entry := &httpdispatch.CacheEntry{
		Key:        k,
		ByteValue:  valueBytes,
		TTL:        nullIntToDuration(ttl),
		MaxStale:   nullIntToDuration(maxStale),
		ETag:       etag.String,
		SourceURI:  sourceURI.String,
		Priority:   parsePriority(priorityStr),
		CreatedAt:  time.Unix(0, createdAt),
		ModifiedAt: time.Unix(0, modifiedAt),
		UsedAt:     time.Unix(0, usedAt),
	}
	if valueString.Valid {
		entry.HasString = true
		entry.StringValue = valueString.String
	}
	return entry, true, nil
}

func parsePriority(s string) httpdispatch.CachePriority {
	switch s {
	case "HIGH":
		return httpdispatch.CachePriorityHigh
	case "LOW":
		return httpdispatch.CachePriorityLow
	default:
		return httpdispatch.CachePriorityNormal
	}
}

func (s *Store) Get(key string, allowExpired bool) (*httpdispatch.CacheEntry, bool, error) {
	row := s.db.QueryRow(`SELECT key, value_string, value_bytes, created_at, modified_at, used_at, ttl, max_stale, source_uri, etag, priority FROM cache WHERE key = ?`, key)
	entry, ok, err := s.scanRow(row)
	if err != nil || !ok {
		return nil, false, err
	}
	now := time.Now()
	if !allowExpired && entry.Expired(now) {
		return nil, false, nil
	}
	_, _ = s.db.Exec(`UPDATE cache SET used_at = ? WHERE key = ?`, now.UnixNano(), key)
	entry.UsedAt = now
	return entry, true, nil
}

func (s *Store) Size(allowExpired bool) (int, error) {
	if allowExpired {
		var n int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM cache`).Scan(&n)
		return n, err
	}
	now := time.Now().UnixNano()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM cache WHERE ttl IS NULL OR created_at + ttl > ?`, now).Scan(&n)
	return n, err
}

func (s *Store) Contains(key string, allowExpired bool) (bool, error) {
	_, ok, err := s.Get(key, allowExpired)
	return ok, err
}

func (s *Store) Remove(key string) error {
	_, err := s.db.Exec(`DELETE FROM cache WHERE key = ?`, key)
	return err
}

func (s *Store) RemoveAll() error {
	_, err := s.db.Exec(`DELETE FROM cache`)
	return err
}

// TrimLRU deletes rows whose eviction-score rank exceeds cap, compiled to a
// single DELETE ... WHERE id NOT IN (...) using the shared
// (priority desc, used_at desc, modified_at desc) ordering, with priority
// mapped to a sortable integer via a CASE expression.
func (s *Store) TrimLRU(cap int) error {
	if cap <= 0 {
		return nil
	}
	_, err := s.db.Exec(`
		DELETE FROM cache WHERE id NOT IN (
			SELECT id FROM cache
			ORDER BY
				CASE priority WHEN 'HIGH' THEN 2 WHEN 'NORMAL' THEN 1 ELSE 0 END DESC,
				used_at DESC,
				modified_at DESC
			LIMIT ?
		)`, cap)
	return err
}
