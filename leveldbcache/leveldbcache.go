// Package leveldbcache provides a CacheProvider backed by
// github.com/syndtr/goleveldb/leveldb.
package leveldbcache

import (
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/mchtech/httpdispatch"
)

// Store is a CacheProvider with leveldb storage. Every value is a gob blob
// produced by httpdispatch.EncodeEntry, so freshness and eviction metadata
// survive the round trip through the KV layer.
type Store struct {
	db *leveldb.DB
}

// New opens (or creates) a leveldb database at path.
func New(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open leveldb handle.
func NewWithDB(db *leveldb.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying leveldb handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Add(key string, value []byte, ttl, maxStale *time.Duration, etag, sourceURI string, priority httpdispatch.CachePriority) error {
	now := time.Now()
	createdAt := now
	if existing, err := s.db.Get([]byte(key), nil); err == nil {
		if prior, derr := httpdispatch.DecodeEntry(existing); derr == nil {
			createdAt = prior.CreatedAt
		}
	}
	entry := &httpdispatch.CacheEntry{
		Key:        key,
		ByteValue:  value,
		TTL:        ttl,
		MaxStale:   maxStale,
		ETag:       etag,
		SourceURI:  sourceURI,
		Priority:   priority,
		CreatedAt:  createdAt,
		ModifiedAt: now,
		UsedAt:     now,
	}
	data, err := httpdispatch.EncodeEntry(entry)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(key), data, nil)
}

func (s *Store) Get(key string, allowExpired bool) (*httpdispatch.CacheEntry, bool, error) {
	data, err := s.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	entry, err := httpdispatch.DecodeEntry(data)
	if err != nil {
		return nil, false, err
	}
	now := time.Now()
	if !allowExpired && entry.Expired(now) {
		return nil, false, nil
	}
	entry.UsedAt = now
	if rewritten, rerr := httpdispatch.EncodeEntry(entry); rerr == nil {
		_ = s.db.Put([]byte(key), rewritten, nil)
	}
	return entry, true, nil
}

func (s *Store) Size(allowExpired bool) (int, error) {
	entries, err := s.all()
	if err != nil {
		return 0, err
	}
	if allowExpired {
		return len(entries), nil
	}
	now := time.Now()
	n := 0
	for _, e := range entries {
		if !e.Expired(now) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Contains(key string, allowExpired bool) (bool, error) {
	_, ok, err := s.Get(key, allowExpired)
	return ok, err
}

func (s *Store) Remove(key string) error {
	return s.db.Delete([]byte(key), nil)
}

func (s *Store) RemoveAll() error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}

func (s *Store) TrimLRU(cap int) error {
	entries, err := s.all()
	if err != nil {
		return err
	}
	if cap <= 0 || len(entries) <= cap {
		return nil
	}
	records := make([]httpdispatch.EvictionRecord, 0, len(entries))
	for k, e := range entries {
		records = append(records, httpdispatch.EvictionRecord{Key: k, Priority: e.Priority, UsedAt: e.UsedAt, ModifiedAt: e.ModifiedAt})
	}
	ordered := httpdispatch.EvictionOrder(records)
	batch := new(leveldb.Batch)
	for _, r := range ordered[cap:] {
		batch.Delete([]byte(r.Key))
	}
	return s.db.Write(batch, nil)
}

func (s *Store) all() (map[string]*httpdispatch.CacheEntry, error) {
	out := make(map[string]*httpdispatch.CacheEntry)
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		entry, err := httpdispatch.DecodeEntry(iter.Value())
		if err != nil {
			continue
		}
		out[string(iter.Key())] = entry
	}
	return out, iter.Error()
}
