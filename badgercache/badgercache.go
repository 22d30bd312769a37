// Package badgercache provides a CacheProvider backed by
// github.com/dgraph-io/badger/v2.
package badgercache

import (
	"time"

	badger "github.com/dgraph-io/badger/v2"

	"github.com/mchtech/httpdispatch"
)

// Store is a CacheProvider with badger storage.
type Store struct {
	db *badger.DB
}

// New opens (or creates) a badger database at path.
func New(path string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(path))
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open badger handle.
func NewWithDB(db *badger.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying badger handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Add(key string, value []byte, ttl, maxStale *time.Duration, etag, sourceURI string, priority httpdispatch.CachePriority) error {
	now := time.Now()
	createdAt := now
	if existing, ok, _ := s.Get(key, true); ok {
		createdAt = existing.CreatedAt
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
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *Store) Get(key string, allowExpired bool) (*httpdispatch.CacheEntry, bool, error) {
	var entry *httpdispatch.CacheEntry
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		e, err := httpdispatch.DecodeEntry(data)
		if err != nil {
			return err
		}
		now := time.Now()
		if !allowExpired && e.Expired(now) {
			return nil
		}
		e.UsedAt = now
		if rewritten, rerr := httpdispatch.EncodeEntry(e); rerr == nil {
			_ = txn.Set([]byte(key), rewritten)
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return entry, entry != nil, nil
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
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (s *Store) RemoveAll() error {
	return s.db.DropAll()
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
	return s.db.Update(func(txn *badger.Txn) error {
		for _, r := range ordered[cap:] {
			if err := txn.Delete([]byte(r.Key)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) all() (map[string]*httpdispatch.CacheEntry, error) {
	out := make(map[string]*httpdispatch.CacheEntry)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entry, err := httpdispatch.DecodeEntry(data)
			if err != nil {
				continue
			}
			out[string(item.Key())] = entry
		}
		return nil
	})
	return out, err
}
