// Package memcache provides a CacheProvider that uses gomemcache to store
// cached entries in a memcache server.
package memcache

import (
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/mchtech/httpdispatch"
)

// Store is a CacheProvider that caches entries in a memcache server.
// Memcache itself has no key-enumeration command, so Store keeps an
// in-process index of keys it has written, used only by Size/RemoveAll/
// TrimLRU; a key evicted by memcache's own LRU without Store's
// involvement will linger in the index until the next Get finds it gone.
type Store struct {
	*memcache.Client

	mu   sync.Mutex
	keys map[string]struct{}
}

func cacheKey(key string) string {
	return "httpdispatch:" + key
}

// New returns a new Store using the provided memcache server(s) with equal
// weight. If a server is listed multiple times, it gets a proportional
// amount of weight.
func New(server ...string) *Store {
	return NewWithClient(memcache.New(server...))
}

// NewWithClient returns a new Store with the given memcache client.
func NewWithClient(client *memcache.Client) *Store {
	return &Store{Client: client, keys: make(map[string]struct{})}
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
	if err := s.Client.Set(&memcache.Item{Key: cacheKey(key), Value: data}); err != nil {
		return err
	}
	s.mu.Lock()
	s.keys[key] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(key string, allowExpired bool) (*httpdispatch.CacheEntry, bool, error) {
	item, err := s.Client.Get(cacheKey(key))
	if err == memcache.ErrCacheMiss {
		s.mu.Lock()
		delete(s.keys, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	entry, err := httpdispatch.DecodeEntry(item.Value)
	if err != nil {
		return nil, false, err
	}
	now := time.Now()
	if !allowExpired && entry.Expired(now) {
		return nil, false, nil
	}
	entry.UsedAt = now
	if rewritten, rerr := httpdispatch.EncodeEntry(entry); rerr == nil {
		_ = s.Client.Set(&memcache.Item{Key: cacheKey(key), Value: rewritten})
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
	err := s.Client.Delete(cacheKey(key))
	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()
	if err == memcache.ErrCacheMiss {
		return nil
	}
	return err
}

func (s *Store) RemoveAll() error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	s.keys = make(map[string]struct{})
	s.mu.Unlock()
	for _, k := range keys {
		if err := s.Client.Delete(cacheKey(k)); err != nil && err != memcache.ErrCacheMiss {
			return err
		}
	}
	return nil
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
	for _, r := range ordered[cap:] {
		if err := s.Remove(r.Key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) all() (map[string]*httpdispatch.CacheEntry, error) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	out := make(map[string]*httpdispatch.CacheEntry)
	for _, k := range keys {
		if entry, ok, err := s.Get(k, true); err == nil && ok {
			out[k] = entry
		}
	}
	return out, nil
}
