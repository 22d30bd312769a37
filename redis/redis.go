// Package redis provides a CacheProvider backed by a redis server via
// github.com/gomodule/redigo.
package redis

import (
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/mchtech/httpdispatch"
)

// Store is a CacheProvider that caches entries in redis using a connection
// pool, grounded on mchtech-httpcache's redis package.
type Store struct {
	pool *redis.Pool
}

func cacheKey(key string) string {
	return "httpdispatch:" + key
}

// NewWithPool returns a Store using the given connection pool.
func NewWithPool(pool *redis.Pool) *Store {
	return &Store{pool: pool}
}

// New returns a Store dialing a single redis server at addr on demand.
func New(addr string) *Store {
	pool := &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
	}
	return NewWithPool(pool)
}

func (s *Store) Add(key string, value []byte, ttl, maxStale *time.Duration, etag, sourceURI string, priority httpdispatch.CachePriority) error {
	conn := s.pool.Get()
	defer conn.Close()

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
	_, err = conn.Do("SET", cacheKey(key), data)
	if err != nil {
		return err
	}
	_, err = conn.Do("SADD", s.indexKey(), key)
	return err
}

func (s *Store) indexKey() string {
	return "httpdispatch:index"
}

func (s *Store) Get(key string, allowExpired bool) (*httpdispatch.CacheEntry, bool, error) {
	conn := s.pool.Get()
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", cacheKey(key)))
	if err == redis.ErrNil {
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
		_, _ = conn.Do("SET", cacheKey(key), rewritten)
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
	conn := s.pool.Get()
	defer conn.Close()
	if _, err := conn.Do("DEL", cacheKey(key)); err != nil {
		return err
	}
	_, err := conn.Do("SREM", s.indexKey(), key)
	return err
}

func (s *Store) RemoveAll() error {
	keys, err := s.indexKeys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.Remove(k); err != nil {
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

func (s *Store) indexKeys() ([]string, error) {
	conn := s.pool.Get()
	defer conn.Close()
	return redis.Strings(conn.Do("SMEMBERS", s.indexKey()))
}

func (s *Store) all() (map[string]*httpdispatch.CacheEntry, error) {
	keys, err := s.indexKeys()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*httpdispatch.CacheEntry)
	for _, k := range keys {
		if entry, ok, err := s.Get(k, true); err == nil && ok {
			out[k] = entry
		}
	}
	return out, nil
}
