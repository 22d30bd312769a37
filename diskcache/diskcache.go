// Package diskcache provides a CacheProvider that uses the diskv package to
// persist cache entries as individual files.
package diskcache

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"time"

	"github.com/peterbourgon/diskv/v3"

	"github.com/mchtech/httpdispatch"
)

// Store is a CacheProvider backed by diskv. Each value on disk is a gob
// blob produced by httpdispatch.EncodeEntry.
type Store struct {
	d *diskv.Diskv
}

// New returns a new Store that will store files in basePath.
func New(basePath string) *Store {
	return &Store{
		d: diskv.New(diskv.Options{
			BasePath:     basePath,
			CacheSizeMax: 100 * 1024 * 1024,
		}),
	}
}

// NewWithDiskv returns a new Store using the provided Diskv as underlying
// storage.
func NewWithDiskv(d *diskv.Diskv) *Store {
	return &Store{d: d}
}

func keyToFilename(key string) string {
	h := md5.New()
	_, _ = io.WriteString(h, key)
	return hex.EncodeToString(h.Sum(nil))
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
	return s.d.Write(keyToFilename(key), data)
}

func (s *Store) Get(key string, allowExpired bool) (*httpdispatch.CacheEntry, bool, error) {
	fname := keyToFilename(key)
	if !s.d.Has(fname) {
		return nil, false, nil
	}
	data, err := s.d.Read(fname)
	if err != nil {
		return nil, false, nil
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
		_ = s.d.Write(fname, rewritten)
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
	fname := keyToFilename(key)
	if !s.d.Has(fname) {
		return nil
	}
	return s.d.Erase(fname)
}

func (s *Store) RemoveAll() error {
	return s.d.EraseAll()
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
	for fname, e := range entries {
		records = append(records, httpdispatch.EvictionRecord{Key: fname, Priority: e.Priority, UsedAt: e.UsedAt, ModifiedAt: e.ModifiedAt})
	}
	ordered := httpdispatch.EvictionOrder(records)
	for _, r := range ordered[cap:] {
		if err := s.d.Erase(r.Key); err != nil {
			return err
		}
	}
	return nil
}

// all reads every entry currently on disk, keyed by its diskv filename.
func (s *Store) all() (map[string]*httpdispatch.CacheEntry, error) {
	out := make(map[string]*httpdispatch.CacheEntry)
	cancel := make(chan struct{})
	defer close(cancel)
	for fname := range s.d.Keys(cancel) {
		data, err := s.d.Read(fname)
		if err != nil {
			continue
		}
		entry, err := httpdispatch.DecodeEntry(data)
		if err != nil {
			continue
		}
		out[fname] = entry
	}
	return out, nil
}
