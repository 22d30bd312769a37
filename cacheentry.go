package httpdispatch

import (
	"bytes"
	"encoding/gob"
	"time"
)

// CachePriority is the three-level priority a cache entry is written with;
// it drives eviction order under trim_lru (higher priority survives).
type CachePriority int

const (
	CachePriorityLow CachePriority = iota
	CachePriorityNormal
	CachePriorityHigh
)

func (p CachePriority) String() string {
	switch p {
	case CachePriorityHigh:
		return "HIGH"
	case CachePriorityNormal:
		return "NORMAL"
	default:
		return "LOW"
	}
}

// CacheEntry holds one cached value plus the freshness metadata needed to
// decide whether it can still be served. Exactly one of StringValue /
// ByteValue is populated.
type CacheEntry struct {
	Key         string
	StringValue string
	ByteValue   []byte
	HasString   bool // true iff StringValue is the populated variant

	TTL       *time.Duration // nil means "no expiry"
	MaxStale  *time.Duration // nil means "no stale use once expired"
	ETag      string
	SourceURI string
	Priority  CachePriority

	CreatedAt  time.Time
	ModifiedAt time.Time
	UsedAt     time.Time
}

// saturatingAdd adds d to t, clamping to the maximum representable time
// instead of overflowing, so expiry/stale-use checks never wrap around.
func saturatingAdd(t time.Time, d time.Duration) time.Time {
	const maxDuration = time.Duration(1<<63 - 1)
	if d > 0 && maxDuration-d < time.Duration(t.UnixNano()) {
		return time.Unix(0, int64(maxDuration))
	}
	sum := t.Add(d)
	if sum.Before(t) {
		// Overflowed past the representable range; saturate.
		return time.Unix(0, int64(maxDuration))
	}
	return sum
}

// Expired reports whether the entry's TTL has elapsed as of now. An entry
// with no TTL never expires.
func (e *CacheEntry) Expired(now time.Time) bool {
	if e.TTL == nil {
		return false
	}
	return saturatingAdd(e.CreatedAt, *e.TTL).Before(now)
}

// StaleUseExceeded reports whether the entry is both expired and past its
// max-stale grace window, making it no longer eligible to be served under
// any circumstance. An entry that isn't expired is never stale-use-
// exceeded. An expired entry with no MaxStale is immediately stale-use-
// exceeded (it has no grace window at all).
func (e *CacheEntry) StaleUseExceeded(now time.Time) bool {
	if !e.Expired(now) {
		return false
	}
	if e.MaxStale == nil {
		return true
	}
	deadline := saturatingAdd(saturatingAdd(e.CreatedAt, *e.TTL), *e.MaxStale)
	return deadline.Before(now)
}

// Bytes returns the entry's payload regardless of which of
// StringValue/ByteValue was populated.
func (e *CacheEntry) Bytes() []byte {
	if e.HasString {
		return []byte(e.StringValue)
	}
	return e.ByteValue
}

// gobEntry is CacheEntry's on-the-wire shape for backends that can only
// store opaque blobs (leveldb, badger, memcache, redis, diskv). TTL and
// MaxStale are flattened to nanosecond counts with a has-flag so gob
// doesn't need to round-trip *time.Duration.
type gobEntry struct {
	Key         string
	StringValue string
	ByteValue   []byte
	HasString   bool
	HasTTL      bool
	TTLNanos    int64
	HasMaxStale bool
	MaxStaleNs  int64
	ETag        string
	SourceURI   string
	Priority    CachePriority
	CreatedAt   int64
	ModifiedAt  int64
	UsedAt      int64
}

// EncodeEntry renders e as a self-contained blob a CacheProvider backend
// can store verbatim under its key and later hand back to DecodeEntry.
func EncodeEntry(e *CacheEntry) ([]byte, error) {
	g := gobEntry{
		Key:         e.Key,
		StringValue: e.StringValue,
		ByteValue:   e.ByteValue,
		HasString:   e.HasString,
		ETag:        e.ETag,
		SourceURI:   e.SourceURI,
		Priority:    e.Priority,
		CreatedAt:   e.CreatedAt.UnixNano(),
		ModifiedAt:  e.ModifiedAt.UnixNano(),
		UsedAt:      e.UsedAt.UnixNano(),
	}
	if e.TTL != nil {
		g.HasTTL = true
		g.TTLNanos = int64(*e.TTL)
	}
	if e.MaxStale != nil {
		g.HasMaxStale = true
		g.MaxStaleNs = int64(*e.MaxStale)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&g); err != nil {
		return nil, &CacheError{Op: "encode", Cause: err}
	}
	return buf.Bytes(), nil
}

// DecodeEntry reverses EncodeEntry.
func DecodeEntry(data []byte) (*CacheEntry, error) {
	var g gobEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return nil, &CacheError{Op: "decode", Cause: err}
	}
	e := &CacheEntry{
		Key:         g.Key,
		StringValue: g.StringValue,
		ByteValue:   g.ByteValue,
		HasString:   g.HasString,
		ETag:        g.ETag,
		SourceURI:   g.SourceURI,
		Priority:    g.Priority,
		CreatedAt:   time.Unix(0, g.CreatedAt),
		ModifiedAt:  time.Unix(0, g.ModifiedAt),
		UsedAt:      time.Unix(0, g.UsedAt),
	}
	if g.HasTTL {
		ttl := time.Duration(g.TTLNanos)
		e.TTL = &ttl
	}
	if g.HasMaxStale {
		ms := time.Duration(g.MaxStaleNs)
		e.MaxStale = &ms
	}
	return e, nil
}
