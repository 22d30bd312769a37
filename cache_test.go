package httpdispatch

import (
	"testing"
	"time"
)

func TestMemoryCacheAddGetRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	if err := c.Add("k1", []byte("v1"), nil, nil, "etag", "https://example.com/a", CachePriorityNormal); err != nil {
		t.Fatalf("Add: %v", err)
	}
	entry, ok, err := c.Get("k1", true)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(entry.Bytes()) != "v1" {
		t.Fatalf("Bytes() = %q", entry.Bytes())
	}
	if entry.ETag != "etag" {
		t.Fatalf("ETag = %q", entry.ETag)
	}
}

func TestMemoryCacheAddPreservesCreatedAt(t *testing.T) {
	c := NewMemoryCache()
	fixed := time.Unix(1700000000, 0)
	c.now = func() time.Time { return fixed }
	_ = c.Add("k1", []byte("v1"), nil, nil, "", "", CachePriorityNormal)

	later := fixed.Add(time.Minute)
	c.now = func() time.Time { return later }
	_ = c.Add("k1", []byte("v2"), nil, nil, "", "", CachePriorityNormal)

	entry, _, _ := c.Get("k1", true)
	if !entry.CreatedAt.Equal(fixed) {
		t.Fatalf("CreatedAt = %v, want %v (preserved across update)", entry.CreatedAt, fixed)
	}
	if !entry.ModifiedAt.Equal(later) {
		t.Fatalf("ModifiedAt = %v, want %v (refreshed on update)", entry.ModifiedAt, later)
	}
}

func TestMemoryCacheTrimLRUPriorityOrdering(t *testing.T) {
	c := NewMemoryCache()
	base := time.Unix(1700000000, 0)
	items := []struct {
		key      string
		priority CachePriority
		usedAt   time.Duration
	}{
		{"high1", CachePriorityHigh, 1 * time.Second},
		{"normal1", CachePriorityNormal, 2 * time.Second},
		{"low1", CachePriorityLow, 3 * time.Second},
		{"low2", CachePriorityLow, 4 * time.Second},
		{"low3", CachePriorityLow, 5 * time.Second},
		{"high2", CachePriorityHigh, 6 * time.Second},
		{"normal2", CachePriorityNormal, 7 * time.Second},
	}
	for _, it := range items {
		ts := base.Add(it.usedAt)
		c.now = func() time.Time { return ts }
		if err := c.Add(it.key, []byte(it.key), nil, nil, "", "", it.priority); err != nil {
			t.Fatalf("Add %s: %v", it.key, err)
		}
	}

	if err := c.TrimLRU(3); err != nil {
		t.Fatalf("TrimLRU: %v", err)
	}

	size, _ := c.Size(true)
	if size != 3 {
		t.Fatalf("Size after TrimLRU(3) = %d, want 3", size)
	}
	for _, key := range []string{"high1", "high2", "normal2"} {
		if ok, _ := c.Contains(key, true); !ok {
			t.Errorf("expected %s to survive trim", key)
		}
	}
	for _, key := range []string{"low1", "low2", "low3", "normal1"} {
		if ok, _ := c.Contains(key, true); ok {
			t.Errorf("expected %s to be evicted", key)
		}
	}
}

func TestMemoryCacheRemoveAndRemoveAll(t *testing.T) {
	c := NewMemoryCache()
	_ = c.Add("k1", []byte("v"), nil, nil, "", "", CachePriorityNormal)
	_ = c.Add("k2", []byte("v"), nil, nil, "", "", CachePriorityNormal)

	if err := c.Remove("k1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ok, _ := c.Contains("k1", true); ok {
		t.Fatal("k1 should be gone after Remove")
	}

	if err := c.RemoveAll(); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if size, _ := c.Size(true); size != 0 {
		t.Fatalf("Size after RemoveAll = %d, want 0", size)
	}
}

func TestMemoryCacheGetRespectsAllowExpired(t *testing.T) {
	c := NewMemoryCache()
	past := -time.Second
	_ = c.Add("k1", []byte("v"), &past, nil, "", "", CachePriorityNormal)

	if _, ok, _ := c.Get("k1", false); ok {
		t.Fatal("expired entry should not be returned when allowExpired=false")
	}
	if _, ok, _ := c.Get("k1", true); !ok {
		t.Fatal("expired entry should be returned when allowExpired=true")
	}
}
