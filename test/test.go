// Package test exercises a httpdispatch.CacheProvider implementation
// against the contract every backend must satisfy, grounded on
// mchtech-httpcache's test.Cache conformance helper.
package test

import (
	"bytes"
	"testing"
	"time"

	"github.com/mchtech/httpdispatch"
)

// Suite runs the full CacheProvider conformance contract against cache.
func Suite(t *testing.T, cache httpdispatch.CacheProvider) {
	t.Helper()
	testBasicRoundTrip(t, cache)
	testExpiry(t, cache)
	testStaleUse(t, cache)
	testTrimLRUPriority(t, cache)
}

func testBasicRoundTrip(t *testing.T, cache httpdispatch.CacheProvider) {
	t.Helper()
	key := "basic-round-trip"

	if ok, err := cache.Contains(key, true); err != nil || ok {
		t.Fatalf("Contains before Add: ok=%v err=%v", ok, err)
	}

	val := []byte("some bytes")
	if err := cache.Add(key, val, nil, nil, "", "", httpdispatch.CachePriorityNormal); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ok, err := cache.Contains(key, true)
	if err != nil || !ok {
		t.Fatalf("Contains after Add: ok=%v err=%v", ok, err)
	}

	entry, ok, err := cache.Get(key, true)
	if err != nil || !ok {
		t.Fatalf("Get after Add: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(entry.Bytes(), val) {
		t.Fatalf("Get returned %q, want %q", entry.Bytes(), val)
	}

	if err := cache.Remove(key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ok, _ := cache.Contains(key, true); ok {
		t.Fatal("key still present after Remove")
	}
}

func testExpiry(t *testing.T, cache httpdispatch.CacheProvider) {
	t.Helper()
	key := "expiry"
	ttl := -time.Second // already expired
	if err := cache.Add(key, []byte("v"), &ttl, nil, "", "", httpdispatch.CachePriorityNormal); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if ok, err := cache.Contains(key, false); err != nil || ok {
		t.Fatalf("Contains(allowExpired=false) on expired entry: ok=%v err=%v", ok, err)
	}
	if ok, err := cache.Contains(key, true); err != nil || !ok {
		t.Fatalf("Contains(allowExpired=true) on expired entry: ok=%v err=%v", ok, err)
	}
	_ = cache.Remove(key)
}

func testStaleUse(t *testing.T, cache httpdispatch.CacheProvider) {
	t.Helper()
	key := "stale-use"
	ttl := -time.Hour
	maxStale := 30 * time.Minute
	if err := cache.Add(key, []byte("v"), &ttl, &maxStale, "", "", httpdispatch.CachePriorityNormal); err != nil {
		t.Fatalf("Add: %v", err)
	}
	entry, ok, err := cache.Get(key, true)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !entry.StaleUseExceeded(time.Now()) {
		t.Fatal("entry past ttl+max_stale should be StaleUseExceeded")
	}
	_ = cache.Remove(key)
}

// testTrimLRUPriority exercises the spec's eviction scenario: 7 entries are
// added (HIGH, NORMAL, LOW, LOW, LOW, HIGH, NORMAL in that order), then
// TrimLRU(3) must keep exactly the 2 HIGH and 1 NORMAL entries.
func testTrimLRUPriority(t *testing.T, cache httpdispatch.CacheProvider) {
	t.Helper()
	_ = cache.RemoveAll()

	order := []struct {
		key      string
		priority httpdispatch.CachePriority
	}{
		{"p1", httpdispatch.CachePriorityHigh},
		{"p2", httpdispatch.CachePriorityNormal},
		{"p3", httpdispatch.CachePriorityLow},
		{"p4", httpdispatch.CachePriorityLow},
		{"p5", httpdispatch.CachePriorityLow},
		{"p6", httpdispatch.CachePriorityHigh},
		{"p7", httpdispatch.CachePriorityNormal},
	}
	for _, item := range order {
		if err := cache.Add(item.key, []byte(item.key), nil, nil, "", "", item.priority); err != nil {
			t.Fatalf("Add %s: %v", item.key, err)
		}
		time.Sleep(time.Millisecond) // force distinct used_at/modified_at ordering
	}

	if err := cache.TrimLRU(3); err != nil {
		t.Fatalf("TrimLRU: %v", err)
	}

	size, err := cache.Size(true)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 3 {
		t.Fatalf("Size after TrimLRU(3) = %d, want 3", size)
	}

	counts := map[httpdispatch.CachePriority]int{}
	for _, item := range order {
		if ok, _ := cache.Contains(item.key, true); ok {
			counts[item.priority]++
		}
	}
	if counts[httpdispatch.CachePriorityHigh] != 2 {
		t.Fatalf("HIGH survivors = %d, want 2", counts[httpdispatch.CachePriorityHigh])
	}
	if counts[httpdispatch.CachePriorityNormal] != 1 {
		t.Fatalf("NORMAL survivors = %d, want 1", counts[httpdispatch.CachePriorityNormal])
	}
	if counts[httpdispatch.CachePriorityLow] != 0 {
		t.Fatalf("LOW survivors = %d, want 0", counts[httpdispatch.CachePriorityLow])
	}

	_ = cache.RemoveAll()
}
