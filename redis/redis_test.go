package redis

import (
	"os"
	"testing"

	"github.com/mchtech/httpdispatch/test"
)

// TestRedisCache requires a local redis server at localhost:6379; it is
// skipped unless HTTPDISPATCH_REDIS_TEST=1 is set.
func TestRedisCache(t *testing.T) {
	if os.Getenv("HTTPDISPATCH_REDIS_TEST") == "" {
		t.Skip("set HTTPDISPATCH_REDIS_TEST=1 to run against a local redis server")
	}
	cache := New("localhost:6379")
	test.Suite(t, cache)
}
