package sqlitecache

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/mchtech/httpdispatch/test"
)

func TestSQLiteCache(t *testing.T) {
	tempDir, err := ioutil.TempDir("", "httpdispatch")
	if err != nil {
		t.Fatalf("TempDir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	cache, err := New(filepath.Join(tempDir, "cache.db"))
	if err != nil {
		t.Fatalf("New sqlite: %v", err)
	}
	defer cache.Close()

	test.Suite(t, cache)
}
