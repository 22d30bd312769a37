package test_test

import (
	"testing"

	"github.com/mchtech/httpdispatch"
	"github.com/mchtech/httpdispatch/test"
)

func TestMemoryCache(t *testing.T) {
	test.Suite(t, httpdispatch.NewMemoryCache())
}
