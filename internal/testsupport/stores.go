package testsupport

import (
	"testing"

	"github.com/dharter89/GAAP/internal/config"
	"github.com/dharter89/GAAP/internal/kvstore"
)

// MustOpenStores opens the configured ledger and vendor stores for tests and
// registers cleanup.
func MustOpenStores(t testing.TB, cfg *config.Config) *kvstore.Stores {
	t.Helper()

	stores, err := kvstore.Open(cfg)
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = stores.Close()
	})
	return stores
}
