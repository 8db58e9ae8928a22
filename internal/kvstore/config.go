package kvstore

import (
	"fmt"

	"github.com/dharter89/GAAP/internal/config"
)

// Namespaces used in the SQLite backend.
const (
	LedgerNamespace = "verified_issues"
	VendorNamespace = "vendor_accounts"
)

// Stores holds the ledger and vendor memory backends chosen by
// storage.backend.
type Stores struct {
	Ledger  Store
	Vendors Store
	db      *SQLiteDB
}

// Close releases the SQLite connection, if any.
func (s *Stores) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// Open builds the configured backends.
func Open(cfg *config.Config) (*Stores, error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return &Stores{Ledger: NewMemory(nil), Vendors: NewMemory(nil)}, nil
	case config.StorageSQLite:
		db, err := OpenSQLite(cfg.Storage.SQLiteFile)
		if err != nil {
			return nil, err
		}
		return &Stores{Ledger: db.Namespace(LedgerNamespace), Vendors: db.Namespace(VendorNamespace), db: db}, nil
	case config.StorageFile, "":
		return &Stores{Ledger: NewFile(cfg.LedgerPath()), Vendors: NewFile(cfg.VendorPath())}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
