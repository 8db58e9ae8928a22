package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dharter89/GAAP/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// State and log directories exist, storage uses the in-memory backend and
// the OpenRouter key is a placeholder. Options are applied last.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.LLM.APIKey = "test"
	cfgVal.Storage.Backend = config.StorageMemory
	cfgVal.Storage.LedgerFile = filepath.Join(cfgVal.Paths.StateDir, "verified_issues.json")
	cfgVal.Storage.VendorFile = filepath.Join(cfgVal.Paths.StateDir, "vendor_accounts.json")
	cfgVal.Storage.SQLiteFile = filepath.Join(cfgVal.Paths.StateDir, "gaapcheck.db")
	for _, dir := range []string{cfgVal.Paths.StateDir, cfgVal.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStorage selects the storage backend ("memory", "file" or "sqlite").
func WithStorage(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Backend = backend
	}
}

// WithLLMServer points the OpenRouter client at a test server.
func WithLLMServer(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.Provider = config.ProviderOpenRouter
		b.cfg.LLM.BaseURL = baseURL
		b.cfg.LLM.RetryAttempts = 1
	}
}

// WithAuditFormat sets audit.format ("loose" or "strict").
func WithAuditFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Audit.Format = format
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
