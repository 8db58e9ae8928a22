package config

const (
	// ProviderOpenRouter selects the OpenRouter-compatible chat client.
	ProviderOpenRouter = "openrouter"
	// ProviderGemini selects the Google GenAI client.
	ProviderGemini = "gemini"

	// StorageFile stores each document as an indented JSON file.
	StorageFile = "file"
	// StorageSQLite stores all documents in one SQLite database.
	StorageSQLite = "sqlite"
	// StorageMemory keeps state in process only.
	StorageMemory = "memory"
)

const (
	defaultConfigPath           = "~/.config/gaapcheck/config.toml"
	defaultStateDir             = "~/.local/share/gaapcheck"
	defaultLogDir               = "~/.local/share/gaapcheck/logs"
	defaultAPIBind              = "127.0.0.1:8501"
	defaultLLMProvider          = ProviderOpenRouter
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "google/gemini-2.5-pro"
	defaultLLMReferer           = "https://github.com/dharter89/GAAP"
	defaultLLMTitle             = "gaapcheck"
	defaultLLMTimeoutSeconds    = 120
	defaultLLMRetryAttempts     = 2
	defaultGeminiModel          = "gemini-2.5-pro"
	defaultGeminiLocation       = "us-central1"
	defaultAuditFormat          = "loose"
	defaultStatementType        = "General Ledger"
	defaultMaxRows              = 50
	defaultHeaderMinCells       = 3
	defaultHeaderFallbackRow    = 6
	defaultMaxUploadMiB         = 25
	defaultIdentity             = "text"
	defaultStorageBackend       = StorageFile
	defaultLedgerFile           = "verified_issues.json"
	defaultVendorFile           = "vendor_accounts.json"
	defaultSQLiteFile           = "gaapcheck.db"
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

var (
	defaultFilterKeywords = []string{"total", "header", "subtotal"}
	defaultVendorColumns  = []string{"vendor", "vendor name", "payee", "supplier", "name"}
	defaultAccountColumns = []string{"account", "account name", "gl account", "split"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		LLM: LLM{
			Provider:       defaultLLMProvider,
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			RetryAttempts:  defaultLLMRetryAttempts,
		},
		Gemini: Gemini{
			Model:    defaultGeminiModel,
			Location: defaultGeminiLocation,
		},
		Audit: Audit{
			Format:            defaultAuditFormat,
			StatementType:     defaultStatementType,
			MaxRows:           defaultMaxRows,
			HeaderMinCells:    defaultHeaderMinCells,
			HeaderFallbackRow: defaultHeaderFallbackRow,
			FilterKeywords:    append([]string(nil), defaultFilterKeywords...),
			MaxUploadMiB:      defaultMaxUploadMiB,
		},
		Verification: Verification{
			Identity: defaultIdentity,
		},
		Storage: Storage{
			Backend:    defaultStorageBackend,
			LedgerFile: defaultLedgerFile,
			VendorFile: defaultVendorFile,
			SQLiteFile: defaultSQLiteFile,
		},
		Vendors: Vendors{
			VendorColumns:  append([]string(nil), defaultVendorColumns...),
			AccountColumns: append([]string(nil), defaultAccountColumns...),
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			AuditCompleted: true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
