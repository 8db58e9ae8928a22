package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeGemini()
	c.normalizeAudit()
	c.Verification.Identity = strings.ToLower(strings.TrimSpace(c.Verification.Identity))
	if c.Verification.Identity == "" {
		c.Verification.Identity = defaultIdentity
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.Vendors.VendorColumns = normalizeList(c.Vendors.VendorColumns, defaultVendorColumns)
	c.Vendors.AccountColumns = normalizeList(c.Vendors.AccountColumns, defaultAccountColumns)
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultLLMProvider
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.RetryAttempts <= 0 {
		c.LLM.RetryAttempts = defaultLLMRetryAttempts
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeGemini() {
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	if c.Gemini.APIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Gemini.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("GOOGLE_API_KEY"); ok {
			c.Gemini.APIKey = strings.TrimSpace(value)
		}
	}
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultGeminiModel
	}
	c.Gemini.Project = strings.TrimSpace(c.Gemini.Project)
	if c.Gemini.Project == "" {
		if value, ok := os.LookupEnv("GOOGLE_CLOUD_PROJECT"); ok {
			c.Gemini.Project = strings.TrimSpace(value)
		}
	}
	c.Gemini.Location = strings.TrimSpace(c.Gemini.Location)
	if c.Gemini.Location == "" {
		c.Gemini.Location = defaultGeminiLocation
	}
	c.Gemini.BaseURL = strings.TrimSpace(c.Gemini.BaseURL)
}

func (c *Config) normalizeAudit() {
	c.Audit.Format = strings.ToLower(strings.TrimSpace(c.Audit.Format))
	if c.Audit.Format == "" {
		c.Audit.Format = defaultAuditFormat
	}
	c.Audit.StatementType = strings.TrimSpace(c.Audit.StatementType)
	if c.Audit.StatementType == "" {
		c.Audit.StatementType = defaultStatementType
	}
	if c.Audit.MaxRows == 0 {
		c.Audit.MaxRows = defaultMaxRows
	}
	if c.Audit.HeaderMinCells == 0 {
		c.Audit.HeaderMinCells = defaultHeaderMinCells
	}
	if c.Audit.MaxUploadMiB <= 0 {
		c.Audit.MaxUploadMiB = defaultMaxUploadMiB
	}
	c.Audit.FilterKeywords = normalizeList(c.Audit.FilterKeywords, defaultFilterKeywords)
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	var err error
	if c.Storage.LedgerFile, err = c.statePath(c.Storage.LedgerFile, defaultLedgerFile); err != nil {
		return fmt.Errorf("storage.ledger_file: %w", err)
	}
	if c.Storage.VendorFile, err = c.statePath(c.Storage.VendorFile, defaultVendorFile); err != nil {
		return fmt.Errorf("storage.vendor_file: %w", err)
	}
	if c.Storage.SQLiteFile, err = c.statePath(c.Storage.SQLiteFile, defaultSQLiteFile); err != nil {
		return fmt.Errorf("storage.sqlite_file: %w", err)
	}
	return nil
}

// statePath resolves bare file names against paths.state_dir.
func (c *Config) statePath(value, fallback string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if !strings.HasPrefix(value, "~") && !filepath.IsAbs(value) {
		value = filepath.Join(c.Paths.StateDir, value)
	}
	return expandPath(value)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// normalizeList lowercases, trims, and de-duplicates values, falling back to
// defaults when nothing usable remains.
func normalizeList(values, defaults []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.Join(strings.Fields(value), " "))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	if len(out) == 0 {
		return append([]string(nil), defaults...)
	}
	return out
}
