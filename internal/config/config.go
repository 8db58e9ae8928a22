package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
}

// LLM contains the provider selection and OpenRouter-compatible connection settings.
type LLM struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Gemini contains Google GenAI settings used when llm.provider is "gemini".
type Gemini struct {
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
	Vertex   bool   `toml:"vertex"`
	Project  string `toml:"project"`
	Location string `toml:"location"`
	BaseURL  string `toml:"base_url"`
}

// Audit contains normalization and extraction settings for an audit run.
type Audit struct {
	Format            string   `toml:"format"`
	StatementType     string   `toml:"statement_type"`
	MaxRows           int      `toml:"max_rows"`
	HeaderMinCells    int      `toml:"header_min_cells"`
	HeaderFallbackRow int      `toml:"header_fallback_row"`
	FilterKeywords    []string `toml:"filter_keywords"`
	StrictFilter      bool     `toml:"strict_filter"`
	SectionOnly       bool     `toml:"section_only"`
	MaxUploadMiB      int      `toml:"max_upload_mib"`
}

// Verification contains verification ledger settings.
type Verification struct {
	// Identity selects how violations are keyed: "text" or "index".
	Identity string `toml:"identity"`
}

// Storage selects the backend for the ledger and vendor memory documents.
type Storage struct {
	Backend    string `toml:"backend"`
	LedgerFile string `toml:"ledger_file"`
	VendorFile string `toml:"vendor_file"`
	SQLiteFile string `toml:"sqlite_file"`
}

// Vendors contains the column name candidates used for vendor detection.
type Vendors struct {
	VendorColumns  []string `toml:"vendor_columns"`
	AccountColumns []string `toml:"account_columns"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	AuditCompleted bool   `toml:"audit_completed"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for gaapcheck.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories, API bind address
//   - LLM: provider selection and OpenRouter connection settings
//   - Gemini: Google GenAI / Vertex AI settings
//   - Audit: normalization limits and response format
//   - Verification: violation identity strategy
//   - Storage: ledger and vendor memory backend
//   - Vendors: vendor/account column candidates
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	Gemini        Gemini        `toml:"gemini"`
	Audit         Audit         `toml:"audit"`
	Verification  Verification  `toml:"verification"`
	Storage       Storage       `toml:"storage"`
	Vendors       Vendors       `toml:"vendors"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("gaapcheck.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LedgerPath returns the absolute path of the verification ledger JSON file.
func (c *Config) LedgerPath() string {
	return c.Storage.LedgerFile
}

// VendorPath returns the absolute path of the vendor memory JSON file.
func (c *Config) VendorPath() string {
	return c.Storage.VendorFile
}

// LLMTimeout returns the per-request timeout for model calls.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// MaxUploadBytes returns the upload size limit enforced by the API server.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Audit.MaxUploadMiB) << 20
}

// ProviderName returns the configured provider and model, e.g. "gemini:gemini-2.5-pro".
func (c *Config) ProviderName() string {
	switch c.LLM.Provider {
	case ProviderGemini:
		return ProviderGemini + ":" + c.Gemini.Model
	default:
		return c.LLM.Provider + ":" + c.LLM.Model
	}
}
