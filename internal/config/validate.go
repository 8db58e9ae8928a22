package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateAudit(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	switch c.Verification.Identity {
	case "text", "index":
	default:
		return fmt.Errorf("verification.identity must be \"text\" or \"index\", got %q", c.Verification.Identity)
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind: %w", err)
	}
	return ensurePositiveMap(map[string]int{
		"llm.timeout_seconds":           c.LLM.TimeoutSeconds,
		"llm.retry_attempts":            c.LLM.RetryAttempts,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case ProviderOpenRouter, ProviderGemini:
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q", ProviderOpenRouter, ProviderGemini, c.LLM.Provider)
	}
	if c.LLM.Provider == ProviderGemini && c.Gemini.Vertex && c.Gemini.Project == "" {
		return errors.New("gemini.project must be set when gemini.vertex is true (or set GOOGLE_CLOUD_PROJECT)")
	}
	return nil
}

// ValidateCredentials reports whether the selected provider has credentials.
// Commands that never call the model (normalize, grade, ledger) skip it.
func (c *Config) ValidateCredentials() error {
	switch c.LLM.Provider {
	case ProviderGemini:
		if c.Gemini.Vertex {
			return nil
		}
		if c.Gemini.APIKey == "" {
			return missingCredential("gemini.api_key", "GEMINI_API_KEY")
		}
	default:
		if c.LLM.APIKey == "" {
			return missingCredential("llm.api_key", "OPENROUTER_API_KEY")
		}
	}
	return nil
}

func missingCredential(field, env string) error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("%s is required. Set %s env var or edit %s (create with 'gaapcheck config init')", field, env, defaultPath)
}

func (c *Config) validateAudit() error {
	switch c.Audit.Format {
	case "loose", "strict":
	default:
		return fmt.Errorf("audit.format must be \"loose\" or \"strict\", got %q", c.Audit.Format)
	}
	if c.Audit.MaxRows < 0 {
		return errors.New("audit.max_rows must be positive")
	}
	if c.Audit.HeaderMinCells < 1 {
		return errors.New("audit.header_min_cells must be >= 1")
	}
	if c.Audit.HeaderFallbackRow < 0 {
		return errors.New("audit.header_fallback_row must be >= 0")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageFile, StorageSQLite, StorageMemory:
		return nil
	default:
		return fmt.Errorf("storage.backend must be one of file, sqlite, memory; got %q", c.Storage.Backend)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
