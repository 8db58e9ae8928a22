package audit

import (
	"context"
	"fmt"

	"github.com/dharter89/GAAP/internal/config"
	"github.com/dharter89/GAAP/internal/extract"
	"github.com/dharter89/GAAP/internal/prompt"
	"github.com/dharter89/GAAP/internal/services"
	"github.com/dharter89/GAAP/internal/services/gemini"
	"github.com/dharter89/GAAP/internal/services/llm"
	"github.com/dharter89/GAAP/internal/table"
)

// HealthChecker is implemented by model clients that can verify
// connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewLLM builds the model client selected by llm.provider.
func NewLLM(ctx context.Context, cfg *config.Config) (LLM, error) {
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "audit", "model client", "", err)
	}
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:         cfg.Gemini.APIKey,
			Model:          cfg.Gemini.Model,
			Vertex:         cfg.Gemini.Vertex,
			Project:        cfg.Gemini.Project,
			Location:       cfg.Gemini.Location,
			BaseURL:        cfg.Gemini.BaseURL,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		}, gemini.WithRetryMaxAttempts(cfg.LLM.RetryAttempts))
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "audit", "model client", "gemini", err)
		}
		return client, nil
	case config.ProviderOpenRouter:
		return llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		}, llm.WithRetryMaxAttempts(cfg.LLM.RetryAttempts)), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "audit", "model client", fmt.Sprintf("unknown provider %q", cfg.LLM.Provider), nil)
	}
}

// OptionsFromConfig maps the [audit] section onto Options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := prompt.ParseMode(cfg.Audit.Format)
	if err != nil {
		return Options{}, services.Wrap(services.ErrConfiguration, "audit", "options", "", err)
	}
	return Options{
		Mode:          mode,
		StatementType: cfg.Audit.StatementType,
		SectionOnly:   cfg.Audit.SectionOnly,
		Normalize: table.Options{
			HeaderMinCells:    cfg.Audit.HeaderMinCells,
			HeaderFallbackRow: cfg.Audit.HeaderFallbackRow,
			MaxRows:           cfg.Audit.MaxRows,
			Keywords:          cfg.Audit.FilterKeywords,
			StrictFilter:      cfg.Audit.StrictFilter,
		},
	}, nil
}

// ExtractorFromConfig returns the extractor matching the configured format,
// for re-parsing stored raw responses.
func ExtractorFromConfig(cfg *config.Config) (extract.Extractor, error) {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return extract.New(opts.Mode, extract.Options{SectionOnly: opts.SectionOnly}), nil
}
