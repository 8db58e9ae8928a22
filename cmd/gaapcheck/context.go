package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dharter89/GAAP/internal/audit"
	"github.com/dharter89/GAAP/internal/config"
	"github.com/dharter89/GAAP/internal/kvstore"
	"github.com/dharter89/GAAP/internal/logging"
	"github.com/dharter89/GAAP/internal/notifications"
	"github.com/dharter89/GAAP/internal/vendormemory"
	"github.com/dharter89/GAAP/internal/verification"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	storesOnce sync.Once
	stores     *kvstore.Stores
	storesErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) ensureStores() (*kvstore.Stores, error) {
	c.storesOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.storesErr = err
			return
		}
		c.stores, c.storesErr = kvstore.Open(cfg)
	})
	return c.stores, c.storesErr
}

func (c *commandContext) close() {
	if c.stores != nil {
		_ = c.stores.Close()
	}
}

// ledger loads the verification ledger from the configured backend.
func (c *commandContext) ledger(ctx context.Context) (*verification.Ledger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	stores, err := c.ensureStores()
	if err != nil {
		return nil, err
	}
	identity, err := verification.ParseIdentity(cfg.Verification.Identity)
	if err != nil {
		return nil, err
	}
	return verification.New(ctx, stores.Ledger, identity, logger), nil
}

// vendors loads vendor memory from the configured backend.
func (c *commandContext) vendors(ctx context.Context) (*vendormemory.Memory, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	stores, err := c.ensureStores()
	if err != nil {
		return nil, err
	}
	return vendormemory.New(ctx, stores.Vendors, vendormemory.Options{
		VendorColumns:  cfg.Vendors.VendorColumns,
		AccountColumns: cfg.Vendors.AccountColumns,
	}, logger), nil
}

// auditService builds the model client and audit pipeline. Options from
// overrides replace the configured audit options where set.
func (c *commandContext) auditService(ctx context.Context, override func(*audit.Options)) (*audit.Service, audit.LLM, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	opts, err := audit.OptionsFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	if override != nil {
		override(&opts)
	}
	client, err := audit.NewLLM(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("model client: %w", err)
	}
	svc := audit.NewService(client, opts, logger, audit.WithNotifier(notifications.NewService(cfg)))
	return svc, client, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
