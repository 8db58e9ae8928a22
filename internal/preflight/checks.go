package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dharter89/GAAP/internal/audit"
	"github.com/dharter89/GAAP/internal/config"
	"github.com/dharter89/GAAP/internal/kvstore"
	"github.com/dharter89/GAAP/internal/services/llm"
)

const llmCheckTimeout = 30 * time.Second

// CheckLLM verifies that the configured model API is reachable and the
// credentials are accepted. It uses a 30-second timeout and a single attempt
// (no retries).
func CheckLLM(ctx context.Context, cfg *config.Config) Result {
	name := "LLM (" + cfg.ProviderName() + ")"
	if err := cfg.ValidateCredentials(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCfg := *cfg
	checkCfg.LLM.RetryAttempts = 1

	checkCtx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()

	client, err := audit.NewLLM(checkCtx, &checkCfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checker, ok := client.(audit.HealthChecker)
	if !ok {
		return Result{Name: name, Passed: true, Detail: "client configured (no health check available)"}
	}
	if err := checker.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckStorage opens the configured backend and loads both documents.
func CheckStorage(ctx context.Context, cfg *config.Config) Result {
	name := "Storage (" + cfg.Storage.Backend + ")"
	stores, err := kvstore.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer stores.Close()

	for _, store := range []kvstore.Store{stores.Ledger, stores.Vendors} {
		if _, err := store.Load(ctx); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", store.Location(), err)}
		}
	}
	return Result{Name: name, Passed: true, Detail: stores.Ledger.Location()}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	if status := llm.StatusCode(err); status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Sprintf("authentication failed (HTTP %d); check the API key", status)
	}
	return err.Error()
}
