package preflight

import (
	"context"

	"github.com/dharter89/GAAP/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the readiness checks for cfg: state and log directories,
// the ledger/vendor storage backend and, when withLLM is set, a live model
// request.
func RunAll(ctx context.Context, cfg *config.Config, withLLM bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckStorage(ctx, cfg),
	}
	if withLLM {
		results = append(results, CheckLLM(ctx, cfg))
	}
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
