package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dharter89/GAAP/internal/config"
	"github.com/dharter89/GAAP/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func healthServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"content": `{"ok":true}`},
			}},
		})
	}))
}

func TestCheckLLM_OK(t *testing.T) {
	srv := healthServer(t, http.StatusOK)
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithLLMServer(srv.URL))
	result := CheckLLM(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckLLM_BadKey(t *testing.T) {
	srv := healthServer(t, http.StatusUnauthorized)
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithLLMServer(srv.URL))
	result := CheckLLM(context.Background(), cfg)
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if !strings.Contains(result.Detail, "authentication failed") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.LLM.APIKey = ""
	result := CheckLLM(context.Background(), cfg)
	if result.Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestCheckStorage(t *testing.T) {
	for _, backend := range []string{config.StorageMemory, config.StorageFile, config.StorageSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithStorage(backend))
			result := CheckStorage(context.Background(), cfg)
			if !result.Passed {
				t.Fatalf("expected pass, got: %s", result.Detail)
			}
		})
	}
}

func TestCheckStorage_CorruptLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStorage(config.StorageFile))
	testsupport.WriteFile(t, cfg.Storage.LedgerFile, "{not json")
	result := CheckStorage(context.Background(), cfg)
	if result.Passed {
		t.Fatal("expected failure for corrupt ledger")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil, false)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(context.Background(), cfg, false)
	// state dir, log dir, storage
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !Passed(results) {
		t.Fatalf("expected all checks to pass: %+v", results)
	}
}

func TestRunAll_IncludesLLMWhenRequested(t *testing.T) {
	srv := healthServer(t, http.StatusOK)
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithLLMServer(srv.URL))
	results := RunAll(context.Background(), cfg, true)
	if len(results) != 4 || !strings.HasPrefix(results[3].Name, "LLM") {
		t.Fatalf("expected LLM check last, got %+v", results)
	}
	if !results[3].Passed {
		t.Errorf("LLM check failed: %s", results[3].Detail)
	}
}
