package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dharter89/GAAP/internal/services"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	db, err := OpenSQLite(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return map[string]Store{
		"memory": NewMemory(nil),
		"file":   NewFile(filepath.Join(dir, "nested", "doc.json")),
		"sqlite": db.Namespace("doc"),
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			doc, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load empty: %v", err)
			}
			if len(doc) != 0 {
				t.Fatalf("expected empty document, got %v", doc)
			}

			want := Document{"a": json.RawMessage(`"x"`), "b": json.RawMessage(`{"k":true}`)}
			if err := store.Save(ctx, want); err != nil {
				t.Fatalf("Save: %v", err)
			}
			err = store.Update(ctx, func(d Document) error {
				d["c"] = json.RawMessage(`3`)
				delete(d, "a")
				return nil
			})
			if err != nil {
				t.Fatalf("Update: %v", err)
			}

			got, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			compact := map[string]string{}
			for k, v := range got {
				var decoded any
				if err := json.Unmarshal(v, &decoded); err != nil {
					t.Fatalf("decode %s: %v", k, err)
				}
				b, _ := json.Marshal(decoded)
				compact[k] = string(b)
			}
			if diff := cmp.Diff(map[string]string{"b": `{"k":true}`, "c": "3"}, compact); diff != "" {
				t.Fatalf("document mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUpdateErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Save(ctx, Document{"keep": json.RawMessage(`1`)}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			err := store.Update(ctx, func(d Document) error {
				d["drop"] = json.RawMessage(`2`)
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("expected fn error, got %v", err)
			}
			got, _ := store.Load(ctx)
			if _, ok := got["drop"]; ok || len(got) != 1 {
				t.Fatalf("unexpected document after failed update: %v", got)
			}
		})
	}
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			const workers = 20
			var wg sync.WaitGroup
			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := store.Update(ctx, func(d Document) error {
						var n int
						if raw, ok := d["n"]; ok {
							if err := json.Unmarshal(raw, &n); err != nil {
								return err
							}
						}
						d["n"] = json.RawMessage(strconv.Itoa(n + 1))
						return nil
					})
					if err != nil {
						t.Errorf("Update: %v", err)
					}
				}()
			}
			wg.Wait()
			doc, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if string(doc["n"]) != strconv.Itoa(workers) {
				t.Fatalf("expected %d, got %s", workers, doc["n"])
			}
		})
	}
}

func TestFileStoreWritesIndentedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vendor_accounts.json")
	store := NewFile(path)
	if err := store.Save(context.Background(), Document{"acme": json.RawMessage(`"Office Supplies"`)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(data) != "{\n  \"acme\": \"Office Supplies\"\n}\n" {
		t.Fatalf("unexpected file contents %q", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verified_issues.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := NewFile(path).Load(context.Background())
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestFileStoreUnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := NewFile(filepath.Join(blocker, "doc.json")).Save(context.Background(), Document{})
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestSQLiteNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()

	ledger := db.Namespace("verified_issues")
	vendors := db.Namespace("vendor_accounts")
	if err := ledger.Save(ctx, Document{"doc": json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := vendors.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected isolated namespace, got %v", got)
	}
	if !strings.HasSuffix(ledger.Location(), "#verified_issues") {
		t.Fatalf("unexpected location %q", ledger.Location())
	}
}

func TestMemoryStoreCopiesDocuments(t *testing.T) {
	ctx := context.Background()
	seed := Document{"a": json.RawMessage(`1`)}
	store := NewMemory(seed)
	seed["b"] = json.RawMessage(`2`)

	doc, _ := store.Load(ctx)
	doc["c"] = json.RawMessage(`3`)

	again, _ := store.Load(ctx)
	if len(again) != 1 {
		t.Fatalf("store shares maps with callers: %v", again)
	}
}
