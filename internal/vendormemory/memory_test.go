package vendormemory

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dharter89/GAAP/internal/kvstore"
	"github.com/dharter89/GAAP/internal/logging"
	"github.com/dharter89/GAAP/internal/services"
	"github.com/dharter89/GAAP/internal/table"
)

func newMemory(t *testing.T, store kvstore.Store) *Memory {
	t.Helper()
	if store == nil {
		store = kvstore.NewMemory(nil)
	}
	return New(context.Background(), store, Options{}, logging.NewNop())
}

func ledgerTable(rows ...[2]string) table.Table {
	tbl := table.Table{Columns: []string{"Date", "Vendor Name", "Account", "Amount"}}
	for _, r := range rows {
		tbl.Rows = append(tbl.Rows, table.Row{
			table.TextCell("2024-01-01"), table.TextCell(r[0]), table.TextCell(r[1]), table.TextCell("10"),
		})
	}
	return tbl
}

func TestRecordObservationRemembersSingleAccount(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t, nil)

	obs, err := m.RecordObservation(ctx, "  ACME   Corp ", []string{"Office Supplies", "office supplies"})
	if err != nil {
		t.Fatalf("RecordObservation: %v", err)
	}
	if obs.Outcome != Remembered || obs.Account != "Office Supplies" || obs.Vendor != "acme corp" {
		t.Fatalf("unexpected observation %+v", obs)
	}
	if got, ok := m.Canonical("acme corp"); !ok || got != "Office Supplies" {
		t.Fatalf("unexpected canonical %q %v", got, ok)
	}

	again, err := m.RecordObservation(ctx, "Acme Corp", []string{"OFFICE SUPPLIES"})
	if err != nil || again.Outcome != Unchanged {
		t.Fatalf("expected unchanged, got %+v %v", again, err)
	}
}

func TestRecordObservationConflicts(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory(nil)
	m := newMemory(t, store)

	obs, err := m.RecordObservation(ctx, "Globex", []string{"Utilities", "Rent", ""})
	if err != nil {
		t.Fatalf("RecordObservation: %v", err)
	}
	if obs.Outcome != Conflict {
		t.Fatalf("expected conflict, got %+v", obs)
	}
	if diff := cmp.Diff([]string{"Rent", "Utilities"}, obs.Conflicting); diff != "" {
		t.Fatalf("conflicting mismatch (-want +got):\n%s", diff)
	}
	if _, ok := m.Canonical("Globex"); ok {
		t.Fatal("conflicts must not be remembered")
	}
	doc, _ := store.Load(ctx)
	if len(doc) != 0 {
		t.Fatalf("conflicts must not be persisted, got %v", doc)
	}

	if _, err := m.RecordObservation(ctx, "Staples", []string{"Office Supplies"}); err != nil {
		t.Fatalf("RecordObservation: %v", err)
	}
	mixed, _ := m.RecordObservation(ctx, "staples", []string{"Postage", "Office Supplies"})
	if mixed.Outcome != Conflict || mixed.Account != "Office Supplies" {
		t.Fatalf("expected conflict reporting canonical, got %+v", mixed)
	}
	if diff := cmp.Diff([]string{"Office Supplies", "Postage"}, mixed.Conflicting); diff != "" {
		t.Fatalf("conflicting mismatch (-want +got):\n%s", diff)
	}
	if got, _ := m.Canonical("Staples"); got != "Office Supplies" {
		t.Fatalf("canonical should be unchanged by a conflict, got %q", got)
	}
}

func TestRecordObservationSingleAccountReplacesCanonical(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory(nil)
	m := newMemory(t, store)

	if _, err := m.RecordObservation(ctx, "Staples", []string{"Office Supplies"}); err != nil {
		t.Fatalf("RecordObservation: %v", err)
	}
	obs, err := m.RecordObservation(ctx, "staples", []string{"Postage"})
	if err != nil {
		t.Fatalf("RecordObservation: %v", err)
	}
	want := Observation{Vendor: "staples", Outcome: Remembered, Account: "Postage", Previous: "Office Supplies"}
	if diff := cmp.Diff(want, obs); diff != "" {
		t.Fatalf("observation mismatch (-want +got):\n%s", diff)
	}
	if got, _ := m.Canonical("Staples"); got != "Postage" {
		t.Fatalf("expected canonical Postage, got %q", got)
	}
	doc, _ := store.Load(ctx)
	if got := string(doc["staples"]); got != `"Postage"` {
		t.Fatalf("expected persisted Postage, got %s", got)
	}
}

func TestRecordObservationEdgeCases(t *testing.T) {
	m := newMemory(t, nil)
	obs, err := m.RecordObservation(context.Background(), "Hooli", nil)
	if err != nil || obs.Outcome != Ignored {
		t.Fatalf("expected ignored, got %+v %v", obs, err)
	}
	if _, err := m.RecordObservation(context.Background(), "  ", []string{"x"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveConflictOverwritesAndPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vendor_accounts.json")
	m := newMemory(t, kvstore.NewFile(path))

	if err := m.ResolveConflict(ctx, "INITECH", "Consulting"); err != nil {
		t.Fatalf("ResolveConflict: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var onDisk map[string]string
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"initech": "Consulting"}, onDisk); diff != "" {
		t.Fatalf("file mismatch (-want +got):\n%s", diff)
	}

	reloaded := newMemory(t, kvstore.NewFile(path))
	if diff := cmp.Diff([]Entry{{Vendor: "initech", Account: "Consulting"}}, reloaded.Entries()); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
	if err := m.ResolveConflict(ctx, "Initech", " "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFindMismatches(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t, nil)
	if err := m.ResolveConflict(ctx, "Acme", "Office Supplies"); err != nil {
		t.Fatalf("ResolveConflict: %v", err)
	}

	tbl := ledgerTable(
		[2]string{"ACME", "office supplies"},
		[2]string{"Acme", "Travel"},
		[2]string{"Unknown Co", "Travel"},
	)
	got, ok := m.FindMismatches(tbl)
	if !ok {
		t.Fatal("expected vendor check to apply")
	}
	want := []Mismatch{{Row: 1, Vendor: "Acme", Used: "Travel", Canonical: "Office Supplies"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatches (-want +got):\n%s", diff)
	}
}

func TestFindMismatchesNotApplicable(t *testing.T) {
	m := newMemory(t, nil)
	tbl := table.Table{
		Columns: []string{"Account", "Debit", "Credit"},
		Rows:    []table.Row{{table.TextCell("Checking"), table.TextCell("100"), table.Cell{}}},
	}
	got, ok := m.FindMismatches(tbl)
	if ok || got != nil {
		t.Fatalf("expected not applicable, got %v %v", got, ok)
	}
	obs, err := m.ObserveTable(context.Background(), tbl)
	if err != nil || obs != nil {
		t.Fatalf("expected no observations, got %v %v", obs, err)
	}
}

func TestObserveTable(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t, nil)
	tbl := ledgerTable(
		[2]string{"Acme", "Office Supplies"},
		[2]string{"Globex", "Utilities"},
		[2]string{"acme", "Office Supplies"},
		[2]string{"Globex", "Rent"},
	)
	obs, err := m.ObserveTable(ctx, tbl)
	if err != nil {
		t.Fatalf("ObserveTable: %v", err)
	}
	if len(obs) != 2 || obs[0].Outcome != Remembered || obs[1].Outcome != Conflict {
		t.Fatalf("unexpected observations %+v", obs)
	}
	conflicts := Conflicts(obs)
	if len(conflicts) != 1 || conflicts[0].Vendor != "globex" {
		t.Fatalf("unexpected conflicts %+v", conflicts)
	}
}

func TestCustomColumns(t *testing.T) {
	m := New(context.Background(), kvstore.NewMemory(nil), Options{
		VendorColumns:  []string{"Payee"},
		AccountColumns: []string{"Category"},
	}, logging.NewNop())
	tbl := table.Table{
		Columns: []string{"payee", "category"},
		Rows:    []table.Row{{table.TextCell("Acme"), table.TextCell("Travel")}},
	}
	if _, ok := m.FindMismatches(tbl); !ok {
		t.Fatal("expected custom columns to be detected")
	}
}
