package vendormemory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/dharter89/GAAP/internal/kvstore"
	"github.com/dharter89/GAAP/internal/logging"
	"github.com/dharter89/GAAP/internal/services"
	"github.com/dharter89/GAAP/internal/table"
	"github.com/dharter89/GAAP/internal/textutil"
)

// Column candidates used when Options leaves them empty. Matching ignores
// case and spacing.
var (
	DefaultVendorColumns  = []string{"vendor", "vendor name", "payee", "supplier", "name"}
	DefaultAccountColumns = []string{"account", "account name", "gl account", "split"}
)

// Outcome describes what RecordObservation did.
type Outcome string

const (
	// Remembered means the account became the vendor's canonical account.
	Remembered Outcome = "remembered"
	// Unchanged means the observation agreed with the canonical account.
	Unchanged Outcome = "unchanged"
	// Conflict means the accounts disagree; nothing was stored.
	Conflict Outcome = "conflict"
	// Ignored means no account was observed.
	Ignored Outcome = "ignored"
)

// Observation is the result of recording one vendor's accounts.
type Observation struct {
	Vendor  string  `json:"vendor"`
	Outcome Outcome `json:"outcome"`
	// Account is the canonical account after the observation, if any.
	Account string `json:"account,omitempty"`
	// Previous is the canonical account a Remembered observation replaced.
	Previous string `json:"previous,omitempty"`
	// Conflicting lists the competing accounts of the batch, sorted, when
	// Outcome is Conflict.
	Conflicting []string `json:"conflicting,omitempty"`
}

// Mismatch is a row booked to an account other than the vendor's canonical
// account.
type Mismatch struct {
	Row       int    `json:"row"`
	Vendor    string `json:"vendor"`
	Used      string `json:"used"`
	Canonical string `json:"canonical"`
}

// Entry is one remembered vendor mapping.
type Entry struct {
	Vendor  string `json:"vendor"`
	Account string `json:"account"`
}

// Options configures column detection.
type Options struct {
	VendorColumns  []string
	AccountColumns []string
}

// Memory remembers which account each vendor is booked to. Vendor keys are
// NFKC-normalized, case-folded and whitespace-collapsed.
type Memory struct {
	mu             sync.RWMutex
	store          kvstore.Store
	logger         *slog.Logger
	accounts       map[string]string
	vendorColumns  []string
	accountColumns []string
}

// New loads vendor memory from store. A load failure is logged and the
// memory starts empty.
func New(ctx context.Context, store kvstore.Store, opts Options, logger *slog.Logger) *Memory {
	m := &Memory{
		store:          store,
		logger:         logging.NewComponentLogger(logger, "vendormemory"),
		accounts:       make(map[string]string),
		vendorColumns:  opts.VendorColumns,
		accountColumns: opts.AccountColumns,
	}
	if len(m.vendorColumns) == 0 {
		m.vendorColumns = DefaultVendorColumns
	}
	if len(m.accountColumns) == 0 {
		m.accountColumns = DefaultAccountColumns
	}
	if err := m.Reload(ctx); err != nil {
		logging.WarnWithContext(m.logger, "failed to load vendor memory", "vendormemory_load_failed",
			logging.Error(err),
			logging.String("location", store.Location()),
			logging.String(logging.FieldErrorHint, "check the state file or delete it to start over"),
			logging.String(logging.FieldImpact, "vendor mismatches are not detected until vendors are re-learned"))
	}
	return m
}

// Reload replaces the in-memory mapping with the stored document.
func (m *Memory) Reload(ctx context.Context) error {
	doc, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	accounts := make(map[string]string, len(doc))
	for vendor, raw := range doc {
		var account string
		if err := json.Unmarshal(raw, &account); err != nil {
			return services.Wrap(services.ErrPersistence, "vendormemory", "decode vendor", vendor, err)
		}
		if key := textutil.FoldKey(vendor); key != "" {
			accounts[key] = account
		}
	}
	m.mu.Lock()
	m.accounts = accounts
	m.mu.Unlock()
	return nil
}

// Key returns the normalized vendor key.
func Key(vendor string) string { return textutil.FoldKey(vendor) }

// Canonical returns the remembered account for vendor.
func (m *Memory) Canonical(vendor string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[Key(vendor)]
	return account, ok
}

// Entries returns all mappings sorted by vendor key.
func (m *Memory) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.accounts))
	for vendor, account := range m.accounts {
		out = append(out, Entry{Vendor: vendor, Account: account})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vendor < out[j].Vendor })
	return out
}

// RecordObservation learns from the accounts a vendor was booked to in one
// batch. A single distinct account becomes the canonical account, replacing
// any earlier one; two or more are a Conflict and nothing is stored. A
// storage failure is returned alongside the observation.
func (m *Memory) RecordObservation(ctx context.Context, vendor string, accounts []string) (Observation, error) {
	key := Key(vendor)
	if key == "" {
		return Observation{}, services.Wrap(services.ErrValidation, "vendormemory", "record observation", "vendor is required", nil)
	}
	distinct := textutil.UniqueFolded(accounts)
	obs := Observation{Vendor: key}
	if len(distinct) == 0 {
		obs.Outcome = Ignored
		return obs, nil
	}

	m.mu.Lock()
	canonical, known := m.accounts[key]
	switch {
	case len(distinct) == 1 && known && textutil.FoldKey(distinct[0]) == textutil.FoldKey(canonical):
		m.mu.Unlock()
		obs.Outcome = Unchanged
		obs.Account = canonical
		return obs, nil
	case len(distinct) == 1:
		m.accounts[key] = distinct[0]
		m.mu.Unlock()
		obs.Outcome = Remembered
		obs.Account = distinct[0]
		if known {
			obs.Previous = canonical
		}
		return obs, m.persist(ctx, key, distinct[0])
	}
	m.mu.Unlock()

	conflicting := distinct
	if known {
		obs.Account = canonical
	}
	sort.Slice(conflicting, func(i, j int) bool {
		return textutil.FoldKey(conflicting[i]) < textutil.FoldKey(conflicting[j])
	})
	obs.Outcome = Conflict
	obs.Conflicting = conflicting
	return obs, nil
}

// ResolveConflict makes account the vendor's canonical account.
func (m *Memory) ResolveConflict(ctx context.Context, vendor, account string) error {
	key := Key(vendor)
	account = textutil.Normalize(account)
	if key == "" || account == "" {
		return services.Wrap(services.ErrValidation, "vendormemory", "resolve conflict", "vendor and account are required", nil)
	}
	m.mu.Lock()
	m.accounts[key] = account
	m.mu.Unlock()
	return m.persist(ctx, key, account)
}

func (m *Memory) persist(ctx context.Context, key, account string) error {
	data, err := json.Marshal(account)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "vendormemory", "encode account", key, err)
	}
	if err := m.store.Update(ctx, func(doc kvstore.Document) error {
		doc[key] = data
		return nil
	}); err != nil {
		return err
	}
	m.logger.Debug("remembered vendor account",
		logging.String("vendor", key),
		logging.String("account", account))
	return nil
}

// columns locates the vendor and account columns of t.
func (m *Memory) columns(t table.Table) (int, int, bool) {
	vendorIdx, ok := t.FindColumn(m.vendorColumns)
	if !ok {
		return -1, -1, false
	}
	accountIdx, ok := t.FindColumn(m.accountColumns)
	if !ok || accountIdx == vendorIdx {
		return -1, -1, false
	}
	return vendorIdx, accountIdx, true
}

// FindMismatches lists rows whose booked account differs from the vendor's
// canonical account. The boolean is false when t has no vendor or account
// column, meaning the check does not apply.
func (m *Memory) FindMismatches(t table.Table) ([]Mismatch, bool) {
	vendorIdx, accountIdx, ok := m.columns(t)
	if !ok {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Mismatch{}
	for i, row := range t.Rows {
		vendor := textutil.Normalize(row.At(vendorIdx).String())
		used := textutil.Normalize(row.At(accountIdx).String())
		if vendor == "" || used == "" {
			continue
		}
		canonical, known := m.accounts[Key(vendor)]
		if !known || textutil.FoldKey(used) == textutil.FoldKey(canonical) {
			continue
		}
		out = append(out, Mismatch{Row: i, Vendor: vendor, Used: used, Canonical: canonical})
	}
	return out, true
}

// ObserveTable records every vendor in t with the accounts it was booked to,
// in first-seen order. It returns nil when the check does not apply. All
// vendors are recorded even if one fails to persist; the first error is
// returned.
func (m *Memory) ObserveTable(ctx context.Context, t table.Table) ([]Observation, error) {
	vendorIdx, accountIdx, ok := m.columns(t)
	if !ok {
		return nil, nil
	}
	var order []string
	names := map[string]string{}
	grouped := map[string][]string{}
	for _, row := range t.Rows {
		vendor := textutil.Normalize(row.At(vendorIdx).String())
		key := Key(vendor)
		if key == "" {
			continue
		}
		if _, seen := names[key]; !seen {
			names[key] = vendor
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], row.At(accountIdx).String())
	}

	var firstErr error
	out := make([]Observation, 0, len(order))
	for _, key := range order {
		obs, err := m.RecordObservation(ctx, names[key], grouped[key])
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("vendor %q: %w", names[key], err)
		}
		out = append(out, obs)
	}
	return out, firstErr
}

// Conflicts filters observations down to conflicts.
func Conflicts(observations []Observation) []Observation {
	var out []Observation
	for _, obs := range observations {
		if obs.Outcome == Conflict {
			out = append(out, obs)
		}
	}
	return out
}

// String renders the observation for CLI output.
func (o Observation) String() string {
	if o.Outcome == Conflict {
		return fmt.Sprintf("%s: conflict between %s", o.Vendor, strings.Join(o.Conflicting, ", "))
	}
	if o.Previous != "" {
		return fmt.Sprintf("%s: %s %s (was %s)", o.Vendor, o.Outcome, o.Account, o.Previous)
	}
	return fmt.Sprintf("%s: %s %s", o.Vendor, o.Outcome, o.Account)
}
