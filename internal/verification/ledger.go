package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dharter89/GAAP/internal/extract"
	"github.com/dharter89/GAAP/internal/kvstore"
	"github.com/dharter89/GAAP/internal/logging"
	"github.com/dharter89/GAAP/internal/services"
	"github.com/dharter89/GAAP/internal/textutil"
)

// Identity selects how a violation is keyed in the ledger.
type Identity string

const (
	// IdentityText keys a violation by its normalized location and summary,
	// so the same finding stays resolved across re-runs.
	IdentityText Identity = "text"
	// IdentityIndex keys a violation by its 1-based position in a run.
	IdentityIndex Identity = "index"
)

// ParseIdentity parses "text" or "index". Blank means IdentityText.
func ParseIdentity(s string) (Identity, error) {
	switch Identity(strings.ToLower(strings.TrimSpace(s))) {
	case "", IdentityText:
		return IdentityText, nil
	case IdentityIndex:
		return IdentityIndex, nil
	default:
		return "", fmt.Errorf("unknown verification identity %q (want text or index)", s)
	}
}

// Key returns the ledger key for the violation at position i (zero-based).
// Use Keys for a whole run so repeated violations stay distinct.
func (id Identity) Key(i int, v extract.Violation) string {
	if id == IdentityIndex {
		return "#" + strconv.Itoa(i+1)
	}
	return textutil.FoldKey(v.Label())
}

// Keys returns the key of each violation of one run, in order. In text mode
// a repeated violation gets an occurrence suffix ("missing accrual (2)") so
// each copy is resolved on its own.
func (id Identity) Keys(violations []extract.Violation) []string {
	keys := make([]string, len(violations))
	seen := make(map[string]int, len(violations))
	for i, v := range violations {
		key := id.Key(i, v)
		if id != IdentityIndex {
			seen[key]++
			if n := seen[key]; n > 1 {
				key = fmt.Sprintf("%s (%d)", key, n)
			}
		}
		keys[i] = key
	}
	return keys
}

// Canonical maps a key typed by a reviewer onto the stored form: folded text
// in text mode, "#N" in index mode ("3" and "#3" are the same key).
func (id Identity) Canonical(key string) string {
	key = strings.TrimSpace(key)
	if id == IdentityIndex {
		if n, err := strconv.Atoi(strings.TrimPrefix(key, "#")); err == nil && n > 0 {
			return "#" + strconv.Itoa(n)
		}
		return key
	}
	return textutil.FoldKey(key)
}

// Entry is one checklist line: a violation and whether it is resolved.
type Entry struct {
	Key       string            `json:"key"`
	Violation extract.Violation `json:"violation"`
	Resolved  bool              `json:"resolved"`
}

// Ledger tracks which violations a reviewer has marked resolved or false
// positive, per document. Unknown keys are unresolved.
type Ledger struct {
	mu       sync.RWMutex
	store    kvstore.Store
	identity Identity
	logger   *slog.Logger
	state    map[string]map[string]bool
	// unsaved holds keys whose last write did not reach the store; the next
	// write for the document carries them too.
	unsaved map[string]map[string]struct{}
}

// New loads the ledger from store. A load failure is logged and the ledger
// starts empty; later writes still go to store.
func New(ctx context.Context, store kvstore.Store, identity Identity, logger *slog.Logger) *Ledger {
	if identity == "" {
		identity = IdentityText
	}
	l := &Ledger{
		store:    store,
		identity: identity,
		logger:   logging.NewComponentLogger(logger, "verification"),
		state:    make(map[string]map[string]bool),
		unsaved:  make(map[string]map[string]struct{}),
	}
	if err := l.Reload(ctx); err != nil {
		logging.WarnWithContext(l.logger, "failed to load verification ledger", "verification_load_failed",
			logging.Error(err),
			logging.String("location", store.Location()),
			logging.String(logging.FieldErrorHint, "check the state file or delete it to start over"),
			logging.String(logging.FieldImpact, "previous resolutions are not shown"))
	}
	return l
}

// Reload replaces the in-memory state with the stored document.
func (l *Ledger) Reload(ctx context.Context) error {
	doc, err := l.store.Load(ctx)
	if err != nil {
		return err
	}
	state, err := decodeState(doc)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "verification", "decode ledger", l.store.Location(), err)
	}
	l.mu.Lock()
	l.state = state
	l.unsaved = make(map[string]map[string]struct{})
	l.mu.Unlock()
	l.logger.Debug("loaded verification ledger", logging.Int("document_count", len(state)))
	return nil
}

// Identity reports the configured key strategy.
func (l *Ledger) Identity() Identity { return l.identity }

// Keys returns the ledger key of each violation, in order.
func (l *Ledger) Keys(violations []extract.Violation) []string {
	return l.identity.Keys(violations)
}

// CanonicalKey normalizes a reviewer-supplied key for the configured
// identity.
func (l *Ledger) CanonicalKey(key string) string {
	return l.identity.Canonical(key)
}

// IsResolved reports whether key is marked resolved for documentID.
func (l *Ledger) IsResolved(documentID, key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state[documentID][l.identity.Canonical(key)]
}

// SetResolved records the reviewer's decision under the canonical form of
// key. The in-memory state changes first; the store is then updated under
// its lock with this key and any earlier keys of the document that failed to
// save. A storage failure is returned (matching services.ErrPersistence) and
// the in-memory change is kept.
func (l *Ledger) SetResolved(ctx context.Context, documentID, key string, resolved bool) error {
	documentID = strings.TrimSpace(documentID)
	key = l.identity.Canonical(key)
	if documentID == "" || key == "" {
		return services.Wrap(services.ErrValidation, "verification", "set resolved", "document id and key are required", nil)
	}

	l.mu.Lock()
	doc := l.state[documentID]
	if doc == nil {
		doc = make(map[string]bool)
		l.state[documentID] = doc
	}
	doc[key] = resolved
	pending := l.unsaved[documentID]
	if pending == nil {
		pending = make(map[string]struct{})
		l.unsaved[documentID] = pending
	}
	pending[key] = struct{}{}
	changes := make(map[string]bool, len(pending))
	for k := range pending {
		changes[k] = doc[k]
	}
	l.mu.Unlock()

	err := l.store.Update(ctx, func(stored kvstore.Document) error {
		entries := map[string]bool{}
		if raw, ok := stored[documentID]; ok {
			if err := json.Unmarshal(raw, &entries); err != nil {
				return services.Wrap(services.ErrPersistence, "verification", "decode document", documentID, err)
			}
		}
		for k, v := range changes {
			entries[k] = v
		}
		data, err := json.Marshal(entries)
		if err != nil {
			return services.Wrap(services.ErrPersistence, "verification", "encode document", documentID, err)
		}
		stored[documentID] = data
		return nil
	})
	if err != nil {
		return err
	}
	l.markSaved(documentID, changes)

	l.logger.Debug("recorded verification",
		logging.String(logging.FieldDocumentID, documentID),
		logging.String("key", key),
		logging.Bool("resolved", resolved))
	return nil
}

// markSaved clears unsaved keys whose value is still the one written.
func (l *Ledger) markSaved(documentID string, written map[string]bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pending := l.unsaved[documentID]
	for k, v := range written {
		if l.state[documentID][k] == v {
			delete(pending, k)
		}
	}
	if len(pending) == 0 {
		delete(l.unsaved, documentID)
	}
}

// UnresolvedCount counts violations without a resolved mark.
func (l *Ledger) UnresolvedCount(documentID string, violations []extract.Violation) int {
	return len(l.Outstanding(documentID, violations))
}

// Outstanding returns the unresolved violations in their original order.
func (l *Ledger) Outstanding(documentID string, violations []extract.Violation) []extract.Violation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	doc := l.state[documentID]
	keys := l.identity.Keys(violations)
	out := make([]extract.Violation, 0, len(violations))
	for i, v := range violations {
		if !doc[keys[i]] {
			out = append(out, v)
		}
	}
	return out
}

// Checklist pairs each violation with its key and resolved flag.
func (l *Ledger) Checklist(documentID string, violations []extract.Violation) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	doc := l.state[documentID]
	keys := l.identity.Keys(violations)
	out := make([]Entry, len(violations))
	for i, v := range violations {
		out[i] = Entry{Key: keys[i], Violation: v, Resolved: doc[keys[i]]}
	}
	return out
}

// Document returns a copy of the recorded decisions for documentID.
func (l *Ledger) Document(documentID string) map[string]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]bool, len(l.state[documentID]))
	for k, v := range l.state[documentID] {
		out[k] = v
	}
	return out
}

// Documents lists document ids with recorded decisions, sorted.
func (l *Ledger) Documents() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.state))
	for id := range l.state {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func decodeState(doc kvstore.Document) (map[string]map[string]bool, error) {
	state := make(map[string]map[string]bool, len(doc))
	for id, raw := range doc {
		entries := map[string]bool{}
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("document %q: %w", id, err)
		}
		state[id] = entries
	}
	return state, nil
}
