package kvstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dharter89/GAAP/internal/services"
)

// Document is a flat JSON object. Values stay encoded so each caller owns
// its value schema.
type Document map[string]json.RawMessage

// Clone returns a copy that shares no map with d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Store persists one Document. Load and Save move the whole document;
// Update performs a locked read-modify-write. Errors match
// services.ErrPersistence.
type Store interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
	// Update loads the document, applies fn and saves the result. Nothing
	// is written when fn returns an error.
	Update(ctx context.Context, fn func(Document) error) error
	// Location describes where the document lives, for logs.
	Location() string
}

func persistErr(op, location string, err error) error {
	return services.Wrap(services.ErrPersistence, "kvstore", op, location, err)
}

// MemoryStore keeps the document in process memory.
type MemoryStore struct {
	mu  sync.Mutex
	doc Document
}

// NewMemory returns an in-memory store, optionally seeded.
func NewMemory(seed Document) *MemoryStore {
	s := &MemoryStore{doc: Document{}}
	if seed != nil {
		s.doc = seed.Clone()
	}
	return s
}

func (s *MemoryStore) Load(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, persistErr("load", s.Location(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return persistErr("save", s.Location(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc.Clone()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, fn func(Document) error) error {
	if err := ctx.Err(); err != nil {
		return persistErr("update", s.Location(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.doc.Clone()
	if err := fn(doc); err != nil {
		return err
	}
	s.doc = doc
	return nil
}

func (s *MemoryStore) Location() string { return "memory" }
