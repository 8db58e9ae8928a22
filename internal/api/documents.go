package api

import (
	"sort"
	"sync"
	"time"

	"github.com/dharter89/GAAP/internal/audit"
	"github.com/dharter89/GAAP/internal/services"
	"github.com/dharter89/GAAP/internal/sheet"
	"github.com/dharter89/GAAP/internal/table"
)

// document is one uploaded spreadsheet and its latest audit. Values handed
// out by documentStore are copies; Report is never mutated once set.
type document struct {
	ID            string
	FileName      string
	Info          sheet.Info
	StatementType string
	Normalized    table.Result
	Vendor        VendorCheck
	Warnings      []string
	UploadedAt    time.Time
	Report        *audit.Report
}

// documentStore holds the uploaded documents of the running server. File
// names are the ledger document ids, so a re-upload of the same name
// replaces the earlier session and keeps its id.
type documentStore struct {
	mu     sync.RWMutex
	byID   map[string]*document
	byName map[string]string
	newID  func() string
}

func newDocumentStore(newID func() string) *documentStore {
	return &documentStore{
		byID:   make(map[string]*document),
		byName: make(map[string]string),
		newID:  newID,
	}
}

func (s *documentStore) put(doc document) document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byName[doc.FileName]; ok {
		doc.ID = id
	} else {
		doc.ID = s.newID()
		s.byName[doc.FileName] = doc.ID
	}
	stored := doc
	s.byID[doc.ID] = &stored
	return stored
}

func (s *documentStore) get(id string) (document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.byID[id]
	if !ok {
		return document{}, services.Wrap(services.ErrNotFound, "api", "lookup document", id, nil)
	}
	return *doc, nil
}

func (s *documentStore) setReport(id string, report *audit.Report) (document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.byID[id]
	if !ok {
		return document{}, services.Wrap(services.ErrNotFound, "api", "store report", id, nil)
	}
	doc.Report = report
	doc.StatementType = report.StatementType
	return *doc, nil
}

func (s *documentStore) list() []document {
	s.mu.RLock()
	out := make([]document, 0, len(s.byID))
	for _, doc := range s.byID {
		out = append(out, *doc)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.Before(out[j].UploadedAt)
		}
		return out[i].FileName < out[j].FileName
	})
	return out
}
