package api

import (
	"errors"
	"net/http"

	"github.com/dharter89/GAAP/internal/services"
	"github.com/dharter89/GAAP/internal/vendormemory"
)

func (s *Server) handleListVendors(w http.ResponseWriter, r *http.Request) {
	entries := s.deps.Vendors.Entries()
	if entries == nil {
		entries = []vendormemory.Entry{}
	}
	s.writeJSON(w, http.StatusOK, VendorListResponse{Vendors: entries})
}

// handleResolveVendor settles a vendor conflict by naming the canonical
// account.
func (s *Server) handleResolveVendor(w http.ResponseWriter, r *http.Request) {
	var req ResolveVendorRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var warnings []string
	if err := s.deps.Vendors.ResolveConflict(r.Context(), req.Vendor, req.Account); err != nil {
		if !errors.Is(err, services.ErrPersistence) {
			s.writeFailure(w, r, err)
			return
		}
		warnings = append(warnings, s.persistenceWarning(r.Context(), "vendor resolution", err))
	}
	account, _ := s.deps.Vendors.Canonical(req.Vendor)
	s.writeJSON(w, http.StatusOK, ResolveVendorResponse{
		Vendor:   vendormemory.Entry{Vendor: vendormemory.Key(req.Vendor), Account: account},
		Warnings: warnings,
	})
}
