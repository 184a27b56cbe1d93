package httpapi

import (
	"log"
	"net/http"

	"github.com/amamdouheg90/vrobo-recording/internal/brands"
)

type brandsResponse struct {
	Success bool           `json:"success"`
	Brands  []brands.Brand `json:"brands"`
}

func (s *Server) handleListBrands(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}

	list, err := s.store.List(r.Context())
	if err != nil {
		log.Printf("httpapi: list brands failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list brands")
		return
	}
	if list == nil {
		list = []brands.Brand{}
	}
	respondJSON(w, http.StatusOK, brandsResponse{Success: true, Brands: list})
}
