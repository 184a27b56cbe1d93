package httpapi

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/amamdouheg90/vrobo-recording/internal/brands"
	"github.com/amamdouheg90/vrobo-recording/internal/pipeline"
	"github.com/amamdouheg90/vrobo-recording/internal/storage"
)

const maxUploadBytes = 32 << 20

type voiceCloneResponse struct {
	Success         bool   `json:"success"`
	URL             string `json:"url"`
	DBUpdateSuccess bool   `json:"dbUpdateSuccess"`
}

func (s *Server) handleVoiceClone(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("audio")
	brandField := strings.TrimSpace(r.FormValue("brandId"))
	if err != nil || brandField == "" {
		respondError(w, http.StatusBadRequest, "audio file and brandId are required")
		return
	}
	defer file.Close()

	brandID, err := strconv.ParseInt(brandField, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "brandId must be numeric")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read audio upload")
		return
	}

	res, err := s.orchestrator.Run(r.Context(), pipeline.Input{
		Audio:       data,
		ContentType: header.Header.Get("Content-Type"),
		BrandID:     brandID,
		ClientID:    strings.TrimSpace(r.FormValue("clientId")),
	})
	if err != nil {
		log.Printf("httpapi: voice clone for brand %d failed: %v", brandID, err)
		switch {
		case errors.Is(err, brands.ErrNotFound):
			respondError(w, http.StatusNotFound, "brand not found")
		case errors.Is(err, pipeline.ErrEmptyAudio):
			respondError(w, http.StatusBadRequest, "audio payload is empty")
		case errors.Is(err, pipeline.ErrNoRecordStore):
			respondError(w, http.StatusServiceUnavailable, "brand database is not configured")
		case errors.Is(err, storage.ErrNotConfigured):
			respondError(w, http.StatusServiceUnavailable, "object storage is not configured")
		default:
			respondError(w, http.StatusInternalServerError, "voice clone pipeline failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, voiceCloneResponse{
		Success:         true,
		URL:             res.URL,
		DBUpdateSuccess: res.DBUpdateSuccess,
	})
}
