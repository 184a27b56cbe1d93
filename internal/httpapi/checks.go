package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const checkTimeout = 5 * time.Second

type checkResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleCheckDatabase(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondJSON(w, http.StatusOK, checkResponse{Message: "database is not configured"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		respondJSON(w, http.StatusOK, checkResponse{Message: fmt.Sprintf("database ping failed: %v", err)})
		return
	}
	respondJSON(w, http.StatusOK, checkResponse{Success: true, Message: "database connection successful"})
}

func (s *Server) handleCheckElevenLabs(w http.ResponseWriter, r *http.Request) {
	if s.voiceCheck == nil {
		respondJSON(w, http.StatusOK, checkResponse{Message: "voice client is not configured"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()
	if err := s.voiceCheck.CheckAPIKey(ctx); err != nil {
		respondJSON(w, http.StatusOK, checkResponse{Message: fmt.Sprintf("elevenlabs check failed: %v", err)})
		return
	}
	respondJSON(w, http.StatusOK, checkResponse{Success: true, Message: "elevenlabs api key is valid"})
}

func (s *Server) handleCheckStorage(w http.ResponseWriter, r *http.Request) {
	if s.storageCheck == nil || !s.storageCheck.Configured() {
		respondJSON(w, http.StatusOK, checkResponse{Message: "object storage is not configured"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()
	exists, err := s.storageCheck.BucketExists(ctx)
	if err != nil {
		respondJSON(w, http.StatusOK, checkResponse{Message: fmt.Sprintf("storage check failed: %v", err)})
		return
	}
	if !exists {
		respondJSON(w, http.StatusOK, checkResponse{Message: "bucket does not exist"})
		return
	}
	respondJSON(w, http.StatusOK, checkResponse{Success: true, Message: "storage bucket is reachable"})
}
