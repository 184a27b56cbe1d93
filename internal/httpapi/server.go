package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/amamdouheg90/vrobo-recording/internal/brands"
	"github.com/amamdouheg90/vrobo-recording/internal/config"
	"github.com/amamdouheg90/vrobo-recording/internal/events"
	"github.com/amamdouheg90/vrobo-recording/internal/observability"
	"github.com/amamdouheg90/vrobo-recording/internal/pipeline"
)

// Orchestrator runs one recording through the clone pipeline.
type Orchestrator interface {
	Run(ctx context.Context, in pipeline.Input) (pipeline.Result, error)
}

// KeyChecker verifies the transformation API credential.
type KeyChecker interface {
	CheckAPIKey(ctx context.Context) error
}

// BucketChecker probes the storage bucket.
type BucketChecker interface {
	Configured() bool
	BucketExists(ctx context.Context) (bool, error)
}

type Server struct {
	cfg          config.Config
	registry     *events.Registry
	orchestrator Orchestrator
	store        brands.Store
	voiceCheck   KeyChecker
	storageCheck BucketChecker
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, registry *events.Registry, orchestrator Orchestrator, store brands.Store, voiceCheck KeyChecker, storageCheck BucketChecker, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:          cfg,
		registry:     registry,
		orchestrator: orchestrator,
		store:        store,
		voiceCheck:   voiceCheck,
		storageCheck: storageCheck,
		metrics:      metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may open the progress stream
				// unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/voice-clone", s.handleVoiceClone)
	r.Get("/api/process-events", s.handleEventsSSE)
	r.Get("/api/process-events/ws", s.handleEventsWS)
	r.Post("/api/process-events", s.handlePublishEvent)
	r.Get("/api/brands", s.handleListBrands)
	r.Get("/api/check/database", s.handleCheckDatabase)
	r.Get("/api/check/elevenlabs", s.handleCheckElevenLabs)
	r.Get("/api/check/storage", s.handleCheckStorage)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"open_connections":   s.registry.OpenCount(),
		"storage_configured": s.storageCheck != nil && s.storageCheck.Configured(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
