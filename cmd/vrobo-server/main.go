package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/amamdouheg90/vrobo-recording/internal/brands"
	"github.com/amamdouheg90/vrobo-recording/internal/config"
	"github.com/amamdouheg90/vrobo-recording/internal/events"
	"github.com/amamdouheg90/vrobo-recording/internal/httpapi"
	"github.com/amamdouheg90/vrobo-recording/internal/observability"
	"github.com/amamdouheg90/vrobo-recording/internal/pipeline"
	"github.com/amamdouheg90/vrobo-recording/internal/storage"
	"github.com/amamdouheg90/vrobo-recording/internal/voice"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	var store brands.Store
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pgStore, err := brands.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("brand store init failed: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		log.Printf("DATABASE_URL not set; brand listing and record updates disabled")
	}

	uploader, err := storage.NewUploader(ctx, storage.Config{
		Bucket:          cfg.StorageBucket,
		Region:          cfg.StorageRegion,
		Endpoint:        cfg.StorageEndpoint,
		AccessKeyID:     cfg.StorageAccessKeyID,
		SecretAccessKey: cfg.StorageSecretKey,
		PublicBaseURL:   cfg.StoragePublicBaseURL,
	})
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	if !uploader.Configured() {
		log.Printf("STORAGE_BUCKET not set; uploads will fail until storage is configured")
	}

	transformer := voice.NewElevenLabs(voice.ElevenLabsConfig{
		APIKey:       cfg.ElevenLabsAPIKey,
		BaseURL:      cfg.ElevenLabsBaseURL,
		VoiceID:      cfg.ElevenLabsVoiceID,
		OutputFormat: cfg.ElevenLabsOutputFormat,
		Timeout:      cfg.ElevenLabsTimeout,
	})

	registry := events.NewRegistry(events.Options{
		HeartbeatInterval: cfg.EventHeartbeatInterval,
		IdleTimeout:       cfg.EventIdleTimeout,
		SweepInterval:     cfg.EventSweepInterval,
	}, metrics)

	orchestrator := pipeline.NewOrchestrator(transformer, uploader, store, registry, metrics)

	api := httpapi.New(cfg, registry, orchestrator, store, transformer, uploader, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	registry.Start(runCtx)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
