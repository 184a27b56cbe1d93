package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amamdouheg90/vrobo-recording/internal/audio"
	"github.com/amamdouheg90/vrobo-recording/internal/brands"
	"github.com/amamdouheg90/vrobo-recording/internal/observability"
	"github.com/amamdouheg90/vrobo-recording/internal/storage"
)

// Step names pushed over the progress channel, in pipeline order.
const (
	StepProcessing   = "processing"
	StepTransforming = "elevenlabs"
	StepUploading    = "uploading"
	StepUpdatingDB   = "updating_db"
	StepCompleted    = "completed"
	StepError        = "error"
)

var (
	ErrEmptyAudio    = errors.New("audio payload is empty")
	ErrNoRecordStore = errors.New("brand database is not configured")
)

// Transformer converts a raw voice sample into the target voice.
type Transformer interface {
	Transform(ctx context.Context, audio []byte, contentType string) ([]byte, error)
}

// BlobStore persists the converted clip and returns its public URL.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, key string, meta storage.ObjectMeta) (string, error)
}

// RecordStore resolves brands and persists the recording URL.
type RecordStore interface {
	GetByID(ctx context.Context, id int64) (brands.Brand, error)
	UpdateRecordURL(ctx context.Context, merchantID, url string) (bool, error)
}

// Notifier pushes step events to subscribed clients.
type Notifier interface {
	Publish(clientID, step, errMsg string)
}

// Input is one inbound recording to run through the pipeline.
type Input struct {
	Audio       []byte
	ContentType string
	BrandID     int64
	ClientID    string
}

// Result is the terminal state of a pipeline run whose upload succeeded.
// DBUpdateSuccess is false when the recording was stored but the brand row
// could not be updated; the URL is still valid and returned.
type Result struct {
	URL             string `json:"url"`
	DBUpdateSuccess bool   `json:"dbUpdateSuccess"`
}

// Orchestrator sequences trim, transform, upload and record update for one
// request, emitting a progress event before each stage. Stages run strictly
// in order; each consumes the previous stage's output.
type Orchestrator struct {
	transformer Transformer
	blobs       BlobStore
	records     RecordStore
	notifier    Notifier
	metrics     *observability.Metrics
}

func NewOrchestrator(transformer Transformer, blobs BlobStore, records RecordStore, notifier Notifier, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		transformer: transformer,
		blobs:       blobs,
		records:     records,
		notifier:    notifier,
		metrics:     metrics,
	}
}

// Run executes the pipeline. Any failure before the upload completes aborts
// the run, emits an error event and returns the error. A failure while
// updating the database is downgraded: the uploaded URL is preserved and
// returned with DBUpdateSuccess=false, and the run still completes.
func (o *Orchestrator) Run(ctx context.Context, in Input) (Result, error) {
	if len(in.Audio) == 0 {
		return o.fail(in.ClientID, ErrEmptyAudio)
	}
	if o.records == nil {
		return o.fail(in.ClientID, ErrNoRecordStore)
	}

	brand, err := o.records.GetByID(ctx, in.BrandID)
	if err != nil {
		if errors.Is(err, brands.ErrNotFound) {
			return o.fail(in.ClientID, fmt.Errorf("brand %d: %w", in.BrandID, err))
		}
		return o.fail(in.ClientID, fmt.Errorf("fetch brand %d: %w", in.BrandID, err))
	}

	o.notifier.Publish(in.ClientID, StepProcessing, "")
	payload := audio.TrimSilence(in.Audio)

	o.notifier.Publish(in.ClientID, StepTransforming, "")
	start := time.Now()
	converted, err := o.transformer.Transform(ctx, payload, in.ContentType)
	if err != nil {
		o.metrics.ProviderErrors.WithLabelValues("elevenlabs", "transform").Inc()
		return o.fail(in.ClientID, fmt.Errorf("voice transform: %w", err))
	}
	o.metrics.ObserveStageLatency(StepTransforming, time.Since(start))

	o.notifier.Publish(in.ClientID, StepUploading, "")
	key := storage.ObjectKey(brand.MerchantName, brand.MerchantID)
	start = time.Now()
	url, err := o.blobs.Upload(ctx, converted, key, storage.ObjectMeta{
		MerchantName: brand.MerchantName,
		MerchantID:   brand.MerchantID,
	})
	if err != nil {
		o.metrics.ProviderErrors.WithLabelValues("storage", "upload").Inc()
		return o.fail(in.ClientID, fmt.Errorf("store recording: %w", err))
	}
	o.metrics.ObserveStageLatency(StepUploading, time.Since(start))

	// From here on the upload is done; nothing may fail the request anymore.
	o.notifier.Publish(in.ClientID, StepUpdatingDB, "")
	start = time.Now()
	updated, err := o.records.UpdateRecordURL(ctx, brand.MerchantID, url)
	if err != nil {
		log.Printf("record url update failed for merchant %s: %v", brand.MerchantID, err)
		o.metrics.ProviderErrors.WithLabelValues("database", "update").Inc()
		o.notifier.Publish(in.ClientID, StepError, "database update failed, but file was uploaded successfully")
		updated = false
	} else if !updated {
		o.notifier.Publish(in.ClientID, StepError, "no brand row matched merchant "+brand.MerchantID)
	}
	o.metrics.ObserveStageLatency(StepUpdatingDB, time.Since(start))

	o.notifier.Publish(in.ClientID, StepCompleted, "")
	if updated {
		o.metrics.PipelineRuns.WithLabelValues("completed").Inc()
	} else {
		o.metrics.PipelineRuns.WithLabelValues("completed_db_failed").Inc()
	}
	return Result{URL: url, DBUpdateSuccess: updated}, nil
}

func (o *Orchestrator) fail(clientID string, err error) (Result, error) {
	log.Printf("pipeline run failed: %v", err)
	o.notifier.Publish(clientID, StepError, err.Error())
	o.metrics.PipelineRuns.WithLabelValues("failed").Inc()
	return Result{}, err
}
