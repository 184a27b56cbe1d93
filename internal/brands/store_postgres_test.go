package brands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

// These tests need a reachable Postgres; set TEST_DATABASE_URL to run them.
func newLiveStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	store, err := NewPostgresStore(context.Background(), dsn)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func insertTestBrand(t *testing.T, store *PostgresStore, merchantName, merchantID string) {
	t.Helper()
	ctx := context.Background()
	_, err := store.pool.Exec(ctx,
		`INSERT INTO brands (merchant_name, merchant_id) VALUES ($1, $2)
		 ON CONFLICT (merchant_id) DO UPDATE SET merchant_name=EXCLUDED.merchant_name, record_url=NULL`,
		merchantName, merchantID)
	if err != nil {
		t.Fatalf("insert test brand: %v", err)
	}
	t.Cleanup(func() {
		_, _ = store.pool.Exec(context.Background(), `DELETE FROM brands WHERE merchant_id=$1`, merchantID)
	})
}

func TestUpdateRecordURLRoundTrip(t *testing.T) {
	store := newLiveStore(t)
	ctx := context.Background()

	merchantID := fmt.Sprintf("test-m-%d", time.Now().UnixNano())
	insertTestBrand(t, store, "Acme", merchantID)

	url := "https://voice-clips.s3.us-east-1.amazonaws.com/brands/Acme_" + merchantID + ".mp3"
	ok, err := store.UpdateRecordURL(ctx, merchantID, url)
	if err != nil {
		t.Fatalf("UpdateRecordURL() error = %v", err)
	}
	if !ok {
		t.Fatalf("UpdateRecordURL() = false, want verified update")
	}

	got, err := store.GetByMerchantID(ctx, merchantID)
	if err != nil {
		t.Fatalf("GetByMerchantID() error = %v", err)
	}
	if got.RecordURL == nil || *got.RecordURL != url {
		t.Fatalf("stored record_url = %v, want %q exactly", got.RecordURL, url)
	}
}

func TestUpdateRecordURLUnknownMerchant(t *testing.T) {
	store := newLiveStore(t)

	ok, err := store.UpdateRecordURL(context.Background(), "no-such-merchant", "https://example.com/x.mp3")
	if err != nil {
		t.Fatalf("UpdateRecordURL() error = %v", err)
	}
	if ok {
		t.Fatalf("UpdateRecordURL() = true, want false for unknown merchant")
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := newLiveStore(t)

	if _, err := store.GetByID(context.Background(), -1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrNotFound", err)
	}
}
