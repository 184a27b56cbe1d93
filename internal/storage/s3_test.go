package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestObjectKeyIsDeterministic(t *testing.T) {
	got := ObjectKey("Acme", "M1")
	want := "brands/Acme_M1.mp3"
	if got != want {
		t.Fatalf("ObjectKey() = %q, want %q", got, want)
	}
	if again := ObjectKey("Acme", "M1"); again != got {
		t.Fatalf("ObjectKey() not deterministic: %q vs %q", again, got)
	}
}

func TestObjectKeyNormalizesSpaces(t *testing.T) {
	got := ObjectKey(" Acme Retail ", "M 1")
	want := "brands/Acme_Retail_M_1.mp3"
	if got != want {
		t.Fatalf("ObjectKey() = %q, want %q", got, want)
	}
}

func TestPublicURLEmbedsBucketAndKey(t *testing.T) {
	u := &Uploader{cfg: Config{Bucket: "voice-clips", Region: "eu-west-1"}}
	key := ObjectKey("Acme", "M1")
	got := u.PublicURL(key)
	if !strings.Contains(got, "voice-clips") {
		t.Fatalf("PublicURL() = %q, want bucket name embedded", got)
	}
	if !strings.HasSuffix(got, "/"+key) {
		t.Fatalf("PublicURL() = %q, want key %q embedded exactly", got, key)
	}
}

func TestPublicURLPrefersPublicBase(t *testing.T) {
	u := &Uploader{cfg: Config{Bucket: "voice-clips", PublicBaseURL: "https://cdn.example.com/"}}
	got := u.PublicURL("brands/Acme_M1.mp3")
	want := "https://cdn.example.com/brands/Acme_M1.mp3"
	if got != want {
		t.Fatalf("PublicURL() = %q, want %q", got, want)
	}
}

func TestUnconfiguredUploaderFails(t *testing.T) {
	u, err := NewUploader(context.Background(), Config{})
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}
	if u.Configured() {
		t.Fatalf("Configured() = true, want false without a bucket")
	}
	if _, err := u.Upload(context.Background(), []byte("x"), "k", ObjectMeta{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Upload() error = %v, want ErrNotConfigured", err)
	}
	if _, err := u.BucketExists(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("BucketExists() error = %v, want ErrNotConfigured", err)
	}
}
