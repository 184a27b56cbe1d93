package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrNotConfigured reports that no bucket is configured. Request handlers
// surface this as an error; only the health dashboard tolerates it.
var ErrNotConfigured = errors.New("object storage is not configured")

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// ObjectMeta is attached to every stored audio object.
type ObjectMeta struct {
	MerchantName string
	MerchantID   string
}

// Uploader writes transformed audio clips to an S3-compatible bucket using
// single-shot puts; payloads are short clips, not streams.
type Uploader struct {
	client *s3.Client
	cfg    Config
}

func NewUploader(ctx context.Context, cfg Config) (*Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return &Uploader{cfg: cfg}, nil
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load storage credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Uploader{client: client, cfg: cfg}, nil
}

// Configured reports whether a bucket is set up for this process.
func (u *Uploader) Configured() bool {
	return u.client != nil
}

// Upload writes the clip at key, overwriting any prior object, and returns
// the public URL. The existence probe only feeds the replaced metadata flag;
// the write path always overwrites.
func (u *Uploader) Upload(ctx context.Context, data []byte, key string, meta ObjectMeta) (string, error) {
	if !u.Configured() {
		return "", ErrNotConfigured
	}

	exists := false
	if _, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
	}); err == nil {
		exists = true
		log.Printf("object %s already exists and will be replaced", key)
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("audio/mpeg"),
		Metadata: map[string]string{
			"merchant-name": meta.MerchantName,
			"merchant-id":   meta.MerchantID,
			"created-at":    time.Now().UTC().Format(time.RFC3339),
			"replaced":      strconv.FormatBool(exists),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return u.PublicURL(key), nil
}

// BucketExists probes the configured bucket for the health dashboard.
func (u *Uploader) BucketExists(ctx context.Context) (bool, error) {
	if !u.Configured() {
		return false, ErrNotConfigured
	}
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(u.cfg.Bucket),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("head bucket %s: %w", u.cfg.Bucket, err)
	}
	return true, nil
}

// PublicURL builds the fully qualified URL for a stored object.
func (u *Uploader) PublicURL(key string) string {
	if base := strings.TrimRight(u.cfg.PublicBaseURL, "/"); base != "" {
		return base + "/" + key
	}
	if endpoint := strings.TrimRight(u.cfg.Endpoint, "/"); endpoint != "" {
		return endpoint + "/" + u.cfg.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.cfg.Bucket, u.cfg.Region, key)
}

// ObjectKey derives the stable, human-legible storage key for a brand's
// recording. One key per merchant, so a new recording replaces the old one.
func ObjectKey(merchantName, merchantID string) string {
	name := strings.ReplaceAll(strings.TrimSpace(merchantName), " ", "_")
	id := strings.ReplaceAll(strings.TrimSpace(merchantID), " ", "_")
	return fmt.Sprintf("brands/%s_%s.mp3", name, id)
}
