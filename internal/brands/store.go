package brands

import (
	"context"
	"errors"
	"time"
)

// Brand is a merchant record that owns at most one current voice recording.
// A nil RecordURL means no recording has been produced yet.
type Brand struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	MerchantName string    `json:"merchant_name"`
	MerchantID   string    `json:"merchant_id"`
	RecordURL    *string   `json:"record_url"`
}

var ErrNotFound = errors.New("brand not found")

// Store is the persistence surface for brand records. Rows are created
// out-of-band; this service only reads them and sets record_url.
type Store interface {
	List(ctx context.Context) ([]Brand, error)
	GetByID(ctx context.Context, id int64) (Brand, error)
	GetByMerchantID(ctx context.Context, merchantID string) (Brand, error)
	UpdateRecordURL(ctx context.Context, merchantID, url string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}
