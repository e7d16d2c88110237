// Package store persists submission records so payment webhooks and status
// lookups can reference completed automation runs. Backends: in-memory for
// development and tests, redis for deployments.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"formpilot/internal/config"
)

// ErrNotFound is returned when no record exists for the given key.
var ErrNotFound = errors.New("submission record not found")

// SubmissionRecord is the persisted outcome of one automation run.
type SubmissionRecord struct {
	ID             string    `json:"id"`
	PassportNumber string    `json:"passportNumber"`
	SubmissionID   string    `json:"submissionId,omitempty"`
	Status         string    `json:"status"`
	PaymentStatus  string    `json:"paymentStatus,omitempty"`
	SubmittedAt    time.Time `json:"submittedAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Store is safe for concurrent use.
type Store interface {
	// SaveSubmission inserts or replaces the record keyed by ID.
	SaveSubmission(ctx context.Context, rec *SubmissionRecord) error

	// GetSubmission returns the record by its internal ID.
	GetSubmission(ctx context.Context, id string) (*SubmissionRecord, error)

	// GetBySubmissionID returns the record the portal issued this
	// submission ID for.
	GetBySubmissionID(ctx context.Context, submissionID string) (*SubmissionRecord, error)

	// UpdatePayment sets the payment status on the record matching the
	// portal submission ID.
	UpdatePayment(ctx context.Context, submissionID, status string) error

	// Close releases backend resources.
	Close() error
}

// New selects a backend from the store configuration.
func New(cfg config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ttl := time.Duration(cfg.Redis.TTLHours) * time.Hour
		if ttl <= 0 {
			ttl = 72 * time.Hour
		}
		return NewRedisStore(client, ttl), nil
	default:
		return NewMemoryStore(), nil
	}
}
