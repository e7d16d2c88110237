package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"formpilot/internal/logging"
)

const redisNamespace = "formpilot"

// RedisStore persists records in redis with a TTL. Each record is stored as
// JSON under its internal ID, with a secondary key mapping the portal
// submission ID back to it.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func recordKey(id string) string {
	return fmt.Sprintf("%s:submission:%s", redisNamespace, id)
}

func indexKey(submissionID string) string {
	return fmt.Sprintf("%s:submission_id:%s", redisNamespace, submissionID)
}

func (s *RedisStore) SaveSubmission(ctx context.Context, rec *SubmissionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}
	if err := s.client.Set(ctx, recordKey(rec.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save record %s: %w", rec.ID, err)
	}
	if rec.SubmissionID != "" {
		if err := s.client.Set(ctx, indexKey(rec.SubmissionID), rec.ID, s.ttl).Err(); err != nil {
			return fmt.Errorf("index record %s: %w", rec.ID, err)
		}
	}
	logging.Store("saved submission record id=%s submission_id=%s", rec.ID, rec.SubmissionID)
	return nil
}

func (s *RedisStore) GetSubmission(ctx context.Context, id string) (*SubmissionRecord, error) {
	data, err := s.client.Get(ctx, recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	var rec SubmissionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &rec, nil
}

func (s *RedisStore) GetBySubmissionID(ctx context.Context, submissionID string) (*SubmissionRecord, error) {
	id, err := s.client.Get(ctx, indexKey(submissionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve submission id %s: %w", submissionID, err)
	}
	return s.GetSubmission(ctx, id)
}

func (s *RedisStore) UpdatePayment(ctx context.Context, submissionID, status string) error {
	rec, err := s.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		return err
	}
	rec.PaymentStatus = status
	rec.UpdatedAt = time.Now().UTC()
	return s.SaveSubmission(ctx, rec)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
