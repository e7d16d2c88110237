package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Used in development and tests.
type MemoryStore struct {
	mu           sync.RWMutex
	byID         map[string]SubmissionRecord
	bySubmission map[string]string // portal submission ID -> internal ID
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:         make(map[string]SubmissionRecord),
		bySubmission: make(map[string]string),
	}
}

func (s *MemoryStore) SaveSubmission(_ context.Context, rec *SubmissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[rec.ID] = *rec
	if rec.SubmissionID != "" {
		s.bySubmission[rec.SubmissionID] = rec.ID
	}
	return nil
}

func (s *MemoryStore) GetSubmission(_ context.Context, id string) (*SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := rec
	return &out, nil
}

func (s *MemoryStore) GetBySubmissionID(_ context.Context, submissionID string) (*SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySubmission[submissionID]
	if !ok {
		return nil, ErrNotFound
	}
	rec := s.byID[id]
	out := rec
	return &out, nil
}

func (s *MemoryStore) UpdatePayment(_ context.Context, submissionID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.bySubmission[submissionID]
	if !ok {
		return ErrNotFound
	}
	rec := s.byID[id]
	rec.PaymentStatus = status
	rec.UpdatedAt = time.Now().UTC()
	s.byID[id] = rec
	return nil
}

func (s *MemoryStore) Close() error { return nil }
