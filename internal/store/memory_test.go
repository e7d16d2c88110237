package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formpilot/internal/config"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := &SubmissionRecord{
		ID:             "run-1",
		PassportNumber: "32018323",
		SubmissionID:   "ECD-2026-000123",
		Status:         "SUBMITTED",
		SubmittedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.SaveSubmission(ctx, rec))

	got, err := s.GetSubmission(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "ECD-2026-000123", got.SubmissionID)

	bySub, err := s.GetBySubmissionID(ctx, "ECD-2026-000123")
	require.NoError(t, err)
	assert.Equal(t, "run-1", bySub.ID)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.SaveSubmission(ctx, &SubmissionRecord{ID: "run-1", Status: "SUBMITTED"}))

	got, err := s.GetSubmission(ctx, "run-1")
	require.NoError(t, err)
	got.Status = "MUTATED"

	again, err := s.GetSubmission(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "SUBMITTED", again.Status)
}

func TestMemoryStoreUpdatePayment(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.SaveSubmission(ctx, &SubmissionRecord{
		ID:           "run-1",
		SubmissionID: "ECD-2026-000123",
		Status:       "SUBMITTED",
	}))

	require.NoError(t, s.UpdatePayment(ctx, "ECD-2026-000123", "PAID"))

	got, err := s.GetBySubmissionID(ctx, "ECD-2026-000123")
	require.NoError(t, err)
	assert.Equal(t, "PAID", got.PaymentStatus)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetSubmission(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetBySubmissionID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.UpdatePayment(ctx, "missing", "PAID"), ErrNotFound)
}

func TestNewSelectsMemoryByDefault(t *testing.T) {
	s, err := New(config.StoreConfig{Type: "memory"})
	require.NoError(t, err)
	defer s.Close()
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
}
