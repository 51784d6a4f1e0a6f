package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/unistock/internal/jobs"
)

type stubPruner struct {
	olderThan time.Duration
	removed   int64
	err       error
}

func (s *stubPruner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return s.removed, s.err
}

func newCleanupJob(store KeyPruner) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{
		Store:   store,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry()),
	}
}

func TestIdempotencyCleanupDefaultsToOneWeek(t *testing.T) {
	store := &stubPruner{removed: 3}
	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{})
	require.NoError(t, err)

	require.NoError(t, newCleanupJob(store).Handle(context.Background(), task))
	require.Equal(t, 7*24*time.Hour, store.olderThan)
}

func TestIdempotencyCleanupCustomRetention(t *testing.T) {
	store := &stubPruner{}
	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{RetentionHours: 48})
	require.NoError(t, err)

	require.NoError(t, newCleanupJob(store).Handle(context.Background(), task))
	require.Equal(t, 48*time.Hour, store.olderThan)
}

func TestIdempotencyCleanupRejectsNegativeRetention(t *testing.T) {
	store := &stubPruner{}
	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{RetentionHours: -1})
	require.NoError(t, err)

	err = newCleanupJob(store).Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, store.olderThan)
}

func TestIdempotencyCleanupPropagatesStoreError(t *testing.T) {
	boom := errors.New("connection reset")
	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{})
	require.NoError(t, err)

	require.ErrorIs(t, newCleanupJob(&stubPruner{err: boom}).Handle(context.Background(), task), boom)
}
