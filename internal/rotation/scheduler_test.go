package rotation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/keyrotator/internal/logging"
	"github.com/systmms/keyrotator/internal/schedule"
	"github.com/systmms/keyrotator/tests/fakes"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSchedulerSchedule(t *testing.T) {
	t.Parallel()

	// 2026-03-14 09:26 UTC; midnight anchor is 2026-03-14 00:00 UTC.
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	midnight := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	store := fakes.NewFakeStore()
	s := NewScheduler(store, logging.New(false, true), WithSchedulerClock(fixedClock(now)))

	err := s.Schedule(context.Background(), "alice", "AKIAOLD", "email", "alice@example.com", 10)
	require.NoError(t, err)

	record, ok := store.LastPut()
	require.True(t, ok)
	assert.Equal(t, "alice", record.Principal)
	assert.Equal(t, "AKIAOLD", record.CredentialID)
	assert.Equal(t, "email", record.Channel)
	assert.Equal(t, "alice@example.com", record.Endpoint)
	assert.Equal(t, midnight.AddDate(0, 0, 10).Unix(), record.ExecuteAt)
}

func TestSchedulerScheduleAnchorsToMidnight(t *testing.T) {
	t.Parallel()

	morning := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 14, 17, 45, 12, 0, time.UTC)

	store := fakes.NewFakeStore()
	logger := logging.New(false, true)

	err := NewScheduler(store, logger, WithSchedulerClock(fixedClock(morning))).
		Schedule(context.Background(), "alice", "AKIAOLD", "email", "alice@example.com", 10)
	require.NoError(t, err)

	err = NewScheduler(store, logger, WithSchedulerClock(fixedClock(evening))).
		Schedule(context.Background(), "alice", "AKIAOLD", "email", "alice@example.com", 10)
	require.NoError(t, err)

	require.Equal(t, 2, store.PutCount())
	assert.Equal(t, store.PutCalls[0], store.PutCalls[1],
		"same day and grace must produce identical records")
}

func TestSchedulerSchedulePropagatesStoreError(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore()
	store.PutFunc = func(ctx context.Context, record schedule.ScheduledDeletion) error {
		return errors.New("table unavailable")
	}

	s := NewScheduler(store, logging.New(false, true))
	err := s.Schedule(context.Background(), "alice", "AKIAOLD", "email", "alice@example.com", 10)
	assert.ErrorContains(t, err, "table unavailable")
}

func TestSchedulerReschedule(t *testing.T) {
	t.Parallel()

	executeAt := time.Date(2026, 3, 24, 0, 0, 0, 0, time.UTC).Unix()
	record := schedule.ScheduledDeletion{
		Principal:    "alice",
		CredentialID: "AKIAOLD",
		Channel:      "email",
		Endpoint:     "alice@example.com",
		ExecuteAt:    executeAt,
	}

	store := fakes.NewFakeStore()
	s := NewScheduler(store, logging.New(false, true))

	err := s.Reschedule(context.Background(), record, 5*time.Minute)
	require.NoError(t, err)

	got, ok := store.LastPut()
	require.True(t, ok)
	assert.Equal(t, executeAt+300, got.ExecuteAt,
		"retry offsets from the record's own execute-at, not from the wall clock")
	assert.Equal(t, "alice", got.Principal)
	assert.Equal(t, "AKIAOLD", got.CredentialID)
	assert.Equal(t, "email", got.Channel)
	assert.Equal(t, "alice@example.com", got.Endpoint)
}

func TestSchedulerRescheduleChainsBackoff(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore()
	s := NewScheduler(store, logging.New(false, true))

	record := schedule.ScheduledDeletion{Principal: "alice", CredentialID: "AKIAOLD", ExecuteAt: 1_700_000_000}

	require.NoError(t, s.Reschedule(context.Background(), record, 5*time.Minute))
	first, _ := store.LastPut()

	require.NoError(t, s.Reschedule(context.Background(), first, 5*time.Minute))
	second, _ := store.LastPut()

	assert.Equal(t, record.ExecuteAt+300, first.ExecuteAt)
	assert.Equal(t, record.ExecuteAt+600, second.ExecuteAt)
}
