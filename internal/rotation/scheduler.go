package rotation

import (
	"context"
	"time"

	"github.com/systmms/keyrotator/internal/logging"
	"github.com/systmms/keyrotator/internal/schedule"
)

// Scheduler writes and rewrites pending-deletion records.
type Scheduler struct {
	store  schedule.Store
	logger *logging.Logger
	now    func() time.Time
}

// SchedulerOption is a functional option for configuring the scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock sets the time source (for testing).
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// NewScheduler creates a scheduler over the given store.
func NewScheduler(store schedule.Store, logger *logging.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule marks the credential for destruction graceDays from now.
// Execute-at is anchored to midnight UTC of the current day, one canonical
// instant per day, so a pass scheduled at 09:00 and one at 17:00 produce
// the same timestamp. Writing through the composite key makes repeated
// calls idempotent.
func (s *Scheduler) Schedule(ctx context.Context, principal, credentialID, channel, endpoint string, graceDays int) error {
	executeAt := midnightUTC(s.now()).AddDate(0, 0, graceDays).Unix()

	record := schedule.ScheduledDeletion{
		Principal:    principal,
		CredentialID: credentialID,
		Channel:      channel,
		Endpoint:     endpoint,
		ExecuteAt:    executeAt,
	}

	if err := s.store.Put(ctx, record); err != nil {
		return err
	}

	s.logger.Info("Key %s marked for deletion on %s", credentialID, record.ExecuteTime().Format(time.RFC3339))
	return nil
}

// Reschedule re-arms a failed deletion by pushing the record's own
// execute-at forward by retryDelay. The original schedule's cadence is
// preserved: repeated failures drift by exactly one backoff step each,
// never by "now plus delay".
func (s *Scheduler) Reschedule(ctx context.Context, record schedule.ScheduledDeletion, retryDelay time.Duration) error {
	record.ExecuteAt += int64(retryDelay / time.Second)

	if err := s.store.Put(ctx, record); err != nil {
		return err
	}

	s.logger.Info("Key %s re-armed for deletion on %s", record.CredentialID, record.ExecuteTime().Format(time.RFC3339))
	return nil
}

// midnightUTC truncates t to the start of its UTC day.
func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
