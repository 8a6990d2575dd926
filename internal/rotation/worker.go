package rotation

import (
	"context"
	"time"

	"github.com/systmms/keyrotator/internal/directory"
	krerrors "github.com/systmms/keyrotator/internal/errors"
	"github.com/systmms/keyrotator/internal/logging"
	"github.com/systmms/keyrotator/internal/notify"
	"github.com/systmms/keyrotator/internal/schedule"
)

// Worker reacts to change-feed events: when a pending-deletion record is
// evicted because its time arrived, the worker destroys the credential and
// tells the principal, or re-arms the schedule on failure.
//
// Per credential the lifecycle is SCHEDULED -> ATTEMPTING -> DELETED, with
// a failed attempt looping back to SCHEDULED. Deletion is at-least-once
// with bounded retry spacing; retries are unbounded by count.
type Worker struct {
	dir        directory.CredentialDirectory
	scheduler  *Scheduler
	notifiers  *notify.Registry
	logger     *logging.Logger
	retryDelay time.Duration
}

// NewWorker creates a deletion worker. retryDelay is the fixed spacing
// added to a failed attempt's schedule.
func NewWorker(dir directory.CredentialDirectory, scheduler *Scheduler, notifiers *notify.Registry, logger *logging.Logger, retryDelay time.Duration) *Worker {
	return &Worker{
		dir:        dir,
		scheduler:  scheduler,
		notifiers:  notifiers,
		logger:     logger,
		retryDelay: retryDelay,
	}
}

// HandleEvent processes one change-feed event. Each activation is
// stateless; everything needed comes from the event payload.
//
// Only removals with an old image qualify — they mean the record's
// execute-at arrived and the store evicted it. Anything else is skipped,
// not failed. The returned error is non-nil only when a failed deletion
// could not be re-armed; that event is lost to this worker and an
// operator-level backstop has to pick it up.
func (w *Worker) HandleEvent(ctx context.Context, event schedule.Event) error {
	if event.Kind != schedule.EventRemove || event.OldImage == nil {
		w.logger.Debug("Skipping %s event; only expiry removals trigger deletion", event.Kind)
		return nil
	}

	record := *event.OldImage

	w.logger.Info("Deleting access key %s associated with user %s", record.CredentialID, record.Principal)
	if err := w.dir.DeleteKey(ctx, record.Principal, record.CredentialID); err != nil {
		if krerrors.IsPermanent(err) {
			// Duplicate delivery or an operator already removed the key.
			// Retrying a permanent failure loops forever.
			w.logger.Warn("Deletion of key %s failed permanently, not re-arming: %v", record.CredentialID, err)
			return nil
		}

		w.logger.Error("Failed to delete access key %s: %v", record.CredentialID, err)
		incDeletionRetries()

		if rerr := w.scheduler.Reschedule(ctx, record, w.retryDelay); rerr != nil {
			w.logger.Error("Failed to re-arm deletion of key %s for user %s; this event is dropped: %v",
				record.CredentialID, record.Principal, rerr)
			return rerr
		}
		return nil
	}

	w.logger.Info("Access key %s has been deleted", record.CredentialID)
	incDeletions()

	w.notifyDeletion(ctx, record)
	return nil
}

// notifyDeletion tells the principal the old key is gone. The key is
// already deleted, so a failed notice is logged and swallowed.
func (w *Worker) notifyDeletion(ctx context.Context, record schedule.ScheduledDeletion) {
	notifier, ok := w.notifiers.For(record.Channel)
	if !ok {
		w.logger.Error("%s is not a supported notification channel", record.Channel)
		incNotifyFailures()
		return
	}

	notice := notify.Notice{
		Kind:      notify.KindDeletion,
		Principal: record.Principal,
		Endpoint:  record.Endpoint,
		OldKeyID:  record.CredentialID,
	}

	if err := notifier.Send(ctx, notice); err != nil {
		w.logger.Error("Failed to notify user %s (%s): %v", record.Principal, record.Endpoint, err)
		incNotifyFailures()
	}
}
