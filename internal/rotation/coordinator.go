package rotation

import (
	"context"

	"github.com/systmms/keyrotator/internal/directory"
	krerrors "github.com/systmms/keyrotator/internal/errors"
	"github.com/systmms/keyrotator/internal/fanout"
	"github.com/systmms/keyrotator/internal/logging"
	"github.com/systmms/keyrotator/internal/notify"
)

// Coordinator drives one rotation pass over every principal in the
// directory. Each pass is stateless: it reconstructs everything from the
// directory and leaves nothing behind except directory writes, notices,
// and schedule-store records.
type Coordinator struct {
	dir       directory.CredentialDirectory
	accounts  directory.AccountResolver
	notifiers *notify.Registry
	scheduler *Scheduler
	logger    *logging.Logger

	maxKeyAgeDays int
	graceDays     int
	concurrency   int
}

// NewCoordinator creates a rotation coordinator.
func NewCoordinator(
	dir directory.CredentialDirectory,
	accounts directory.AccountResolver,
	notifiers *notify.Registry,
	scheduler *Scheduler,
	logger *logging.Logger,
	maxKeyAgeDays, graceDays, concurrency int,
) *Coordinator {
	return &Coordinator{
		dir:           dir,
		accounts:      accounts,
		notifiers:     notifiers,
		scheduler:     scheduler,
		logger:        logger,
		maxKeyAgeDays: maxKeyAgeDays,
		graceDays:     graceDays,
		concurrency:   concurrency,
	}
}

// candidate is a principal that survived the notification filter.
type candidate struct {
	name  string
	attrs Attributes

	channel  notify.Channel
	endpoint string

	keys []directory.Credential
}

// RotateAll runs one rotation pass. Only a failure to enumerate
// principals aborts the pass; every per-principal failure is logged and
// isolated from its siblings.
func (c *Coordinator) RotateAll(ctx context.Context) error {
	names, err := c.dir.ListPrincipals(ctx)
	if err != nil {
		return err
	}
	c.logger.Info("User count: %d", len(names))

	account, err := c.accounts.AccountInfo(ctx)
	if err != nil {
		c.logger.Warn("Failed to resolve account identity, notices will omit it: %v", err)
	}

	candidates := c.filterNotifiable(ctx, names)
	c.logger.Info("Users with notification enabled: %d", len(candidates))

	candidates = c.fetchKeys(ctx, candidates)

	fanout.Map(ctx, candidates, c.concurrency, func(ctx context.Context, cand candidate) (struct{}, error) {
		c.rotateOne(ctx, account, cand)
		return struct{}{}, nil
	})

	return nil
}

// filterNotifiable fetches every principal's tags concurrently and keeps
// those with a recognized notification channel and endpoint. Rotating a
// key there is no safe way to announce would distribute a secret with no
// audit trail, so skipping is the default.
func (c *Coordinator) filterNotifiable(ctx context.Context, names []string) []candidate {
	results := fanout.Map(ctx, names, c.concurrency, func(ctx context.Context, name string) (Attributes, error) {
		c.logger.Debug("Fetching tags for %s", name)
		tags, err := c.dir.ListTags(ctx, name)
		if err != nil {
			return Attributes{}, err
		}
		return ParseAttributes(tags), nil
	})

	var candidates []candidate
	for _, r := range results {
		if r.Err != nil {
			c.logger.Error("Failed to fetch tags for %s: %v", r.Item, r.Err)
			continue
		}

		channel, endpoint, ok := r.Value.Endpoint()
		if !ok {
			c.logger.Debug("Skipping %s: no usable notification channel", r.Item)
			continue
		}

		candidates = append(candidates, candidate{
			name:     r.Item,
			attrs:    r.Value,
			channel:  channel,
			endpoint: endpoint,
		})
	}

	return candidates
}

// fetchKeys loads each candidate's key list concurrently. Candidates whose
// keys cannot be listed drop out of this pass.
func (c *Coordinator) fetchKeys(ctx context.Context, candidates []candidate) []candidate {
	results := fanout.Map(ctx, candidates, c.concurrency, func(ctx context.Context, cand candidate) (candidate, error) {
		c.logger.Debug("Fetching keys for %s", cand.name)
		keys, err := c.dir.ListKeys(ctx, cand.name)
		if err != nil {
			return cand, err
		}
		cand.keys = keys
		return cand, nil
	})

	out := make([]candidate, 0, len(candidates))
	for _, r := range results {
		if r.Err != nil {
			c.logger.Error("Failed to fetch keys for %s: %v", r.Item.name, r.Err)
			continue
		}
		out = append(out, r.Value)
	}
	return out
}

// rotateOne applies the policy to a single principal and performs the
// create -> notify -> schedule-delete sequence when a key is due. The
// three steps never reorder: the old key ID is captured before creation,
// and scheduling uses exactly that ID.
func (c *Coordinator) rotateOne(ctx context.Context, account directory.Account, cand candidate) {
	switch len(cand.keys) {
	case 0:
		c.logger.Info("Skipping key creation for %s because no existing key found", cand.name)
		incSkips(SkipReasonNoKeys)
		return
	case 2:
		// The directory enforces a two-key ceiling; creating a third
		// would fail. Hard stop, not retryable.
		c.logger.Warn("Skipping key creation for %s because 2 keys already exist. Please delete one to create a new key", cand.name)
		incSkips(SkipReasonTwoKeys)
		return
	}

	maxAge := EffectiveMaxAge(cand.attrs.RotateAfter, c.maxKeyAgeDays)

	for _, key := range cand.keys {
		if !ShouldRotate(key, maxAge) {
			c.logger.Info("Skipping key creation for %s because existing key is only %d day(s) old and rotation is set for %d days",
				cand.name, key.AgeDays, maxAge)
			incSkips(SkipReasonNotDue)
			continue
		}

		oldKeyID := key.ID

		c.logger.Info("Creating new access key for %s", cand.name)
		material, err := c.dir.CreateKey(ctx, cand.name)
		if err != nil {
			if krerrors.IsRetryable(err) {
				c.logger.Warn("Failed to create new key pair for %s, the next pass will retry: %v", cand.name, err)
			} else {
				c.logger.Error("Failed to create new key pair for %s: %v", cand.name, err)
			}
			return
		}
		c.logger.Info("New key pair generated for user %s", cand.name)

		c.notifyRotation(ctx, account, cand, material, oldKeyID)
		material.Secret.Destroy()

		if err := c.scheduler.Schedule(ctx, cand.name, oldKeyID, string(cand.channel), cand.endpoint, c.graceDays); err != nil {
			// The new key exists but the old one has no scheduled
			// deletion; nothing downstream will rediscover it.
			c.logger.Error("Failed to mark key %s for deletion; old key for %s has NO scheduled deletion: %v",
				oldKeyID, cand.name, err)
			incScheduleWriteFailures()
		}

		incRotations()

		// Never rotate more than one key for a principal in one pass:
		// with the two-key ceiling, rotating both could transiently
		// require four.
		return
	}
}

// notifyRotation announces the new key pair. The key is already created
// (irreversible), so a failed notice is logged and swallowed — scheduling
// the old key's deletion must still happen.
func (c *Coordinator) notifyRotation(ctx context.Context, account directory.Account, cand candidate, material directory.KeyMaterial, oldKeyID string) {
	notifier, ok := c.notifiers.For(string(cand.channel))
	if !ok {
		c.logger.Error("%s is not a supported notification channel", cand.channel)
		incNotifyFailures()
		return
	}

	c.logger.Info("%s is selected as notification channel for %s", cand.channel, cand.name)

	notice := notify.Notice{
		Kind:         notify.KindRotation,
		Principal:    cand.name,
		Endpoint:     cand.endpoint,
		Account:      account,
		NewKeyID:     material.ID,
		Secret:       material.Secret,
		OldKeyID:     oldKeyID,
		Instructions: cand.attrs.Instructions,
		GraceDays:    c.graceDays,
	}

	if err := notifier.Send(ctx, notice); err != nil {
		c.logger.Error("Failed to notify user %s (%s): %v", cand.name, cand.endpoint, err)
		incNotifyFailures()
	}
}
