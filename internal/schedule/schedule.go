// Package schedule owns the pending-deletion records: the durable store
// they live in and the change-feed events the store emits when a record's
// time-to-live expires.
package schedule

import (
	"context"
	"time"
)

// ScheduledDeletion is the sole persisted entity: a superseded key waiting
// out its grace period. (Principal, CredentialID) is the record identity;
// a rewrite replaces, never duplicates.
type ScheduledDeletion struct {
	Principal    string `dynamodbav:"user"`
	CredentialID string `dynamodbav:"ak"`
	Channel      string `dynamodbav:"notification_channel"`
	Endpoint     string `dynamodbav:"notification_endpoint"`

	// ExecuteAt is the unix timestamp (seconds) after which the store
	// evicts the record, which is what triggers the deletion attempt.
	ExecuteAt int64 `dynamodbav:"delete_on"`
}

// ExecuteTime returns ExecuteAt as a time.Time in UTC.
func (r ScheduledDeletion) ExecuteTime() time.Time {
	return time.Unix(r.ExecuteAt, 0).UTC()
}

// Store is the durable keyed record store for scheduled deletions.
type Store interface {
	// Put writes or replaces the record keyed by (Principal, CredentialID).
	Put(ctx context.Context, record ScheduledDeletion) error
}

// EventKind classifies a change-feed mutation.
type EventKind string

const (
	// EventInsert is a record being written for the first time.
	EventInsert EventKind = "INSERT"

	// EventModify is a record being rewritten.
	EventModify EventKind = "MODIFY"

	// EventRemove is a record evicted because its ExecuteAt arrived.
	EventRemove EventKind = "REMOVE"
)

// Event is one change-feed mutation. OldImage carries the record as it
// stood before the mutation; it is only populated for removals.
type Event struct {
	Kind     EventKind
	OldImage *ScheduledDeletion
}
