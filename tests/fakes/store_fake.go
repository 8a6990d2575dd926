package fakes

import (
	"context"
	"sync"

	"github.com/systmms/keyrotator/internal/schedule"
)

// FakeStore provides a mock implementation of schedule.Store for testing.
type FakeStore struct {
	mu sync.Mutex

	// Mock behaviors
	PutFunc func(ctx context.Context, record schedule.ScheduledDeletion) error

	// Recorded calls for verification
	PutCalls []schedule.ScheduledDeletion
}

// NewFakeStore creates a fake schedule store with default behaviors.
func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// Put records the write.
func (f *FakeStore) Put(ctx context.Context, record schedule.ScheduledDeletion) error {
	f.mu.Lock()
	f.PutCalls = append(f.PutCalls, record)
	f.mu.Unlock()

	if f.PutFunc != nil {
		return f.PutFunc(ctx, record)
	}
	return nil
}

// PutCount returns the number of recorded Put calls.
func (f *FakeStore) PutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.PutCalls)
}

// LastPut returns the most recent recorded write, or false when none.
func (f *FakeStore) LastPut() (schedule.ScheduledDeletion, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.PutCalls) == 0 {
		return schedule.ScheduledDeletion{}, false
	}
	return f.PutCalls[len(f.PutCalls)-1], true
}
