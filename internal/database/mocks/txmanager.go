// Package mocks provides test doubles for the database package.
package mocks

import (
	"context"
	"sync"
)

// FakeTxManager runs the callback inline without a database and counts the calls.
type FakeTxManager struct {
	mu    sync.Mutex
	calls int
	// Err, when set, is returned instead of running the callback.
	Err error
}

// WithTx implements database.TxManager.
func (f *FakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}
	return fn(ctx)
}

// Calls returns how many transactions were opened.
func (f *FakeTxManager) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
