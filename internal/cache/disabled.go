package cache

import (
	"context"
	"time"
)

// Disabled is the Client used when no cache is configured. Reads always miss and
// writes are dropped.
type Disabled struct{}

// Get implements Client.
func (Disabled) Get(context.Context, string) (string, bool, error) { return "", false, nil }

// Set implements Client.
func (Disabled) Set(context.Context, string, string, time.Duration) error { return nil }

// Incr implements Client.
func (Disabled) Incr(context.Context, string) (int64, error) { return 0, nil }

// Delete implements Client.
func (Disabled) Delete(context.Context, ...string) error { return nil }

// DeleteMatching implements Client.
func (Disabled) DeleteMatching(context.Context, string) error { return nil }
