// Package cache provides the shared key/value cache used for role lookups and key material.
//
// Every caller treats the cache as advisory: a miss or an ErrUnavailable falls back to the
// authoritative store, so a cache outage only costs latency.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/envsafe/internal/errors"
)

// TTLs for the cached entries.
const (
	RoleTTL      = 600 * time.Second
	AccessTTL    = 600 * time.Second
	DataKeyTTL   = 86400 * time.Second
	ActiveKeyTTL = 3600 * time.Second
)

// NullValue is the cached encoding of "no role".
const NullValue = "null"

// ErrUnavailable wraps every transport or server failure returned by a Client.
var ErrUnavailable = apperrors.Wrap(apperrors.ErrUnavailable, "cache unavailable")

// Client is a string key/value cache with per-entry expiry.
type Client interface {
	// Get returns the value and true on a hit, or "" and false on a miss.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key. A zero ttl keeps the entry until it is deleted.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Incr atomically increments the integer stored at key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// DeleteMatching removes every key matching a glob pattern.
	DeleteMatching(ctx context.Context, pattern string) error
}

// RoleKey is the cache key for a user's role in a project.
func RoleKey(userID, projectID uuid.UUID) string {
	return fmt.Sprintf("user:%s:project:%s:role", userID, projectID)
}

// SecretAccessKey is the cache key for a user's effective access to a secret.
func SecretAccessKey(userID, secretID uuid.UUID) string {
	return fmt.Sprintf("user:%s:secret:%s:access", userID, secretID)
}

// UserSecretAccessPattern matches every secret access entry of a user.
func UserSecretAccessPattern(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:secret:*:access", userID)
}

// DataKeyKey is the cache key holding the hex encoded, unwrapped data key of a key id.
func DataKeyKey(keyID uuid.UUID) string {
	return fmt.Sprintf("key:%s", keyID)
}

// ActiveKeyKey holds "{keyId}:{hex}" for the currently active key.
const ActiveKeyKey = "active_key"
