// Package volatile implements the Volatile Store (L0/L1) of the memory
// core: the append-only recent-episode log and the per-session rolling
// summary, both short-lived and reconstructible, per SPEC_FULL.md §4.1.
package volatile

import (
	"context"
	"time"

	"github.com/fractalcore/agentmem/internal/model"
)

// L1Record is a per-session rolling summary held in the Volatile Store.
// Fields beyond the ones named in spec.md §6.2 are preserved verbatim
// through Extra on read.
type L1Record struct {
	SessionID    string
	Summary      string
	Importance   float64
	SourceCount  int
	CreatedAt    time.Time
	Extra        map[string]any
}

// Store is the Volatile Store contract: l0_append, l0_read, l0_range_pop,
// l1_put, l1_list, l1_delete, lock_acquire, lock_release (spec.md §6.2),
// scoped per user.
type Store interface {
	// L0Append appends episode to the user's log, truncating oldest
	// entries beyond the configured capacity. Ordering within a user is
	// preserved.
	L0Append(ctx context.Context, userID string, episode model.Episode, capacity int) error

	// L0Read returns up to n episodes, newest first. Non-destructive.
	L0Read(ctx context.Context, userID string, n int) ([]model.Episode, error)

	// L0RangePop atomically removes and returns the oldest k episodes.
	// This is the consolidator's sole way to drain L0.
	L0RangePop(ctx context.Context, userID string, k int) ([]model.Episode, error)

	// L1Put upserts record under session_id.
	L1Put(ctx context.Context, userID string, record L1Record) error

	// L1List returns up to limit L1 records, newest first.
	L1List(ctx context.Context, userID string, limit int) ([]L1Record, error)

	// L1Delete removes the session's L1 record, if present.
	L1Delete(ctx context.Context, userID, sessionID string) error

	// LockAcquire attempts to acquire key for ttl, returning a token that
	// must be presented to LockRelease. ok is false if already held.
	LockAcquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// LockRelease releases key if token still matches the holder. ok is
	// false if the token was stale (lock expired or held by another
	// acquirer).
	LockRelease(ctx context.Context, key, token string) (ok bool, err error)

	// Close releases any held connections.
	Close() error
}
