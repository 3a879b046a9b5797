// Package cache holds last-writer-wins guards for inbound stock snapshots.
package cache

import (
	"context"
	"time"
)

// SnapshotGuard decides whether an inbound stock snapshot should be applied.
// Snapshots carry absolute quantities stamped at the sender, so ordering is
// resolved per key by timestamp: the newest stamp wins, everything at or
// before the last accepted stamp is a stale duplicate.
type SnapshotGuard interface {
	// Check reports whether a snapshot with the given stamp is strictly newer
	// than the last accepted one, without recording it. Callers check first,
	// apply the snapshot, then Observe, so a failed apply leaves the stamp
	// untouched and the sender's retry is not mistaken for a replay.
	Check(ctx context.Context, key string, stamp time.Time) (bool, error)

	// Observe records the timestamp for the given key if it is strictly newer
	// than the last accepted one. It returns true when the stamp was recorded.
	Observe(ctx context.Context, key string, stamp time.Time) (bool, error)

	Close() error
}
